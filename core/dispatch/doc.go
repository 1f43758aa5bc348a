// Package dispatch builds the microgrid dispatch MILP, hands it to a solver
// and turns the solved variables into a per-step schedule and a cost summary.
//
// Every request gets its own Model; nothing is shared between runs, so an
// Optimizer can serve concurrent callers.
package dispatch
