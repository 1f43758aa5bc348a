// Package milp is a solver-agnostic representation of mixed-integer linear
// programs. Variables live in a single arena and are addressed by index, so a
// Solution is a plain slice aligned with Problem.Vars.
//
// Problems are built once per request and are not safe for concurrent
// mutation. Solvers implement the Solver interface; see infra/solver for the
// available backends.
package milp
