package milp

import (
	"errors"
	"time"
)

// Status is the outcome reported by a solver.
type Status int

const (
	// StatusOptimal means the incumbent is optimal within the relative gap.
	StatusOptimal Status = iota
	// StatusFeasible means the time limit stopped the search with an incumbent.
	StatusFeasible
	// StatusInfeasible means no assignment satisfies the constraints.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// HasSolution reports whether Values are populated for this status.
func (s Status) HasSolution() bool { return s == StatusOptimal || s == StatusFeasible }

// Solution is a solver answer. Values is aligned with Problem.Vars.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
}

// Options bound the search.
type Options struct {
	TimeLimit   time.Duration
	RelativeGap float64
}

// DefaultOptions matches the production service: 180 s and a 1% gap.
func DefaultOptions() Options {
	return Options{TimeLimit: 180 * time.Second, RelativeGap: 0.01}
}

// Solver solves a Problem. Implementations must not modify p.
// Environment failures are returned as errors; infeasibility is a status.
type Solver interface {
	Name() string
	Solve(p *Problem, opts Options) (Solution, error)
}

var (
	// ErrSolverUnavailable indicates that no backend could be reached.
	ErrSolverUnavailable = errors.New("milp solver unavailable")
	// ErrNoIncumbent indicates the limit was reached before any feasible point was found.
	ErrNoIncumbent = errors.New("limit reached without a feasible solution")
	// ErrUnbounded indicates the objective is unbounded below.
	ErrUnbounded = errors.New("problem is unbounded")
)
