package model

import "fmt"

// ValidationError reports a request that cannot be turned into a model.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InfeasibleError reports that no schedule satisfies the model constraints.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	if e.Reason == "" {
		return "no feasible dispatch schedule"
	}
	return "no feasible dispatch schedule: " + e.Reason
}

// SolverError reports an environment problem with the MILP backend.
type SolverError struct {
	Backend string
	Err     error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver %s: %v", e.Backend, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }
