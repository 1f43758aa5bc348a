package metrics

import "time"

// Run outcomes used as the status label.
const (
	StatusOptimal     = "optimal"
	StatusFeasible    = "feasible"
	StatusInfeasible  = "infeasible"
	StatusInvalid     = "invalid"
	StatusSolverError = "solver_error"
)

// RunEvent summarizes one optimization request.
type RunEvent struct {
	RunID         string        `json:"run_id"`
	Status        string        `json:"status"`
	Backend       string        `json:"backend"`
	Steps         int           `json:"steps"`
	Variables     int           `json:"variables"`
	Binaries      int           `json:"binaries"`
	Constraints   int           `json:"constraints"`
	SolveDuration time.Duration `json:"solve_duration_ns"`
	TotalCost     float64       `json:"total_cost"`
	Time          time.Time     `json:"time"`
}

// RunRecorder records optimization runs.
type RunRecorder interface {
	RecordRun(ev RunEvent) error
}

// PlanPoint is one planned step of a run, ready to be written as a time series point.
type PlanPoint struct {
	RunID  string
	Index  int
	Time   time.Time
	Fields map[string]float64
}

// PlanRecorder is implemented by sinks able to store planned schedules.
type PlanRecorder interface {
	RecordPlan(points []PlanPoint) error
}

// RunLister is implemented by sinks that keep a queryable run history.
type RunLister interface {
	// Recent returns up to limit runs, newest first.
	Recent(limit int) ([]RunEvent, error)
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error     { return nil }
func (NopSink) RecordPlan([]PlanPoint) error { return nil }
