package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/ems/core/logger"
	"github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/core/milp"
	"github.com/kilianp07/ems/core/model"
)

// Request is one optimization call. Missing profiles are a validation error;
// callers wanting the built-in profiles fill them from DefaultLoadProfile and
// DefaultPriceProfile.
type Request struct {
	Params       model.SiteParams `json:"params" yaml:"params"`
	LoadProfile  []float64        `json:"load_profile" yaml:"load_profile"`
	PriceProfile []float64        `json:"price_profile" yaml:"price_profile"`
	// Start anchors step timestamps. Zero means the time of the request.
	Start time.Time `json:"start,omitempty" yaml:"start,omitempty"`
}

// Result is the outcome of a successful optimization.
type Result struct {
	RunID        string           `json:"run_id"`
	Status       string           `json:"status"`
	Backend      string           `json:"backend"`
	Params       model.SiteParams `json:"params"`
	Start        time.Time        `json:"start"`
	SolveSeconds float64          `json:"solve_seconds"`
	Summary      Summary          `json:"summary"`
	Steps        []Step           `json:"time_series"`
}

// StepTime is the start time of step i.
func (r *Result) StepTime(i int) time.Time {
	return r.Start.Add(time.Duration(i*r.Params.ResolutionMinutes) * time.Minute)
}

// Optimizer runs requests end to end: normalize, build, solve, extract.
// It holds no per-request state and is safe for concurrent use.
type Optimizer struct {
	solver   milp.Solver
	opts     milp.Options
	log      logger.Logger
	recorder metrics.RunRecorder

	newID func() string
	now   func() time.Time
}

// NewOptimizer wires an optimizer. A nil logger or recorder disables that output.
func NewOptimizer(s milp.Solver, opts milp.Options, log logger.Logger, rec metrics.RunRecorder) *Optimizer {
	if log == nil {
		log = logger.NopLogger{}
	}
	if rec == nil {
		rec = metrics.NopSink{}
	}
	return &Optimizer{
		solver:   s,
		opts:     opts,
		log:      log,
		recorder: rec,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Optimize computes the cost-optimal schedule for req. Failures are one of
// *model.ValidationError, *model.InfeasibleError or *model.SolverError.
func (o *Optimizer) Optimize(req Request) (*Result, error) {
	runID := o.newID()
	ev := metrics.RunEvent{RunID: runID, Backend: o.solver.Name(), Time: o.now()}

	site, err := req.Params.Normalize()
	if err != nil {
		return nil, o.fail(ev, metrics.StatusInvalid, err)
	}
	if site.SiteParams != req.Params {
		o.log.Debugw("request parameters normalized", map[string]any{
			"run_id":     runID,
			"num_days":   site.NumDays,
			"resolution": site.ResolutionMinutes,
			"weather":    site.Weather,
		})
	}
	series, err := NewSeries(site, req.LoadProfile, req.PriceProfile)
	if err != nil {
		return nil, o.fail(ev, metrics.StatusInvalid, err)
	}
	m, err := Build(site, series)
	if err != nil {
		return nil, o.fail(ev, metrics.StatusInvalid, err)
	}
	p := m.Problem
	ev.Steps = len(m.Steps)
	ev.Variables = len(p.Vars)
	ev.Binaries = p.NumBinary()
	ev.Constraints = len(p.Constraints)
	o.log.Infof("run %s: %d steps, %d variables (%d binary), %d constraints, backend %s",
		runID, ev.Steps, ev.Variables, ev.Binaries, ev.Constraints, ev.Backend)

	started := o.now()
	sol, err := o.solver.Solve(p, o.opts)
	ev.SolveDuration = o.now().Sub(started)
	if err != nil {
		if errors.Is(err, milp.ErrUnbounded) {
			return nil, o.fail(ev, metrics.StatusInfeasible, &model.InfeasibleError{Reason: "objective is unbounded"})
		}
		return nil, o.fail(ev, metrics.StatusSolverError, &model.SolverError{Backend: ev.Backend, Err: err})
	}
	if sol.Status == milp.StatusInfeasible {
		return nil, o.fail(ev, metrics.StatusInfeasible, &model.InfeasibleError{})
	}
	plan, err := Extract(m, sol)
	if err != nil {
		return nil, o.fail(ev, metrics.StatusSolverError, &model.SolverError{Backend: ev.Backend, Err: err})
	}
	o.log.Infof("run %s: %s in %s, total cost %.2f", runID, sol.Status, ev.SolveDuration, plan.Summary.Costs.Total)
	if plan.HydrogenDrift > hydrogenDriftTolerance {
		o.log.Warnf("run %s: hydrogen level drifts %.6f kg from solved level", runID, plan.HydrogenDrift)
	}

	ev.Status = sol.Status.String()
	ev.TotalCost = plan.Summary.Costs.Total
	if err := o.recorder.RecordRun(ev); err != nil {
		o.log.Warnf("run %s: record metrics: %v", runID, err)
	}

	start := req.Start
	if start.IsZero() {
		start = ev.Time
	}
	return &Result{
		RunID:        runID,
		Status:       sol.Status.String(),
		Backend:      ev.Backend,
		Params:       site.SiteParams,
		Start:        start,
		SolveSeconds: ev.SolveDuration.Seconds(),
		Summary:      plan.Summary,
		Steps:        plan.Steps,
	}, nil
}

// hydrogenDriftTolerance is the accepted gap in kg between derived and solved tank levels.
const hydrogenDriftTolerance = 1e-3

func (o *Optimizer) fail(ev metrics.RunEvent, status string, err error) error {
	ev.Status = status
	if rerr := o.recorder.RecordRun(ev); rerr != nil {
		o.log.Warnf("run %s: record metrics: %v", ev.RunID, rerr)
	}
	o.log.Errorf("run %s: %s: %v", ev.RunID, status, err)
	return err
}

// PlanPoints converts a result into time series points.
func PlanPoints(r *Result) []metrics.PlanPoint {
	pts := make([]metrics.PlanPoint, len(r.Steps))
	for i, s := range r.Steps {
		pts[i] = metrics.PlanPoint{
			RunID: r.RunID,
			Index: s.Index,
			Time:  r.StepTime(i),
			Fields: map[string]float64{
				"load_kw":           s.Load,
				"price":             s.Price,
				"grid_kw":           s.Grid,
				"load_curtailed_kw": s.LoadCurtailed,
				"diesel_kw":         s.Diesel,
				"battery_net_kw":    s.NetBattery,
				"battery_soc_pct":   s.BatterySOC,
				"pv_used_kw":        s.PVUsed,
				"pv_curtailed_kw":   s.PVCurtailed,
				"electrolyzer_kw":   s.Electrolyzer,
				"fuel_cell_kw":      s.FuelCell,
				"h2_level_kg":       s.HydrogenLevel,
			},
		}
	}
	return pts
}

// String implements fmt.Stringer for log lines.
func (r *Result) String() string {
	return fmt.Sprintf("run %s (%s): %d steps, total cost %.2f", r.RunID, r.Status, len(r.Steps), r.Summary.Costs.Total)
}
