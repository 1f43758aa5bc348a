package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/core/milp"
	"github.com/kilianp07/ems/core/model"
)

type fakeSolver struct {
	mu    sync.Mutex
	calls int
	opts  milp.Options
	solve func(p *milp.Problem) (milp.Solution, error)
}

func (f *fakeSolver) Name() string { return "fake" }

func (f *fakeSolver) Solve(p *milp.Problem, opts milp.Options) (milp.Solution, error) {
	f.mu.Lock()
	f.calls++
	f.opts = opts
	f.mu.Unlock()
	return f.solve(p)
}

type memRecorder struct {
	mu   sync.Mutex
	runs []metrics.RunEvent
}

func (r *memRecorder) RecordRun(ev metrics.RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, ev)
	return nil
}

func (r *memRecorder) last() metrics.RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[len(r.runs)-1]
}

// returning serves the grid-only plan of the model built from testParams.
func returning(t *testing.T, status milp.Status) *fakeSolver {
	m := buildModel(t, testParams())
	vals := gridOnly(m)
	return &fakeSolver{solve: func(p *milp.Problem) (milp.Solution, error) {
		if len(p.Vars) != len(vals) {
			return milp.Solution{}, errors.New("unexpected problem")
		}
		return milp.Solution{Status: status, Values: vals, Objective: p.ObjectiveValue(vals)}, nil
	}}
}

func failing(err error) *fakeSolver {
	return &fakeSolver{solve: func(*milp.Problem) (milp.Solution, error) { return milp.Solution{}, err }}
}

func newTestOptimizer(s milp.Solver, rec metrics.RunRecorder) *Optimizer {
	o := NewOptimizer(s, milp.DefaultOptions(), nil, rec)
	o.newID = func() string { return "run-1" }
	o.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return o
}

func testRequest() Request {
	return Request{Params: testParams()}.WithDefaults()
}

func TestOptimize_Success(t *testing.T) {
	s := returning(t, milp.StatusOptimal)
	rec := &memRecorder{}
	o := newTestOptimizer(s, rec)

	res, err := o.Optimize(testRequest())
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, "optimal", res.Status)
	assert.Equal(t, "fake", res.Backend)
	assert.Len(t, res.Steps, 24)
	assert.Equal(t, 100.0, res.Summary.Load.ServedPercent)
	assert.Equal(t, milp.DefaultOptions(), s.opts)
	assert.Equal(t, time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC), res.StepTime(1))

	ev := rec.last()
	assert.Equal(t, metrics.StatusOptimal, ev.Status)
	assert.Equal(t, 24, ev.Steps)
	assert.Equal(t, 24*varsPerStep, ev.Variables)
	assert.Equal(t, 96, ev.Binaries)
	assert.Equal(t, res.Summary.Costs.Total, ev.TotalCost)
}

func TestOptimize_FeasibleStatus(t *testing.T) {
	o := newTestOptimizer(returning(t, milp.StatusFeasible), nil)
	res, err := o.Optimize(testRequest())
	require.NoError(t, err)
	assert.Equal(t, "feasible", res.Status)
}

func TestOptimize_NormalizesParams(t *testing.T) {
	o := newTestOptimizer(returning(t, milp.StatusOptimal), nil)
	req := testRequest()
	req.Params.Weather = "SUNNY"
	req.Params.GridPowerLimitKW = 2000
	res, err := o.Optimize(req)
	require.NoError(t, err)
	assert.Equal(t, "sunny", res.Params.Weather)
}

func TestOptimize_Failures(t *testing.T) {
	tests := []struct {
		name   string
		solver *fakeSolver
		req    func() Request
		status string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "short load profile",
			solver: failing(errors.New("must not be called")),
			req: func() Request {
				r := testRequest()
				r.LoadProfile = r.LoadProfile[:12]
				return r
			},
			status: metrics.StatusInvalid,
			check: func(t *testing.T, err error) {
				var verr *model.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "load_profile", verr.Field)
			},
		},
		{
			name:   "infeasible",
			solver: &fakeSolver{solve: func(*milp.Problem) (milp.Solution, error) { return milp.Solution{Status: milp.StatusInfeasible}, nil }},
			req:    testRequest,
			status: metrics.StatusInfeasible,
			check: func(t *testing.T, err error) {
				var ierr *model.InfeasibleError
				assert.ErrorAs(t, err, &ierr)
			},
		},
		{
			name:   "unbounded",
			solver: failing(milp.ErrUnbounded),
			req:    testRequest,
			status: metrics.StatusInfeasible,
			check: func(t *testing.T, err error) {
				var ierr *model.InfeasibleError
				require.ErrorAs(t, err, &ierr)
				assert.Contains(t, ierr.Error(), "unbounded")
			},
		},
		{
			name:   "solver unavailable",
			solver: failing(milp.ErrSolverUnavailable),
			req:    testRequest,
			status: metrics.StatusSolverError,
			check: func(t *testing.T, err error) {
				var serr *model.SolverError
				require.ErrorAs(t, err, &serr)
				assert.Equal(t, "fake", serr.Backend)
				assert.ErrorIs(t, err, milp.ErrSolverUnavailable)
			},
		},
		{
			name:   "time limit without incumbent",
			solver: failing(milp.ErrNoIncumbent),
			req:    testRequest,
			status: metrics.StatusSolverError,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, milp.ErrNoIncumbent)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			o := newTestOptimizer(tt.solver, rec)
			res, err := o.Optimize(tt.req())
			assert.Nil(t, res)
			tt.check(t, err)
			assert.Equal(t, tt.status, rec.last().Status)
		})
	}
}

func TestOptimize_ValidationSkipsSolver(t *testing.T) {
	s := failing(errors.New("unreachable"))
	o := newTestOptimizer(s, nil)
	_, err := o.Optimize(Request{Params: testParams()})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, s.calls)
}

func TestOptimize_Concurrent(t *testing.T) {
	s := returning(t, milp.StatusOptimal)
	rec := &memRecorder{}
	o := NewOptimizer(s, milp.DefaultOptions(), nil, rec)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := o.Optimize(testRequest())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	ids := map[string]bool{}
	for _, r := range results {
		require.NotNil(t, r)
		ids[r.RunID] = true
		assert.Equal(t, results[0].Summary, r.Summary)
	}
	assert.Len(t, ids, len(results))
	assert.Len(t, rec.runs, len(results))
}

func TestPlanPoints(t *testing.T) {
	o := newTestOptimizer(returning(t, milp.StatusOptimal), nil)
	res, err := o.Optimize(testRequest())
	require.NoError(t, err)

	pts := PlanPoints(res)
	require.Len(t, pts, 24)
	assert.Equal(t, "run-1", pts[3].RunID)
	assert.Equal(t, res.StepTime(3), pts[3].Time)
	assert.Equal(t, res.Steps[3].Grid, pts[3].Fields["grid_kw"])
}

func TestDefaultProfilesAreCopies(t *testing.T) {
	p := DefaultLoadProfile()
	p[0] = -1
	assert.Equal(t, 800.0, DefaultLoadProfile()[0])
	assert.Len(t, DefaultPriceProfile(), 24)

	req := NewRequest()
	assert.Equal(t, model.DefaultSiteParams(), req.Params)
	assert.Empty(t, req.LoadProfile)
}
