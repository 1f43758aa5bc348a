package optimize

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/dispatch"
	"github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/core/model"
	"github.com/kilianp07/ems/internal/eventbus"
	"github.com/kilianp07/ems/pkg/export"
)

type fakeRunner struct {
	mu  sync.Mutex
	got []dispatch.Request
	res *dispatch.Result
	err error
}

func (f *fakeRunner) Optimize(req dispatch.Request) (*dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	return f.res, f.err
}

func sampleResult() *dispatch.Result {
	p := model.DefaultSiteParams()
	p.ResolutionMinutes = 60
	return &dispatch.Result{
		RunID:  "abc",
		Status: "optimal",
		Params: p,
		Start:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Steps: []dispatch.Step{
			{Index: 0, Load: 900, Grid: 900},
			{Index: 1, Hour: 1, Load: 850, Grid: 850},
		},
	}
}

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestOptimize_JSON(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	bus := eventbus.NewTyped[*dispatch.Result]()
	sub := bus.Subscribe()
	h := NewHandler(runner, bus, 0, nil)

	rr := serve(h, http.MethodPost, "/api/v1/optimize", `{"params":{"num_days":1},"load_profile":[100,200]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "abc", out["run_id"])

	require.Len(t, runner.got, 1)
	req := runner.got[0]
	assert.Equal(t, 1, req.Params.NumDays)
	assert.Equal(t, model.DefaultSiteParams().SolarCapacityKW, req.Params.SolarCapacityKW)
	assert.Equal(t, []float64{100, 200}, req.LoadProfile)
	assert.Equal(t, dispatch.DefaultPriceProfile(), req.PriceProfile)

	select {
	case got := <-sub:
		assert.Equal(t, "abc", got.RunID)
	case <-time.After(time.Second):
		t.Fatal("result not published")
	}
}

func TestOptimize_EmptyBodyUsesDefaults(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	rr := serve(NewHandler(runner, nil, 0, nil), http.MethodPost, "/api/v1/optimize", `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, runner.got, 1)
	assert.Equal(t, dispatch.NewRequest().WithDefaults(), runner.got[0])
}

func TestOptimize_CSV(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	rr := serve(NewHandler(runner, nil, 0, nil), http.MethodPost, "/api/v1/optimize?format=csv", `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "dispatch-abc.csv")

	rows, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.Header(), rows[0])
}

func TestOptimize_UnsupportedFormat(t *testing.T) {
	rr := serve(NewHandler(&fakeRunner{res: sampleResult()}, nil, 0, nil), http.MethodPost, "/api/v1/optimize?format=xml", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOptimize_ErrorMapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  int
		field string
	}{
		{"validation", &model.ValidationError{Field: "load_profile", Reason: "value at index 3 is not finite"}, http.StatusBadRequest, "load_profile"},
		{"infeasible", &model.InfeasibleError{}, http.StatusUnprocessableEntity, ""},
		{"solver", &model.SolverError{Backend: "cbc", Err: errors.New("not found")}, http.StatusServiceUnavailable, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(NewHandler(&fakeRunner{err: tt.err}, nil, 0, nil), http.MethodPost, "/api/v1/optimize", `{}`)
			assert.Equal(t, tt.code, rr.Code)
			var out errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
			assert.NotEmpty(t, out.Error)
			assert.Equal(t, tt.field, out.Field)
		})
	}
}

func TestOptimize_BadBody(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	h := NewHandler(runner, nil, 0, nil)

	rr := serve(h, http.MethodPost, "/api/v1/optimize", `{"params":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = serve(h, http.MethodPost, "/api/v1/optimize", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, runner.got)
}

func TestOptimize_BodyTooLarge(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	body := `{"load_profile":[` + strings.Repeat("1,", 100) + `1]}`
	rr := serve(NewHandler(runner, nil, 32, nil), http.MethodPost, "/api/v1/optimize", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, runner.got)
}

func TestDefaults(t *testing.T) {
	rr := serve(NewHandler(&fakeRunner{}, nil, 0, nil), http.MethodGet, "/api/v1/optimize/defaults", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var req dispatch.Request
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &req))
	assert.Equal(t, model.DefaultSiteParams(), req.Params)
	assert.Equal(t, dispatch.DefaultLoadProfile(), req.LoadProfile)
	assert.Equal(t, dispatch.DefaultPriceProfile(), req.PriceProfile)
}

func TestSetSite(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	h := NewHandler(runner, nil, 0, nil)
	site := model.DefaultSiteParams()
	site.DieselCapacityKW = 0
	h.SetSite(site)

	rr := serve(h, http.MethodPost, "/api/v1/optimize", `{"params":{"num_days":3}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, runner.got, 1)
	assert.Zero(t, runner.got[0].Params.DieselCapacityKW)
	assert.Equal(t, 3, runner.got[0].Params.NumDays)

	rr = serve(h, http.MethodGet, "/api/v1/optimize/defaults", "")
	var req dispatch.Request
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &req))
	assert.Zero(t, req.Params.DieselCapacityKW)
}

func TestMethodsAndStatus(t *testing.T) {
	h := NewHandler(&fakeRunner{}, nil, 0, nil)
	rr := serve(h, http.MethodGet, "/api/v1/optimize", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"method GET not allowed"}`, rr.Body.String())

	rr = serve(h, http.MethodDelete, "/api/v1/runs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = serve(h, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(h, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

type fakeHistory struct {
	limit int
	err   error
}

func (f *fakeHistory) Recent(limit int) ([]metrics.RunEvent, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []metrics.RunEvent{{RunID: "r2", Status: metrics.StatusOptimal}, {RunID: "r1"}}, nil
}

func TestRuns(t *testing.T) {
	h := NewHandler(&fakeRunner{}, nil, 0, nil)
	rr := serve(h, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	hist := &fakeHistory{}
	h.SetHistory(hist)
	rr = serve(h, http.MethodGet, "/api/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, hist.limit)
	var runs []metrics.RunEvent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].RunID)

	rr = serve(h, http.MethodGet, "/api/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	hist.err = errors.New("disk full")
	rr = serve(h, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestOptimize_Gzip(t *testing.T) {
	res := sampleResult()
	res.Steps = make([]dispatch.Step, 96)
	h := NewHandler(&fakeRunner{res: res}, nil, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/optimize", strings.NewReader(`{}`))
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	var out dispatch.Result
	require.NoError(t, json.NewDecoder(zr).Decode(&out))
	assert.Len(t, out.Steps, 96)
}
