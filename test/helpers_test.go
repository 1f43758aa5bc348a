package test

import (
	"os/exec"
	"testing"
	"time"

	"github.com/kilianp07/ems/core/dispatch"
	"github.com/kilianp07/ems/core/model"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
}

// sampleResult is a short hand-made plan used where no solver is needed.
func sampleResult(runID string) *dispatch.Result {
	p := model.DefaultSiteParams()
	p.NumDays = 1
	p.ResolutionMinutes = 60
	steps := make([]dispatch.Step, 24)
	for i := range steps {
		steps[i] = dispatch.Step{
			Index:         i,
			Hour:          float64(i),
			Load:          1000,
			Grid:          800,
			PVUsed:        200,
			BatteryLevel:  2000,
			HydrogenLevel: 50,
		}
	}
	res := &dispatch.Result{
		RunID:   runID,
		Status:  "optimal",
		Backend: "test",
		Params:  p,
		Start:   time.Now().UTC().Truncate(time.Hour).Add(-24 * time.Hour),
		Steps:   steps,
	}
	res.Summary.Days = 1
	res.Summary.ResolutionMinutes = 60
	res.Summary.Costs.Total = 4321
	return res
}
