package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/milp"
	"github.com/kilianp07/ems/core/model"
)

func testParams() model.SiteParams {
	return model.SiteParams{
		NumDays:           1,
		ResolutionMinutes: 60,
		GridPowerLimitKW:  2000,
		SolarCapacityKW:   100,
		BatteryEnergyWh:   200_000,
		BatteryVoltageV:   48,
		DieselCapacityKW:  500,
		FuelPrice:         95,
		PVEnergyCost:      2.85,
		LoadCurtailCost:   50,
		BatteryOMCost:     6.085,
		Weather:           "sunny",
	}
}

func buildModel(t *testing.T, p model.SiteParams) *Model {
	t.Helper()
	site, err := p.Normalize()
	require.NoError(t, err)
	series, err := NewSeries(site, DefaultLoadProfile(), DefaultPriceProfile())
	require.NoError(t, err)
	m, err := Build(site, series)
	require.NoError(t, err)
	return m
}

// gridOnly serves the load from available solar and the grid while both
// storages idle at their initial level.
func gridOnly(m *Model) []float64 {
	vals := make([]float64, len(m.Problem.Vars))
	for t, v := range m.Steps {
		vals[v.PVUsed] = m.Series.Solar[t]
		vals[v.Grid] = m.Series.Load[t] - m.Series.Solar[t]
		vals[v.Battery] = m.BatteryInitialKWh
		vals[v.Hydrogen] = m.HydrogenInitialKg
	}
	return vals
}

func solved(m *Model, vals []float64) milp.Solution {
	return milp.Solution{Status: milp.StatusOptimal, Values: vals, Objective: m.Problem.ObjectiveValue(vals)}
}
