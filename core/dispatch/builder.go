package dispatch

import (
	"fmt"
	"math"

	"github.com/kilianp07/ems/core/milp"
	"github.com/kilianp07/ems/core/model"
)

// StepVars indexes the decision variables of one time step.
type StepVars struct {
	Grid          milp.Var
	LoadCurtailed milp.Var

	Diesel   milp.Var
	DieselOn milp.Var
	Fuel     milp.Var

	Charge      milp.Var
	Discharge   milp.Var
	Battery     milp.Var
	Discharging milp.Var

	PVUsed      milp.Var
	PVCurtailed milp.Var

	Electrolyzer milp.Var
	Segment1     milp.Var
	Segment2     milp.Var
	Segment2On   milp.Var
	FuelCell     milp.Var
	FuelCellMode milp.Var
	Hydrogen     milp.Var
	Production   milp.Var
}

// Model is a built dispatch problem together with the data it was built from.
type Model struct {
	Site    model.Site
	Series  Series
	Curve   ElectrolyzerCurve
	Problem *milp.Problem
	Steps   []StepVars

	BatteryCapacityKWh float64
	BatteryPowerKW     float64
	BatteryInitialKWh  float64
	HydrogenInitialKg  float64
}

const varsPerStep = 19

// Build creates the variables, constraints and objective for site over the
// given series.
func Build(site model.Site, series Series) (*Model, error) {
	T := site.Steps()
	if T < 1 {
		return nil, &model.ValidationError{Field: "num_days", Reason: "empty horizon"}
	}
	if err := series.check(T); err != nil {
		return nil, err
	}

	capKWh := site.BatteryEnergyKWh()
	m := &Model{
		Site:               site,
		Series:             series,
		Curve:              DefaultElectrolyzerCurve(),
		Problem:            milp.NewProblem("microgrid_dispatch", T*varsPerStep),
		Steps:              make([]StepVars, T),
		BatteryCapacityKWh: capKWh,
		BatteryPowerKW:     capKWh * BatteryPowerRatio,
		BatteryInitialKWh:  capKWh * BatteryInitialSOC,
		HydrogenInitialKg:  HydrogenTankKg * HydrogenInitialSOC,
	}
	for t := range m.Steps {
		m.Steps[t] = m.newStep(t)
	}
	for t := range m.Steps {
		m.constrainStep(t)
	}
	m.constrainStorage()
	m.Problem.Minimize(m.objective())
	return m, nil
}

func (m *Model) newStep(t int) StepVars {
	p := m.Problem
	name := func(base string) string { return fmt.Sprintf("%s_%d", base, t) }
	inf := math.Inf(1)
	g := m.Site.GridPowerLimitKW
	pmax := m.BatteryPowerKW
	return StepVars{
		Grid:          p.Continuous(name("grid"), -g, g),
		LoadCurtailed: p.Continuous(name("load_curtailed"), 0, inf),

		Diesel:   p.Continuous(name("diesel"), 0, m.Site.DieselCapacityKW),
		DieselOn: p.Binary(name("diesel_on")),
		Fuel:     p.Continuous(name("fuel"), 0, inf),

		Charge:      p.Continuous(name("charge"), 0, pmax),
		Discharge:   p.Continuous(name("discharge"), 0, pmax),
		Battery:     p.Continuous(name("battery"), BatteryMinSOC*m.BatteryCapacityKWh, BatteryMaxSOC*m.BatteryCapacityKWh),
		Discharging: p.Binary(name("battery_mode")),

		PVUsed:      p.Continuous(name("pv_used"), 0, inf),
		PVCurtailed: p.Continuous(name("pv_curtailed"), 0, inf),

		Electrolyzer: p.Continuous(name("electrolyzer"), 0, ElectrolyzerCapacityKW),
		Segment1:     p.Continuous(name("elec_seg1"), 0, m.Curve.Width1),
		Segment2:     p.Continuous(name("elec_seg2"), 0, m.Curve.Width2),
		Segment2On:   p.Binary(name("elec_seg2_on")),
		FuelCell:     p.Continuous(name("fuel_cell"), 0, FuelCellCapacityKW),
		FuelCellMode: p.Binary(name("h2_mode")),
		Hydrogen:     p.Continuous(name("h2_level"), HydrogenMinSOC*HydrogenTankKg, HydrogenMaxSOC*HydrogenTankKg),
		Production:   p.Continuous(name("h2_production"), 0, inf),
	}
}

func (m *Model) constrainStep(t int) {
	p := m.Problem
	v := m.Steps[t]
	name := func(base string) string { return fmt.Sprintf("%s_%d", base, t) }
	dmax := m.Site.DieselCapacityKW
	pmax := m.BatteryPowerKW

	p.Constrain(name("power_balance"), milp.Sum(
		milp.T(1, v.PVUsed), milp.T(1, v.Diesel), milp.T(1, v.Discharge), milp.T(1, v.Grid),
		milp.T(1, v.FuelCell), milp.T(1, v.LoadCurtailed), milp.T(-1, v.Charge), milp.T(-1, v.Electrolyzer),
	), milp.EQ, m.Series.Load[t])
	p.Constrain(name("pv_balance"), milp.Sum(milp.T(1, v.PVUsed), milp.T(1, v.PVCurtailed)), milp.EQ, m.Series.Solar[t])

	p.Constrain(name("diesel_min"), milp.Sum(milp.T(1, v.Diesel), milp.T(-DieselMinLoadRatio*dmax, v.DieselOn)), milp.GE, 0)
	p.Constrain(name("diesel_max"), milp.Sum(milp.T(1, v.Diesel), milp.T(-dmax, v.DieselOn)), milp.LE, 0)
	p.Constrain(name("fuel_use"), milp.Sum(milp.T(1, v.Fuel), milp.T(-FuelSlope, v.Diesel), milp.T(-FuelIntercept, v.DieselOn)), milp.GE, 0)

	// charging and discharging are mutually exclusive
	p.Constrain(name("charge_limit"), milp.Sum(milp.T(1, v.Charge), milp.T(pmax, v.Discharging)), milp.LE, pmax)
	p.Constrain(name("discharge_limit"), milp.Sum(milp.T(1, v.Discharge), milp.T(-pmax, v.Discharging)), milp.LE, 0)

	c := m.Curve
	p.Constrain(name("elec_split"), milp.Sum(milp.T(1, v.Electrolyzer), milp.T(-1, v.Segment1), milp.T(-1, v.Segment2)), milp.EQ, 0)
	p.Constrain(name("h2_production"), milp.Sum(milp.T(1, v.Production), milp.T(-c.Slope1, v.Segment1), milp.T(-c.Slope2, v.Segment2)), milp.EQ, 0)
	// segment 1 must be full before segment 2 carries power
	p.Constrain(name("elec_seg1_fill"), milp.Sum(milp.T(1, v.Segment1), milp.T(-c.Width1, v.Segment2On)), milp.GE, 0)
	p.Constrain(name("elec_seg2_on"), milp.Sum(milp.T(1, v.Segment2), milp.T(-c.Width2, v.Segment2On)), milp.LE, 0)

	p.Constrain(name("fuel_cell_mode"), milp.Sum(milp.T(1, v.FuelCell), milp.T(-FuelCellCapacityKW, v.FuelCellMode)), milp.LE, 0)
	p.Constrain(name("electrolyzer_mode"), milp.Sum(milp.T(1, v.Electrolyzer), milp.T(ElectrolyzerCapacityKW, v.FuelCellMode)), milp.LE, ElectrolyzerCapacityKW)
}

// constrainStorage links consecutive storage levels and closes both cycles:
// the level after the last step must equal the initial level.
func (m *Model) constrainStorage() {
	p := m.Problem
	h := m.Site.StepHours()
	rate := FuelCellKgPerKWh()
	T := len(m.Steps)

	p.Constrain("battery_initial", milp.Sum(milp.T(1, m.Steps[0].Battery)), milp.EQ, m.BatteryInitialKWh)
	p.Constrain("h2_initial", milp.Sum(milp.T(1, m.Steps[0].Hydrogen)), milp.EQ, m.HydrogenInitialKg)

	for t := 0; t < T; t++ {
		v := m.Steps[t]
		battery := milp.Sum(
			milp.T(-1, v.Battery),
			milp.T(-h*BatteryChargeEfficiency, v.Charge),
			milp.T(h/BatteryDischargeEfficiency, v.Discharge),
		)
		hydrogen := milp.Sum(
			milp.T(-1, v.Hydrogen),
			milp.T(-h, v.Production),
			milp.T(h*rate, v.FuelCell),
		)
		if t == T-1 {
			p.Constrain("battery_cyclic", battery, milp.EQ, -m.BatteryInitialKWh)
			p.Constrain("h2_cyclic", hydrogen, milp.EQ, -m.HydrogenInitialKg)
			continue
		}
		next := m.Steps[t+1]
		p.Constrain(fmt.Sprintf("battery_dynamics_%d", t), append(battery, milp.T(1, next.Battery)), milp.EQ, 0)
		p.Constrain(fmt.Sprintf("h2_dynamics_%d", t), append(hydrogen, milp.T(1, next.Hydrogen)), milp.EQ, 0)
	}
}

func (m *Model) objective() milp.Expr {
	h := m.Site.StepHours()
	s := m.Site
	obj := make(milp.Expr, 0, len(m.Steps)*8)
	for t, v := range m.Steps {
		obj = append(obj,
			milp.T(h*m.Series.Price[t], v.Grid),
			milp.T(h*s.LoadCurtailCost, v.LoadCurtailed),
			milp.T(s.FuelPrice, v.Fuel),
			milp.T(h*s.PVEnergyCost, v.PVUsed),
			milp.T(h*s.BatteryOMCost, v.Discharge),
			milp.T(h*FuelCellOMCost, v.FuelCell),
			milp.T(h*ElectrolyzerOMCost, v.Electrolyzer),
		)
	}
	return obj
}
