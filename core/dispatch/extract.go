package dispatch

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/kilianp07/ems/core/milp"
)

// Step is the decided operating point of one time step. Power values are kW,
// storage levels kWh and kg.
type Step struct {
	Index int     `json:"index"`
	Hour  float64 `json:"hour"`
	Load  float64 `json:"load_kw"`
	Price float64 `json:"price"`

	Grid          float64 `json:"grid_kw"`
	LoadCurtailed float64 `json:"load_curtailed_kw"`

	Diesel   float64 `json:"diesel_kw"`
	DieselOn bool    `json:"diesel_on"`
	FuelUse  float64 `json:"fuel_use"`
	FuelCost float64 `json:"fuel_cost"`

	Charge       float64 `json:"battery_charge_kw"`
	Discharge    float64 `json:"battery_discharge_kw"`
	NetBattery   float64 `json:"battery_net_kw"`
	BatteryLevel float64 `json:"battery_level_kwh"`
	BatterySOC   float64 `json:"battery_soc_pct"`

	SolarAvailable float64 `json:"solar_available_kw"`
	PVUsed         float64 `json:"pv_used_kw"`
	PVCurtailed    float64 `json:"pv_curtailed_kw"`

	Electrolyzer   float64 `json:"electrolyzer_kw"`
	Segment1       float64 `json:"electrolyzer_seg1_kw"`
	Segment2       float64 `json:"electrolyzer_seg2_kw"`
	FuelCell       float64 `json:"fuel_cell_kw"`
	NetHydrogen    float64 `json:"h2_net_kw"`
	Production     float64 `json:"h2_production_kg_h"`
	HydrogenLevel  float64 `json:"h2_level_kg"`
	HydrogenEnd    float64 `json:"h2_level_end_kg"`
	HydrogenSOC    float64 `json:"h2_soc_pct"`
	FuelCellOMCost float64 `json:"fuel_cell_om_cost"`
}

type LoadSummary struct {
	TotalKWh      float64 `json:"total_kwh"`
	ServedKWh     float64 `json:"served_kwh"`
	ServedPercent float64 `json:"served_pct"`
}

type GridSummary struct {
	ImportKWh  float64 `json:"import_kwh"`
	ExportKWh  float64 `json:"export_kwh"`
	EnergyCost float64 `json:"energy_cost"`
}

type DieselSummary struct {
	EnergyKWh float64 `json:"energy_kwh"`
	FuelCost  float64 `json:"fuel_cost"`
}

type BatterySummary struct {
	CapacityAh    float64 `json:"capacity_ah"`
	ChargedKWh    float64 `json:"charged_kwh"`
	DischargedKWh float64 `json:"discharged_kwh"`
	OMCost        float64 `json:"om_cost"`
}

type SolarSummary struct {
	AvailableKWh float64 `json:"available_kwh"`
	UsedKWh      float64 `json:"used_kwh"`
	UsedPercent  float64 `json:"used_pct"`
}

type HydrogenSummary struct {
	ElectrolyzerKWh      float64 `json:"electrolyzer_kwh"`
	FuelCellKWh          float64 `json:"fuel_cell_kwh"`
	ProducedKg           float64 `json:"produced_kg"`
	ConsumedKg           float64 `json:"consumed_kg"`
	FuelCellOMCost       float64 `json:"fuel_cell_om_cost"`
	ElectrolyzerOMCost   float64 `json:"electrolyzer_om_cost"`
	RoundTripPercent     float64 `json:"round_trip_efficiency_pct"`
	ElectrolyzerKWhPerKg float64 `json:"electrolyzer_kwh_per_kg"`
}

type CostSummary struct {
	Grid           float64 `json:"grid"`
	DieselFuel     float64 `json:"diesel_fuel"`
	PVEnergy       float64 `json:"pv_energy"`
	BatteryOM      float64 `json:"battery_om"`
	FuelCellOM     float64 `json:"fuel_cell_om"`
	ElectrolyzerOM float64 `json:"electrolyzer_om"`
	Total          float64 `json:"total"`
	PerKWh         float64 `json:"per_kwh"`
}

// Summary aggregates a plan over the whole horizon.
type Summary struct {
	Days              int    `json:"period_days"`
	ResolutionMinutes int    `json:"resolution_minutes"`
	Weather           string `json:"weather"`

	Load     LoadSummary     `json:"load"`
	Grid     GridSummary     `json:"grid"`
	Diesel   DieselSummary   `json:"diesel"`
	Battery  BatterySummary  `json:"battery"`
	Solar    SolarSummary    `json:"solar"`
	Hydrogen HydrogenSummary `json:"hydrogen"`
	Costs    CostSummary     `json:"costs"`
}

// Plan is the interpreted solution of a Model.
type Plan struct {
	Status  milp.Status
	Steps   []Step
	Summary Summary
	// HydrogenDrift is the largest gap between a step's forward-derived end
	// level and the solved level of the following step.
	HydrogenDrift float64
}

// ErrNoSolution is returned by Extract for a solution without values.
var ErrNoSolution = errors.New("dispatch: solution carries no values")

// Extract reads the solved variables of m into a plan. It does not modify m
// or sol and returns the same plan when called twice.
func Extract(m *Model, sol milp.Solution) (*Plan, error) {
	if !sol.Status.HasSolution() {
		return nil, ErrNoSolution
	}
	if len(sol.Values) != len(m.Problem.Vars) {
		return nil, fmt.Errorf("dispatch: %d values for %d variables", len(sol.Values), len(m.Problem.Vars))
	}
	x := func(v milp.Var) float64 { return sol.Values[v] }
	h := m.Site.StepHours()
	rate := FuelCellKgPerKWh()

	steps := make([]Step, len(m.Steps))
	for t, v := range m.Steps {
		s := Step{
			Index:          t,
			Hour:           float64(t) * h,
			Load:           m.Series.Load[t],
			Price:          m.Series.Price[t],
			Grid:           x(v.Grid),
			LoadCurtailed:  x(v.LoadCurtailed),
			Diesel:         x(v.Diesel),
			DieselOn:       x(v.DieselOn) > 0.5,
			FuelUse:        x(v.Fuel),
			Charge:         x(v.Charge),
			Discharge:      x(v.Discharge),
			BatteryLevel:   x(v.Battery),
			SolarAvailable: m.Series.Solar[t],
			PVUsed:         x(v.PVUsed),
			PVCurtailed:    x(v.PVCurtailed),
			Electrolyzer:   x(v.Electrolyzer),
			Segment1:       x(v.Segment1),
			Segment2:       x(v.Segment2),
			FuelCell:       x(v.FuelCell),
			Production:     x(v.Production),
			HydrogenLevel:  x(v.Hydrogen),
		}
		s.FuelCost = s.FuelUse * m.Site.FuelPrice
		s.NetBattery = s.Discharge - s.Charge
		s.NetHydrogen = s.FuelCell - s.Electrolyzer
		s.BatterySOC = pct(s.BatteryLevel, m.BatteryCapacityKWh)
		s.HydrogenEnd = s.HydrogenLevel + s.Production*h - s.FuelCell*h*rate
		s.HydrogenSOC = pct(s.HydrogenEnd, HydrogenTankKg)
		s.FuelCellOMCost = s.FuelCell * h * FuelCellOMCost
		steps[t] = s
	}

	var drift float64
	for t, s := range steps {
		next := steps[(t+1)%len(steps)].HydrogenLevel
		drift = math.Max(drift, math.Abs(s.HydrogenEnd-next))
	}

	return &Plan{
		Status:        sol.Status,
		Steps:         steps,
		Summary:       summarize(m, steps, sol.Objective),
		HydrogenDrift: drift,
	}, nil
}

func summarize(m *Model, steps []Step, objective float64) Summary {
	h := m.Site.StepHours()
	energy := func(f func(Step) float64) float64 {
		return lo.SumBy(steps, f) * h
	}

	load := energy(func(s Step) float64 { return s.Load })
	served := energy(func(s Step) float64 { return s.Load - s.LoadCurtailed })
	imported := energy(func(s Step) float64 { return math.Max(s.Grid, 0) })
	exported := energy(func(s Step) float64 { return math.Max(-s.Grid, 0) })
	gridCost := lo.SumBy(steps, func(s Step) float64 { return math.Max(s.Grid, 0) * s.Price * h })
	dieselKWh := energy(func(s Step) float64 { return s.Diesel })
	fuelCost := lo.SumBy(steps, func(s Step) float64 { return s.FuelCost })
	charged := energy(func(s Step) float64 { return s.Charge })
	discharged := energy(func(s Step) float64 { return s.Discharge })
	solarAvail := energy(func(s Step) float64 { return s.SolarAvailable })
	solarUsed := energy(func(s Step) float64 { return s.PVUsed })
	elecKWh := energy(func(s Step) float64 { return s.Electrolyzer })
	fcKWh := energy(func(s Step) float64 { return s.FuelCell })
	produced := energy(func(s Step) float64 { return s.Production })
	consumed := fcKWh * FuelCellKgPerKWh()

	batteryOM := discharged * m.Site.BatteryOMCost
	fcOM := fcKWh * FuelCellOMCost
	elecOM := elecKWh * ElectrolyzerOMCost
	pvCost := solarUsed * m.Site.PVEnergyCost

	var rte, kwhPerKg float64
	if elecKWh > 0 {
		rte = fcKWh / elecKWh * 100
	}
	if produced > 0 {
		kwhPerKg = elecKWh / produced
	}
	var perKWh float64
	if served > 0 {
		perKWh = objective / served
	}

	return Summary{
		Days:              m.Site.NumDays,
		ResolutionMinutes: m.Site.ResolutionMinutes,
		Weather:           m.Site.Weather,
		Load: LoadSummary{
			TotalKWh:      round2(load),
			ServedKWh:     round2(served),
			ServedPercent: round1(ratio(served, load)),
		},
		Grid: GridSummary{
			ImportKWh:  round2(imported),
			ExportKWh:  round2(exported),
			EnergyCost: round2(gridCost),
		},
		Diesel: DieselSummary{
			EnergyKWh: round2(dieselKWh),
			FuelCost:  round2(fuelCost),
		},
		Battery: BatterySummary{
			CapacityAh:    round2(m.Site.BatteryCapacityAh()),
			ChargedKWh:    round2(charged),
			DischargedKWh: round2(discharged),
			OMCost:        round2(batteryOM),
		},
		Solar: SolarSummary{
			AvailableKWh: round2(solarAvail),
			UsedKWh:      round2(solarUsed),
			UsedPercent:  round1(ratio(solarUsed, solarAvail)),
		},
		Hydrogen: HydrogenSummary{
			ElectrolyzerKWh:      round2(elecKWh),
			FuelCellKWh:          round2(fcKWh),
			ProducedKg:           round2(produced),
			ConsumedKg:           round2(consumed),
			FuelCellOMCost:       round2(fcOM),
			ElectrolyzerOMCost:   round2(elecOM),
			RoundTripPercent:     round1(rte),
			ElectrolyzerKWhPerKg: round2(kwhPerKg),
		},
		Costs: CostSummary{
			Grid:           round2(gridCost),
			DieselFuel:     round2(fuelCost),
			PVEnergy:       round2(pvCost),
			BatteryOM:      round2(batteryOM),
			FuelCellOM:     round2(fcOM),
			ElectrolyzerOM: round2(elecOM),
			Total:          round2(objective),
			PerKWh:         round2(perKWh),
		},
	}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den * 100
}

func pct(v, capacity float64) float64 { return ratio(v, capacity) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
