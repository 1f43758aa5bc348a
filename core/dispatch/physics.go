package dispatch

// Fixed parameters of the physical model. They are not part of the request.
const (
	BatteryChargeEfficiency    = 0.95
	BatteryDischargeEfficiency = 0.95
	BatteryMinSOC              = 0.1
	BatteryMaxSOC              = 0.9
	BatteryInitialSOC          = 0.5
	// BatteryPowerRatio is the charge and discharge power limit per kWh of storage (C/2).
	BatteryPowerRatio = 0.5

	DieselMinLoadRatio = 0.1
	// Fuel use per step: FuelSlope per kW plus FuelIntercept while running.
	FuelSlope     = 0.18
	FuelIntercept = 48.0

	ElectrolyzerCapacityKW = 1000.0
	FuelCellCapacityKW     = 800.0
	HydrogenTankKg         = 100.0
	HydrogenMinSOC         = 0.1
	HydrogenMaxSOC         = 0.9
	HydrogenInitialSOC     = 0.5
	FuelCellEfficiency     = 0.60
	// HydrogenLHV is the lower heating value of hydrogen in kWh/kg.
	HydrogenLHV = 33.3

	FuelCellOMCost     = 1.5
	ElectrolyzerOMCost = 0.5

	ElectrolyzerBreakpoint     = 0.20
	ElectrolyzerEffAtBreak     = 0.80
	ElectrolyzerEffAtFullPower = 0.75
)

// FuelCellKgPerKWh is the hydrogen consumed per kWh of fuel-cell output.
func FuelCellKgPerKWh() float64 {
	return 1.0 / (HydrogenLHV * FuelCellEfficiency)
}

// ElectrolyzerCurve is the two-segment piecewise-linear production curve.
// Segment 1 covers [0, Width1] kW at Slope1 kg/h per kW, segment 2 the
// remaining Width2 kW at Slope2.
type ElectrolyzerCurve struct {
	Width1 float64
	Width2 float64
	Slope1 float64
	Slope2 float64
}

// NewElectrolyzerCurve derives the segments from the efficiencies at the
// breakpoint and at full power.
func NewElectrolyzerCurve(capacityKW, breakpoint, effBreak, effFull, lhv float64) ElectrolyzerCurve {
	p1 := capacityKW * breakpoint
	p2 := capacityKW
	h1 := p1 * effBreak / lhv
	h2 := p2 * effFull / lhv
	c := ElectrolyzerCurve{Width1: p1, Width2: p2 - p1}
	if p1 > 0 {
		c.Slope1 = h1 / p1
	}
	if p2-p1 > 0 {
		c.Slope2 = (h2 - h1) / (p2 - p1)
	}
	return c
}

// DefaultElectrolyzerCurve is the curve of the installed electrolyzer.
func DefaultElectrolyzerCurve() ElectrolyzerCurve {
	return NewElectrolyzerCurve(ElectrolyzerCapacityKW, ElectrolyzerBreakpoint,
		ElectrolyzerEffAtBreak, ElectrolyzerEffAtFullPower, HydrogenLHV)
}

// Production returns the hydrogen rate in kg/h for a segment split.
func (c ElectrolyzerCurve) Production(seg1, seg2 float64) float64 {
	return c.Slope1*seg1 + c.Slope2*seg2
}
