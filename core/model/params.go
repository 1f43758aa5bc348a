package model

import (
	"math"
	"strings"
)

// Weather selects the solar generation shape used for the horizon.
type Weather string

const (
	WeatherSunny Weather = "sunny"
	WeatherRainy Weather = "rainy"
)

// ParseWeather is case-insensitive. Unknown values fall back to sunny.
func ParseWeather(s string) Weather {
	switch Weather(strings.ToLower(strings.TrimSpace(s))) {
	case WeatherRainy:
		return WeatherRainy
	default:
		return WeatherSunny
	}
}

// Supported time resolutions in minutes.
var SupportedResolutions = []int{15, 30, 60}

const (
	MinDays           = 1
	MaxDays           = 30
	DefaultResolution = 30

	MinGridPowerKW     = 100
	MinBatteryEnergyWh = 1000
	MinBatteryVoltageV = 12
)

// SiteParams describes the microgrid and tariff for one optimization run.
type SiteParams struct {
	NumDays           int     `json:"num_days" yaml:"num_days"`
	ResolutionMinutes int     `json:"resolution_minutes" yaml:"resolution_minutes"`
	GridPowerLimitKW  float64 `json:"grid_power_limit_kw" yaml:"grid_power_limit_kw"`
	SolarCapacityKW   float64 `json:"solar_capacity_kw" yaml:"solar_capacity_kw"`
	BatteryEnergyWh   float64 `json:"battery_energy_wh" yaml:"battery_energy_wh"`
	BatteryVoltageV   float64 `json:"battery_voltage_v" yaml:"battery_voltage_v"`
	DieselCapacityKW  float64 `json:"diesel_capacity_kw" yaml:"diesel_capacity_kw"`
	FuelPrice         float64 `json:"fuel_price" yaml:"fuel_price"`
	PVEnergyCost      float64 `json:"pv_energy_cost" yaml:"pv_energy_cost"`
	LoadCurtailCost   float64 `json:"load_curtail_cost" yaml:"load_curtail_cost"`
	BatteryOMCost     float64 `json:"battery_om_cost" yaml:"battery_om_cost"`
	Weather           string  `json:"weather" yaml:"weather"`
}

// DefaultSiteParams returns the reference site: a 2 day horizon at 30 minute
// resolution with a 4 MWh battery and a 2.2 MW diesel generator.
func DefaultSiteParams() SiteParams {
	return SiteParams{
		NumDays:           2,
		ResolutionMinutes: DefaultResolution,
		GridPowerLimitKW:  2000,
		SolarCapacityKW:   2000,
		BatteryEnergyWh:   4_000_000,
		BatteryVoltageV:   100,
		DieselCapacityKW:  2200,
		FuelPrice:         95,
		PVEnergyCost:      2.85,
		LoadCurtailCost:   50,
		BatteryOMCost:     6.085,
		Weather:           string(WeatherSunny),
	}
}

// Site is a SiteParams that went through Normalize.
type Site struct {
	SiteParams
}

// Sky returns the parsed weather class.
func (s Site) Sky() Weather { return Weather(s.Weather) }

// StepsPerHour is the number of decision steps per hour.
func (s Site) StepsPerHour() int { return 60 / s.ResolutionMinutes }

// StepHours is the duration of one step in hours.
func (s Site) StepHours() float64 { return float64(s.ResolutionMinutes) / 60 }

// Steps is the horizon length T.
func (s Site) Steps() int { return s.NumDays * 24 * s.StepsPerHour() }

// BatteryEnergyKWh converts the battery rating to kWh.
func (s Site) BatteryEnergyKWh() float64 { return s.BatteryEnergyWh / 1000 }

// BatteryCapacityAh is the battery rating in ampere-hours at the nominal voltage.
func (s Site) BatteryCapacityAh() float64 { return s.BatteryEnergyWh / s.BatteryVoltageV }

// Normalize clamps every field into its supported range. Non-finite numbers
// are rejected with a ValidationError naming the field.
func (p SiteParams) Normalize() (Site, error) {
	floats := []struct {
		name string
		val  float64
	}{
		{"grid_power_limit_kw", p.GridPowerLimitKW},
		{"solar_capacity_kw", p.SolarCapacityKW},
		{"battery_energy_wh", p.BatteryEnergyWh},
		{"battery_voltage_v", p.BatteryVoltageV},
		{"diesel_capacity_kw", p.DieselCapacityKW},
		{"fuel_price", p.FuelPrice},
		{"pv_energy_cost", p.PVEnergyCost},
		{"load_curtail_cost", p.LoadCurtailCost},
		{"battery_om_cost", p.BatteryOMCost},
	}
	for _, f := range floats {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return Site{}, &ValidationError{Field: f.name, Reason: "must be a finite number"}
		}
	}

	n := p
	n.NumDays = clampInt(p.NumDays, MinDays, MaxDays)
	n.ResolutionMinutes = snapResolution(p.ResolutionMinutes)
	n.GridPowerLimitKW = math.Max(MinGridPowerKW, p.GridPowerLimitKW)
	n.SolarCapacityKW = math.Max(0, p.SolarCapacityKW)
	n.BatteryEnergyWh = math.Max(MinBatteryEnergyWh, p.BatteryEnergyWh)
	n.BatteryVoltageV = math.Max(MinBatteryVoltageV, p.BatteryVoltageV)
	n.DieselCapacityKW = math.Max(0, p.DieselCapacityKW)
	n.FuelPrice = math.Max(0, p.FuelPrice)
	n.PVEnergyCost = math.Max(0, p.PVEnergyCost)
	n.LoadCurtailCost = math.Max(0, p.LoadCurtailCost)
	n.BatteryOMCost = math.Max(0, p.BatteryOMCost)
	n.Weather = string(ParseWeather(p.Weather))
	return Site{SiteParams: n}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// snapResolution keeps supported resolutions and maps anything else to the
// default resolution.
func snapResolution(m int) int {
	for _, r := range SupportedResolutions {
		if m == r {
			return m
		}
	}
	return DefaultResolution
}
