// Package export writes dispatch schedules for spreadsheets and scripts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/ems/core/dispatch"
)

type column struct {
	name  string
	value func(dispatch.Step) float64
}

var columns = []column{
	{"hour", func(s dispatch.Step) float64 { return s.Hour }},
	{"load_kw", func(s dispatch.Step) float64 { return s.Load }},
	{"price", func(s dispatch.Step) float64 { return s.Price }},
	{"grid_kw", func(s dispatch.Step) float64 { return s.Grid }},
	{"load_curtailed_kw", func(s dispatch.Step) float64 { return s.LoadCurtailed }},
	{"diesel_kw", func(s dispatch.Step) float64 { return s.Diesel }},
	{"diesel_on", func(s dispatch.Step) float64 {
		if s.DieselOn {
			return 1
		}
		return 0
	}},
	{"fuel_use", func(s dispatch.Step) float64 { return s.FuelUse }},
	{"battery_charge_kw", func(s dispatch.Step) float64 { return s.Charge }},
	{"battery_discharge_kw", func(s dispatch.Step) float64 { return s.Discharge }},
	{"battery_level_kwh", func(s dispatch.Step) float64 { return s.BatteryLevel }},
	{"battery_soc_pct", func(s dispatch.Step) float64 { return s.BatterySOC }},
	{"solar_available_kw", func(s dispatch.Step) float64 { return s.SolarAvailable }},
	{"pv_used_kw", func(s dispatch.Step) float64 { return s.PVUsed }},
	{"pv_curtailed_kw", func(s dispatch.Step) float64 { return s.PVCurtailed }},
	{"electrolyzer_kw", func(s dispatch.Step) float64 { return s.Electrolyzer }},
	{"fuel_cell_kw", func(s dispatch.Step) float64 { return s.FuelCell }},
	{"h2_production_kg_h", func(s dispatch.Step) float64 { return s.Production }},
	{"h2_level_kg", func(s dispatch.Step) float64 { return s.HydrogenLevel }},
	{"h2_soc_pct", func(s dispatch.Step) float64 { return s.HydrogenSOC }},
}

// Header returns the CSV header row written by WriteCSV.
func Header() []string {
	h := make([]string, 0, len(columns)+1)
	h = append(h, "timestamp")
	for _, c := range columns {
		h = append(h, c.name)
	}
	return h
}

// WriteJSON writes the full result to w.
func WriteJSON(w io.Writer, r *dispatch.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per step of r to w.
func WriteCSV(w io.Writer, r *dispatch.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for i, s := range r.Steps {
		rec := make([]string, 0, len(columns)+1)
		rec = append(rec, r.StepTime(i).Format(time.RFC3339))
		for _, c := range columns {
			rec = append(rec, strconv.FormatFloat(c.value(s), 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
