package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ems/app"
	"github.com/kilianp07/ems/config"
	"github.com/kilianp07/ems/core/dispatch"
	coremetrics "github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/core/scenario"
	"github.com/kilianp07/ems/pkg/export"
)

var (
	scenarioPath string
	csvOut       string
	jsonOut      string
	showSteps    bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Solve one scenario and print the plan summary",
	RunE:  optimizeScenario,
}

func init() {
	optimizeCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario file (YAML or JSON); defaults to the configured site")
	optimizeCmd.Flags().StringVar(&csvOut, "csv", "", "write the time series as CSV to this file")
	optimizeCmd.Flags().StringVar(&jsonOut, "json", "", "write the full result as JSON to this file")
	optimizeCmd.Flags().BoolVar(&showSteps, "steps", false, "print every step")
	rootCmd.AddCommand(optimizeCmd)
}

func optimizeScenario(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	req := dispatch.Request{Params: cfg.Site}.WithDefaults()
	if scenarioPath != "" {
		if req, err = scenario.Load(scenarioPath); err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
	}

	opt, sink, err := app.NewOptimizer(cfg)
	if err != nil {
		return err
	}
	defer coremetrics.CloseSink(sink)

	res, err := opt.Optimize(req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := renderSummary(out, res); err != nil {
		return err
	}
	if showSteps {
		if err := renderSteps(out, res); err != nil {
			return err
		}
	}
	if csvOut != "" {
		if err := writeFile(csvOut, func(w io.Writer) error { return export.WriteCSV(w, res) }); err != nil {
			return err
		}
	}
	if jsonOut != "" {
		if err := writeFile(jsonOut, func(w io.Writer) error { return export.WriteJSON(w, res) }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func tableOptions() tablewriter.Option {
	return tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
	})
}

func str(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func renderSummary(w io.Writer, res *dispatch.Result) error {
	s := res.Summary
	fmt.Fprintf(w, "run %s: %s (%s, %.1fs), %d days at %d min, %s\n",
		res.RunID, res.Status, res.Backend, res.SolveSeconds, s.Days, s.ResolutionMinutes, s.Weather)

	table := tablewriter.NewTable(w, tableOptions())
	table.Header([]string{"Metric", "Value"})
	rows := [][]string{
		{"Load total kWh", str(s.Load.TotalKWh)},
		{"Load served %", str(s.Load.ServedPercent)},
		{"Grid import kWh", str(s.Grid.ImportKWh)},
		{"Diesel kWh", str(s.Diesel.EnergyKWh)},
		{"Battery charged kWh", str(s.Battery.ChargedKWh)},
		{"Battery discharged kWh", str(s.Battery.DischargedKWh)},
		{"Solar used %", str(s.Solar.UsedPercent)},
		{"H2 produced kg", str(s.Hydrogen.ProducedKg)},
		{"H2 consumed kg", str(s.Hydrogen.ConsumedKg)},
		{"H2 round trip %", str(s.Hydrogen.RoundTripPercent)},
		{"Grid cost", str(s.Costs.Grid)},
		{"Diesel fuel cost", str(s.Costs.DieselFuel)},
		{"PV energy cost", str(s.Costs.PVEnergy)},
		{"Battery O&M", str(s.Costs.BatteryOM)},
		{"Fuel cell O&M", str(s.Costs.FuelCellOM)},
		{"Electrolyzer O&M", str(s.Costs.ElectrolyzerOM)},
		{"Total cost", str(s.Costs.Total)},
		{"Cost per kWh", str(s.Costs.PerKWh)},
	}
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderSteps(w io.Writer, res *dispatch.Result) error {
	table := tablewriter.NewTable(w, tableOptions())
	table.Header([]string{"Time", "Load", "Grid", "Diesel", "PV", "Bat +", "Bat -", "SOC %", "Elec", "FC", "H2 kg"})
	for i, s := range res.Steps {
		row := []string{
			res.StepTime(i).Format("01-02 15:04"),
			str(s.Load), str(s.Grid), str(s.Diesel), str(s.PVUsed),
			str(s.Charge), str(s.Discharge), str(s.BatterySOC),
			str(s.Electrolyzer), str(s.FuelCell), str(s.HydrogenLevel),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
