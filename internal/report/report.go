// Package report renders calibration run results as self-contained HTML
// pages using go-echarts: the measured friction curve with the fitted
// model overlaid, and the per-phase confidence figures.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/torqlab/motorcal/internal/calib"
)

// Run is the subset of a recorded calibration run the renderer needs.
type Run struct {
	RunID      string
	Success    bool
	ErrorCode  calib.ErrorCode
	TotalTime  float64
	Parameters calib.MotorParameters
	Confidence calib.Confidence
	Results    calib.TestResults
}

// Render writes the full report page for a run.
func Render(w io.Writer, run *Run) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Calibration %s", run.RunID)

	if chart := frictionChart(run); chart != nil {
		page.AddCharts(chart)
	}
	page.AddCharts(confidenceChart(run))

	return page.Render(w)
}

// frictionChart plots the per-velocity steady-state torque estimates with
// the fitted Coulomb+viscous model overlaid. Returns nil when the run has
// no friction curve to show.
func frictionChart(run *Run) components.Charter {
	curve := run.Results.FrictionCurve
	if len(curve) == 0 {
		return nil
	}

	measured := make([]opts.ScatterData, 0, len(curve))
	maxAbsV := 0.0
	for _, p := range curve {
		measured = append(measured, opts.ScatterData{Value: []interface{}{p.Velocity, p.Tau}})
		if math.Abs(p.Velocity) > maxAbsV {
			maxAbsV = math.Abs(p.Velocity)
		}
	}
	pad := maxAbsV * 1.1
	if pad == 0 {
		pad = 1.0
	}

	subtitle := fmt.Sprintf("τ_c=%.4f Nm  b=%.5f Nm·s/rad", run.Parameters.FrictionCoulomb, run.Parameters.FrictionViscous)
	if f := run.Results.Friction; f != nil {
		subtitle += fmt.Sprintf("  R²=%.2f", f.RSquared)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Friction Curve", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Friction Curve", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "ω (rad/s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "τ (Nm)", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("measured", measured, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	line := charts.NewLine()
	const steps = 60
	fitted := make([]opts.LineData, 0, steps+1)
	for i := 0; i <= steps; i++ {
		v := -maxAbsV + 2*maxAbsV*float64(i)/steps
		fitted = append(fitted, opts.LineData{Value: []interface{}{v, modelTorque(run.Parameters, v)}})
	}
	line.AddSeries("fitted model", fitted, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}))

	scatter.Overlap(line)
	return scatter
}

// modelTorque evaluates the fitted Coulomb+viscous friction model at a
// velocity, with the sign following the motion.
func modelTorque(p calib.MotorParameters, v float64) float64 {
	if v == 0 {
		return 0
	}
	return math.Copysign(p.FrictionCoulomb, v) + p.FrictionViscous*v
}

// confidenceChart renders the per-phase confidence figures as a bar chart.
func confidenceChart(run *Run) components.Charter {
	x := []string{"Overall", "Inertia", "Friction"}
	y := []opts.BarData{
		{Value: run.Confidence.Overall},
		{Value: run.Confidence.Inertia},
		{Value: run.Confidence.Friction},
	}

	outcome := "success"
	if !run.Success {
		outcome = fmt.Sprintf("failed (%s)", run.ErrorCode)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Confidence",
			Subtitle: fmt.Sprintf("run=%s %s in %.1f s  J=%.6f kg·m²", run.RunID, outcome, run.TotalTime, run.Parameters.InertiaJ),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	bar.SetXAxis(x).
		AddSeries("confidence", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
