// Command calplot renders a recorded calibration run's friction curve as
// a PNG: the measured per-velocity torque estimates as points with the
// fitted Coulomb+viscous model drawn through them.
package main

import (
	"flag"
	"image/color"
	"log"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/torqlab/motorcal/internal/store"
)

func main() {
	dbPath := flag.String("db", "motorcal.db", "path to the run database")
	runID := flag.String("run", "", "run ID to plot (default: most recent run)")
	output := flag.String("o", "friction_curve.png", "output PNG path")
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	run, err := loadRun(st, *runID)
	if err != nil {
		log.Fatalf("load run: %v", err)
	}
	if len(run.Results.FrictionCurve) == 0 {
		log.Fatalf("run %s has no friction curve data", run.RunID)
	}

	p := plot.New()
	p.Title.Text = "Friction Curve - " + run.RunID
	p.X.Label.Text = "ω (rad/s)"
	p.Y.Label.Text = "τ (Nm)"

	measured := make(plotter.XYs, 0, len(run.Results.FrictionCurve))
	maxAbsV := 0.0
	for _, pt := range run.Results.FrictionCurve {
		measured = append(measured, plotter.XY{X: pt.Velocity, Y: pt.Tau})
		if math.Abs(pt.Velocity) > maxAbsV {
			maxAbsV = math.Abs(pt.Velocity)
		}
	}

	scatter, err := plotter.NewScatter(measured)
	if err != nil {
		log.Fatalf("build scatter: %v", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(3)
	scatter.GlyphStyle.Color = color.RGBA{R: 0xff, G: 0x52, B: 0x52, A: 0xff}
	p.Add(scatter)
	p.Legend.Add("measured", scatter)

	// Fitted model, one branch per direction so the discontinuity at zero
	// is not drawn through.
	params := run.Parameters
	for _, sign := range []float64{1, -1} {
		pts := make(plotter.XYs, 0, 64)
		const steps = 60
		for i := 1; i <= steps; i++ {
			v := sign * maxAbsV * float64(i) / steps
			tau := math.Copysign(params.FrictionCoulomb, v) + params.FrictionViscous*v
			pts = append(pts, plotter.XY{X: v, Y: tau})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			log.Fatalf("build line: %v", err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
		p.Add(line)
		if sign > 0 {
			p.Legend.Add("fitted model", line)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, *output); err != nil {
		log.Fatalf("save plot: %v", err)
	}
	log.Printf("wrote %s (run %s, τ_c=%.4f Nm, b=%.5f Nm·s/rad)",
		*output, run.RunID, params.FrictionCoulomb, params.FrictionViscous)
}

func loadRun(st *store.Store, runID string) (*store.Run, error) {
	if runID != "" {
		return st.GetRun(runID)
	}
	runs, err := st.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, store.ErrNotFound
	}
	return runs[0], nil
}
