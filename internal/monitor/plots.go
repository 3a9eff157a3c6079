// Package monitor produces diagnostic output for sharpening runs: static
// PNG plots of residual behaviour and an interactive HTML report.
package monitor

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

// Plotter writes diagnostic PNGs for a run into a timestamped directory.
type Plotter struct {
	outputDir string
}

// NewPlotter creates the output directory and returns a plotter writing
// into it.
func NewPlotter(outputDir string) (*Plotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &Plotter{outputDir: outputDir}, nil
}

// OutputDir returns the directory plots are written to.
func (p *Plotter) OutputDir() string { return p.outputDir }

// ResidualHistogram plots the distribution of finite residual values.
func (p *Plotter) ResidualHistogram(residual *raster.Scene) error {
	vals := finiteValues(residual.Band(0))
	if len(vals) == 0 {
		return nil
	}

	pl := plot.New()
	pl.Title.Text = "Residual Distribution"
	pl.X.Label.Text = "Residual"
	pl.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(vals), 40)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	h.FillColor = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 255}
	pl.Add(h)

	file := filepath.Join(p.outputDir, "residual_hist.png")
	if err := pl.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("save residual histogram: %w", err)
	}
	return nil
}

// ObservedVsPredicted plots coarse observed values against the
// aggregated sharpened values on matching grid cells. Pairs with a
// non-finite member are skipped.
func (p *Plotter) ObservedVsPredicted(observed, predicted []float64) error {
	if len(observed) != len(predicted) {
		return fmt.Errorf("observed/predicted length mismatch: %d vs %d", len(observed), len(predicted))
	}

	pts := make(plotter.XYs, 0, len(observed))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range observed {
		if math.IsNaN(observed[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: observed[i], Y: predicted[i]})
		lo = math.Min(lo, math.Min(observed[i], predicted[i]))
		hi = math.Max(hi, math.Max(observed[i], predicted[i]))
	}
	if len(pts) == 0 {
		return nil
	}

	pl := plot.New()
	pl.Title.Text = "Observed vs Predicted (coarse grid)"
	pl.X.Label.Text = "Observed"
	pl.Y.Label.Text = "Predicted"

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	sc.GlyphStyle.Radius = vg.Points(1.5)
	sc.GlyphStyle.Color = color.RGBA{R: 0x1f, G: 0x9e, B: 0x89, A: 255}
	pl.Add(sc)

	// 1:1 reference line
	ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return fmt.Errorf("failed to build reference line: %w", err)
	}
	ref.Color = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 255}
	ref.Width = vg.Points(1)
	pl.Add(ref)
	pl.Legend.Add("1:1", ref)
	pl.Legend.Top = true
	pl.Legend.Left = true

	file := filepath.Join(p.outputDir, "observed_vs_predicted.png")
	if err := pl.Save(7*vg.Inch, 7*vg.Inch, file); err != nil {
		return fmt.Errorf("save scatter plot: %w", err)
	}
	return nil
}

func finiteValues(band []float64) []float64 {
	out := make([]float64, 0, len(band))
	for _, v := range band {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakeOutputDir builds a timestamped diagnostics directory for a run,
// named after the coarse input file when one is given.
func MakeOutputDir(baseDir, inputFile string) string {
	ts := FormatTimestamp(time.Now())
	if inputFile != "" {
		base := filepath.Base(inputFile)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "run_"+ts)
}
