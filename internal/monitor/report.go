package monitor

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

// maxHeatmapCells caps the rendered heatmap size so the HTML payload
// stays manageable for large grids.
const maxHeatmapCells = 20000

// WriteResidualReport renders the residual field as an interactive
// heatmap HTML page. Large grids are thinned by stride.
func (p *Plotter) WriteResidualReport(residual *raster.Scene) error {
	return p.writeHeatmap(residual, "residual", "Residual Field", "residual_report.html")
}

// WriteSharpenedReport renders the sharpened field as an interactive
// heatmap HTML page.
func (p *Plotter) WriteSharpenedReport(sharpened *raster.Scene) error {
	return p.writeHeatmap(sharpened, "sharpened", "Sharpened Field", "sharpened_report.html")
}

func (p *Plotter) writeHeatmap(scene *raster.Scene, series, title, filename string) error {
	rows, cols := scene.Rows, scene.Cols
	if rows == 0 || cols == 0 {
		return nil
	}

	stride := 1
	if rows*cols > maxHeatmapCells {
		stride = int(math.Ceil(math.Sqrt(float64(rows*cols) / float64(maxHeatmapCells))))
	}

	band := scene.Band(0)
	data := make([]opts.HeatMapData, 0, rows*cols/(stride*stride)+1)
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for r := 0; r < rows; r += stride {
		for c := 0; c < cols; c += stride {
			v := band[r*cols+c]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
			// Flip rows so north stays up in the chart.
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, rows - 1 - r, v}})
		}
	}
	if len(data) == 0 {
		return nil
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Sharpening Diagnostics", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("grid=%dx%d stride=%d", rows, cols, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Column"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "Row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minVal),
			Max:        float32(maxVal),
			InRange:    &opts.VisualMapInRange{Color: []string{"#313695", "#74add1", "#e0f3f8", "#fee090", "#f46d43", "#a50026"}},
		}),
	)
	hm.AddSeries(series, data)

	file := filepath.Join(p.outputDir, filename)
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	if err := hm.Render(f); err != nil {
		return fmt.Errorf("failed to render %s: %w", filename, err)
	}
	return nil
}
