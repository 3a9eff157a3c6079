package sharpen

import (
	"fmt"
	"log"
	"math"

	"github.com/fieldscale-data/thermal.report/internal/raster"
	"github.com/fieldscale-data/thermal.report/internal/units"
)

// ResidualStats summarizes a residual analysis over the finite
// coarse-resolution residual pixels.
type ResidualStats struct {
	Bias float64
	RMSD float64
	// NTest is the number of finite residual pixels.
	NTest int
	// NegativeRadiance counts corrected pixels whose fourth-power radicand
	// was negative; these are set to NaN rather than silently producing a
	// non-real value. Only possible for temperature targets.
	NegativeRadiance int
}

// ResidualAnalysis compares a sharpened scene against the true coarse scene,
// returning the coarse-resolution residual raster (with its own
// georeference) and, when doCorrection is set, a bias-corrected sharpened
// raster on the fine grid. quality optionally masks out bad coarse pixels
// using goodFlags. Requires a trained sharpener.
func (s *Sharpener) ResidualAnalysis(sharpened, coarse, quality *raster.Scene,
	goodFlags []int, doCorrection bool) (residual, corrected *raster.Scene, stats ResidualStats, err error) {

	if !s.trained {
		return nil, nil, stats, ErrNotTrained
	}

	residFine, residLR, err := s.calculateResidual(sharpened, coarse, quality, goodFlags)
	if err != nil {
		return nil, nil, stats, err
	}

	if doCorrection {
		vals := make([]float64, len(residFine))
		sharp := sharpened.Band(0)
		for i := range vals {
			if s.opts.TemperatureTarget {
				t, ok := units.Temperature(residFine[i] + units.Radiance(sharp[i]))
				if !ok {
					stats.NegativeRadiance++
					vals[i] = math.NaN()
					continue
				}
				vals[i] = t
			} else {
				vals[i] = residFine[i] + sharp[i]
			}
		}
		if stats.NegativeRadiance > 0 {
			log.Printf("Residual correction: %d pixels had negative radiance and were invalidated",
				stats.NegativeRadiance)
		}
		corrected = raster.NewSceneFrom(vals, sharpened.Rows, sharpened.Cols,
			sharpened.GeoTransform, sharpened.Projection)
	}

	// Report the coarse residual in target units: radiance-domain residuals
	// are converted back to temperature for readability.
	lr := residLR.Band(0)
	if s.opts.TemperatureTarget {
		for i, v := range lr {
			lr[i] = units.CelsiusResidual(v)
		}
	}

	var sum, sumSq float64
	for _, v := range lr {
		if math.IsNaN(v) {
			continue
		}
		stats.NTest++
		sum += v
		sumSq += v * v
	}
	if stats.NTest > 0 {
		stats.Bias = sum / float64(stats.NTest)
		stats.RMSD = math.Sqrt(sumSq / float64(stats.NTest))
	}
	log.Printf("Coarse residual bias: %f", stats.Bias)
	log.Printf("Coarse residual RMSD: %f", stats.RMSD)

	return residLR, corrected, stats, nil
}

// calculateResidual computes the difference between the coarse reference and
// the sharpened scene aggregated back to coarse resolution, then smooths the
// coarse residual and upsamples it onto the sharpened grid. It returns the
// fine-resolution residual values and the raw coarse-resolution residual
// scene. For temperature targets the differencing happens in the
// fourth-power radiance domain, which is the physically averageable
// quantity.
func (s *Sharpener) calculateResidual(sharpened, coarse, quality *raster.Scene,
	goodFlags []int) ([]float64, *raster.Scene, error) {

	cl := raster.Clip(coarse.Clone().MaskNoData(), sharpened)
	if cl.Rows == 0 || cl.Cols == 0 {
		return nil, nil, fmt.Errorf("sharpen: coarse scene does not overlap the sharpened scene")
	}
	dataLR := cl.Band(0)

	if quality != nil {
		qr := raster.Resample(quality, cl.GeoTransform, cl.Rows, cl.Cols, raster.Nearest)
		good := raster.QualityMask(qr, goodFlags)
		for i := range dataLR {
			if !good[i] {
				dataLR[i] = math.NaN()
			}
		}
	}

	// Aggregate the sharpened prediction onto the clipped coarse grid.
	agg := sharpened
	if s.opts.TemperatureTarget {
		pow4 := make([]float64, len(sharpened.Band(0)))
		for i, v := range sharpened.Band(0) {
			pow4[i] = units.Radiance(v)
		}
		agg = raster.NewSceneFrom(pow4, sharpened.Rows, sharpened.Cols,
			sharpened.GeoTransform, sharpened.Projection)
	}
	aggMean, _ := raster.Aggregate(agg, cl.GeoTransform, cl.Rows, cl.Cols)

	residLR := make([]float64, len(dataLR))
	for i, v := range dataLR {
		if s.opts.TemperatureTarget {
			residLR[i] = units.Radiance(v) - aggMean.Band(0)[i]
		} else {
			residLR[i] = v - aggMean.Band(0)[i]
		}
	}

	// Smooth out coarse-scale sampling noise before upsampling.
	smooth := raster.BinomialSmooth(residLR, cl.Rows, cl.Cols)
	smoothScene := raster.NewSceneFrom(smooth, cl.Rows, cl.Cols, cl.GeoTransform, cl.Projection)

	// Upsample onto the sharpened resolution over the clipped extent: the
	// nearest-neighbor pass carries the exact invalid footprint, the
	// bilinear pass the value.
	fpx, fpy := sharpened.GeoTransform.CellSize()
	cpx, cpy := cl.GeoTransform.CellSize()
	upRows := int(math.Round(float64(cl.Rows) * math.Abs(cpy/fpy)))
	upCols := int(math.Round(float64(cl.Cols) * math.Abs(cpx/fpx)))
	if upRows > sharpened.Rows {
		upRows = sharpened.Rows
	}
	if upCols > sharpened.Cols {
		upCols = sharpened.Cols
	}
	upGT := raster.GeoTransform{cl.GeoTransform[0], fpx, 0, cl.GeoTransform[3], 0, fpy}

	nn := raster.Resample(smoothScene, upGT, upRows, upCols, raster.Nearest)
	bl := raster.Resample(smoothScene, upGT, upRows, upCols, raster.Bilinear)
	up := bl.Band(0)
	for i, v := range nn.Band(0) {
		if math.IsNaN(v) {
			up[i] = math.NaN()
		}
	}

	residFine := padToShape(up, upRows, upCols, sharpened.Rows, sharpened.Cols)
	return residFine, raster.NewSceneFrom(residLR, cl.Rows, cl.Cols, cl.GeoTransform, cl.Projection), nil
}

// padToShape grows a rows x cols grid to dstRows x dstCols by replicating
// the last valid row downward and then the last valid column rightward.
// Clipping against the coarse grid can shave the residual short of the
// sharpened shape by a few pixels; plain edge replication fills the gap.
func padToShape(vals []float64, rows, cols, dstRows, dstCols int) []float64 {
	if rows == dstRows && cols == dstCols {
		return vals
	}
	out := make([]float64, dstRows*dstCols)
	for r := 0; r < dstRows; r++ {
		sr := r
		if sr >= rows {
			sr = rows - 1
		}
		for c := 0; c < dstCols; c++ {
			sc := c
			if sc >= cols {
				sc = cols - 1
			}
			out[r*dstCols+c] = vals[sr*cols+sc]
		}
	}
	return out
}
