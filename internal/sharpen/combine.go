package sharpen

import (
	"fmt"
	"math"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

// Apply runs the trained models over a fine-resolution scene and returns the
// sharpened raster on the same grid. Local models predict only inside their
// window's projected extent; the global model predicts everywhere. When a
// coarse reference scene is supplied the local and global predictions are
// blended per pixel by their residuals against it, favoring whichever
// currently fits better; without one the local mosaic wins wherever it has
// coverage. The fine scene's invalid-pixel footprint is reapplied to the
// output.
func (s *Sharpener) Apply(fine *raster.Scene, coarse *raster.Scene) (*raster.Scene, error) {
	if !s.trained {
		return nil, ErrNotTrained
	}
	if err := fine.Validate(); err != nil {
		return nil, fmt.Errorf("sharpen: fine scene: %w", err)
	}

	work := fine.Clone().MaskNoData()
	invalid := work.InvalidMask()
	// The regression backends need finite inputs; raw predictions for
	// invalid pixels are discarded below.
	for i, v := range work.Data {
		if math.IsNaN(v) {
			work.Data[i] = 0
		}
	}
	bands := make([][]float64, work.Bands)
	for b := range bands {
		bands[b] = work.Band(b)
	}

	rows, cols := work.Rows, work.Cols
	n := rows * cols
	gt := work.GeoTransform

	local := make([]float64, n)
	for i := range local {
		local[i] = math.NaN()
	}
	covered := false
	for i, w := range s.windows[:len(s.windows)-1] {
		m := s.models[i]
		if m == nil {
			continue
		}
		minC, minR := gt.PointToPixel(w.Extent.ULX, w.Extent.ULY)
		maxC, maxR := gt.PointToPixel(w.Extent.LRX, w.Extent.LRY)
		if minC < 0 {
			minC = 0
		}
		if minR < 0 {
			minR = 0
		}
		if maxC > cols {
			maxC = cols
		}
		if maxR > rows {
			maxR = rows
		}
		if maxR <= minR || maxC <= minC {
			continue
		}

		X := sampleMatrix(bands, cols, minR, maxR, minC, maxC)
		pred := predict(m, X, 0)
		k := 0
		for r := minR; r < maxR; r++ {
			for c := minC; c < maxC; c++ {
				local[r*cols+c] = pred[k]
				k++
			}
		}
		covered = true
	}

	global := make([]float64, n)
	if gm := s.models[len(s.models)-1]; gm != nil {
		X := sampleMatrix(bands, cols, 0, rows, 0, cols)
		global = predict(gm, X, s.opts.ChunkSize)
	} else {
		for i := range global {
			global[i] = math.NaN()
		}
	}

	var out []float64
	switch {
	case !covered:
		out = global
	case coarse == nil:
		out = local
	default:
		localScene := raster.NewSceneFrom(local, rows, cols, gt, work.Projection)
		globalScene := raster.NewSceneFrom(global, rows, cols, gt, work.Projection)
		localResid, _, err := s.calculateResidual(localScene, coarse, nil, nil)
		if err != nil {
			return nil, err
		}
		globalResid, _, err := s.calculateResidual(globalScene, coarse, nil, nil)
		if err != nil {
			return nil, err
		}

		out = make([]float64, n)
		for i := range out {
			lw := 1 / localResid[i]
			gw := 1 / globalResid[i]
			// Weight each prediction by its inverse squared residual.
			ww := lw * lw / (lw*lw + gw*gw)
			out[i] = local[i]*ww + global[i]*(1-ww)
		}
	}

	for i, bad := range invalid {
		if bad {
			out[i] = math.NaN()
		}
	}
	return raster.NewSceneFrom(out, rows, cols, gt, fine.Projection), nil
}
