package raster

import (
	"math"
)

// ResampleAlg selects the interpolation used when resampling a scene onto a
// different grid.
type ResampleAlg int

const (
	// Nearest takes the value of the closest source pixel. It preserves the
	// exact invalid-pixel footprint and is used for masks.
	Nearest ResampleAlg = iota
	// Bilinear interpolates between the four surrounding source pixels.
	Bilinear
)

// Aggregate computes per-cell mean and standard deviation of fine-resolution
// pixels falling inside each cell of the target grid. Both outputs have one
// band per fine band. A cell containing any NaN fine pixel aggregates to NaN
// so that partially invalid cells are never used as training samples.
func Aggregate(fine *Scene, gt GeoTransform, rows, cols int) (mean, std *Scene) {
	mean = NewScene(fine.Bands, rows, cols, gt, fine.Projection)
	std = NewScene(fine.Bands, rows, cols, gt, fine.Projection)

	n := rows * cols
	sum := make([]float64, fine.Bands*n)
	sumSq := make([]float64, fine.Bands*n)
	count := make([]int, n)
	tainted := make([]bool, n)

	for r := 0; r < fine.Rows; r++ {
		for c := 0; c < fine.Cols; c++ {
			// Fine pixel center in projected coordinates.
			x, y := fine.GeoTransform.PixelToPoint(float64(c)+0.5, float64(r)+0.5)
			cc, cr := gt.PointToPixel(x, y)
			if cr < 0 || cr >= rows || cc < 0 || cc >= cols {
				continue
			}
			ci := cr*cols + cc
			count[ci]++
			for b := 0; b < fine.Bands; b++ {
				v := fine.At(b, r, c)
				if math.IsNaN(v) {
					tainted[ci] = true
					continue
				}
				sum[b*n+ci] += v
				sumSq[b*n+ci] += v * v
			}
		}
	}

	for ci := 0; ci < n; ci++ {
		for b := 0; b < fine.Bands; b++ {
			if count[ci] == 0 || tainted[ci] {
				mean.Data[b*n+ci] = math.NaN()
				std.Data[b*n+ci] = math.NaN()
				continue
			}
			m := sum[b*n+ci] / float64(count[ci])
			v := sumSq[b*n+ci]/float64(count[ci]) - m*m
			if v < 0 {
				v = 0 // guard against rounding
			}
			mean.Data[b*n+ci] = m
			std.Data[b*n+ci] = math.Sqrt(v)
		}
	}
	return mean, std
}

// Resample maps band 0 of src onto a target grid described by gt and
// rows x cols, sampling at target cell centers. Cells whose center falls
// outside the source extent become NaN. Bilinear sampling clamps to the edge
// pixel centers, so it replicates (rather than extrapolates) at the border.
func Resample(src *Scene, gt GeoTransform, rows, cols int, alg ResampleAlg) *Scene {
	out := NewScene(1, rows, cols, gt, src.Projection)
	band := src.Band(0)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := gt.PixelToPoint(float64(c)+0.5, float64(r)+0.5)
			// Continuous source pixel coordinates in pixel-center space.
			fc := (x-src.GeoTransform[0])/src.GeoTransform[1] - 0.5
			fr := (y-src.GeoTransform[3])/src.GeoTransform[5] - 0.5

			var v float64
			switch alg {
			case Nearest:
				nc := int(math.Round(fc))
				nr := int(math.Round(fr))
				if nr < 0 || nr >= src.Rows || nc < 0 || nc >= src.Cols {
					v = math.NaN()
				} else {
					v = band[nr*src.Cols+nc]
				}
			case Bilinear:
				if fr < -0.5 || fr > float64(src.Rows)-0.5 || fc < -0.5 || fc > float64(src.Cols)-0.5 {
					v = math.NaN()
					break
				}
				v = bilinear(band, src.Rows, src.Cols, fr, fc)
			}
			out.Data[r*cols+c] = v
		}
	}
	return out
}

func bilinear(band []float64, rows, cols int, fr, fc float64) float64 {
	clampF := func(v float64, max int) float64 {
		if v < 0 {
			return 0
		}
		if v > float64(max) {
			return float64(max)
		}
		return v
	}
	fr = clampF(fr, rows-1)
	fc = clampF(fc, cols-1)

	r0 := int(math.Floor(fr))
	c0 := int(math.Floor(fc))
	r1 := r0 + 1
	c1 := c0 + 1
	if r1 > rows-1 {
		r1 = rows - 1
	}
	if c1 > cols-1 {
		c1 = cols - 1
	}
	dr := fr - float64(r0)
	dc := fc - float64(c0)

	v00 := band[r0*cols+c0]
	v01 := band[r0*cols+c1]
	v10 := band[r1*cols+c0]
	v11 := band[r1*cols+c1]

	top := v00*(1-dc) + v01*dc
	bot := v10*(1-dc) + v11*dc
	return top*(1-dr) + bot*dr
}

// Clip extracts the sub-grid of src whose pixels fall inside the projected
// extent of target, clamped to src bounds. The returned scene carries its own
// geotransform; it may be smaller than an exact cover of target when the
// extents are not aligned.
func Clip(src *Scene, target *Scene) *Scene {
	ulx, uly, lrx, lry := target.Extent()

	c0, r0 := src.GeoTransform.PointToPixel(ulx, uly)
	c1, r1 := src.GeoTransform.PointToPixel(lrx, lry)
	if r0 < 0 {
		r0 = 0
	}
	if c0 < 0 {
		c0 = 0
	}
	if r1 > src.Rows {
		r1 = src.Rows
	}
	if c1 > src.Cols {
		c1 = src.Cols
	}
	if r1 <= r0 || c1 <= c0 {
		return NewScene(src.Bands, 0, 0, src.GeoTransform, src.Projection)
	}

	rows := r1 - r0
	cols := c1 - c0
	gt := src.GeoTransform
	gt[0], gt[3] = src.GeoTransform.PixelToPoint(float64(c0), float64(r0))

	out := NewScene(src.Bands, rows, cols, gt, src.Projection)
	copy(out.NoData, src.NoData)
	for b := 0; b < src.Bands; b++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out.Set(b, r, c, src.At(b, r0+r, c0+c))
			}
		}
	}
	return out
}

// BinomialSmooth applies a 3x3 binomial kernel (1 2 1; 2 4 2; 1 2 1)/16 to a
// rows x cols grid. The convolution is renormalized over finite neighbors so
// NaN cells do not spread; a cell with no finite neighbors stays NaN.
func BinomialSmooth(vals []float64, rows, cols int) []float64 {
	kernel := [3][3]float64{{1, 2, 1}, {2, 4, 2}, {1, 2, 1}}
	out := make([]float64, len(vals))

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum, wsum float64
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					rr, cc := r+dr, c+dc
					if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
						continue
					}
					v := vals[rr*cols+cc]
					if math.IsNaN(v) {
						continue
					}
					w := kernel[dr+1][dc+1]
					sum += w * v
					wsum += w
				}
			}
			if wsum == 0 {
				out[r*cols+c] = math.NaN()
			} else {
				out[r*cols+c] = sum / wsum
			}
		}
	}
	return out
}
