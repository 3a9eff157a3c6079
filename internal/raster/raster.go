// Package raster provides the in-memory raster model used by the sharpening
// pipeline: multi-band float64 scenes with affine georeferencing, aggregation
// and resampling between resolutions, quality masking and scene persistence.
package raster

import (
	"fmt"
	"math"
)

// GeoTransform is a GDAL-ordered affine transform between pixel and projected
// coordinates:
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
//
// Rotation terms (gt[2], gt[4]) must be zero; north-up grids only.
type GeoTransform [6]float64

// PixelToPoint converts a (col, row) pixel position to projected coordinates.
// Integer pixel positions map to the upper-left corner of the pixel, matching
// GDAL conventions.
func (gt GeoTransform) PixelToPoint(col, row float64) (x, y float64) {
	x = gt[0] + col*gt[1] + row*gt[2]
	y = gt[3] + col*gt[4] + row*gt[5]
	return x, y
}

// PointToPixel converts projected coordinates to integer (col, row) pixel
// indices. The result may be outside the grid; callers clamp as needed.
func (gt GeoTransform) PointToPixel(x, y float64) (col, row int) {
	col = int(math.Floor((x - gt[0]) / gt[1]))
	row = int(math.Floor((y - gt[3]) / gt[5]))
	return col, row
}

// CellSize returns the pixel width and height (height is negative for
// north-up grids).
func (gt GeoTransform) CellSize() (w, h float64) {
	return gt[1], gt[5]
}

// Scene is a multi-band raster with georeferencing. Data is stored band-major:
// Data[b*Rows*Cols + r*Cols + c]. A Scene is treated as immutable once it has
// been handed to the sharpening pipeline.
type Scene struct {
	Bands, Rows, Cols int
	Data              []float64
	GeoTransform      GeoTransform
	Projection        string
	// NoData holds the per-band no-data sentinel; NaN means unset.
	NoData []float64
}

// NewScene allocates a zero-filled scene.
func NewScene(bands, rows, cols int, gt GeoTransform, projection string) *Scene {
	nodata := make([]float64, bands)
	for i := range nodata {
		nodata[i] = math.NaN()
	}
	return &Scene{
		Bands:        bands,
		Rows:         rows,
		Cols:         cols,
		Data:         make([]float64, bands*rows*cols),
		GeoTransform: gt,
		Projection:   projection,
		NoData:       nodata,
	}
}

// NewSceneFrom allocates a single-band scene holding vals, which must have
// rows*cols elements.
func NewSceneFrom(vals []float64, rows, cols int, gt GeoTransform, projection string) *Scene {
	s := NewScene(1, rows, cols, gt, projection)
	copy(s.Data, vals)
	return s
}

// At returns the value of band b at (row, col).
func (s *Scene) At(b, r, c int) float64 {
	return s.Data[b*s.Rows*s.Cols+r*s.Cols+c]
}

// Set assigns the value of band b at (row, col).
func (s *Scene) Set(b, r, c int, v float64) {
	s.Data[b*s.Rows*s.Cols+r*s.Cols+c] = v
}

// Band returns the backing slice for band b. The slice aliases the scene.
func (s *Scene) Band(b int) []float64 {
	n := s.Rows * s.Cols
	return s.Data[b*n : (b+1)*n]
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	out := *s
	out.Data = append([]float64(nil), s.Data...)
	out.NoData = append([]float64(nil), s.NoData...)
	return &out
}

// Extent returns the projected extent as upper-left and lower-right corner
// coordinates.
func (s *Scene) Extent() (ulx, uly, lrx, lry float64) {
	ulx, uly = s.GeoTransform.PixelToPoint(0, 0)
	lrx, lry = s.GeoTransform.PixelToPoint(float64(s.Cols), float64(s.Rows))
	return ulx, uly, lrx, lry
}

// MaskNoData replaces per-band no-data values with NaN in place and returns
// the scene for chaining.
func (s *Scene) MaskNoData() *Scene {
	n := s.Rows * s.Cols
	for b := 0; b < s.Bands; b++ {
		nd := s.NoData[b]
		if math.IsNaN(nd) {
			continue
		}
		band := s.Data[b*n : (b+1)*n]
		for i, v := range band {
			if v == nd {
				band[i] = math.NaN()
			}
		}
	}
	return s
}

// InvalidMask returns a per-pixel mask that is true where any band is NaN.
func (s *Scene) InvalidMask() []bool {
	n := s.Rows * s.Cols
	mask := make([]bool, n)
	for b := 0; b < s.Bands; b++ {
		band := s.Data[b*n : (b+1)*n]
		for i, v := range band {
			if math.IsNaN(v) {
				mask[i] = true
			}
		}
	}
	return mask
}

// Validate checks basic structural invariants.
func (s *Scene) Validate() error {
	if s.Bands <= 0 || s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("raster: invalid shape %dx%dx%d", s.Bands, s.Rows, s.Cols)
	}
	if len(s.Data) != s.Bands*s.Rows*s.Cols {
		return fmt.Errorf("raster: data length %d does not match shape %dx%dx%d",
			len(s.Data), s.Bands, s.Rows, s.Cols)
	}
	if s.GeoTransform[2] != 0 || s.GeoTransform[4] != 0 {
		return fmt.Errorf("raster: rotated geotransforms are not supported")
	}
	if len(s.NoData) != s.Bands {
		return fmt.Errorf("raster: no-data length %d does not match bands %d", len(s.NoData), s.Bands)
	}
	return nil
}
