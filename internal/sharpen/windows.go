package sharpen

import (
	"math"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

// Extent is a projected-coordinate rectangle described by its upper-left and
// lower-right corners.
type Extent struct {
	ULX, ULY, LRX, LRY float64
}

// Window is a tile of the coarse grid. Pixel bounds are half-open
// [RowStart, RowEnd) x [ColStart, ColEnd) and describe the sampling region,
// which extends a quarter window beyond the nominal tile so local
// regressions see context past their assigned area. Extent is the nominal
// (un-extended) tile in projected coordinates; it is the region the window
// is authoritative for at apply time. The global window has a nil Extent.
type Window struct {
	RowStart, RowEnd, ColStart, ColEnd int
	Extent                             *Extent
}

// Global reports whether this is the whole-image window.
func (w Window) Global() bool { return w.Extent == nil }

// PartitionWindows tiles a rows x cols coarse grid into moving windows of
// the given size, followed by one global window covering the whole grid.
// size <= 0 disables local tiling, leaving only the global window.
func PartitionWindows(rows, cols, size int, gt raster.GeoTransform) []Window {
	var windows []Window

	if size > 0 {
		w := float64(size)
		// Sampling windows overlap by a quarter window on each side; the
		// nominal extents they are authoritative for stay disjoint.
		ext := w * 0.25
		nY := int(math.Ceil(float64(rows) / w))
		nX := int(math.Ceil(float64(cols) / w))
		for y := 0; y < nY; y++ {
			for x := 0; x < nX; x++ {
				ulx, uly := gt.PixelToPoint(float64(x)*w, float64(y)*w)
				lrx, lry := gt.PixelToPoint(float64(x+1)*w, float64(y+1)*w)
				windows = append(windows, Window{
					RowStart: int(math.Max(float64(y)*w-ext, 0)),
					RowEnd:   int(math.Min(float64(y+1)*w+ext, float64(rows))),
					ColStart: int(math.Max(float64(x)*w-ext, 0)),
					ColEnd:   int(math.Min(float64(x+1)*w+ext, float64(cols))),
					Extent:   &Extent{ULX: ulx, ULY: uly, LRX: lrx, LRY: lry},
				})
			}
		}
	}

	// The global window is always last and is applied everywhere rather
	// than being spatially gated.
	windows = append(windows, Window{RowEnd: rows, ColEnd: cols})
	return windows
}
