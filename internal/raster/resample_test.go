package raster

import (
	"math"
	"testing"
)

// fineScene builds a rows x cols single-band scene with 1m pixels whose
// value is set by fn(r, c).
func fineScene(rows, cols int, fn func(r, c int) float64) *Scene {
	s := NewScene(1, rows, cols, GeoTransform{0, 1, 0, float64(rows), 0, -1}, "")
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			s.Set(0, r, c, fn(r, c))
		}
	}
	return s
}

func TestAggregate(t *testing.T) {
	// 4x4 fine grid onto a 2x2 coarse grid: each coarse cell holds a 2x2
	// block of fine pixels.
	fine := fineScene(4, 4, func(r, c int) float64 {
		return float64(r*4 + c)
	})
	coarseGT := GeoTransform{0, 2, 0, 4, 0, -2}

	mean, std := Aggregate(fine, coarseGT, 2, 2)

	// Top-left block is {0, 1, 4, 5}.
	if got, want := mean.At(0, 0, 0), 2.5; got != want {
		t.Errorf("mean[0,0] = %f, want %f", got, want)
	}
	wantStd := math.Sqrt((2.5*2.5 + 1.5*1.5 + 1.5*1.5 + 2.5*2.5) / 4)
	if got := std.At(0, 0, 0); math.Abs(got-wantStd) > 1e-12 {
		t.Errorf("std[0,0] = %f, want %f", got, wantStd)
	}
}

func TestAggregateNaNTaintsCell(t *testing.T) {
	fine := fineScene(4, 4, func(r, c int) float64 { return 1 })
	fine.Set(0, 0, 1, math.NaN())
	coarseGT := GeoTransform{0, 2, 0, 4, 0, -2}

	mean, std := Aggregate(fine, coarseGT, 2, 2)
	if !math.IsNaN(mean.At(0, 0, 0)) || !math.IsNaN(std.At(0, 0, 0)) {
		t.Error("cell containing a NaN fine pixel should aggregate to NaN")
	}
	if mean.At(0, 0, 1) != 1 {
		t.Error("untainted cell should aggregate normally")
	}
}

func TestResampleNearestIdentity(t *testing.T) {
	src := fineScene(3, 3, func(r, c int) float64 { return float64(r*3 + c) })

	out := Resample(src, src.GeoTransform, 3, 3, Nearest)
	for i, v := range out.Band(0) {
		if v != src.Band(0)[i] {
			t.Fatalf("identity resample changed pixel %d: %f != %f", i, v, src.Band(0)[i])
		}
	}
}

func TestResampleBilinearMidpoint(t *testing.T) {
	// Two-column source: values 0 and 10. Sampling halfway between the two
	// pixel centers must interpolate to 5.
	src := NewScene(1, 1, 2, GeoTransform{0, 1, 0, 1, 0, -1}, "")
	src.Set(0, 0, 0, 0)
	src.Set(0, 0, 1, 10)

	// One target cell of width 1 centered on x=1.0 (the midpoint).
	out := Resample(src, GeoTransform{0.5, 1, 0, 1, 0, -1}, 1, 1, Bilinear)
	if got := out.At(0, 0, 0); math.Abs(got-5) > 1e-12 {
		t.Errorf("bilinear midpoint = %f, want 5", got)
	}
}

func TestResampleOutsideExtentIsNaN(t *testing.T) {
	src := fineScene(2, 2, func(r, c int) float64 { return 1 })
	// Target grid entirely east of the source.
	out := Resample(src, GeoTransform{100, 1, 0, 2, 0, -1}, 2, 2, Nearest)
	for i, v := range out.Band(0) {
		if !math.IsNaN(v) {
			t.Fatalf("pixel %d outside source extent = %f, want NaN", i, v)
		}
	}
}

func TestBinomialSmoothConstantField(t *testing.T) {
	vals := make([]float64, 25)
	for i := range vals {
		vals[i] = 7
	}
	out := BinomialSmooth(vals, 5, 5)
	for i, v := range out {
		if math.Abs(v-7) > 1e-12 {
			t.Fatalf("smoothing a constant field changed pixel %d to %f", i, v)
		}
	}
}

func TestBinomialSmoothSkipsNaN(t *testing.T) {
	vals := make([]float64, 9)
	for i := range vals {
		vals[i] = 3
	}
	vals[4] = math.NaN()

	out := BinomialSmooth(vals, 3, 3)
	if math.Abs(out[0]-3) > 1e-12 {
		t.Errorf("corner value = %f, want 3 (NaN neighbor excluded)", out[0])
	}
	// The NaN cell itself regains a value from its finite neighbors.
	if math.Abs(out[4]-3) > 1e-12 {
		t.Errorf("center value = %f, want 3", out[4])
	}
}

func TestQualityMask(t *testing.T) {
	q := NewScene(1, 2, 2, GeoTransform{0, 1, 0, 2, 0, -1}, "")
	q.Set(0, 0, 0, 0)
	q.Set(0, 0, 1, 1)
	q.Set(0, 1, 0, 2.5) // non-integer flag is never good
	q.Set(0, 1, 1, math.NaN())

	mask := QualityMask(q, []int{0, 2})
	want := []bool{true, false, false, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}
