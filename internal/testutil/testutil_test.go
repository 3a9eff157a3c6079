package testutil

import (
	"math"
	"testing"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

func TestGradientScene(t *testing.T) {
	gt := raster.GeoTransform{0, 10, 0, 100, 0, -10}
	s := GradientScene(4, 5, gt)
	if s.Rows != 4 || s.Cols != 5 {
		t.Fatalf("shape = %dx%d, want 4x5", s.Rows, s.Cols)
	}
	if !math.IsNaN(s.At(0, 0, 0)) {
		t.Error("corner pixel should be NaN")
	}
	if got := s.At(0, 3, 1); got != 0.2 {
		t.Errorf("At(3,1) = %v, want 0.2", got)
	}
	if s.GeoTransform != gt {
		t.Errorf("geotransform = %v, want %v", s.GeoTransform, gt)
	}
}
