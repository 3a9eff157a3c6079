package raster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestGeoTransformRoundTrip(t *testing.T) {
	gt := GeoTransform{500000, 30, 0, 4200000, 0, -30}

	x, y := gt.PixelToPoint(0, 0)
	if x != 500000 || y != 4200000 {
		t.Fatalf("origin pixel mapped to (%f, %f)", x, y)
	}

	// Points inside pixel (3, 7) must map back to it.
	x, y = gt.PixelToPoint(3.5, 7.5)
	col, row := gt.PointToPixel(x, y)
	if col != 3 || row != 7 {
		t.Errorf("PointToPixel(%f, %f) = (%d, %d), want (3, 7)", x, y, col, row)
	}
}

func TestSceneAccessors(t *testing.T) {
	s := NewScene(2, 3, 4, GeoTransform{0, 1, 0, 0, 0, -1}, "")
	s.Set(1, 2, 3, 42)

	if got := s.At(1, 2, 3); got != 42 {
		t.Errorf("At(1,2,3) = %f, want 42", got)
	}
	if got := s.Band(1)[2*4+3]; got != 42 {
		t.Errorf("Band(1) slice does not alias scene data, got %f", got)
	}

	clone := s.Clone()
	clone.Set(1, 2, 3, 7)
	if s.At(1, 2, 3) != 42 {
		t.Error("mutating a clone changed the original scene")
	}
}

func TestMaskNoData(t *testing.T) {
	s := NewScene(1, 2, 2, GeoTransform{0, 1, 0, 0, 0, -1}, "")
	s.NoData[0] = -9999
	s.Set(0, 0, 0, -9999)
	s.Set(0, 1, 1, 5)

	s.MaskNoData()
	if !math.IsNaN(s.At(0, 0, 0)) {
		t.Error("no-data value was not masked to NaN")
	}
	if s.At(0, 1, 1) != 5 {
		t.Error("valid value was modified")
	}

	mask := s.InvalidMask()
	if !mask[0] || mask[3] {
		t.Errorf("InvalidMask = %v, want invalid only at index 0", mask)
	}
}

func TestValidateRejectsRotation(t *testing.T) {
	s := NewScene(1, 2, 2, GeoTransform{0, 1, 0.5, 0, 0, -1}, "")
	if err := s.Validate(); err == nil {
		t.Error("expected error for rotated geotransform")
	}
}

func TestClip(t *testing.T) {
	// 6x6 source at 10m pixels; target covers rows/cols 2..4.
	src := NewScene(1, 6, 6, GeoTransform{0, 10, 0, 60, 0, -10}, "")
	for i := range src.Data {
		src.Data[i] = float64(i)
	}
	target := NewScene(1, 2, 2, GeoTransform{20, 10, 0, 40, 0, -10}, "")

	cl := Clip(src, target)
	if cl.Rows != 2 || cl.Cols != 2 {
		t.Fatalf("clip shape = %dx%d, want 2x2", cl.Rows, cl.Cols)
	}
	if cl.GeoTransform[0] != 20 || cl.GeoTransform[3] != 40 {
		t.Errorf("clip origin = (%f, %f), want (20, 40)", cl.GeoTransform[0], cl.GeoTransform[3])
	}
	if got, want := cl.At(0, 0, 0), src.At(0, 2, 2); got != want {
		t.Errorf("clip[0,0] = %f, want %f", got, want)
	}

	// Disjoint target clips to an empty scene.
	far := NewScene(1, 2, 2, GeoTransform{1000, 10, 0, 1000, 0, -10}, "")
	if cl := Clip(src, far); cl.Rows != 0 || cl.Cols != 0 {
		t.Errorf("disjoint clip shape = %dx%d, want empty", cl.Rows, cl.Cols)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewScene(2, 4, 5, GeoTransform{100, 30, 0, 900, 0, -30}, "EPSG:32633")
	for i := range s.Data {
		s.Data[i] = float64(i) * 0.5
	}
	s.NoData[0] = -9999

	path := filepath.Join(t.TempDir(), "scene.gob.gz")
	if err := Save(s, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(s, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("scene round trip mismatch (-want +got):\n%s", diff)
	}
}
