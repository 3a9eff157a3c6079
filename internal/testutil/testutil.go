// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// GradientScene returns a single-band rows x cols scene whose values
// follow a diagonal gradient, with a NaN pixel in the upper-left corner
// to mimic the partial nodata coverage of real imagery.
func GradientScene(rows, cols int, gt raster.GeoTransform) *raster.Scene {
	s := raster.NewScene(1, rows, cols, gt, "")
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			s.Set(0, r, c, float64(r-c)*0.1)
		}
	}
	s.Set(0, 0, 0, math.NaN())
	return s
}
