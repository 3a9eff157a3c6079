package sharpen

import (
	"math"
	"testing"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

func trainedSharpener(t *testing.T, opts Options) (*Sharpener, ScenePair) {
	t.Helper()
	pair := testPair()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Train(pair); err != nil {
		t.Fatalf("Train: %v", err)
	}
	return s, pair
}

func TestResidualAnalysisStats(t *testing.T) {
	s, pair := trainedSharpener(t, Options{
		Backend:                 BackendDecisionTree,
		PerLeafLinearRegression: true,
		NEstimators:             3,
		Seed:                    1,
	})

	sharpened, err := s.Apply(pair.Fine, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	residual, corrected, stats, err := s.ResidualAnalysis(sharpened, pair.Coarse, nil, nil, true)
	if err != nil {
		t.Fatalf("ResidualAnalysis: %v", err)
	}

	if residual.Rows != 10 || residual.Cols != 10 {
		t.Fatalf("residual shape = %dx%d, want the coarse 10x10", residual.Rows, residual.Cols)
	}
	if stats.NTest != 100 {
		t.Errorf("NTest = %d, want 100", stats.NTest)
	}
	// The regression is near-identity, so residuals should be small
	// relative to the coarse value range (~14 to ~86).
	if math.Abs(stats.Bias) > 1 {
		t.Errorf("bias = %f, want near zero", stats.Bias)
	}
	if stats.RMSD > 2 {
		t.Errorf("RMSD = %f, want < 2", stats.RMSD)
	}
	if stats.NegativeRadiance != 0 {
		t.Errorf("NegativeRadiance = %d, want 0 for a non-temperature target", stats.NegativeRadiance)
	}

	if corrected == nil {
		t.Fatal("doCorrection should return a corrected raster")
	}
	if corrected.Rows != 100 || corrected.Cols != 100 {
		t.Fatalf("corrected shape = %dx%d, want the fine 100x100", corrected.Rows, corrected.Cols)
	}
}

func TestResidualCorrectionImprovesAggregation(t *testing.T) {
	s, pair := trainedSharpener(t, Options{
		Backend:     BackendDecisionTree,
		NEstimators: 3,
		Seed:        2,
	})

	sharpened, err := s.Apply(pair.Fine, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	_, corrected, _, err := s.ResidualAnalysis(sharpened, pair.Coarse, nil, nil, true)
	if err != nil {
		t.Fatalf("ResidualAnalysis: %v", err)
	}

	// After correction, aggregating back to the coarse grid should be
	// closer to the coarse truth than the uncorrected sharpened raster.
	gt := pair.Coarse.GeoTransform
	before, _ := raster.Aggregate(sharpened, gt, 10, 10)
	after, _ := raster.Aggregate(corrected, gt, 10, 10)

	var sseBefore, sseAfter float64
	for i, truth := range pair.Coarse.Band(0) {
		db := before.Band(0)[i] - truth
		da := after.Band(0)[i] - truth
		sseBefore += db * db
		sseAfter += da * da
	}
	// Smoothing and resampling keep the correction from being exact, but it
	// must not make the coarse-scale agreement meaningfully worse.
	if sseAfter > sseBefore*1.05 {
		t.Errorf("correction worsened coarse-scale agreement: %f > %f", sseAfter, sseBefore)
	}
}

func TestTemperatureCorrectionFlagsNegativeRadiance(t *testing.T) {
	s, pair := trainedSharpener(t, Options{
		Backend:           BackendDecisionTree,
		TemperatureTarget: true,
		NEstimators:       2,
		Seed:              3,
	})

	sharpened, err := s.Apply(pair.Fine, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// Plant one near-zero pixel in an otherwise hot raster: the coarse-scale
	// residual is strongly negative, and that pixel's fourth power cannot
	// compensate it, so its radicand goes negative.
	doctored := sharpened.Clone()
	for i := range doctored.Band(0) {
		doctored.Band(0)[i] = 100
	}
	doctored.Band(0)[0] = 0.1

	_, corrected, stats, err := s.ResidualAnalysis(doctored, pair.Coarse, nil, nil, true)
	if err != nil {
		t.Fatalf("ResidualAnalysis: %v", err)
	}
	if stats.NegativeRadiance == 0 {
		t.Fatal("expected negative-radiance pixels to be counted")
	}
	found := false
	for _, v := range corrected.Band(0) {
		if math.IsNaN(v) {
			found = true
			break
		}
	}
	if !found {
		t.Error("negative-radiance pixels should be NaN in the corrected raster")
	}
}

func TestPadToShape(t *testing.T) {
	// 2x2 source grown to 3x4: last row and column replicate.
	vals := []float64{
		1, 2,
		3, 4,
	}
	out := padToShape(vals, 2, 2, 3, 4)
	want := []float64{
		1, 2, 2, 2,
		3, 4, 4, 4,
		3, 4, 4, 4,
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], want[i])
		}
	}

	// Matching shapes pass through unchanged.
	same := padToShape(vals, 2, 2, 2, 2)
	for i := range vals {
		if same[i] != vals[i] {
			t.Fatalf("same-shape pad changed value %d", i)
		}
	}
}
