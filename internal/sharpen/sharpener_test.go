package sharpen

import (
	"errors"
	"math"
	"testing"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

// testPair builds a co-registered pair: a 100x100 fine scene holding a
// smooth spatial gradient and a 10x10 coarse scene that is exactly the
// aggregation of the fine scene, so the fine-to-coarse regression is the
// identity.
func testPair() ScenePair {
	fine := raster.NewScene(1, 100, 100, raster.GeoTransform{0, 1, 0, 100, 0, -1}, "")
	for r := 0; r < 100; r++ {
		for c := 0; c < 100; c++ {
			fine.Set(0, r, c, 0.5*float64(r)+0.3*float64(c)+10)
		}
	}

	coarseGT := raster.GeoTransform{0, 10, 0, 100, 0, -10}
	mean, _ := raster.Aggregate(fine, coarseGT, 10, 10)
	coarse := raster.NewSceneFrom(mean.Band(0), 10, 10, coarseGT, "")

	return ScenePair{Fine: fine, Coarse: coarse}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Options{Backend: "svm"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestNewRejectsPerLeafOutsideDT(t *testing.T) {
	_, err := New(Options{Backend: BackendRandomForest, PerLeafLinearRegression: true})
	if err == nil {
		t.Fatal("expected error for per-leaf refinement with the rf backend")
	}
}

func TestApplyBeforeTraining(t *testing.T) {
	s, err := New(Options{Backend: BackendDecisionTree})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pair := testPair()
	if _, err := s.Apply(pair.Fine, nil); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("Apply err = %v, want ErrNotTrained", err)
	}
	if _, _, _, err := s.ResidualAnalysis(pair.Fine, pair.Coarse, nil, nil, false); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("ResidualAnalysis err = %v, want ErrNotTrained", err)
	}
}

func TestTrainAndApplyGlobalOnly(t *testing.T) {
	pair := testPair()
	s, err := New(Options{
		Backend:                 BackendDecisionTree,
		PerLeafLinearRegression: true,
		NEstimators:             3,
		Seed:                    1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Train(pair); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !s.Trained() {
		t.Fatal("sharpener should be trained after fitting the global window")
	}
	nTrain, _ := s.TrainingSampleCounts()
	if nTrain == 0 {
		t.Fatal("no training samples were selected")
	}

	out, err := s.Apply(pair.Fine, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Rows != 100 || out.Cols != 100 {
		t.Fatalf("output shape = %dx%d, want 100x100", out.Rows, out.Cols)
	}
	if out.GeoTransform != pair.Fine.GeoTransform {
		t.Error("output geotransform must match the fine input")
	}

	// The regression is the identity, so the sharpened raster should track
	// the fine scene closely.
	var sumAbs float64
	for i, v := range out.Band(0) {
		sumAbs += math.Abs(v - pair.Fine.Band(0)[i])
	}
	mae := sumAbs / float64(len(out.Band(0)))
	if mae > 2 {
		t.Errorf("mean absolute error = %f, want < 2", mae)
	}
}

func TestTrainWithMovingWindows(t *testing.T) {
	pair := testPair()
	s, err := New(Options{
		Backend:          BackendDecisionTree,
		MovingWindowSize: 5,
		NEstimators:      2,
		Seed:             3,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Train(pair); err != nil {
		t.Fatalf("Train: %v", err)
	}

	// 2x2 local tiles plus the global window.
	if got, want := len(s.windows), 5; got != want {
		t.Fatalf("window count = %d, want %d", got, want)
	}

	out, err := s.Apply(pair.Fine, pair.Coarse)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	finite := 0
	for _, v := range out.Band(0) {
		if !math.IsNaN(v) {
			finite++
		}
	}
	if finite == 0 {
		t.Fatal("blended output has no finite pixels")
	}
}

func TestAllBadQualityLeavesUntrained(t *testing.T) {
	pair := testPair()
	quality := raster.NewScene(1, 10, 10, pair.Coarse.GeoTransform, "")
	// Quality band is all zeros; only flag 1 is good.
	pair.Quality = quality
	pair.GoodQualityFlags = []int{1}

	s, err := New(Options{Backend: BackendDecisionTree, Seed: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Train(pair); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if s.Trained() {
		t.Fatal("sharpener must stay untrained when every pixel fails quality")
	}
	if _, err := s.Apply(pair.Fine, nil); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("Apply err = %v, want ErrNotTrained", err)
	}
}

func TestTrainRejectsMismatchedCoarseGrids(t *testing.T) {
	a := testPair()
	b := testPair()
	b.Coarse = raster.NewScene(1, 5, 5, raster.GeoTransform{0, 20, 0, 100, 0, -20}, "")

	s, err := New(Options{Backend: BackendDecisionTree})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Train(a, b); err == nil {
		t.Fatal("expected error for mismatched coarse grids")
	}
}

func TestMultiSceneTrainingAccumulatesSamples(t *testing.T) {
	a := testPair()
	b := testPair()

	single, err := New(Options{Backend: BackendDecisionTree, Seed: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := single.Train(a); err != nil {
		t.Fatalf("Train: %v", err)
	}
	double, err := New(Options{Backend: BackendDecisionTree, Seed: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := double.Train(a, b); err != nil {
		t.Fatalf("Train: %v", err)
	}

	n1, _ := single.TrainingSampleCounts()
	n2, _ := double.TrainingSampleCounts()
	if n2 != 2*n1 {
		t.Errorf("two identical scenes yielded %d samples, want %d", n2, 2*n1)
	}
}
