package regress

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// stepData builds a 1-feature training set with a clean step: x < 50 maps to
// lo, x >= 50 maps to hi.
func stepData(n int, lo, hi float64) (*mat.Dense, []float64) {
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		X.Set(i, 0, x)
		if x < float64(n)/2 {
			y[i] = lo
		} else {
			y[i] = hi
		}
	}
	return X, y
}

func TestTreeFitsStepFunction(t *testing.T) {
	X, y := stepData(100, 10, 20)

	tree := NewTree(TreeOptions{MaxLeafNodes: 2, MinSamplesLeaf: 1})
	if err := tree.Fit(X, y, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred := tree.Predict(X)
	for i := range pred {
		if math.Abs(pred[i]-y[i]) > 1e-12 {
			t.Fatalf("pred[%d] = %f, want %f", i, pred[i], y[i])
		}
	}
}

func TestTreeHonorsMaxLeafNodes(t *testing.T) {
	n := 200
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y[i] = float64(i) // every split improves the fit
	}

	tree := NewTree(TreeOptions{MaxLeafNodes: 10, MinSamplesLeaf: 1})
	if err := tree.Fit(X, y, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := tree.LeafCount(); got > 10 {
		t.Errorf("LeafCount = %d, want <= 10", got)
	}
}

func TestTreeMinSamplesLeafSuppressesSplit(t *testing.T) {
	X, y := stepData(10, 0, 1)

	// Splitting 10 samples with a floor of 10 per child is impossible.
	tree := NewTree(TreeOptions{MinSamplesLeaf: 10})
	if err := tree.Fit(X, y, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := tree.LeafCount(); got != 1 {
		t.Fatalf("LeafCount = %d, want 1", got)
	}
	// The single leaf predicts the global mean.
	if got := tree.Predict(X)[0]; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("single-leaf prediction = %f, want 0.5", got)
	}
}

func TestTreeWeightsShiftLeafMeans(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 0})
	y := []float64{0, 10}
	w := []float64{3, 1}

	tree := NewTree(TreeOptions{})
	if err := tree.Fit(X, y, w); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := tree.Predict(X)[0]; math.Abs(got-2.5) > 1e-12 {
		t.Errorf("weighted mean = %f, want 2.5", got)
	}
}

func TestTreeMismatchedTargets(t *testing.T) {
	tree := NewTree(TreeOptions{})
	err := tree.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), []float64{1}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched target length")
	}
}

func TestTreeLeavesAreStable(t *testing.T) {
	X, y := stepData(100, 10, 20)
	tree := NewTree(TreeOptions{MaxLeafNodes: 4, MinSamplesLeaf: 5})
	if err := tree.Fit(X, y, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	first := tree.Leaves(X)
	second := tree.Leaves(X)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("leaf routing changed between calls at row %d", i)
		}
	}
}
