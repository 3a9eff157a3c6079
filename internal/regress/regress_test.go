package regress

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStandardScalerRoundTrip(t *testing.T) {
	y := []float64{2, 4, 6, 8}
	sc := FitScalerVec(y)

	if math.Abs(sc.Mean[0]-5) > 1e-12 {
		t.Errorf("mean = %f, want 5", sc.Mean[0])
	}

	norm := sc.TransformVec(y)
	var sum float64
	for _, v := range norm {
		sum += v
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("normalized values sum to %f, want 0", sum)
	}

	back := sc.InverseVec(append([]float64(nil), norm...))
	for i := range y {
		if math.Abs(back[i]-y[i]) > 1e-9 {
			t.Errorf("round trip[%d] = %f, want %f", i, back[i], y[i])
		}
	}
}

func TestStandardScalerConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
	})
	sc := FitScaler(X)

	// Zero-variance columns pass through centered but unscaled.
	out := sc.Transform(X)
	for i := 0; i < 3; i++ {
		if got := out.At(i, 1); got != 0 {
			t.Errorf("constant column row %d = %f, want 0", i, got)
		}
	}
}
