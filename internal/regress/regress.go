// Package regress implements the regression capability used by the sharpening
// engine: weighted regression trees with best-first growth, bagged and
// boosted tree ensembles, Gaussian-process regression, a ridge linear model
// and a per-leaf linear refinement decorator. All estimators share the same
// fit/predict contract over gonum matrices.
package regress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Regressor is the shared fit/predict contract. Fit consumes a feature
// matrix (rows = samples), a target vector and per-sample weights; weights
// may be nil for equal weighting. Predict is deterministic per sample.
type Regressor interface {
	Fit(X *mat.Dense, y, w []float64) error
	Predict(X *mat.Dense) []float64
}

// LeafRegressor is implemented by tree-structured regressors that can report
// which leaf each sample is routed to, enabling per-leaf refinement.
type LeafRegressor interface {
	Regressor
	// Leaves returns the leaf identifier for each row of X. Identifiers are
	// stable across calls on a fitted model.
	Leaves(X *mat.Dense) []int
}

// ErrNoSamples is returned by Fit when the training set is empty.
var ErrNoSamples = errors.New("regress: no training samples")

func checkTrainingSet(X *mat.Dense, y, w []float64) (n, d int, err error) {
	n, d = X.Dims()
	if n == 0 {
		return 0, 0, ErrNoSamples
	}
	if len(y) != n {
		return 0, 0, fmt.Errorf("regress: %d samples but %d targets", n, len(y))
	}
	if w != nil && len(w) != n {
		return 0, 0, fmt.Errorf("regress: %d samples but %d weights", n, len(w))
	}
	return n, d, nil
}

// StandardScaler standardizes features to zero mean and unit variance,
// column by column. Columns with zero variance pass through unscaled.
type StandardScaler struct {
	Mean, Std []float64
}

// FitScaler computes column statistics for X.
func FitScaler(X *mat.Dense) *StandardScaler {
	n, d := X.Dims()
	s := &StandardScaler{
		Mean: make([]float64, d),
		Std:  make([]float64, d),
	}
	for j := 0; j < d; j++ {
		var sum, sumSq float64
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			sum += v
			sumSq += v * v
		}
		m := sum / float64(n)
		v := sumSq/float64(n) - m*m
		if v < 0 {
			v = 0
		}
		s.Mean[j] = m
		s.Std[j] = math.Sqrt(v)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return s
}

// FitScalerVec computes scaler statistics for a single column vector.
func FitScalerVec(y []float64) *StandardScaler {
	return FitScaler(mat.NewDense(len(y), 1, append([]float64(nil), y...)))
}

// Transform returns a standardized copy of X.
func (s *StandardScaler) Transform(X *mat.Dense) *mat.Dense {
	n, d := X.Dims()
	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Std[j])
		}
	}
	return out
}

// TransformVec standardizes a single-column vector in a new slice.
func (s *StandardScaler) TransformVec(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = (v - s.Mean[0]) / s.Std[0]
	}
	return out
}

// InverseVec undoes TransformVec in place and returns the slice.
func (s *StandardScaler) InverseVec(y []float64) []float64 {
	for i, v := range y {
		y[i] = v*s.Std[0] + s.Mean[0]
	}
	return y
}
