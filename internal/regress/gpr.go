package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GPROptions holds fixed kernel hyperparameters for Gaussian-process
// regression with an RBF plus white-noise kernel.
type GPROptions struct {
	LengthScale float64 // RBF length scale; 0 uses 10
	SignalVar   float64 // RBF signal variance; 0 uses 1
	NoiseVar    float64 // white-noise variance; 0 uses 1
}

func (o GPROptions) withDefaults() GPROptions {
	if o.LengthScale <= 0 {
		o.LengthScale = 10
	}
	if o.SignalVar <= 0 {
		o.SignalVar = 1
	}
	if o.NoiseVar <= 0 {
		o.NoiseVar = 1
	}
	return o
}

// GPR is a Gaussian-process regressor with fixed hyperparameters. Targets
// are normalized internally, so callers only need to standardize inputs.
// Sample weights are accepted for interface compatibility but ignored, as in
// the reference pipeline's Gaussian-process backend.
type GPR struct {
	Opts GPROptions

	train      *mat.Dense
	alpha      []float64
	yMean, yStd float64
}

// Fit factorizes the kernel matrix and precomputes the prediction weights.
func (g *GPR) Fit(X *mat.Dense, y, w []float64) error {
	n, _, err := checkTrainingSet(X, y, w)
	if err != nil {
		return err
	}
	opts := g.Opts.withDefaults()

	sc := FitScalerVec(y)
	g.yMean = sc.Mean[0]
	g.yStd = sc.Std[0]
	yn := sc.TransformVec(y)

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := opts.SignalVar * math.Exp(-sqDist(X, i, X, j)/(2*opts.LengthScale*opts.LengthScale))
			if i == j {
				v += opts.NoiseVar
			}
			k.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return fmt.Errorf("gpr kernel matrix is not positive definite")
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, mat.NewVecDense(n, yn)); err != nil {
		return fmt.Errorf("gpr solve failed: %w", err)
	}

	g.train = mat.DenseCopyOf(X)
	g.alpha = make([]float64, n)
	for i := 0; i < n; i++ {
		g.alpha[i] = sol.AtVec(i)
	}
	return nil
}

// Predict evaluates the posterior mean for each row of X.
func (g *GPR) Predict(X *mat.Dense) []float64 {
	opts := g.Opts.withDefaults()
	n, _ := X.Dims()
	m, _ := g.train.Dims()

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var v float64
		for j := 0; j < m; j++ {
			v += g.alpha[j] * opts.SignalVar *
				math.Exp(-sqDist(X, i, g.train, j)/(2*opts.LengthScale*opts.LengthScale))
		}
		out[i] = g.yMean + g.yStd*v
	}
	return out
}

func sqDist(a *mat.Dense, i int, b *mat.Dense, j int) float64 {
	_, d := a.Dims()
	var s float64
	for k := 0; k < d; k++ {
		diff := a.At(i, k) - b.At(j, k)
		s += diff * diff
	}
	return s
}

var _ Regressor = (*GPR)(nil)
