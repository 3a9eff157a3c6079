package regress

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// BaggingOptions controls a bootstrap-aggregated ensemble.
type BaggingOptions struct {
	NEstimators int   // number of base estimators; 0 uses DefaultNEstimators
	Seed        int64 // bootstrap sampling seed
}

// DefaultNEstimators is the ensemble size used when none is configured.
const DefaultNEstimators = 10

// Bagging averages base estimators fitted on bootstrap resamples of the
// training set. Sample weights are carried through to the base fits.
type Bagging struct {
	Opts BaggingOptions
	// NewBase constructs one unfitted base estimator. Estimators that need
	// per-member seeds receive them through this constructor.
	NewBase func(member int) Regressor

	estimators []Regressor
}

// Fit trains the ensemble.
func (b *Bagging) Fit(X *mat.Dense, y, w []float64) error {
	n, d, err := checkTrainingSet(X, y, w)
	if err != nil {
		return err
	}

	nEst := b.Opts.NEstimators
	if nEst <= 0 {
		nEst = DefaultNEstimators
	}
	rng := rand.New(rand.NewSource(b.Opts.Seed))

	b.estimators = make([]Regressor, 0, nEst)
	for m := 0; m < nEst; m++ {
		Xb := mat.NewDense(n, d, nil)
		yb := make([]float64, n)
		var wb []float64
		if w != nil {
			wb = make([]float64, n)
		}
		for i := 0; i < n; i++ {
			src := rng.Intn(n)
			Xb.SetRow(i, X.RawRowView(src))
			yb[i] = y[src]
			if w != nil {
				wb[i] = w[src]
			}
		}

		est := b.NewBase(m)
		if err := est.Fit(Xb, yb, wb); err != nil {
			return err
		}
		b.estimators = append(b.estimators, est)
	}
	return nil
}

// Predict averages the base estimators' predictions.
func (b *Bagging) Predict(X *mat.Dense) []float64 {
	n, _ := X.Dims()
	out := make([]float64, n)
	for _, est := range b.estimators {
		pred := est.Predict(X)
		for i, v := range pred {
			out[i] += v
		}
	}
	inv := 1 / float64(len(b.estimators))
	for i := range out {
		out[i] *= inv
	}
	return out
}

var _ Regressor = (*Bagging)(nil)
