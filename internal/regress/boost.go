package regress

import (
	"gonum.org/v1/gonum/mat"
)

// BoostOptions controls gradient-boosted tree fitting.
type BoostOptions struct {
	NEstimators  int     // boosting rounds; 0 uses DefaultBoostRounds
	LearningRate float64 // shrinkage per round; 0 uses DefaultLearningRate
	TreeOpts     TreeOptions
}

const (
	// DefaultBoostRounds is the number of boosting rounds when unset.
	DefaultBoostRounds = 100
	// DefaultLearningRate is the shrinkage applied to each round.
	DefaultLearningRate = 0.1
)

// GradientBoost fits shallow regression trees stage-wise on the residuals of
// the running prediction (squared-error gradient boosting).
type GradientBoost struct {
	Opts BoostOptions

	init  float64
	trees []*Tree
}

// Fit trains the boosted ensemble.
func (g *GradientBoost) Fit(X *mat.Dense, y, w []float64) error {
	n, _, err := checkTrainingSet(X, y, w)
	if err != nil {
		return err
	}

	rounds := g.Opts.NEstimators
	if rounds <= 0 {
		rounds = DefaultBoostRounds
	}
	lr := g.Opts.LearningRate
	if lr <= 0 {
		lr = DefaultLearningRate
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	wEff := w
	if wEff == nil {
		wEff = make([]float64, n)
		for i := range wEff {
			wEff[i] = 1
		}
	}

	g.init = weightedMean(idx, y, wEff)
	resid := make([]float64, n)
	for i, v := range y {
		resid[i] = v - g.init
	}

	g.trees = g.trees[:0]
	for m := 0; m < rounds; m++ {
		opts := g.Opts.TreeOpts
		opts.Seed = g.Opts.TreeOpts.Seed + int64(m)
		t := NewTree(opts)
		if err := t.Fit(X, resid, w); err != nil {
			return err
		}
		pred := t.Predict(X)
		improved := false
		for i, p := range pred {
			if p != 0 {
				improved = true
			}
			resid[i] -= lr * p
		}
		g.trees = append(g.trees, t)
		if !improved {
			break
		}
	}
	return nil
}

// Predict sums the initial estimate and the shrunken tree contributions.
func (g *GradientBoost) Predict(X *mat.Dense) []float64 {
	n, _ := X.Dims()
	lr := g.Opts.LearningRate
	if lr <= 0 {
		lr = DefaultLearningRate
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = g.init
	}
	for _, t := range g.trees {
		pred := t.Predict(X)
		for i, p := range pred {
			out[i] += lr * p
		}
	}
	return out
}

var _ Regressor = (*GradientBoost)(nil)
