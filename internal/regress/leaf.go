package regress

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultExtrapolationRatio bounds how far a per-leaf linear model may move
// outside the leaf's training target range.
const DefaultExtrapolationRatio = 0.25

// LeafRefiner decorates a tree-structured regressor with a linear model per
// leaf. After the base fit, the training samples routed to each leaf get
// their own ridge regression; at prediction time the leaf's linear value
// replaces the leaf constant, clamped to the leaf's training target range
// extended by ExtrapolationRatio times that range.
type LeafRefiner struct {
	Base *Tree
	// ExtrapolationRatio r clamps leaf predictions to
	// [leafMin - r*(leafMax-leafMin), leafMax + r*(leafMax-leafMin)].
	// 0 uses DefaultExtrapolationRatio.
	ExtrapolationRatio float64
	// RidgeLambda is passed to each leaf's linear model.
	RidgeLambda float64

	leaves map[int]*leafModel
}

type leafModel struct {
	lin      *Ridge
	min, max float64
}

// Fit fits the base tree, then one linear model per populated leaf.
func (lr *LeafRefiner) Fit(X *mat.Dense, y, w []float64) error {
	if err := lr.Base.Fit(X, y, w); err != nil {
		return err
	}

	ids := lr.Base.Leaves(X)
	byLeaf := map[int][]int{}
	for i, id := range ids {
		byLeaf[id] = append(byLeaf[id], i)
	}

	_, d := X.Dims()
	lr.leaves = make(map[int]*leafModel, len(byLeaf))
	for id, idx := range byLeaf {
		lm := &leafModel{
			lin: &Ridge{Lambda: lr.RidgeLambda},
			min: math.Inf(1),
			max: math.Inf(-1),
		}

		sub := mat.NewDense(len(idx), d, nil)
		suby := make([]float64, len(idx))
		var subw []float64
		if w != nil {
			subw = make([]float64, len(idx))
		}
		for k, i := range idx {
			sub.SetRow(k, X.RawRowView(i))
			suby[k] = y[i]
			if w != nil {
				subw[k] = w[i]
			}
			if y[i] < lm.min {
				lm.min = y[i]
			}
			if y[i] > lm.max {
				lm.max = y[i]
			}
		}
		if err := lm.lin.Fit(sub, suby, subw); err != nil {
			return err
		}
		lr.leaves[id] = lm
	}
	return nil
}

// Predict routes each row to its leaf, evaluates the leaf's linear model and
// clamps the result to the leaf's bounded extrapolation range.
func (lr *LeafRefiner) Predict(X *mat.Dense) []float64 {
	ratio := lr.ExtrapolationRatio
	if ratio == 0 {
		ratio = DefaultExtrapolationRatio
	}

	ids := lr.Base.Leaves(X)
	out := make([]float64, len(ids))
	_, d := X.Dims()
	row := mat.NewDense(1, d, nil)
	for i, id := range ids {
		lm := lr.leaves[id]
		if lm == nil {
			// Leaf never saw training data (cannot happen for the fitting
			// set, but a refit with different data could reroute).
			out[i] = lr.Base.nodes[id].value
			continue
		}
		row.SetRow(0, X.RawRowView(i))
		v := lm.lin.Predict(row)[0]
		ext := ratio * (lm.max - lm.min)
		if v < lm.min-ext {
			v = lm.min - ext
		}
		if v > lm.max+ext {
			v = lm.max + ext
		}
		out[i] = v
	}
	return out
}

// Leaves exposes the base tree's routing.
func (lr *LeafRefiner) Leaves(X *mat.Dense) []int {
	return lr.Base.Leaves(X)
}

var (
	_ Regressor     = (*LeafRefiner)(nil)
	_ LeafRegressor = (*LeafRefiner)(nil)
)
