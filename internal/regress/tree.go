package regress

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeOptions controls regression tree growth.
type TreeOptions struct {
	// MaxLeafNodes bounds the number of leaves; 0 means unlimited. Growth is
	// best-first: the pending leaf with the largest impurity decrease is
	// split next, so a small bound keeps the most informative splits.
	MaxLeafNodes int
	// MinSamplesLeaf is the minimum sample count in each child of a split.
	// Zero is treated as 1.
	MinSamplesLeaf int
	// MaxFeatures restricts each split search to a random subset of
	// features; 0 considers all features.
	MaxFeatures int
	// Seed drives the feature subsampling; only used when MaxFeatures > 0.
	Seed int64
}

type treeNode struct {
	feature     int
	threshold   float64
	left, right int // -1 when the node is a leaf
	value       float64
}

// Tree is a weighted CART regression tree.
type Tree struct {
	Opts  TreeOptions
	nodes []treeNode
}

// NewTree returns an unfitted tree with the given options.
func NewTree(opts TreeOptions) *Tree {
	return &Tree{Opts: opts}
}

// candidate is a grown leaf with its best split precomputed.
type candidate struct {
	node    int
	idx     []int
	feature int
	thresh  float64
	gain    float64
}

// Fit grows the tree on (X, y) with per-sample weights. A nil w means equal
// weights.
func (t *Tree) Fit(X *mat.Dense, y, w []float64) error {
	n, d, err := checkTrainingSet(X, y, w)
	if err != nil {
		return err
	}
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}
	minLeaf := t.Opts.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	var rng *rand.Rand
	if t.Opts.MaxFeatures > 0 && t.Opts.MaxFeatures < d {
		rng = rand.New(rand.NewSource(t.Opts.Seed))
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	t.nodes = t.nodes[:0]
	root := t.appendLeaf(weightedMean(idx, y, w))

	pending := []candidate{}
	if c, ok := t.bestSplit(root, idx, X, y, w, d, minLeaf, rng); ok {
		pending = append(pending, c)
	}

	leaves := 1
	for len(pending) > 0 {
		if t.Opts.MaxLeafNodes > 0 && leaves >= t.Opts.MaxLeafNodes {
			break
		}

		// Split the pending leaf with the largest gain.
		best := 0
		for i := range pending {
			if pending[i].gain > pending[best].gain {
				best = i
			}
		}
		c := pending[best]
		pending = append(pending[:best], pending[best+1:]...)

		var leftIdx, rightIdx []int
		for _, i := range c.idx {
			if X.At(i, c.feature) <= c.thresh {
				leftIdx = append(leftIdx, i)
			} else {
				rightIdx = append(rightIdx, i)
			}
		}

		left := t.appendLeaf(weightedMean(leftIdx, y, w))
		right := t.appendLeaf(weightedMean(rightIdx, y, w))
		t.nodes[c.node].feature = c.feature
		t.nodes[c.node].threshold = c.thresh
		t.nodes[c.node].left = left
		t.nodes[c.node].right = right
		leaves++

		if lc, ok := t.bestSplit(left, leftIdx, X, y, w, d, minLeaf, rng); ok {
			pending = append(pending, lc)
		}
		if rc, ok := t.bestSplit(right, rightIdx, X, y, w, d, minLeaf, rng); ok {
			pending = append(pending, rc)
		}
	}
	return nil
}

func (t *Tree) appendLeaf(value float64) int {
	t.nodes = append(t.nodes, treeNode{left: -1, right: -1, value: value})
	return len(t.nodes) - 1
}

// bestSplit finds the weighted-SSE-optimal split of idx, honoring the
// min-samples-leaf floor. Returns false when no valid split improves the fit.
func (t *Tree) bestSplit(node int, idx []int, X *mat.Dense, y, w []float64, d, minLeaf int, rng *rand.Rand) (candidate, bool) {
	if len(idx) < 2*minLeaf {
		return candidate{}, false
	}

	features := make([]int, d)
	for j := range features {
		features[j] = j
	}
	if rng != nil {
		rng.Shuffle(d, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:t.Opts.MaxFeatures]
	}

	parentSSE := weightedSSE(idx, y, w)
	best := candidate{node: node, idx: idx, gain: 0}
	found := false

	order := make([]int, len(idx))
	for _, j := range features {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X.At(order[a], j) < X.At(order[b], j) })

		var lw, lwy, lwyy float64
		tw, twy, twyy := sums(idx, y, w)

		for i := 0; i < len(order)-1; i++ {
			s := order[i]
			lw += w[s]
			lwy += w[s] * y[s]
			lwyy += w[s] * y[s] * y[s]

			// No split between equal feature values.
			if X.At(s, j) == X.At(order[i+1], j) {
				continue
			}
			if i+1 < minLeaf || len(order)-(i+1) < minLeaf {
				continue
			}

			rw := tw - lw
			if lw <= 0 || rw <= 0 {
				continue
			}
			leftSSE := lwyy - lwy*lwy/lw
			rwy := twy - lwy
			rightSSE := (twyy - lwyy) - rwy*rwy/rw
			gain := parentSSE - leftSSE - rightSSE
			if gain > best.gain {
				best.feature = j
				best.thresh = (X.At(s, j) + X.At(order[i+1], j)) / 2
				best.gain = gain
				found = true
			}
		}
	}
	return best, found && best.gain > 1e-12
}

func sums(idx []int, y, w []float64) (tw, twy, twyy float64) {
	for _, i := range idx {
		tw += w[i]
		twy += w[i] * y[i]
		twyy += w[i] * y[i] * y[i]
	}
	return tw, twy, twyy
}

func weightedMean(idx []int, y, w []float64) float64 {
	tw, twy, _ := sums(idx, y, w)
	if tw == 0 {
		return 0
	}
	return twy / tw
}

func weightedSSE(idx []int, y, w []float64) float64 {
	tw, twy, twyy := sums(idx, y, w)
	if tw == 0 {
		return 0
	}
	return twyy - twy*twy/tw
}

// Predict returns the leaf value for each row of X.
func (t *Tree) Predict(X *mat.Dense) []float64 {
	ids := t.Leaves(X)
	out := make([]float64, len(ids))
	for i, id := range ids {
		out[i] = t.nodes[id].value
	}
	return out
}

// Leaves routes each row of X to a leaf and returns the leaf node indices.
func (t *Tree) Leaves(X *mat.Dense) []int {
	n, _ := X.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		node := 0
		for t.nodes[node].left >= 0 {
			if X.At(i, t.nodes[node].feature) <= t.nodes[node].threshold {
				node = t.nodes[node].left
			} else {
				node = t.nodes[node].right
			}
		}
		out[i] = node
	}
	return out
}

// LeafCount returns the number of leaves in the fitted tree.
func (t *Tree) LeafCount() int {
	count := 0
	for _, n := range t.nodes {
		if n.left < 0 {
			count++
		}
	}
	return count
}

var (
	_ Regressor     = (*Tree)(nil)
	_ LeafRegressor = (*Tree)(nil)
)
