package sharpen

import (
	"fmt"
	"log"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/fieldscale-data/thermal.report/internal/regress"
)

// Tree capacity policy: local windows train on small sample sets and are
// prone to overfitting, so they get fewer leaves than the global window.
const (
	localMaxLeafNodes  = 10
	globalMaxLeafNodes = 30
	minSamplesLeaf     = 10
)

// Model is a fitted regression for one window: the regressor plus the
// optional input/output scaling transforms it was fitted with. Models are
// immutable after training.
type Model struct {
	Reg       regress.Regressor
	InScaler  *regress.StandardScaler
	OutScaler *regress.StandardScaler
}

// Backend identifiers; the canonical, closed set.
const (
	BackendDecisionTree = "dt"
	BackendRandomForest = "rf"
	BackendBoostedTrees = "xgb"
	BackendGaussianProc = "gpr"
)

// backend constructs per-window regressors for one of the supported
// regression families.
type backend interface {
	name() string
	// newRegressor returns an unfitted regressor with capacity appropriate
	// for a local or global window.
	newRegressor(local bool, seed int64) regress.Regressor
	// scaleInputs reports whether the backend needs standardized features.
	scaleInputs() bool
	// treeStructured reports whether the capacity policy applies.
	treeStructured() bool
}

func newBackend(opts Options) (backend, error) {
	switch opts.Backend {
	case BackendDecisionTree:
		return dtBackend{opts}, nil
	case BackendRandomForest:
		return rfBackend{opts}, nil
	case BackendBoostedTrees:
		return xgbBackend{opts}, nil
	case BackendGaussianProc:
		return gprBackend{opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected one of dt, rf, xgb, gpr)", ErrUnknownBackend, opts.Backend)
	}
}

func treeCapacity(local bool) regress.TreeOptions {
	opts := regress.TreeOptions{
		MaxLeafNodes:   globalMaxLeafNodes,
		MinSamplesLeaf: minSamplesLeaf,
	}
	if local {
		opts.MaxLeafNodes = localMaxLeafNodes
	}
	return opts
}

// dtBackend bags decision trees, optionally refined with per-leaf linear
// models.
type dtBackend struct{ opts Options }

func (b dtBackend) name() string         { return BackendDecisionTree }
func (b dtBackend) scaleInputs() bool    { return false }
func (b dtBackend) treeStructured() bool { return true }

func (b dtBackend) newRegressor(local bool, seed int64) regress.Regressor {
	return &regress.Bagging{
		Opts: regress.BaggingOptions{NEstimators: b.opts.NEstimators, Seed: seed},
		NewBase: func(member int) regress.Regressor {
			topts := treeCapacity(local)
			topts.Seed = seed + int64(member)
			tree := regress.NewTree(topts)
			if !b.opts.PerLeafLinearRegression {
				return tree
			}
			return &regress.LeafRefiner{
				Base:               tree,
				ExtrapolationRatio: b.opts.ExtrapolationRatio,
			}
		},
	}
}

// rfBackend is a random forest: bagged trees with per-split feature
// subsampling.
type rfBackend struct{ opts Options }

func (b rfBackend) name() string         { return BackendRandomForest }
func (b rfBackend) scaleInputs() bool    { return false }
func (b rfBackend) treeStructured() bool { return true }

func (b rfBackend) newRegressor(local bool, seed int64) regress.Regressor {
	return &regress.Bagging{
		Opts: regress.BaggingOptions{NEstimators: b.opts.NEstimators, Seed: seed},
		NewBase: func(member int) regress.Regressor {
			topts := treeCapacity(local)
			topts.Seed = seed + int64(member)
			topts.MaxFeatures = b.opts.MaxFeatures
			return regress.NewTree(topts)
		},
	}
}

// xgbBackend is squared-error gradient boosting over shallow trees.
type xgbBackend struct{ opts Options }

func (b xgbBackend) name() string         { return BackendBoostedTrees }
func (b xgbBackend) scaleInputs() bool    { return false }
func (b xgbBackend) treeStructured() bool { return true }

func (b xgbBackend) newRegressor(local bool, seed int64) regress.Regressor {
	return &regress.GradientBoost{
		Opts: regress.BoostOptions{
			NEstimators:  b.opts.NEstimators,
			LearningRate: b.opts.LearningRate,
			TreeOpts:     treeCapacityWithSeed(local, seed),
		},
	}
}

func treeCapacityWithSeed(local bool, seed int64) regress.TreeOptions {
	opts := treeCapacity(local)
	opts.Seed = seed
	return opts
}

// gprBackend is Gaussian-process regression; it requires standardized
// inputs and normalizes targets internally.
type gprBackend struct{ opts Options }

func (b gprBackend) name() string         { return BackendGaussianProc }
func (b gprBackend) scaleInputs() bool    { return true }
func (b gprBackend) treeStructured() bool { return false }

func (b gprBackend) newRegressor(local bool, seed int64) regress.Regressor {
	return &regress.GPR{Opts: b.opts.GPR}
}

// fitWindow fits one window's model. The downsampling policy, when
// configured, applies only to the global window.
func (s *Sharpener) fitWindow(ws windowSamples, local bool, seed int64) (*Model, error) {
	if ws.empty() {
		return nil, nil
	}

	if s.opts.Downsample != nil && !local {
		ws = downsample(ws, *s.opts.Downsample)
		s.nTrainSubsampled = len(ws.Y)
		log.Printf("Downsampled global training set to %d samples", len(ws.Y))
	}

	X := denseFromRows(ws.X)
	y := ws.Y
	w := ws.W

	m := &Model{Reg: s.backend.newRegressor(local, seed)}
	if s.backend.scaleInputs() {
		m.InScaler = regress.FitScaler(X)
		X = m.InScaler.Transform(X)
	}
	if err := m.Reg.Fit(X, y, w); err != nil {
		return nil, fmt.Errorf("fitting %s regressor: %w", s.backend.name(), err)
	}
	return m, nil
}

func denseFromRows(rows [][]float64) *mat.Dense {
	n := len(rows)
	d := len(rows[0])
	X := mat.NewDense(n, d, nil)
	for i, row := range rows {
		X.SetRow(i, row)
	}
	return X
}

// DownsamplePolicy names a global-window downsampling strategy.
type DownsamplePolicy string

const (
	// DownsampleExtremes keeps extreme target values and randomly thins the
	// over-represented mid-range.
	DownsampleExtremes DownsamplePolicy = "extremes"
	// DownsampleCluster stratifies samples into k-means clusters over
	// [features, target] and subsamples every cluster to the smallest
	// cluster's size.
	DownsampleCluster DownsamplePolicy = "cluster"
)

// DownsampleOptions configures the optional global-window downsampler.
type DownsampleOptions struct {
	Policy DownsamplePolicy
	// Percent is the extremes policy's retention: targets outside the
	// [Percent/2, 100-Percent/2] percentile band are always kept, the rest
	// are retained with probability Percent/100. Default 10.
	Percent float64
	// Clusters is the cluster policy's k. Default 5.
	Clusters int
	// Fraction uniformly pre-thins the sample set before clustering.
	// Default 1 (no pre-thinning).
	Fraction float64
	Seed     int64
}

func downsample(ws windowSamples, opts DownsampleOptions) windowSamples {
	switch opts.Policy {
	case DownsampleExtremes:
		return downsampleExtremes(ws, opts)
	case DownsampleCluster:
		return downsampleCluster(ws, opts)
	default:
		return ws
	}
}

func downsampleExtremes(ws windowSamples, opts DownsampleOptions) windowSamples {
	pct := opts.Percent
	if pct <= 0 {
		pct = 10
	}
	lower := quantile(ws.Y, pct/2)
	upper := quantile(ws.Y, 100-pct/2)

	rng := rand.New(rand.NewSource(opts.Seed))
	var out windowSamples
	kept := 0
	for i, y := range ws.Y {
		mid := y > lower && y < upper
		if mid && rng.Float64() >= pct/100 {
			continue
		}
		if !mid {
			kept++
		}
		out.X = append(out.X, ws.X[i])
		out.Y = append(out.Y, y)
		out.W = append(out.W, ws.W[i])
	}
	log.Printf("Kept %d extreme target values while thinning the mid-range", kept)
	return out
}

func downsampleCluster(ws windowSamples, opts DownsampleOptions) windowSamples {
	k := opts.Clusters
	if k <= 0 {
		k = 5
	}
	frac := opts.Fraction
	if frac <= 0 || frac > 1 {
		frac = 1
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	// Uniform pre-thinning.
	thinned := ws
	if frac < 1 {
		thinned = windowSamples{}
		for i := range ws.Y {
			if rng.Float64() <= frac {
				thinned.X = append(thinned.X, ws.X[i])
				thinned.Y = append(thinned.Y, ws.Y[i])
				thinned.W = append(thinned.W, ws.W[i])
			}
		}
	}
	if thinned.empty() {
		return thinned
	}
	if k > len(thinned.Y) {
		k = len(thinned.Y)
	}

	// Cluster jointly over features and target.
	d := len(thinned.X[0])
	joint := mat.NewDense(len(thinned.Y), d+1, nil)
	for i, row := range thinned.X {
		for j, v := range row {
			joint.Set(i, j, v)
		}
		joint.Set(i, d, thinned.Y[i])
	}
	labels := regress.KMeans(joint, k, 100, opts.Seed)

	byCluster := make([][]int, k)
	for i, l := range labels {
		byCluster[l] = append(byCluster[l], i)
	}
	nMin := len(thinned.Y)
	for _, ids := range byCluster {
		if len(ids) > 0 && len(ids) < nMin {
			nMin = len(ids)
		}
	}

	var out windowSamples
	for _, ids := range byCluster {
		if len(ids) == 0 {
			continue
		}
		rng.Shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })
		for _, i := range ids[:nMin] {
			out.X = append(out.X, thinned.X[i])
			out.Y = append(out.Y, thinned.Y[i])
			out.W = append(out.W, thinned.W[i])
		}
	}
	return out
}
