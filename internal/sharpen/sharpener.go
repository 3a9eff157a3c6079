// Package sharpen implements statistical downscaling of a coarse-resolution
// raster measurement using a co-registered fine-resolution raster. A
// regression from aggregated fine-resolution statistics to coarse values is
// trained per moving window plus once globally, applied at fine resolution,
// blended by residual magnitude and optionally bias-corrected.
package sharpen

import (
	"errors"
	"fmt"
	"log"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

var (
	// ErrNotTrained is returned when apply or residual analysis is invoked
	// before a training pass has produced a global model.
	ErrNotTrained = errors.New("sharpen: sharpener has not been trained")
	// ErrUnknownBackend is returned for a backend selector outside the
	// supported set.
	ErrUnknownBackend = errors.New("sharpen: unknown regression backend")
)

// Options configures a Sharpener.
type Options struct {
	// Backend selects the regression family: dt, rf, xgb or gpr.
	Backend string
	// CVHomogeneityThreshold is the coefficient-of-variation cutoff below
	// which a coarse pixel counts as homogeneous. Values <= 0 derive the
	// threshold per window from the CV distribution.
	CVHomogeneityThreshold float64
	// AutoThresholdPercentile is the percentile used for the derived
	// threshold; 0 uses DefaultAutoThresholdPercentile.
	AutoThresholdPercentile float64
	// MovingWindowSize is the local-regression window size in coarse
	// pixels; 0 trains the global regression only.
	MovingWindowSize int
	// TemperatureTarget marks the target as temperature-like, switching
	// residual computation and correction into the fourth-power radiance
	// domain where averaging is physically meaningful.
	TemperatureTarget bool
	// PerLeafLinearRegression enables per-leaf linear refinement for the dt
	// backend.
	PerLeafLinearRegression bool
	// ExtrapolationRatio bounds per-leaf linear extrapolation; 0 uses the
	// regress package default.
	ExtrapolationRatio float64
	// ChunkSize bounds the number of pixels predicted per batch during
	// whole-image prediction; 0 predicts in one batch. Batching never
	// changes results.
	ChunkSize int
	// NEstimators, LearningRate and MaxFeatures pass through to the
	// selected backend's ensemble options.
	NEstimators  int
	LearningRate float64
	MaxFeatures  int
	// GPR holds kernel hyperparameters for the gpr backend.
	GPR struct {
		LengthScale, SignalVar, NoiseVar float64
	}
	// Downsample optionally rebalances the global training set.
	Downsample *DownsampleOptions
	// Seed drives all randomized stages (bootstrap, downsampling).
	Seed int64
}

// ScenePair is one co-registered training input: a fine-resolution predictor
// scene, the coarse-resolution target scene, and an optional coarse quality
// scene with the set of good flag values.
type ScenePair struct {
	Fine             *raster.Scene
	Coarse           *raster.Scene
	Quality          *raster.Scene
	GoodQualityFlags []int
}

// Sharpener trains per-window regression models and applies them to produce
// sharpened fine-resolution rasters. It starts untrained; a training pass
// that yields a global model moves it to the trained state required by
// Apply and ResidualAnalysis.
type Sharpener struct {
	opts    Options
	backend backend

	windows []Window
	models  []*Model
	trained bool

	nTrain           int
	nTrainSubsampled int
}

// New validates the configuration and returns an untrained sharpener.
func New(opts Options) (*Sharpener, error) {
	b, err := newBackend(opts)
	if err != nil {
		return nil, err
	}
	if opts.PerLeafLinearRegression && opts.Backend != BackendDecisionTree {
		return nil, fmt.Errorf("sharpen: per-leaf linear regression requires the dt backend, got %q", opts.Backend)
	}
	return &Sharpener{opts: opts, backend: b}, nil
}

// Trained reports whether a training pass has produced a global model.
func (s *Sharpener) Trained() bool { return s.trained }

// TrainingSampleCounts returns the global window's training sample count and
// the count after downsampling (0 when no downsampler ran).
func (s *Sharpener) TrainingSampleCounts() (nTrain, nSubsampled int) {
	return s.nTrain, s.nTrainSubsampled
}

// Train selects training samples from every scene pair, partitions the
// coarse grid into windows and fits one model per window with a non-empty
// sample set, ending with the global window. All pairs must share the coarse
// grid. A window without samples gets no model; the sharpener only becomes
// trained when the global window has one.
func (s *Sharpener) Train(pairs ...ScenePair) error {
	if len(pairs) == 0 {
		return fmt.Errorf("sharpen: no training scene pairs")
	}
	for i, p := range pairs {
		if p.Fine == nil || p.Coarse == nil {
			return fmt.Errorf("sharpen: training pair %d is missing a scene", i)
		}
		if err := p.Fine.Validate(); err != nil {
			return fmt.Errorf("sharpen: fine scene %d: %w", i, err)
		}
		if err := p.Coarse.Validate(); err != nil {
			return fmt.Errorf("sharpen: coarse scene %d: %w", i, err)
		}
		if p.Coarse.Rows != pairs[0].Coarse.Rows || p.Coarse.Cols != pairs[0].Coarse.Cols {
			return fmt.Errorf("sharpen: coarse scene %d grid %dx%d differs from first pair %dx%d",
				i, p.Coarse.Rows, p.Coarse.Cols, pairs[0].Coarse.Rows, pairs[0].Coarse.Cols)
		}
	}

	rows := pairs[0].Coarse.Rows
	cols := pairs[0].Coarse.Cols
	windows := PartitionWindows(rows, cols, s.opts.MovingWindowSize, pairs[0].Coarse.GeoTransform)

	acc := make([]windowSamples, len(windows))
	for _, pair := range pairs {
		coarse := pair.Coarse.Clone().MaskNoData()
		data := coarse.Band(0)

		mean, std := raster.Aggregate(pair.Fine.Clone().MaskNoData(),
			coarse.GeoTransform, rows, cols)

		var quality []bool
		if pair.Quality != nil {
			quality = raster.QualityMask(pair.Quality, pair.GoodQualityFlags)
		}
		quality = qualityPixels(data, mean, quality)
		cv := computeCV(mean, std)

		for i, w := range windows {
			ws, threshold, eligible := selectWindowSamples(w, data, mean, cv, quality, cols,
				s.opts.CVHomogeneityThreshold, s.opts.AutoThresholdPercentile)
			if s.opts.CVHomogeneityThreshold <= 0 {
				log.Printf("Homogeneity CV threshold: %.2f", threshold)
			}
			if eligible > 0 {
				log.Printf("Window %d: %d training samples, %d%% of available coarse pixels",
					i, len(ws.Y), 100*len(ws.Y)/eligible)
			}
			acc[i].append(ws)
		}
	}

	models := make([]*Model, len(windows))
	for i := range windows {
		local := !windows[i].Global()
		m, err := s.fitWindow(acc[i], local, s.opts.Seed+int64(i))
		if err != nil {
			return err
		}
		models[i] = m
	}

	s.windows = windows
	s.models = models
	s.nTrain = len(acc[len(acc)-1].Y)
	s.trained = models[len(models)-1] != nil
	if !s.trained {
		log.Printf("Training produced no global model; sharpener remains untrained")
	}
	return nil
}
