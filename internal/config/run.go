package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldscale-data/thermal.report/internal/sharpen"
)

// RunConfig represents the root configuration for a sharpening run.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
type RunConfig struct {
	// Input scenes. The three lists are matched by index; quality files
	// are optional (empty list means every coarse pixel is usable).
	FineFiles    []string `json:"fine_files"`
	CoarseFiles  []string `json:"coarse_files"`
	QualityFiles []string `json:"quality_files,omitempty"`
	GoodFlags    []int    `json:"good_quality_flags,omitempty"`

	// Outputs
	SharpenedFile  *string `json:"sharpened_file,omitempty"`
	ResidualFile   *string `json:"residual_file,omitempty"`
	CorrectedFile  *string `json:"corrected_file,omitempty"`
	StatsFile      *string `json:"stats_file,omitempty"`
	HistoryDB      *string `json:"history_db,omitempty"`
	DiagnosticsDir *string `json:"diagnostics_dir,omitempty"`

	// Regression params
	Backend           *string  `json:"backend,omitempty"`
	MovingWindowSize  *int     `json:"moving_window_size,omitempty"`
	CVThreshold       *float64 `json:"cv_homogeneity_threshold,omitempty"`
	AutoPercentile    *float64 `json:"auto_threshold_percentile,omitempty"`
	PerLeafLinear     *bool    `json:"per_leaf_linear_regression,omitempty"`
	Extrapolation     *float64 `json:"extrapolation_ratio,omitempty"`
	TemperatureTarget *bool    `json:"temperature_target,omitempty"`
	ResidualCorrect   *bool    `json:"residual_correction,omitempty"`
	ChunkSize         *int     `json:"chunk_size,omitempty"`
	NEstimators       *int     `json:"n_estimators,omitempty"`
	LearningRate      *float64 `json:"learning_rate,omitempty"`
	MaxFeatures       *int     `json:"max_features,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`

	// GPR kernel params (ignored by the tree backends)
	GPRLengthScale *float64 `json:"gpr_length_scale,omitempty"`
	GPRSignalVar   *float64 `json:"gpr_signal_variance,omitempty"`
	GPRNoiseVar    *float64 `json:"gpr_noise_variance,omitempty"`

	// Training-set downsampling (global window only)
	DownsamplePolicy   *string  `json:"downsample_policy,omitempty"`
	DownsamplePercent  *float64 `json:"downsample_percent,omitempty"`
	DownsampleClusters *int     `json:"downsample_clusters,omitempty"`
	DownsampleFraction *float64 `json:"downsample_fraction,omitempty"`
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if len(c.FineFiles) == 0 {
		return fmt.Errorf("at least one fine input file is required")
	}
	if len(c.FineFiles) != len(c.CoarseFiles) {
		return fmt.Errorf("fine_files and coarse_files must match: %d vs %d",
			len(c.FineFiles), len(c.CoarseFiles))
	}
	if len(c.QualityFiles) != 0 && len(c.QualityFiles) != len(c.CoarseFiles) {
		return fmt.Errorf("quality_files must be empty or match coarse_files: %d vs %d",
			len(c.QualityFiles), len(c.CoarseFiles))
	}

	if c.Backend != nil {
		switch *c.Backend {
		case sharpen.BackendDecisionTree, sharpen.BackendRandomForest,
			sharpen.BackendBoostedTrees, sharpen.BackendGaussianProc:
		default:
			return fmt.Errorf("unknown backend %q", *c.Backend)
		}
	}

	if c.MovingWindowSize != nil && *c.MovingWindowSize < 0 {
		return fmt.Errorf("moving_window_size must be non-negative, got %d", *c.MovingWindowSize)
	}
	if c.AutoPercentile != nil {
		if *c.AutoPercentile <= 0 || *c.AutoPercentile > 100 {
			return fmt.Errorf("auto_threshold_percentile must be in (0, 100], got %f", *c.AutoPercentile)
		}
	}
	if c.Extrapolation != nil && *c.Extrapolation < 0 {
		return fmt.Errorf("extrapolation_ratio must be non-negative, got %f", *c.Extrapolation)
	}
	if c.DownsamplePolicy != nil {
		switch sharpen.DownsamplePolicy(*c.DownsamplePolicy) {
		case "", sharpen.DownsampleExtremes, sharpen.DownsampleCluster:
		default:
			return fmt.Errorf("unknown downsample_policy %q", *c.DownsamplePolicy)
		}
	}
	if c.DownsamplePercent != nil {
		if *c.DownsamplePercent < 0 || *c.DownsamplePercent > 100 {
			return fmt.Errorf("downsample_percent must be in [0, 100], got %f", *c.DownsamplePercent)
		}
	}

	return nil
}

// GetBackend returns the backend name or the default.
func (c *RunConfig) GetBackend() string {
	if c.Backend == nil {
		return sharpen.BackendDecisionTree
	}
	return *c.Backend
}

// GetResidualCorrection returns the residual_correction value or the default.
func (c *RunConfig) GetResidualCorrection() bool {
	if c.ResidualCorrect == nil {
		return true
	}
	return *c.ResidualCorrect
}

// GetDiagnosticsDir returns the diagnostics_dir value or empty when
// diagnostics are disabled.
func (c *RunConfig) GetDiagnosticsDir() string {
	if c.DiagnosticsDir == nil {
		return ""
	}
	return *c.DiagnosticsDir
}

// Options maps the configuration onto sharpening options, applying
// defaults for any unset fields.
func (c *RunConfig) Options() sharpen.Options {
	opts := sharpen.Options{Backend: c.GetBackend()}

	if c.MovingWindowSize != nil {
		opts.MovingWindowSize = *c.MovingWindowSize
	}
	if c.CVThreshold != nil {
		opts.CVHomogeneityThreshold = *c.CVThreshold
	}
	if c.AutoPercentile != nil {
		opts.AutoThresholdPercentile = *c.AutoPercentile
	}
	if c.PerLeafLinear != nil {
		opts.PerLeafLinearRegression = *c.PerLeafLinear
	}
	if c.Extrapolation != nil {
		opts.ExtrapolationRatio = *c.Extrapolation
	}
	if c.TemperatureTarget != nil {
		opts.TemperatureTarget = *c.TemperatureTarget
	}
	if c.ChunkSize != nil {
		opts.ChunkSize = *c.ChunkSize
	}
	if c.NEstimators != nil {
		opts.NEstimators = *c.NEstimators
	}
	if c.LearningRate != nil {
		opts.LearningRate = *c.LearningRate
	}
	if c.MaxFeatures != nil {
		opts.MaxFeatures = *c.MaxFeatures
	}
	if c.Seed != nil {
		opts.Seed = *c.Seed
	}
	if c.GPRLengthScale != nil {
		opts.GPR.LengthScale = *c.GPRLengthScale
	}
	if c.GPRSignalVar != nil {
		opts.GPR.SignalVar = *c.GPRSignalVar
	}
	if c.GPRNoiseVar != nil {
		opts.GPR.NoiseVar = *c.GPRNoiseVar
	}

	if c.DownsamplePolicy != nil && *c.DownsamplePolicy != "" {
		ds := &sharpen.DownsampleOptions{Policy: sharpen.DownsamplePolicy(*c.DownsamplePolicy)}
		if c.DownsamplePercent != nil {
			ds.Percent = *c.DownsamplePercent
		}
		if c.DownsampleClusters != nil {
			ds.Clusters = *c.DownsampleClusters
		}
		if c.DownsampleFraction != nil {
			ds.Fraction = *c.DownsampleFraction
		}
		if c.Seed != nil {
			ds.Seed = *c.Seed
		}
		opts.Downsample = ds
	}

	return opts
}
