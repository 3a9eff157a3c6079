// Command sharpen trains a data-mining sharpener on paired fine/coarse
// scenes and writes the sharpened raster plus optional residual
// diagnostics and run history.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fieldscale-data/thermal.report/internal/config"
	"github.com/fieldscale-data/thermal.report/internal/monitor"
	"github.com/fieldscale-data/thermal.report/internal/raster"
	"github.com/fieldscale-data/thermal.report/internal/runstats"
	"github.com/fieldscale-data/thermal.report/internal/sharpen"
	"github.com/fieldscale-data/thermal.report/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to run configuration JSON (required)")
	backendOverride := flag.String("backend", "", "Override the configured regression backend (dt, rf, xgb, gpr)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sharpen %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadRunConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *backendOverride != "" {
		cfg.Backend = backendOverride
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid backend override: %v", err)
		}
	}

	if err := run(cfg); err != nil {
		log.Fatalf("sharpen: %v", err)
	}
}

func run(cfg *config.RunConfig) error {
	pairs, err := loadPairs(cfg)
	if err != nil {
		return err
	}

	s, err := sharpen.New(cfg.Options())
	if err != nil {
		return err
	}

	log.Printf("training %s backend on %d scene pair(s)", cfg.GetBackend(), len(pairs))
	if err := s.Train(pairs...); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	nTrain, nSub := s.TrainingSampleCounts()
	log.Printf("training complete: %d samples (%d after subsampling)", nTrain, nSub)

	// Sharpen the first pair's scenes; additional pairs contribute
	// training data only.
	sharpened, err := s.Apply(pairs[0].Fine, pairs[0].Coarse)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}
	if cfg.SharpenedFile != nil {
		if err := raster.Save(sharpened, *cfg.SharpenedFile); err != nil {
			return err
		}
		log.Printf("wrote sharpened raster to %s", *cfg.SharpenedFile)
	}

	residual, corrected, stats, err := s.ResidualAnalysis(
		sharpened, pairs[0].Coarse, pairs[0].Quality, pairs[0].GoodQualityFlags,
		cfg.GetResidualCorrection())
	if err != nil {
		return fmt.Errorf("residual analysis failed: %w", err)
	}
	log.Printf("residual analysis: bias=%.4f RMSD=%.4f over %d pixels", stats.Bias, stats.RMSD, stats.NTest)

	if cfg.ResidualFile != nil {
		if err := raster.Save(residual, *cfg.ResidualFile); err != nil {
			return err
		}
	}
	if corrected != nil && cfg.CorrectedFile != nil {
		if err := raster.Save(corrected, *cfg.CorrectedFile); err != nil {
			return err
		}
	}

	rec := runstats.NewRecord(cfg.GetBackend())
	rec.NTrain = nTrain
	rec.NTrainSubsampled = nSub
	rec.NTest = stats.NTest
	rec.Bias = stats.Bias
	rec.RMSD = stats.RMSD

	if cfg.StatsFile != nil {
		if err := rec.WriteYAML(*cfg.StatsFile); err != nil {
			return err
		}
	}
	if cfg.HistoryDB != nil {
		store, err := runstats.Open(*cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Insert(rec); err != nil {
			return err
		}
	}

	if dir := cfg.GetDiagnosticsDir(); dir != "" {
		if err := writeDiagnostics(dir, cfg, sharpened, residual); err != nil {
			// Diagnostics are best-effort; the sharpened output is already
			// on disk.
			log.Printf("diagnostics failed: %v", err)
		}
	}

	return nil
}

// loadPairs reads the configured scene files into training pairs.
func loadPairs(cfg *config.RunConfig) ([]sharpen.ScenePair, error) {
	pairs := make([]sharpen.ScenePair, 0, len(cfg.FineFiles))
	for i := range cfg.FineFiles {
		fine, err := raster.Load(cfg.FineFiles[i])
		if err != nil {
			return nil, fmt.Errorf("fine scene %s: %w", cfg.FineFiles[i], err)
		}
		coarse, err := raster.Load(cfg.CoarseFiles[i])
		if err != nil {
			return nil, fmt.Errorf("coarse scene %s: %w", cfg.CoarseFiles[i], err)
		}
		pair := sharpen.ScenePair{
			Fine:             fine,
			Coarse:           coarse,
			GoodQualityFlags: cfg.GoodFlags,
		}
		if len(cfg.QualityFiles) > 0 {
			quality, err := raster.Load(cfg.QualityFiles[i])
			if err != nil {
				return nil, fmt.Errorf("quality scene %s: %w", cfg.QualityFiles[i], err)
			}
			pair.Quality = quality
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func writeDiagnostics(baseDir string, cfg *config.RunConfig, sharpened, residual *raster.Scene) error {
	outDir := monitor.MakeOutputDir(baseDir, cfg.CoarseFiles[0])
	p, err := monitor.NewPlotter(outDir)
	if err != nil {
		return err
	}

	if err := p.ResidualHistogram(residual); err != nil {
		return err
	}
	if err := p.WriteResidualReport(residual); err != nil {
		return err
	}
	if err := p.WriteSharpenedReport(sharpened); err != nil {
		return err
	}

	// Observed vs predicted on the residual grid: observed comes from the
	// coarse scene clipped to the residual extent, predicted from the
	// sharpened scene aggregated onto it.
	coarse, err := raster.Load(cfg.CoarseFiles[0])
	if err != nil {
		return err
	}
	observed := raster.Clip(coarse, residual)
	predicted, _ := raster.Aggregate(sharpened, residual.GeoTransform, residual.Rows, residual.Cols)
	if err := p.ObservedVsPredicted(observed.Band(0), predicted.Band(0)); err != nil {
		return err
	}

	log.Printf("wrote diagnostics to %s", outDir)
	return nil
}
