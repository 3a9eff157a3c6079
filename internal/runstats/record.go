// Package runstats records per-run sharpening statistics: it exports the
// reference YAML stats file and keeps an optional sqlite-backed run history.
package runstats

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// Record is one sharpening run's statistics.
type Record struct {
	RunID            string    `yaml:"run_id"`
	CreatedAt        time.Time `yaml:"created_at"`
	Backend          string    `yaml:"backend"`
	NTrain           int       `yaml:"N_train"`
	NTrainSubsampled int       `yaml:"N_train_subsampled,omitempty"`
	NTest            int       `yaml:"N_test"`
	Bias             float64   `yaml:"bias"`
	RMSD             float64   `yaml:"RMSD"`
}

// NewRecord returns a record with a fresh run ID and timestamp.
func NewRecord(backend string) Record {
	return Record{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Backend:   backend,
	}
}

// WriteYAML writes the record to path as YAML.
func (r Record) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run stats: %w", err)
	}
	return nil
}
