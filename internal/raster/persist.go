package raster

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// Save writes the scene to path as gob-encoded, gzip-compressed data.
func Save(s *Scene, path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create scene file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(s); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode scene: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish scene compression: %w", err)
	}
	return f.Close()
}

// Load reads a scene previously written with Save.
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene compression: %w", err)
	}
	defer gz.Close()

	var s Scene
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scene: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
