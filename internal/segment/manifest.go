package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"podscribe/internal/media/audio"
)

// ManifestFile is written next to exported chunks.
const ManifestFile = "manifest.yaml"

// Manifest describes how a source clip was divided.
type Manifest struct {
	Source          string          `yaml:"source"`
	DurationSeconds float64         `yaml:"duration_seconds"`
	Strategy        Strategy        `yaml:"strategy"`
	MaxChunk        string          `yaml:"max_chunk"`
	Chunks          []ManifestChunk `yaml:"chunks"`
}

// ManifestChunk is one entry in a Manifest.
type ManifestChunk struct {
	Index           int     `yaml:"index"`
	File            string  `yaml:"file"`
	OffsetSeconds   float64 `yaml:"offset_seconds"`
	DurationSeconds float64 `yaml:"duration_seconds"`
}

// NewManifest summarizes chunks cut from clip.
func NewManifest(clip audio.Clip, strategy Strategy, maxChunk time.Duration, chunks []Chunk) Manifest {
	m := Manifest{
		Source:          clip.Path,
		DurationSeconds: clip.Duration.Seconds(),
		Strategy:        strategy,
		MaxChunk:        maxChunk.String(),
		Chunks:          make([]ManifestChunk, 0, len(chunks)),
	}
	for _, c := range chunks {
		m.Chunks = append(m.Chunks, ManifestChunk{
			Index:           c.Index,
			File:            filepath.Base(c.Clip.Path),
			OffsetSeconds:   c.SourceOffset.Seconds(),
			DurationSeconds: c.Clip.Duration.Seconds(),
		})
	}
	return m
}

// WriteManifest stores m as manifest.yaml inside dir.
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads manifest.yaml from dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}
