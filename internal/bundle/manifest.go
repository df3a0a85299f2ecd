package bundle

import (
	"path/filepath"
	"strings"

	"github.com/opmodel/wbundle/internal/partition"
)

// Manifest describes what one build run emitted.
type Manifest struct {
	Entries    []Artifact  `json:"entries" yaml:"entries"`
	Partitions []Partition `json:"partitions" yaml:"partitions"`
	Warnings   []string    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Artifact is one file emitted by the host build.
type Artifact struct {
	Path       string `json:"path" yaml:"path"`
	Bytes      int    `json:"bytes" yaml:"bytes"`
	EntryPoint string `json:"entryPoint,omitempty" yaml:"entryPoint,omitempty"`
}

// Partition is one module compiled by its own sub-build.
type Partition struct {
	Source    string   `json:"source" yaml:"source"`
	Artifact  string   `json:"artifact" yaml:"artifact"`
	Bytes     int      `json:"bytes" yaml:"bytes"`
	Importers []string `json:"importers" yaml:"importers"`
}

// newManifest assembles a manifest with paths relative to workDir.
func newManifest(outputs []partition.Output, records []partition.Record, warnings []string, workDir string) *Manifest {
	m := &Manifest{
		Entries:    make([]Artifact, 0, len(outputs)),
		Partitions: make([]Partition, 0, len(records)),
		Warnings:   warnings,
	}

	partitioned := make(map[string]bool, len(records))
	for _, r := range records {
		partitioned[r.Artifact] = true
		importers := make([]string, len(r.Importers))
		for i, imp := range r.Importers {
			importers[i] = relPath(workDir, imp)
		}
		m.Partitions = append(m.Partitions, Partition{
			Source:    relPath(workDir, r.Source),
			Artifact:  relPath(workDir, r.Artifact),
			Bytes:     r.Bytes,
			Importers: importers,
		})
	}

	for _, o := range outputs {
		if partitioned[o.Path] {
			continue
		}
		m.Entries = append(m.Entries, Artifact{
			Path:       relPath(workDir, o.Path),
			Bytes:      o.Bytes,
			EntryPoint: o.EntryPoint,
		})
	}
	return m
}

func relPath(base, path string) string {
	if base == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
