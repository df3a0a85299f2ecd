package partition

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
)

// Metafile is the subset of the esbuild metafile JSON read after a build.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile.
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
}

// MetafileImport represents an import in the metafile.
type MetafileImport struct {
	Path     string            `json:"path"`
	Kind     string            `json:"kind"`
	External bool              `json:"external,omitempty"`
	Original string            `json:"original,omitempty"`
	With     map[string]string `json:"with,omitempty"`
}

// MetafileOutput represents an output file in the metafile.
type MetafileOutput struct {
	Bytes      int    `json:"bytes"`
	EntryPoint string `json:"entryPoint,omitempty"`
}

// ParseMetafile decodes the metafile string of a build result.
func ParseMetafile(data string) (*Metafile, error) {
	var m Metafile
	if data == "" {
		return &m, nil
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("decoding metafile: %w", err)
	}
	return &m, nil
}

// Output is one emitted file of a build.
type Output struct {
	// Path is absolute.
	Path string

	// EntryPoint is the metafile entry point that produced the file, if any.
	EntryPoint string

	Bytes int
}

// Files lists the metafile outputs with paths made absolute against
// workDir, sorted by path.
func (m *Metafile) Files(workDir string) []Output {
	out := make([]Output, 0, len(m.Outputs))
	for path, o := range m.Outputs {
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, filepath.FromSlash(path))
		}
		out = append(out, Output{Path: path, EntryPoint: o.EntryPoint, Bytes: o.Bytes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
