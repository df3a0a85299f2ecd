package partition

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

// Builder runs one sub-build and reports what it emitted.
type Builder interface {
	Build(opts api.BuildOptions) ([]Output, error)
}

// EsbuildBuilder runs sub-builds with esbuild.
type EsbuildBuilder struct{}

// Build implements Builder. opts must request a metafile.
func (EsbuildBuilder) Build(opts api.BuildOptions) ([]Output, error) {
	result := api.Build(opts)
	if len(result.Errors) > 0 {
		return nil, &BuildFailure{Messages: result.Errors}
	}

	meta, err := ParseMetafile(result.Metafile)
	if err != nil {
		return nil, err
	}
	return meta.Files(WorkDir(opts)), nil
}

// WorkDir returns the directory esbuild resolves relative paths against.
func WorkDir(opts api.BuildOptions) string {
	if opts.AbsWorkingDir != "" {
		return opts.AbsWorkingDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// OutputDir returns the absolute host output directory: Outdir, else the
// directory of Outfile, else the working directory.
func OutputDir(opts api.BuildOptions) string {
	wd := WorkDir(opts)
	dir := opts.Outdir
	if dir == "" && opts.Outfile != "" {
		dir = filepath.Dir(opts.Outfile)
	}
	if dir == "" {
		return wd
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(wd, dir)
	}
	return filepath.Clean(dir)
}

var scriptExts = map[string]bool{".js": true, ".mjs": true, ".cjs": true}

// pickArtifact selects the script emitted for the single sub-build entry.
func pickArtifact(outputs []Output) (Output, error) {
	var fallback *Output
	for i, o := range outputs {
		if !scriptExts[filepath.Ext(o.Path)] {
			continue
		}
		if o.EntryPoint != "" {
			return o, nil
		}
		if fallback == nil {
			fallback = &outputs[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Output{}, fmt.Errorf("sub-build emitted no script output among %d files", len(outputs))
}
