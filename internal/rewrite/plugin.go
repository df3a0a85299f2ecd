package rewrite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/opmodel/wbundle/internal/output"
)

// scriptFilter selects the files the transform hook reads. Loader checks
// happen afterwards so overrides in BuildOptions.Loader are honoured.
const scriptFilter = `\.(?:[cm]?[jt]s|[jt]sx)$`

var extLoaders = map[string]string{
	".js":  "js",
	".mjs": "js",
	".cjs": "js",
	".jsx": "jsx",
	".ts":  "ts",
	".mts": "ts",
	".cts": "ts",
	".tsx": "tsx",
}

var loaderNames = map[api.Loader]string{
	api.LoaderJS:  "js",
	api.LoaderJSX: "jsx",
	api.LoaderTS:  "ts",
	api.LoaderTSX: "tsx",
}

var apiLoaders = map[string]api.Loader{
	"js":  api.LoaderJS,
	"jsx": api.LoaderJSX,
	"ts":  api.LoaderTS,
	"tsx": api.LoaderTSX,
}

// Plugin exposes rewriters as an esbuild plugin. All rewriters share one
// OnLoad hook so they chain on the same source instead of racing for it.
// The plugin takes the first rewriter's name.
func Plugin(rewriters ...*Rewriter) api.Plugin {
	if len(rewriters) == 0 {
		rewriters = []*Rewriter{New()}
	}
	name := rewriters[0].Name()

	return api.Plugin{
		Name: name,
		Setup: func(build api.PluginBuild) {
			var overrides map[string]api.Loader
			if build.InitialOptions != nil {
				overrides = build.InitialOptions.Loader
			}
			log := output.PluginLogger(name)

			build.OnLoad(api.OnLoadOptions{Filter: scriptFilter, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				loader, ok := LoaderFor(args.Path, overrides)
				if !ok {
					return api.OnLoadResult{}, nil
				}

				data, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, fmt.Errorf("reading %s: %w", args.Path, err)
				}

				res, changed := Chain(string(data), loader, rewriters...)
				if !changed {
					return api.OnLoadResult{}, nil
				}
				log.Debug("rewrote module", "path", args.Path, "loader", loader)

				return api.OnLoadResult{
					PluginName: name,
					Contents:   &res.Code,
					Loader:     apiLoaders[res.Loader],
				}, nil
			})
		},
	}
}

// LoaderFor returns the script loader name for path, consulting the build's
// extension overrides first. The boolean is false for non-script loaders.
func LoaderFor(path string, overrides map[string]api.Loader) (string, bool) {
	ext := filepath.Ext(path)
	if l, ok := overrides[ext]; ok {
		name, ok := loaderNames[l]
		return name, ok
	}
	name, ok := extLoaders[ext]
	return name, ok
}
