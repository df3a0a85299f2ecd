// Package config provides configuration loading and management.
package config

// MarkerConfig is the import attribute that tags partitioned imports.
type MarkerConfig struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RewriteConfig configures the pattern rewriter plugin.
type RewriteConfig struct {
	// PluginName is the esbuild plugin name. Default: "wbundle-meta-url".
	PluginName string `json:"pluginName"`

	// Prefix starts every synthetic identifier. Default: "__WORKER_URL_".
	Prefix string `json:"prefix"`

	// ResolveCalls also rewrites import.meta.resolve("...") calls.
	ResolveCalls bool `json:"resolveCalls"`

	// Loaders are the script loaders the rewriter handles.
	Loaders []string `json:"loaders"`

	Marker MarkerConfig `json:"marker"`
}

// PartitionConfig configures the partition plugin.
type PartitionConfig struct {
	PluginName string `json:"pluginName"`

	// Filters are Go regular expressions matched against import paths.
	Filters []string `json:"filters"`

	Marker MarkerConfig `json:"marker"`

	// EntryNames names sub-build outputs. Must not contain [hash].
	EntryNames string `json:"entryNames"`
}

// WatchConfig configures build --watch.
type WatchConfig struct {
	// Paths are the files or directories watched, relative to the config file.
	Paths []string `json:"paths"`

	// Ignore are doublestar globs of paths that never trigger a rebuild.
	Ignore []string `json:"ignore"`

	// Debounce is a Go duration string.
	Debounce string `json:"debounce"`
}

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Timestamps controls whether timestamps are shown in log output.
	// Default: true. Override with --timestamps flag.
	Timestamps *bool `json:"timestamps,omitempty"`
}

// Config represents the wbundle configuration.
// Loaded from wbundle.cue, validated against the embedded CUE schema.
type Config struct {
	// EntryPoints are the host build entry points.
	// Env: WBUNDLE_ENTRY_POINTS (comma separated)
	EntryPoints []string `json:"entryPoints"`

	// Outdir is the output directory. Mutually exclusive with Outfile.
	// Env: WBUNDLE_OUTDIR
	Outdir string `json:"outdir,omitempty"`

	// Outfile is the output file for single entry builds.
	// Env: WBUNDLE_OUTFILE
	Outfile string `json:"outfile,omitempty"`

	// EntryNames names host entry outputs. Empty keeps the bundler default.
	EntryNames string `json:"entryNames,omitempty"`

	// AssetNames names emitted assets. Must not contain [hash].
	// Env: WBUNDLE_ASSET_NAMES
	AssetNames string `json:"assetNames"`

	// Format is one of esm, iife, cjs.
	// Env: WBUNDLE_FORMAT
	Format string `json:"format"`

	// Platform is one of browser, node, neutral.
	// Env: WBUNDLE_PLATFORM
	Platform string `json:"platform"`

	Bundle bool `json:"bundle"`

	// Env: WBUNDLE_SOURCEMAP
	Sourcemap bool `json:"sourcemap"`

	// Env: WBUNDLE_MINIFY_SYNTAX
	MinifySyntax bool `json:"minifySyntax"`

	// Loaders maps file extensions to bundler loaders, passed through as-is.
	Loaders map[string]string `json:"loaders,omitempty"`

	// Clean empties the output directory before building.
	// Env: WBUNDLE_CLEAN
	Clean bool `json:"clean"`

	Rewrite   RewriteConfig   `json:"rewrite"`
	Partition PartitionConfig `json:"partition"`
	Watch     WatchConfig     `json:"watch"`
	Log       LogConfig       `json:"log"`
}

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = "wbundle.cue"

// DefaultConfigTemplate is written by `wbundle config init`.
const DefaultConfigTemplate = `// wbundle configuration.
// Run 'wbundle config vet' after editing.

entryPoints: ["./src/index.ts"]
outdir:      "./dist/"

// Asset names must not contain [hash]: worker references are written
// before the worker is compiled.
assetNames: "assets/[name]"

format:       "esm"
platform:     "browser"
sourcemap:    true
minifySyntax: true
clean:        true

loaders: {
	".ttf":  "copy"
	".html": "copy"
	".txt":  "file"
}

rewrite: {
	resolveCalls: false
	marker: {key: "type", value: "worker"}
}

partition: {
	filters: [".*"]
	marker: {key: "type", value: "worker"}
	entryNames: "[name]"
}
`
