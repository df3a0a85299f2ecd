// Package cmdutil provides shared command utilities.
// It centralizes flag groups, global state passed to commands, and
// build result printing.
package cmdutil

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opmodel/wbundle/internal/config"
)

// GlobalConfig holds CLI-wide state resolved during PersistentPreRunE and
// passed explicitly into every command constructor.
type GlobalConfig struct {
	// ConfigPath is the resolved config file path and its source.
	ConfigPath config.ResolveConfigPathResult

	// Loaded is the loaded configuration. nil when loading failed.
	Loaded *config.Loaded

	// LoadErr is the configuration load error, reported by commands that
	// need the configuration.
	LoadErr error

	Verbose bool
}

// OutputFlags holds flags that override output settings of the config file.
type OutputFlags struct {
	Outdir    string
	Outfile   string
	Format    string
	Platform  string
	Clean     bool
	Sourcemap bool
}

// AddTo registers the output flags on the given cobra command.
func (f *OutputFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Outdir, "outdir", "d", "",
		"Output directory (env: WBUNDLE_OUTDIR)")
	cmd.Flags().StringVar(&f.Outfile, "outfile", "",
		"Output file for a single entry point (env: WBUNDLE_OUTFILE)")
	cmd.Flags().StringVar(&f.Format, "format", "",
		"Output format: esm, iife, cjs (env: WBUNDLE_FORMAT)")
	cmd.Flags().StringVar(&f.Platform, "platform", "",
		"Target platform: browser, node, neutral (env: WBUNDLE_PLATFORM)")
	cmd.Flags().BoolVar(&f.Clean, "clean", false,
		"Empty the output directory before building")
	cmd.Flags().BoolVar(&f.Sourcemap, "sourcemap", false,
		"Emit linked source maps")
}

// Apply overrides cfg with the flags that were set and returns the
// resolution records. args, when present, replace the entry points.
// Paths given on the command line are made absolute against the working
// directory, not the config file directory.
func (f *OutputFlags) Apply(cmd *cobra.Command, cfg *config.Config, args []string, values []config.ResolvedValue, fromFile bool) []config.ResolvedValue {
	resolved := make([]config.ResolvedValue, 0, 4)
	apply := func(key string, target *string, flag string) {
		resolved = append(resolved, config.ApplyString(key, target, flag, config.SourceOf(values, key, fromFile)))
	}
	apply("outdir", &cfg.Outdir, absFlag(f.Outdir))
	apply("outfile", &cfg.Outfile, absFlag(f.Outfile))
	apply("format", &cfg.Format, f.Format)
	apply("platform", &cfg.Platform, f.Platform)

	// An output flag replaces the other kind of configured output.
	if f.Outfile != "" && f.Outdir == "" {
		cfg.Outdir = ""
	}
	if f.Outdir != "" && f.Outfile == "" {
		cfg.Outfile = ""
	}

	if cmd.Flags().Changed("clean") {
		cfg.Clean = f.Clean
	}
	if cmd.Flags().Changed("sourcemap") {
		cfg.Sourcemap = f.Sourcemap
	}
	if len(args) > 0 {
		cfg.EntryPoints = make([]string, len(args))
		for i, a := range args {
			cfg.EntryPoints[i] = absFlag(a)
		}
	}

	return resolved
}

func absFlag(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// ManifestFlags holds flags controlling the build manifest.
type ManifestFlags struct {
	Path   string
	Format string
}

// AddTo registers the manifest flags on the given cobra command.
func (f *ManifestFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Path, "manifest", "",
		"Write the build manifest to this file")
	cmd.Flags().StringVar(&f.Format, "manifest-format", "yaml",
		"Manifest format: yaml, json")
}
