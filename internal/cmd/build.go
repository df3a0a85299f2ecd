package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/opmodel/wbundle/internal/bundle"
	"github.com/opmodel/wbundle/internal/cmdutil"
	"github.com/opmodel/wbundle/internal/config"
	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/output"
	"github.com/opmodel/wbundle/internal/partition"
	"github.com/opmodel/wbundle/internal/watch"
)

// buildOptions are the resolved per-invocation settings of build.
type buildOptions struct {
	table          bool
	spinner        bool
	manifestPath   string
	manifestFormat output.Format
}

// NewBuildCmd creates the build command.
func NewBuildCmd(globals *cmdutil.GlobalConfig) *cobra.Command {
	var (
		of         cmdutil.OutputFlags
		mf         cmdutil.ManifestFlags
		watchFlag  bool
		outputFlag string
	)

	c := &cobra.Command{
		Use:   "build [entry...]",
		Short: "Bundle entry points and their workers",
		Long: `Bundle the configured entry points.

Every module referenced as new URL("./x", import.meta.url) is compiled once
by its own sub-build into the output directory, and each reference is
replaced by the path of the emitted artifact.

Arguments:
  entry    Entry points; replace entryPoints from the config file

Examples:
  # Build using ./wbundle.cue
  wbundle build

  # Build one entry without a config file
  wbundle build src/index.ts --outdir dist

  # Rebuild on change
  wbundle build --watch

  # Print a table and write a JSON manifest
  wbundle build -o table --manifest dist/manifest.json --manifest-format json`,
		RunE: func(c *cobra.Command, args []string) error {
			return runBuild(c, args, globals, &of, &mf, watchFlag, outputFlag)
		},
	}

	of.AddTo(c)
	mf.AddTo(c)
	c.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Rebuild when source files change")
	c.Flags().StringVarP(&outputFlag, "output", "o", "", "Artifact listing: table (default: one line per artifact)")

	return c
}

func runBuild(c *cobra.Command, args []string, globals *cmdutil.GlobalConfig, of *cmdutil.OutputFlags, mf *cmdutil.ManifestFlags, watchMode bool, outputFlag string) error {
	if globals.LoadErr != nil {
		return globals.LoadErr
	}
	loaded := globals.Loaded
	cfg := loaded.Config

	resolved := of.Apply(c, cfg, args, loaded.Values, loaded.Path != "")
	config.LogResolvedValues(append(loaded.Values, resolved...))

	if err := config.Validate(cfg); err != nil {
		return err
	}

	opts := buildOptions{spinner: !globals.Verbose && !watchMode, manifestPath: mf.Path}
	switch outputFlag {
	case "", "text":
	case string(output.FormatTable):
		opts.table = true
	default:
		return oerrors.NewValidationError(fmt.Sprintf("unsupported output %q", outputFlag), "", "output", "Use table, or omit -o.")
	}
	if mf.Path != "" {
		format, ok := output.ParseFormat(mf.Format)
		if !ok || format == output.FormatTable {
			return oerrors.NewValidationError(fmt.Sprintf("unsupported manifest format %q", mf.Format), "", "manifest-format", "Use yaml or json.")
		}
		opts.manifestFormat = format
		opts.manifestPath = absPath(mf.Path)
	}

	p, err := bundle.New(cfg, loaded.Dir)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !watchMode {
		return buildOnce(ctx, p, opts)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return runWatch(ctx, p, cfg, loaded.Dir, opts)
}

// buildOnce runs the pipeline and reports its result.
func buildOnce(ctx context.Context, p *bundle.Pipeline, opts buildOptions) error {
	var result *bundle.Result
	run := func(ctx context.Context) error {
		r, err := p.Run(ctx)
		result = r
		return err
	}

	var err error
	if opts.spinner {
		err = output.RunWithSpinner(ctx, run, output.WithTitle("Bundling..."))
	} else {
		err = run(ctx)
	}
	if err != nil {
		cmdutil.PrintBuildError(err)
		return printedError(err)
	}

	m := result.Manifest
	cmdutil.PrintManifest(m, opts.table)

	if opts.manifestPath != "" {
		if err := cmdutil.WriteManifest(m, opts.manifestPath, opts.manifestFormat); err != nil {
			return err
		}
		output.Debug("manifest written", "path", opts.manifestPath, "format", opts.manifestFormat)
	}

	output.Println(output.FormatCheckmark(fmt.Sprintf("Built %d entries and %d partitions in %s",
		len(m.Entries), len(m.Partitions), result.Duration.Round(time.Millisecond))))
	return nil
}

// runWatch builds once and then rebuilds on every burst of changes until
// ctx is cancelled. Failed builds are reported and watching continues.
func runWatch(ctx context.Context, p *bundle.Pipeline, cfg *config.Config, dir string, opts buildOptions) error {
	ignore := append([]string(nil), cfg.Watch.Ignore...)
	outdir := partition.OutputDir(p.Options())
	if glob, ok := watch.OutputIgnore(dir, outdir); ok {
		ignore = append(ignore, glob)
	}
	if opts.manifestPath != "" {
		if rel, err := filepath.Rel(dir, opts.manifestPath); err == nil {
			ignore = append(ignore, filepath.ToSlash(rel))
		}
	}

	debounce, _ := time.ParseDuration(cfg.Watch.Debounce)

	w, err := watch.New(watch.Config{
		BaseDir:  dir,
		Paths:    cfg.Watch.Paths,
		Ignore:   ignore,
		Debounce: debounce,
		OnChange: func(ctx context.Context, changed []string) error {
			output.Info("change detected, rebuilding", "files", len(changed))
			output.Debug("changed files", "paths", changed)
			return buildOnce(ctx, p, opts)
		},
	})
	if err != nil {
		return oerrors.NewValidationError(err.Error(), "", "watch", "Check watch.paths and watch.ignore.")
	}

	_ = buildOnce(ctx, p, opts)

	output.Info("watching for changes", "dir", dir)
	return w.Run(ctx)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
