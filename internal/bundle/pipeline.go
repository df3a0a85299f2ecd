// Package bundle runs the host build with the rewrite and partition plugins
// and reports what it emitted.
package bundle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/opmodel/wbundle/internal/config"
	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/output"
	"github.com/opmodel/wbundle/internal/partition"
	"github.com/opmodel/wbundle/internal/rewrite"
)

// Result is the outcome of a successful build run.
type Result struct {
	Manifest *Manifest
	Duration time.Duration
}

// BuildError reports a failed build run.
type BuildError struct {
	// Messages are the bundler errors of the host build.
	Messages []api.Message

	// Failures are the failed sub-builds, with all their importers.
	Failures []*partition.SubBuildError
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var b strings.Builder
	if len(e.Failures) > 0 {
		for i, f := range e.Failures {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(f.Error())
		}
		return b.String()
	}

	b.WriteString(fmt.Sprintf("build failed with %d error", len(e.Messages)))
	if len(e.Messages) != 1 {
		b.WriteString("s")
	}
	for _, m := range e.Messages {
		b.WriteString("\n  ")
		b.WriteString(partition.FormatMessage(m))
	}
	return b.String()
}

// Unwrap returns ErrBuild.
func (e *BuildError) Unwrap() error {
	return oerrors.ErrBuild
}

// Pipeline owns one bundler context. Run may be called repeatedly, as watch
// mode does, but not concurrently. Every run starts with an empty sub-build
// cache.
type Pipeline struct {
	cfg         *config.Config
	dir         string
	opts        api.BuildOptions
	partitioner *partition.Partitioner

	mu      sync.Mutex
	ctx     api.BuildContext
	cleaned bool
}

// New prepares a pipeline for cfg with relative paths resolved against dir.
func New(cfg *config.Config, dir string) (*Pipeline, error) {
	opts, err := BuildOptions(cfg, dir)
	if err != nil {
		return nil, oerrors.NewValidationError(err.Error(), "", "", "")
	}

	p, err := Partitioner(cfg.Partition)
	if err != nil {
		return nil, oerrors.NewValidationError(err.Error(), "", "partition.entryNames", "Use a template without [hash], such as [name].")
	}

	opts.Plugins = []api.Plugin{
		rewrite.Plugin(Rewriter(cfg.Rewrite)),
		p.Plugin(),
	}

	return &Pipeline{cfg: cfg, dir: dir, opts: opts, partitioner: p}, nil
}

// Options returns the host build options, plugins included.
func (p *Pipeline) Options() api.BuildOptions {
	return p.opts
}

// Run performs one build run. Cancelling ctx cancels the host build; running
// sub-builds finish first.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	// Only the first run empties the output directory: rebuilds of the same
	// context skip writing files whose contents did not change.
	if p.cfg.Clean && !p.cleaned {
		outdir := partition.OutputDir(p.opts)
		output.Debug("emptying output directory", "dir", outdir)
		if err := EmptyDir(outdir, p.dir); err != nil {
			return nil, oerrors.Wrap(oerrors.ErrPermission, err.Error())
		}
		p.cleaned = true
	}

	bctx, err := p.context()
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, bctx.Cancel)
	result := bctx.Rebuild()
	stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		return nil, &BuildError{
			Messages: result.Errors,
			Failures: p.partitioner.Failures(),
		}
	}

	meta, err := partition.ParseMetafile(result.Metafile)
	if err != nil {
		return nil, err
	}

	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, partition.FormatMessage(w))
		output.Warn(w.Text, "plugin", w.PluginName)
	}

	manifest := newManifest(meta.Files(p.dir), p.partitioner.Records(), warnings, p.dir)
	output.Debug("build finished",
		"entries", len(manifest.Entries),
		"partitions", len(manifest.Partitions),
		"sub-builds", p.partitioner.Cache().Builds(),
	)

	return &Result{Manifest: manifest, Duration: time.Since(start)}, nil
}

func (p *Pipeline) context() (api.BuildContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return p.ctx, nil
	}
	bctx, ctxErr := api.Context(p.opts)
	if ctxErr != nil {
		return nil, &BuildError{Messages: ctxErr.Errors}
	}
	p.ctx = bctx
	return bctx, nil
}

// Close releases the bundler context.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		p.ctx.Dispose()
		p.ctx = nil
	}
}
