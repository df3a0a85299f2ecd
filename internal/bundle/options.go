package bundle

import (
	"fmt"
	"sort"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/opmodel/wbundle/internal/config"
	"github.com/opmodel/wbundle/internal/partition"
	"github.com/opmodel/wbundle/internal/rewrite"
)

var formats = map[string]api.Format{
	"esm":  api.FormatESModule,
	"iife": api.FormatIIFE,
	"cjs":  api.FormatCommonJS,
}

var platforms = map[string]api.Platform{
	"browser": api.PlatformBrowser,
	"node":    api.PlatformNode,
	"neutral": api.PlatformNeutral,
}

var loaders = map[string]api.Loader{
	"js":      api.LoaderJS,
	"jsx":     api.LoaderJSX,
	"ts":      api.LoaderTS,
	"tsx":     api.LoaderTSX,
	"json":    api.LoaderJSON,
	"css":     api.LoaderCSS,
	"text":    api.LoaderText,
	"file":    api.LoaderFile,
	"copy":    api.LoaderCopy,
	"dataurl": api.LoaderDataURL,
	"base64":  api.LoaderBase64,
	"binary":  api.LoaderBinary,
	"empty":   api.LoaderEmpty,
}

// BuildOptions translates cfg into esbuild options. Relative paths resolve
// against dir. The caller adds plugins.
func BuildOptions(cfg *config.Config, dir string) (api.BuildOptions, error) {
	format, ok := formats[cfg.Format]
	if !ok {
		return api.BuildOptions{}, fmt.Errorf("unknown format %q", cfg.Format)
	}
	platform, ok := platforms[cfg.Platform]
	if !ok {
		return api.BuildOptions{}, fmt.Errorf("unknown platform %q", cfg.Platform)
	}

	var loaderMap map[string]api.Loader
	if len(cfg.Loaders) > 0 {
		loaderMap = make(map[string]api.Loader, len(cfg.Loaders))
		exts := make([]string, 0, len(cfg.Loaders))
		for ext := range cfg.Loaders {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			l, ok := loaders[cfg.Loaders[ext]]
			if !ok {
				return api.BuildOptions{}, fmt.Errorf("unknown loader %q for %s", cfg.Loaders[ext], ext)
			}
			loaderMap[ext] = l
		}
	}

	sourcemap := api.SourceMapNone
	if cfg.Sourcemap {
		sourcemap = api.SourceMapLinked
	}

	entries := make([]string, len(cfg.EntryPoints))
	for i, e := range cfg.EntryPoints {
		entries[i] = config.Abs(dir, e)
	}

	return api.BuildOptions{
		EntryPoints:   entries,
		AbsWorkingDir: dir,
		Outdir:        config.Abs(dir, cfg.Outdir),
		Outfile:       config.Abs(dir, cfg.Outfile),
		EntryNames:    cfg.EntryNames,
		AssetNames:    cfg.AssetNames,
		Format:        format,
		Platform:      platform,
		Bundle:        cfg.Bundle,
		Splitting:     false,
		MinifySyntax:  cfg.MinifySyntax,
		Sourcemap:     sourcemap,
		Loader:        loaderMap,
		Metafile:      true,
		Write:         true,
		LogLevel:      api.LogLevelSilent,
	}, nil
}

// Rewriter builds the pattern rewriter described by cfg.
func Rewriter(cfg config.RewriteConfig) *rewrite.Rewriter {
	marker := rewrite.Marker{Key: cfg.Marker.Key, Value: cfg.Marker.Value}
	rules := []rewrite.Rule{rewrite.MetaURLRule(marker)}
	if cfg.ResolveCalls {
		rules = append(rules, rewrite.ResolveRule(marker))
	}

	opts := []rewrite.Option{rewrite.WithRules(rules...)}
	if cfg.PluginName != "" {
		opts = append(opts, rewrite.WithName(cfg.PluginName))
	}
	if cfg.Prefix != "" {
		opts = append(opts, rewrite.WithPrefix(cfg.Prefix))
	}
	if len(cfg.Loaders) > 0 {
		opts = append(opts, rewrite.WithLoaders(cfg.Loaders...))
	}
	return rewrite.New(opts...)
}

// Partitioner builds the partition plugin state described by cfg.
func Partitioner(cfg config.PartitionConfig) (*partition.Partitioner, error) {
	marker := rewrite.Marker{Key: cfg.Marker.Key, Value: cfg.Marker.Value}
	return partition.New(partition.Options{
		Name:       cfg.PluginName,
		Filters:    cfg.Filters,
		With:       marker.Matches,
		EntryNames: cfg.EntryNames,
	})
}
