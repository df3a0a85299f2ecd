// Package partition moves marker-tagged imports out of the host bundle.
//
// Each intercepted import is compiled by an independent sub-build and
// replaced with a virtual module whose default export is the path of the
// emitted artifact, relative to the host output directory.
package partition

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/opmodel/wbundle/internal/output"
	"github.com/opmodel/wbundle/internal/rewrite"
)

const (
	// DefaultPluginName is the esbuild plugin name.
	DefaultPluginName = "wbundle-partition"

	// DefaultNamespace holds the virtual artifact modules.
	DefaultNamespace = "wbundle-partition"

	// DefaultEntryNames names sub-build outputs after the entry's base name.
	DefaultEntryNames = "[name]"
)

// DefaultFilters intercept every import path; the attribute predicate decides.
var DefaultFilters = []string{".*"}

// Options configures a Partitioner. Zero values take the defaults.
type Options struct {
	Name      string
	Namespace string

	// Filters are esbuild (Go regexp) path filters. An import is intercepted
	// when any of them matches and With accepts its attributes.
	Filters []string

	// With decides on the import attributes. Defaults to the worker marker.
	With func(with map[string]string) bool

	// EntryNames is the sub-build output naming template. It must not
	// contain [hash] because references are emitted before the sub-build runs.
	EntryNames string

	Builder Builder
}

// Record describes one settled partition of a build run.
type Record struct {
	Source    string
	Artifact  string
	Bytes     int
	Importers []string
}

// Partitioner intercepts marker-tagged imports and drives their sub-builds.
// One Partitioner serves a sequence of build runs; each run starts with an
// empty cache.
type Partitioner struct {
	opts  Options
	cache *Cache

	mu        sync.Mutex
	host      api.BuildOptions
	importers map[string][]string
	artifacts map[string]Output
	owners    map[string]string
	failures  map[string]error
}

// nestedResolve tags resolve calls issued by the partitioner itself.
type nestedResolve struct{}

// New returns a Partitioner for opts.
func New(opts Options) (*Partitioner, error) {
	if opts.Name == "" {
		opts.Name = DefaultPluginName
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if len(opts.Filters) == 0 {
		opts.Filters = DefaultFilters
	}
	if opts.With == nil {
		opts.With = rewrite.DefaultMarker.Matches
	}
	if opts.EntryNames == "" {
		opts.EntryNames = DefaultEntryNames
	}
	if strings.Contains(opts.EntryNames, "[hash]") {
		return nil, fmt.Errorf("entry names %q must not contain [hash]", opts.EntryNames)
	}
	if opts.Builder == nil {
		opts.Builder = EsbuildBuilder{}
	}

	p := &Partitioner{opts: opts, cache: NewCache()}
	p.reset()
	return p, nil
}

// Name returns the plugin name.
func (p *Partitioner) Name() string {
	return p.opts.Name
}

// Cache returns the sub-build cache of the current run.
func (p *Partitioner) Cache() *Cache {
	return p.cache
}

// Plugin returns the esbuild plugin for the host build.
func (p *Partitioner) Plugin() api.Plugin {
	return api.Plugin{
		Name: p.opts.Name,
		Setup: func(build api.PluginBuild) {
			if build.InitialOptions != nil {
				p.mu.Lock()
				p.host = *build.InitialOptions
				p.mu.Unlock()
			}
			build.OnStart(func() (api.OnStartResult, error) {
				p.reset()
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				return api.OnEndResult{Errors: p.hostConflicts(result.OutputFiles)}, nil
			})
			p.register(build, "")
		},
	}
}

// nestedPlugin is installed in the sub-build for parent. It shares the cache
// and the host options of the run.
func (p *Partitioner) nestedPlugin(parent string) api.Plugin {
	return api.Plugin{
		Name: p.opts.Name,
		Setup: func(build api.PluginBuild) {
			p.register(build, parent)
		},
	}
}

func (p *Partitioner) register(build api.PluginBuild, parent string) {
	log := output.PluginLogger(p.opts.Name)

	for _, filter := range p.opts.Filters {
		build.OnResolve(api.OnResolveOptions{Filter: filter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			if _, ok := args.PluginData.(nestedResolve); ok {
				return api.OnResolveResult{}, nil
			}
			if args.Namespace == p.opts.Namespace || !p.opts.With(args.With) {
				return api.OnResolveResult{}, nil
			}

			canonical, msgs := p.canonicalize(build, args)
			if len(msgs) > 0 {
				return api.OnResolveResult{Errors: msgs}, nil
			}
			p.addImporter(canonical, args.Importer)
			log.Debug("intercepted import", "path", args.Path, "importer", args.Importer)

			return api.OnResolveResult{Path: canonical, Namespace: p.opts.Namespace}, nil
		})
	}

	build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: p.opts.Namespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		artifact, err := p.cache.Get(args.Path, parent, func() (string, error) {
			return p.subBuild(args.Path)
		})
		if err != nil {
			return api.OnLoadResult{}, err
		}

		contents := "export default " + strconv.Quote(p.reference(artifact)) + ";\n"
		return api.OnLoadResult{
			PluginName: p.opts.Name,
			Contents:   &contents,
			Loader:     api.LoaderJS,
			ResolveDir: filepath.Dir(args.Path),
		}, nil
	})
}

// canonicalize resolves the import without its attributes so this plugin
// does not see the nested request again.
func (p *Partitioner) canonicalize(build api.PluginBuild, args api.OnResolveArgs) (string, []api.Message) {
	if build.Resolve != nil {
		res := build.Resolve(args.Path, api.ResolveOptions{
			Importer:   args.Importer,
			Namespace:  args.Namespace,
			ResolveDir: args.ResolveDir,
			Kind:       args.Kind,
			PluginData: nestedResolve{},
		})
		if len(res.Errors) > 0 {
			return "", res.Errors
		}
		if res.Path != "" && !res.External {
			return res.Path, nil
		}
	}

	path := args.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(args.ResolveDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", []api.Message{{Text: err.Error()}}
	}
	return abs, nil
}

func (p *Partitioner) subBuild(source string) (string, error) {
	p.mu.Lock()
	opts := p.host
	p.mu.Unlock()

	outdir := OutputDir(opts)
	opts.EntryPoints = []string{source}
	opts.EntryPointsAdvanced = nil
	opts.Stdin = nil
	opts.Outfile = ""
	opts.Outdir = outdir
	opts.EntryNames = p.opts.EntryNames
	if opts.Outbase == "" {
		// [dir] is relative to the working directory, not to the lone entry.
		opts.Outbase = WorkDir(opts)
	}
	opts.Splitting = false
	opts.Metafile = true
	opts.Plugins = p.subPlugins(opts.Plugins, source)

	output.Debug("starting sub-build", "source", p.display(opts, source))

	outputs, err := p.opts.Builder.Build(opts)
	if err == nil {
		var artifact Output
		artifact, err = pickArtifact(outputs)
		if err == nil {
			err = p.claim(opts, source, artifact)
		}
		if err == nil {
			return artifact.Path, nil
		}
	}

	failure := &SubBuildError{
		Source:    p.display(opts, source),
		Importers: p.importersOf(opts, source),
		Cause:     err,
	}
	p.mu.Lock()
	p.failures[source] = failure
	p.mu.Unlock()
	return "", failure
}

// claim records artifact as the output of source. Two sources may not share
// an artifact path within one run.
func (p *Partitioner) claim(opts api.BuildOptions, source string, artifact Output) error {
	path := filepath.Clean(artifact.Path)

	p.mu.Lock()
	owner, taken := p.owners[path]
	if !taken || owner == source {
		p.owners[path] = source
		p.artifacts[source] = artifact
	}
	p.mu.Unlock()

	if taken && owner != source {
		return &ArtifactConflictError{
			Artifact: p.display(opts, path),
			Owner:    p.display(opts, owner),
		}
	}
	return nil
}

// hostConflicts reports partition artifacts the host build wrote over. The
// affected partitions are moved from the records to the failures.
func (p *Partitioner) hostConflicts(files []api.OutputFile) []api.Message {
	p.mu.Lock()
	host := p.host
	clobbered := make(map[string]string)
	for _, f := range files {
		path := filepath.Clean(f.Path)
		source, ok := p.owners[path]
		if !ok {
			continue
		}
		if _, settled := p.artifacts[source]; !settled {
			continue
		}
		delete(p.artifacts, source)
		clobbered[source] = path
	}
	p.mu.Unlock()

	sources := make([]string, 0, len(clobbered))
	for source := range clobbered {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	msgs := make([]api.Message, 0, len(sources))
	for _, source := range sources {
		failure := &SubBuildError{
			Source:    p.display(host, source),
			Importers: p.importersOf(host, source),
			Cause: &ArtifactConflictError{
				Artifact: p.display(host, clobbered[source]),
				Owner:    HostOwner,
			},
		}
		p.mu.Lock()
		p.failures[source] = failure
		p.mu.Unlock()
		msgs = append(msgs, api.Message{PluginName: p.opts.Name, Text: failure.Error()})
	}
	return msgs
}

// subPlugins swaps this plugin for its nested variant and keeps the rest.
func (p *Partitioner) subPlugins(host []api.Plugin, parent string) []api.Plugin {
	plugins := make([]api.Plugin, 0, len(host))
	for _, pl := range host {
		if pl.Name == p.opts.Name {
			plugins = append(plugins, p.nestedPlugin(parent))
			continue
		}
		plugins = append(plugins, pl)
	}
	return plugins
}

// reference returns the artifact path as seen from the host output directory.
func (p *Partitioner) reference(artifact string) string {
	p.mu.Lock()
	outdir := OutputDir(p.host)
	p.mu.Unlock()

	rel, err := filepath.Rel(outdir, artifact)
	if err != nil {
		return filepath.ToSlash(artifact)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return rel
	}
	return "./" + rel
}

func (p *Partitioner) addImporter(canonical, importer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.importers[canonical] {
		if existing == importer {
			return
		}
	}
	p.importers[canonical] = append(p.importers[canonical], importer)
}

func (p *Partitioner) importersOf(opts api.BuildOptions, canonical string) []string {
	p.mu.Lock()
	raw := append([]string(nil), p.importers[canonical]...)
	p.mu.Unlock()

	out := make([]string, 0, len(raw))
	for _, imp := range raw {
		out = append(out, p.display(opts, imp))
	}
	sort.Strings(out)
	return out
}

// display renders a path relative to the working directory when possible.
func (p *Partitioner) display(opts api.BuildOptions, path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(WorkDir(opts), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func (p *Partitioner) reset() {
	p.cache.Reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.importers = make(map[string][]string)
	p.artifacts = make(map[string]Output)
	p.owners = make(map[string]string)
	p.failures = make(map[string]error)
}

// Records lists the partitions settled successfully in the current run,
// sorted by source path. Paths are absolute.
func (p *Partitioner) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := make([]Record, 0, len(p.artifacts))
	for source, artifact := range p.artifacts {
		importers := append([]string(nil), p.importers[source]...)
		sort.Strings(importers)
		records = append(records, Record{Source: source, Artifact: artifact.Path, Bytes: artifact.Bytes, Importers: importers})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Source < records[j].Source })
	return records
}

// Failures returns the failed sub-builds of the current run with their full
// importer lists, sorted by source path.
func (p *Partitioner) Failures() []*SubBuildError {
	p.mu.Lock()
	host := p.host
	sources := make([]string, 0, len(p.failures))
	causes := make(map[string]error, len(p.failures))
	for source, err := range p.failures {
		sources = append(sources, source)
		causes[source] = err
	}
	p.mu.Unlock()
	sort.Strings(sources)

	failures := make([]*SubBuildError, 0, len(sources))
	for _, source := range sources {
		cause := causes[source]
		if sbe, ok := cause.(*SubBuildError); ok {
			cause = sbe.Cause
		}
		failures = append(failures, &SubBuildError{
			Source:    p.display(host, source),
			Importers: p.importersOf(host, source),
			Cause:     cause,
		})
	}
	return failures
}
