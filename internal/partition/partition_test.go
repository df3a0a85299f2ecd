package partition

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/rewrite"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func hostOptions(dir string, plugins ...api.Plugin) api.BuildOptions {
	return api.BuildOptions{
		EntryPoints:   []string{filepath.Join(dir, "src", "main.ts")},
		AbsWorkingDir: dir,
		Outdir:        filepath.Join(dir, "dist"),
		Bundle:        true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Write:         true,
		Plugins:       plugins,
	}
}

// fakeBuilder records sub-builds and pretends to emit <outdir>/<base>.js.
type fakeBuilder struct {
	mu      sync.Mutex
	entries []string
	calls   atomic.Int32
	delay   time.Duration
	err     error
}

func (f *fakeBuilder) Build(opts api.BuildOptions) ([]Output, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.entries = append(f.entries, opts.EntryPoints...)
	f.mu.Unlock()
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	base := filepath.Base(opts.EntryPoints[0])
	name := base[:len(base)-len(filepath.Ext(base))] + ".js"
	return []Output{{Path: filepath.Join(opts.Outdir, name), EntryPoint: base}}, nil
}

func TestNew_RejectsHashedEntryNames(t *testing.T) {
	_, err := New(Options{EntryNames: "[name]-[hash]"})
	assert.Error(t, err)

	p, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPluginName, p.Name())
}

func TestPartitioner_OneSubBuildForManyImporters(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":   "import { a } from \"./a\";\nimport { b } from \"./b\";\nconsole.log(a, b);\n",
		"src/a.ts":      "import w from \"./worker.ts\" with { type: \"worker\" };\nexport const a = w;\n",
		"src/b.ts":      "import w from \"./worker.ts\" with { type: \"worker\" };\nexport const b = w;\n",
		"src/worker.ts": "self.onmessage = () => {};\n",
	})

	fake := &fakeBuilder{delay: 20 * time.Millisecond}
	p, err := New(Options{Builder: fake})
	require.NoError(t, err)

	opts := hostOptions(dir, p.Plugin())
	opts.Write = false
	result := api.Build(opts)
	require.Empty(t, result.Errors)

	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, []string{filepath.Join(dir, "src", "worker.ts")}, fake.entries)

	require.Len(t, result.OutputFiles, 1)
	assert.Contains(t, string(result.OutputFiles[0].Contents), `"./worker.js"`)

	records := p.Records()
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(dir, "src", "worker.ts"), records[0].Source)
	assert.Equal(t, filepath.Join(dir, "dist", "worker.js"), records[0].Artifact)
	assert.Equal(t, []string{filepath.Join(dir, "src", "a.ts"), filepath.Join(dir, "src", "b.ts")}, records[0].Importers)
}

func TestPartitioner_SubBuildOptionsFollowHost(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":   "import w from \"./worker.ts\" with { type: \"worker\" };\nconsole.log(w);\n",
		"src/worker.ts": "export {};\n",
	})

	var captured api.BuildOptions
	p, err := New(Options{EntryNames: "workers/[name]", Builder: builderFunc(func(opts api.BuildOptions) ([]Output, error) {
		captured = opts
		return []Output{{Path: filepath.Join(opts.Outdir, "workers", "worker.js"), EntryPoint: "src/worker.ts"}}, nil
	})})
	require.NoError(t, err)

	host := hostOptions(dir, p.Plugin())
	host.Write = false
	host.Splitting = true
	host.Loader = map[string]api.Loader{".txt": api.LoaderFile}
	result := api.Build(host)
	require.Empty(t, result.Errors)

	assert.Equal(t, []string{filepath.Join(dir, "src", "worker.ts")}, captured.EntryPoints)
	assert.Equal(t, filepath.Join(dir, "dist"), captured.Outdir)
	assert.Equal(t, "workers/[name]", captured.EntryNames)
	assert.False(t, captured.Splitting)
	assert.True(t, captured.Metafile)
	assert.Equal(t, api.FormatESModule, captured.Format)
	assert.Equal(t, api.PlatformBrowser, captured.Platform)
	assert.Equal(t, api.LoaderFile, captured.Loader[".txt"])
	require.Len(t, captured.Plugins, 1)
	assert.Equal(t, DefaultPluginName, captured.Plugins[0].Name)

	assert.Contains(t, string(result.OutputFiles[0].Contents), `"./workers/worker.js"`)
}

type builderFunc func(opts api.BuildOptions) ([]Output, error)

func (f builderFunc) Build(opts api.BuildOptions) ([]Output, error) { return f(opts) }

func TestPartitioner_PassThrough(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		files map[string]string
		want  string
	}{
		{
			name: "filter mismatch",
			opts: Options{Filters: []string{`\.worker\.ts$`}},
			files: map[string]string{
				"src/main.ts": "import { v } from \"./lib.ts\";\nconsole.log(v);\n",
				"src/lib.ts":  "export const v = \"from-lib\";\n",
			},
			want: "from-lib",
		},
		{
			name: "attribute mismatch",
			opts: Options{},
			files: map[string]string{
				"src/main.ts":   "import data from \"./data.json\" with { type: \"json\" };\nconsole.log(data.answer);\n",
				"src/data.json": "{\"answer\": \"forty-two\"}\n",
			},
			want: "forty-two",
		},
		{
			name: "custom marker not present",
			opts: Options{With: rewrite.Marker{Key: "type", Value: "monaco-worker"}.Matches},
			files: map[string]string{
				"src/main.ts": "import { v } from \"./lib.ts\";\nconsole.log(v);\n",
				"src/lib.ts":  "export const v = \"plain\";\n",
			},
			want: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files)

			fake := &fakeBuilder{}
			tt.opts.Builder = fake
			p, err := New(tt.opts)
			require.NoError(t, err)

			opts := hostOptions(dir, p.Plugin())
			opts.Write = false
			result := api.Build(opts)
			require.Empty(t, result.Errors)

			assert.Zero(t, fake.calls.Load())
			assert.Empty(t, p.Records())
			assert.Contains(t, string(result.OutputFiles[0].Contents), tt.want)
		})
	}
}

func TestPartitioner_WorkerScenario(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":   "import { a } from \"./a\";\nimport { b } from \"./b\";\nconsole.log(a, b);\n",
		"src/a.ts":      "export const a = new Worker(new URL(\"./worker.ts\", import.meta.url));\n",
		"src/b.ts":      "export const b = new Worker(new URL('./worker.ts', import.meta.url), { type: \"module\" });\n",
		"src/worker.ts": "const greet = (n: string): string => `hi ${n}`;\nself.onmessage = (e) => postMessage(greet(e.data));\n",
	})

	p, err := New(Options{})
	require.NoError(t, err)

	result := api.Build(hostOptions(dir, rewrite.Plugin(rewrite.New()), p.Plugin()))
	require.Empty(t, result.Errors)

	assert.Equal(t, 1, p.Cache().Builds())

	main, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(main), `"./worker.js"`)
	assert.NotContains(t, string(main), "import.meta.url")

	worker, err := os.ReadFile(filepath.Join(dir, "dist", "worker.js"))
	require.NoError(t, err)
	assert.Contains(t, string(worker), "onmessage")
	assert.NotContains(t, string(worker), ": string")

	records := p.Records()
	require.Len(t, records, 1)
	assert.Len(t, records[0].Importers, 2)
}

func TestPartitioner_NestedWorkers(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":  "export const w = new Worker(new URL(\"./outer.ts\", import.meta.url));\n",
		"src/outer.ts": "export const inner = new Worker(new URL(\"./inner.ts\", import.meta.url));\n",
		"src/inner.ts": "self.onmessage = () => postMessage(\"inner\");\n",
	})

	p, err := New(Options{})
	require.NoError(t, err)

	result := api.Build(hostOptions(dir, rewrite.Plugin(rewrite.New()), p.Plugin()))
	require.Empty(t, result.Errors)
	assert.Equal(t, 2, p.Cache().Builds())

	outer, err := os.ReadFile(filepath.Join(dir, "dist", "outer.js"))
	require.NoError(t, err)
	assert.Contains(t, string(outer), `"./inner.js"`)
	assert.FileExists(t, filepath.Join(dir, "dist", "inner.js"))
}

func TestPartitioner_SubBuildFailure(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":   "import { a } from \"./a\";\nconsole.log(a);\n",
		"src/a.ts":      "export const a = new URL(\"./worker.ts\", import.meta.url);\n",
		"src/worker.ts": "export const = ;\n",
	})

	p, err := New(Options{})
	require.NoError(t, err)

	result := api.Build(hostOptions(dir, rewrite.Plugin(rewrite.New()), p.Plugin()))
	require.NotEmpty(t, result.Errors)

	text := result.Errors[0].Text
	assert.Contains(t, text, "src/worker.ts")
	assert.Contains(t, text, "src/a.ts")

	failures := p.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "src/worker.ts", failures[0].Source)
	assert.Equal(t, []string{"src/a.ts"}, failures[0].Importers)
	assert.True(t, errors.Is(failures[0], oerrors.ErrBuild))

	var bf *BuildFailure
	assert.True(t, errors.As(failures[0], &bf))

	assert.NoFileExists(t, filepath.Join(dir, "dist", "worker.js"))
	assert.NoFileExists(t, filepath.Join(dir, "dist", "main.js"))
	assert.Empty(t, p.Records())
}

func TestPartitioner_SameArtifactForTwoSources(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":     "import { a } from \"./a/index\";\nimport { b } from \"./b/index\";\nconsole.log(a, b);\n",
		"src/a/index.ts":  "export const a = new Worker(new URL(\"./worker.ts\", import.meta.url));\n",
		"src/b/index.ts":  "export const b = new Worker(new URL(\"./worker.ts\", import.meta.url));\n",
		"src/a/worker.ts": "self.onmessage = () => postMessage(\"a\");\n",
		"src/b/worker.ts": "self.onmessage = () => postMessage(\"b\");\n",
	})

	p, err := New(Options{})
	require.NoError(t, err)

	result := api.Build(hostOptions(dir, rewrite.Plugin(rewrite.New()), p.Plugin()))
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Text, "artifact dist/worker.js is also emitted for src/")

	failures := p.Failures()
	require.Len(t, failures, 1)
	assert.Contains(t, []string{"src/a/worker.ts", "src/b/worker.ts"}, failures[0].Source)

	var conflict *ArtifactConflictError
	require.True(t, errors.As(failures[0], &conflict))
	assert.Equal(t, "dist/worker.js", conflict.Artifact)
	assert.Contains(t, []string{"src/a/worker.ts", "src/b/worker.ts"}, conflict.Owner)
	assert.NotEqual(t, failures[0].Source, conflict.Owner)
	assert.True(t, errors.Is(failures[0], oerrors.ErrBuild))
	assert.NoFileExists(t, filepath.Join(dir, "dist", "main.js"))
}

func TestPartitioner_DirectoryEntryNamesKeepSameBaseNamesApart(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":     "export const a = new URL(\"./a/worker.ts\", import.meta.url);\nexport const b = new URL(\"./b/worker.ts\", import.meta.url);\n",
		"src/a/worker.ts": "self.onmessage = () => postMessage(\"a\");\n",
		"src/b/worker.ts": "self.onmessage = () => postMessage(\"b\");\n",
	})

	p, err := New(Options{EntryNames: "[dir]/[name]"})
	require.NoError(t, err)

	result := api.Build(hostOptions(dir, rewrite.Plugin(rewrite.New()), p.Plugin()))
	require.Empty(t, result.Errors)
	assert.Empty(t, p.Failures())

	records := p.Records()
	require.Len(t, records, 2)
	assert.Equal(t, filepath.Join(dir, "dist", "src", "a", "worker.js"), records[0].Artifact)
	assert.Equal(t, filepath.Join(dir, "dist", "src", "b", "worker.js"), records[1].Artifact)

	main, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(main), `"./src/a/worker.js"`)
	assert.Contains(t, string(main), `"./src/b/worker.js"`)
}

func TestPartitioner_ArtifactOverwrittenByHost(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":   "export const w = new Worker(new URL(\"./w/main.ts\", import.meta.url));\n",
		"src/w/main.ts": "self.onmessage = () => postMessage(\"worker\");\n",
	})

	p, err := New(Options{})
	require.NoError(t, err)

	result := api.Build(hostOptions(dir, rewrite.Plugin(rewrite.New()), p.Plugin()))
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Text, "src/w/main.ts")
	assert.Contains(t, result.Errors[0].Text, "artifact dist/main.js is also emitted for the host build")

	failures := p.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "src/w/main.ts", failures[0].Source)
	assert.Equal(t, []string{"src/main.ts"}, failures[0].Importers)

	var conflict *ArtifactConflictError
	require.True(t, errors.As(failures[0], &conflict))
	assert.Equal(t, HostOwner, conflict.Owner)
	assert.Empty(t, p.Records())
}

func TestPartitioner_CycleFailsInsteadOfHanging(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts": "export const w = new URL(\"./ping.ts\", import.meta.url);\n",
		"src/ping.ts": "export const next = new URL(\"./pong.ts\", import.meta.url);\n",
		"src/pong.ts": "export const next = new URL(\"./ping.ts\", import.meta.url);\n",
	})

	p, err := New(Options{})
	require.NoError(t, err)

	done := make(chan api.BuildResult, 1)
	go func() {
		done <- api.Build(hostOptions(dir, rewrite.Plugin(rewrite.New()), p.Plugin()))
	}()

	select {
	case result := <-done:
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0].Text, "partition cycle")
	case <-time.After(30 * time.Second):
		t.Fatal("build did not finish")
	}
}

func TestPartitioner_CacheResetsPerRun(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main.ts":   "import w from \"./worker.ts\" with { type: \"worker\" };\nconsole.log(w);\n",
		"src/worker.ts": "export {};\n",
	})

	fake := &fakeBuilder{}
	p, err := New(Options{Builder: fake})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		opts := hostOptions(dir, p.Plugin())
		opts.Write = false
		result := api.Build(opts)
		require.Empty(t, result.Errors)
		assert.Equal(t, 1, p.Cache().Builds())
	}
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestPartitioner_Reference(t *testing.T) {
	p, err := New(Options{})
	require.NoError(t, err)
	p.host = api.BuildOptions{AbsWorkingDir: "/work", Outdir: "dist"}

	assert.Equal(t, "./worker.js", p.reference(filepath.FromSlash("/work/dist/worker.js")))
	assert.Equal(t, "./workers/a.js", p.reference(filepath.FromSlash("/work/dist/workers/a.js")))
	assert.Equal(t, "../other/a.js", p.reference(filepath.FromSlash("/work/other/a.js")))
}
