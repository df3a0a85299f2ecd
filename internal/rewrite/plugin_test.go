package rewrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderFor(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		overrides map[string]api.Loader
		want      string
		wantOK    bool
	}{
		{name: "typescript", path: "/src/a.ts", want: "ts", wantOK: true},
		{name: "module typescript", path: "/src/a.mts", want: "ts", wantOK: true},
		{name: "tsx", path: "/src/a.tsx", want: "tsx", wantOK: true},
		{name: "commonjs", path: "/src/a.cjs", want: "js", wantOK: true},
		{name: "override to jsx", path: "/src/a.js", overrides: map[string]api.Loader{".js": api.LoaderJSX}, want: "jsx", wantOK: true},
		{name: "override to copy", path: "/src/a.js", overrides: map[string]api.Loader{".js": api.LoaderCopy}, wantOK: false},
		{name: "stylesheet", path: "/src/a.css", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LoaderFor(tt.path, tt.overrides)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPlugin_RewritesDuringBuild(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(entry,
		[]byte(`export const w = new Worker(new URL("./worker.js", import.meta.url));`+"\n"), 0o644))

	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{entry},
		AbsWorkingDir: dir,
		Outdir:        filepath.Join(dir, "out"),
		Format:        api.FormatESModule,
		Write:         false,
		Plugins:       []api.Plugin{Plugin(New())},
	})

	require.Empty(t, result.Errors)
	require.Len(t, result.OutputFiles, 1)

	out := string(result.OutputFiles[0].Contents)
	assert.Contains(t, out, "__WORKER_URL_0")
	assert.Contains(t, out, `"./worker.js"`)
	assert.NotContains(t, out, "import.meta.url")
}

func TestPlugin_LeavesUnmatchedModulesAlone(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(entry, []byte("export const here = import.meta.url;\n"), 0o644))

	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{entry},
		AbsWorkingDir: dir,
		Outdir:        filepath.Join(dir, "out"),
		Format:        api.FormatESModule,
		Write:         false,
		Plugins:       []api.Plugin{Plugin(New())},
	})

	require.Empty(t, result.Errors)
	require.Len(t, result.OutputFiles, 1)

	out := string(result.OutputFiles[0].Contents)
	assert.Contains(t, out, "import.meta.url")
	assert.NotContains(t, out, "__WORKER_URL_")
}
