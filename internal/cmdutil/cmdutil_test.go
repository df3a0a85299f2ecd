package cmdutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/wbundle/internal/bundle"
	"github.com/opmodel/wbundle/internal/config"
	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/output"
	"github.com/opmodel/wbundle/internal/partition"
)

func newFlagCmd(t *testing.T, args ...string) (*cobra.Command, *OutputFlags) {
	t.Helper()
	var f OutputFlags
	cmd := &cobra.Command{Use: "test"}
	f.AddTo(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, &f
}

func TestOutputFlags_Apply(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	t.Run("flags override config", func(t *testing.T) {
		cmd, f := newFlagCmd(t, "--outdir", "build", "--format", "iife", "--clean")
		cfg := &config.Config{Outdir: "/proj/dist", Format: "esm"}

		resolved := f.Apply(cmd, cfg, nil, nil, true)

		assert.Equal(t, filepath.Join(wd, "build"), cfg.Outdir)
		assert.Equal(t, "iife", cfg.Format)
		assert.True(t, cfg.Clean)
		require.Len(t, resolved, 4)
		assert.Equal(t, config.SourceFlag, resolved[0].Source)
		assert.Equal(t, "/proj/dist", resolved[0].Shadowed[config.SourceConfig])
		assert.Equal(t, config.SourceConfig, resolved[3].Source)
	})

	t.Run("outfile replaces configured outdir", func(t *testing.T) {
		cmd, f := newFlagCmd(t, "--outfile", "/tmp/app.js")
		cfg := &config.Config{Outdir: "/proj/dist"}

		f.Apply(cmd, cfg, nil, nil, true)

		assert.Empty(t, cfg.Outdir)
		assert.Equal(t, "/tmp/app.js", cfg.Outfile)
	})

	t.Run("arguments replace entry points", func(t *testing.T) {
		cmd, f := newFlagCmd(t)
		cfg := &config.Config{EntryPoints: []string{"./src/index.ts"}, Clean: true}

		f.Apply(cmd, cfg, []string{"a.ts", "/abs/b.ts"}, nil, false)

		assert.Equal(t, []string{filepath.Join(wd, "a.ts"), "/abs/b.ts"}, cfg.EntryPoints)
		assert.True(t, cfg.Clean, "unset bool flags keep config values")
	})

	t.Run("env source is kept", func(t *testing.T) {
		cmd, f := newFlagCmd(t)
		cfg := &config.Config{Platform: "node"}
		values := []config.ResolvedValue{{Key: "platform", Value: "node", Source: config.SourceEnv}}

		resolved := f.Apply(cmd, cfg, nil, values, true)

		assert.Equal(t, config.SourceEnv, resolved[3].Source)
		assert.Equal(t, "node", cfg.Platform)
	})
}

func TestArtifactRows(t *testing.T) {
	m := &bundle.Manifest{
		Entries: []bundle.Artifact{
			{Path: "dist/main.js", Bytes: 100, EntryPoint: "src/main.ts"},
			{Path: "dist/index.html", Bytes: 20},
		},
		Partitions: []bundle.Partition{
			{Source: "src/worker.ts", Artifact: "dist/worker.js", Bytes: 50},
		},
	}

	rows := ArtifactRows(m)
	require.Len(t, rows, 3)
	assert.Equal(t, output.KindEntry, rows[0].Kind)
	assert.Equal(t, output.KindAsset, rows[1].Kind)
	assert.Equal(t, output.ArtifactRow{Path: "dist/worker.js", Kind: output.KindPartition, Bytes: 50, Source: "src/worker.ts"}, rows[2])
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	m := &bundle.Manifest{
		Entries:    []bundle.Artifact{{Path: "dist/main.js", Bytes: 3}},
		Partitions: []bundle.Partition{},
	}

	path := filepath.Join(dir, "nested", "manifest.yaml")
	require.NoError(t, WriteManifest(m, path, output.FormatYAML))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "path: dist/main.js")

	err = WriteManifest(m, filepath.Join(dir, "m.txt"), output.FormatTable)
	require.Error(t, err)
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}

func TestSubBuildDetail(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		err := SubBuildDetail(&partition.SubBuildError{
			Source:    "src/worker.ts",
			Importers: []string{"src/a.ts", "src/b.ts"},
			Cause:     errors.New("src/worker.ts:1:13: Expected identifier"),
		})

		assert.ErrorIs(t, err, oerrors.ErrBuild)
		text := err.Error()
		assert.Contains(t, text, "Error: build failed")
		assert.Contains(t, text, "source: src/worker.ts")
		assert.Contains(t, text, "imported by: src/a.ts, src/b.ts")
		assert.Contains(t, text, "Expected identifier")
		assert.NotContains(t, text, "Hint:")
	})

	t.Run("artifact conflict", func(t *testing.T) {
		err := SubBuildDetail(&partition.SubBuildError{
			Source:    "src/b/worker.ts",
			Importers: []string{"src/b/index.ts"},
			Cause:     &partition.ArtifactConflictError{Artifact: "dist/worker.js", Owner: "src/a/worker.ts"},
		})

		text := err.Error()
		assert.Contains(t, text, "artifact dist/worker.js is also emitted for src/a/worker.ts")
		assert.Contains(t, text, `Hint: Set partition.entryNames to "[dir]/[name]"`)
	})

	t.Run("no importers", func(t *testing.T) {
		err := SubBuildDetail(&partition.SubBuildError{Source: "src/worker.ts"})
		text := err.Error()
		assert.Contains(t, text, "sub-build failed")
		assert.NotContains(t, text, "imported by")
	})
}
