package cmdutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opmodel/wbundle/internal/bundle"
	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/output"
	"github.com/opmodel/wbundle/internal/partition"
)

// PrintBuildError prints a build failure in a user-friendly format.
// Failed sub-builds are listed with every module that imported them.
// Other errors fall back to the standard key-value log format.
func PrintBuildError(err error) {
	var buildErr *bundle.BuildError
	if !errors.As(err, &buildErr) {
		var detail *oerrors.DetailError
		if errors.As(err, &detail) {
			output.Error(detail.Type)
			output.Details(detail.Error())
			return
		}
		output.Error("build failed", "error", err)
		return
	}

	if len(buildErr.Failures) == 0 {
		output.Error(fmt.Sprintf("build failed with %d error(s)", len(buildErr.Messages)))
		for _, m := range buildErr.Messages {
			output.Details("  " + partition.FormatMessage(m))
		}
		return
	}

	for _, f := range buildErr.Failures {
		output.Error("sub-build failed", "source", f.Source)
		output.Details(SubBuildDetail(f).Error())
	}
}

// SubBuildDetail describes a failed sub-build for display.
func SubBuildDetail(f *partition.SubBuildError) error {
	message := "sub-build failed"
	if f.Cause != nil {
		message = f.Cause.Error()
	}
	context := map[string]string{"source": f.Source}
	if len(f.Importers) > 0 {
		context["imported by"] = strings.Join(f.Importers, ", ")
	}

	hint := ""
	var conflict *partition.ArtifactConflictError
	if errors.As(f, &conflict) {
		hint = `Set partition.entryNames to "[dir]/[name]" so artifacts keep their source directory.`
	}
	return oerrors.NewBuildError(message, context, hint)
}

// ArtifactRows flattens a manifest into display rows, entries first.
func ArtifactRows(m *bundle.Manifest) []output.ArtifactRow {
	rows := make([]output.ArtifactRow, 0, len(m.Entries)+len(m.Partitions))
	for _, a := range m.Entries {
		kind := output.KindAsset
		if a.EntryPoint != "" {
			kind = output.KindEntry
		}
		rows = append(rows, output.ArtifactRow{Path: a.Path, Kind: kind, Bytes: a.Bytes, Source: a.EntryPoint})
	}
	for _, p := range m.Partitions {
		rows = append(rows, output.ArtifactRow{Path: p.Artifact, Kind: output.KindPartition, Bytes: p.Bytes, Source: p.Source})
	}
	return rows
}

// PrintManifest prints the emitted artifacts to stdout, as a table when
// table is true and one line per artifact otherwise.
func PrintManifest(m *bundle.Manifest, table bool) {
	rows := ArtifactRows(m)
	if table {
		output.Println(output.RenderArtifactTable(rows))
		return
	}
	for _, r := range rows {
		output.Println(output.FormatArtifactLine(r.Path, r.Kind, r.Bytes))
	}
}

// WriteManifest writes m to path in the given format, creating parent
// directories as needed.
func WriteManifest(m *bundle.Manifest, path string, format output.Format) error {
	if format != output.FormatYAML && format != output.FormatJSON {
		return oerrors.NewValidationError(
			fmt.Sprintf("unsupported manifest format %q", format), "", "manifest-format",
			"Use yaml or json.")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return oerrors.Wrap(oerrors.ErrPermission, "could not create manifest directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrPermission, "could not create manifest file "+path)
	}
	defer f.Close()

	if err := output.WriteDocument(m, format, f); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return f.Close()
}
