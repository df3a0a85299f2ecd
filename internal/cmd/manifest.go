package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/output"
)

// errManifestsDiffer is returned by manifest diff when differences exist.
var errManifestsDiffer = errors.New("manifests differ")

// NewManifestCmd creates the manifest command group.
func NewManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect build manifests",
		Long:  `Inspect manifests written by 'wbundle build --manifest'.`,
	}
	cmd.AddCommand(NewManifestDiffCmd())
	return cmd
}

// NewManifestDiffCmd creates the manifest diff command.
func NewManifestDiffCmd() *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two build manifests",
		Long: `Compare two build manifests structurally.

Both YAML and JSON manifests are accepted, in any combination.

Examples:
  # Show what changed between two builds
  wbundle manifest diff old/manifest.yaml dist/manifest.yaml

  # Fail when anything changed
  wbundle manifest diff --exit-code a.json b.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runManifestDiff(args[0], args[1], exitCode)
		},
	}

	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with status 1 when the manifests differ")

	return cmd
}

func runManifestDiff(oldPath, newPath string, exitCode bool) error {
	oldData, err := readManifest(oldPath)
	if err != nil {
		return err
	}
	newData, err := readManifest(newPath)
	if err != nil {
		return err
	}

	report, err := output.DiffDocuments(oldPath, oldData, newPath, newData, output.IsStdoutTTY())
	if err != nil {
		return oerrors.NewValidationError(err.Error(), "", "", "Both files must be YAML or JSON manifests.")
	}

	if report == "" {
		output.Println(output.FormatCheckmark("No differences"))
		return nil
	}

	output.Println(report)
	if exitCode {
		return &ExitError{Err: errManifestsDiffer, Code: ExitGeneralError, Printed: true}
	}
	return nil
}

func readManifest(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, oerrors.NewNotFoundError("manifest not found", path, "Write one with 'wbundle build --manifest <file>'.")
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
