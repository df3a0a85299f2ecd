package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/wbundle/internal/output"
	"github.com/opmodel/wbundle/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show wbundle version information.

Displays:
  - wbundle version, commit, and build date
  - CUE SDK and esbuild versions compiled into the binary`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			output.Println(version.Get().String())
			return nil
		},
	}
}
