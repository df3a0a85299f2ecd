package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opmodel/wbundle/internal/cmdutil"
	"github.com/opmodel/wbundle/internal/config"
	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/output"
)

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd(globals *cmdutil.GlobalConfig) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a wbundle.cue file",
		Long: `Create a starter wbundle.cue configuration.

The file is written to the resolved config path:
  --config flag > WBUNDLE_CONFIG env > ./wbundle.cue

Examples:
  # Create ./wbundle.cue
  wbundle config init

  # Overwrite an existing file
  wbundle config init --force`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigInit(globals.ConfigPath.ConfigPath, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

func runConfigInit(path string, force bool) error {
	if path == "" {
		path = config.DefaultConfigFile
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrNotFound, "could not resolve config path")
	}

	if _, err := os.Stat(path); err == nil && !force {
		return &oerrors.DetailError{
			Type:     "validation failed",
			Message:  "configuration already exists",
			Location: path,
			Hint:     "Use --force to overwrite existing configuration.",
			Cause:    oerrors.ErrValidation,
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return oerrors.Wrap(oerrors.ErrPermission, "could not create "+filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(config.DefaultConfigTemplate), 0o644); err != nil {
		return oerrors.Wrap(oerrors.ErrPermission, "could not write "+path)
	}

	output.Println(output.FormatCheckmark("Configuration written to " + path))
	output.Println("Validate with: wbundle config vet")
	return nil
}
