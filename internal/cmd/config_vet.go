package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/wbundle/internal/cmdutil"
	"github.com/opmodel/wbundle/internal/config"
	"github.com/opmodel/wbundle/internal/output"
)

// NewConfigVetCmd creates the config vet command.
func NewConfigVetCmd(globals *cmdutil.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "vet",
		Short: "Validate configuration",
		Long: `Validate a wbundle configuration file.

Checks performed:
  1. Config file exists at the resolved path
  2. Config file is valid CUE, YAML or JSON
  3. Config unifies with the embedded schema
  4. Cross-field rules pass (outputs, [hash]-free names, filters, debounce)

Examples:
  # Validate ./wbundle.cue
  wbundle config vet

  # Validate another file
  wbundle config vet --config ./web/wbundle.cue`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigVet(globals.ConfigPath)
		},
	}
}

func runConfigVet(path config.ResolveConfigPathResult) error {
	output.Debug("validating config", "path", path.ConfigPath, "source", path.Source)

	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	// A default path that does not exist is still an error here.
	loaded, err := loader.Load(path.ConfigPath, true)
	if err != nil {
		return err
	}
	if err := config.Validate(loaded.Config); err != nil {
		return err
	}

	output.Println(output.FormatCheckmark("Configuration is valid: " + loaded.Path))
	return nil
}
