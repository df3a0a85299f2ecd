package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/wbundle/internal/cmdutil"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd(globals *cmdutil.GlobalConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  `Create and validate wbundle.cue configuration files.`,
	}

	cmd.AddCommand(NewConfigInitCmd(globals))
	cmd.AddCommand(NewConfigVetCmd(globals))

	return cmd
}
