// Package cmd provides CLI command implementations.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/wbundle/internal/cmdutil"
	"github.com/opmodel/wbundle/internal/config"
	"github.com/opmodel/wbundle/internal/output"
	"github.com/opmodel/wbundle/internal/version"
)

// NewRootCmd creates the root command for the wbundle CLI.
func NewRootCmd() *cobra.Command {
	var (
		globals        cmdutil.GlobalConfig
		configFlag     string
		verboseFlag    bool
		timestampsFlag bool
	)

	rootCmd := &cobra.Command{
		Use:   "wbundle",
		Short: "Bundle web applications with partitioned workers",
		Long: `wbundle bundles JavaScript and TypeScript applications with esbuild.

Modules referenced as new URL("./worker.ts", import.meta.url) are compiled
by their own sub-build, once per module however many files reference them,
and the reference is replaced by the emitted artifact path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			globals.Verbose = verboseFlag
			initializeGlobals(cmd, &globals, configFlag, timestampsFlag)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config file (env: WBUNDLE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&timestampsFlag, "timestamps", true, "Show timestamps in log output")

	rootCmd.AddCommand(NewBuildCmd(&globals))
	rootCmd.AddCommand(NewConfigCmd(&globals))
	rootCmd.AddCommand(NewManifestCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// initializeGlobals loads configuration and sets up logging. A config load
// failure is kept in globals and reported by the commands that need it.
func initializeGlobals(cmd *cobra.Command, globals *cmdutil.GlobalConfig, configFlag string, timestampsFlag bool) {
	globals.ConfigPath = config.ResolveConfigPath(config.ResolveConfigPathOptions{FlagValue: configFlag})

	loader, err := config.NewLoader()
	if err == nil {
		globals.Loaded, err = loader.Load(globals.ConfigPath.ConfigPath, globals.ConfigPath.Explicit())
	}
	globals.LoadErr = err

	// Timestamps: flag (if explicitly set) > config > default (nil = true)
	logCfg := output.LogConfig{Verbose: globals.Verbose}
	if cmd.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(timestampsFlag)
	} else if globals.Loaded != nil && globals.Loaded.Config.Log.Timestamps != nil {
		logCfg.Timestamps = globals.Loaded.Config.Log.Timestamps
	}
	output.SetupLogging(logCfg)

	info := version.Get()
	output.Debug("wbundle started",
		"version", info.Version,
		"esbuild", info.EsbuildVersion,
		"config", globals.ConfigPath.ConfigPath,
		"config_source", globals.ConfigPath.Source,
	)
	if err != nil {
		output.Debug("config load error", "error", err)
	}
}
