package main

import (
	"fmt"
	"os"

	"github.com/san-kum/ascent/internal/config"
	"github.com/san-kum/ascent/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	logger     = zap.NewNop()
)

// main registers the ascent commands and exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "ascent",
		Short:         "closed-loop ascent guidance solver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, _, err := logging.New(verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ascent", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newSolveCmd(),
		newListCmd(),
		newShowCmd(),
		newPlotCmd(),
		newExportJSONCmd(),
		newExportCSVCmd(),
		newPresetsCmd(),
		newInitCmd(),
		newSweepCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "standard", "named scenario when no config file is given")
}

// loadScenario reads --config, falling back to --preset.
func loadScenario() (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", configFile, err)
		}
		if cfg.Name == "" {
			cfg.Name = configFile
		}
		return cfg, cfg.Validate()
	}
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
	}
	return cfg, nil
}
