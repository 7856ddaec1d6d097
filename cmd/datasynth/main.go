package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datasynth/synth/internal/utils"
	"github.com/datasynth/synth/pkg/runner"
	"github.com/datasynth/synth/pkg/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "datasynth",
		Short:         "Synthetic accounting data generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGenerateCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersion())
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		configPath string
		output     string
		compact    bool
		debug      bool
		phases     []string
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic ledger dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := utils.NewLogger(debug)

			if err := loadConfig(configPath, logger); err != nil {
				return err
			}

			cfg, err := runner.ConfigFromViper()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.Output.Path = output
				cfg.Monitor.OutputPath = output
			}
			if cmd.Flags().Changed("compact") {
				cfg.Output.Compact = compact
			}
			if cmd.Flags().Changed("seed") {
				cfg.Generation.Seed = seed
			}
			if cmd.Flags().Changed("phases") {
				if cfg.Phases, err = runner.ParsePhaseList(phases); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := runner.New(cfg, logger).Run(ctx)
			if err != nil {
				return err
			}
			logResult(logger, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file (default ./datasynth.yaml)")
	cmd.Flags().StringVar(&output, "output", "", "Output directory")
	cmd.Flags().BoolVar(&compact, "compact", false, "Write msgpack instead of JSONL")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringSliceVar(&phases, "phases", nil, "Phases to run, in order")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed")

	return cmd
}

func loadConfig(path string, logger *logrus.Logger) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("datasynth")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		logger.Info("No config file found, proceeding with environment variables only.")
	}

	viper.SetEnvPrefix("DATASYNTH")
	viper.AutomaticEnv()
	return nil
}

func logResult(logger *logrus.Logger, result *runner.Result) {
	s := result.Summary
	fields := logrus.Fields{
		"session":     result.SessionID,
		"items":       s.TotalItems,
		"dropped":     s.DroppedCount,
		"errors":      s.ErrorCount,
		"duration_ms": s.TotalTimeMS,
		"rate":        fmt.Sprintf("%.0f/s", s.AvgItemsPerSecond),
		"phases":      len(s.PhasesCompleted),
		"compact":     result.Compact,
		"peak_level":  result.PeakLevel.String(),
	}
	if s.PeakMemoryMB != nil {
		fields["peak_memory_mb"] = *s.PeakMemoryMB
	}
	if result.Router.SinkErrors > 0 {
		fields["sink_errors"] = result.Router.SinkErrors
	}
	logger.WithFields(fields).Info("generation finished")
}
