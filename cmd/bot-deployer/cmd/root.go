package cmd

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshuvalov/bot-deployer/internal/config"
	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/deployer"
	"github.com/oshuvalov/bot-deployer/internal/version"
)

var (
	// configPath is the path to the deployment settings YAML file.
	configPath string

	// logLevel is the minimum level for console output.
	logLevel string

	// rootCmd represents the base command that runs the deployment pipeline.
	rootCmd = &cobra.Command{
		Use:   "bot-deployer",
		Short: "Deploy and update the managed bot from the latest release",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			outcome, err := deployer.Run(ctx, &deployer.Options{
				ConfigPath: configPath,
			})
			if err != nil {
				return err
			}

			if outcome.Replaced {
				// Hand control to the replaced deployer. It starts its own
				// run from the beginning with no arguments carried over,
				// sharing this process's output streams.
				handOff := exec.Command(outcome.Path)
				handOff.Stdout = os.Stdout
				handOff.Stderr = os.Stderr

				return handOff.Start()
			}

			return nil
		},
	}
)

// Execute runs the bot-deployer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
}
