package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/packager"
	"github.com/oshuvalov/bot-deployer/internal/version"
)

var (
	// distDir holds the distributable release files.
	distDir string

	// outputPath is where the release manifest is written.
	outputPath string

	// releaseVersion overrides the manifest version.
	releaseVersion string

	// logLevel is the minimum level for console output.
	logLevel string

	// rootCmd represents the base command that builds the release manifest.
	rootCmd = &cobra.Command{
		Use:   "bot-packager",
		Short: "Build the release manifest for a distribution directory",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			return packager.Run(ctx, &packager.Options{
				DistDir:    distDir,
				OutputPath: outputPath,
				Version:    releaseVersion,
			})
		},
	}
)

// Execute runs the bot-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&distDir, "dist", "d", "dist", "directory holding the release files")
	rootCmd.Flags().StringVarP(&outputPath, "out", "o", packager.ManifestFilename, "manifest output path")
	rootCmd.Flags().StringVar(&releaseVersion, "release-version", "", "manifest version (defaults to build version)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
}
