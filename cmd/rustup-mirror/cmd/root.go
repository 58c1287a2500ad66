package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jiegec/rustup-mirror/internal/config"
	"github.com/jiegec/rustup-mirror/internal/service/mirror"
	"github.com/jiegec/rustup-mirror/internal/version"
)

var errConfigExists = errors.New("configuration file already exists")

var (
	// flagValues holds every parsed command line flag.
	flagValues settings

	// dryRun makes gc report deletions without performing them.
	dryRun bool

	// rootCmd mirrors the configured channels and rustup itself.
	rootCmd = &cobra.Command{
		Use:          "rustup-mirror",
		Short:        "Mirror Rust toolchain distributions for rustup",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), &flagValues)
			if err != nil {
				return err
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err = mirror.Run(ctx, &mirror.Options{Config: cfg})

			return err
		},
	}

	// gcCmd collects garbage using the manifests already in the mirror.
	gcCmd = &cobra.Command{
		Use:          "gc",
		Short:        "Remove mirrored files no published manifest references",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), &flagValues)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err = mirror.Collect(ctx, &mirror.Options{Config: cfg, DryRun: dryRun})

			return err
		},
	}

	// initConfigCmd writes a configuration file with the default settings.
	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a configuration file with default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s: %w", path, errConfigExists)
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)

			return nil
		},
	}
)

// Execute runs the rustup-mirror CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	bindFlags(rootCmd.PersistentFlags(), &flagValues)

	gcCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be deleted without deleting")

	rootCmd.AddCommand(gcCmd, initConfigCmd)
}
