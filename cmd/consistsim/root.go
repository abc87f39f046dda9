package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tramsim/consist/internal/config"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigDir string
	LogLevel  string
	Storage   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "consistsim",
		Short: "Rail-car consist coupling simulator",
		Long: `consistsim couples cars into a consist, propagates control lines and
carries messages between coupled cars, tick by tick.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", ".", "directory containing "+config.FileName)
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().StringVar(&opts.Storage, "storage", "", "override the storage type (memory|sqlite|postgres|influx)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// loadConfig reads the config file; a missing file leaves the defaults.
func loadConfig(opts *rootOptions) error {
	err := config.Load(opts.ConfigDir)
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.LogLevel != "" {
		viper.Set("logLevel", opts.LogLevel)
	}
	if opts.Storage != "" {
		viper.Set("storage.type", opts.Storage)
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
