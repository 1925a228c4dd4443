// Package cli is the restaurants command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"restaurants/internal/app"
	"restaurants/internal/config"
)

type rootOptions struct {
	configPath string
	logFormat  string
	logLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "restaurants",
		Short:         "Merge, geocode and geohash restaurant partitions",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newRunCommand(opts),
		newStageCommand(opts),
		newServeCommand(opts),
		newMCPCommand(opts),
		newRunsCommand(opts),
		newVariablesCommand(opts),
		newPublishCommand(opts),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// withApp loads the configuration, builds the app and closes it when fn
// returns. overrides may adjust the configuration before the app is built.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(*app.App) error, overrides ...func(*config.Config)) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		o(cfg)
	}
	logger, err := app.NewLogger(cmd.ErrOrStderr(), opts.logFormat, opts.logLevel)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
