package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"restaurants/internal/app"
	"restaurants/internal/config"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		addr     string
		schedule string
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, optionally with a cron schedule and an input watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) {
				if cmd.Flags().Changed("addr") {
					cfg.Server.Addr = addr
				}
				if cmd.Flags().Changed("schedule") {
					cfg.Server.Schedule = schedule
				}
				if cmd.Flags().Changed("watch") {
					cfg.Server.Watch = watch
				}
			}
			return withApp(cmd, opts, func(a *app.App) error {
				return a.Serve(cmd.Context())
			}, override)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression for scheduled runs")
	cmd.Flags().BoolVar(&watch, "watch", false, "run when a partition in the input directory changes")
	return cmd
}

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				return a.ServeMCP(cmd.Context())
			})
		},
	}
}

func newPublishCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Copy the final dataset into the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				n, err := a.Publish(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d rows to %s table %q\n", n, a.Config().Publish.Driver, a.Config().Publish.Table)
				return nil
			})
		},
	}
}
