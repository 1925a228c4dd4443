package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"restaurants/internal/app"
)

// Variables live in the run-history database and are consulted for the
// credential when secrets.backend is "sqlite".
func newVariablesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "variables",
		Aliases: []string{"vars"},
		Short:   "Manage variables stored in the run-history database",
	}

	warnBackend := func(cmd *cobra.Command, a *app.App) {
		if b := a.Config().Secrets.Backend; b != "sqlite" {
			cmd.PrintErrf("note: secrets.backend is %q, runs will not read these variables\n", b)
		}
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				warnBackend(cmd, a)
				return a.Variables().Set(args[0], []byte(args[1]))
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				v, err := a.Variables().Get(args[0])
				if err != nil {
					return err
				}
				if v == nil {
					return fmt.Errorf("variable %q is not set", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(v))
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				return a.Variables().Delete(args[0])
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List variable keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				keys, err := a.Variables().Keys()
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(set, get, del, list)
	return cmd
}
