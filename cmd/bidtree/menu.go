package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/benz9527/bidtree/app"
	"github.com/benz9527/bidtree/menu"
)

func newMenuCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Load, display, find and remove the bids interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := c.outputFormat()
			if err != nil {
				return err
			}
			var opts []app.Option
			if c.configPath != "" {
				opts = append(opts, app.WithConfigWatch(c.configPath))
			}
			return c.runApp(cmd, func(ctx context.Context, deps app.Deps) error {
				return menu.New(c.in, cmd.OutOrStdout(), deps.Backend,
					menu.WithLogger(deps.Logger),
					menu.WithPool(deps.Pool),
					menu.WithDataDir(deps.Config.Data.Dir),
					menu.WithOutputFormat(format),
				).Run(ctx)
			}, opts...)
		},
	}
}
