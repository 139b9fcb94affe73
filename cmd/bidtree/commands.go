package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/benz9527/bidtree/app"
	"github.com/benz9527/bidtree/config"
	"github.com/benz9527/bidtree/menu"
)

type cli struct {
	configPath string
	output     string
	in         io.Reader
	appOpts    []app.Option
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.configPath == "" {
		return config.NewConfig()
	}
	return config.NewConfigFromFile(c.configPath)
}

func (c *cli) outputFormat() (menu.OutputFormat, error) {
	return menu.ParseOutputFormat(c.output)
}

// runApp builds the application for one command and stops it after fn.
func (c *cli) runApp(cmd *cobra.Command, fn func(ctx context.Context, deps app.Deps) error, opts ...app.Option) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ctx := app.WithCommand(cmd.Context(), cmd.Name())
	return app.Run(ctx, cfg, fn, append(opts, c.appOpts...)...)
}

func newRootCmd(in io.Reader, appOpts ...app.Option) *cobra.Command {
	c := &cli{in: in, appOpts: appOpts}
	menuCmd := newMenuCmd(c)
	rootCmd := &cobra.Command{
		Use:          app.Name,
		Short:        "Auction bids kept in ordered trees, a SQL table or redis",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         menuCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path of the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&c.output, "output", "o", "", "Output format of the bids, table, json or yaml")
	rootCmd.AddCommand(
		menuCmd,
		newLoadCmd(c),
		newListCmd(c),
		newFindCmd(c),
		newRemoveCmd(c),
		newCheckCmd(c),
	)
	return rootCmd
}

// Run executes CLI.
func Run(ctx context.Context, in io.Reader) int {
	if err := newRootCmd(in).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
