package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/bidtree/app"
	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/menu"
	"github.com/benz9527/bidtree/store"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bid id %q", arg)
	}
	return id, nil
}

func newLoadCmd(c *cli) *cobra.Command {
	var replace, clearFirst bool
	cmd := &cobra.Command{
		Use:   "load [file]...",
		Short: "Load the bids of the CSV files in the data dir",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := store.IgnoreDuplicates
			if replace {
				policy = store.ReplaceDuplicates
			}
			return c.runApp(cmd, func(ctx context.Context, deps app.Deps) error {
				if clearFirst {
					if err := deps.Backend.Clear(ctx); err != nil {
						return err
					}
				}
				results := bid.LoadFiles(ctx, deps.Pool, deps.Config.Data.Dir, args...)
				bids, parseErr := bid.MergeResults(results)
				stats, err := deps.Backend.Load(ctx, bids, policy)
				if err != nil {
					return multierr.Append(parseErr, err)
				}
				deps.Logger.InfoContext(ctx, "bid files loaded",
					zap.Strings("files", args),
					zap.String("policy", policy.String()),
				)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d bids read: %d inserted, %d replaced, %d ignored\n",
					stats.Total(), stats.Inserted, stats.Replaced, stats.Ignored)
				return parseErr
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the stored bids with the same ID")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "Remove all the stored bids before the load")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all the bids in the ID order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := c.outputFormat()
			if err != nil {
				return err
			}
			return c.runApp(cmd, func(ctx context.Context, deps app.Deps) error {
				bids, err := deps.Backend.List(ctx)
				if err != nil {
					return err
				}
				return menu.RenderBids(cmd.OutOrStdout(), bids, format)
			})
		},
	}
}

func newFindCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "find [id]",
		Short: "Print the bid with the ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.runApp(cmd, func(ctx context.Context, deps app.Deps) error {
				b, ok, err := deps.Backend.Find(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Bid Id %d not found.\n", id)
					return nil
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), b.String())
				return nil
			})
		},
	}
}

func newRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove the bid with the ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.runApp(cmd, func(ctx context.Context, deps app.Deps) error {
				ok, err := deps.Backend.Remove(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Bid Id %d not found.\n", id)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Bid Id %d removed.\n", id)
				return nil
			})
		},
	}
}
