package main

import (
	"fmt"
	"math"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/lib/hrtime"
	"github.com/benz9527/bidtree/lib/tree"
)

type treeReport struct {
	name    string
	size    int64
	height  int
	elapsed time.Duration
	err     error
}

func buildTree(name string, t tree.OrderedTree[bid.Bid], bids []bid.Bid, validate func() error) treeReport {
	sw := hrtime.StartStopwatch(hrtime.SysClock)
	for _, b := range bids {
		t.Insert(b)
	}
	return treeReport{
		name:    name,
		size:    t.Len(),
		height:  t.Height(),
		elapsed: sw.Elapsed(),
		err:     validate(),
	}
}

// minHeight is the height of the complete binary tree with n nodes.
func minHeight(n int64) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n + 1))))
}

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]...",
		Short: "Build both trees from the CSV files and validate them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			bids, parseErr := bid.MergeResults(bid.LoadFiles(cmd.Context(), nil, cfg.Data.Dir, args...))

			rbt := tree.NewRBTree[bid.Bid](bid.Compare)
			bst := tree.NewBSTree[bid.Bid](bid.Compare)
			defer func() {
				rbt.Release()
				bst.Release()
			}()
			reports := []treeReport{
				buildTree("rbtree", rbt, bids, func() error { return tree.RBTreeValidate(rbt) }),
				buildTree("bstree", bst, bids, func() error { return tree.BSTOrderValidate[bid.Bid](bst) }),
			}

			tw := table.NewWriter()
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.Style().Options.SeparateFooter = false
			tw.Style().Options.SeparateRows = false
			tw.AppendHeader(table.Row{"TREE", "BIDS", "HEIGHT", "MIN HEIGHT", "BUILD TIME", "VALID"})
			var merr error
			for _, r := range reports {
				valid := "ok"
				if r.err != nil {
					valid = r.err.Error()
					merr = multierr.Append(merr, fmt.Errorf("%s: %w", r.name, r.err))
				}
				tw.AppendRow(table.Row{r.name, r.size, r.height, minHeight(r.size), r.elapsed.Round(time.Microsecond), valid})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return multierr.Append(parseErr, merr)
		},
	}
}
