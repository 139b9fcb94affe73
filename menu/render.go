package menu

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/benz9527/bidtree/bid"
)

type OutputFormat string

const (
	TableOutput OutputFormat = "table"
	JSONOutput  OutputFormat = "json"
	YAMLOutput  OutputFormat = "yaml"
)

func ParseOutputFormat(format string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(format))); f {
	case "", TableOutput:
		return TableOutput, nil
	case JSONOutput, YAMLOutput:
		return f, nil
	default:
	}
	return "", fmt.Errorf("unknown output format: %s", format)
}

type bidView struct {
	ID     int64  `json:"auctionId" yaml:"auctionId"`
	Title  string `json:"auctionTitle" yaml:"auctionTitle"`
	Fund   string `json:"fund" yaml:"fund"`
	Amount string `json:"winningBid" yaml:"winningBid"`
}

func toViews(bids []bid.Bid) []bidView {
	views := make([]bidView, 0, len(bids))
	for _, b := range bids {
		views = append(views, bidView{ID: b.ID, Title: b.Title, Fund: b.Fund, Amount: bid.FormatAmount(b.Amount)})
	}
	return views
}

// RenderBids writes the bids in the ID order they are given.
func RenderBids(w io.Writer, bids []bid.Bid, format OutputFormat) error {
	switch format {
	case "", TableOutput:
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateFooter = false
		tw.Style().Options.SeparateRows = false
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
		})
		tw.AppendHeader(table.Row{"ID", "TITLE", "FUND", "AMOUNT"})
		total := 0.0
		for _, b := range bids {
			tw.AppendRow(table.Row{b.ID, b.Title, b.Fund, bid.FormatAmount(b.Amount)})
			total += b.Amount
		}
		tw.AppendFooter(table.Row{len(bids), "BIDS", "", bid.FormatAmount(total)})
		_, err := fmt.Fprintln(w, tw.Render())
		return err
	case JSONOutput:
		out, err := json.MarshalIndent(toViews(bids), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case YAMLOutput:
		out, err := yaml.Marshal(toViews(bids))
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
	}
	return fmt.Errorf("unknown output format: %s", format)
}
