package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"stake-mirror-watch/internal/feeds"
	"stake-mirror-watch/internal/history"
)

// History prints the account's merged mint/burn/claim history, newest first.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	subgraph := feeds.NewSubgraph(feeds.SubgraphOptions{
		BaseURL:   a.Config.Subgraph.BaseURL,
		Timeout:   a.Config.Subgraph.RequestTimeout,
		PageSize:  a.Config.Subgraph.PageSize,
		UserAgent: a.Config.Subgraph.UserAgent,
	}, a.Logger)

	issued, err := subgraph.FetchIssued(ctx)
	if err != nil {
		return err
	}
	burned, err := subgraph.FetchBurned(ctx)
	if err != nil {
		return err
	}
	claims, err := subgraph.FetchClaims(ctx, a.Config.Wallet.Address)
	if err != nil {
		return err
	}

	entries := history.Merge(issued, burned, claims, opts.Limit)
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no history entries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tType\tTotal Debt")
	for _, entry := range entries {
		value := ""
		if entry.Type != history.TypeClaim {
			value = formatDecimal(entry.Value, 2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			time.Unix(entry.Timestamp, 0).UTC().Format(time.RFC3339),
			entry.Type,
			value,
		)
	}
	writer.Flush()
	return nil
}
