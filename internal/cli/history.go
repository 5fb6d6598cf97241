package cli

import (
	"github.com/spf13/cobra"

	"stake-mirror-watch/internal/app"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the account's merged mint/burn/claim history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().History(cmd.Context(), app.HistoryOptions{Limit: historyLimit})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to print")
}
