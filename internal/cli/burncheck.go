package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stake-mirror-watch/internal/app"
)

var (
	burnAmount string
	burnMode   string
	burnSubmit bool
)

var burnCheckCmd = &cobra.Command{
	Use:   "burn-check",
	Short: "Validate a proposed burn and optionally dry-run its submission",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount := decimal.Zero
		if burnAmount != "" {
			parsed, err := decimal.NewFromString(burnAmount)
			if err != nil {
				return fmt.Errorf("invalid --amount value: %w", err)
			}
			amount = parsed
		}

		return getApp().BurnCheck(cmd.Context(), app.BurnCheckOptions{
			Amount: amount,
			Mode:   burnMode,
			Submit: burnSubmit,
		})
	},
}

func init() {
	burnCheckCmd.Flags().StringVar(&burnAmount, "amount", "", "sUSD amount to burn (custom mode)")
	burnCheckCmd.Flags().StringVar(&burnMode, "mode", "custom", "Burn mode: custom, target, or clear")
	burnCheckCmd.Flags().BoolVar(&burnSubmit, "submit", false, "Walk a ready request through the dry-run submitter")
}
