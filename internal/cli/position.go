package cli

import (
	"github.com/spf13/cobra"
)

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Compute and print the account's staking position",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Position(cmd.Context())
	},
}
