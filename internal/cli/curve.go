package cli

import (
	"github.com/spf13/cobra"

	"stake-mirror-watch/internal/app"
)

var (
	curveCSVPath string
	curvePNGPath string
	curveLimit   int
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Reconcile the debt-vs-mirror curve once and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Curve(cmd.Context(), app.CurveOptions{
			CSVPath: curveCSVPath,
			PNGPath: curvePNGPath,
			Limit:   curveLimit,
		})
	},
}

func init() {
	curveCmd.Flags().StringVar(&curveCSVPath, "csv", "", "Path to write CSV data instead of stdout")
	curveCmd.Flags().StringVar(&curvePNGPath, "png", "", "Path to write PNG chart instead of stdout")
	curveCmd.Flags().IntVar(&curveLimit, "limit", 0, "Print only the most recent N points")
}
