package cli

import (
	"github.com/spf13/cobra"

	"market-state-engine/internal/app"
)

var (
	fetchOut   string
	fetchStart string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily closes for all configured tickers into a wide CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Fetch(cmd.Context(), app.FetchOptions{
			OutPath: fetchOut,
			Start:   fetchStart,
		})
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Path to write the merged price CSV")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "First date to fetch, YYYY-MM-DD (defaults to config)")
}
