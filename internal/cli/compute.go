package cli

import (
	"github.com/spf13/cobra"

	"market-state-engine/internal/app"
)

var (
	computeInput string
	computeOut   string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Evaluate signals over a price CSV and write canonical NDJSON records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Compute(cmd.Context(), app.ComputeOptions{
			InputPath: computeInput,
			OutPath:   computeOut,
		})
	},
}

func init() {
	computeCmd.Flags().StringVar(&computeInput, "input", "", "Path to the wide price CSV")
	computeCmd.Flags().StringVar(&computeOut, "out", "", "Path to write canonical NDJSON records")
}
