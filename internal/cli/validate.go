package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"market-state-engine/internal/app"
)

var (
	validateInput     string
	validateCanonical string
	validateEpsilon   float64
)

// Exit codes: 0 when all records agree, 1 when mismatches were found,
// 2 when the comparison could not be run at all.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Recompute records independently and compare against canonical output",
	Run: func(cmd *cobra.Command, args []string) {
		report, err := getApp().Validate(cmd.Context(), app.ValidateOptions{
			InputPath:     validateInput,
			CanonicalPath: validateCanonical,
			Epsilon:       validateEpsilon,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if !report.OK() {
			os.Exit(1)
		}
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateInput, "input", "", "Path to the wide price CSV")
	validateCmd.Flags().StringVar(&validateCanonical, "canonical", "", "Path to the canonical NDJSON records")
	validateCmd.Flags().Float64Var(&validateEpsilon, "epsilon", 0, "Numeric tolerance (defaults to config)")
}
