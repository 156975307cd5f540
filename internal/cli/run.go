package cli

import (
	"github.com/spf13/cobra"

	"market-state-engine/internal/app"
)

var (
	runInput  string
	runOutDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the periodic refresh loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{
			InputPath: runInput,
			OutDir:    runOutDir,
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "Path to the wide price CSV")
	runCmd.Flags().StringVar(&runOutDir, "out-dir", "outputs", "Directory for state.json and CHANGELOG.md")
}
