package cli

import (
	"github.com/spf13/cobra"

	"market-state-engine/internal/app"
)

var (
	snapshotInput  string
	snapshotOutDir string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the latest record as state.json and append the changelog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Snapshot(cmd.Context(), app.SnapshotOptions{
			InputPath: snapshotInput,
			OutDir:    snapshotOutDir,
		})
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotInput, "input", "", "Path to the wide price CSV")
	snapshotCmd.Flags().StringVar(&snapshotOutDir, "out-dir", "outputs", "Directory for state.json and CHANGELOG.md")
}
