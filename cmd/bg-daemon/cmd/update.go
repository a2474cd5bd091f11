package cmd

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the wallpaper now without touching the schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		lock, err := acquireRunLock(globalConfig.Home)
		if err != nil {
			return err
		}
		defer releaseRunLock(lock)

		p := newPipeline(globalConfig, globalHttpTransport, progressFlag)
		defer p.Close()

		outcome, err := p.executor.Update(cmd.Context())
		if err != nil {
			return err
		}
		reportOutcome(cmd.OutOrStdout(), outcome)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
