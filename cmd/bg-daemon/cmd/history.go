package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"go-bg-daemon/internal/database"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var historyLimitFlag int

// historyCmd lists recorded update attempts
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent wallpaper updates",
	Long:  `Lists the update attempts recorded in the history database, newest first.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of entries to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer db.Close()

	entries, err := db.Recent(historyLimitFlag)
	if err != nil {
		return err
	}
	log.Debugf("Loaded %d history entries", len(entries))

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No updates recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Time\tStatus\tImage\tTitle\tPath")
	fmt.Fprintln(tw, "----\t------\t-----\t-----\t----")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.DateTime),
			e.Status,
			e.ImageID,
			e.Title,
			e.Path,
		)
	}
	return tw.Flush()
}
