package cmd

import (
	"errors"
	"fmt"
	"time"

	"go-bg-daemon/internal/database"
	"go-bg-daemon/internal/helpers"
	"go-bg-daemon/internal/scheduler"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show when the next update is due and what was applied last",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	out := cmd.OutOrStdout()

	s := scheduler.New(cfg.Home, time.Duration(cfg.Daemon.Frequency)*time.Second, nil)
	due, err := s.NextDue()
	switch {
	case errors.Is(err, scheduler.ErrUninitialized):
		fmt.Fprintln(out, "Next update: not scheduled yet (run poll to initialize)")
	case err != nil:
		return err
	case due.After(time.Now()):
		fmt.Fprintf(out, "Next update: %s (in %s)\n", due.Format(time.RFC1123), time.Until(due).Round(time.Second))
	default:
		fmt.Fprintf(out, "Next update: due now (since %s)\n", due.Format(time.RFC1123))
	}

	fmt.Fprintf(out, "Target: %s\n", cfg.Daemon.Target)
	fmt.Fprintf(out, "Mode: %s\n", cfg.Fetcher.Mode)

	if !helpers.IsRegularFile(cfg.DatabasePath) {
		return nil
	}
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	last, err := db.Recent(1)
	if err != nil {
		return err
	}
	if len(last) > 0 {
		e := last[0]
		fmt.Fprintf(out, "Last update: %s %s (%q) at %s\n", e.Status, e.ImageID, e.Title, e.Timestamp.Format(time.RFC1123))
	}
	return nil
}
