package cmd

import (
	"context"
	"fmt"
	"time"

	"go-bg-daemon/internal/scheduler"

	"github.com/spf13/cobra"
)

var forceFlag bool

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Update the wallpaper if it is due",
	Long: `Checks the stored schedule and runs an update when the configured
frequency has elapsed since the last one. The first poll only initializes
the schedule. --force updates immediately and restarts the schedule.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Update now regardless of the schedule")
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg := globalConfig

	lock, err := acquireRunLock(cfg.Home)
	if err != nil {
		return err
	}
	defer releaseRunLock(lock)

	p := newPipeline(cfg, globalHttpTransport, progressFlag)
	defer p.Close()

	out := cmd.OutOrStdout()
	frequency := time.Duration(cfg.Daemon.Frequency) * time.Second
	s := scheduler.New(cfg.Home, frequency, scheduler.UpdaterFunc(func(ctx context.Context) error {
		outcome, err := p.executor.Update(ctx)
		if err != nil {
			return err
		}
		reportOutcome(out, outcome)
		return nil
	}))

	result, err := s.Poll(cmd.Context(), forceFlag)
	if err != nil {
		return err
	}

	switch result {
	case scheduler.PollInitialized:
		fmt.Fprintf(out, "Schedule initialized, first update in %s\n", frequency)
	case scheduler.PollNotDue:
		if due, err := s.NextDue(); err == nil {
			fmt.Fprintf(out, "Not due yet, next update at %s\n", due.Format(time.RFC1123))
		}
	}
	return nil
}
