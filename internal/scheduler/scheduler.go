// Package scheduler decides when the wallpaper is due for an update and
// keeps the next due instant on disk.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// TimestampFile is the name of the state file inside the home directory.
const TimestampFile = "timestamp"

// ErrUninitialized is returned by NextDue when no valid timestamp is stored.
var ErrUninitialized = errors.New("schedule not initialized")

// Stored instants must fall within years 1 to 9999.
var (
	minDue = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxDue = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()
)

// PollResult is what a poll did.
type PollResult int

const (
	PollInitialized PollResult = iota
	PollNotDue
	PollUpdated
)

func (r PollResult) String() string {
	switch r {
	case PollInitialized:
		return "initialized"
	case PollNotDue:
		return "not due"
	default:
		return "updated"
	}
}

// Updater performs the update when one is due.
type Updater interface {
	Run(ctx context.Context) error
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(ctx context.Context) error

func (f UpdaterFunc) Run(ctx context.Context) error { return f(ctx) }

// Scheduler gates updates on the stored timestamp.
type Scheduler struct {
	path      string
	frequency time.Duration
	updater   Updater
	now       func() time.Time
}

// New creates a Scheduler keeping its state in {home}/timestamp.
func New(home string, frequency time.Duration, updater Updater) *Scheduler {
	return &Scheduler{
		path:      filepath.Join(home, TimestampFile),
		frequency: frequency,
		updater:   updater,
		now:       time.Now,
	}
}

// Path returns the timestamp file location.
func (s *Scheduler) Path() string { return s.path }

// Poll runs the updater when the stored instant has passed or force is set,
// then moves the next due instant to now + frequency. A missing or corrupt
// timestamp is re-initialized without updating, forced or not. When the
// updater fails the timestamp is left as it was.
func (s *Scheduler) Poll(ctx context.Context, force bool) (PollResult, error) {
	now := s.now()

	due, err := s.NextDue()
	if err != nil {
		if !errors.Is(err, ErrUninitialized) {
			return PollInitialized, err
		}
		log.WithError(err).Info("Initializing update schedule")
		if err := s.write(now.Add(s.frequency)); err != nil {
			return PollInitialized, err
		}
		return PollInitialized, nil
	}

	if !force && now.Before(due) {
		log.Debugf("Next update due at %s", due.Format(time.RFC3339))
		return PollNotDue, nil
	}

	if force {
		log.Info("Forcing update")
	}
	if s.updater == nil {
		return PollUpdated, errors.New("no updater configured")
	}
	if err := s.updater.Run(ctx); err != nil {
		return PollUpdated, err
	}

	if err := s.write(now.Add(s.frequency)); err != nil {
		return PollUpdated, err
	}
	return PollUpdated, nil
}

// NextDue reads the stored next due instant. Fractional seconds are accepted.
func (s *Scheduler) NextDue() (time.Time, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return time.Time{}, fmt.Errorf("%w: %s does not exist", ErrUninitialized, s.path)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading %s: %w", s.path, err)
	}

	text := strings.TrimSpace(string(raw))
	corrupt := fmt.Errorf("%w: corrupt timestamp %q in %s", ErrUninitialized, text, s.path)
	if secs, err := strconv.ParseInt(text, 10, 64); err == nil {
		if secs < minDue || secs > maxDue {
			return time.Time{}, corrupt
		}
		return time.Unix(secs, 0), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < float64(minDue) || f > float64(maxDue) {
		return time.Time{}, corrupt
	}
	secs := math.Floor(f)
	return time.Unix(int64(secs), int64((f-secs)*float64(time.Second))), nil
}

func (s *Scheduler) write(due time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(s.path), err)
	}
	content := strconv.FormatInt(due.Unix(), 10)
	if err := os.WriteFile(s.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	log.Debugf("Next update scheduled for %s", due.Format(time.RFC3339))
	return nil
}
