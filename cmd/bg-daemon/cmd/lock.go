package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"go-bg-daemon/internal/config"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

const lockFileName = "bg-daemon.lock"

// ErrAlreadyRunning is returned when another invocation holds the run lock.
var ErrAlreadyRunning = errors.New("another bg-daemon run is in progress")

// acquireRunLock takes the exclusive run lock in home without waiting.
func acquireRunLock(home string) (*flock.Flock, error) {
	if err := config.EnsureHome(home); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(home, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held on %s)", ErrAlreadyRunning, lock.Path())
	}
	log.Debugf("Acquired run lock %s", lock.Path())
	return lock, nil
}

func releaseRunLock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		log.WithError(err).Warnf("Failed to release run lock %s", lock.Path())
	}
}
