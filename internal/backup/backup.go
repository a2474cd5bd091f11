// Package backup keeps content-addressed copies of the wallpaper file so a
// failed update can be rolled back.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-bg-daemon/internal/helpers"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNotRegularFile = errors.New("not a regular file")
	ErrNoBackup       = errors.New("no backup available")
)

// Status is the outcome of a best-effort backup or restore.
type Status int

const (
	Succeeded Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "Succeeded"
	case Skipped:
		return "Skipped"
	default:
		return "Failed"
	}
}

// Result reports what a backup or restore did. Path is the backup file
// involved, set whenever one exists.
type Result struct {
	Status Status
	Path   string
	Err    error
}

// Available reports whether Path names a usable backup.
func (r Result) Available() bool {
	return r.Status != Failed && r.Path != ""
}

// PathFor returns the backup location for the current content of target:
// {stem}-{digest}{ext} in the same directory.
func PathFor(target string) (string, error) {
	if !helpers.IsRegularFile(target) {
		return "", fmt.Errorf("%w: %s", ErrNotRegularFile, target)
	}
	digest, err := helpers.DigestFile(target, helpers.DefaultDigestLength)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(filepath.Base(target), ext)
	return filepath.Join(filepath.Dir(target), stem+"-"+digest+ext), nil
}

// Backup copies target to its digest-named sibling unless that copy already
// exists. A missing target is Skipped with no Path.
func Backup(target string) Result {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		log.Debugf("Nothing to back up at %s", target)
		return Result{Status: Skipped}
	}

	backupPath, err := PathFor(target)
	if err != nil {
		log.WithError(err).Warnf("Could not back up %s", target)
		return Result{Status: Failed, Err: err}
	}

	if helpers.IsRegularFile(backupPath) {
		log.Debugf("Backup %s already exists", backupPath)
		return Result{Status: Skipped, Path: backupPath}
	}

	if err := helpers.CopyFile(target, backupPath); err != nil {
		log.WithError(err).Warnf("Could not back up %s", target)
		return Result{Status: Failed, Err: err}
	}
	log.Infof("Backed up %s to %s", target, backupPath)
	return Result{Status: Succeeded, Path: backupPath}
}

// Restore copies backupPath over target. The backup file is left in place.
func Restore(backupPath, target string) Result {
	if backupPath == "" || !helpers.IsRegularFile(backupPath) {
		err := fmt.Errorf("%w for %s", ErrNoBackup, target)
		log.WithError(err).Warn("Restore failed")
		return Result{Status: Failed, Path: backupPath, Err: err}
	}
	if err := helpers.CopyFile(backupPath, target); err != nil {
		log.WithError(err).Warnf("Could not restore %s from %s", target, backupPath)
		return Result{Status: Failed, Path: backupPath, Err: err}
	}
	log.Infof("Restored %s from %s", target, backupPath)
	return Result{Status: Succeeded, Path: backupPath}
}
