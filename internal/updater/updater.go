// Package updater runs one wallpaper update: search, select, back up, apply,
// restore on failure, then the post-update hook.
package updater

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go-bg-daemon/internal/backup"
	"go-bg-daemon/internal/downloader"
	"go-bg-daemon/internal/helpers"
	"go-bg-daemon/internal/hook"
	"go-bg-daemon/internal/models"
	"go-bg-daemon/internal/paths"
	"go-bg-daemon/internal/query"
	"go-bg-daemon/internal/selector"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
)

// Album listings are remembered per Executor for a while.
const (
	albumCacheSize = 64
	albumCacheTTL  = 30 * time.Minute
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrApplyFailed   = errors.New("failed to apply image")
)

// Gallery is the remote image source.
type Gallery interface {
	Search(ctx context.Context, query string) ([]models.GalleryEntry, error)
	AlbumImages(ctx context.Context, albumID string) ([]models.Image, error)
}

// Fetcher writes the image at link to target and returns the path written.
type Fetcher interface {
	Fetch(ctx context.Context, link, target string) (string, error)
}

// HookRunner runs the post-update command.
type HookRunner interface {
	Run(ctx context.Context, command string, env []string) error
}

// History records update attempts.
type History interface {
	RecordUpdate(entry models.HistoryEntry) (int64, error)
	HasImage(imageID string) bool
}

// Result classifies a finished update.
type Result int

const (
	NoneFound Result = iota
	Applied
	Restored
	// Failed means the apply failed and the previous wallpaper was not restored.
	Failed
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case Restored:
		return "restored"
	case Failed:
		return "failed"
	default:
		return "none found"
	}
}

// Outcome describes what an update did.
type Outcome struct {
	RunID    string
	Result   Result
	Image    *models.Image
	Path     string
	Searches int
	Backup   backup.Result
	Restore  *backup.Result
	ApplyErr error
	HookErr  error
}

// Executor performs updates against one configuration.
type Executor struct {
	cfg     models.Config
	gallery Gallery
	fetcher Fetcher
	hooks   HookRunner
	history History
	albums  *expirable.LRU[string, []models.Image]
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithHistory records every attempt that reaches the apply step.
func WithHistory(h History) Option {
	return func(e *Executor) { e.history = h }
}

// WithHookRunner replaces the default hook runner.
func WithHookRunner(r HookRunner) Option {
	return func(e *Executor) { e.hooks = r }
}

// WithRand sets the random source used for queries and selection.
func WithRand(rng *rand.Rand) Option {
	return func(e *Executor) { e.rng = rng }
}

// WithSleep replaces the wait between search attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// New creates an Executor. gallery and fetcher may be nil, in which case
// Update fails with ErrInvalidConfig.
func New(cfg models.Config, gallery Gallery, fetcher Fetcher, opts ...Option) *Executor {
	e := &Executor{
		cfg:     cfg,
		gallery: gallery,
		fetcher: fetcher,
		hooks:   hook.NewRunner(nil),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.albums = expirable.NewLRU[string, []models.Image](albumCacheSize, nil, albumCacheTTL)
	return e
}

// Validate checks the settings the update relies on.
func (e *Executor) Validate() error {
	d := e.cfg.Daemon
	var problems []string
	if d.Retries < 1 {
		problems = append(problems, fmt.Sprintf("Retries must be at least 1, got %d", d.Retries))
	}
	if d.Slack < 0 {
		problems = append(problems, fmt.Sprintf("Slack must not be negative, got %d", d.Slack))
	}
	if strings.TrimSpace(d.Target) == "" {
		problems = append(problems, "Target must be set")
	}
	if e.cfg.Fetcher.Keywords == nil {
		problems = append(problems, query.ErrKeywordsRequired.Error())
	}
	if e.gallery == nil {
		problems = append(problems, "no gallery client configured")
	}
	if e.fetcher == nil {
		problems = append(problems, "no image fetcher configured")
	}
	if d.TargetPattern != "" {
		if err := paths.ValidatePattern(d.TargetPattern); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if d.UpdateHook != "" {
		if _, err := hook.Split(d.UpdateHook); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if err := hook.ValidateEnv(d.Env); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Update runs one full update cycle. Finding nothing is not an error.
// An apply failure returns ErrApplyFailed only when backups are disabled;
// otherwise a restore is attempted and the hook still runs.
func (e *Executor) Update(ctx context.Context) (Outcome, error) {
	if err := e.Validate(); err != nil {
		return Outcome{}, err
	}

	runID := uuid.NewString()
	logger := log.WithField("run", runID)
	logger.Debug("Starting wallpaper update")

	img, searches, err := e.findCandidate(ctx)
	outcome := Outcome{RunID: runID, Result: NoneFound, Searches: searches}
	if err != nil {
		return outcome, err
	}
	if img == nil {
		logger.Infof("No suitable image found after %d searches", searches)
		return outcome, nil
	}
	outcome.Image = img

	dest, err := e.destination(*img)
	if err != nil {
		outcome.Result = Failed
		return outcome, fmt.Errorf("%w: %w", ErrApplyFailed, err)
	}
	outcome.Path = dest

	outcome.Backup = backup.Result{Status: backup.Skipped}
	if e.cfg.Daemon.Backup && helpers.IsRegularFile(dest) {
		outcome.Backup = backup.Backup(dest)
	}

	written, applyErr := e.fetcher.Fetch(ctx, img.Link, dest)
	if applyErr != nil {
		outcome.ApplyErr = applyErr
		outcome.Result = Failed
		if !e.cfg.Daemon.Backup {
			e.record(outcome, models.StatusFailed)
			return outcome, fmt.Errorf("%w: %s: %w", ErrApplyFailed, img.Link, applyErr)
		}
		logger.WithError(applyErr).Warnf("Applying %s failed, restoring previous wallpaper", img.ID)
		var backupPath string
		if outcome.Backup.Available() {
			backupPath = outcome.Backup.Path
		}
		restored := backup.Restore(backupPath, dest)
		outcome.Restore = &restored
		if restored.Status == backup.Succeeded {
			outcome.Result = Restored
		}
	} else {
		outcome.Path = written
		outcome.Result = Applied
		logger.Infof("Wallpaper updated to %s (%q)", img.ID, img.Title)
	}

	if e.cfg.Daemon.UpdateHook != "" {
		if err := e.hooks.Run(ctx, e.cfg.Daemon.UpdateHook, e.cfg.Daemon.Env); err != nil {
			logger.WithError(err).Warn("Update hook failed")
			outcome.HookErr = err
		}
	}

	switch outcome.Result {
	case Applied:
		e.record(outcome, models.StatusApplied)
	case Restored:
		e.record(outcome, models.StatusRestored)
	default:
		e.record(outcome, models.StatusFailed)
	}
	return outcome, nil
}

// findCandidate searches up to Retries times, sleeping Slack seconds between
// attempts. Search errors count as empty results. Only a cancelled context
// is returned as an error.
func (e *Executor) findCandidate(ctx context.Context) (*models.Image, int, error) {
	d := e.cfg.Daemon
	slack := time.Duration(d.Slack) * time.Second
	searches := 0

	for attempt := 1; attempt <= d.Retries; attempt++ {
		if attempt > 1 {
			log.Debugf("Waiting %s before search attempt %d/%d", slack, attempt, d.Retries)
			if err := e.sleep(ctx, slack); err != nil {
				return nil, searches, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, searches, err
		}

		q, err := query.Build(e.cfg.Fetcher, e.rng)
		if err != nil {
			return nil, searches, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		searches++
		entries, err := e.gallery.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, searches, ctx.Err()
			}
			log.WithError(err).Warnf("Search attempt %d/%d failed", attempt, d.Retries)
			continue
		}
		if len(entries) == 0 {
			log.Infof("Search attempt %d/%d returned no results", attempt, d.Retries)
			continue
		}

		entries = e.skipApplied(entries)
		if img := selector.Select(ctx, entries, e.cfg.Fetcher, e.expandAlbum, e.rng); img != nil {
			return img, searches, nil
		}
		log.Infof("Search attempt %d/%d had no acceptable image", attempt, d.Retries)
	}
	return nil, searches, nil
}

// expandAlbum lists an album, reusing earlier listings. Failed lookups are not cached.
func (e *Executor) expandAlbum(ctx context.Context, albumID string) ([]models.Image, error) {
	images, ok := e.albums.Get(albumID)
	if !ok {
		var err error
		images, err = e.gallery.AlbumImages(ctx, albumID)
		if err != nil {
			return nil, err
		}
		e.albums.Add(albumID, images)
	}
	if !e.cfg.Daemon.SkipApplied || e.history == nil {
		return images, nil
	}
	kept := images[:0:0]
	for _, img := range images {
		if !e.history.HasImage(img.ID) {
			kept = append(kept, img)
		}
	}
	return kept, nil
}

// skipApplied drops images that were already used as wallpaper when SkipApplied is set.
func (e *Executor) skipApplied(entries []models.GalleryEntry) []models.GalleryEntry {
	if !e.cfg.Daemon.SkipApplied || e.history == nil {
		return entries
	}
	kept := make([]models.GalleryEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsAlbum && e.history.HasImage(entry.ID) {
			log.Debugf("Skipping %s, already applied before", entry.ID)
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// destination resolves the file to write: a directory target gets a file
// name from TargetPattern, and a missing extension comes from the link.
func (e *Executor) destination(img models.Image) (string, error) {
	pattern := e.cfg.Daemon.TargetPattern
	if pattern == "" {
		pattern = paths.DefaultTargetPattern
	}
	target, err := paths.TargetFile(e.cfg.Daemon.Target, pattern, img)
	if err != nil {
		return "", err
	}
	return downloader.FinalPath(target, img.Link), nil
}

func (e *Executor) record(o Outcome, status string) {
	if e.history == nil || o.Image == nil {
		return
	}
	entry := models.HistoryEntry{
		RunID:      o.RunID,
		ImageID:    o.Image.ID,
		Title:      o.Image.Title,
		Link:       o.Image.Link,
		Path:       o.Path,
		BackupPath: o.Backup.Path,
		Status:     status,
	}
	if o.ApplyErr != nil {
		entry.ErrorDetails = o.ApplyErr.Error()
	}
	if _, err := e.history.RecordUpdate(entry); err != nil {
		log.WithError(err).Warn("Could not record update history")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
