// Package selector picks one acceptable image out of a gallery search result.
package selector

import (
	"context"
	"math/rand/v2"
	"strings"

	"go-bg-daemon/internal/helpers"
	"go-bg-daemon/internal/models"

	log "github.com/sirupsen/logrus"
)

// MaxAttempts bounds the number of picks made for one selection, counted
// across every album expanded along the way.
const MaxAttempts = 30

// AlbumExpander resolves an album id to its images.
type AlbumExpander func(ctx context.Context, albumID string) ([]models.Image, error)

// Select runs rejection sampling over entries and returns the elected image,
// or nil when nothing qualifies within MaxAttempts picks.
//
// In keywords mode picks are uniform and entries are not consumed; in recent
// mode entries are taken in order. Album picks cost one attempt and are then
// searched recursively with the same budget. entries is never modified.
func Select(ctx context.Context, entries []models.GalleryEntry, cfg models.FetcherConfig, expand AlbumExpander, rng *rand.Rand) *models.Image {
	s := &selection{
		cfg:    cfg,
		mode:   models.NormalizeMode(cfg.Mode),
		expand: expand,
		rng:    rng,
	}
	img := s.from(ctx, entries, 0)
	if img == nil {
		log.Debugf("No image elected after %d attempts", s.attempts)
		return nil
	}
	log.WithField("attempts", s.attempts).Infof("Selected image %s (%q, %dx%d)", img.ID, img.Title, img.Width, img.Height)
	return img
}

// selection carries the attempt budget through album recursion.
type selection struct {
	cfg      models.FetcherConfig
	mode     string
	expand   AlbumExpander
	rng      *rand.Rand
	attempts int
}

func (s *selection) exhausted() bool {
	return s.attempts > MaxAttempts
}

func (s *selection) from(ctx context.Context, entries []models.GalleryEntry, depth int) *models.Image {
	next := 0
	for {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Debug("Selection cancelled")
			return nil
		}

		var pick models.GalleryEntry
		if s.mode == models.ModeKeywords {
			if len(entries) == 0 {
				return nil
			}
			pick = entries[s.intN(len(entries))]
		} else {
			if next >= len(entries) {
				return nil
			}
			pick = entries[next]
			next++
		}

		s.attempts++
		if s.exhausted() {
			log.Debugf("Giving up after %d attempts", MaxAttempts)
			return nil
		}

		if pick.IsAlbum {
			if img := s.fromAlbum(ctx, pick.ID, depth); img != nil {
				return img
			}
			continue
		}

		if s.accept(pick.Image) {
			img := pick.Image
			return &img
		}
	}
}

func (s *selection) fromAlbum(ctx context.Context, albumID string, depth int) *models.Image {
	if s.expand == nil {
		log.Debugf("Skipping album %s, no album lookup available", albumID)
		return nil
	}
	images, err := s.expand(ctx, albumID)
	if err != nil {
		log.WithError(err).Warnf("Could not expand album %s", albumID)
		return nil
	}
	if len(images) == 0 {
		log.Debugf("Album %s has no images", albumID)
		return nil
	}
	log.Debugf("Searching %d images of album %s (depth %d)", len(images), albumID, depth+1)
	return s.from(ctx, models.EntriesFromImages(images), depth+1)
}

func (s *selection) accept(img models.Image) bool {
	if img.Width < s.cfg.MinWidth {
		log.Debugf("Rejecting %s due to width %d < %d", img.ID, img.Width, s.cfg.MinWidth)
		return false
	}
	if img.Height < s.cfg.MinHeight {
		log.Debugf("Rejecting %s due to height %d < %d", img.ID, img.Height, s.cfg.MinHeight)
		return false
	}
	if s.cfg.BlacklistWords != nil {
		if word, hit := blacklisted(img.Title, s.cfg.BlacklistWords); hit {
			log.Debugf("Rejecting %s due to blacklisted word %q in title", img.ID, word)
			return false
		}
		if img.Description != nil {
			if word, hit := blacklisted(*img.Description, s.cfg.BlacklistWords); hit {
				log.Debugf("Rejecting %s due to blacklisted word %q in description", img.ID, word)
				return false
			}
		}
	}
	return true
}

// blacklisted matches whole whitespace-separated tokens, ignoring case.
func blacklisted(text string, words []string) (string, bool) {
	for _, token := range strings.Fields(text) {
		if helpers.StringSliceContains(words, token) {
			return token, true
		}
	}
	return "", false
}

func (s *selection) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	return s.rng.IntN(n)
}
