// Package query turns the fetcher configuration into a gallery search string.
package query

import (
	"errors"
	"math/rand/v2"
	"strings"

	"go-bg-daemon/internal/models"

	log "github.com/sirupsen/logrus"
)

// ErrKeywordsRequired is returned when the keyword list is missing entirely.
// An empty list is valid.
var ErrKeywordsRequired = errors.New("keywords must be configured (an empty list is allowed)")

// maxKeywordTerms bounds how many shuffled keywords go into one query.
const maxKeywordTerms = 2

// Build derives a search query from cfg. Keyword terms come first, followed by
// at most one subreddit term. rng may be nil to use the global source.
func Build(cfg models.FetcherConfig, rng *rand.Rand) (string, error) {
	if cfg.Keywords == nil {
		return "", ErrKeywordsRequired
	}

	var terms []string

	if models.NormalizeMode(cfg.Mode) == models.ModeKeywords && len(cfg.Keywords) > 0 {
		keywords := append([]string(nil), cfg.Keywords...)
		shuffle(rng, keywords)
		n := 1 + intN(rng, maxKeywordTerms)
		if n > len(keywords) {
			n = len(keywords)
		}
		terms = append(terms, keywords[:n]...)
	}

	if cfg.Subreddits != nil {
		if len(cfg.Subreddits) == 0 {
			log.Debug("Subreddit list is empty, no subreddit term added")
		} else {
			terms = append(terms, cfg.Subreddits[intN(rng, len(cfg.Subreddits))])
		}
	}

	q := strings.Join(terms, " ")
	log.WithField("mode", models.NormalizeMode(cfg.Mode)).Debugf("Built query %q", q)
	return q, nil
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

func shuffle(rng *rand.Rand, s []string) {
	swap := func(i, j int) { s[i], s[j] = s[j], s[i] }
	if rng == nil {
		rand.Shuffle(len(s), swap)
		return
	}
	rng.Shuffle(len(s), swap)
}
