package models

import (
	"encoding/json"
	"time"
)

// Selection modes understood by the query builder and the selector.
const (
	ModeRecent   = "recent"
	ModeKeywords = "keywords"
)

// NormalizeMode maps anything other than "keywords" to "recent".
func NormalizeMode(mode string) string {
	if mode == ModeKeywords {
		return ModeKeywords
	}
	return ModeRecent
}

type (
	// Config holds the application's configuration settings.
	// It is built once by config.Initialize and treated as read-only afterwards.
	Config struct {
		Home                string        `toml:"Home" json:"Home"`
		DatabasePath        string        `toml:"DatabasePath" json:"DatabasePath"`
		LogLevel            string        `toml:"LogLevel" json:"LogLevel"`
		LogFormat           string        `toml:"LogFormat" json:"LogFormat"`
		LogFile             string        `toml:"LogFile" json:"LogFile"`
		Daemon              DaemonConfig  `toml:"Daemon" json:"Daemon"`
		Fetcher             FetcherConfig `toml:"Fetcher" json:"Fetcher"`
		APIClientTimeoutSec int           `toml:"ApiClientTimeoutSec" json:"ApiClientTimeoutSec"`
		LogApiRequests      bool          `toml:"LogApiRequests" json:"LogApiRequests"`
	}

	// DaemonConfig holds the scheduling and apply settings.
	DaemonConfig struct {
		// Strings
		Target        string `toml:"Target"`
		TargetPattern string `toml:"TargetPattern"`
		UpdateHook    string `toml:"UpdateHook"`
		EnvFile       string `toml:"EnvFile"` // dotenv file merged into the hook environment
		// Slices
		Env []string `toml:"Env"` // KEY=VALUE pairs merged into the hook environment
		// Integers
		Frequency int `toml:"Frequency"` // seconds between updates
		Retries   int `toml:"Retries"`
		Slack     int `toml:"Slack"` // seconds between retries
		// Bools
		Backup      bool `toml:"Backup"`
		SkipApplied bool `toml:"SkipApplied"`
	}

	// FetcherConfig holds the gallery query and selection settings.
	// Nil and empty slices mean different things, see query.Build and selector.Select.
	FetcherConfig struct {
		Mode           string   `toml:"Mode"`
		ClientID       string   `toml:"ClientID"`
		Keywords       []string `toml:"Keywords"`
		Subreddits     []string `toml:"Subreddits"`
		BlacklistWords []string `toml:"BlacklistWords"`
		MinWidth       int      `toml:"MinWidth"`
		MinHeight      int      `toml:"MinHeight"`
		MaxSize        int64    `toml:"MaxSize"` // bytes, 0 disables the limit
	}
)

// Image is a single gallery image.
type Image struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Size        int64   `json:"size"`
	Link        string  `json:"link"`
}

// GalleryEntry is either an image or an album, as reported by the gallery.
// Album entries only carry a meaningful ID; their images come from AlbumImages.
type GalleryEntry struct {
	Image
	IsAlbum bool `json:"is_album"`
}

// EntriesFromImages wraps plain images as non-album gallery entries.
func EntriesFromImages(images []Image) []GalleryEntry {
	entries := make([]GalleryEntry, 0, len(images))
	for _, img := range images {
		entries = append(entries, GalleryEntry{Image: img})
	}
	return entries
}

// Api Responses
type (
	// GalleryResponse is the envelope of gallery search results.
	GalleryResponse struct {
		Data    []GalleryEntry `json:"data"`
		Success bool           `json:"success"`
		Status  int            `json:"status"`
	}

	// AlbumImagesResponse is the envelope of an album's image list.
	AlbumImagesResponse struct {
		Data    []Image `json:"data"`
		Success bool    `json:"success"`
		Status  int     `json:"status"`
	}

	// ErrorResponse is what the gallery returns for failed calls.
	ErrorResponse struct {
		Data struct {
			Error  json.RawMessage `json:"error"`
			Method string          `json:"method"`
		} `json:"data"`
		Success bool `json:"success"`
		Status  int  `json:"status"`
	}
)

// History statuses.
const (
	StatusApplied  = "Applied"
	StatusRestored = "Restored"
	StatusFailed   = "Failed"
)

// HistoryEntry records one update attempt that reached the apply step.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"runId,omitempty"`
	ImageID      string    `json:"imageId"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	Path         string    `json:"path"`
	BackupPath   string    `json:"backupPath,omitempty"`
	Status       string    `json:"status"`
	ErrorDetails string    `json:"errorDetails,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
