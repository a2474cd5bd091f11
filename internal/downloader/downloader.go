package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go-bg-daemon/internal/helpers"

	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrFileSystem  = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
	ErrTooLarge    = errors.New("image exceeds configured maximum size")
)

// Downloader fetches candidate images and writes them over the target.
type Downloader struct {
	client   *http.Client
	maxSize  int64
	progress io.Writer
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithMaxSize aborts downloads larger than n bytes. Zero or less disables the check.
func WithMaxSize(n int64) Option {
	return func(d *Downloader) { d.maxSize = n }
}

// WithProgress writes a progress line to w as bytes arrive.
func WithProgress(w io.Writer) Option {
	return func(d *Downloader) { d.progress = w }
}

// NewDownloader creates a new Downloader instance.
func NewDownloader(client *http.Client, opts ...Option) *Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: 5 * time.Minute,
		}
	}
	d := &Downloader{client: client}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FinalPath appends the extension of link to target when target has none.
func FinalPath(target, link string) string {
	if filepath.Ext(target) != "" {
		return target
	}
	return target + helpers.ExtensionFromLink(link)
}

// Fetch downloads link and replaces the file at target with it.
// The body is written to a temporary file next to target and renamed into
// place only once complete, so a failed fetch leaves target untouched.
// It returns the path actually written.
func (d *Downloader) Fetch(ctx context.Context, link, target string) (string, error) {
	if link == "" {
		return "", fmt.Errorf("%w: empty image link", ErrHttpRequest)
	}
	if target == "" {
		return "", fmt.Errorf("%w: empty target path", ErrFileSystem)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request for %s: %w", ErrHttpRequest, link, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.WithError(err).Errorf("Error performing download request from %s", link)
		return "", fmt.Errorf("%w: performing request for %s: %w", ErrHttpRequest, link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("Error downloading image: received status code %d from %s", resp.StatusCode, link)
		return "", fmt.Errorf("%w: received status %d from %s", ErrHttpStatus, resp.StatusCode, link)
	}

	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return "", fmt.Errorf("%w: %s > %s", ErrTooLarge, helpers.BytesToSize(uint64(resp.ContentLength)), helpers.BytesToSize(uint64(d.maxSize)))
	}

	finalPath := FinalPath(target, link)
	if filepath.Ext(finalPath) == "" {
		if ext, ok := helpers.GetExtensionFromMimeType(resp.Header.Get("Content-Type")); ok {
			finalPath += ext
		}
	}

	targetDir := filepath.Dir(finalPath)
	if !helpers.CheckAndMakeDir(targetDir) {
		return "", fmt.Errorf("%w: failed to create target directory %s", ErrFileSystem, targetDir)
	}

	tempFile, err := os.CreateTemp(targetDir, filepath.Base(finalPath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: creating temporary file for %s: %w", ErrFileSystem, finalPath, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			log.Debugf("Cleaning up temporary file via defer: %s", tempFile.Name())
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s during defer cleanup", tempFile.Name())
			}
		}
	}()

	if err := d.writeBody(resp, tempFile, finalPath); err != nil {
		return "", err
	}

	if err := os.Rename(tempFile.Name(), finalPath); err != nil {
		return "", fmt.Errorf("%w: renaming temporary file %s to %s: %w", ErrFileSystem, tempFile.Name(), finalPath, err)
	}
	shouldCleanupTemp = false

	log.Infof("Saved %s to %s", link, finalPath)
	return finalPath, nil
}

// writeBody streams the response into tempFile and always closes it.
func (d *Downloader) writeBody(resp *http.Response, tempFile *os.File, finalPath string) error {
	counter := &helpers.CounterWriter{Writer: tempFile}
	if d.progress != nil {
		name := filepath.Base(finalPath)
		var size string
		if resp.ContentLength > 0 {
			size = helpers.BytesToSize(uint64(resp.ContentLength))
		}
		counter.Progress = func(total uint64) {
			if size != "" {
				fmt.Fprintf(d.progress, "Downloading %s: %s / %s\n", name, helpers.BytesToSize(total), size)
			} else {
				fmt.Fprintf(d.progress, "Downloading %s: %s\n", name, helpers.BytesToSize(total))
			}
		}
	}

	var body io.Reader = resp.Body
	if d.maxSize > 0 {
		body = io.LimitReader(resp.Body, d.maxSize+1)
	}

	_, err := io.Copy(counter, body)
	if err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("%w: writing to temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if d.maxSize > 0 && int64(counter.Total) > d.maxSize {
		return fmt.Errorf("%w: more than %s received", ErrTooLarge, helpers.BytesToSize(uint64(d.maxSize)))
	}

	log.Debugf("Finished writing %s (%s)", tempFile.Name(), helpers.BytesToSize(counter.Total))
	return nil
}
