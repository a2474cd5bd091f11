package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go-bg-daemon/internal/api"
	"go-bg-daemon/internal/database"
	"go-bg-daemon/internal/downloader"
	"go-bg-daemon/internal/models"
	"go-bg-daemon/internal/updater"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
)

// pipeline bundles the collaborators of one update run.
type pipeline struct {
	executor *updater.Executor
	db       *database.DB
	progress *uilive.Writer
}

func newPipeline(cfg models.Config, transport http.RoundTripper, showProgress bool) *pipeline {
	p := &pipeline{}

	apiClient := api.NewClient(cfg.Fetcher.ClientID, &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.APIClientTimeoutSec) * time.Second,
	})

	dlOpts := []downloader.Option{downloader.WithMaxSize(cfg.Fetcher.MaxSize)}
	if showProgress {
		p.progress = uilive.New()
		p.progress.Start()
		dlOpts = append(dlOpts, downloader.WithProgress(p.progress))
	}
	// image downloads do not go through the API logging transport
	fetcher := downloader.NewDownloader(nil, dlOpts...)

	opts := []updater.Option{}
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Warn("History database unavailable, continuing without history")
	} else {
		p.db = db
		opts = append(opts, updater.WithHistory(db))
	}

	p.executor = updater.New(cfg, apiClient, fetcher, opts...)
	return p
}

func (p *pipeline) Close() {
	if p.progress != nil {
		p.progress.Stop()
	}
	if p.db != nil {
		_ = p.db.Close()
	}
}

// reportOutcome prints a one-line summary of an update.
func reportOutcome(w io.Writer, o updater.Outcome) {
	switch o.Result {
	case updater.Applied:
		fmt.Fprintf(w, "Wallpaper updated: %s (%q) -> %s\n", o.Image.ID, o.Image.Title, o.Path)
	case updater.Restored:
		fmt.Fprintf(w, "Could not apply %s, previous wallpaper restored: %v\n", o.Image.ID, o.ApplyErr)
	case updater.Failed:
		fmt.Fprintf(w, "Could not apply %s and no backup was restored: %v\n", o.Image.ID, o.ApplyErr)
	default:
		fmt.Fprintf(w, "No suitable image found after %d searches, wallpaper unchanged\n", o.Searches)
	}
	if o.HookErr != nil {
		fmt.Fprintf(w, "Update hook failed: %v\n", o.HookErr)
	}
}
