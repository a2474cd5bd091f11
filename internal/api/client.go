package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go-bg-daemon/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrRateLimited  = errors.New("API rate limit exceeded")
	ErrUnauthorized = errors.New("API request unauthorized (check client id)")
	ErrNotFound     = errors.New("API resource not found")
	ErrServerError  = errors.New("API server error")
	ErrBadResponse  = errors.New("API returned an unsuccessful response")
)

const ImgurApiBaseUrl = "https://api.imgur.com/3"

// DefaultClientID is the application id used when none is configured.
const DefaultClientID = "b0d705fbff41bc1"

// Client talks to the Imgur gallery API.
type Client struct {
	ClientID   string
	BaseURL    string
	HttpClient *http.Client
}

// NewClient creates a new API client
func NewClient(clientID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if clientID == "" {
		clientID = DefaultClientID
	}
	return &Client{
		ClientID:   clientID,
		BaseURL:    ImgurApiBaseUrl,
		HttpClient: httpClient,
	}
}

// SearchURL builds the gallery URL for query. An empty query falls back to
// the day's hot gallery, newest first.
func (c *Client) SearchURL(query string) string {
	if query == "" {
		return fmt.Sprintf("%s/gallery/hot/time/day/0", c.BaseURL)
	}
	values := url.Values{}
	values.Set("q", query)
	return fmt.Sprintf("%s/gallery/search/time/year/0?%s", c.BaseURL, values.Encode())
}

// Search runs a gallery search, newest first within the last year.
// A successful call with no matches returns an empty slice and no error.
func (c *Client) Search(ctx context.Context, query string) ([]models.GalleryEntry, error) {
	log.Infof("Querying gallery with %q", query)

	var response models.GalleryResponse
	if err := c.getJSON(ctx, c.SearchURL(query), &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, fmt.Errorf("%w: search status %d", ErrBadResponse, response.Status)
	}

	log.Debugf("Search %q returned %d entries", query, len(response.Data))
	return response.Data, nil
}

// AlbumImages lists the images of an album.
func (c *Client) AlbumImages(ctx context.Context, albumID string) ([]models.Image, error) {
	reqURL := fmt.Sprintf("%s/album/%s/images", c.BaseURL, url.PathEscape(albumID))

	var response models.AlbumImagesResponse
	if err := c.getJSON(ctx, reqURL, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, fmt.Errorf("%w: album %s status %d", ErrBadResponse, albumID, response.Status)
	}

	log.Debugf("Album %s has %d images", albumID, len(response.Data))
	return response.Data, nil
}

// getJSON performs one authenticated GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.WithError(err).Errorf("Error creating request for %s", reqURL)
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Client-ID "+c.ClientID)

	resp, err := c.HttpClient.Do(req) // Transport will log if enabled
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w (status code %d)", ErrServerError, resp.StatusCode)
	default:
		return fmt.Errorf("API request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("Error reading response body")
		return fmt.Errorf("error reading response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.WithError(err).Errorf("Error unmarshalling response JSON")
		log.Debugf("Response body causing unmarshal error: %s", string(body))
		return fmt.Errorf("error unmarshalling response JSON: %w", err)
	}
	return nil
}
