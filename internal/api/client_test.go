package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(server *httptest.Server) *Client {
	c := NewClient("test-id", server.Client())
	c.BaseURL = server.URL
	return c
}

// TestNewClient tests the API client creation
func TestNewClient(t *testing.T) {
	client := NewClient("", nil)

	assert.Equal(t, DefaultClientID, client.ClientID)
	assert.Equal(t, ImgurApiBaseUrl, client.BaseURL)
	require.NotNil(t, client.HttpClient)
	assert.Equal(t, 30*time.Second, client.HttpClient.Timeout)
}

func TestSearchURL(t *testing.T) {
	c := NewClient("id", nil)
	assert.Equal(t, ImgurApiBaseUrl+"/gallery/search/time/year/0?q=autumn+earthporn", c.SearchURL("autumn earthporn"))
	assert.Equal(t, ImgurApiBaseUrl+"/gallery/hot/time/day/0", c.SearchURL(""))
}

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gallery/search/time/year/0", r.URL.Path)
		assert.Equal(t, "autumn", r.URL.Query().Get("q"))
		assert.Equal(t, "Client-ID test-id", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"status":200,"data":[
			{"id":"img1","title":"Red leaves","description":null,"width":2560,"height":1440,"size":1234,"link":"https://i.imgur.com/img1.jpg","is_album":false},
			{"id":"alb1","title":"Autumn album","description":"lots of trees","is_album":true}
		]}`))
	}))
	defer server.Close()

	entries, err := newTestClient(server).Search(context.Background(), "autumn")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "img1", entries[0].ID)
	assert.False(t, entries[0].IsAlbum)
	assert.Nil(t, entries[0].Description)
	assert.Equal(t, 2560, entries[0].Width)
	assert.Equal(t, int64(1234), entries[0].Size)

	assert.True(t, entries[1].IsAlbum)
	require.NotNil(t, entries[1].Description)
	assert.Equal(t, "lots of trees", *entries[1].Description)
}

func TestSearch_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"status":200,"data":[]}`))
	}))
	defer server.Close()

	entries, err := newTestClient(server).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSearch_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: ErrRateLimited},
		{name: "unauthorized", status: http.StatusForbidden, want: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "server error", status: http.StatusBadGateway, want: ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestClient(server).Search(context.Background(), "q")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSearch_UnsuccessfulEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"status":400,"data":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestSearch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unmarshalling"))
}

func TestAlbumImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/album/abc/images", r.URL.Path)
		w.Write([]byte(`{"success":true,"status":200,"data":[
			{"id":"in1","title":"","description":null,"width":3840,"height":2160,"link":"https://i.imgur.com/in1.png"}
		]}`))
	}))
	defer server.Close()

	images, err := newTestClient(server).AlbumImages(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "in1", images[0].ID)
	assert.Equal(t, 3840, images[0].Width)
}

func TestLoggingTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"status":200,"data":[]}`))
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "api.log")
	transport, err := NewLoggingTransport(nil, logPath)
	require.NoError(t, err)

	c := NewClient("test-id", &http.Client{Transport: transport})
	c.BaseURL = server.URL

	entries, err := c.Search(context.Background(), "lake")
	require.NoError(t, err, "body must still be readable after logging")
	assert.Empty(t, entries)
	require.NoError(t, transport.Close())

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "--- Request")
	assert.Contains(t, string(logged), "q=lake")
	assert.Contains(t, string(logged), `"success":true`)
}
