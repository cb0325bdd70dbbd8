package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tiagosilva/ecclesia/internal/client"
)

func TestCurrentLive(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "live", r.URL.Query().Get("eventType"))
		require.Equal(t, "UC123", r.URL.Query().Get("channelId"))
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":{"videoId":"abc123"},"snippet":{"title":"Sunday service"}}]}`))
	}))
	defer server.Close()

	c := NewClient(client.NewCachingHTTPClient(5*time.Minute), "test-key", WithBaseURL(server.URL))

	broadcast, found, err := c.CurrentLive(context.Background(), "UC123")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "abc123", broadcast.VideoID)
	require.Equal(t, "Sunday service", broadcast.Title)

	// A second lookup within the TTL is served from cache.
	_, _, err = c.CurrentLive(context.Background(), "UC123")
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())
}

func TestCurrentLiveNotStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	c := NewClient(http.DefaultClient, "test-key", WithBaseURL(server.URL))

	broadcast, found, err := c.CurrentLive(context.Background(), "UC123")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, broadcast)
}

func TestCurrentLiveUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(http.DefaultClient, "test-key", WithBaseURL(server.URL))

	_, _, err := c.CurrentLive(context.Background(), "UC123")
	require.Error(t, err)
}
