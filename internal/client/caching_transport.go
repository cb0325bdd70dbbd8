package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
)

// ttlTransport stamps a max-age on every response so the cache honors a
// fixed TTL even when the upstream sends no cache headers.
type ttlTransport struct {
	base   http.RoundTripper
	maxAge time.Duration
}

func (t *ttlTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK {
		resp.Header.Set("Cache-Control", fmt.Sprintf("max-age=%d", int(t.maxAge.Seconds())))
	}
	return resp, nil
}

// NewCachingHTTPClient creates an HTTP client that caches successful
// responses in memory for the given TTL. External lookups the UI polls
// frequently cost one upstream call per TTL window.
func NewCachingHTTPClient(ttl time.Duration) *http.Client {
	transport := httpcache.NewTransport(httpcache.NewMemoryCache())
	transport.Transport = &ttlTransport{maxAge: ttl}

	return &http.Client{Transport: transport}
}
