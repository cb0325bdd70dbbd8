// Package bible fetches scripture passages for reading announcements.
package bible

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const defaultBaseURL = "https://bible-api.com"

// Passage is a scripture text resolved from a reference like "John 3:16".
type Passage struct {
	Reference   string `json:"reference"`
	Text        string `json:"text"`
	Translation string `json:"translation_name"`
}

// Client calls the passage lookup API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a passage client. httpClient should be the shared
// caching client; passages are immutable so every hit after the first is
// free.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Passage resolves a scripture reference to its text.
func (c *Client) Passage(ctx context.Context, ref string) (*Passage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bible: passage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("bible: unknown reference %q", ref)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bible: passage lookup returned status %d", resp.StatusCode)
	}

	var passage Passage
	if err := json.NewDecoder(resp.Body).Decode(&passage); err != nil {
		return nil, fmt.Errorf("bible: failed to decode passage: %w", err)
	}
	return &passage, nil
}
