// Package youtube looks up the channel's current live broadcast. Responses
// are cached by the HTTP client so the UI can poll without burning API
// quota.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Broadcast is a live video currently streaming on the channel.
type Broadcast struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
}

// Client calls the YouTube Data API.
type Client struct {
	httpClient *http.Client
	apiKey     string
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

// WithTokenSource authenticates requests with OAuth instead of an API key.
func WithTokenSource(source oauth2.TokenSource) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{
			Transport: &oauth2.Transport{
				Source: source,
				Base:   c.httpClient.Transport,
			},
		}
	}
}

// NewClient creates a YouTube client. httpClient should be the shared
// caching client so repeated lookups within the cache TTL stay local.
func NewClient(httpClient *http.Client, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// CurrentLive returns the channel's active live broadcast. found is false
// when the channel is not streaming.
func (c *Client) CurrentLive(ctx context.Context, channelID string) (*Broadcast, bool, error) {
	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("channelId", channelID)
	query.Set("eventType", "live")
	query.Set("type", "video")
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("youtube: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("youtube: search returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("youtube: failed to decode search response: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, false, nil
	}

	return &Broadcast{
		VideoID: result.Items[0].ID.VideoID,
		Title:   result.Items[0].Snippet.Title,
	}, true, nil
}
