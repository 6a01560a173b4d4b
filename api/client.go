// Package api talks to the channel directory service: the listing endpoint
// the viewer pages through and the status feed carrying viewer counts.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const clientIDHeader = "X-Pulsecast-Client"

// Channel is one directory record.
type Channel struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Streamer string `json:"streamer"`
	Viewers  int    `json:"viewers"`
	Live     bool   `json:"live"`
}

// ChannelPage is one page of the ordered channel listing.
type ChannelPage struct {
	Channels   []Channel `json:"channels"`
	NextCursor string    `json:"nextCursor"`
}

// HasMore reports whether another page can be requested.
func (p *ChannelPage) HasMore() bool { return p.NextCursor != "" }

// clientIDInjector stamps every request with this client's identity.
type clientIDInjector struct {
	clientID string
	next     http.RoundTripper
}

func (t *clientIDInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(clientIDHeader, t.clientID)
	return t.next.RoundTrip(req)
}

// Client is a stateless HTTP client for the directory API.
type Client struct {
	HttpClient *http.Client
	baseURL    string
}

// NewClient creates a directory client rooted at baseURL, stamping requests
// with the given client ID.
func NewClient(baseURL, clientID string) *Client {
	transport := &clientIDInjector{
		clientID: clientID,
		next:     http.DefaultTransport,
	}

	return &Client{
		HttpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		baseURL: baseURL,
	}
}

// Channels fetches one page of the listing. An empty cursor requests the
// first page; the returned page carries the cursor for the next one.
func (c *Client) Channels(ctx context.Context, cursor string, limit int) (*ChannelPage, error) {
	u, err := url.Parse(c.baseURL + "/api/channels")
	if err != nil {
		return nil, fmt.Errorf("invalid directory URL: %w", err)
	}

	q := u.Query()
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create channels request: %w", err)
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel listing returned status %d", resp.StatusCode)
	}

	var page ChannelPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode channel listing: %w", err)
	}
	return &page, nil
}
