package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// StatusUpdate is one push from the directory's status socket.
type StatusUpdate struct {
	ChannelID string `json:"channelId"`
	Viewers   int    `json:"viewers"`
	Live      bool   `json:"live"`
}

// StatusFeed is a live subscription to viewer-count updates. Updates arrive
// on Updates until the socket dies, at which point the channel is closed and
// Connected reports false.
type StatusFeed struct {
	conn    *websocket.Conn
	updates chan StatusUpdate

	mu        sync.Mutex
	connected bool

	closeOnce sync.Once
}

// DialStatusFeed connects to the directory's status socket. baseURL is the
// plain HTTP base of the directory; the scheme is rewritten for websockets.
func DialStatusFeed(ctx context.Context, baseURL string) (*StatusFeed, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid directory URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/api/status"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect status feed: %w", err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, fmt.Errorf("status feed handshake returned status %d", resp.StatusCode)
	}

	f := &StatusFeed{
		conn:      conn,
		updates:   make(chan StatusUpdate, 16),
		connected: true,
	}
	go f.readLoop()
	return f, nil
}

func (f *StatusFeed) readLoop() {
	defer func() {
		f.mu.Lock()
		f.connected = false
		f.mu.Unlock()
		close(f.updates)
	}()

	for {
		var update StatusUpdate
		if err := f.conn.ReadJSON(&update); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("status feed closed unexpectedly", "error", err)
			}
			return
		}
		select {
		case f.updates <- update:
		default:
			// Viewer counts are snapshots; dropping a stale one is fine.
		}
	}
}

// Updates returns the update stream. Closed when the feed disconnects.
func (f *StatusFeed) Updates() <-chan StatusUpdate { return f.updates }

// Connected reports whether the socket is still open.
func (f *StatusFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Close shuts the feed down. Safe to call more than once.
func (f *StatusFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		err = f.conn.Close()
	})
	return err
}
