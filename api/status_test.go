package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusSocketServer(t *testing.T, serve func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/status", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestStatusFeedDeliversUpdates(t *testing.T) {
	updates := []StatusUpdate{
		{ChannelID: "ch1", Viewers: 3, Live: true},
		{ChannelID: "ch2", Viewers: 0, Live: false},
		{ChannelID: "ch1", Viewers: 4, Live: true},
	}

	ts := statusSocketServer(t, func(conn *websocket.Conn) {
		for _, u := range updates {
			require.NoError(t, conn.WriteJSON(u))
		}
		// Keep the socket open until the client hangs up.
		_, _, _ = conn.ReadMessage()
	})

	feed, err := DialStatusFeed(context.Background(), ts.URL)
	require.NoError(t, err)
	defer feed.Close()

	assert.True(t, feed.Connected())
	for _, want := range updates {
		select {
		case got := <-feed.Updates():
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for status update")
		}
	}
}

func TestStatusFeedClosesOnServerHangup(t *testing.T) {
	ts := statusSocketServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteJSON(StatusUpdate{ChannelID: "ch1", Viewers: 1, Live: true}))
	})

	feed, err := DialStatusFeed(context.Background(), ts.URL)
	require.NoError(t, err)
	defer feed.Close()

	var sawClose bool
	deadline := time.After(5 * time.Second)
	for !sawClose {
		select {
		case _, ok := <-feed.Updates():
			if !ok {
				sawClose = true
			}
		case <-deadline:
			t.Fatal("updates channel never closed after server hangup")
		}
	}
	assert.False(t, feed.Connected())
}

func TestStatusFeedDialFailure(t *testing.T) {
	_, err := DialStatusFeed(context.Background(), "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestStatusFeedCloseIdempotent(t *testing.T) {
	ts := statusSocketServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	feed, err := DialStatusFeed(context.Background(), ts.URL)
	require.NoError(t, err)

	require.NoError(t, feed.Close())
	assert.NotPanics(t, func() { _ = feed.Close() })
}
