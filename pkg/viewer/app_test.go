package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecast/pulsecast/api"
	appevents "github.com/pulsecast/pulsecast/internal/app_events"
	viewevents "github.com/pulsecast/pulsecast/internal/app_events/viewer"
)

// pagedDirectory serves a fixed listing split into pages of the requested
// size, keyed by opaque cursors.
func pagedDirectory(t *testing.T, channels []api.Channel) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/channels", r.URL.Path)

		start := 0
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			var err error
			start, err = strconv.Atoi(cursor)
			require.NoError(t, err)
		}
		limit := pageSize
		end := start + limit
		if end > len(channels) {
			end = len(channels)
		}

		page := api.ChannelPage{Channels: channels[start:end]}
		if end < len(channels) {
			page.NextCursor = strconv.Itoa(end)
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func drainMsg(t *testing.T, a *App) tea.Msg {
	t.Helper()
	select {
	case msg := <-a.UIMessages():
		return msg
	default:
		t.Fatal("expected a UI message")
		return nil
	}
}

func makeChannels(n int) []api.Channel {
	out := make([]api.Channel, n)
	for i := range out {
		out[i] = api.Channel{ID: strconv.Itoa(i), Title: "channel", Streamer: "someone"}
	}
	return out
}

func TestLoadPageFirstPage(t *testing.T) {
	ts := pagedDirectory(t, makeChannels(pageSize+5))
	a := NewApp(ts.URL)

	a.loadPage(context.Background(), true)

	msg, ok := drainMsg(t, a).(viewevents.ChannelsMsg)
	require.True(t, ok)
	assert.Len(t, msg.Channels, pageSize)
	assert.True(t, msg.HasMore)
}

func TestLoadPageAccumulates(t *testing.T) {
	ts := pagedDirectory(t, makeChannels(pageSize+5))
	a := NewApp(ts.URL)

	a.loadPage(context.Background(), true)
	<-a.UIMessages()
	a.loadPage(context.Background(), false)

	msg, ok := drainMsg(t, a).(viewevents.ChannelsMsg)
	require.True(t, ok)
	assert.Len(t, msg.Channels, pageSize+5, "load-more appends to the listing")
	assert.False(t, msg.HasMore)

	// Exhausted listing: a further load-more is a no-op.
	a.loadPage(context.Background(), false)
	select {
	case msg := <-a.UIMessages():
		t.Fatalf("no message expected after exhausted listing, got %T", msg)
	default:
	}
}

func TestLoadPageResetStartsOver(t *testing.T) {
	ts := pagedDirectory(t, makeChannels(pageSize+5))
	a := NewApp(ts.URL)

	a.loadPage(context.Background(), true)
	<-a.UIMessages()
	a.loadPage(context.Background(), false)
	<-a.UIMessages()

	a.loadPage(context.Background(), true)
	msg, ok := drainMsg(t, a).(viewevents.ChannelsMsg)
	require.True(t, ok)
	assert.Len(t, msg.Channels, pageSize, "refresh discards the accumulated listing")
	assert.True(t, msg.HasMore)
}

func TestLoadPageErrorReachesUI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	a := NewApp(ts.URL)
	a.loadPage(context.Background(), true)

	msg, ok := drainMsg(t, a).(appevents.Error)
	require.True(t, ok)
	assert.Error(t, msg.Err)
}
