package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelsFirstPage(t *testing.T) {
	var got *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewEncoder(w).Encode(ChannelPage{
			Channels: []Channel{
				{ID: "ch1", Title: "morning show", Streamer: "ana", Viewers: 12, Live: true},
				{ID: "ch2", Title: "reruns", Streamer: "bo", Viewers: 0, Live: false},
			},
			NextCursor: "page2",
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "client-123")
	page, err := c.Channels(context.Background(), "", 20)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/api/channels", got.URL.Path)
	assert.Equal(t, "20", got.URL.Query().Get("limit"))
	assert.Empty(t, got.URL.Query().Get("cursor"), "first page sends no cursor")
	assert.Equal(t, "client-123", got.Header.Get("X-Pulsecast-Client"))

	require.Len(t, page.Channels, 2)
	assert.Equal(t, "ch1", page.Channels[0].ID)
	assert.True(t, page.Channels[0].Live)
	assert.True(t, page.HasMore())
	assert.Equal(t, "page2", page.NextCursor)
}

func TestChannelsFollowsCursor(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
		_ = json.NewEncoder(w).Encode(ChannelPage{
			Channels: []Channel{{ID: "ch3", Title: "late night", Streamer: "cy"}},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "client-123")
	page, err := c.Channels(context.Background(), "page2", 20)
	require.NoError(t, err)

	assert.False(t, page.HasMore(), "empty next cursor means the listing is exhausted")
	require.Len(t, page.Channels, 1)
	assert.Equal(t, "ch3", page.Channels[0].ID)
}

func TestChannelsServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "client-123")
	_, err := c.Channels(context.Background(), "", 20)
	assert.ErrorContains(t, err, "502")
}

func TestChannelsMalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "client-123")
	_, err := c.Channels(context.Background(), "", 20)
	assert.ErrorContains(t, err, "decode")
}
