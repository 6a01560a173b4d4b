package viewer

import (
	"github.com/pulsecast/pulsecast/api"
	appevents "github.com/pulsecast/pulsecast/internal/app_events"
)

// --- App Events (from TUI to App) ---

// LoadMoreMsg asks the controller for the next page of the channel listing.
// The TUI sends it when the selection reaches the second-to-last row.
type LoadMoreMsg struct {
	appevents.Event
}

// RefreshMsg asks the controller to reload the listing from the first page.
type RefreshMsg struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = (*LoadMoreMsg)(nil)
	_ appevents.AppEvent = (*RefreshMsg)(nil)
)

// --- UI Messages (from App to TUI) ---

// ChannelsMsg replaces the carousel contents with the accumulated listing.
type ChannelsMsg struct {
	Channels []api.Channel
	HasMore  bool
}

// ViewerCountMsg updates one channel's viewer-count badge.
type ViewerCountMsg struct {
	ChannelID string
	Viewers   int
	Live      bool
}

// FeedStateMsg reports the status socket opening or closing.
type FeedStateMsg struct {
	Connected bool
}
