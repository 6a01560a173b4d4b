package publisher

import (
	appevents "github.com/pulsecast/pulsecast/internal/app_events"
	"github.com/pulsecast/pulsecast/pkg/whip"

	"github.com/pulsecast/pulsecast/pkg/media"
)

// --- App Events (from TUI to App) ---

// StopPublishMsg is sent when the user asks to end the stream.
type StopPublishMsg struct {
	appevents.Event
}

var _ appevents.AppEvent = (*StopPublishMsg)(nil)

// --- UI Messages (from App to TUI) ---

// StateMsg reports a session lifecycle transition.
type StateMsg struct {
	State whip.State
}

// ScreenLiveMsg reports the screen share turning live or going away.
type ScreenLiveMsg struct {
	Live bool
}

// AudioLevelMsg carries a measured microphone level (0..1).
type AudioLevelMsg struct {
	Level float64
}

// StreamStoppedMsg reports that the local stream has been torn down.
type StreamStoppedMsg struct {
	Source media.SourceKind
}

// PublishEndedMsg reports that the session reached its terminal state.
type PublishEndedMsg struct {
	Err error
}
