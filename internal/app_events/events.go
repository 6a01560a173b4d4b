package appevents

// AppEvent is a marker interface for events sent from the TUI to an app
// controller. The unexported method ensures only types embedding Event can
// satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded by concrete event types to satisfy AppEvent.
type Event struct{}

func (Event) isAppEvent() {}

// Error is a message carrying a controller failure to the TUI.
type Error struct {
	Err error
}
