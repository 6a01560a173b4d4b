// Package publisher is the application controller for publishing: it owns
// the whip client and bridges its events to the TUI.
package publisher

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	appevents "github.com/pulsecast/pulsecast/internal/app_events"
	pubevents "github.com/pulsecast/pulsecast/internal/app_events/publisher"
	"github.com/pulsecast/pulsecast/pkg/media"
	"github.com/pulsecast/pulsecast/pkg/whip"
)

// Config carries the publish command's settings into the controller.
type Config struct {
	Endpoint      string
	Source        media.SourceKind
	GatherTimeout time.Duration
	HTTPClient    *http.Client

	// Acquirer overrides device capture, used by tests.
	Acquirer media.Acquirer
}

// App drives one publishing session.
type App struct {
	cfg        Config
	uiMessages chan tea.Msg
	appEvents  chan appevents.AppEvent
}

// NewApp creates a publisher controller.
func NewApp(cfg Config) *App {
	return &App{
		cfg:        cfg,
		uiMessages: make(chan tea.Msg, 16),
		appEvents:  make(chan appevents.AppEvent),
	}
}

// UIMessages returns the channel the TUI listens on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run starts the session and blocks until it ends or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	client, err := whip.New(whip.Config{
		Endpoint:      a.cfg.Endpoint,
		Source:        a.cfg.Source,
		Acquirer:      a.cfg.Acquirer,
		HTTPClient:    a.cfg.HTTPClient,
		GatherTimeout: a.cfg.GatherTimeout,
		OnStateChange: func(s whip.State) {
			a.post(pubevents.StateMsg{State: s})
		},
		OnScreenLive: func(live bool) {
			a.post(pubevents.ScreenLiveMsg{Live: live})
		},
		OnStreamStopped: func(kind media.SourceKind) {
			a.post(pubevents.StreamStoppedMsg{Source: kind})
		},
		OnAudioLevel: func(level float64) {
			// Levels are high-rate snapshots; drop rather than stall.
			select {
			case a.uiMessages <- pubevents.AudioLevelMsg{Level: level}:
			default:
			}
		},
	})
	if err != nil {
		a.post(appevents.Error{Err: err})
		return err
	}

	if err := client.Start(ctx); err != nil {
		a.post(appevents.Error{Err: err})
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-ctx.Done():
			client.DisconnectStream()
			return nil
		case <-client.Done():
			a.post(pubevents.PublishEndedMsg{Err: client.Err()})
			return client.Err()
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-client.Done():
				return nil
			case event := <-a.appEvents:
				switch event.(type) {
				case pubevents.StopPublishMsg:
					slog.Info("stop requested from UI")
					client.DisconnectStream()
				}
			}
		}
	})

	return g.Wait()
}

func (a *App) post(msg tea.Msg) {
	a.uiMessages <- msg
}
