// Package viewer is the application controller for channel browsing: it
// pages through the directory listing and relays viewer-count updates.
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pulsecast/pulsecast/api"
	appevents "github.com/pulsecast/pulsecast/internal/app_events"
	viewevents "github.com/pulsecast/pulsecast/internal/app_events/viewer"
)

const (
	pageSize         = 20
	feedRedialPeriod = 5 * time.Second
)

// App drives the channel carousel: paging, load-more, and the status feed.
type App struct {
	baseURL   string
	apiClient *api.Client

	uiMessages chan tea.Msg
	appEvents  chan appevents.AppEvent

	// listing state, owned by the event loop goroutine
	channels []api.Channel
	cursor   string
	hasMore  bool
}

// NewApp creates a viewer controller for the directory at baseURL.
func NewApp(baseURL string) *App {
	return &App{
		baseURL:    baseURL,
		apiClient:  api.NewClient(baseURL, uuid.NewString()),
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

// Run loads the first page and then serves load-more requests and status
// updates until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runEventLoop(ctx)
	})

	g.Go(func() error {
		return a.runStatusFeed(ctx)
	})

	return g.Wait()
}

func (a *App) runEventLoop(ctx context.Context) error {
	a.loadPage(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-a.appEvents:
			switch event.(type) {
			case viewevents.LoadMoreMsg:
				a.loadPage(ctx, false)
			case viewevents.RefreshMsg:
				a.loadPage(ctx, true)
			}
		}
	}
}

// loadPage fetches the next page (or the first, on reset) and republishes
// the accumulated listing.
func (a *App) loadPage(ctx context.Context, reset bool) {
	if reset {
		a.channels = nil
		a.cursor = ""
		a.hasMore = false
	} else if !a.hasMore {
		return
	}

	page, err := a.apiClient.Channels(ctx, a.cursor, pageSize)
	if err != nil {
		a.sendAndLogError("Failed to load channel listing", err)
		return
	}

	a.channels = append(a.channels, page.Channels...)
	a.cursor = page.NextCursor
	a.hasMore = page.HasMore()

	a.uiMessages <- viewevents.ChannelsMsg{
		Channels: append([]api.Channel(nil), a.channels...),
		HasMore:  a.hasMore,
	}
}

// runStatusFeed keeps a status subscription alive, redialing when it drops.
func (a *App) runStatusFeed(ctx context.Context) error {
	for {
		feed, err := api.DialStatusFeed(ctx, a.baseURL)
		if err != nil {
			slog.Warn("status feed unavailable", "error", err)
		} else {
			a.uiMessages <- viewevents.FeedStateMsg{Connected: true}
			a.pumpStatusFeed(ctx, feed)
			a.uiMessages <- viewevents.FeedStateMsg{Connected: false}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(feedRedialPeriod):
		}
	}
}

func (a *App) pumpStatusFeed(ctx context.Context, feed *api.StatusFeed) {
	defer feed.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-feed.Updates():
			if !ok {
				return
			}
			a.uiMessages <- viewevents.ViewerCountMsg{
				ChannelID: update.ChannelID,
				Viewers:   update.Viewers,
				Live:      update.Live,
			}
		}
	}
}

// sendAndLogError both logs an error and sends it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.uiMessages <- appevents.Error{Err: fmt.Errorf("%s: %w", baseMessage, err)}
}
