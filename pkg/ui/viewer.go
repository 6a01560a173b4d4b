package ui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/pulsecast/pulsecast/api"
	appevents "github.com/pulsecast/pulsecast/internal/app_events"
	viewevents "github.com/pulsecast/pulsecast/internal/app_events/viewer"
	"github.com/pulsecast/pulsecast/internal/style"
	viewerApp "github.com/pulsecast/pulsecast/pkg/viewer"
)

const titleWidth = 28

type viewerModel struct {
	app *viewerApp.App

	spinner  spinner.Model
	table    table.Model
	channels []api.Channel
	hasMore  bool

	// requestedAt remembers the listing length when load-more last fired,
	// so each page is requested once.
	requestedAt int

	feedConnected bool
	err           error
}

var viewerColumns = []table.Column{
	{Title: "", Width: 9},
	{Title: "Title", Width: titleWidth},
	{Title: "Streamer", Width: 16},
	{Title: "Viewers", Width: 8},
}

func initViewerModel(app *viewerApp.App) viewerModel {
	t := table.New(
		table.WithColumns(viewerColumns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	return viewerModel{
		app:         app,
		spinner:     style.NewSpinner(),
		table:       t,
		requestedAt: -1,
	}
}

// listenForViewerMessages waits for the next controller update.
func (m *model) listenForViewerMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.viewer.app.UIMessages()
	}
}

func (m *model) initViewer() tea.Cmd {
	return tea.Batch(m.viewer.spinner.Tick, m.listenForViewerMessages())
}

func (m *model) updateViewer(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewevents.ChannelsMsg:
		m.viewer.channels = msg.Channels
		m.viewer.hasMore = msg.HasMore
		m.refreshChannelTable()
		return m, m.listenForViewerMessages()
	case viewevents.ViewerCountMsg:
		for i := range m.viewer.channels {
			if m.viewer.channels[i].ID == msg.ChannelID {
				m.viewer.channels[i].Viewers = msg.Viewers
				m.viewer.channels[i].Live = msg.Live
			}
		}
		m.refreshChannelTable()
		return m, m.listenForViewerMessages()
	case viewevents.FeedStateMsg:
		m.viewer.feedConnected = msg.Connected
		return m, m.listenForViewerMessages()
	case appevents.Error:
		m.viewer.err = msg.Err
		return m, m.listenForViewerMessages()

	case tea.KeyMsg:
		if msg.String() == "r" {
			m.viewer.app.AppEvents() <- viewevents.RefreshMsg{}
			m.viewer.requestedAt = -1
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewer.table, cmd = m.viewer.table.Update(msg)
	m.maybeLoadMore()

	var spinCmd tea.Cmd
	m.viewer.spinner, spinCmd = m.viewer.spinner.Update(msg)
	return m, tea.Batch(cmd, spinCmd)
}

// maybeLoadMore requests the next page when the selection reaches the
// second-to-last row, once per page.
func (m *model) maybeLoadMore() {
	v := &m.viewer
	if !v.hasMore || len(v.channels) < 2 {
		return
	}
	if v.table.Cursor() < len(v.channels)-2 {
		return
	}
	if v.requestedAt == len(v.channels) {
		return
	}
	v.requestedAt = len(v.channels)
	v.app.AppEvents() <- viewevents.LoadMoreMsg{}
}

func (m *model) refreshChannelTable() {
	rows := make([]table.Row, 0, len(m.viewer.channels))
	for _, ch := range m.viewer.channels {
		badge := style.OfflineBadge.Render("off")
		if ch.Live {
			badge = style.LiveBadge.Render("LIVE")
		}
		rows = append(rows, table.Row{
			badge,
			runewidth.Truncate(ch.Title, titleWidth, "…"),
			ch.Streamer,
			style.ViewerCount.Render(strconv.Itoa(ch.Viewers)),
		})
	}
	m.viewer.table.SetRows(rows)
	m.viewer.table.SetHeight(len(rows) + 1)
}

func (m *model) viewerView() string {
	v := m.viewer

	if v.err != nil {
		return style.ErrorStyle.Render("Error: "+v.err.Error()) + "\n"
	}

	s := style.TitleStyle.Render("pulsecast channels") + "\n\n"

	if len(v.channels) == 0 {
		s += v.spinner.View() + " Loading channels...\n"
		return s
	}

	s += style.BaseStyle.Render(v.table.View()) + "\n"

	feed := style.FeedClosed.Render("status feed: closed")
	if v.feedConnected {
		feed = style.FeedOpen.Render("status feed: open")
	}
	s += feed + style.HelpStyle.Render("  ·  r to refresh") + "\n"
	return s
}
