package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/pulsecast/pulsecast/internal/app_events"
	pubevents "github.com/pulsecast/pulsecast/internal/app_events/publisher"
	"github.com/pulsecast/pulsecast/internal/style"
	publisherApp "github.com/pulsecast/pulsecast/pkg/publisher"
	"github.com/pulsecast/pulsecast/pkg/whip"
)

const levelBarWidth = 24

type publisherModel struct {
	app *publisherApp.App

	spinner    spinner.Model
	state      whip.State
	screenLive bool
	level      float64
	stopped    bool
	err        error
}

func initPublisherModel(app *publisherApp.App) publisherModel {
	return publisherModel{
		app:     app,
		spinner: style.NewSpinner(),
		state:   whip.StateNew,
	}
}

// listenForPublisherMessages waits for the next controller update.
func (m *model) listenForPublisherMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.publisher.app.UIMessages()
	}
}

func (m *model) initPublisher() tea.Cmd {
	return tea.Batch(m.publisher.spinner.Tick, m.listenForPublisherMessages())
}

func (m *model) updatePublisher(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pubevents.StateMsg:
		m.publisher.state = msg.State
		return m, m.listenForPublisherMessages()
	case pubevents.ScreenLiveMsg:
		m.publisher.screenLive = msg.Live
		return m, m.listenForPublisherMessages()
	case pubevents.AudioLevelMsg:
		m.publisher.level = msg.Level
		return m, m.listenForPublisherMessages()
	case pubevents.StreamStoppedMsg:
		m.publisher.stopped = true
		return m, m.listenForPublisherMessages()
	case pubevents.PublishEndedMsg:
		m.publisher.err = msg.Err
		m.publisher.stopped = true
		return m, m.listenForPublisherMessages()
	case appevents.Error:
		m.publisher.err = msg.Err
		return m, m.listenForPublisherMessages()

	case tea.KeyMsg:
		if msg.String() == "s" && !m.publisher.stopped {
			m.publisher.app.AppEvents() <- pubevents.StopPublishMsg{}
		}
		return m, nil
	}

	var spinCmd tea.Cmd
	m.publisher.spinner, spinCmd = m.publisher.spinner.Update(msg)
	return m, spinCmd
}

func (m *model) publisherView() string {
	p := m.publisher

	if p.err != nil {
		return style.ErrorStyle.Render(fmt.Sprintf("Publishing failed: %v", p.err)) + "\n"
	}

	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("pulsecast publish") + "\n\n")

	switch p.state {
	case whip.StateNew, whip.StateAcquiringMedia:
		fmt.Fprintf(&b, "%s Acquiring media...\n", p.spinner.View())
	case whip.StateNegotiating:
		fmt.Fprintf(&b, "%s Negotiating with the media server...\n", p.spinner.View())
	case whip.StateConnected:
		b.WriteString(style.StateStyle.Render("● Live") + "\n")
	case whip.StateDisconnected:
		b.WriteString("Stream stopped.\n")
	}

	if p.screenLive {
		b.WriteString(style.LiveBadge.Render("SCREEN SHARE") + "\n")
	}
	if p.level > 0 {
		b.WriteString(renderLevelBar(p.level) + "\n")
	}
	if !p.stopped {
		b.WriteString(style.HelpStyle.Render("\nPress s to stop streaming"))
	}
	return b.String()
}

func renderLevelBar(level float64) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level * levelBarWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", levelBarWidth-filled)
	return "mic " + style.LevelBarStyle.Render(bar)
}
