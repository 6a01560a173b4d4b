package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	publisherApp "github.com/pulsecast/pulsecast/pkg/publisher"
	viewerApp "github.com/pulsecast/pulsecast/pkg/viewer"
)

type mode int

const (
	None mode = iota
	Publisher
	Viewer
)

type model struct {
	mode      mode
	publisher publisherModel
	viewer    viewerModel
}

// InitialPublisherModel builds the TUI for a publishing session.
func InitialPublisherModel(app *publisherApp.App) tea.Model {
	return model{
		mode:      Publisher,
		publisher: initPublisherModel(app),
	}
}

// InitialViewerModel builds the TUI for channel browsing.
func InitialViewerModel(app *viewerApp.App) tea.Model {
	return model{
		mode:   Viewer,
		viewer: initViewerModel(app),
	}
}

func (m model) Init() tea.Cmd {
	ctx := context.Background()

	switch m.mode {
	case Publisher:
		go func() { _ = m.publisher.app.Run(ctx) }()
		return m.initPublisher()
	case Viewer:
		go func() { _ = m.viewer.app.Run(ctx) }()
		return m.initViewer()
	default:
		return nil
	}
}

func (m model) View() string {
	var s string
	switch m.mode {
	case Publisher:
		s += m.publisherView()
	case Viewer:
		s += m.viewerView()
	default:
		return ""
	}
	s += "\nPress ctrl + c to quit"
	return s
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case Publisher:
		return m.updatePublisher(msg)
	case Viewer:
		return m.updateViewer(msg)
	}
	return m, nil
}
