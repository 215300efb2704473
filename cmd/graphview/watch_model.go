package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/visualization"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(1)

	canvasStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5F5FFF"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			MarginLeft(1)

	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")).Bold(true)
	convergedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)

	helpStyle = lipgloss.NewStyle().MarginLeft(1)
)

// chrome is the rows and columns taken by everything but the canvas
const (
	chromeRows = 6
	chromeCols = 2
)

type watchKeys struct {
	Cancel key.Binding
	Quit   key.Binding
}

var defaultWatchKeys = watchKeys{
	Cancel: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "cancel layout"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Quit}
}

func (k watchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Cancel, k.Quit}}
}

type frameMsg layout.Frame

type streamClosedMsg struct{ err error }

// waitForFrame turns the next frame of the mailbox into a message
func waitForFrame(frames <-chan layout.Frame, errOf func() error) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return streamClosedMsg{err: errOf()}
		}
		return frameMsg(f)
	}
}

// watchModel renders the latest frame of one layout session
type watchModel struct {
	title  string
	frames <-chan layout.Frame
	errOf  func() error
	stop   func()

	keys watchKeys
	help help.Model

	width  int
	height int

	frame    layout.Frame
	hasFrame bool
	state    layout.State
	closed   bool
	err      error
}

func newWatchModel(title string, src frameSource) watchModel {
	return watchModel{
		title:  title,
		frames: src.Frames(),
		errOf:  src.Err,
		stop:   src.Stop,
		keys:   defaultWatchKeys,
		help:   help.New(),
		width:  80,
		height: 24,
		state:  layout.StateRunning,
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForFrame(m.frames, m.errOf)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case frameMsg:
		m.frame = layout.Frame(msg)
		m.hasFrame = true
		if m.state == layout.StateCancelled {
			return m, nil
		}
		m.state = m.frame.State
		if m.state.Terminal() {
			return m, nil
		}
		return m, waitForFrame(m.frames, m.errOf)

	case streamClosedMsg:
		m.closed = true
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.stop()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Cancel):
			if !m.state.Terminal() {
				m.stop()
				m.state = layout.StateCancelled
			}
		}
	}
	return m, nil
}

func stateBadge(s layout.State) string {
	switch s {
	case layout.StateConverged:
		return convergedStyle.Render(s.String())
	case layout.StateCancelled:
		return cancelledStyle.Render(s.String())
	}
	return runningStyle.Render(s.String())
}

func (m watchModel) status() string {
	parts := []string{stateBadge(m.state)}
	if m.hasFrame {
		parts = append(parts,
			fmt.Sprintf("iteration %d", m.frame.Iteration),
			fmt.Sprintf("max move %.3f", m.frame.MaxDisplacement),
			fmt.Sprintf("%d nodes, %d edges", len(m.frame.Nodes), len(m.frame.Edges)),
		)
		if m.frame.Capped {
			parts = append(parts, "stopped at iteration cap")
		}
	} else {
		parts = append(parts, "waiting for first frame")
	}
	if m.closed {
		if m.err != nil {
			parts = append(parts, "stream closed: "+m.err.Error())
		} else {
			parts = append(parts, "stream closed")
		}
	}
	return strings.Join(parts, "  ·  ")
}

func (m watchModel) View() string {
	vp := visualization.Viewport{
		Cols:    max(m.width-chromeCols, 1),
		Rows:    max(m.height-chromeRows, 1),
		Padding: 1,
	}
	grid := visualization.Render(m.frame.Nodes, m.frame.Edges, vp)

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(canvasStyle.Render(grid.String()))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}
