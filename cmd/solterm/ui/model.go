package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/solterm/solterm/pkg/client"
)

// Model is the terminal UI state. All chat state lives in the engine; the
// model only holds presentation state and reads engine snapshots on every
// update notification.
type Model struct {
	engine *client.Engine
	logger zerolog.Logger

	width  int
	height int
	ready  bool

	chatViewport viewport.Model
	input        textarea.Model
	showRoster   bool

	// follow keeps the viewport pinned to the newest message until the
	// user scrolls up.
	follow bool

	errorMessage  string
	statusMessage string
	statusVersion uint64

	// seenCounts tracks per-channel message counts so background channels
	// can raise desktop notifications only for genuinely new messages.
	seenCounts map[string]int

	quitting bool
}

// EngineUpdateMsg carries one topic from the engine notification feed.
type EngineUpdateMsg struct {
	Topic string
}

// TickMsg drives periodic re-renders (relative timestamps, typing decay).
type TickMsg time.Time

// ClearStatusMsg clears the status line if it has not been replaced since.
type ClearStatusMsg struct {
	Version uint64
}

// NewModel builds the UI around a running engine.
func NewModel(engine *client.Engine, logger zerolog.Logger) Model {
	ta := textarea.New()
	ta.Placeholder = "Message #" + engine.ActiveChannel() + "  (/help for commands)"
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(0, 1)
	ta.BlurredStyle.Base = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	ta.Focus()

	return Model{
		engine:     engine,
		logger:     logger.With().Str("component", "ui").Logger(),
		input:      ta,
		showRoster: true,
		follow:     true,
		seenCounts: make(map[string]int),
	}
}

// Init starts the engine notification listener and the render ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForEngineUpdates(m.engine.Notifications()),
		tickCmd(),
		textarea.Blink,
	)
}

// listenForEngineUpdates blocks on the engine feed and converts each topic
// into a bubbletea message. Re-issued after every delivery.
func listenForEngineUpdates(notify <-chan string) tea.Cmd {
	return func() tea.Msg {
		topic, ok := <-notify
		if !ok {
			return nil
		}
		return EngineUpdateMsg{Topic: topic}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func clearStatusCmd(version uint64) tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return ClearStatusMsg{Version: version}
	})
}

func (m *Model) setStatus(msg string) tea.Cmd {
	m.statusMessage = msg
	m.statusVersion++
	return clearStatusCmd(m.statusVersion)
}
