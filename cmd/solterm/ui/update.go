package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/solterm/solterm/pkg/client"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refreshChat()
		return m, nil

	case EngineUpdateMsg:
		return m.handleEngineUpdate(msg)

	case TickMsg:
		// Typing entries expire on their own; a periodic render keeps the
		// indicator honest between engine notifications.
		return m, tickCmd()

	case ClearStatusMsg:
		if msg.Version == m.statusVersion {
			m.statusMessage = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize() {
	chatWidth := m.width
	if m.showRoster {
		chatWidth -= sidebarWidth + 1
	}
	if chatWidth < 20 {
		chatWidth = 20
	}
	// Header, typing line, input box and status line share the column.
	chatHeight := m.height - 1 - 1 - 3 - 1
	if chatHeight < 3 {
		chatHeight = 3
	}
	if m.chatViewport.Width == 0 {
		m.chatViewport = viewport.New(chatWidth, chatHeight)
	} else {
		m.chatViewport.Width = chatWidth
		m.chatViewport.Height = chatHeight
	}
	m.input.SetWidth(m.width - 4)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleChannel(1)

	case "shift+tab":
		return m.cycleChannel(-1)

	case "ctrl+r":
		m.showRoster = !m.showRoster
		m.resize()
		m.refreshChat()
		return m, nil

	case "pgup":
		m.chatViewport.HalfViewUp()
		m.follow = m.chatViewport.AtBottom()
		return m, nil

	case "pgdown":
		m.chatViewport.HalfViewDown()
		m.follow = m.chatViewport.AtBottom()
		return m, nil

	case "enter":
		return m.submitInput()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before && m.input.Value() != "" && !strings.HasPrefix(m.input.Value(), "/") {
		m.engine.Composing()
	}
	return m, cmd
}

func (m Model) cycleChannel(dir int) (tea.Model, tea.Cmd) {
	channels := m.engine.Channels()
	if len(channels) == 0 {
		return m, nil
	}
	active := m.engine.ActiveChannel()
	idx := 0
	for i, ch := range channels {
		if ch.Name == active {
			idx = i
			break
		}
	}
	next := channels[(idx+dir+len(channels))%len(channels)].Name
	if err := m.engine.SwitchChannel(next); err != nil {
		m.errorMessage = err.Error()
		return m, nil
	}
	m.errorMessage = ""
	m.follow = true
	m.input.Placeholder = "Message #" + next + "  (/help for commands)"
	m.refreshChat()
	return m, nil
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}
	if err := m.engine.SendMessage(text); err != nil {
		m.errorMessage = err.Error()
		return m, nil
	}
	m.errorMessage = ""
	m.input.Reset()
	m.follow = true
	m.refreshChat()
	return m, nil
}

func (m Model) runCommand(text string) (tea.Model, tea.Cmd) {
	parts := strings.SplitN(text, " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/quit":
		m.quitting = true
		return m, tea.Quit

	case "/join":
		if arg == "" {
			m.errorMessage = "usage: /join <channel>"
			return m, nil
		}
		arg = strings.TrimPrefix(arg, "#")
		if err := m.engine.SwitchChannel(arg); err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.input.Reset()
		m.input.Placeholder = "Message #" + arg + "  (/help for commands)"
		m.follow = true
		m.refreshChat()
		return m, nil

	case "/broadcast":
		if arg == "" {
			m.errorMessage = "usage: /broadcast <message>"
			return m, nil
		}
		if err := m.engine.SendBroadcast(arg); err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.input.Reset()
		return m, m.setStatus("broadcast sent")

	case "/connect":
		if !client.IsWalletAddress(arg) {
			m.errorMessage = "usage: /connect <wallet address>"
			return m, nil
		}
		if err := m.engine.BindWallet(arg); err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.input.Reset()
		return m, m.setStatus("wallet connected: " + client.FormatWalletAddress(arg))

	case "/disconnect":
		if err := m.engine.UnbindWallet(); err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.input.Reset()
		return m, m.setStatus("wallet disconnected")

	case "/help":
		m.input.Reset()
		return m, m.setStatus("/join <ch>  /broadcast <msg>  /connect <wallet>  /disconnect  /quit  Tab cycles channels  Ctrl+R roster")

	default:
		m.errorMessage = fmt.Sprintf("unknown command %s", cmd)
		return m, nil
	}
}

func (m Model) handleEngineUpdate(msg EngineUpdateMsg) (tea.Model, tea.Cmd) {
	relisten := listenForEngineUpdates(m.engine.Notifications())

	switch msg.Topic {
	case client.NotifyConnection, client.NotifyRoster, client.NotifyChannels:
		return m, relisten
	}

	// A channel topic: refresh the chat when it is the active channel,
	// otherwise consider a desktop notification for the background one.
	active := m.engine.ActiveChannel()
	if msg.Topic == active {
		m.refreshChat()
		m.notifySeen(active)
		return m, relisten
	}

	m.maybeNotify(msg.Topic)
	return m, relisten
}

// notifySeen records the current message count so background growth is
// measured from the last time we looked.
func (m *Model) notifySeen(channel string) {
	m.seenCounts[channel] = len(m.engine.Messages(channel))
}

// maybeNotify raises a desktop notification for a new message in a channel
// the user is not looking at. Own messages and non-growth updates (expiry,
// rollback) stay silent.
func (m *Model) maybeNotify(channel string) {
	messages := m.engine.Messages(channel)
	prev := m.seenCounts[channel]
	m.seenCounts[channel] = len(messages)
	if len(messages) <= prev || len(messages) == 0 {
		return
	}
	latest := messages[len(messages)-1]
	if latest.IsPending() {
		return
	}
	if session := m.engine.Session(); session != nil && latest.Author.Username == session.Identity.Username {
		return
	}

	body := latest.Text
	if len(body) > 100 {
		body = body[:97] + "..."
	}
	title := "solterm - #" + channel
	if err := beeep.Notify(title, latest.Author.Username+": "+body, ""); err != nil {
		m.logger.Debug().Err(err).Msg("desktop notification failed")
	}
}

// refreshChat rebuilds the viewport content from the active channel log.
func (m *Model) refreshChat() {
	if m.chatViewport.Width == 0 {
		return
	}
	m.chatViewport.SetContent(m.buildChatContent())
	if m.follow {
		m.chatViewport.GotoBottom()
	}
}
