package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/solterm/solterm/pkg/client"
	"github.com/solterm/solterm/pkg/protocol"
)

const sidebarWidth = 22

// View renders the full terminal frame.
func (m Model) View() string {
	if !m.ready || m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	chat := m.chatViewport.View()
	if m.showRoster {
		sidebar := m.renderSidebar()
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chat))
	} else {
		b.WriteString(chat)
	}
	b.WriteString("\n")

	b.WriteString(m.renderTypingLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())

	return b.String()
}

func (m Model) renderHeader() string {
	active := m.engine.ActiveChannel()
	left := "#" + active

	identity := "anonymous"
	if session := m.engine.Session(); session != nil {
		identity = client.FormatWalletAddress(session.Identity.WalletAddress)
		if session.Identity.Role != protocol.RoleUser {
			identity += " (" + session.Identity.Role + ")"
		}
	}

	conn := statusOnlineStyle.Render("online")
	if !m.engine.Online() {
		conn = statusOfflineStyle.Render("OFFLINE")
	}

	right := identity + " | " + conn
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return headerStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	active := m.engine.ActiveChannel()

	b.WriteString(sidebarTitleStyle.Render("Channels"))
	b.WriteString("\n")
	for _, ch := range m.engine.Channels() {
		line := "  #" + ch.Name
		if ch.Name == active {
			b.WriteString(activeChannelStyle.Render("> #" + ch.Name))
		} else {
			b.WriteString(channelStyle.Render(line))
		}
		b.WriteString("\n")
	}

	voice := m.engine.VoiceChannels()
	if len(voice) > 0 {
		b.WriteString("\n")
		b.WriteString(sidebarTitleStyle.Render("Voice"))
		b.WriteString("\n")
		for _, vc := range voice {
			b.WriteString(voiceChannelStyle.Render(fmt.Sprintf("  %s (%d)", vc.Name, vc.ParticipantCount)))
			b.WriteString("\n")
		}
	}

	roster := m.engine.Roster()
	b.WriteString("\n")
	b.WriteString(sidebarTitleStyle.Render(fmt.Sprintf("Online (%d)", len(roster))))
	b.WriteString("\n")
	for _, entry := range roster {
		b.WriteString(rosterStyle.Render("  " + truncate(entry.Username, sidebarWidth-4)))
		b.WriteString("\n")
	}

	return sidebarStyle.
		Width(sidebarWidth).
		Height(m.chatViewport.Height).
		Render(b.String())
}

func (m Model) buildChatContent() string {
	messages := m.engine.Messages(m.engine.ActiveChannel())
	if len(messages) == 0 {
		return timestampStyle.Render("No messages yet.")
	}

	width := m.chatViewport.Width
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderMessage(msg, width))
	}
	return b.String()
}

// renderMessage formats one message line with its lifecycle badge.
func renderMessage(msg client.Message, width int) string {
	ts := timestampStyle.Render(msg.Timestamp.Local().Format("15:04"))

	switch msg.State {
	case client.StateError:
		return ts + " " + systemStyle.Render(msg.Text)

	case client.StatePending:
		line := fmt.Sprintf("%s %s %s", ts, msg.Author.Username+":", msg.Text)
		return pendingStyle.Render(line) + " " + pendingStyle.Render("[SENDING...]")

	case client.StateBroadcastConfirmed:
		badge := broadcastStyle.Render("[BROADCAST]")
		return ts + " " + badge + " " + authorFor(msg.Author).Render(msg.Author.Username+":") + " " + broadcastStyle.Render(msg.Text)

	default:
		return ts + " " + authorFor(msg.Author).Render(msg.Author.Username+":") + " " + wrapText(msg.Text, width)
	}
}

func authorFor(id client.Identity) lipgloss.Style {
	switch id.Role {
	case protocol.RoleAdmin:
		return adminAuthorStyle
	case protocol.RoleDeveloper:
		return developerAuthorStyle
	default:
		return authorStyle
	}
}

func (m Model) renderTypingLine() string {
	entries := m.engine.TypingIn(m.engine.ActiveChannel())
	if len(entries) == 0 {
		return " "
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Username)
	}
	verb := "is typing..."
	if len(names) > 1 {
		verb = "are typing..."
	}
	return typingStyle.Render(" " + strings.Join(names, ", ") + " " + verb)
}

func (m Model) renderStatusLine() string {
	if m.errorMessage != "" {
		return errorMessageStyle.Render(" " + m.errorMessage)
	}
	if m.statusMessage != "" {
		return statusBarStyle.Render(" " + m.statusMessage)
	}
	return statusBarStyle.Render(" Tab: next channel | Ctrl+R: roster | Ctrl+C: quit")
}

func truncate(s string, max int) string {
	if max < 1 || len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// wrapText hard-wraps continuation lines under the message column. lipgloss
// handles ANSI-aware width; manual wrapping keeps the author prefix intact.
func wrapText(s string, width int) string {
	if width <= 20 || len(s) <= width-20 {
		return s
	}
	return lipgloss.NewStyle().Width(width - 20).Render(s)
}
