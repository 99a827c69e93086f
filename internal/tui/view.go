package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/longkey1/chatai/internal/chatai/session"
	"github.com/longkey1/chatai/internal/chatai/transcript"
)

const streamCursor = "▌"

func (m Model) View() string {
	main := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("chatai"),
		m.viewport.View(),
		m.input.View(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)

	status := statusBarStyle.Width(m.width).Render(m.statusLine())
	if m.err != nil {
		status = errorStyle.Render("error: " + firstLine(m.err.Error()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, status, m.help.View(keys))
}

func (m Model) renderSidebar() string {
	style := sidebarStyle
	if m.focus == focusSidebar {
		style = sidebarFocusedStyle
	}
	height := m.viewport.Height + 2

	var b strings.Builder
	b.WriteString(titleStyle.Render("Conversations"))
	b.WriteString("\n")
	if len(m.conversations) == 0 {
		b.WriteString(dimStyle.Render(" none yet"))
	}

	current := m.orch.ConversationID()
	window, offset := visibleWindow(m.conversations, m.cursor, height-2)
	for i, ref := range window {
		title := ref.Title
		if title == "" {
			title = ref.ID.String()
		}
		title = truncate(title, sidebarWidth-4)

		switch {
		case i+offset == m.cursor && m.focus == focusSidebar:
			b.WriteString(selectedStyle.Render(title))
		case ref.ID == current:
			b.WriteString(currentStyle.Render(title))
		default:
			b.WriteString(normalStyle.Render(title))
		}
		b.WriteString("\n")
	}
	return style.Height(height).Render(strings.TrimRight(b.String(), "\n"))
}

// visibleWindow returns the part of refs that fits in rows while keeping
// the cursor visible, and the index of its first entry.
func visibleWindow(refs []chatai.ConversationRef, cursor, rows int) ([]chatai.ConversationRef, int) {
	if rows <= 0 || len(refs) <= rows {
		return refs, 0
	}
	offset := 0
	if cursor >= rows {
		offset = cursor - rows + 1
	}
	return refs[offset : offset+rows], offset
}

// renderTranscript draws every message, with a cursor after the entry that
// is still streaming and a spinner until the first fragment arrives.
func renderTranscript(snap transcript.Snapshot, state session.State, spin string, width int) string {
	if len(snap.Messages) == 0 && !state.Busy() {
		return dimStyle.Render("Send a message to start the conversation.")
	}

	wrap := lipgloss.NewStyle().Width(max(width-2, 10))
	var b strings.Builder
	for i, msg := range snap.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		content := msg.Content
		if snap.Streaming && i == snap.Pending {
			content += cursorStyle.Render(streamCursor)
		}
		b.WriteString(roleLabel(msg.Role))
		b.WriteString("\n")
		b.WriteString(wrap.Render(content))
	}

	waiting := state == session.StateSending || state == session.StateStreaming
	if waiting && !snap.Streaming {
		if len(snap.Messages) > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(roleLabel(chatai.RoleAssistant))
		b.WriteString("\n")
		b.WriteString(spin)
	}
	return b.String()
}

func roleLabel(role chatai.Role) string {
	if role == chatai.RoleUser {
		return userLabel.Render("You")
	}
	return assistantLabel.Render("Assistant")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
