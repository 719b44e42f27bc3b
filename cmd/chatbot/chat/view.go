package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		switch msg.Role {
		case RoleUser:
			sb.WriteString(m.styles.Bold.Foreground(m.styles.Theme.Primary).MarginTop(1).Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n\n")

		case RoleSystem:
			sb.WriteString(m.styles.Muted.Render(msg.Content))
			sb.WriteString("\n\n")

		default:
			if !msg.FollowUp {
				sb.WriteString(m.styles.Bold.Foreground(m.styles.Theme.Accent).MarginTop(1).Render("Assistant") + "\n")
			}
			style := m.styles.BotResponse
			if msg.FollowUp {
				style = m.styles.FollowUp
			}
			sb.WriteString(style.Render(m.safeRenderMarkdown(msg.Content)))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown falls back to plain text if glamour fails or panics.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	return content
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	c := m.engine.Context()
	header := m.styles.Header.Render("chatbot") + " " +
		m.styles.Muted.Render(shortID(c.SessionID)) + " " +
		m.styles.Badge.Render(string(c.ConversationStage))

	typing := ""
	if m.typing {
		typing = m.spinner.View() + " " + m.styles.Typing.Render("typing...")
	}

	footer := m.styles.Footer.Render("/help for commands")
	if m.status != "" {
		style := m.styles.Info
		if m.err != nil {
			style = m.styles.Error
		}
		footer = style.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.RenderDivider(m.viewport.Width),
		typing,
		m.styles.RenderQuickReplies(m.shownReplies),
		m.textarea.View(),
		footer,
	)
}
