package chat

import (
	"strconv"
	"strings"
	"time"

	"chatbot/internal/logging"
	"chatbot/internal/ux"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if msg.Alt {
				break
			}
			text := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if text == "" {
				return m, nil
			}
			return m.submit(text)

		case tea.KeyTab:
			m.cycleQuickReply()
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case deliverMsg:
		return m.deliver(msg)

	case persistedMsg:
		if msg.err != nil {
			m.setError(msg.what, msg.err)
			return m, nil
		}
		logging.Get(logging.CategoryCLI).Debug("saved %s turn %d", shortID(msg.sessionID), msg.turn)
		return m, nil

	case spinner.TickMsg:
		if !m.typing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit runs one turn through the engine and schedules its deliveries.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if m.typing {
		m.flush()
	}

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	// A bare number picks the matching quick reply.
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(m.shownReplies) {
		text = m.shownReplies[n-1]
	}

	m.status = ""
	m.err = nil
	m.shownReplies = nil
	m.quickReplies = nil
	m.history = append(m.history, Message{Role: RoleUser, Content: text, Time: m.now()})

	resp := m.engine.ProcessMessage(text)
	save := m.persistCmd(text, resp)
	if resp.ShouldShowQuickReplies {
		m.quickReplies = m.engine.QuickReplies()
	}
	if resp.ShouldShowForm {
		m.status = "A quote form would open here."
	}

	m.turn++
	m.pending = m.sim.Plan(resp)
	logging.Get(logging.CategoryCLI).Debug("turn %d: intent=%s stage=%s deliveries=%d", m.turn, resp.Intent, resp.Stage, len(m.pending))

	if m.sim.Config().Disabled {
		m.flush()
		m.refresh()
		return m, save
	}

	m.typing = true
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.scheduleNext(), save)
}

func (m Model) scheduleNext() tea.Cmd {
	if len(m.pending) == 0 {
		return nil
	}
	turn := m.turn
	return tea.Tick(m.pending[0].After, func(time.Time) tea.Msg {
		return deliverMsg{turn: turn}
	})
}

// deliver shows the next pending message if the tick is still current.
func (m Model) deliver(msg deliverMsg) (tea.Model, tea.Cmd) {
	if msg.turn != m.turn || len(m.pending) == 0 {
		return m, nil
	}
	m.show(m.pending[0])
	m.pending = m.pending[1:]

	if len(m.pending) == 0 {
		m.finishTurn()
		m.refresh()
		return m, nil
	}
	m.refresh()
	return m, m.scheduleNext()
}

// flush shows everything still pending at once.
func (m *Model) flush() {
	for _, d := range m.pending {
		m.show(d)
	}
	m.pending = nil
	m.finishTurn()
}

func (m *Model) finishTurn() {
	m.typing = false
	m.shownReplies = m.quickReplies
	m.replyIndex = 0
}

func (m *Model) show(d ux.Delivery) {
	m.history = append(m.history, Message{Role: RoleBot, Content: d.Text, FollowUp: d.FollowUp, Time: m.now()})
}

// cycleQuickReply fills the input with the next visible suggestion.
func (m *Model) cycleQuickReply() {
	if len(m.shownReplies) == 0 {
		return
	}
	m.textarea.SetValue(m.shownReplies[m.replyIndex%len(m.shownReplies)])
	m.replyIndex++
}

// command handles slash commands typed into the input.
func (m Model) command(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit":
		return m, tea.Quit

	case "/reset":
		m.engine.ResetContext()
		m.turn++
		m.pending = nil
		m.typing = false
		m.history = nil
		m.quickReplies = nil
		m.shownReplies = nil
		m.status = "Started a new session " + shortID(m.engine.SessionID())

	case "/session":
		c := m.engine.Context()
		m.status = "session " + c.SessionID + " · turn " + strconv.Itoa(c.UserTurns) + " · " + string(c.ConversationStage)

	case "/help":
		m.history = append(m.history, Message{
			Role:    RoleSystem,
			Content: "Commands: /reset starts over, /session shows the session, /quit exits. Tab or a number picks a suggestion.",
			Time:    m.now(),
		})

	default:
		m.status = "Unknown command " + fields[0] + " (try /help)"
	}
	m.refresh()
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	chatWidth := max(width-4, 20)

	// header, divider, typing line, quick replies, input (2 + border), footer
	reserved := 10
	m.viewport.Width = chatWidth
	m.viewport.Height = max(height-reserved, 3)
	m.textarea.SetWidth(chatWidth - 4)

	m.renderer = newRenderer(m.styles.Theme.IsDark, chatWidth-4)
	m.ready = true
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
