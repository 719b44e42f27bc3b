// Package chat implements the interactive terminal host for the dialogue engine.
// The engine answers instantly; this package replays each answer on the
// simulated typing schedule with tea.Tick and persists every turn in a
// background command.
package chat

import (
	"context"
	"sync"
	"time"

	"chatbot/cmd/chatbot/ui"
	"chatbot/internal/logging"
	"chatbot/internal/session"
	"chatbot/internal/store"
	"chatbot/internal/types"
	"chatbot/internal/ux"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// Config holds what the chat host needs.
type Config struct {
	Engine    *session.Engine
	Simulator *ux.Simulator
	Store     store.Store // optional; nil disables persistence
	Styles    ui.Styles
	Now       func() time.Time
}

// Role of a rendered message.
type Role string

const (
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
	RoleSystem Role = "system"
)

// Message is one rendered line of the conversation.
type Message struct {
	Role     Role
	Content  string
	FollowUp bool
	Time     time.Time
}

// deliverMsg fires when the next pending delivery is due. Turn guards
// against ticks scheduled before a reset or a newer submission.
type deliverMsg struct {
	turn int
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	engine *session.Engine
	sim    *ux.Simulator
	store  store.Store
	saver  *saver
	styles ui.Styles
	now    func() time.Time

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	history      []Message
	pending      []ux.Delivery
	turn         int
	typing       bool
	quickReplies []string
	shownReplies []string
	replyIndex   int

	status string
	err    error

	width  int
	height int
	ready  bool
}

// New builds the chat model. A resumed engine's history is shown as-is.
func New(cfg Config) Model {
	if cfg.Engine == nil {
		cfg.Engine = session.New()
	}
	if cfg.Simulator == nil {
		cfg.Simulator = ux.NewSimulator(ux.DefaultTimingConfig(), nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ta := textarea.New()
	ta.Placeholder = "Say something... (Enter to send, Tab for suggestions, Ctrl+C to exit)"
	ta.Focus()
	ta.Prompt = "| "
	ta.FocusedStyle.Prompt = cfg.Styles.Prompt
	ta.CharLimit = 4096
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Styles.Spinner

	vp := viewport.New(80, 20)

	m := Model{
		engine:   cfg.Engine,
		sim:      cfg.Simulator,
		store:    cfg.Store,
		saver:    newSaver(),
		styles:   cfg.Styles,
		now:      cfg.Now,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		renderer: newRenderer(cfg.Styles.Theme.IsDark, 80),
		width:    80,
		height:   24,
	}

	for _, item := range cfg.Engine.Context().MessageHistory {
		role := RoleUser
		if item.Role == types.RoleBot {
			role = RoleBot
		}
		m.history = append(m.history, Message{Role: role, Content: item.Content, Time: item.Timestamp})
	}
	m.refresh()
	return m
}

func newRenderer(dark bool, width int) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logging.Get(logging.CategoryCLI).Warn("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

// History returns the rendered conversation so far.
func (m Model) History() []Message {
	return m.history
}

// Typing reports whether deliveries are still pending.
func (m Model) Typing() bool {
	return m.typing
}

// persistedMsg reports the outcome of a background save.
type persistedMsg struct {
	sessionID string
	turn      int
	what      string
	err       error
}

// saver serializes background saves. A snapshot older than the last one
// written for its session is not checkpointed again.
type saver struct {
	mu   sync.Mutex
	last map[string]int
}

func newSaver() *saver {
	return &saver{last: make(map[string]int)}
}

func (s *saver) save(ctx context.Context, st store.Store, snapshot types.ConversationContext, turn store.TurnRecord) persistedMsg {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := persistedMsg{sessionID: snapshot.SessionID, turn: turn.Turn}
	if prev, ok := s.last[snapshot.SessionID]; !ok || snapshot.UserTurns >= prev {
		if _, err := store.Checkpoint(ctx, st, snapshot); err != nil {
			msg.what, msg.err = "save failed", err
			return msg
		}
		s.last[snapshot.SessionID] = snapshot.UserTurns
	}
	if err := st.AppendTurn(ctx, turn); err != nil {
		msg.what, msg.err = "transcript write failed", err
	}
	return msg
}

// persistCmd snapshots the engine now and writes the checkpoint and the
// transcript entry off the update loop. It is nil without a store.
func (m *Model) persistCmd(user string, resp types.BotResponse) tea.Cmd {
	if m.store == nil {
		return nil
	}
	st, sv := m.store, m.saver
	snapshot := m.engine.Context()
	turn := store.TurnRecord{
		SessionID: snapshot.SessionID,
		Turn:      snapshot.UserTurns,
		User:      user,
		Response:  resp,
		CreatedAt: m.now(),
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sv.save(ctx, st, snapshot, turn)
	}
}

// Save checkpoints the engine's current snapshot once any background save in
// progress has finished. The host calls it after the program exits.
func (m Model) Save(ctx context.Context) error {
	snapshot := m.engine.Context()
	if m.store == nil || snapshot.UserTurns == 0 {
		return nil
	}
	m.saver.mu.Lock()
	defer m.saver.mu.Unlock()
	if _, err := store.Checkpoint(ctx, m.store, snapshot); err != nil {
		return err
	}
	m.saver.last[snapshot.SessionID] = snapshot.UserTurns
	return nil
}

func (m *Model) setError(what string, err error) {
	m.err = err
	m.status = what + ": " + err.Error()
	logging.Get(logging.CategoryCLI).Error("%s: %v", what, err)
}
