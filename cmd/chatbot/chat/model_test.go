package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatbot/cmd/chatbot/ui"
	"chatbot/internal/session"
	"chatbot/internal/store"
	"chatbot/internal/types"
	"chatbot/internal/ux"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, instant bool, opts ...session.Option) (Model, store.Store) {
	t.Helper()
	eng := session.New(append([]session.Option{session.WithSeed(7)}, opts...)...)

	timing := ux.DefaultTimingConfig()
	timing.Disabled = instant
	sim := ux.NewSimulator(timing, types.NewSequenceSource(0.5))

	st, err := store.NewStore(store.DriverMemory)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := New(Config{
		Engine:    eng,
		Simulator: sim,
		Store:     st,
		Styles:    ui.NewStyles(ui.LightTheme()),
		Now:       func() time.Time { return testNow },
	})
	return m, st
}

func send(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.textarea.SetValue(text)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

func drain(t *testing.T, m Model) Model {
	t.Helper()
	for i := 0; m.Typing(); i++ {
		require.Less(t, i, 10, "deliveries never finished")
		updated, _ := m.Update(deliverMsg{turn: m.turn})
		m = updated.(Model)
	}
	return m
}

// finishSave runs a background save command and feeds its result back.
func finishSave(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(persistedMsg)
	require.True(t, ok, "expected a save result")
	updated, next := m.Update(msg)
	assert.Nil(t, next)
	return updated.(Model)
}

func TestSubmit_InstantDelivery(t *testing.T) {
	m, st := newTestModel(t, true)

	m, cmd := send(t, m, "Hello, our wifi is terrible")
	assert.False(t, m.Typing())

	history := m.History()
	require.GreaterOrEqual(t, len(history), 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "Hello, our wifi is terrible", history[0].Content)
	assert.Equal(t, RoleBot, history[1].Role)
	assert.NotEmpty(t, history[1].Content)
	assert.Equal(t, "", m.textarea.Value())

	// Greeted in the initial stage, so suggestions are shown.
	assert.NotEmpty(t, m.shownReplies)

	// Nothing is written until the save command runs.
	ctx := context.Background()
	_, err := st.Load(ctx, m.engine.SessionID())
	require.ErrorIs(t, err, store.ErrNotFound)

	m = finishSave(t, m, cmd)
	assert.Empty(t, m.status)
	rec, err := st.Load(ctx, m.engine.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Context.UserTurns)

	turns, err := st.Turns(ctx, m.engine.SessionID())
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "Hello, our wifi is terrible", turns[0].User)
	assert.Equal(t, types.IntentWifi, turns[0].Response.Intent)
}

type failingTurns struct {
	store.Store
}

func (failingTurns) AppendTurn(context.Context, store.TurnRecord) error {
	return errors.New("disk full")
}

func TestSubmit_SaveErrorShowsStatus(t *testing.T) {
	m, st := newTestModel(t, true)
	m.store = failingTurns{Store: st}

	m, cmd := send(t, m, "do you install cabling")
	m = finishSave(t, m, cmd)
	require.Error(t, m.err)
	assert.Contains(t, m.status, "transcript write failed: disk full")

	// The checkpoint itself went through.
	rec, err := st.Load(context.Background(), m.engine.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Context.UserTurns)
}

func TestSaver_SkipsOlderSnapshots(t *testing.T) {
	m, st := newTestModel(t, true)
	ctx := context.Background()

	m, first := send(t, m, "do you install cabling")
	m, second := send(t, m, "how much would it cost")

	// The newer save lands first; the older one must not roll the record back.
	m = finishSave(t, m, second)
	m = finishSave(t, m, first)

	rec, err := st.Load(ctx, m.engine.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Context.UserTurns)

	turns, err := st.Turns(ctx, m.engine.SessionID())
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestSave_CheckpointsFinalState(t *testing.T) {
	m, st := newTestModel(t, true)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx))
	_, err := st.Load(ctx, m.engine.SessionID())
	require.ErrorIs(t, err, store.ErrNotFound, "an empty session is not saved")

	m, _ = send(t, m, "do you install cabling")
	require.NoError(t, m.Save(ctx))
	rec, err := st.Load(ctx, m.engine.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Context.UserTurns)
}

func TestSubmit_ScheduledDelivery(t *testing.T) {
	m, _ := newTestModel(t, false)

	m, cmd := send(t, m, "Hello, our wifi is terrible")
	assert.NotNil(t, cmd)
	assert.True(t, m.Typing())
	require.Len(t, m.History(), 1, "the reply waits for its typing delay")
	assert.Empty(t, m.shownReplies, "suggestions wait for the reply")

	m = drain(t, m)
	history := m.History()
	require.GreaterOrEqual(t, len(history), 2)
	assert.Equal(t, RoleBot, history[len(history)-1].Role)
	assert.NotEmpty(t, m.shownReplies)
}

func TestDeliver_IgnoresStaleTicks(t *testing.T) {
	m, _ := newTestModel(t, false)
	m, _ = send(t, m, "do you install cabling")

	updated, cmd := m.Update(deliverMsg{turn: m.turn - 1})
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.Len(t, m.History(), 1)
	assert.True(t, m.Typing())
}

func TestSubmit_WhileTypingFlushes(t *testing.T) {
	m, _ := newTestModel(t, false)
	m, _ = send(t, m, "do you install cabling")
	require.True(t, m.Typing())

	m, _ = send(t, m, "thanks")
	history := m.History()
	require.GreaterOrEqual(t, len(history), 3)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, RoleBot, history[1].Role)
	assert.Equal(t, "thanks", history[len(history)-1].Content)
	assert.True(t, m.Typing())
	assert.Equal(t, 2, m.engine.Context().UserTurns)
}

func TestQuickReplies_TabAndNumber(t *testing.T) {
	m, _ := newTestModel(t, true)
	m, _ = send(t, m, "Hello, our wifi is terrible")
	require.NotEmpty(t, m.shownReplies)
	first := m.shownReplies[0]

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	assert.Equal(t, first, m.textarea.Value())

	m, _ = send(t, m, "1")
	var users []string
	for _, msg := range m.History() {
		if msg.Role == RoleUser {
			users = append(users, msg.Content)
		}
	}
	assert.Equal(t, []string{"Hello, our wifi is terrible", first}, users)
}

func TestCommands(t *testing.T) {
	m, _ := newTestModel(t, true)
	m, _ = send(t, m, "we need a new phone system")
	before := m.engine.SessionID()

	m, _ = send(t, m, "/reset")
	assert.NotEqual(t, before, m.engine.SessionID())
	assert.Empty(t, m.History())
	assert.Contains(t, m.status, "new session")

	m, _ = send(t, m, "/help")
	require.Len(t, m.History(), 1)
	assert.Equal(t, RoleSystem, m.History()[0].Role)

	m, _ = send(t, m, "/nope")
	assert.Contains(t, m.status, "Unknown command")

	_, cmd := send(t, m, "/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestNew_ShowsResumedHistory(t *testing.T) {
	eng := session.New(session.WithSeed(1))
	eng.ProcessMessage("hi there")

	m := New(Config{Engine: eng, Styles: ui.NewStyles(ui.DarkTheme())})
	history := m.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, RoleBot, history[1].Role)
}

func TestView(t *testing.T) {
	m, _ := newTestModel(t, true)
	assert.Equal(t, "Initializing...", m.View())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(Model)
	m, _ = send(t, m, "Hello, our wifi is terrible")

	view := m.View()
	assert.Contains(t, view, "chatbot")
	assert.Contains(t, view, string(types.StageInitial))
}
