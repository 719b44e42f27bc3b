package session

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/config"
	"chatbot/internal/types"
)

var testStart = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// steppingClock advances one second per call so timestamps are distinct and reproducible.
func steppingClock() func() time.Time {
	now := testStart
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestEngine(opts ...Option) *Engine {
	return New(append([]Option{WithSeed(1234), WithClock(steppingClock())}, opts...)...)
}

// businessTurns avoids small talk so every turn takes the main path.
var businessTurns = []string{
	"We need structured cabling for our new office",
	"Our wifi has dead zones upstairs",
	"Can you look at our server room cooling?",
	"We also want better firewalls",
	"What about moving email to the cloud?",
	"Do you offer managed IT support?",
	"Which vendors do you partner with?",
	"We have about 80 employees",
	"Can we get a quote?",
	"Also interested in VoIP phones",
	"And a POS system for the shop",
	"Send me a brochure please",
}

func TestProcessMessage_FreshGreeting(t *testing.T) {
	e := newTestEngine()
	resp := e.ProcessMessage("hi")

	assert.Equal(t, types.IntentGreeting, resp.Intent)
	assert.Contains(t, e.Knowledge().SmallTalk[types.IntentGreeting], resp.Response)
	assert.False(t, resp.ShouldShowForm)
	assert.False(t, resp.ShouldShowQuickReplies, "first small talk exchange")
	assert.Equal(t, types.StageInitial, resp.Stage)

	ctx := e.Context()
	assert.True(t, ctx.UserContext.HasGreeted)
	assert.Equal(t, 1, ctx.SmallTalkCount)
	assert.Equal(t, types.IntentGreeting, ctx.LastSmallTalkTopic)
}

func TestProcessMessage_QuoteShowsForm(t *testing.T) {
	e := newTestEngine()
	resp := e.ProcessMessage("I'd like a quote for data center cooling")

	assert.Equal(t, types.IntentQuoteRequest, resp.Intent)
	assert.True(t, resp.ShouldShowForm)
	assert.Empty(t, resp.FollowUps)

	ctx := e.Context()
	assert.Contains(t, ctx.UserContext.MentionedServices, "datacenter")
	assert.Contains(t, ctx.UserContext.ExpressedInterests, "quote_request")
	assert.Equal(t, types.IntentQuoteRequest, ctx.CurrentTopic)
}

func TestProcessMessage_StageProgression(t *testing.T) {
	e := newTestEngine()
	want := []types.Stage{
		types.StageInitial, types.StageInitial,
		types.StageExploring, types.StageExploring, types.StageExploring,
		types.StageDeepening, types.StageDeepening, types.StageDeepening,
		types.StageClosing, types.StageClosing, types.StageClosing, types.StageClosing,
	}
	prev := types.StageInitial
	for i, msg := range businessTurns {
		resp := e.ProcessMessage(msg)
		assert.Equal(t, want[i], resp.Stage, "turn %d", i+1)
		assert.Equal(t, want[i], e.Context().ConversationStage, "turn %d", i+1)
		assert.GreaterOrEqual(t, resp.Stage.Rank(), prev.Rank(), "stage never regresses")
		prev = resp.Stage
	}
}

func TestProcessMessage_HistoryTruncationAndPairing(t *testing.T) {
	e := newTestEngine()
	for n := 1; n <= 12; n++ {
		e.ProcessMessage(businessTurns[n-1])
		ctx := e.Context()

		require.Equal(t, n, ctx.UserTurns)
		require.Len(t, ctx.MessageHistory, min(2*n, types.DefaultHistoryLimit), "after %d turns", n)
		if 2*n <= types.DefaultHistoryLimit {
			assert.Len(t, ctx.UserMessages(), n)
		}
		// Newest entry is always the bot reply to the newest user message.
		last := ctx.MessageHistory[len(ctx.MessageHistory)-1]
		prev := ctx.MessageHistory[len(ctx.MessageHistory)-2]
		assert.Equal(t, types.RoleBot, last.Role)
		assert.Equal(t, types.RoleUser, prev.Role)
		assert.Equal(t, businessTurns[n-1], prev.Content)
	}
}

func TestProcessMessage_HistoryKeepsOriginalText(t *testing.T) {
	e := newTestEngine()
	e.ProcessMessage("This is AWFUL!!! Our WiFi keeps dropping")

	user := e.Context().MessageHistory[0]
	assert.Equal(t, "This is AWFUL!!! Our WiFi keeps dropping", user.Content)
	assert.Equal(t, types.SentimentNegative, user.Sentiment)
	assert.Equal(t, types.IntentWifi, user.Intent)
}

func TestProcessMessage_Total(t *testing.T) {
	e := newTestEngine()
	inputs := []string{"", "   ", "\x00\xff", strings.Repeat("cloud ", 50000), "🙂", "?"}
	for _, in := range inputs {
		resp := e.ProcessMessage(in)
		assert.NotEmpty(t, resp.Response)
	}
	assert.Equal(t, len(inputs), e.Context().UserTurns)

	fresh := newTestEngine()
	resp := fresh.ProcessMessage("")
	assert.Equal(t, types.IntentGeneralInquiry, resp.Intent)
	assert.Equal(t, types.SentimentNeutral, resp.Sentiment)
}

func TestResetContext(t *testing.T) {
	e := newTestEngine()
	for _, msg := range businessTurns[:4] {
		e.ProcessMessage(msg)
	}
	before := e.Context()

	e.ResetContext()
	after := e.Context()

	assert.NotEqual(t, before.SessionID, after.SessionID)
	assert.Empty(t, after.MessageHistory)
	assert.Equal(t, types.StageInitial, after.ConversationStage)
	assert.Zero(t, after.UserTurns)
	assert.Zero(t, after.SmallTalkCount)
	assert.Empty(t, after.AskedQuestions)
	assert.Empty(t, after.UserContext.MentionedServices)
	assert.Equal(t, types.SentimentNeutral, after.UserContext.Sentiment)
	assert.Empty(t, after.CurrentTopic)
}

func TestContext_Idempotent(t *testing.T) {
	e := newTestEngine()
	e.ProcessMessage("hello")
	e.ProcessMessage("we need new wifi")

	a, b := e.Context(), e.Context()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("snapshots differ (-first +second):\n%s", diff)
	}

	// Mutating a snapshot never reaches the engine.
	a.MessageHistory[0].Content = "tampered"
	a.UserContext.MentionedServices = append(a.UserContext.MentionedServices, "tampered")
	c := e.Context()
	if diff := cmp.Diff(b, c); diff != "" {
		t.Errorf("engine state changed through a snapshot:\n%s", diff)
	}
}

func TestProcessMessage_EllipticalCarryover(t *testing.T) {
	e := newTestEngine()
	e.ProcessMessage("We want to move our backups to the cloud")
	resp := e.ProcessMessage("How much does it cost?")
	assert.Equal(t, types.IntentCloud, resp.Intent)
}

func TestProcessMessage_SmallTalk(t *testing.T) {
	t.Run("second exchange shows quick replies", func(t *testing.T) {
		e := newTestEngine()
		e.ProcessMessage("hi")
		resp := e.ProcessMessage("how are you?")
		assert.True(t, resp.ShouldShowQuickReplies)
		assert.Equal(t, 2, e.Context().SmallTalkCount)
	})

	t.Run("sticks once started", func(t *testing.T) {
		e := newTestEngine()
		e.ProcessMessage("hey there")
		for _, msg := range businessTurns[:4] {
			e.ProcessMessage(msg)
		}
		require.Equal(t, types.StageExploring, e.Context().ConversationStage)

		resp := e.ProcessMessage("tell me a joke")
		assert.Equal(t, types.IntentJoke, resp.Intent)
		assert.Equal(t, 2, e.Context().SmallTalkCount)
		assert.Empty(t, resp.Tone, "small talk bypasses tone")
	})

	t.Run("not recognized mid conversation without prior small talk", func(t *testing.T) {
		e := newTestEngine()
		for _, msg := range businessTurns[:3] {
			e.ProcessMessage(msg)
		}
		resp := e.ProcessMessage("tell me a joke")
		assert.Zero(t, e.Context().SmallTalkCount)
		assert.NotEmpty(t, resp.Tone)
	})
}

func TestProcessMessage_QuickReplies(t *testing.T) {
	t.Run("greeted in initial stage", func(t *testing.T) {
		e := newTestEngine()
		resp := e.ProcessMessage("Hello, our wifi is terrible")
		assert.Equal(t, types.IntentWifi, resp.Intent)
		assert.True(t, resp.ShouldShowQuickReplies)
	})

	t.Run("thanks on the main path", func(t *testing.T) {
		e := newTestEngine()
		for _, msg := range businessTurns[:3] {
			e.ProcessMessage(msg)
		}
		resp := e.ProcessMessage("thanks")
		assert.Equal(t, types.IntentThanks, resp.Intent)
		assert.True(t, resp.ShouldShowQuickReplies)
	})

	t.Run("closing stage", func(t *testing.T) {
		e := newTestEngine()
		var resp types.BotResponse
		for _, msg := range businessTurns[:9] {
			resp = e.ProcessMessage(msg)
		}
		assert.Equal(t, types.StageClosing, resp.Stage)
		assert.True(t, resp.ShouldShowQuickReplies)
		assert.Equal(t, e.Knowledge().QuickReplies[types.StageClosing], e.QuickReplies())
	})

	t.Run("business turn without greeting", func(t *testing.T) {
		e := newTestEngine()
		resp := e.ProcessMessage("we need cabling")
		assert.False(t, resp.ShouldShowQuickReplies)
	})
}

func TestProcessMessage_FollowUps(t *testing.T) {
	e := newTestEngine()
	var asked []string
	for _, msg := range businessTurns {
		resp := e.ProcessMessage(msg)
		asked = append(asked, resp.FollowUps...)
		if len(resp.FollowUps) > 0 {
			assert.Contains(t, []types.Stage{types.StageExploring, types.StageDeepening, types.StageClosing}, resp.Stage)
		}
	}
	ctx := e.Context()
	assert.NotEmpty(t, asked)
	assert.LessOrEqual(t, len(asked), 3)
	assert.Equal(t, asked, ctx.AskedQuestions)
}

func TestProcessMessage_FollowUpCap(t *testing.T) {
	e := newTestEngine(WithMaxFollowUps(0))
	for _, msg := range businessTurns {
		assert.Empty(t, e.ProcessMessage(msg).FollowUps)
	}
}

func TestProcessMessage_UserContext(t *testing.T) {
	e := newTestEngine()
	e.ProcessMessage("Our server is down and it's terrible, we need help ASAP")
	e.ProcessMessage("We are a small business with 12 staff")

	uc := e.Context().UserContext
	assert.Equal(t, "high", uc.Urgency)
	assert.Equal(t, "small", uc.CompanySize)
	assert.Contains(t, uc.MentionedServices, "datacenter")
}

func TestRollingSentiment(t *testing.T) {
	item := func(role types.Role, s types.Sentiment) types.MessageHistoryItem {
		return types.MessageHistoryItem{Role: role, Sentiment: s}
	}
	pos, neg, neu := types.SentimentPositive, types.SentimentNegative, types.SentimentNeutral

	tests := []struct {
		name    string
		history []types.MessageHistoryItem
		want    types.Sentiment
	}{
		{"empty", nil, neu},
		{"majority", []types.MessageHistoryItem{item(types.RoleUser, neg), item(types.RoleBot, ""), item(types.RoleUser, neg), item(types.RoleUser, pos)}, neg},
		{"tie", []types.MessageHistoryItem{item(types.RoleUser, neg), item(types.RoleUser, pos)}, neu},
		{"window", []types.MessageHistoryItem{
			item(types.RoleUser, neg), item(types.RoleUser, neg), item(types.RoleUser, neg),
			item(types.RoleUser, pos), item(types.RoleUser, pos), item(types.RoleUser, pos),
			item(types.RoleUser, neu), item(types.RoleUser, neu),
		}, pos},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rollingSentiment(tt.history, sentimentWindow))
		})
	}
}

func TestWithContext_Resume(t *testing.T) {
	e := newTestEngine()
	for _, msg := range businessTurns[:5] {
		e.ProcessMessage(msg)
	}
	saved := e.Context()
	saved.ConversationStage = types.StageClosing // a tampered stage is re-derived

	resumed := newTestEngine(WithContext(saved))
	ctx := resumed.Context()
	assert.Equal(t, saved.SessionID, ctx.SessionID)
	assert.Equal(t, types.StageExploring, ctx.ConversationStage)

	resp := resumed.ProcessMessage(businessTurns[5])
	assert.Equal(t, types.StageDeepening, resp.Stage)
	assert.Equal(t, 6, resumed.Context().UserTurns)
}

func TestWithContext_TruncatesToLimit(t *testing.T) {
	e := newTestEngine()
	for _, msg := range businessTurns[:6] {
		e.ProcessMessage(msg)
	}
	resumed := newTestEngine(WithContext(e.Context()), WithHistoryLimit(4))
	assert.Len(t, resumed.Context().MessageHistory, 4)
}

func TestEngine_SeedDeterminism(t *testing.T) {
	run := func() []types.BotResponse {
		e := New(WithSeed(77), WithClock(steppingClock()))
		var out []types.BotResponse
		for _, msg := range append([]string{"hi", "how are you"}, businessTurns...) {
			out = append(out, e.ProcessMessage(msg))
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("same seed produced different responses:\n%s", diff)
	}
}

func TestWithConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.HistoryLimit = 6
	cfg.Engine.MaxFollowUps = 1
	cfg.Engine.Seed = 5

	e := New(WithConfig(cfg), WithClock(steppingClock()))
	for _, msg := range businessTurns {
		e.ProcessMessage(msg)
	}
	ctx := e.Context()
	assert.Len(t, ctx.MessageHistory, 6)
	assert.LessOrEqual(t, len(ctx.AskedQuestions), 1)
}
