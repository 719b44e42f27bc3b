// Package session implements the conversation engine: one Engine owns one
// ConversationContext and turns each user utterance into a BotResponse.
//
// Per turn:
//
//	Normalize → Classify + Sentiment → Update context → Small talk? → Select → Personality → Tone → Follow-up
//
// The engine performs no I/O and never sleeps. Pacing is computed by package
// ux and scheduled by the host. Calls on one Engine must be serialized by the
// caller; engines share no mutable state with each other.
package session

import (
	"slices"
	"time"

	"chatbot/internal/articulation"
	"chatbot/internal/config"
	"chatbot/internal/logging"
	"chatbot/internal/perception"
	"chatbot/internal/types"
)

// sentimentWindow is how many recent user turns vote on the rolling sentiment.
const sentimentWindow = 5

// Engine is the session-scoped dialogue state machine.
type Engine struct {
	ctx *types.ConversationContext

	classifier *perception.Classifier
	composer   *articulation.Composer

	// Construction parameters
	rng          types.RandomSource
	now          func() time.Time
	knowledge    *articulation.Knowledge
	historyLimit int
	maxFollowUps int
	restored     *types.ConversationContext
}

// Option configures an Engine.
type Option func(*Engine)

// WithContext resumes a previously saved context. The context is copied and
// repaired; its stage is re-derived from the user-turn count.
func WithContext(ctx types.ConversationContext) Option {
	return func(e *Engine) {
		c := ctx.Clone()
		e.restored = &c
	}
}

// WithRand injects the random source used for every variation and jitter decision.
func WithRand(rng types.RandomSource) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSeed is WithRand with a seeded generator. Zero seeds from the clock.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = types.NewRandomSource(seed) }
}

// WithClock overrides time.Now for timestamps and session start times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHistoryLimit bounds MessageHistory. Values below 2 are ignored.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n >= 2 {
			e.historyLimit = n
		}
	}
}

// WithMaxFollowUps caps follow-up questions per session.
func WithMaxFollowUps(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxFollowUps = n
		}
	}
}

// WithKnowledge replaces the embedded knowledge tables.
func WithKnowledge(k *articulation.Knowledge) Option {
	return func(e *Engine) { e.knowledge = k }
}

// WithClassifier replaces the default intent classifier.
func WithClassifier(c *perception.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithConfig applies the engine section of a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg == nil {
			return
		}
		WithHistoryLimit(cfg.Engine.HistoryLimit)(e)
		WithMaxFollowUps(cfg.Engine.MaxFollowUps)(e)
		if cfg.Engine.Seed != 0 {
			WithSeed(cfg.Engine.Seed)(e)
		}
	}
}

// New creates an engine with a fresh context unless WithContext is given.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:          time.Now,
		historyLimit: types.DefaultHistoryLimit,
		maxFollowUps: articulation.DefaultMaxFollowUps,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = types.NewRandomSource(0)
	}
	if e.classifier == nil {
		e.classifier = perception.NewClassifier()
	}
	e.composer = articulation.NewComposer(e.knowledge, e.rng, e.maxFollowUps)

	if e.restored != nil {
		e.ctx = e.restored
		e.restored = nil
		e.ctx.Normalize()
		e.truncateHistory()
		logging.Session("Resumed session %s at turn %d (%s)", e.ctx.SessionID, e.ctx.UserTurns, e.ctx.ConversationStage)
	} else {
		e.ctx = types.NewConversationContext(e.now())
		logging.Session("Started session %s", e.ctx.SessionID)
	}
	return e
}

// =============================================================================
// TURN PROCESSING
// =============================================================================

// ProcessMessage handles one user utterance. It is total: every string,
// including empty and very long ones, yields a response.
func (e *Engine) ProcessMessage(text string) types.BotResponse {
	timer := logging.StartTimer(logging.CategorySession, "ProcessMessage")
	defer timer.StopWithThreshold(50 * time.Millisecond)

	normalized := perception.Normalize(text)
	intent := e.classifier.DetectIntent(normalized, e.ctx)
	sentiment := perception.AnalyzeSentiment(text)

	e.ctx.UserTurns++
	e.appendHistory(types.MessageHistoryItem{
		Role:      types.RoleUser,
		Content:   text,
		Timestamp: e.now(),
		Intent:    intent.Type,
		Sentiment: sentiment.Sentiment,
	})
	e.updateUserContext(normalized, intent)

	// Small talk is gated on the stage as of the previous turn.
	if perception.IsSmallTalk(normalized, intent.Type) &&
		(e.ctx.ConversationStage == types.StageInitial || e.ctx.SmallTalkCount > 0) {
		reply := e.composer.HandleSmallTalk(normalized, intent.Type, e.ctx)
		e.appendBot(reply)
		e.ctx.ConversationStage = types.StageForTurns(e.ctx.UserTurns)

		logging.SessionDebug("turn=%d small talk topic=%s count=%d", e.ctx.UserTurns, e.ctx.LastSmallTalkTopic, e.ctx.SmallTalkCount)
		return types.BotResponse{
			Response:               reply,
			ShouldShowQuickReplies: e.ctx.SmallTalkCount >= 2,
			Sentiment:              sentiment.Sentiment,
			Intent:                 intent.Type,
			Stage:                  e.ctx.ConversationStage,
		}
	}

	reply := e.composer.SelectResponseVariation(intent, e.ctx, sentiment)
	reply = e.composer.ApplyPersonality(reply, e.ctx, sentiment)
	tone := articulation.ToneFor(intent.Type, sentiment)
	reply = articulation.ApplyTone(reply, tone)

	var followUps []string
	if e.composer.ShouldAskFollowUp(intent.Type, e.ctx) {
		if q, ok := e.composer.NextFollowUp(intent.Type, e.ctx); ok {
			followUps = []string{q}
			e.ctx.AskedQuestions = append(e.ctx.AskedQuestions, q)
			e.ctx.FollowUpQueue = e.composer.PendingFollowUps(intent.Type, e.ctx)
		}
	}

	e.appendBot(reply)
	e.ctx.ConversationStage = types.StageForTurns(e.ctx.UserTurns)

	stage := e.ctx.ConversationStage
	resp := types.BotResponse{
		Response:       reply,
		FollowUps:      followUps,
		ShouldShowForm: intent.Type == types.IntentQuoteRequest,
		ShouldShowQuickReplies: stage == types.StageClosing ||
			intent.Type == types.IntentThanks ||
			(stage == types.StageInitial && e.ctx.UserContext.HasGreeted),
		Sentiment: sentiment.Sentiment,
		Tone:      tone,
		Intent:    intent.Type,
		Stage:     stage,
	}

	logging.SessionDebug("turn=%d intent=%s (%.2f) sentiment=%s tone=%s stage=%s follow_ups=%d",
		e.ctx.UserTurns, intent.Type, intent.Confidence, sentiment.Sentiment, tone, stage, len(followUps))
	return resp
}

// updateUserContext folds the classified turn into the accumulated profile.
func (e *Engine) updateUserContext(normalized string, intent types.Intent) {
	uc := &e.ctx.UserContext

	if intent.Type == types.IntentGreeting || perception.OpensWithGreeting(normalized) {
		uc.HasGreeted = true
	}

	if intent.Type.IsBusiness() {
		uc.MentionedServices = appendUnique(uc.MentionedServices, string(intent.Type))
	}
	if !intent.Type.IsConversational() {
		e.ctx.CurrentTopic = intent.Type
		if !intent.Type.IsBusiness() {
			uc.ExpressedInterests = appendUnique(uc.ExpressedInterests, string(intent.Type))
		}
	}

	if ent := intent.Entities; ent != nil {
		for _, s := range ent.Services {
			uc.MentionedServices = appendUnique(uc.MentionedServices, s)
		}
		if ent.CompanySize != "" {
			uc.CompanySize = ent.CompanySize
		}
		if ent.Urgency != "" {
			uc.Urgency = ent.Urgency
		}
	}

	uc.Sentiment = rollingSentiment(e.ctx.MessageHistory, sentimentWindow)
}

// rollingSentiment is the majority over the last window user items; ties are neutral.
func rollingSentiment(history []types.MessageHistoryItem, window int) types.Sentiment {
	counts := make(map[types.Sentiment]int, 3)
	seen := 0
	for i := len(history) - 1; i >= 0 && seen < window; i-- {
		if history[i].Role != types.RoleUser {
			continue
		}
		counts[history[i].Sentiment]++
		seen++
	}

	best, bestCount, tie := types.SentimentNeutral, 0, false
	for _, s := range []types.Sentiment{types.SentimentPositive, types.SentimentNegative, types.SentimentNeutral} {
		switch n := counts[s]; {
		case n > bestCount:
			best, bestCount, tie = s, n, false
		case n == bestCount && n > 0:
			tie = true
		}
	}
	if tie || bestCount == 0 {
		return types.SentimentNeutral
	}
	return best
}

func (e *Engine) appendBot(text string) {
	e.appendHistory(types.MessageHistoryItem{
		Role:      types.RoleBot,
		Content:   text,
		Timestamp: e.now(),
	})
}

func (e *Engine) appendHistory(item types.MessageHistoryItem) {
	e.ctx.MessageHistory = append(e.ctx.MessageHistory, item)
	e.truncateHistory()
}

func (e *Engine) truncateHistory() {
	if over := len(e.ctx.MessageHistory) - e.historyLimit; over > 0 {
		e.ctx.MessageHistory = slices.Delete(e.ctx.MessageHistory, 0, over)
	}
}

func appendUnique(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

// =============================================================================
// HOST OPERATIONS
// =============================================================================

// ResetContext discards the session and starts a fresh one with a new ID.
func (e *Engine) ResetContext() {
	old := e.ctx.SessionID
	e.ctx = types.NewConversationContext(e.now())
	logging.Session("Reset session %s -> %s", old, e.ctx.SessionID)
}

// Context returns a deep copy of the current state.
func (e *Engine) Context() types.ConversationContext {
	return e.ctx.Clone()
}

// SessionID returns the current session identifier.
func (e *Engine) SessionID() string {
	return e.ctx.SessionID
}

// QuickReplies returns suggestions for the current stage.
func (e *Engine) QuickReplies() []string {
	return e.composer.QuickReplies(e.ctx.ConversationStage)
}

// Knowledge returns the tables the engine answers from.
func (e *Engine) Knowledge() *articulation.Knowledge {
	return e.composer.Knowledge()
}
