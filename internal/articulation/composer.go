// Package articulation turns a classified utterance into response text:
// variation selection, follow-ups, small talk, personality, and tone.
package articulation

import (
	"slices"
	"strings"

	"chatbot/internal/logging"
	"chatbot/internal/types"
)

// DefaultMaxFollowUps caps follow-up questions per session.
const DefaultMaxFollowUps = 3

// complexIntents are the business topics deep enough to warrant follow-up questions.
var complexIntents = map[types.IntentType]bool{
	types.IntentDatacenter: true,
	types.IntentSecurity:   true,
	types.IntentCloud:      true,
	types.IntentManaged:    true,
	types.IntentCabling:    true,
	types.IntentWifi:       true,
}

// Composer selects and shapes response text. All randomness flows through
// the injected source, so a fixed source yields fixed output.
type Composer struct {
	knowledge    *Knowledge
	rng          types.RandomSource
	maxFollowUps int
}

// NewComposer creates a composer. A nil knowledge uses the embedded tables;
// a nil rng gets a clock-seeded source.
func NewComposer(k *Knowledge, rng types.RandomSource, maxFollowUps int) *Composer {
	if k == nil {
		k = MustDefaultKnowledge()
	}
	if rng == nil {
		rng = types.NewRandomSource(0)
	}
	if maxFollowUps < 0 {
		maxFollowUps = DefaultMaxFollowUps
	}
	return &Composer{knowledge: k, rng: rng, maxFollowUps: maxFollowUps}
}

// Knowledge returns the tables in use.
func (c *Composer) Knowledge() *Knowledge {
	return c.knowledge
}

// =============================================================================
// RESPONSE SELECTION
// =============================================================================

// SelectResponseVariation picks one phrasing for the intent. Variations whose
// conditions hold are sampled by weight; when none hold, the unconditioned
// variations are used; an intent without variations borrows general_inquiry.
func (c *Composer) SelectResponseVariation(intent types.Intent, ctx *types.ConversationContext, sentiment types.SentimentAnalysis) string {
	pool := c.knowledge.Responses[intent.Type]
	if len(pool) == 0 {
		pool = c.knowledge.Responses[types.IntentGeneralInquiry]
	}

	var qualifying []Variation
	for _, v := range pool {
		if v.Conditions.Matches(ctx, sentiment.Sentiment) {
			qualifying = append(qualifying, v)
		}
	}
	if len(qualifying) == 0 {
		for _, v := range pool {
			if v.Conditions == nil {
				qualifying = append(qualifying, v)
			}
		}
	}
	if len(qualifying) == 0 {
		qualifying = pool
	}

	chosen := c.weightedPick(qualifying)
	logging.ArticulationDebug("intent=%s stage=%s candidates=%d/%d", intent.Type, ctx.ConversationStage, len(qualifying), len(pool))
	return chosen.Text
}

func (c *Composer) weightedPick(vars []Variation) Variation {
	total := 0.0
	for _, v := range vars {
		total += weightOf(v)
	}
	r := c.rng.Float64() * total
	for _, v := range vars {
		r -= weightOf(v)
		if r < 0 {
			return v
		}
	}
	return vars[len(vars)-1]
}

func weightOf(v Variation) float64 {
	if v.Weight <= 0 {
		return 1
	}
	return v.Weight
}

// =============================================================================
// FOLLOW-UPS
// =============================================================================

// ShouldAskFollowUp reports whether a follow-up question may accompany this turn.
func (c *Composer) ShouldAskFollowUp(intentType types.IntentType, ctx *types.ConversationContext) bool {
	if intentType.IsConversational() || intentType == types.IntentQuoteRequest {
		return false
	}
	if len(ctx.AskedQuestions) >= c.maxFollowUps {
		return false
	}
	if !complexIntents[intentType] {
		return false
	}
	return ctx.ConversationStage == types.StageExploring || ctx.ConversationStage == types.StageDeepening
}

// NextFollowUp returns the first question for the intent not yet asked this session.
func (c *Composer) NextFollowUp(intentType types.IntentType, ctx *types.ConversationContext) (string, bool) {
	for _, q := range c.knowledge.FollowUps[intentType] {
		if !slices.Contains(ctx.AskedQuestions, q) {
			return q, true
		}
	}
	return "", false
}

// PendingFollowUps lists the questions for the intent still unasked, in order.
func (c *Composer) PendingFollowUps(intentType types.IntentType, ctx *types.ConversationContext) []string {
	pending := []string{}
	for _, q := range c.knowledge.FollowUps[intentType] {
		if !slices.Contains(ctx.AskedQuestions, q) {
			pending = append(pending, q)
		}
	}
	return pending
}

// =============================================================================
// SMALL TALK
// =============================================================================

// HandleSmallTalk answers a social utterance and records it on the context.
// From the second exchange on, a nudge back toward business topics is appended.
func (c *Composer) HandleSmallTalk(normalized string, intentType types.IntentType, ctx *types.ConversationContext) string {
	topic := intentType
	if len(c.knowledge.SmallTalk[topic]) == 0 {
		topic = types.IntentSmallTalk
	}

	ctx.SmallTalkCount++
	ctx.LastSmallTalkTopic = topic

	reply := c.pick(c.knowledge.SmallTalk[topic])
	if ctx.SmallTalkCount >= 2 && len(c.knowledge.SmallTalkNudges) > 0 {
		reply = reply + " " + c.pick(c.knowledge.SmallTalkNudges)
	}

	logging.ArticulationDebug("small talk topic=%s count=%d input_len=%d", topic, ctx.SmallTalkCount, len(normalized))
	return reply
}

// QuickReplies returns the suggested replies for a stage.
func (c *Composer) QuickReplies(stage types.Stage) []string {
	if replies, ok := c.knowledge.QuickReplies[stage]; ok {
		return slices.Clone(replies)
	}
	return slices.Clone(c.knowledge.QuickReplies[types.StageInitial])
}

func (c *Composer) pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return strings.TrimSpace(pool[c.rng.IntN(len(pool))])
}
