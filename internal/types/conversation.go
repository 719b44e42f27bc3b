package types

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit bounds MessageHistory; oldest entries are evicted first.
const DefaultHistoryLimit = 15

// Stage is a coarse phase of the dialogue derived from the user-turn count.
type Stage string

const (
	StageInitial   Stage = "initial"
	StageExploring Stage = "exploring"
	StageDeepening Stage = "deepening"
	StageClosing   Stage = "closing"
)

// StageForTurns returns the stage for a cumulative number of user turns.
// The mapping is monotonic, so the stage never regresses as turns accrue.
func StageForTurns(userTurns int) Stage {
	switch {
	case userTurns <= 2:
		return StageInitial
	case userTurns <= 5:
		return StageExploring
	case userTurns <= 8:
		return StageDeepening
	default:
		return StageClosing
	}
}

// Rank orders stages so callers can assert monotonic progression.
func (s Stage) Rank() int {
	switch s {
	case StageExploring:
		return 1
	case StageDeepening:
		return 2
	case StageClosing:
		return 3
	default:
		return 0
	}
}

// Role identifies who produced a history item.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// MessageHistoryItem is one immutable entry of the transcript.
type MessageHistoryItem struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Intent    IntentType `json:"intent,omitempty"`
	Sentiment Sentiment  `json:"sentiment,omitempty"`
}

// UserContext is the profile accumulated over a session.
type UserContext struct {
	HasGreeted         bool      `json:"has_greeted"`
	MentionedServices  []string  `json:"mentioned_services"`
	ExpressedInterests []string  `json:"expressed_interests"`
	Sentiment          Sentiment `json:"sentiment"`
	CompanySize        string    `json:"company_size,omitempty"`
	Urgency            string    `json:"urgency,omitempty"`
}

// ConversationContext is the whole mutable state of one chat session.
// It is owned by exactly one engine and is safe to serialize and restore.
type ConversationContext struct {
	SessionID          string               `json:"session_id"`
	StartTime          time.Time            `json:"start_time"`
	MessageHistory     []MessageHistoryItem `json:"message_history"`
	CurrentTopic       IntentType           `json:"current_topic,omitempty"`
	ConversationStage  Stage                `json:"conversation_stage"`
	UserTurns          int                  `json:"user_turns"`
	AskedQuestions     []string             `json:"asked_questions"`
	FollowUpQueue      []string             `json:"follow_up_queue"`
	UserContext        UserContext          `json:"user_context"`
	SmallTalkCount     int                  `json:"small_talk_count"`
	LastSmallTalkTopic IntentType           `json:"last_small_talk_topic,omitempty"`
}

// NewConversationContext returns a context with creation-time defaults and a fresh session ID.
func NewConversationContext(now time.Time) *ConversationContext {
	return &ConversationContext{
		SessionID:         uuid.NewString(),
		StartTime:         now,
		MessageHistory:    []MessageHistoryItem{},
		ConversationStage: StageInitial,
		AskedQuestions:    []string{},
		FollowUpQueue:     []string{},
		UserContext: UserContext{
			MentionedServices:  []string{},
			ExpressedInterests: []string{},
			Sentiment:          SentimentNeutral,
		},
	}
}

// Clone returns a deep copy so snapshots never alias engine state.
func (c *ConversationContext) Clone() ConversationContext {
	out := *c
	out.MessageHistory = slices.Clone(c.MessageHistory)
	out.AskedQuestions = slices.Clone(c.AskedQuestions)
	out.FollowUpQueue = slices.Clone(c.FollowUpQueue)
	out.UserContext.MentionedServices = slices.Clone(c.UserContext.MentionedServices)
	out.UserContext.ExpressedInterests = slices.Clone(c.UserContext.ExpressedInterests)
	return out
}

// Normalize repairs a restored context so nil slices and missing fields
// behave like a fresh one. The stage is re-derived from UserTurns.
func (c *ConversationContext) Normalize() {
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.MessageHistory == nil {
		c.MessageHistory = []MessageHistoryItem{}
	}
	if c.AskedQuestions == nil {
		c.AskedQuestions = []string{}
	}
	if c.FollowUpQueue == nil {
		c.FollowUpQueue = []string{}
	}
	if c.UserContext.MentionedServices == nil {
		c.UserContext.MentionedServices = []string{}
	}
	if c.UserContext.ExpressedInterests == nil {
		c.UserContext.ExpressedInterests = []string{}
	}
	if c.UserContext.Sentiment == "" {
		c.UserContext.Sentiment = SentimentNeutral
	}
	if c.UserTurns < 0 {
		c.UserTurns = 0
	}
	c.ConversationStage = StageForTurns(c.UserTurns)
}

// UserMessages returns the user entries still present in the bounded history.
func (c *ConversationContext) UserMessages() []MessageHistoryItem {
	var out []MessageHistoryItem
	for _, item := range c.MessageHistory {
		if item.Role == RoleUser {
			out = append(out, item)
		}
	}
	return out
}
