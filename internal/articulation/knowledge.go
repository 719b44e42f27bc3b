package articulation

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"chatbot/internal/logging"
	"chatbot/internal/types"
)

// =============================================================================
// KNOWLEDGE TABLES
// =============================================================================
// Knowledge is static, read-only data loaded once at startup. The default set
// is baked into the binary; engine.knowledge_path may replace it.

//go:embed knowledge/knowledge.yaml
var embeddedKnowledge []byte

// Knowledge holds every phrase pool the composer draws from.
type Knowledge struct {
	Responses        map[types.IntentType][]Variation `yaml:"responses"`
	FollowUps        map[types.IntentType][]string    `yaml:"follow_ups"`
	SmallTalk        map[types.IntentType][]string    `yaml:"small_talk"`
	SmallTalkNudges  []string                         `yaml:"small_talk_nudges"`
	Empathy          EmpathyPhrases                   `yaml:"empathy"`
	Fillers          []string                         `yaml:"fillers"`
	Acknowledgements []string                         `yaml:"acknowledgements"`
	QuickReplies     map[types.Stage][]string         `yaml:"quick_replies"`
}

// EmpathyPhrases are keyed by what triggered them.
type EmpathyPhrases struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
	Urgent   []string `yaml:"urgent"`
}

// Variation is one phrasing of a response.
type Variation struct {
	Text       string             `yaml:"text"`
	Weight     float64            `yaml:"weight"` // <= 0 counts as 1
	Conditions *ContextConditions `yaml:"conditions,omitempty"`
}

// ContextConditions restrict when a variation may be chosen.
// Empty selectors match everything.
type ContextConditions struct {
	Stages     []types.Stage     `yaml:"stages,omitempty"`
	Sentiments []types.Sentiment `yaml:"sentiments,omitempty"`
	MinTurns   int               `yaml:"min_turns,omitempty"`
	MaxTurns   int               `yaml:"max_turns,omitempty"` // 0 = unbounded
	HasGreeted *bool             `yaml:"has_greeted,omitempty"`
}

// Matches reports whether every selector holds for the session and the current sentiment.
func (c *ContextConditions) Matches(ctx *types.ConversationContext, sentiment types.Sentiment) bool {
	if c == nil {
		return true
	}
	if !matchSelector(c.Stages, ctx.ConversationStage) {
		return false
	}
	if !matchSelector(c.Sentiments, sentiment) {
		return false
	}
	if c.MinTurns > 0 && ctx.UserTurns < c.MinTurns {
		return false
	}
	if c.MaxTurns > 0 && ctx.UserTurns > c.MaxTurns {
		return false
	}
	if c.HasGreeted != nil && *c.HasGreeted != ctx.UserContext.HasGreeted {
		return false
	}
	return true
}

func matchSelector[T comparable](selector []T, value T) bool {
	return len(selector) == 0 || slices.Contains(selector, value)
}

// ParseKnowledge decodes and validates a knowledge document.
func ParseKnowledge(data []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge: %w", err)
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

// LoadKnowledge reads a knowledge file from disk.
func LoadKnowledge(path string) (*Knowledge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge %s: %w", path, err)
	}
	k, err := ParseKnowledge(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logging.Get(logging.CategoryArticulation).Info("Loaded knowledge from %s (%d intents)", path, len(k.Responses))
	return k, nil
}

// Validate checks the pools the composer cannot work without.
func (k *Knowledge) Validate() error {
	if len(k.Responses[types.IntentGeneralInquiry]) == 0 {
		return fmt.Errorf("knowledge: responses.%s must not be empty", types.IntentGeneralInquiry)
	}
	for intent, vars := range k.Responses {
		for i, v := range vars {
			if v.Text == "" {
				return fmt.Errorf("knowledge: responses.%s[%d] has empty text", intent, i)
			}
		}
	}
	switch {
	case len(k.Empathy.Positive) == 0, len(k.Empathy.Negative) == 0, len(k.Empathy.Urgent) == 0:
		return fmt.Errorf("knowledge: empathy pools must not be empty")
	case len(k.Fillers) == 0:
		return fmt.Errorf("knowledge: fillers must not be empty")
	case len(k.Acknowledgements) == 0:
		return fmt.Errorf("knowledge: acknowledgements must not be empty")
	case len(k.SmallTalk[types.IntentSmallTalk]) == 0:
		return fmt.Errorf("knowledge: small_talk.%s must not be empty", types.IntentSmallTalk)
	}
	return nil
}

var (
	defaultKnowledgeOnce sync.Once
	defaultKnowledge     *Knowledge
	defaultKnowledgeErr  error
)

// DefaultKnowledge returns the embedded knowledge, parsed on first use.
func DefaultKnowledge() (*Knowledge, error) {
	defaultKnowledgeOnce.Do(func() {
		timer := logging.StartTimer(logging.CategoryArticulation, "DefaultKnowledge")
		defer timer.Stop()
		defaultKnowledge, defaultKnowledgeErr = ParseKnowledge(embeddedKnowledge)
	})
	return defaultKnowledge, defaultKnowledgeErr
}

// MustDefaultKnowledge is DefaultKnowledge for callers that treat a broken
// embedded table as a build defect.
func MustDefaultKnowledge() *Knowledge {
	k, err := DefaultKnowledge()
	if err != nil {
		panic(err)
	}
	return k
}
