package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestStageForTurns(t *testing.T) {
	cases := map[int]Stage{
		0: StageInitial, 1: StageInitial, 2: StageInitial,
		3: StageExploring, 5: StageExploring,
		6: StageDeepening, 8: StageDeepening,
		9: StageClosing, 40: StageClosing,
	}
	for turns, want := range cases {
		if got := StageForTurns(turns); got != want {
			t.Errorf("StageForTurns(%d) = %s, want %s", turns, got, want)
		}
	}
}

func TestStageForTurns_Monotonic(t *testing.T) {
	prev := StageForTurns(0).Rank()
	for n := 1; n < 50; n++ {
		r := StageForTurns(n).Rank()
		if r < prev {
			t.Fatalf("stage regressed at turn %d", n)
		}
		prev = r
	}
}

func TestParseIntentType(t *testing.T) {
	if ParseIntentType(" WIFI ") != IntentWifi {
		t.Fatalf("expected wifi")
	}
	if ParseIntentType("nonsense") != IntentGeneralInquiry {
		t.Fatalf("unknown tags should fall back to general_inquiry")
	}
}

func TestIntentType_Classes(t *testing.T) {
	if !IntentCloud.IsBusiness() || IntentGreeting.IsBusiness() {
		t.Fatalf("business classification wrong")
	}
	if !IntentJoke.IsConversational() || IntentQuoteRequest.IsConversational() {
		t.Fatalf("conversational classification wrong")
	}
}

func TestConversationContext_CloneDoesNotAlias(t *testing.T) {
	c := NewConversationContext(time.Unix(0, 0))
	c.MessageHistory = append(c.MessageHistory, MessageHistoryItem{Role: RoleUser, Content: "hi"})
	c.UserContext.MentionedServices = append(c.UserContext.MentionedServices, "wifi")

	snap := c.Clone()
	c.MessageHistory[0].Content = "changed"
	c.UserContext.MentionedServices[0] = "cloud"

	if snap.MessageHistory[0].Content != "hi" {
		t.Fatalf("history aliased: %q", snap.MessageHistory[0].Content)
	}
	if snap.UserContext.MentionedServices[0] != "wifi" {
		t.Fatalf("services aliased: %q", snap.UserContext.MentionedServices[0])
	}
}

func TestConversationContext_JSONRoundTripKeepsState(t *testing.T) {
	c := NewConversationContext(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	c.UserTurns = 4
	c.CurrentTopic = IntentCloud
	c.MessageHistory = append(c.MessageHistory, MessageHistoryItem{
		Role: RoleUser, Content: "cloud?", Timestamp: c.StartTime, Intent: IntentCloud, Sentiment: SentimentNeutral,
	})

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored ConversationContext
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(c.Clone(), restored.Clone()); diff != "" {
		t.Fatalf("restored context differs (-want +got):\n%s", diff)
	}
}

func TestConversationContext_NormalizeRederivesStage(t *testing.T) {
	c := &ConversationContext{UserTurns: 7, ConversationStage: StageInitial}
	c.Normalize()

	if c.SessionID == "" {
		t.Fatalf("expected a session id to be assigned")
	}
	if c.ConversationStage != StageDeepening {
		t.Fatalf("expected deepening, got %s", c.ConversationStage)
	}
	if c.MessageHistory == nil || c.UserContext.MentionedServices == nil {
		t.Fatalf("expected nil slices to be replaced")
	}
	if c.UserContext.Sentiment != SentimentNeutral {
		t.Fatalf("expected neutral default sentiment")
	}
}

func TestNewRandomSource_Seeded(t *testing.T) {
	a := NewRandomSource(42)
	b := NewRandomSource(42)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("seeded sources diverged at %d", i)
		}
	}
}

func TestSequenceSource(t *testing.T) {
	src := NewSequenceSource(0.1, 0.5, 0.99)
	assert.InDelta(t, 0.1, src.Float64(), 1e-9)
	assert.Equal(t, 2, src.IntN(4))
	assert.Equal(t, 3, src.IntN(4))
	assert.InDelta(t, 0.1, src.Float64(), 1e-9, "cycles")

	assert.Equal(t, 0, NewSequenceSource().IntN(10))
	assert.Equal(t, 0.0, NewSequenceSource(1.5).Float64(), "out of range values collapse to zero")
}
