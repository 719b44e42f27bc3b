package perception

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatbot/internal/types"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func TestIsSmallTalk(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		in   string
		want bool
	}{
		{"hi", true},
		{"how are you", true},
		{"thank you", true},
		{"tell me a joke", true},
		{"is it raining there", true},
		{"ok", true},
		{"lol", true},
		{"we need a new firewall", false},
		{"what do you offer", false},
		{"random question here", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n := Normalize(tt.in)
			intent := c.DetectIntent(n, nil)
			assert.Equal(t, tt.want, IsSmallTalk(n, intent.Type))
		})
	}
}

func TestIsSmallTalk_AckOnlyWhenUnclassified(t *testing.T) {
	assert.True(t, IsSmallTalk("ok", types.IntentGeneralInquiry))
	assert.False(t, IsSmallTalk("ok", types.IntentCloud))
}

func TestOpensWithGreeting(t *testing.T) {
	assert.True(t, OpensWithGreeting(Normalize("Hello, our wifi is down")))
	assert.True(t, OpensWithGreeting("good evening"))
	assert.False(t, OpensWithGreeting("say hi to the team"))
	assert.False(t, OpensWithGreeting(""))
}
