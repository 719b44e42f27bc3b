package perception

import "chatbot/internal/types"

// smallTalkIntents are social intents answered outside the business flow.
var smallTalkIntents = map[types.IntentType]bool{
	types.IntentGreeting:  true,
	types.IntentHowAreYou: true,
	types.IntentThanks:    true,
	types.IntentJoke:      true,
	types.IntentWeather:   true,
	types.IntentSmallTalk: true,
}

// acknowledgements are bare reactions that carry no business content.
var acknowledgements = map[string]bool{
	"ok": true, "okay": true, "k": true, "cool": true, "nice": true, "great": true,
	"awesome": true, "alright": true, "lol": true, "haha": true, "hehe": true,
	"hmm": true, "ok cool": true, "okay cool": true, "nice one": true, "wow": true,
}

// IsSmallTalk reports whether an utterance is social chatter rather than a business request.
// Whether small talk is currently handled also depends on session state; see session.Engine.
func IsSmallTalk(normalized string, intentType types.IntentType) bool {
	if smallTalkIntents[intentType] {
		return true
	}
	return intentType == types.IntentGeneralInquiry && acknowledgements[normalized]
}

// OpensWithGreeting reports whether the utterance starts with a greeting,
// even when a business intent wins classification ("hello, our wifi is down").
func OpensWithGreeting(normalized string) bool {
	for _, p := range greetingOpeners {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}
