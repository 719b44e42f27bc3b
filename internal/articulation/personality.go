package articulation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"chatbot/internal/types"
)

// =============================================================================
// PERSONALITY
// =============================================================================

const (
	empathyThreshold = 0.7
	fillerChance     = 0.2
	ackChance        = 0.3
	ackMinUserTurns  = 2 // acknowledgements start after this many user turns
)

// ApplyPersonality decorates selected text. Rules run in order:
// empathy prefix, filler, acknowledgement prefix. Random draws happen only
// when a rule's stage gate is open.
func (c *Composer) ApplyPersonality(text string, ctx *types.ConversationContext, sentiment types.SentimentAnalysis) string {
	stage := ctx.ConversationStage
	late := stage == types.StageDeepening || stage == types.StageClosing

	if !late {
		if phrase := c.empathyPhrase(ctx, sentiment); phrase != "" {
			text = phrase + " " + text
		}
	}

	if (stage == types.StageExploring || stage == types.StageDeepening) && c.rng.Float64() < fillerChance {
		text = insertFiller(text, c.pick(c.knowledge.Fillers))
	}

	if ctx.UserTurns > ackMinUserTurns && stage != types.StageInitial && c.rng.Float64() < ackChance {
		text = c.pick(c.knowledge.Acknowledgements) + " " + text
	}

	return text
}

func (c *Composer) empathyPhrase(ctx *types.ConversationContext, sentiment types.SentimentAnalysis) string {
	if ctx.UserContext.Urgency == "high" {
		return c.pick(c.knowledge.Empathy.Urgent)
	}
	if sentiment.Confidence <= empathyThreshold {
		return ""
	}
	switch sentiment.Sentiment {
	case types.SentimentPositive:
		return c.pick(c.knowledge.Empathy.Positive)
	case types.SentimentNegative:
		return c.pick(c.knowledge.Empathy.Negative)
	}
	return ""
}

// insertFiller places filler after the first sentence when that sentence ends
// before the midpoint of text, otherwise at the start.
func insertFiller(text, filler string) string {
	if filler == "" {
		return text
	}
	if i := firstSentenceEnd(text); i >= 0 && i < len(text)/2 {
		rest := strings.TrimLeft(text[i+1:], " ")
		if rest == "" {
			return text + " " + filler
		}
		return text[:i+1] + " " + filler + " " + rest
	}
	return filler + " " + text
}

// firstSentenceEnd returns the byte index of the first terminator followed by a space.
func firstSentenceEnd(text string) int {
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				return i
			}
		}
	}
	return -1
}

// =============================================================================
// TONE
// =============================================================================

// ToneFor chooses the tone for a turn: sentiment first, then intent class.
func ToneFor(intentType types.IntentType, sentiment types.SentimentAnalysis) types.Tone {
	switch sentiment.Sentiment {
	case types.SentimentNegative:
		return types.ToneEmpathetic
	case types.SentimentPositive:
		return types.ToneEnthusiastic
	}
	switch intentType {
	case types.IntentGreeting, types.IntentHowAreYou, types.IntentThanks,
		types.IntentJoke, types.IntentWeather, types.IntentSmallTalk:
		return types.ToneFriendly
	}
	return types.ToneFormal
}

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

func rewrites(pairs ...string) []rewrite {
	out := make([]rewrite, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, rewrite{re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(pairs[i]) + `\b`), repl: pairs[i+1]})
	}
	return out
}

var expansions = rewrites(
	"I'm", "I am", "I'll", "I will", "I'd", "I would", "I've", "I have",
	"we're", "we are", "we'll", "we will", "we've", "we have", "we'd", "we would",
	"you're", "you are", "you'll", "you will", "you've", "you have", "you'd", "you would",
	"it's", "it is", "that's", "that is", "there's", "there is", "here's", "here is",
	"what's", "what is", "let's", "let us",
	"don't", "do not", "doesn't", "does not", "didn't", "did not", "isn't", "is not",
	"aren't", "are not", "won't", "will not", "can't", "cannot", "couldn't", "could not",
	"shouldn't", "should not", "wouldn't", "would not",
)

// contractions only covers phrases that never end a clause, where contracting would read wrong.
var contractions = rewrites(
	"do not", "don't", "does not", "doesn't", "did not", "didn't", "cannot", "can't",
	"will not", "won't", "I will", "I'll", "we will", "we'll", "you will", "you'll",
)

// ApplyTone rewrites contractions and exclamations for the tone.
func ApplyTone(text string, tone types.Tone) string {
	if text == "" {
		return text
	}
	switch tone {
	case types.ToneFormal:
		text = applyRewrites(text, expansions)
		text = calmExclamations(text)
	case types.ToneFriendly:
		text = applyRewrites(text, contractions)
	case types.ToneEnthusiastic:
		text = applyRewrites(text, contractions)
		if !strings.Contains(text, "!") && strings.HasSuffix(text, ".") {
			text = strings.TrimSuffix(text, ".") + "!"
		}
	case types.ToneEmpathetic:
		text = applyRewrites(text, contractions)
		text = calmExclamations(text)
	}
	return text
}

func applyRewrites(text string, rules []rewrite) string {
	for _, r := range rules {
		text = r.re.ReplaceAllStringFunc(text, func(m string) string {
			return matchCase(m, r.repl)
		})
	}
	return text
}

// matchCase capitalizes repl when the match started with an upper-case letter.
func matchCase(match, repl string) string {
	first, _ := utf8.DecodeRuneInString(match)
	if !unicode.IsUpper(first) {
		return repl
	}
	r, size := utf8.DecodeRuneInString(repl)
	return string(unicode.ToUpper(r)) + repl[size:]
}

var exclamationRun = regexp.MustCompile(`!+`)

func calmExclamations(text string) string {
	return exclamationRun.ReplaceAllString(text, ".")
}
