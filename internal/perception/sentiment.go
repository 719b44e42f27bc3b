package perception

import (
	"math"
	"strings"
	"unicode"

	"chatbot/internal/types"
)

// =============================================================================
// SENTIMENT LEXICON
// =============================================================================

var positiveWords = map[string]float64{
	"good": 1, "great": 1, "nice": 1, "cool": 1, "glad": 1, "happy": 1, "like": 0.5,
	"thanks": 1, "thank": 1, "helpful": 1, "pleased": 1, "appreciate": 1, "best": 1,
	"satisfied": 1, "interested": 0.5, "fine": 0.5, "reliable": 1, "fast": 1,
	"awesome": 2, "amazing": 2, "excellent": 2, "love": 2, "perfect": 2, "fantastic": 2,
	"wonderful": 2, "impressed": 2, "excited": 2, "brilliant": 2, "outstanding": 2, "superb": 2,
}

var negativeWords = map[string]float64{
	"bad": 1, "slow": 1, "problem": 1, "problems": 1, "issue": 1, "issues": 1, "annoyed": 1,
	"annoying": 1, "poor": 1, "upset": 1, "fail": 1, "failed": 1, "failing": 1, "expensive": 1,
	"worried": 1, "concerned": 1, "confused": 1, "stuck": 1, "crash": 1, "crashed": 1,
	"crashing": 1, "unreliable": 1, "dropping": 1, "difficult": 1, "sucks": 1.5,
	"terrible": 2, "awful": 2, "horrible": 2, "hate": 2, "angry": 2, "frustrated": 2,
	"frustrating": 2, "broken": 2, "worst": 2, "disappointed": 2, "useless": 2, "unhappy": 2,
	"ridiculous": 2, "nightmare": 2, "outage": 2, "hacked": 2, "furious": 2,
}

var intensifiers = map[string]float64{
	"very": 1.5, "really": 1.5, "so": 1.5, "extremely": 2, "super": 1.5,
	"incredibly": 2, "totally": 1.5, "absolutely": 2, "completely": 1.5,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "don't": true, "dont": true, "isn't": true,
	"isnt": true, "wasn't": true, "wasnt": true, "can't": true, "cant": true, "won't": true,
	"wont": true, "doesn't": true, "doesnt": true, "didn't": true, "didnt": true,
	"hardly": true, "aren't": true, "arent": true, "nothing": true,
}

const (
	neutralNoEvidence = 0.2
	neutralBalanced   = 0.5
	polarBase         = 0.5
	polarStep         = 0.12
	emphasisWeight    = 0.5
	maxExclamations   = 3
	maxShoutedWords   = 2
)

// AnalyzeSentiment scores the raw utterance. It is a pure function of text:
// punctuation and capitalization are read before any folding.
func AnalyzeSentiment(raw string) types.SentimentAnalysis {
	if r := []rune(raw); len(r) > maxMatchRunes {
		raw = string(r[:maxMatchRunes])
	}
	raw = strings.ReplaceAll(raw, "’", "'")

	words := sentimentTokens(raw)
	var (
		score      float64
		indicators []string
		polarHits  int
	)

	for i, w := range words {
		lower := strings.ToLower(w)
		weight, sign := 0.0, 0.0
		if v, ok := positiveWords[lower]; ok {
			weight, sign = v, 1
		} else if v, ok := negativeWords[lower]; ok {
			weight, sign = v, -1
		}
		if weight == 0 {
			continue
		}
		polarHits++

		label := lower
		if i > 0 {
			if m, ok := intensifiers[strings.ToLower(words[i-1])]; ok {
				weight *= m
				label = strings.ToLower(words[i-1]) + " " + label
			}
		}
		if negatedAt(words, i) {
			sign = -sign
			label = "not " + label
		}
		score += sign * weight
		indicators = append(indicators, label)
	}

	if polarHits == 0 {
		return types.SentimentAnalysis{
			Sentiment:           types.SentimentNeutral,
			Confidence:          neutralNoEvidence,
			EmotionalIndicators: []string{},
		}
	}

	if score != 0 {
		dir := math.Copysign(1, score)
		if n := min(strings.Count(raw, "!"), maxExclamations); n > 0 {
			score += dir * emphasisWeight * float64(n)
			indicators = append(indicators, strings.Repeat("!", n))
		}
		shouted := 0
		for _, w := range words {
			if shouted >= maxShoutedWords {
				break
			}
			if isShouted(w) {
				score += dir * emphasisWeight
				indicators = append(indicators, w)
				shouted++
			}
		}
	}

	switch {
	case score > 0:
		return types.SentimentAnalysis{Sentiment: types.SentimentPositive, Confidence: polarConfidence(score), EmotionalIndicators: indicators}
	case score < 0:
		return types.SentimentAnalysis{Sentiment: types.SentimentNegative, Confidence: polarConfidence(score), EmotionalIndicators: indicators}
	default:
		return types.SentimentAnalysis{Sentiment: types.SentimentNeutral, Confidence: neutralBalanced, EmotionalIndicators: indicators}
	}
}

func polarConfidence(score float64) float64 {
	return math.Min(1, polarBase+polarStep*math.Abs(score))
}

// negatedAt reports whether one of the two preceding tokens negates words[i].
func negatedAt(words []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if negators[strings.ToLower(words[j])] {
			return true
		}
	}
	return false
}

// isShouted: an all-caps word of three or more letters.
func isShouted(w string) bool {
	letters := 0
	for _, r := range w {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 3
}

// sentimentTokens splits raw text on anything but letters and apostrophes, keeping case.
func sentimentTokens(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return !(unicode.IsLetter(r) || r == '\'')
	})
}
