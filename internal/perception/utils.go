package perception

import (
	"strings"
	"unicode"
)

// maxMatchRunes bounds how much of an utterance the matchers look at.
const maxMatchRunes = 4096

// Normalize folds case and whitespace and strips punctuation other than
// apostrophes. Hyphens become spaces so "data-center" matches "data center". The result is for matching only; history and the
// sentiment analyzer receive the original text.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	if r := []rune(raw); len(r) > maxMatchRunes {
		raw = string(r[:maxMatchRunes])
	}

	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '’' || r == '‘' || r == '`':
			return '\''
		case r == '\'':
			return r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, raw)

	return strings.Join(strings.Fields(mapped), " ")
}

// Tokenize splits normalized text into words, trimming stray apostrophes and hyphens.
func Tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// containsWord reports whether phrase appears in s on word boundaries.
func containsWord(s, phrase string) bool {
	if phrase == "" {
		return false
	}
	for i := 0; ; {
		idx := strings.Index(s[i:], phrase)
		if idx < 0 {
			return false
		}
		start := i + idx
		end := start + len(phrase)
		if (start == 0 || s[start-1] == ' ') && (end == len(s) || s[end] == ' ') {
			return true
		}
		i = start + 1
		if i >= len(s) {
			return false
		}
	}
}
