package ux

import (
	"regexp"
	"strings"
	"time"

	"chatbot/internal/config"
	"chatbot/internal/logging"
	"chatbot/internal/types"
)

// =============================================================================
// TIMING CONFIGURATION
// =============================================================================

// TimingConfig holds the typing-delay parameters.
type TimingConfig struct {
	BaseDelay         time.Duration
	CharacterFactor   time.Duration
	RandomVariation   float64 // fraction, 0.3 = ±30%
	MinDelay          time.Duration
	MaxDelay          time.Duration
	FollowUpDelay     time.Duration
	FollowUpVariation float64
	Disabled          bool // every delay is zero
}

// DefaultTimingConfig returns the stock pacing.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		BaseDelay:         500 * time.Millisecond,
		CharacterFactor:   15 * time.Millisecond,
		RandomVariation:   0.3,
		MinDelay:          800 * time.Millisecond,
		MaxDelay:          4000 * time.Millisecond,
		FollowUpDelay:     1500 * time.Millisecond,
		FollowUpVariation: 0.2,
	}
}

// TimingFromConfig builds a TimingConfig from the timing section of cfg.
func TimingFromConfig(cfg *config.Config) TimingConfig {
	if cfg == nil {
		return DefaultTimingConfig()
	}
	return TimingConfig{
		BaseDelay:         cfg.GetBaseDelay(),
		CharacterFactor:   cfg.GetCharacterFactor(),
		RandomVariation:   cfg.Timing.RandomVariation,
		MinDelay:          cfg.GetMinDelay(),
		MaxDelay:          cfg.GetMaxDelay(),
		FollowUpDelay:     cfg.GetFollowUpDelay(),
		FollowUpVariation: cfg.Timing.FollowUpVariation,
		Disabled:          cfg.Timing.DisableSimulation,
	}
}

// Fixed bounds for the auxiliary delays.
const (
	thinkingBase      = 600 * time.Millisecond
	thinkingVariation = 0.3
	thinkingMin       = 400 * time.Millisecond
	thinkingMax       = 1200 * time.Millisecond

	readingBase      = 250 * time.Millisecond
	readingPerWord   = 40 * time.Millisecond
	readingVariation = 0.2
	readingMin       = 500 * time.Millisecond
	readingMax       = 6000 * time.Millisecond
	charsPerWord     = 5

	chunkMin = 400 * time.Millisecond
	chunkMax = 2500 * time.Millisecond

	// maxLength caps length arithmetic; anything longer already saturates every ceiling.
	maxLength = 1 << 20
)

// =============================================================================
// SIMULATOR
// =============================================================================

// Simulator computes delays. It holds no state beyond its random source, so
// one Simulator per session keeps sessions independent.
type Simulator struct {
	cfg TimingConfig
	rng types.RandomSource
}

// NewSimulator creates a simulator. A nil rng gets a clock-seeded source.
func NewSimulator(cfg TimingConfig, rng types.RandomSource) *Simulator {
	if rng == nil {
		rng = types.NewRandomSource(0)
	}
	return &Simulator{cfg: cfg, rng: rng}
}

// Config returns the parameters in use.
func (s *Simulator) Config() TimingConfig {
	return s.cfg
}

// TypingDelay returns the pause before showing a message of length characters.
func (s *Simulator) TypingDelay(length int) time.Duration {
	if s.cfg.Disabled {
		return 0
	}
	return s.lengthDelay(length, s.cfg.MinDelay, s.cfg.MaxDelay)
}

// FollowUpDelay returns the pause between a response and a follow-up message.
func (s *Simulator) FollowUpDelay() time.Duration {
	if s.cfg.Disabled {
		return 0
	}
	lo, hi := spread(s.cfg.FollowUpDelay, s.cfg.FollowUpVariation)
	return clamp(s.jitter(s.cfg.FollowUpDelay, s.cfg.FollowUpVariation), lo, hi)
}

// ThinkingDelay returns a short pause shown before typing starts.
func (s *Simulator) ThinkingDelay() time.Duration {
	if s.cfg.Disabled {
		return 0
	}
	return clamp(s.jitter(thinkingBase, thinkingVariation), thinkingMin, thinkingMax)
}

// ReadingTime estimates how long a user needs to read length characters.
func (s *Simulator) ReadingTime(length int) time.Duration {
	if s.cfg.Disabled {
		return 0
	}
	words := boundLength(length) / charsPerWord
	d := clamp(readingBase+time.Duration(words)*readingPerWord, readingMin, readingMax)
	return clamp(s.jitter(d, readingVariation), readingMin, readingMax)
}

// ChunkMode selects how ProgressiveDelays splits text.
type ChunkMode string

const (
	ChunkSentence  ChunkMode = "sentence"
	ChunkParagraph ChunkMode = "paragraph"
)

// Chunk is one piece of progressively revealed text.
type Chunk struct {
	Text  string
	Delay time.Duration
}

var (
	sentencePattern  = regexp.MustCompile(`[^.!?]+[.!?]*`)
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
)

// ProgressiveDelays splits text into chunks, each with its own typing delay.
// Empty or whitespace-only text yields no chunks.
func (s *Simulator) ProgressiveDelays(text string, mode ChunkMode) []Chunk {
	var parts []string
	switch mode {
	case ChunkParagraph:
		parts = paragraphPattern.Split(text, -1)
	default:
		parts = sentencePattern.FindAllString(text, -1)
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var d time.Duration
		if !s.cfg.Disabled {
			d = s.lengthDelay(len([]rune(p)), chunkMin, chunkMax)
		}
		chunks = append(chunks, Chunk{Text: p, Delay: d})
	}
	return chunks
}

// =============================================================================
// DELIVERY PLAN
// =============================================================================

// Delivery is one message the host should show After the previous one.
type Delivery struct {
	Text     string
	After    time.Duration
	FollowUp bool
}

// Plan turns a response into timed deliveries: the response after its typing
// delay, then each follow-up after a follow-up pause plus its own typing delay.
func (s *Simulator) Plan(resp types.BotResponse) []Delivery {
	plan := make([]Delivery, 0, 1+len(resp.FollowUps))
	plan = append(plan, Delivery{
		Text:  resp.Response,
		After: s.TypingDelay(len([]rune(resp.Response))),
	})
	for _, f := range resp.FollowUps {
		plan = append(plan, Delivery{
			Text:     f,
			After:    s.FollowUpDelay() + s.TypingDelay(len([]rune(f))),
			FollowUp: true,
		})
	}
	logging.UXDebug("planned %d deliveries, first after %v", len(plan), plan[0].After)
	return plan
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Simulator) lengthDelay(length int, lo, hi time.Duration) time.Duration {
	raw := s.cfg.BaseDelay + time.Duration(boundLength(length))*s.cfg.CharacterFactor
	return clamp(s.jitter(clamp(raw, lo, hi), s.cfg.RandomVariation), lo, hi)
}

// jitter scales d by a uniform factor in [1-variation, 1+variation).
func (s *Simulator) jitter(d time.Duration, variation float64) time.Duration {
	if variation <= 0 {
		return d
	}
	factor := 1 + (s.rng.Float64()*2-1)*variation
	return time.Duration(float64(d) * factor)
}

func spread(d time.Duration, variation float64) (time.Duration, time.Duration) {
	if variation < 0 {
		variation = 0
	}
	return time.Duration(float64(d) * (1 - variation)), time.Duration(float64(d) * (1 + variation))
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func boundLength(n int) int {
	if n < 0 {
		return 0
	}
	return min(n, maxLength)
}
