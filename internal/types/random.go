package types

import (
	"math/rand/v2"
	"time"
)

// RandomSource is the only randomness the engine consumes. Production code
// uses a per-engine PCG generator; tests inject fixed sequences.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

// NewRandomSource returns a seeded generator. A zero seed is replaced by the clock.
func NewRandomSource(seed uint64) RandomSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SequenceSource replays a fixed cycle of values in [0,1). IntN derives its
// result from the same sequence, so one value drives one decision.
type SequenceSource struct {
	values []float64
	next   int
}

// NewSequenceSource returns a source cycling through values. With no values it always yields 0.
func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

// Float64 returns the next value in the cycle.
func (s *SequenceSource) Float64() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	if v < 0 || v >= 1 {
		return 0
	}
	return v
}

// IntN maps the next value onto [0,n).
func (s *SequenceSource) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return min(int(s.Float64()*float64(n)), n-1)
}
