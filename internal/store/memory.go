package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// memoryStore implements Store with in-process maps. Records are copied on
// the way in and out so callers never share state with the store.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	turns   map[string]map[int]TurnRecord
	now     func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		records: make(map[string]*Record),
		turns:   make(map[string]map[int]TurnRecord),
		now:     now,
	}
}

func copyRecord(r *Record) *Record {
	out := *r
	out.Context = r.Context.Clone()
	return &out
}

// Save implements Store.
func (s *memoryStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := rec.SessionID()
	stored, exists := s.records[id]
	now := s.now()

	if rec.Version == 0 {
		if exists {
			return ErrVersionConflict
		}
		rec.CreatedAt = now
	} else {
		if !exists {
			return ErrNotFound
		}
		if stored.Version != rec.Version {
			return ErrVersionConflict
		}
		rec.CreatedAt = stored.CreatedAt
	}

	rec.Version++
	rec.UpdatedAt = now
	s.records[id] = copyRecord(rec)
	return nil
}

// Load implements Store.
func (s *memoryStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Delete implements Store.
func (s *memoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, sessionID)
	delete(s.turns, sessionID)
	return nil
}

// List implements Store.
func (s *memoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, summarize(r))
	}
	sortSummaries(out)
	return out, nil
}

// AppendTurn implements Store.
func (s *memoryStore) AppendTurn(ctx context.Context, turn TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTurn, ok := s.turns[turn.SessionID]
	if !ok {
		byTurn = make(map[int]TurnRecord)
		s.turns[turn.SessionID] = byTurn
	}
	if _, dup := byTurn[turn.Turn]; dup {
		return nil
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	turn.Response.FollowUps = slices.Clone(turn.Response.FollowUps)
	byTurn[turn.Turn] = turn
	return nil
}

// Turns implements Store.
func (s *memoryStore) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TurnRecord, 0, len(s.turns[sessionID]))
	for _, t := range s.turns[sessionID] {
		t.Response.FollowUps = slices.Clone(t.Response.FollowUps)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Turn < out[j].Turn })
	return out, nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	s.turns = make(map[string]map[int]TurnRecord)
	return nil
}

func summarize(r *Record) Summary {
	return Summary{
		SessionID: r.SessionID(),
		UserTurns: r.Context.UserTurns,
		Stage:     r.Context.ConversationStage,
		UpdatedAt: r.UpdatedAt,
	}
}

// sortSummaries orders newest first, breaking ties by session ID.
func sortSummaries(list []Summary) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].SessionID < list[j].SessionID
	})
}
