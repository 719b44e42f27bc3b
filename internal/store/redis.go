package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chatbot/internal/logging"
)

const (
	// Redis key prefixes
	sessionKeyPrefix = "chatbot:session:"
	turnsKeyPrefix   = "chatbot:turns:"
	// Default TTL for session keys (24 hours)
	defaultRedisTTL = 24 * time.Hour
	scanBatch       = 100
)

// redisStore implements Store on Redis with optimistic locking.
// Contexts are JSON strings; transcripts are hashes keyed by turn number.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func newRedisStore(client *redis.Client, ttl time.Duration, now func() time.Time) *redisStore {
	return &redisStore{client: client, ttl: ttl, now: now}
}

func (s *redisStore) key(id string) string      { return sessionKeyPrefix + id }
func (s *redisStore) turnsKey(id string) string { return turnsKeyPrefix + id }

// Save implements Store.
// Creation uses SET NX; updates use WATCH/MULTI/EXEC.
func (s *redisStore) Save(ctx context.Context, rec *Record) error {
	key := s.key(rec.SessionID())
	now := s.now()

	if rec.Version == 0 {
		next := *rec
		next.Version = 1
		next.CreatedAt = now
		next.UpdatedAt = now
		val, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		ok, err := s.client.SetNX(ctx, key, val, s.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if !ok {
			return ErrVersionConflict
		}
		*rec = next
		return nil
	}

	var updated Record
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored Record
		if err := json.Unmarshal([]byte(val), &stored); err != nil {
			return err
		}
		if stored.Version != rec.Version {
			return ErrVersionConflict
		}

		updated = *rec
		updated.Version++
		updated.CreatedAt = stored.CreatedAt
		updated.UpdatedAt = now

		newVal, err := json.Marshal(&updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			pipe.Expire(ctx, s.turnsKey(rec.SessionID()), s.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}
	*rec = updated
	return nil
}

// Load implements Store.
// Refreshes TTL on every read.
func (s *redisStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	key := s.key(sessionID)
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		logging.StoreDebug("Failed to refresh TTL for %s: %v", sessionID, err)
	}
	return &rec, nil
}

// Delete implements Store.
func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID), s.turnsKey(sessionID)).Err()
}

// List implements Store.
func (s *redisStore) List(ctx context.Context) ([]Summary, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	out := []Summary{}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var rec Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			logging.StoreDebug("Skipping undecodable session %s: %v", keys[i], err)
			continue
		}
		out = append(out, summarize(&rec))
	}
	sortSummaries(out)
	return out, nil
}

// AppendTurn implements Store.
func (s *redisStore) AppendTurn(ctx context.Context, turn TurnRecord) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	val, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}

	key := s.turnsKey(turn.SessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, strconv.Itoa(turn.Turn), val)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store turn: %w", err)
	}
	return nil
}

// Turns implements Store.
func (s *redisStore) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.turnsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	out := make([]TurnRecord, 0, len(fields))
	for field, v := range fields {
		var t TurnRecord
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("failed to decode turn %s: %w", field, err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Turn < out[j].Turn })
	return out, nil
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
