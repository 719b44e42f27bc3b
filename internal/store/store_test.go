package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/config"
	"chatbot/internal/types"
)

var testStart = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func steppingClock() func() time.Time {
	now := testStart
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func sampleContext(turns int) types.ConversationContext {
	c := types.NewConversationContext(testStart)
	c.UserTurns = turns
	c.ConversationStage = types.StageForTurns(turns)
	c.CurrentTopic = types.IntentCloud
	c.UserContext.MentionedServices = []string{"cloud"}
	c.MessageHistory = append(c.MessageHistory,
		types.MessageHistoryItem{Role: types.RoleUser, Content: "we need cloud backups", Timestamp: testStart, Intent: types.IntentCloud, Sentiment: types.SentimentNeutral},
		types.MessageHistoryItem{Role: types.RoleBot, Content: "We can help.", Timestamp: testStart.Add(time.Second)},
	)
	return *c
}

// runContract exercises the Store behavior every driver must share.
func runContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Load(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create and load", func(t *testing.T) {
		s := open(t)
		rec := &Record{Context: sampleContext(3)}
		require.NoError(t, s.Save(ctx, rec))
		assert.Equal(t, int64(1), rec.Version)
		assert.False(t, rec.CreatedAt.IsZero())

		got, err := s.Load(ctx, rec.SessionID())
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, rec.Context.SessionID, got.Context.SessionID)
		assert.Equal(t, 3, got.Context.UserTurns)
		assert.Equal(t, types.StageExploring, got.Context.ConversationStage)
		require.Len(t, got.Context.MessageHistory, 2)
		assert.Equal(t, "we need cloud backups", got.Context.MessageHistory[0].Content)
		assert.True(t, got.Context.MessageHistory[0].Timestamp.Equal(testStart))
	})

	t.Run("create twice conflicts", func(t *testing.T) {
		s := open(t)
		c := sampleContext(1)
		require.NoError(t, s.Save(ctx, &Record{Context: c}))
		assert.ErrorIs(t, s.Save(ctx, &Record{Context: c}), ErrVersionConflict)
	})

	t.Run("optimistic update", func(t *testing.T) {
		s := open(t)
		rec := &Record{Context: sampleContext(1)}
		require.NoError(t, s.Save(ctx, rec))

		stale, err := s.Load(ctx, rec.SessionID())
		require.NoError(t, err)

		rec.Context.UserTurns = 2
		require.NoError(t, s.Save(ctx, rec))
		assert.Equal(t, int64(2), rec.Version)

		stale.Context.UserTurns = 99
		assert.ErrorIs(t, s.Save(ctx, stale), ErrVersionConflict)

		got, err := s.Load(ctx, rec.SessionID())
		require.NoError(t, err)
		assert.Equal(t, 2, got.Context.UserTurns)
		assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	})

	t.Run("update missing", func(t *testing.T) {
		s := open(t)
		rec := &Record{Context: sampleContext(1), Version: 4}
		assert.ErrorIs(t, s.Save(ctx, rec), ErrNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		s := open(t)
		first := &Record{Context: sampleContext(1)}
		second := &Record{Context: sampleContext(5)}
		require.NoError(t, s.Save(ctx, first))
		require.NoError(t, s.Save(ctx, second))

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.SessionID(), list[0].SessionID)
		assert.Equal(t, 5, list[0].UserTurns)
		assert.Equal(t, types.StageExploring, list[0].Stage)

		// Touching the older one moves it to the front.
		require.NoError(t, s.Save(ctx, first))
		list, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.SessionID(), list[0].SessionID)
	})

	t.Run("turns", func(t *testing.T) {
		s := open(t)
		id := "session-turns"
		resp := types.BotResponse{Response: "We can help.", FollowUps: []string{"How many users?"}, Intent: types.IntentCloud, Stage: types.StageInitial}

		require.NoError(t, s.AppendTurn(ctx, TurnRecord{SessionID: id, Turn: 2, User: "second", Response: resp}))
		require.NoError(t, s.AppendTurn(ctx, TurnRecord{SessionID: id, Turn: 1, User: "first", Response: resp}))
		require.NoError(t, s.AppendTurn(ctx, TurnRecord{SessionID: id, Turn: 1, User: "duplicate", Response: resp}))

		turns, err := s.Turns(ctx, id)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, "first", turns[0].User)
		assert.Equal(t, "second", turns[1].User)
		assert.Equal(t, resp.FollowUps, turns[0].Response.FollowUps)
		assert.Equal(t, types.IntentCloud, turns[0].Response.Intent)

		empty, err := s.Turns(ctx, "unknown")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		rec := &Record{Context: sampleContext(2)}
		require.NoError(t, s.Save(ctx, rec))
		require.NoError(t, s.AppendTurn(ctx, TurnRecord{SessionID: rec.SessionID(), Turn: 1, User: "hi"}))

		require.NoError(t, s.Delete(ctx, rec.SessionID()))
		_, err := s.Load(ctx, rec.SessionID())
		assert.ErrorIs(t, err, ErrNotFound)
		turns, err := s.Turns(ctx, rec.SessionID())
		require.NoError(t, err)
		assert.Empty(t, turns)

		assert.NoError(t, s.Delete(ctx, "never-existed"))
	})

	t.Run("checkpoint", func(t *testing.T) {
		s := open(t)
		c := sampleContext(1)

		rec, err := Checkpoint(ctx, s, c)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Version)

		c.UserTurns = 2
		rec, err = Checkpoint(ctx, s, c)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Version)

		got, err := s.Load(ctx, c.SessionID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Context.UserTurns)
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		s, err := NewStore(DriverMemory, WithClock(steppingClock()))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMemoryStore_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(DriverMemory)
	require.NoError(t, err)

	rec := &Record{Context: sampleContext(1)}
	require.NoError(t, s.Save(ctx, rec))
	rec.Context.MessageHistory[0].Content = "mutated after save"

	got, err := s.Load(ctx, rec.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "we need cloud backups", got.Context.MessageHistory[0].Content)
}

func TestSQLiteStore(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		path := filepath.Join(t.TempDir(), "nested", "chatbot.db")
		s, err := NewStore(DriverSQLite, WithSQLitePath(path), WithClock(steppingClock()))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chatbot.db")

	s, err := NewStore(DriverSQLite, WithSQLitePath(path))
	require.NoError(t, err)
	rec := &Record{Context: sampleContext(4)}
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Close())

	reopened, err := NewStore(DriverSQLite, WithSQLitePath(path))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, rec.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Context.UserTurns)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CHATBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHATBOT_TEST_REDIS_ADDR not set")
	}
	runContract(t, func(t *testing.T) Store {
		s, err := NewStore(DriverRedis, WithRedisAddr(addr, 15), WithRedisTTL(time.Minute), WithClock(steppingClock()))
		require.NoError(t, err)
		t.Cleanup(func() {
			rs := s.(*redisStore)
			rs.client.FlushDB(context.Background())
			s.Close()
		})
		return s
	})
}

func TestNewStore_Errors(t *testing.T) {
	_, err := NewStore("postgres")
	assert.ErrorIs(t, err, ErrInvalidDriver)

	_, err = NewStore(DriverSQLite)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore(DriverRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewStore_RedisDefaults(t *testing.T) {
	s, err := NewStore(DriverRedis, WithRedisAddr("127.0.0.1:0", 0))
	require.NoError(t, err, "the client dials lazily")
	defer s.Close()
	assert.Equal(t, defaultRedisTTL, s.(*redisStore).ttl)
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "cfg.db")

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg.Store.Driver = "memory"
	s, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &memoryStore{}, s)
}
