// Package store persists conversation contexts and transcripts for hosts.
// The engine itself never persists anything; hosts save its Context()
// snapshot after each turn and resume with session.WithContext.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatbot/internal/config"
	"chatbot/internal/logging"
	"chatbot/internal/types"
)

// Driver names a storage backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
)

// Record is a stored context with optimistic-locking metadata.
type Record struct {
	Context   types.ConversationContext `json:"context"`
	Version   int64                     `json:"version"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// SessionID is shorthand for the stored context's ID.
func (r *Record) SessionID() string {
	return r.Context.SessionID
}

// Summary is a listing row.
type Summary struct {
	SessionID string      `json:"session_id"`
	UserTurns int         `json:"user_turns"`
	Stage     types.Stage `json:"stage"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TurnRecord is one transcript entry.
type TurnRecord struct {
	SessionID string            `json:"session_id"`
	Turn      int               `json:"turn"`
	User      string            `json:"user"`
	Response  types.BotResponse `json:"response"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store defines context persistence operations.
type Store interface {
	// Save creates the record when Version is 0 and otherwise updates it
	// with optimistic locking. On success Version is incremented and the
	// timestamps are set.
	// Returns ErrVersionConflict if the stored version differs or a new record already exists.
	// Returns ErrNotFound when updating a record that does not exist.
	Save(ctx context.Context, rec *Record) error

	// Load retrieves a record. Returns ErrNotFound if absent.
	Load(ctx context.Context, sessionID string) (*Record, error)

	// Delete removes a record and its transcript. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns summaries, most recently updated first.
	List(ctx context.Context) ([]Summary, error)

	// AppendTurn records a transcript entry. Re-appending the same turn number is a no-op.
	AppendTurn(ctx context.Context, turn TurnRecord) error

	// Turns returns a session's transcript in turn order.
	Turns(ctx context.Context, sessionID string) ([]TurnRecord, error)

	// Close releases resources.
	Close() error
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// Option is a functional option for configuring a store.
type Option func(*storeConfig)

type storeConfig struct {
	sqlitePath  string
	redisClient *redis.Client
	redisAddr   string
	redisDB     int
	redisTTL    time.Duration
	now         func() time.Time
}

// WithSQLitePath sets the database file for the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(c *storeConfig) { c.sqlitePath = path }
}

// WithRedisClient sets an existing client for the redis driver. The store closes it on Close.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisAddr makes the redis driver dial addr and database db.
func WithRedisAddr(addr string, db int) Option {
	return func(c *storeConfig) {
		c.redisAddr = addr
		c.redisDB = db
	}
}

// WithRedisTTL sets the expiry of redis keys; it is refreshed on every read and write.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) { c.now = now }
}

// NewStore creates a store for the driver.
// sqlite requires WithSQLitePath; redis requires WithRedisClient or WithRedisAddr.
func NewStore(driver Driver, opts ...Option) (Store, error) {
	cfg := &storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverMemory:
		logging.StoreDebug("Opening memory store")
		return newMemoryStore(cfg.now), nil

	case DriverSQLite:
		if cfg.sqlitePath == "" {
			return nil, fmt.Errorf("%w: sqlite path required", ErrInvalidConfig)
		}
		return newSQLiteStore(cfg.sqlitePath, cfg.now)

	case DriverRedis:
		client := cfg.redisClient
		if client == nil {
			if cfg.redisAddr == "" {
				return nil, fmt.Errorf("%w: redis client or address required", ErrInvalidConfig)
			}
			client = redis.NewClient(&redis.Options{Addr: cfg.redisAddr, DB: cfg.redisDB})
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = defaultRedisTTL
		}
		logging.Store("Opening redis store (ttl=%v)", ttl)
		return newRedisStore(client, ttl, cfg.now), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriver, driver)
	}
}

// Open creates the store described by the store section of a configuration.
func Open(cfg *config.Config) (Store, error) {
	return NewStore(Driver(cfg.Store.Driver),
		WithSQLitePath(cfg.Store.SQLitePath),
		WithRedisAddr(cfg.Store.RedisAddr, cfg.Store.RedisDB),
		WithRedisTTL(cfg.GetRedisTTL()),
	)
}

// Checkpoint saves the latest snapshot of a session, creating or updating its
// record as needed. It retries once on a version conflict by reloading.
func Checkpoint(ctx context.Context, s Store, snapshot types.ConversationContext) (*Record, error) {
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := s.Load(ctx, snapshot.SessionID)
		switch {
		case err == nil:
			rec.Context = snapshot
		case errors.Is(err, ErrNotFound):
			rec = &Record{Context: snapshot}
		default:
			return nil, err
		}

		err = s.Save(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		logging.StoreDebug("Checkpoint conflict for %s, retrying", snapshot.SessionID)
	}
	return nil, fmt.Errorf("checkpoint %s: %w", snapshot.SessionID, ErrVersionConflict)
}
