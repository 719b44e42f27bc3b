package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chatbot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Dialogue engine behavior
	Engine EngineConfig `yaml:"engine"`

	// Simulated typing and follow-up pacing
	Timing TimingConfig `yaml:"timing"`

	// Host-side context persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the dialogue engine.
type EngineConfig struct {
	HistoryLimit  int    `yaml:"history_limit"`
	MaxFollowUps  int    `yaml:"max_follow_ups"`
	Seed          uint64 `yaml:"seed"`           // 0 = seeded from the clock
	KnowledgePath string `yaml:"knowledge_path"` // optional YAML replacing the embedded knowledge tables
}

// TimingConfig configures the timing simulator. Durations are strings ("500ms").
type TimingConfig struct {
	BaseDelay         string  `yaml:"base_delay"`
	CharacterFactor   string  `yaml:"character_factor"`
	RandomVariation   float64 `yaml:"random_variation"`
	MinDelay          string  `yaml:"min_delay"`
	MaxDelay          string  `yaml:"max_delay"`
	FollowUpDelay     string  `yaml:"follow_up_delay"`
	FollowUpVariation float64 `yaml:"follow_up_variation"`
	DisableSimulation bool    `yaml:"disable_simulation"` // hosts display instantly when true
}

// StoreConfig selects and configures the context store driver.
type StoreConfig struct {
	Driver     string `yaml:"driver"` // memory, sqlite, redis
	SQLitePath string `yaml:"sqlite_path"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	RedisTTL   string `yaml:"redis_ttl"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "chatbot",
		Version: "1.0.0",

		Engine: EngineConfig{
			HistoryLimit: 15,
			MaxFollowUps: 3,
		},

		Timing: TimingConfig{
			BaseDelay:         "500ms",
			CharacterFactor:   "15ms",
			RandomVariation:   0.3,
			MinDelay:          "800ms",
			MaxDelay:          "4000ms",
			FollowUpDelay:     "1500ms",
			FollowUpVariation: 0.2,
		},

		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "data/chatbot.db",
			RedisAddr:  "localhost:6379",
			RedisTTL:   "24h",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if driver := os.Getenv("CHATBOT_STORE_DRIVER"); driver != "" {
		c.Store.Driver = driver
	}
	if path := os.Getenv("CHATBOT_DB"); path != "" {
		c.Store.SQLitePath = path
	}
	if addr := os.Getenv("CHATBOT_REDIS_ADDR"); addr != "" {
		c.Store.RedisAddr = addr
	}
	if level := os.Getenv("CHATBOT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if seed := os.Getenv("CHATBOT_SEED"); seed != "" {
		if v, err := strconv.ParseUint(seed, 10, 64); err == nil {
			c.Engine.Seed = v
		}
	}
}

// ValidDrivers lists all supported store drivers.
var ValidDrivers = []string{"memory", "sqlite", "redis"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validDriver := false
	for _, d := range ValidDrivers {
		if c.Store.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}

	if c.Engine.HistoryLimit < 2 {
		return fmt.Errorf("engine.history_limit must be at least 2, got %d", c.Engine.HistoryLimit)
	}
	if c.Engine.MaxFollowUps < 0 {
		return fmt.Errorf("engine.max_follow_ups must not be negative, got %d", c.Engine.MaxFollowUps)
	}
	if c.Timing.RandomVariation < 0 || c.Timing.RandomVariation >= 1 {
		return fmt.Errorf("timing.random_variation must be in [0,1), got %v", c.Timing.RandomVariation)
	}
	if c.GetMinDelay() > c.GetMaxDelay() {
		return fmt.Errorf("timing.min_delay (%v) exceeds timing.max_delay (%v)", c.GetMinDelay(), c.GetMaxDelay())
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path required for sqlite driver")
	}
	if c.Store.Driver == "redis" && c.Store.RedisAddr == "" {
		return fmt.Errorf("store.redis_addr required for redis driver")
	}

	return nil
}

// =============================================================================
// DURATION GETTERS
// =============================================================================

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// GetBaseDelay returns the typing base delay as a duration.
func (c *Config) GetBaseDelay() time.Duration {
	return parseDuration(c.Timing.BaseDelay, 500*time.Millisecond)
}

// GetCharacterFactor returns the per-character typing delay.
func (c *Config) GetCharacterFactor() time.Duration {
	return parseDuration(c.Timing.CharacterFactor, 15*time.Millisecond)
}

// GetMinDelay returns the typing delay floor.
func (c *Config) GetMinDelay() time.Duration {
	return parseDuration(c.Timing.MinDelay, 800*time.Millisecond)
}

// GetMaxDelay returns the typing delay ceiling.
func (c *Config) GetMaxDelay() time.Duration {
	return parseDuration(c.Timing.MaxDelay, 4*time.Second)
}

// GetFollowUpDelay returns the pause between a response and its follow-up.
func (c *Config) GetFollowUpDelay() time.Duration {
	return parseDuration(c.Timing.FollowUpDelay, 1500*time.Millisecond)
}

// GetRedisTTL returns the redis key TTL as a duration.
func (c *Config) GetRedisTTL() time.Duration {
	return parseDuration(c.Store.RedisTTL, 24*time.Hour)
}
