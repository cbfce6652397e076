package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const configKey = "booking:schedule"

// Store persists the schedule configuration as a single JSON document.
// Updates are full-document replaces; a crash mid-update leaves either the
// old or the new document intact, never a mixture.
type Store struct {
	redis   *redis.Client
	nowFunc func() time.Time
}

// NewStore creates a schedule config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, nowFunc: time.Now}
}

// Get retrieves the current configuration, returning the default if none has
// been saved yet.
func (s *Store) Get(ctx context.Context) (*Config, error) {
	data, err := s.redis.Get(ctx, configKey).Bytes()
	if err == redis.Nil {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("schedule: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Set validates and saves a full configuration document, bumping its version.
// The returned warnings are advisory and never block the write.
func (s *Store) Set(ctx context.Context, cfg *Config) ([]string, error) {
	warnings, err := cfg.Validate(s.nowFunc())
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Version = current.Version + 1
	cfg.UpdatedAt = s.nowFunc().UTC()

	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("schedule: marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, configKey, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("schedule: set config: %w", err)
	}
	return warnings, nil
}

// Update applies a mutation to the current configuration and saves the result.
func (s *Store) Update(ctx context.Context, mutate func(*Config)) (*Config, []string, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	mutate(cfg)
	warnings, err := s.Set(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, warnings, nil
}
