package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/statelyrides/chauffeur/pkg/redis"
)

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis *redisclient.Client
}

// NewManager creates a new cache manager
func NewManager(redis *redisclient.Client) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), result)
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.redis.Delete(ctx, keys...)
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// Quote returns cache key for a composed quote
func (k CacheKeys) Quote(quoteID string) string {
	return fmt.Sprintf("quote:%s", quoteID)
}

// RuleSnapshot returns cache key for the active rule set of a service type
func (k CacheKeys) RuleSnapshot(serviceType string) string {
	return fmt.Sprintf("rules:snapshot:%s", serviceType)
}

// CalendarSnapshot returns cache key for the business-hours and holiday tables
func (k CacheKeys) CalendarSnapshot() string {
	return "calendar:snapshot"
}

// Booking returns cache key for a booking
func (k CacheKeys) Booking(bookingID string) string {
	return fmt.Sprintf("booking:%s", bookingID)
}

// TTL defines common cache TTL durations
type CacheTTL struct{}

var TTL = CacheTTL{}

func (t CacheTTL) Short() time.Duration  { return 5 * time.Minute }
func (t CacheTTL) Medium() time.Duration { return 15 * time.Minute }
func (t CacheTTL) Long() time.Duration   { return 1 * time.Hour }
