// Package cache keeps provider answers (weather, headlines, summaries) for a
// short while, in Redis when configured and in process memory otherwise.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ynot/internal/config"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("cache store is closed")

// Store is a string key/value cache with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Close() error
}

// RedisStore is a Store on a Redis server.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore connects and pings the configured server.
func NewRedisStore(cfg config.CacheConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		MaxRetries: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache connected", zap.String("addr", cfg.RedisAddr))
	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger.With(zap.String("component", "cache")),
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// MemoryStore is an in-process Store. Expired entries are dropped lazily.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", ErrMiss
	}
	if !entry.expires.IsZero() && !s.now().Before(entry.expires) {
		delete(s.entries, key)
		return "", ErrMiss
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Open returns a RedisStore when an address is configured, falling back to
// memory if Redis is unreachable.
func Open(cfg config.CacheConfig, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return NewMemoryStore()
	}
	store, err := NewRedisStore(cfg, logger)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		return NewMemoryStore()
	}
	return store
}

// Loader reads through a Store, collapsing concurrent loads of one key.
type Loader struct {
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

func NewLoader(store Store, logger *zap.Logger) *Loader {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, logger: logger}
}

// Fetch returns the cached value for key or calls load and caches its
// result for ttl. Load errors are returned and nothing is cached. A zero
// ttl disables caching for the call.
func (l *Loader) Fetch(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (string, error)) (string, error) {
	if ttl > 0 {
		value, err := l.store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrMiss) {
			l.logger.Debug("cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	result, err, _ := l.group.Do(key, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return "", err
		}
		if ttl > 0 {
			if setErr := l.store.Set(ctx, key, value, ttl); setErr != nil {
				l.logger.Warn("cache write failed", zap.String("key", key), zap.Error(setErr))
			}
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// FetchJSON is Fetch for values that round-trip through JSON.
func FetchJSON[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := l.Fetch(ctx, key, ttl, func(ctx context.Context) (string, error) {
		value, err := load(ctx)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal cache value: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return zero, err
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return value, nil
}
