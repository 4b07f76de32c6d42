package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/pkg/store"
)

// ErrCacheMiss indicates the requested key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Manager handles caching operations on the shared counter store.
type Manager struct {
	store  *store.Client
	logger zerolog.Logger
}

// NewManager creates a cache manager on the shared counter store.
func NewManager(st *store.Client, logger zerolog.Logger) *Manager {
	if st == nil {
		panic("store client cannot be nil")
	}
	return &Manager{
		store:  st,
		logger: logger,
	}
}

// TryRead retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist; a corrupt stored payload is
// logged and also reported as a miss so the caller recomputes.
func (m *Manager) TryRead(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.store.GetBytes(ctx, key.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("cache read: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt payload: treat as a miss, the next write overwrites it.
		cacheErrors.WithLabelValues("decode").Inc()
		cacheMisses.Inc()
		m.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Corrupt cache entry - treating as miss")
		return nil, ErrCacheMiss
	}

	cacheHits.Inc()
	return &entry, nil
}

// Write stores data under key with the given TTL. Non-positive TTLs skip
// caching.
func (m *Manager) Write(ctx context.Context, key Key, data json.RawMessage, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return nil
	}

	entry := Entry{
		Data:       data,
		CachedAt:   time.Now().UTC(),
		TTLSeconds: ttlSeconds,
	}

	payload, err := json.Marshal(&entry)
	if err != nil {
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if err := m.store.SetWithTTL(ctx, key.String(), payload, ttl); err != nil {
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("cache write: %w", err)
	}

	m.logger.Debug().
		Str("key", key.String()).
		Int("ttl_seconds", ttlSeconds).
		Msg("Cache entry written")

	return nil
}

// Invalidate removes the entry for key so the next read recomputes.
// Deleting an absent key is a no-op.
func (m *Manager) Invalidate(ctx context.Context, key Key) error {
	if err := m.store.Del(ctx, key.String()); err != nil {
		cacheErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("cache invalidate: %w", err)
	}

	cacheInvalidations.Inc()
	m.logger.Debug().
		Str("key", key.String()).
		Msg("Cache entry invalidated")

	return nil
}
