package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached response envelope.
type Entry struct {
	// Data is the cached payload, stored opaque.
	Data json.RawMessage `json:"data"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cachedAt"`

	// TTLSeconds is the expiry the entry was stored with.
	TTLSeconds int `json:"ttlSeconds"`
}

// Age returns how long ago the entry was cached.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// TTL returns the entry's configured expiry as a duration.
func (e *Entry) TTL() time.Duration {
	return time.Duration(e.TTLSeconds) * time.Second
}
