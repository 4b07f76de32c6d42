package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultFallbackIdleTTL is how long an identifier's local bucket survives
// without traffic before it is evicted.
const defaultFallbackIdleTTL = 15 * time.Minute

// fallbackStore is the degraded-mode limiter used when the counter store is
// unreachable: a per-key token bucket held in process memory. It enforces
// only a per-node budget, not the shared one.
type fallbackStore struct {
	mu      sync.Mutex
	entries map[string]*fallbackEntry
	idleTTL time.Duration
}

type fallbackEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newFallbackStore(idleTTL time.Duration) *fallbackStore {
	return &fallbackStore{
		entries: make(map[string]*fallbackEntry),
		idleTTL: idleTTL,
	}
}

// allow consumes one token from the bucket for key, creating the bucket at
// limit tokens per window with burst equal to the limit. Idle buckets are
// swept opportunistically.
func (s *fallbackStore) allow(key string, limit int, window time.Duration) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		ent = &fallbackEntry{
			lim: rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit),
		}
		s.entries[key] = ent
		s.sweepLocked(now)
	}
	ent.lastSeen = now

	return ent.lim.Allow()
}

// sweepLocked drops idle entries. Caller holds mu.
func (s *fallbackStore) sweepLocked(now time.Time) {
	cutoff := now.Add(-s.idleTTL)
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}
