// Package cache provides the read-through/write-invalidate response cache
// layered on the shared counter store.
//
// Entries are keyed entity:id and carry the response payload with cachedAt
// and TTL metadata. The read path populates on miss; the write path deletes
// the key so the next read recomputes. There is no field-level invalidation.
//
// Corrupt cached payloads are treated as a miss, logged, and left to be
// overwritten - never surfaced as a request error.
//
// # Basic Usage
//
//	st, _ := store.Open(ctx, "localhost:6379")
//	manager := cache.NewManager(st, logger)
//
//	key := cache.Key{Entity: "reports", ID: "42"}
//
//	entry, err := manager.TryRead(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// compute the response, then:
//		_ = manager.Write(ctx, key, data, 60)
//	}
//
//	// after any mutation of reports/42:
//	_ = manager.Invalidate(ctx, key)
//
// # HTTP Wrappers
//
// Handler wraps idempotent GET handlers with the read path and annotates
// responses with X-Cache headers. InvalidatingHandler wraps mutating
// handlers with the write path.
package cache
