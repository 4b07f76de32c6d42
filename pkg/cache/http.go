package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Cache annotation headers on responses passing through the HTTP wrappers.
const (
	HeaderCache    = "X-Cache"
	HeaderCacheAt  = "X-Cache-At"
	HeaderCacheTTL = "X-Cache-TTL"
)

// IDFromRequest resolves the resource id from the request path's terminal
// segment. Returns "" when the path has no id segment.
func IDFromRequest(r *http.Request) string {
	cleaned := strings.Trim(r.URL.Path, "/")
	if cleaned == "" {
		return ""
	}
	segments := strings.Split(cleaned, "/")
	return segments[len(segments)-1]
}

// responseRecorder buffers a handler's response so the wrappers can inspect
// the status and body before anything reaches the client.
type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) Write(p []byte) (int, error) { return r.body.Write(p) }

func (r *responseRecorder) WriteHeader(status int) { r.status = status }

func (r *responseRecorder) flushTo(w http.ResponseWriter) {
	for key, values := range r.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body.Bytes())
}

// Handler wraps an idempotent GET handler with the read-through path.
// Hits are served from cache and annotated X-Cache: hit with cachedAt/TTL
// metadata; misses run the handler and populate the cache from successful
// JSON responses. Requests whose entity:id key cannot be resolved pass
// through unannotated, uncached.
func (m *Manager) Handler(entity string, ttlSeconds int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || ttlSeconds <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := Key{Entity: entity, ID: IDFromRequest(r)}
		if !key.Valid() || key.ID == entity {
			next.ServeHTTP(w, r)
			return
		}

		entry, err := m.TryRead(r.Context(), key)
		if err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(HeaderCache, "hit")
			w.Header().Set(HeaderCacheAt, entry.CachedAt.Format(time.RFC3339))
			w.Header().Set(HeaderCacheTTL, strconv.Itoa(entry.TTLSeconds))
			_, _ = w.Write(entry.Data)
			return
		}
		if !errors.Is(err, ErrCacheMiss) {
			// Store trouble: serve uncached rather than failing the request.
			m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed - serving uncached")
			next.ServeHTTP(w, r)
			return
		}

		rec := newResponseRecorder()
		next.ServeHTTP(rec, r)

		if rec.status >= 200 && rec.status < 300 && rec.body.Len() > 0 && json.Valid(rec.body.Bytes()) {
			if err := m.Write(r.Context(), key, json.RawMessage(rec.body.Bytes()), ttlSeconds); err != nil {
				m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache populate failed")
			}
		}

		rec.header.Set(HeaderCache, "miss")
		rec.flushTo(w)
	})
}

// InvalidatingHandler wraps a mutating handler with the write path: after a
// successful mutation the entity:id entry is deleted so the next read
// recomputes. Unresolvable ids skip invalidation silently.
func (m *Manager) InvalidatingHandler(entity string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newResponseRecorder()
		next.ServeHTTP(rec, r)

		if rec.status >= 200 && rec.status < 300 {
			id := resolveID(r, entity, rec.body.Bytes())
			key := Key{Entity: entity, ID: id}
			if key.Valid() {
				if err := m.Invalidate(r.Context(), key); err != nil {
					m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache invalidation failed")
				}
			}
		}

		rec.flushTo(w)
	})
}

// resolveID finds the id for invalidation: the path's terminal segment
// first (unless it is the collection itself, as on POST /entity), then the
// response body's data.id or id field.
func resolveID(r *http.Request, entity string, body []byte) string {
	if id := IDFromRequest(r); id != "" && id != entity {
		return id
	}

	var envelope struct {
		ID   string `json:"id"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Data.ID != "" {
		return envelope.Data.ID
	}
	return envelope.ID
}
