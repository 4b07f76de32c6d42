package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Rule is the per-route admission budget.
type Rule struct {
	// Limit is the maximum number of requests per window.
	Limit int

	// Window is the sliding-window length.
	Window time.Duration
}

// PrincipalFunc resolves the authenticated principal id for a request.
// An empty return falls back to the caller network address.
type PrincipalFunc func(*http.Request) string

// Middleware wraps a handler with admission control under the given rule.
// Denied requests receive 429 Too Many Requests with a Retry-After header
// and a JSON body carrying retryAfterSeconds.
func Middleware(l *Limiter, rule Rule, principal PrincipalFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ""
			if principal != nil {
				if id := principal(r); id != "" {
					identifier = PrincipalIdentifier(id)
				}
			}
			if identifier == "" {
				identifier = AddrIdentifier(r.RemoteAddr)
			}

			dec := l.Admit(r.Context(), Route(r), identifier, rule.Limit, rule.Window)
			if !dec.Allowed {
				retryAfter := int(dec.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":             "too many requests",
					"retryAfterSeconds": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
