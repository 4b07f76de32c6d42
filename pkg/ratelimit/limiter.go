// Package ratelimit implements distributed admission control with a
// sliding-window rate limiter. The window is approximated by blending two
// adjacent fixed windows: the current window's counter is incremented and the
// previous window's counter is weighted by the unelapsed fraction of the
// current window. The whole read-increment-compare sequence runs as one
// atomic script on the counter store, so concurrent requests for the same key
// never observe a stale pre-increment count.
//
// The estimate is not exact: across a window boundary the weighted previous
// count can lag real arrival times, so a burst spanning a boundary may admit
// up to 2*limit-1 requests in a window-sized interval. Within a single fixed
// window the limit is never exceeded.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/pkg/store"
)

// Prometheus metrics for admission decisions.
var (
	gateAdmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_limiter_admitted_total",
		Help: "Total number of requests admitted by the rate limiter",
	})

	gateDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_limiter_denied_total",
		Help: "Total number of requests denied by the rate limiter",
	})

	gateStoreErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_limiter_store_errors_total",
		Help: "Total number of counter store failures during admission",
	})

	gateFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_limiter_fallback_decisions_total",
		Help: "Total number of admission decisions made by the local fallback limiter",
	})
)

// slidingWindowScript performs the admission decision in one atomic
// round-trip: increment the current window counter, read the previous one,
// and compare the weighted estimate against the limit.
//
// KEYS[1] = current window counter, KEYS[2] = previous window counter.
// ARGV    = nowMs, windowSeconds, limit.
// Returns {1, 0} when admitted, {0, retryAfterSeconds} when denied.
var slidingWindowScript = redis.NewScript(`
local nowMs      = tonumber(ARGV[1])
local windowSec  = tonumber(ARGV[2])
local limit      = tonumber(ARGV[3])
local windowMs   = windowSec * 1000

local currentStart = math.floor(nowMs / windowMs) * windowMs

local current = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], windowSec * 2)

local prev = tonumber(redis.call('GET', KEYS[2])) or 0
local elapsed = nowMs - currentStart
local weight  = math.max(0, math.min(1, (windowMs - elapsed) / windowMs))
local estimated = prev * weight + current

if estimated > limit then
  local retryAfter = math.ceil((windowMs - elapsed) / 1000)
  if retryAfter < 1 then retryAfter = 1 end
  return {0, retryAfter}
end

return {1, 0}
`)

// Decision is the outcome of a single admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RetryAfter is the suggested wait before retrying a denied request.
	// Zero when Allowed is true, at least one second otherwise.
	RetryAfter time.Duration
}

// Limiter computes admission decisions against the shared counter store.
type Limiter struct {
	store    *store.Client
	fallback *fallbackStore
	logger   zerolog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New creates a rate limiter on the shared counter store.
func New(st *store.Client, logger zerolog.Logger) *Limiter {
	if st == nil {
		panic("store client cannot be nil")
	}
	return &Limiter{
		store:    st,
		fallback: newFallbackStore(defaultFallbackIdleTTL),
		logger:   logger,
		now:      time.Now,
	}
}

// Admit decides whether a request identified by (route, identifier) may
// proceed under the given limit and window.
//
// Failure policy: when the counter store is unreachable the limiter fails
// open, degraded to a per-process token bucket sized to the same limit. A
// store outage therefore weakens limiting to per-node scope instead of
// rejecting all traffic or admitting unbounded traffic. Store failures are
// logged at error severity.
func (l *Limiter) Admit(ctx context.Context, route, identifier string, limit int, window time.Duration) Decision {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true}
	}

	baseKey := Key(route, identifier)
	now := l.now()
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	currentStart := nowMs / windowMs * windowMs

	currentKey := fmt.Sprintf("%s:%d", baseKey, currentStart)
	previousKey := fmt.Sprintf("%s:%d", baseKey, currentStart-windowMs)

	res, err := l.store.Eval(ctx, slidingWindowScript,
		[]string{currentKey, previousKey},
		nowMs, int(window.Seconds()), limit,
	)
	if err != nil {
		gateStoreErrorsTotal.Inc()
		l.logger.Error().
			Err(err).
			Str("key", baseKey).
			Str("route", route).
			Str("identifier", identifier).
			Msg("Counter store unreachable - admission degraded to local limiter")
		return l.admitLocal(baseKey, limit, window)
	}

	allowed, retryAfter, err := parseScriptReply(res)
	if err != nil {
		gateStoreErrorsTotal.Inc()
		l.logger.Error().
			Err(err).
			Str("key", baseKey).
			Msg("Unexpected admission script reply - admission degraded to local limiter")
		return l.admitLocal(baseKey, limit, window)
	}

	if !allowed {
		gateDeniedTotal.Inc()
		l.logger.Warn().
			Str("key", baseKey).
			Str("route", route).
			Str("identifier", identifier).
			Int("limit", limit).
			Int("window_seconds", int(window.Seconds())).
			Int("retry_after_seconds", int(retryAfter.Seconds())).
			Msg("Request denied by rate limiter")
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	gateAdmittedTotal.Inc()
	return Decision{Allowed: true}
}

// admitLocal runs the degraded-mode decision on the in-process limiter.
func (l *Limiter) admitLocal(baseKey string, limit int, window time.Duration) Decision {
	gateFallbackTotal.Inc()
	if l.fallback.allow(baseKey, limit, window) {
		return Decision{Allowed: true}
	}
	gateDeniedTotal.Inc()
	return Decision{Allowed: false, RetryAfter: time.Second}
}

// parseScriptReply decodes the {allowed, retryAfter} array reply.
func parseScriptReply(res interface{}) (bool, time.Duration, error) {
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return false, 0, fmt.Errorf("admission script returned %T, want 2-element array", res)
	}
	allowed, ok := arr[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("admission script flag is %T, want int64", arr[0])
	}
	retryAfter, ok := arr[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("admission script retry-after is %T, want int64", arr[1])
	}
	return allowed == 1, time.Duration(retryAfter) * time.Second, nil
}
