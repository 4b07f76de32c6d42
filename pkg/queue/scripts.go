package queue

import "github.com/redis/go-redis/v9"

// enqueueScript admits a job unless its ID already exists (idempotency).
//
// KEYS[1] = job hash, KEYS[2] = pending list.
// ARGV    = id, payload JSON, maxAttempts, enqueuedAt unix ms.
// Returns 1 when enqueued, 0 when the ID was already known.
var enqueueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'payload', ARGV[2],
  'attempts', 0,
  'maxAttempts', ARGV[3],
  'state', 'queued',
  'enqueuedAt', ARGV[4])
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

// claimScript promotes due retries from the delayed zset, then claims the
// oldest pending job: moves it to the active list, marks it active, and
// bumps its attempt counter.
//
// KEYS[1] = delayed zset, KEYS[2] = pending list, KEYS[3] = active list.
// ARGV    = now unix ms, job key prefix.
// Returns false when nothing is claimable, else
// {id, payload, attempts, maxAttempts}.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for i = 1, #due do
  redis.call('ZREM', KEYS[1], due[i])
  redis.call('LPUSH', KEYS[2], due[i])
  redis.call('HSET', ARGV[2] .. due[i], 'state', 'queued')
end

local id = redis.call('RPOP', KEYS[2])
if not id then
  return false
end

local key = ARGV[2] .. id
redis.call('LPUSH', KEYS[3], id)
redis.call('HSET', key, 'state', 'active')
local attempts = redis.call('HINCRBY', key, 'attempts', 1)
return {
  id,
  redis.call('HGET', key, 'payload'),
  attempts,
  redis.call('HGET', key, 'maxAttempts'),
}
`)

// ackScript retires a successfully processed job: off the active list, into
// the bounded completed list. Jobs trimmed out of retention lose their hash.
//
// KEYS[1] = active list, KEYS[2] = completed list.
// ARGV    = id, job key prefix, retention count.
var ackScript = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('HSET', ARGV[2] .. ARGV[1], 'state', 'completed')
redis.call('LPUSH', KEYS[2], ARGV[1])

local over = redis.call('LLEN', KEYS[2]) - tonumber(ARGV[3])
for i = 1, over do
  local evicted = redis.call('RPOP', KEYS[2])
  if evicted then
    redis.call('DEL', ARGV[2] .. evicted)
  end
end
return 1
`)

// removeScript retires a job record entirely: hash deleted, ID dropped from
// the pending, active, and completed lists and the delayed zset. Used when
// the underlying resource is deleted so later lookups cannot serve a stale
// completed state.
//
// KEYS[1] = job hash, KEYS[2] = pending list, KEYS[3] = active list,
// KEYS[4] = completed list, KEYS[5] = delayed zset.
// ARGV    = id.
// Returns 1 when the job existed, 0 otherwise.
var removeScript = redis.NewScript(`
local existed = redis.call('DEL', KEYS[1])
redis.call('LREM', KEYS[2], 0, ARGV[1])
redis.call('LREM', KEYS[3], 0, ARGV[1])
redis.call('LREM', KEYS[4], 0, ARGV[1])
redis.call('ZREM', KEYS[5], ARGV[1])
return existed
`)

// failScript records a processing failure. Below the retry ceiling the job
// is rescheduled onto the delayed zset; at the ceiling it is marked dead and
// its hash deleted (the caller writes the dead-letter record).
//
// KEYS[1] = active list, KEYS[2] = delayed zset.
// ARGV    = id, job key prefix, retry-at unix ms, error message.
// Returns {'retry'|'dead', attempts, maxAttempts}.
var failScript = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
local key = ARGV[2] .. ARGV[1]
redis.call('HSET', key, 'lastError', ARGV[4])

local attempts = tonumber(redis.call('HGET', key, 'attempts'))
local maxAttempts = tonumber(redis.call('HGET', key, 'maxAttempts'))
if attempts < maxAttempts then
  redis.call('HSET', key, 'state', 'queued')
  redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
  return {'retry', attempts, maxAttempts}
end

redis.call('DEL', key)
return {'dead', attempts, maxAttempts}
`)
