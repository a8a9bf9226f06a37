// package counterport contains the Redis-backed rate-limit counter store
package counterport

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
)

const (
	counterKeyPrefix = "ratelimit:"
	globalKey        = "ratelimit:global"
)

// admitScript performs the paired check-and-increment as one EVAL so
// concurrent requests from multiple connections cannot race past a
// limit. A key with no TTL starts a fresh fixed-origin window.
// Returns {allowed, exhausted (0 none, 1 user, 2 global), userCount, userPTTL}.
var admitScript = redis.NewScript(`
local userKey = KEYS[1]
local globalKey = KEYS[2]
local userLimit = tonumber(ARGV[1])
local globalLimit = tonumber(ARGV[2])
local windowMs = tonumber(ARGV[3])
local bypass = ARGV[4] == '1'

local userCount = tonumber(redis.call('GET', userKey) or '0')
local globalCount = tonumber(redis.call('GET', globalKey) or '0')

if not bypass then
  if userCount >= userLimit then
    return {0, 1, userCount, redis.call('PTTL', userKey)}
  end
  if globalCount >= globalLimit then
    return {0, 2, userCount, redis.call('PTTL', userKey)}
  end
end

userCount = redis.call('INCR', userKey)
if redis.call('PTTL', userKey) < 0 then
  redis.call('PEXPIRE', userKey, windowMs)
end
redis.call('INCR', globalKey)
if redis.call('PTTL', globalKey) < 0 then
  redis.call('PEXPIRE', globalKey, windowMs)
end

return {1, 0, userCount, redis.call('PTTL', userKey)}
`)

// RedisCounters implements AdmissionCounters on Redis, for deployments
// that want admission counts to survive a process restart. Counter
// keys expire with their window so no history accumulates.
type RedisCounters struct {
	redisClient *redis.Client
	logger      primary.Logger
}

var _ secondary.AdmissionCounters = (*RedisCounters)(nil)

// NewRedisCounters creates a Redis counter store
func NewRedisCounters(redisClient *redis.Client, logger primary.Logger) *RedisCounters {
	return &RedisCounters{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Admit implements the atomic paired check-and-increment
func (r *RedisCounters) Admit(ctx context.Context, userKey string, userLimit, globalLimit int, window time.Duration, bypass bool) (secondary.CounterDecision, error) {
	bypassArg := "0"
	if bypass {
		bypassArg = "1"
	}

	res, err := admitScript.Run(ctx, r.redisClient,
		[]string{counterKeyPrefix + userKey, globalKey},
		userLimit, globalLimit, window.Milliseconds(), bypassArg,
	).Result()
	if err != nil {
		r.logger.Error("Failed to run admission script", "error", err)
		return secondary.CounterDecision{}, fmt.Errorf("failed to run admission script: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 4 {
		return secondary.CounterDecision{}, fmt.Errorf("unexpected admission script reply: %v", res)
	}

	allowed := values[0].(int64) == 1
	exhausted := values[1].(int64)
	count := int(values[2].(int64))
	pttl := values[3].(int64)

	resetAt := time.Now().Add(window)
	if pttl > 0 {
		resetAt = time.Now().Add(time.Duration(pttl) * time.Millisecond)
	}

	decision := secondary.CounterDecision{
		Allowed: allowed,
		Count:   count,
		ResetAt: resetAt,
	}
	switch exhausted {
	case 1:
		decision.ExhaustedScope = "user"
	case 2:
		decision.ExhaustedScope = "global"
	}

	return decision, nil
}
