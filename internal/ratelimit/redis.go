package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`

// RedisStore counts requests per key in fixed windows shared by every
// instance.
type RedisStore struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) Peek(ctx context.Context, key string, q Quota) (Result, error) {
	if s == nil || s.client == nil {
		return Result{}, errors.New("rate limiter not configured")
	}

	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Result{}, err
	}

	count, err := get.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Result{}, err
	}
	return windowResult(count, ttl.Val(), q, count < int64(q.Limit)), nil
}

func (s *RedisStore) Take(ctx context.Context, key string, q Quota) (Result, error) {
	if s == nil || s.client == nil {
		return Result{}, errors.New("rate limiter not configured")
	}

	res, err := s.script.Run(ctx, s.client, []string{key}, q.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 2 {
		return Result{}, errors.New("invalid rate limit script response")
	}
	count := res[0]
	return windowResult(count-1, time.Duration(res[1])*time.Millisecond, q, count <= int64(q.Limit)), nil
}

// windowResult describes a window in which used requests were already
// counted before the current one.
func windowResult(used int64, ttl time.Duration, q Quota, allowed bool) Result {
	remaining := int64(q.Limit) - used
	if allowed {
		remaining--
	}
	res := Result{
		Allowed:   allowed,
		Limit:     q.Limit,
		Remaining: int(max(0, remaining)),
	}
	if !allowed {
		if ttl <= 0 {
			ttl = q.Window
		}
		res.RetryAfter = ttl
	}
	return res
}
