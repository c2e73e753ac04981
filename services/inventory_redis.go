package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps one hash per tier and mutates it exclusively through Lua
// scripts, so check-and-decrement executes as a single step on the Redis
// side. The hash key is the atomicity unit: requests for different tiers
// never serialize against each other.
type RedisLedger struct {
	redis *redis.Client
}

func NewRedisLedger(redisClient *redis.Client) *RedisLedger {
	return &RedisLedger{redis: redisClient}
}

func inventoryKey(tierID string) string {
	return fmt.Sprintf("inventory:%s", tierID)
}

const reserveScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'not_found'
end
if tonumber(redis.call('HGET', KEYS[1], 'closed') or '0') == 1 then
  return 'closed'
end
local sales_end = tonumber(redis.call('HGET', KEYS[1], 'sales_end') or '0')
if sales_end > 0 and tonumber(ARGV[2]) > sales_end then
  return 'closed'
end
local remaining = tonumber(redis.call('HGET', KEYS[1], 'remaining') or '0')
if remaining < tonumber(ARGV[1]) then
  return 'insufficient'
end
redis.call('HINCRBY', KEYS[1], 'remaining', -tonumber(ARGV[1]))
return 'ok'
`

const releaseScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'not_found'
end
local remaining = tonumber(redis.call('HGET', KEYS[1], 'remaining') or '0')
local total = tonumber(redis.call('HGET', KEYS[1], 'total') or '0')
if remaining + tonumber(ARGV[1]) > total then
  return 'violation'
end
redis.call('HINCRBY', KEYS[1], 'remaining', tonumber(ARGV[1]))
return 'ok'
`

func (l *RedisLedger) Reserve(ctx context.Context, tierID string, qty int, now time.Time) error {
	result, err := l.redis.Eval(ctx, reserveScript, []string{inventoryKey(tierID)}, qty, now.Unix()).Result()
	if err != nil {
		return fmt.Errorf("reserve script: %w", err)
	}

	switch result {
	case "ok":
		return nil
	case "not_found":
		return ErrTierNotFound
	case "closed":
		return ErrTierClosed
	case "insufficient":
		return ErrInsufficientInventory
	default:
		return fmt.Errorf("reserve script: unexpected result %v", result)
	}
}

func (l *RedisLedger) Release(ctx context.Context, tierID string, qty int) error {
	result, err := l.redis.Eval(ctx, releaseScript, []string{inventoryKey(tierID)}, qty).Result()
	if err != nil {
		return fmt.Errorf("release script: %w", err)
	}

	switch result {
	case "ok":
		return nil
	case "not_found":
		return ErrTierNotFound
	case "violation":
		return ErrInvariantViolation
	default:
		return fmt.Errorf("release script: unexpected result %v", result)
	}
}

func (l *RedisLedger) Seed(ctx context.Context, entry SeedEntry) error {
	closed := 0
	if entry.Closed {
		closed = 1
	}
	salesEnd := int64(0)
	if !entry.SalesEnd.IsZero() {
		salesEnd = entry.SalesEnd.Unix()
	}

	err := l.redis.HSet(ctx, inventoryKey(entry.TierID), map[string]any{
		"remaining": entry.Remaining,
		"total":     entry.Total,
		"closed":    closed,
		"sales_end": salesEnd,
	}).Err()
	if err != nil {
		return fmt.Errorf("seed tier %s: %w", entry.TierID, err)
	}
	return nil
}

func (l *RedisLedger) SetClosed(ctx context.Context, tierID string, closed bool) error {
	val := 0
	if closed {
		val = 1
	}
	if err := l.redis.HSet(ctx, inventoryKey(tierID), "closed", val).Err(); err != nil {
		return fmt.Errorf("set closed %s: %w", tierID, err)
	}
	return nil
}

func (l *RedisLedger) Remaining(ctx context.Context, tierID string) (int, error) {
	val, err := l.redis.HGet(ctx, inventoryKey(tierID), "remaining").Result()
	if err == redis.Nil {
		return 0, ErrTierNotFound
	} else if err != nil {
		return 0, fmt.Errorf("get remaining %s: %w", tierID, err)
	}

	remaining, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse remaining %s: %w", tierID, err)
	}
	return remaining, nil
}
