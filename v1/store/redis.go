package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
)

// casScript swaps the value only when it still equals the one read by
// GetForUpdate. ARGV[3] is the TTL in milliseconds, 0 for none.
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
    return 0
end
if tonumber(ARGV[3]) > 0 then
    redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
    redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// incrScript increments an existing key and leaves absent keys alone,
// matching memcached semantics. INCRBY keeps the TTL.
var incrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
    return false
end
return redis.call("INCRBY", KEYS[1], ARGV[1])
`)

// Redis implements Store using a Redis backend. The CAS token is the raw
// value read, so a swap succeeds whenever the stored value is unchanged.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis returns a new Redis store using the provided client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// redisExpiration maps non-positive TTLs to 0, which go-redis sends as a
// plain SET. Negative durations would otherwise become KEEPTTL or an
// invalid expire error.
func redisExpiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func redisTTL(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	if ms := ttl.Milliseconds(); ms > 0 {
		return ms
	}
	return 1
}

// Get implements Store.Get.
func (r *Redis) Get(ctx context.Context, key string) (Value, bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, err
	}
	return Parse(data), true, nil
}

// GetForUpdate implements Store.GetForUpdate.
func (r *Redis) GetForUpdate(ctx context.Context, key string) (Item, bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return Item{Key: key, Value: Parse(data), token: data}, true, nil
}

// Add implements Store.Add.
func (r *Redis) Add(ctx context.Context, key string, value Value, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value.String(), redisExpiration(ttl)).Result()
}

// CompareAndSwap implements Store.CompareAndSwap.
func (r *Redis) CompareAndSwap(ctx context.Context, item Item, value Value, ttl time.Duration) (bool, error) {
	old, ok := item.token.(string)
	if !ok {
		return false, errForeignToken
	}
	n, err := casScript.Run(ctx, r.client, []string{item.Key}, old, value.String(), redisTTL(ttl)).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Increment implements Store.Increment.
func (r *Redis) Increment(ctx context.Context, key string, delta int64) (int64, bool, error) {
	n, err := incrScript.Run(ctx, r.client, []string{key}, delta).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, false, fmt.Errorf("%w: key %q does not hold an integer", warperrors.ErrTypeCollision, key)
		}
		return 0, false, err
	}
	return n, true, nil
}

// Set implements Store.Set.
func (r *Redis) Set(ctx context.Context, key string, value Value, ttl time.Duration) error {
	return r.client.Set(ctx, key, value.String(), redisExpiration(ttl)).Err()
}

// Delete implements Store.Delete.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
