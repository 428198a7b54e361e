package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

// DefaultCartTTL is how long an untouched cart survives in Redis.
const DefaultCartTTL = 7 * 24 * time.Hour

// saveScript writes the cart only if the stored version is not newer.
var saveScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
  local decoded = cjson.decode(current)
  if tonumber(decoded["version"]) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// RedisCartStore keeps carts in Redis with a sliding TTL.
type RedisCartStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &RedisCartStore{client: client, baseTTL: ttl}
}

func (s *RedisCartStore) Load(ctx context.Context, key string) (*cart.State, error) {
	data, err := s.client.Get(ctx, cartKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var state cart.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &state, nil
}

func (s *RedisCartStore) Save(ctx context.Context, key string, state cart.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expiry of carts created together
	jitter := time.Duration(rand.Intn(60)) * time.Minute
	ttl := s.baseTTL + jitter

	ok, err := saveScript.Run(ctx, s.client, []string{cartKey(key)}, string(data), state.Version, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if ok == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *RedisCartStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, cartKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}
