// README: Process-wide plan-info stores: in-memory (go-cache) or shared (Redis).
package planinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const planInfoKeyPrefix = "planinfo:"

type Store interface {
	Get(ctx context.Context, requestID string) (PlanInfo, bool, error)
	Set(ctx context.Context, requestID string, info PlanInfo) error
}

type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore keeps entries for ttl and sweeps expired ones every ttl/2.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, ttl/2)}
}

func (s *MemoryStore) Get(_ context.Context, requestID string) (PlanInfo, bool, error) {
	v, ok := s.cache.Get(requestID)
	if !ok {
		return PlanInfo{}, false, nil
	}
	info, ok := v.(PlanInfo)
	if !ok {
		return PlanInfo{}, false, fmt.Errorf("planinfo: unexpected cache value %T", v)
	}
	return info.Clone(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, requestID string, info PlanInfo) error {
	s.cache.Set(requestID, info.Clone(), cache.DefaultExpiration)
	return nil
}

type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(redis *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redis, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, requestID string) (PlanInfo, bool, error) {
	val, err := s.redis.Get(ctx, planInfoKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PlanInfo{}, false, nil
	}
	if err != nil {
		return PlanInfo{}, false, err
	}
	var info PlanInfo
	if err := json.Unmarshal(val, &info); err != nil {
		return PlanInfo{}, false, fmt.Errorf("planinfo: decode cached value: %w", err)
	}
	return info, true, nil
}

func (s *RedisStore) Set(ctx context.Context, requestID string, info PlanInfo) error {
	val, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("planinfo: encode value: %w", err)
	}
	return s.redis.Set(ctx, planInfoKey(requestID), val, s.ttl).Err()
}

func planInfoKey(requestID string) string {
	return planInfoKeyPrefix + requestID
}
