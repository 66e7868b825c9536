package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cerbtk/registry/logging"
)

const redisKeyPrefix = "cerbtk:nonce:"

// Compare-and-delete. Expiry is left to redis, a mismatch keeps the key.
var redisConsumeScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore keeps nonces in redis so that several registry front ends can share challenges.
func NewRedisStore(ctx context.Context, cfg RedisConfig, ttl time.Duration) (Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis @ %s: %w", cfg.Addr, err)
	}
	return &redisStore{client: client, ttl: ttl, now: time.Now}, nil
}

func redisKey(deviceID string) string {
	return redisKeyPrefix + deviceID
}

func (s *redisStore) Issue(ctx context.Context, deviceID string) (Entry, error) {
	value, err := generate()
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{Nonce: value, ExpiresAt: s.now().Add(s.ttl)}
	if err := s.client.Set(ctx, redisKey(deviceID), value, s.ttl).Err(); err != nil {
		return Entry{}, fmt.Errorf("storing nonce for %s: %w", deviceID, err)
	}
	issuedMetric.Inc()
	return entry, nil
}

func (s *redisStore) Verify(ctx context.Context, deviceID, nonce string) bool {
	result, err := redisConsumeScript.Run(ctx, s.client, []string{redisKey(deviceID)}, nonce).Int64()
	if err != nil {
		logging.FromContext(ctx).Warn("nonce verification failed", zap.String("device_id", deviceID), zap.Error(err))
		verifyMetric.WithLabelValues("error").Inc()
		return false
	}
	switch result {
	case 1:
		verifyMetric.WithLabelValues("ok").Inc()
		return true
	case -1:
		verifyMetric.WithLabelValues("mismatch").Inc()
	default:
		verifyMetric.WithLabelValues("missing").Inc()
	}
	return false
}

func (s *redisStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning nonces: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
