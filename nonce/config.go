package nonce

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		TTL:     DefaultTTL,
	}
}

//nolint:lll
type Config struct {
	Backend string        `long:"nonce-backend" description:"Where issued nonces are kept" choice:"memory" choice:"redis"`
	TTL     time.Duration `long:"nonce-ttl"     description:"How long an issued nonce stays valid"`

	Redis RedisConfig `group:"Redis" namespace:"redis"`
}

//nolint:lll
type RedisConfig struct {
	Addr     string `long:"addr"     description:"Redis address (host:port)"`
	Password string `long:"password" description:"Redis password"`
	DB       int    `long:"db"       description:"Redis database number"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("backend", c.Backend)
	enc.AddDuration("ttl", c.TTL)
	if c.Backend == BackendRedis {
		enc.AddString("redis-addr", c.Redis.Addr)
		enc.AddInt("redis-db", c.Redis.DB)
	}
	return nil
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("nonce ttl must be positive, got %v", cfg.TTL)
	}
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(cfg.TTL), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown nonce backend %q", cfg.Backend)
	}
}
