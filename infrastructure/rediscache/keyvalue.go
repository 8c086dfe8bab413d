package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyValue is the shared token store. It lives on its own Redis logical
// database so entity flushes never touch sessions.
type KeyValue struct {
	logger *zap.Logger
	cfg    Config
	client *redis.Client
}

// NewKeyValue builds an unconnected token store.
func NewKeyValue(logger *zap.Logger, cfg Config) *KeyValue {
	return &KeyValue{logger: logger, cfg: cfg}
}

// Connect opens the client and verifies the endpoint.
func (k *KeyValue) Connect(ctx context.Context) error {
	k.client = redis.NewClient(&redis.Options{
		Addr:     k.cfg.Addr(),
		DB:       k.cfg.Database,
		Password: k.cfg.Password,
	})
	if err := k.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis %s: %w", k.cfg.Addr(), err)
	}
	return nil
}

// Disconnect closes the client.
func (k *KeyValue) Disconnect(ctx context.Context) error {
	if k.client == nil {
		return nil
	}
	return k.client.Close()
}

// GetKV reads a value and refreshes its TTL. A missing key yields the
// empty string.
func (k *KeyValue) GetKV(ctx context.Context, key string) (string, error) {
	pipe := k.client.TxPipeline()
	get := pipe.Get(ctx, key)
	pipe.Expire(ctx, key, time.Duration(k.cfg.Expire)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return get.Val(), nil
}

// SetKV stores a value. A non-positive expire falls back to the store
// default.
func (k *KeyValue) SetKV(ctx context.Context, key, value string, expire int) error {
	if expire <= 0 {
		expire = k.cfg.Expire
	}
	return k.client.Set(ctx, key, value, time.Duration(expire)*time.Second).Err()
}

// DelKV drops a key.
func (k *KeyValue) DelKV(ctx context.Context, key string) error {
	return k.client.Del(ctx, key).Err()
}
