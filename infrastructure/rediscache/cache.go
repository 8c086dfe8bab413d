// Package rediscache implements the cache tier and the shared token
// store on Redis. Entities are stored as compact JSON under per-schema
// key prefixes; every read refreshes the key's TTL.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
)

// Config selects the Redis endpoint and the default entity TTL.
type Config struct {
	Hostname string
	Hostport int
	Database int
	Password string
	Expire   int
}

// Addr renders the host:port pair.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Hostname, c.Hostport) }

// cacheState is the per-schema precomputed state stashed in the cache
// option bag.
type cacheState struct {
	prefix string
	expire time.Duration
}

// Driver is the cache tier.
type Driver struct {
	logger *zap.Logger
	cfg    Config
	client *redis.Client
}

// New builds an unconnected driver.
func New(logger *zap.Logger, cfg Config) *Driver {
	return &Driver{logger: logger, cfg: cfg}
}

// Connect opens the client and verifies the endpoint.
func (d *Driver) Connect(ctx context.Context) error {
	d.client = redis.NewClient(&redis.Options{
		Addr:     d.cfg.Addr(),
		DB:       d.cfg.Database,
		Password: d.cfg.Password,
	})
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis %s: %w", d.cfg.Addr(), err)
	}
	return nil
}

// Disconnect closes the client.
func (d *Driver) Disconnect(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

// RegisterModel fixes the schema's key prefix and effective TTL.
func (d *Driver) RegisterModel(ctx context.Context, info *schema.Info) error {
	expire := info.Cache.Expire
	if expire <= 0 {
		expire = d.cfg.Expire
		info.Cache.Expire = expire
	}
	info.Cache.State = &cacheState{
		prefix: info.DRef + ":",
		expire: time.Duration(expire) * time.Second,
	}
	return nil
}

func state(info *schema.Info) (*cacheState, error) {
	s, ok := info.Cache.State.(*cacheState)
	if !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("schema %q is not registered at the cache tier", info.SRef))
	}
	return s, nil
}

// Read fetches one entity and refreshes its TTL in the same pipeline.
func (d *Driver) Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error) {
	s, err := state(info)
	if err != nil {
		return nil, err
	}
	key := s.prefix + id

	pipe := d.client.TxPipeline()
	get := pipe.Get(ctx, key)
	pipe.Expire(ctx, key, s.expire)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var doc schema.Document
	if err := json.Unmarshal([]byte(get.Val()), &doc); err != nil {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("corrupt cache entry %s", key))
	}
	return doc, nil
}

// Create stores the given entities with the schema TTL. Rewriting an
// existing key is the same operation, so Update shares it.
func (d *Driver) Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s, err := state(info)
	if err != nil {
		return err
	}

	pipe := d.client.TxPipeline()
	for _, doc := range docs {
		id := schema.DocumentString(doc, "id")
		if id == "" {
			return apperrors.NewBadRequest("document has no id")
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return apperrors.NewBadRequest("document is not serializable")
		}
		pipe.Set(ctx, s.prefix+id, raw, s.expire)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Update rewrites the entities, resetting their TTL.
func (d *Driver) Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	return d.Create(ctx, info, docs...)
}

// Delete drops one entity.
func (d *Driver) Delete(ctx context.Context, info *schema.Info, id string) error {
	s, err := state(info)
	if err != nil {
		return err
	}
	return d.client.Del(ctx, s.prefix+id).Err()
}
