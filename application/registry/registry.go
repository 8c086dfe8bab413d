// Package registry attaches entity types to the process: it derives
// their registry records, prepares the participating tiers and keeps
// the global sref and path lookup maps used by routing and reference
// resolution. Registration happens during startup only; the maps are
// read-only afterwards.
package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"uerp-backend/domain/schema"
	"uerp-backend/infrastructure/drivers"
)

// Registry is the process-wide schema catalog.
type Registry struct {
	logger  *zap.Logger
	service string
	version int

	cache    drivers.CacheDriver
	search   drivers.SearchDriver
	database drivers.DatabaseDriver

	srefs map[string]*schema.Info
	paths map[string]*schema.Info
	order []*schema.Info
}

// New builds an empty registry for the named service. The lookup maps
// are allocated here so remote references registered before the first
// local schema still resolve.
func New(logger *zap.Logger, service string, version int, cache drivers.CacheDriver, search drivers.SearchDriver, database drivers.DatabaseDriver) *Registry {
	return &Registry{
		logger:   logger,
		service:  service,
		version:  version,
		cache:    cache,
		search:   search,
		database: database,
		srefs:    map[string]*schema.Info{},
		paths:    map[string]*schema.Info{},
	}
}

// Service returns the owning service name.
func (r *Registry) Service() string { return r.service }

// Register attaches a locally-owned entity type: builds its record,
// registers it at each participating tier in database, search, cache
// order and publishes it in the lookup maps. Tier errors abort startup.
func (r *Registry) Register(ctx context.Context, model schema.Model, module string, cfg schema.Config) (*schema.Info, error) {
	info, err := schema.NewInfo(model, module, cfg)
	if err != nil {
		return nil, err
	}
	info.Bind("", r.service, r.version)

	if info.Layer.HasDatabase() && r.database != nil {
		if err := r.database.RegisterModel(ctx, info); err != nil {
			return nil, fmt.Errorf("register %s at database: %w", info.SRef, err)
		}
	}
	if info.Layer.HasSearch() && r.search != nil {
		if err := r.search.RegisterModel(ctx, info); err != nil {
			return nil, fmt.Errorf("register %s at search: %w", info.SRef, err)
		}
	}
	if info.Layer.HasCache() && r.cache != nil {
		if err := r.cache.RegisterModel(ctx, info); err != nil {
			return nil, fmt.Errorf("register %s at cache: %w", info.SRef, err)
		}
	}

	r.publish(info)
	r.logger.Info("registered schema",
		zap.String("sref", info.SRef),
		zap.String("dref", info.DRef),
		zap.String("path", info.Path))
	return info, nil
}

// RegisterRemote attaches an entity type owned by another service so
// references to it resolve through its provider. No tiers or routes
// are prepared.
func (r *Registry) RegisterRemote(model schema.Model, module string, cfg schema.Config, provider, service string) (*schema.Info, error) {
	if provider == "" {
		return nil, fmt.Errorf("remote schema needs a provider base URL")
	}
	info, err := schema.NewInfo(model, module, cfg)
	if err != nil {
		return nil, err
	}
	info.Bind(provider, service, r.version)
	r.publish(info)
	return info, nil
}

func (r *Registry) publish(info *schema.Info) {
	r.srefs[info.SRef] = info
	r.paths[info.Path] = info
	r.order = append(r.order, info)
}

// BySRef looks a schema up by its schema reference.
func (r *Registry) BySRef(sref string) (*schema.Info, bool) {
	info, ok := r.srefs[sref]
	return info, ok
}

// ByPath looks a schema up by its HTTP path prefix.
func (r *Registry) ByPath(path string) (*schema.Info, bool) {
	info, ok := r.paths[path]
	return info, ok
}

// All returns the registered schemas in registration order.
func (r *Registry) All() []*schema.Info {
	return r.order
}
