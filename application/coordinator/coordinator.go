// Package coordinator routes entity operations across the cache, search
// and database tiers: sequential read-through probes, database-first
// writes and detached backfills toward the faster tiers.
package coordinator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"uerp-backend/application/tasks"
	"uerp-backend/domain/schema"
	"uerp-backend/infrastructure/drivers"
	apperrors "uerp-backend/pkg/errors"
	"uerp-backend/pkg/observability"
)

// Coordinator holds the process-wide tier drivers. A nil driver means
// the tier is not wired; a schema additionally opts tiers in or out
// through its layer bits.
type Coordinator struct {
	logger   *zap.Logger
	cache    drivers.CacheDriver
	search   drivers.SearchDriver
	database drivers.DatabaseDriver
	pool     *tasks.Pool
	metrics  *observability.Collector
}

// New builds a coordinator over the wired drivers. pool runs the
// backfill fan-out; it must outlive in-flight requests.
func New(logger *zap.Logger, pool *tasks.Pool, cache drivers.CacheDriver, search drivers.SearchDriver, database drivers.DatabaseDriver) *Coordinator {
	return &Coordinator{
		logger:   logger,
		cache:    cache,
		search:   search,
		database: database,
		pool:     pool,
	}
}

// WithMetrics attaches probe and backfill counters.
func (c *Coordinator) WithMetrics(metrics *observability.Collector) *Coordinator {
	c.metrics = metrics
	return c
}

// probe counts one tier consultation.
func (c *Coordinator) probe(tier string, hit bool, err error) {
	if c.metrics == nil {
		return
	}
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	c.metrics.TierProbes.WithLabelValues(tier, result).Inc()
}

func (c *Coordinator) hasCache(info *schema.Info) bool {
	return c.cache != nil && info.Layer.HasCache()
}

func (c *Coordinator) hasSearch(info *schema.Info) bool {
	return c.search != nil && info.Layer.HasSearch()
}

func (c *Coordinator) hasDatabase(info *schema.Info) bool {
	return c.database != nil && info.Layer.HasDatabase()
}

// tierErr maps a driver failure to the caller-facing error. Request
// shape problems and primary write rejections keep their kind; any
// other failure means the tier is unavailable.
func tierErr(message string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsBadRequest(err) || apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
		return err
	}
	return apperrors.NewUnavailable(message, err)
}

// Read probes cache, search and database in order; the first hit wins
// and seeds the tiers it skipped.
func (c *Coordinator) Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error) {
	if c.hasCache(info) {
		doc, err := c.cache.Read(ctx, info, id)
		c.probe("cache", doc != nil, err)
		if err != nil {
			return nil, tierErr("could not read data", err)
		}
		if doc != nil {
			return doc, nil
		}
	}
	if c.hasSearch(info) {
		doc, err := c.search.Read(ctx, info, id)
		c.probe("search", doc != nil, err)
		if err != nil {
			return nil, tierErr("could not read data", err)
		}
		if doc != nil {
			c.backfillCache(ctx, info, doc)
			return doc, nil
		}
	}
	if c.hasDatabase(info) {
		doc, err := c.database.Read(ctx, info, id)
		c.probe("database", doc != nil, err)
		if err != nil {
			return nil, tierErr("could not read data", err)
		}
		if doc != nil {
			c.backfillCache(ctx, info, doc)
			c.backfillSearch(ctx, info, doc)
			return doc, nil
		}
	}
	return nil, apperrors.NewNotFound("not found")
}

// Search runs the query through the tier chosen by the archive flag,
// failing over to the other tier on backend errors. Unprojected result
// sets seed the tiers that missed out.
func (c *Coordinator) Search(ctx context.Context, info *schema.Info, query *schema.Query, archive bool) ([]schema.Document, error) {
	projected := query.Projected()

	if archive && c.hasDatabase(info) {
		docs, err := c.database.Search(ctx, info, query)
		switch {
		case err == nil:
			if len(docs) > 0 && !projected {
				c.backfillSearch(ctx, info, docs...)
			}
		case apperrors.IsBadRequest(err):
			return nil, err
		case c.hasSearch(info):
			c.logger.Warn("database search failed, falling back to search tier",
				zap.String("sref", info.SRef), zap.Error(err))
			docs, err = c.search.Search(ctx, info, query)
			if err != nil {
				return nil, tierErr("could not search data", err)
			}
		default:
			return nil, apperrors.NewUnavailable("could not search data", err)
		}
		if len(docs) > 0 && !projected {
			c.backfillCache(ctx, info, docs...)
		}
		return docs, nil
	}

	if c.hasSearch(info) {
		docs, err := c.search.Search(ctx, info, query)
		switch {
		case err == nil:
		case apperrors.IsBadRequest(err):
			return nil, err
		case c.hasDatabase(info):
			c.logger.Warn("search failed, falling back to database tier",
				zap.String("sref", info.SRef), zap.Error(err))
			docs, err = c.database.Search(ctx, info, query)
			if err != nil {
				return nil, tierErr("could not search data", err)
			}
			if len(docs) > 0 && !projected {
				c.backfillSearch(ctx, info, docs...)
			}
		default:
			return nil, apperrors.NewUnavailable("could not search data", err)
		}
		if len(docs) > 0 && !projected {
			c.backfillCache(ctx, info, docs...)
		}
		return docs, nil
	}

	return nil, apperrors.NewNotImplemented("no driver for search")
}

// Count mirrors Search's routing without side effects.
func (c *Coordinator) Count(ctx context.Context, info *schema.Info, query *schema.Query, archive bool) (int64, error) {
	if archive && c.hasDatabase(info) {
		result, err := c.database.Count(ctx, info, query)
		switch {
		case err == nil:
			return result, nil
		case apperrors.IsBadRequest(err):
			return 0, err
		case c.hasSearch(info):
			result, err = c.search.Count(ctx, info, query)
			if err != nil {
				return 0, tierErr("could not count data", err)
			}
			return result, nil
		default:
			return 0, apperrors.NewUnavailable("could not count data", err)
		}
	}

	if c.hasSearch(info) {
		result, err := c.search.Count(ctx, info, query)
		switch {
		case err == nil:
			return result, nil
		case apperrors.IsBadRequest(err):
			return 0, err
		case c.hasDatabase(info):
			result, err = c.database.Count(ctx, info, query)
			if err != nil {
				return 0, tierErr("could not count data", err)
			}
			return result, nil
		default:
			return 0, apperrors.NewUnavailable("could not count data", err)
		}
	}

	return 0, apperrors.NewNotImplemented("no driver for count")
}

// Create writes through the highest-priority tier in the schema's
// layer; lower tiers are seeded after the primary acknowledges.
func (c *Coordinator) Create(ctx context.Context, info *schema.Info, doc schema.Document) error {
	switch {
	case c.hasDatabase(info):
		if err := c.database.Create(ctx, info, doc); err != nil {
			return tierErr("could not create data", err)
		}
		c.backfillCache(ctx, info, doc)
		c.backfillSearch(ctx, info, doc)
	case c.hasSearch(info):
		if err := c.search.Create(ctx, info, doc); err != nil {
			return tierErr("could not create data", err)
		}
		c.backfillCache(ctx, info, doc)
	case c.hasCache(info):
		if err := c.cache.Create(ctx, info, doc); err != nil {
			return tierErr("could not create data", err)
		}
	default:
		return apperrors.NewNotImplemented("no driver for create")
	}
	return nil
}

// Update writes through the same primary order as Create. A missing or
// soft-deleted target at the database surfaces as a conflict.
func (c *Coordinator) Update(ctx context.Context, info *schema.Info, doc schema.Document) error {
	switch {
	case c.hasDatabase(info):
		if err := c.database.Update(ctx, info, doc); err != nil {
			return tierErr("could not update data", err)
		}
		c.fanout(ctx, info, "cache.update", func(ctx context.Context) error {
			return c.cache.Update(ctx, info, doc)
		}, c.hasCache(info))
		c.fanout(ctx, info, "search.update", func(ctx context.Context) error {
			return c.search.Update(ctx, info, doc)
		}, c.hasSearch(info))
	case c.hasSearch(info):
		if err := c.search.Update(ctx, info, doc); err != nil {
			return tierErr("could not update data", err)
		}
		c.fanout(ctx, info, "cache.update", func(ctx context.Context) error {
			return c.cache.Update(ctx, info, doc)
		}, c.hasCache(info))
	case c.hasCache(info):
		if err := c.cache.Update(ctx, info, doc); err != nil {
			return tierErr("could not update data", err)
		}
	default:
		return apperrors.NewNotImplemented("no driver for update")
	}
	return nil
}

// Delete removes an entity. force performs a physical delete at the
// database; otherwise the row is re-stamped deleted and written back,
// so it stays in the archive but leaves the live tiers.
func (c *Coordinator) Delete(ctx context.Context, info *schema.Info, id, owner string, force bool) error {
	switch {
	case force && c.hasDatabase(info):
		if err := c.database.Delete(ctx, info, id); err != nil {
			return tierErr("could not delete data", err)
		}
	case c.hasDatabase(info):
		doc, err := c.database.Read(ctx, info, id)
		if err != nil {
			return tierErr("could not delete data", err)
		}
		if doc == nil {
			return apperrors.NewNotFound("not found")
		}
		doc["owner"] = owner
		doc["deleted"] = true
		doc["tstamp"] = time.Now().Unix()
		if err := c.database.Update(ctx, info, doc); err != nil {
			if apperrors.IsBadRequest(err) {
				return err
			}
			return apperrors.NewConflict("could not delete data")
		}
	case c.hasSearch(info):
		if err := c.search.Delete(ctx, info, id); err != nil {
			return tierErr("could not delete data", err)
		}
		c.fanout(ctx, info, "cache.delete", func(ctx context.Context) error {
			return c.cache.Delete(ctx, info, id)
		}, c.hasCache(info))
		return nil
	case c.hasCache(info):
		return tierErr("could not delete data", c.cache.Delete(ctx, info, id))
	default:
		return apperrors.NewNotImplemented("no driver for delete")
	}

	c.fanout(ctx, info, "cache.delete", func(ctx context.Context) error {
		return c.cache.Delete(ctx, info, id)
	}, c.hasCache(info))
	c.fanout(ctx, info, "search.delete", func(ctx context.Context) error {
		return c.search.Delete(ctx, info, id)
	}, c.hasSearch(info))
	return nil
}

func (c *Coordinator) backfillCache(ctx context.Context, info *schema.Info, docs ...schema.Document) {
	c.fanout(ctx, info, "cache.create", func(ctx context.Context) error {
		return c.cache.Create(ctx, info, docs...)
	}, c.hasCache(info))
}

func (c *Coordinator) backfillSearch(ctx context.Context, info *schema.Info, docs ...schema.Document) {
	c.fanout(ctx, info, "search.create", func(ctx context.Context) error {
		return c.search.Create(ctx, info, docs...)
	}, c.hasSearch(info))
}

// fanout hands a background task to the request's deferred queue when
// one is installed, so it runs only after the response is out; outside
// a request it goes straight to the pool.
func (c *Coordinator) fanout(ctx context.Context, info *schema.Info, name string, run func(ctx context.Context) error, wired bool) {
	if !wired {
		return
	}
	if c.metrics != nil {
		tier, _, _ := strings.Cut(name, ".")
		c.metrics.Backfills.WithLabelValues(tier).Inc()
	}
	task := tasks.Task{Name: info.SRef + " " + name, Run: run}
	if deferred := tasks.DeferredFrom(ctx); deferred != nil {
		deferred.Add(task)
		return
	}
	c.pool.Submit(task)
}
