// Package policy runs the two background loops keeping authorization
// state fresh: a policy snapshot push and a periodic token memo purge.
package policy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"uerp-backend/application/coordinator"
	"uerp-backend/domain/filter"
	"uerp-backend/domain/schema"
	"uerp-backend/infrastructure/drivers"
)

// Refresher owns the loops. Both survive iteration errors; Stop signals
// them before the drivers disconnect.
type Refresher struct {
	logger *zap.Logger
	coord  *coordinator.Coordinator
	auth   drivers.AuthDriver
	policy *schema.Info

	rbacInterval time.Duration
	infoInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a refresher over the registered Policy schema.
func New(logger *zap.Logger, coord *coordinator.Coordinator, auth drivers.AuthDriver, policyInfo *schema.Info, rbacInterval, infoInterval time.Duration) *Refresher {
	if rbacInterval <= 0 {
		rbacInterval = time.Minute
	}
	if infoInterval <= 0 {
		infoInterval = time.Minute
	}
	return &Refresher{
		logger:       logger,
		coord:        coord,
		auth:         auth,
		policy:       policyInfo,
		rbacInterval: rbacInterval,
		infoInterval: infoInterval,
	}
}

// Start launches both loops. Each runs one immediate iteration so a
// fresh process serves ACL decisions without waiting a full interval.
func (r *Refresher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(2)
	go r.loop(ctx, r.rbacInterval, r.snapshotPolicies)
	go r.loop(ctx, r.infoInterval, r.invalidateInfos)
}

// Stop signals the loops and waits for them, honoring ctx.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) loop(ctx context.Context, interval time.Duration, iterate func(ctx context.Context)) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	iterate(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			iterate(ctx)
		}
	}
}

// snapshotPolicies loads every live Policy row from the archive path
// and replaces the auth driver's RBAC snapshot. The archive search also
// reseeds the search and cache tiers with the same set.
func (r *Refresher) snapshotPolicies(ctx context.Context) {
	query := &schema.Query{Filter: filter.FieldEquals("deleted", "false")}
	docs, err := r.coord.Search(ctx, r.policy, query, true)
	if err != nil {
		r.logger.Warn("policy snapshot failed", zap.Error(err))
		return
	}
	if len(docs) == 0 {
		return
	}

	policies := make([]schema.Policy, 0, len(docs))
	for _, doc := range docs {
		model, err := schema.FromDocument(r.policy, doc)
		if err != nil {
			r.logger.Warn("policy snapshot skipped malformed row",
				zap.String("id", schema.DocumentString(doc, "id")), zap.Error(err))
			continue
		}
		policies = append(policies, *model.(*schema.Policy))
	}
	if len(policies) == 0 {
		return
	}
	if err := r.auth.RefreshRBACs(ctx, policies); err != nil {
		r.logger.Warn("policy snapshot push failed", zap.Error(err))
		return
	}
	r.logger.Debug("policy snapshot refreshed", zap.Int("policies", len(policies)))
}

func (r *Refresher) invalidateInfos(ctx context.Context) {
	if err := r.auth.RefreshInfos(ctx); err != nil {
		r.logger.Warn("auth info invalidation failed", zap.Error(err))
	}
}
