package policy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uerp-backend/application/coordinator"
	"uerp-backend/application/tasks"
	"uerp-backend/domain/schema"
)

type policyDatabase struct {
	docs []schema.Document
}

func (d *policyDatabase) Connect(ctx context.Context) error                          { return nil }
func (d *policyDatabase) Disconnect(ctx context.Context) error                       { return nil }
func (d *policyDatabase) Reconnect(ctx context.Context) error                        { return nil }
func (d *policyDatabase) RegisterModel(ctx context.Context, info *schema.Info) error { return nil }

func (d *policyDatabase) Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error) {
	return nil, nil
}

func (d *policyDatabase) Search(ctx context.Context, info *schema.Info, query *schema.Query) ([]schema.Document, error) {
	return d.docs, nil
}

func (d *policyDatabase) Count(ctx context.Context, info *schema.Info, query *schema.Query) (int64, error) {
	return int64(len(d.docs)), nil
}

func (d *policyDatabase) Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	return nil
}

func (d *policyDatabase) Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	return nil
}

func (d *policyDatabase) Delete(ctx context.Context, info *schema.Info, id string) error {
	return nil
}

type recordingAuth struct {
	mu        sync.Mutex
	policies  []schema.Policy
	refreshed int
	evicted   int
}

func (a *recordingAuth) Connect(ctx context.Context) error    { return nil }
func (a *recordingAuth) Disconnect(ctx context.Context) error { return nil }

func (a *recordingAuth) GetAuthInfo(ctx context.Context, realm, token string) (*schema.AuthInfo, error) {
	return nil, nil
}

func (a *recordingAuth) RefreshRBACs(ctx context.Context, policies []schema.Policy) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.policies = policies
	a.refreshed++
	return nil
}

func (a *recordingAuth) RefreshInfos(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evicted++
	return nil
}

func policyInfo(t *testing.T) *schema.Info {
	t.Helper()
	info, err := schema.NewInfo(&schema.Policy{}, "service.auth", schema.Config{
		CRUD:  schema.CRUDAll,
		Layer: schema.LayerSD,
	})
	require.NoError(t, err)
	info.Bind("", "uerp", 1)
	return info
}

func TestSnapshotPoliciesPushesRBACs(t *testing.T) {
	db := &policyDatabase{docs: []schema.Document{
		{"id": "p1", "name": "operator", "readAllowed": []any{"x.Y"}, "deleted": false},
		{"id": "p2", "name": "viewer", "readAllowed": []any{"x.Y", "x.Z"}, "deleted": false},
	}}
	auth := &recordingAuth{}
	pool := tasks.NewPool(zap.NewNop(), 1, 8, time.Second)
	coord := coordinator.New(zap.NewNop(), pool, nil, nil, db)

	r := New(zap.NewNop(), coord, auth, policyInfo(t), time.Minute, time.Minute)
	r.snapshotPolicies(context.Background())

	require.NoError(t, pool.Shutdown(context.Background()))
	require.Len(t, auth.policies, 2)
	assert.Equal(t, "operator", auth.policies[0].Name)
	assert.Equal(t, []string{"x.Y", "x.Z"}, auth.policies[1].ReadAllowed)
}

func TestSnapshotPoliciesEmptySetIsNoop(t *testing.T) {
	auth := &recordingAuth{}
	pool := tasks.NewPool(zap.NewNop(), 1, 8, time.Second)
	coord := coordinator.New(zap.NewNop(), pool, nil, nil, &policyDatabase{})

	r := New(zap.NewNop(), coord, auth, policyInfo(t), time.Minute, time.Minute)
	r.snapshotPolicies(context.Background())

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Zero(t, auth.refreshed)
}

func TestStartRunsImmediateIterationAndStops(t *testing.T) {
	auth := &recordingAuth{}
	pool := tasks.NewPool(zap.NewNop(), 1, 8, time.Second)
	coord := coordinator.New(zap.NewNop(), pool, nil, nil, &policyDatabase{})

	r := New(zap.NewNop(), coord, auth, policyInfo(t), time.Hour, time.Hour)
	r.Start()

	deadline := time.After(time.Second)
	for {
		auth.mu.Lock()
		evicted := auth.evicted
		auth.mu.Unlock()
		if evicted > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("invalidation loop never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	require.NoError(t, r.Stop(context.Background()))
	require.NoError(t, pool.Shutdown(context.Background()))
}
