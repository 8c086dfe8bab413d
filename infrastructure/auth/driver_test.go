package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uerp-backend/domain/schema"
	"uerp-backend/infrastructure/identity"
	apperrors "uerp-backend/pkg/errors"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	info  *identity.UserInfo
	err   error
}

func (p *fakeProvider) Connect(ctx context.Context) error    { return nil }
func (p *fakeProvider) Disconnect(ctx context.Context) error { return nil }

func (p *fakeProvider) UserInfo(ctx context.Context, realm, token string) (*identity.UserInfo, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.info, p.err
}

type mapKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapKV() *mapKV { return &mapKV{data: map[string]string{}} }

func (k *mapKV) GetKV(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.data[key], nil
}

func (k *mapKV) SetKV(ctx context.Context, key, value string, expire int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

func (k *mapKV) DelKV(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

func operatorPolicies() []schema.Policy {
	operator := schema.Policy{
		ReadAllowed:   []string{"fleet.device.Device"},
		CreateAllowed: []string{"fleet.device.Device"},
	}
	operator.Name = "operator"
	viewer := schema.Policy{
		ReadAllowed: []string{"fleet.device.Device", "metric.alarm.AlarmRule"},
	}
	viewer.Name = "viewer"
	return []schema.Policy{operator, viewer}
}

func TestResolveBuildsACLUnion(t *testing.T) {
	provider := &fakeProvider{info: &identity.UserInfo{Username: "alice", Roles: []string{"operator", "viewer"}}}
	d := New(zap.NewNop(), provider, newMapKV(), "acme", 60)
	require.NoError(t, d.RefreshRBACs(context.Background(), operatorPolicies()))

	info, err := d.GetAuthInfo(context.Background(), "", "tok-1")
	require.NoError(t, err)

	assert.Equal(t, "acme", info.Realm)
	assert.Equal(t, "alice", info.Username)
	assert.False(t, info.Admin)
	assert.ElementsMatch(t, []string{"fleet.device.Device", "metric.alarm.AlarmRule"}, info.ReadAllowed)
	assert.Equal(t, []string{"fleet.device.Device"}, info.CreateAllowed)
	assert.Empty(t, info.DeleteAllowed)
}

func TestAdminRoleShortCircuitsACLs(t *testing.T) {
	provider := &fakeProvider{info: &identity.UserInfo{Username: "root", Roles: []string{"admin"}}}
	d := New(zap.NewNop(), provider, newMapKV(), "acme", 60)

	info, err := d.GetAuthInfo(context.Background(), "acme", "tok-admin")
	require.NoError(t, err)
	assert.True(t, info.Admin)
}

func TestMemoHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{info: &identity.UserInfo{Username: "alice"}}
	d := New(zap.NewNop(), provider, newMapKV(), "acme", 60)

	_, err := d.GetAuthInfo(context.Background(), "acme", "tok-1")
	require.NoError(t, err)
	_, err = d.GetAuthInfo(context.Background(), "acme", "tok-1")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
}

func TestKVHitSkipsProvider(t *testing.T) {
	kv := newMapKV()
	seeded, _ := json.Marshal(schema.AuthInfo{Realm: "acme", Username: "bob"})
	require.NoError(t, kv.SetKV(context.Background(), kvPrefix+"tok-2", string(seeded), 0))

	provider := &fakeProvider{err: errors.New("should not be called")}
	d := New(zap.NewNop(), provider, kv, "acme", 60)

	info, err := d.GetAuthInfo(context.Background(), "acme", "tok-2")
	require.NoError(t, err)
	assert.Equal(t, "bob", info.Username)
	assert.Zero(t, provider.calls)
}

func TestResolveWritesBackToKV(t *testing.T) {
	kv := newMapKV()
	provider := &fakeProvider{info: &identity.UserInfo{Username: "alice"}}
	d := New(zap.NewNop(), provider, kv, "acme", 60)

	_, err := d.GetAuthInfo(context.Background(), "acme", "tok-3")
	require.NoError(t, err)

	raw, err := kv.GetKV(context.Background(), kvPrefix+"tok-3")
	require.NoError(t, err)
	assert.Contains(t, raw, `"username":"alice"`)
}

func TestRefreshInfosEvictsMemo(t *testing.T) {
	provider := &fakeProvider{info: &identity.UserInfo{Username: "alice"}}
	kv := newMapKV()
	d := New(zap.NewNop(), provider, kv, "acme", 60)

	_, err := d.GetAuthInfo(context.Background(), "acme", "tok-4")
	require.NoError(t, err)
	require.NoError(t, d.RefreshInfos(context.Background()))
	require.NoError(t, kv.DelKV(context.Background(), kvPrefix+"tok-4"))

	_, err = d.GetAuthInfo(context.Background(), "acme", "tok-4")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestProviderRejectionPropagates(t *testing.T) {
	provider := &fakeProvider{err: apperrors.NewUnauthorized("bad token")}
	d := New(zap.NewNop(), provider, newMapKV(), "acme", 60)

	_, err := d.GetAuthInfo(context.Background(), "acme", "tok-bad")
	assert.True(t, apperrors.IsUnauthorized(err))
}
