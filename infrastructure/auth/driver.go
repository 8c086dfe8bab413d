// Package auth composes token resolution out of three layers: a
// process-local memo, the shared KV store and the identity provider.
// It also holds the policy snapshot the ACL unions are computed from.
package auth

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"uerp-backend/domain/schema"
	"uerp-backend/infrastructure/drivers"
	"uerp-backend/infrastructure/identity"
)

// kvPrefix namespaces token entries in the shared store.
const kvPrefix = "authinfo:"

// IdentityProvider is the upstream token verifier.
type IdentityProvider interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	UserInfo(ctx context.Context, realm, token string) (*identity.UserInfo, error)
}

// Driver implements drivers.AuthDriver.
type Driver struct {
	logger       *zap.Logger
	provider     IdentityProvider
	kv           drivers.KeyValue
	defaultRealm string
	kvExpire     int

	mu    sync.RWMutex
	rbacs map[string]*schema.Policy
	infos map[string]*schema.AuthInfo

	resolves singleflight.Group
}

// New composes the auth driver. kvExpire bounds session staleness in
// the shared store, in seconds.
func New(logger *zap.Logger, provider IdentityProvider, kv drivers.KeyValue, defaultRealm string, kvExpire int) *Driver {
	if kvExpire <= 0 {
		kvExpire = schema.SecondsHour
	}
	return &Driver{
		logger:       logger,
		provider:     provider,
		kv:           kv,
		defaultRealm: defaultRealm,
		kvExpire:     kvExpire,
		rbacs:        map[string]*schema.Policy{},
		infos:        map[string]*schema.AuthInfo{},
	}
}

// Connect opens the provider session.
func (d *Driver) Connect(ctx context.Context) error {
	return d.provider.Connect(ctx)
}

// Disconnect closes the provider session.
func (d *Driver) Disconnect(ctx context.Context) error {
	return d.provider.Disconnect(ctx)
}

// RefreshRBACs replaces the policy snapshot as a whole; readers keep
// whatever snapshot they already took.
func (d *Driver) RefreshRBACs(ctx context.Context, policies []schema.Policy) error {
	next := make(map[string]*schema.Policy, len(policies))
	for n := range policies {
		policy := policies[n]
		next[policy.Name] = &policy
	}
	d.mu.Lock()
	d.rbacs = next
	d.mu.Unlock()
	return nil
}

// RefreshInfos evicts the process-local token memo, forcing the next
// touch of every token through the KV store or the provider.
func (d *Driver) RefreshInfos(ctx context.Context) error {
	d.mu.Lock()
	d.infos = map[string]*schema.AuthInfo{}
	d.mu.Unlock()
	return nil
}

// GetAuthInfo resolves a token: process memo first, shared KV second,
// provider last with write-back to both. Concurrent resolutions of the
// same token share one provider call.
func (d *Driver) GetAuthInfo(ctx context.Context, realm, token string) (*schema.AuthInfo, error) {
	if realm == "" {
		realm = d.defaultRealm
	}

	d.mu.RLock()
	memo := d.infos[token]
	d.mu.RUnlock()
	if memo != nil {
		return memo, nil
	}

	if raw, err := d.kv.GetKV(ctx, kvPrefix+token); err == nil && raw != "" {
		var info schema.AuthInfo
		if err := json.Unmarshal([]byte(raw), &info); err == nil {
			return &info, nil
		}
		d.logger.Warn("dropping corrupt auth info entry", zap.String("realm", realm))
	}

	result, err, _ := d.resolves.Do(token, func() (any, error) {
		return d.resolve(ctx, realm, token)
	})
	if err != nil {
		return nil, err
	}
	return result.(*schema.AuthInfo), nil
}

func (d *Driver) resolve(ctx context.Context, realm, token string) (*schema.AuthInfo, error) {
	claims, err := d.provider.UserInfo(ctx, realm, token)
	if err != nil {
		return nil, err
	}

	info := &schema.AuthInfo{
		Realm:    realm,
		Username: claims.Username,
		Policy:   claims.Roles,
	}

	d.mu.RLock()
	for _, role := range claims.Roles {
		if role == "admin" {
			info.Admin = true
			continue
		}
		if policy, ok := d.rbacs[role]; ok {
			info.ReadAllowed = mergeSets(info.ReadAllowed, policy.ReadAllowed)
			info.CreateAllowed = mergeSets(info.CreateAllowed, policy.CreateAllowed)
			info.UpdateAllowed = mergeSets(info.UpdateAllowed, policy.UpdateAllowed)
			info.DeleteAllowed = mergeSets(info.DeleteAllowed, policy.DeleteAllowed)
		}
	}
	d.mu.RUnlock()

	d.mu.Lock()
	d.infos[token] = info
	d.mu.Unlock()

	if raw, err := json.Marshal(info); err == nil {
		if err := d.kv.SetKV(ctx, kvPrefix+token, string(raw), d.kvExpire); err != nil {
			d.logger.Warn("auth info write-back failed", zap.Error(err))
		}
	}
	return info, nil
}

func mergeSets(into, add []string) []string {
	have := make(map[string]bool, len(into))
	for _, s := range into {
		have[s] = true
	}
	for _, s := range add {
		if !have[s] {
			have[s] = true
			into = append(into, s)
		}
	}
	return into
}
