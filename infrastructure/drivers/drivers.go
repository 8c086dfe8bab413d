// Package drivers declares the tier driver contracts the coordinator
// dispatches through. Concrete backends live in sibling infrastructure
// packages; tests substitute fakes.
package drivers

import (
	"context"

	"uerp-backend/domain/schema"
)

// Driver is the lifecycle shared by every tier backend.
type Driver interface {
	// Connect opens the backend connection pool.
	Connect(ctx context.Context) error
	// Disconnect releases the pool. Safe to call once after Connect.
	Disconnect(ctx context.Context) error
	// RegisterModel prepares per-schema state (namespaces, mappings,
	// translators) and stashes it in the matching option bag.
	RegisterModel(ctx context.Context, info *schema.Info) error
}

// CacheDriver is the volatile KV tier.
type CacheDriver interface {
	Driver

	Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error)
	Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error
	Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error
	Delete(ctx context.Context, info *schema.Info, id string) error
}

// SearchDriver is the secondary index tier.
type SearchDriver interface {
	Driver

	Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error)
	Search(ctx context.Context, info *schema.Info, query *schema.Query) ([]schema.Document, error)
	Count(ctx context.Context, info *schema.Info, query *schema.Query) (int64, error)
	Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error
	Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error
	Delete(ctx context.Context, info *schema.Info, id string) error
}

// DatabaseDriver is the durable tier and the primary for writes.
type DatabaseDriver interface {
	Driver

	// Reconnect schedules a single-flight background reconnect after a
	// broken session; concurrent callers share one attempt.
	Reconnect(ctx context.Context) error

	Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error)
	Search(ctx context.Context, info *schema.Info, query *schema.Query) ([]schema.Document, error)
	Count(ctx context.Context, info *schema.Info, query *schema.Query) (int64, error)
	Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error
	Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error
	Delete(ctx context.Context, info *schema.Info, id string) error
}

// KeyValue is the shared token store the auth driver memoizes through.
type KeyValue interface {
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key, value string, expire int) error
	DelKV(ctx context.Context, key string) error
}

// AuthDriver resolves bearer tokens and holds the policy snapshot.
type AuthDriver interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// GetAuthInfo resolves a token through the process memo, the shared
	// KV store and finally the identity provider.
	GetAuthInfo(ctx context.Context, realm, token string) (*schema.AuthInfo, error)
	// RefreshRBACs replaces the policy snapshot atomically.
	RefreshRBACs(ctx context.Context, policies []schema.Policy) error
	// RefreshInfos evicts the process-local token memo.
	RefreshInfos(ctx context.Context) error
}
