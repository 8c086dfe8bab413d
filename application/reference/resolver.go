// Package reference holds the client side of the mesh: an accessor for
// outbound CRUD against providing services, and a resolver that
// dereferences (sref, uref) pairs into full entities through it.
package reference

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"uerp-backend/application/registry"
	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
)

// Credentials are forwarded on the outbound request so the remote
// service applies the caller's own authorization.
type Credentials struct {
	Token string
	Realm string
}

// Resolver resolves references through the global schema catalog.
type Resolver struct {
	logger   *zap.Logger
	registry *registry.Registry
	access   *Accessor
}

// New builds a resolver. A nil client gets a bounded default.
func New(logger *zap.Logger, reg *registry.Registry, client *http.Client) *Resolver {
	return &Resolver{
		logger:   logger,
		registry: reg,
		access:   NewAccessor(logger, client),
	}
}

// Resolve fetches the entity a reference points at. The sref must be
// known, readable and carry a provider; otherwise the reference cannot
// be followed.
func (r *Resolver) Resolve(ctx context.Context, ref schema.Reference, creds Credentials) (schema.Model, error) {
	info, ok := r.registry.BySRef(ref.SRef)
	if !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown schema reference %q", ref.SRef))
	}
	if !info.CRUD.CanRead() {
		return nil, apperrors.NewMethodNotAllowed(fmt.Sprintf("schema %q does not allow read", ref.SRef))
	}
	if info.Provider == "" {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("schema %q has no provider", ref.SRef))
	}
	return r.access.Read(ctx, info, ref.ID, creds)
}
