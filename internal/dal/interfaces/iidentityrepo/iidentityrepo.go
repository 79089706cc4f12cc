package iidentityrepo

import (
	"context"

	"github.com/osmaa/takahe/internal/service/models/identity"
)

// IIdentityRepository defines storage for local and remote identities.
type IIdentityRepository interface {
	// Upsert inserts the identity or updates the existing row for its actor URI
	Upsert(ctx context.Context, model identity.Identity) error

	// GetByActorURI returns the identity for an actor URI, or nil
	GetByActorURI(ctx context.Context, actorURI string) (*identity.Identity, error)

	// ExistsByActorURI reports whether an identity row exists for the URI
	ExistsByActorURI(ctx context.Context, actorURI string) (bool, error)

	// DeleteByActorURI removes the identity for an actor URI
	DeleteByActorURI(ctx context.Context, actorURI string) error
}
