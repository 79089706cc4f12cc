package ifollowrepo

import (
	"context"

	"github.com/osmaa/takahe/internal/service/models/follow"
)

// IFollowRepository defines storage for follow relations.
type IFollowRepository interface {
	// Upsert inserts the follow or updates the existing source/target row
	Upsert(ctx context.Context, model follow.Follow) error

	// UpdateState moves the source/target relation to a new state
	UpdateState(ctx context.Context, sourceURI, targetURI string, state follow.State) error

	// UpdateStateByURI moves the relation identified by its activity URI
	// to a new state
	UpdateStateByURI(ctx context.Context, uri string, state follow.State) error

	// Delete removes the source/target relation
	Delete(ctx context.Context, sourceURI, targetURI string) error
}
