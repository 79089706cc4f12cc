package iinteractionrepo

import (
	"context"

	"github.com/osmaa/takahe/internal/service/models/interaction"
)

// IInteractionRepository defines storage for likes, boosts and pins.
type IInteractionRepository interface {
	// Upsert inserts the interaction or refreshes the existing
	// type/actor/post row
	Upsert(ctx context.Context, model interaction.Interaction) error

	// Delete removes the type/actor/post interaction
	Delete(ctx context.Context, kind interaction.Type, actorURI, postURI string) error

	// DeleteByType removes all interactions of one type by an actor; used
	// when re-syncing pinned posts
	DeleteByType(ctx context.Context, kind interaction.Type, actorURI string) error
}
