package interaction

import (
	"time"

	"github.com/google/uuid"
)

// Type distinguishes the interaction kinds that share one table.
type Type string

const (
	TypeLike  Type = "like"
	TypeBoost Type = "boost"
	TypePin   Type = "pin"
)

// Interaction is a like, boost or pin of a post by an actor.
type Interaction struct {
	ID        uuid.UUID
	Type      Type
	ActorURI  string
	PostURI   string
	CreatedAt time.Time
}

// New creates an interaction.
func New(kind Type, actorURI, postURI string) Interaction {
	return Interaction{
		ID:        uuid.New(),
		Type:      kind,
		ActorURI:  actorURI,
		PostURI:   postURI,
		CreatedAt: time.Now(),
	}
}
