package identity

import (
	"time"

	"github.com/google/uuid"
)

// Identity is a local or remote actor. Remote identities are created lazily
// from actor URIs and filled in when their actor document is fetched.
type Identity struct {
	ID           uuid.UUID
	ActorURI     string
	Handle       string
	InboxURI     string
	PublicKeyPEM *string
	PublicKeyID  *string
	Local        bool
	Profile      map[string]any
	FetchedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates a bare identity record for an actor URI.
func New(actorURI string) Identity {
	now := time.Now()

	return Identity{
		ID:        uuid.New(),
		ActorURI:  actorURI,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
