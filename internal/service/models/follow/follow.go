package follow

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle of a follow relation.
type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateRejected State = "rejected"
)

// Follow is a follow relation between two actors, keyed by their URIs.
type Follow struct {
	ID        uuid.UUID
	URI       string
	SourceURI string
	TargetURI string
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a pending follow.
func New(uri, sourceURI, targetURI string) Follow {
	now := time.Now()

	return Follow{
		ID:        uuid.New(),
		URI:       uri,
		SourceURI: sourceURI,
		TargetURI: targetURI,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
