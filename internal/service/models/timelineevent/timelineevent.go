package timelineevent

import (
	"time"

	"github.com/google/uuid"
)

// Type is the kind of timeline entry.
type Type string

const (
	TypePost      Type = "post"
	TypeBoost     Type = "boost"
	TypeLike      Type = "like"
	TypeFollowed  Type = "followed"
	TypeMentioned Type = "mentioned"
)

// TimelineEvent is one entry on an identity's home timeline.
type TimelineEvent struct {
	ID          uuid.UUID
	IdentityURI string
	Type        Type
	SubjectURI  string
	CreatedAt   time.Time
}

// New creates a timeline event.
func New(kind Type, identityURI, subjectURI string) TimelineEvent {
	return TimelineEvent{
		ID:          uuid.New(),
		IdentityURI: identityURI,
		Type:        kind,
		SubjectURI:  subjectURI,
		CreatedAt:   time.Now(),
	}
}
