package itimelinerepo

import (
	"context"

	"github.com/osmaa/takahe/internal/service/models/timelineevent"
)

// ITimelineRepository defines storage for timeline events.
type ITimelineRepository interface {
	// Insert stores a new timeline event
	Insert(ctx context.Context, model timelineevent.TimelineEvent) error

	// ClearForIdentity removes all events on an identity's timeline
	ClearForIdentity(ctx context.Context, identityURI string) (int64, error)
}
