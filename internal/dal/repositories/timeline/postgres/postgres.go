package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/osmaa/takahe/internal/dal/postgres"
	"github.com/osmaa/takahe/internal/service/models/timelineevent"
)

// TimelineRepository implements timeline event storage for PostgreSQL.
type TimelineRepository struct {
	client *postgres.Client
}

// NewTimelineRepository creates a new timeline repository.
func NewTimelineRepository(client *postgres.Client) *TimelineRepository {
	return &TimelineRepository{
		client: client,
	}
}

// Insert stores a new timeline event.
func (r *TimelineRepository) Insert(ctx context.Context, model timelineevent.TimelineEvent) error {
	query, args, err := sq.Insert("timeline_events").
		Columns("id", "identity_uri", "type", "subject_uri", "created_at").
		Values(model.ID, model.IdentityURI, model.Type, model.SubjectURI, model.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert timeline event: %w", err)
	}

	return nil
}

// ClearForIdentity removes all events on an identity's timeline.
func (r *TimelineRepository) ClearForIdentity(
	ctx context.Context,
	identityURI string,
) (int64, error) {
	query, args, err := sq.Delete("timeline_events").
		Where(sq.Eq{"identity_uri": identityURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear timeline: %w", err)
	}

	cleared, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared timeline events: %w", err)
	}

	return cleared, nil
}
