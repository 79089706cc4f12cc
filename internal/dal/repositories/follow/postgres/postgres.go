package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/osmaa/takahe/internal/dal/postgres"
	"github.com/osmaa/takahe/internal/service/models/follow"
)

// FollowRepository implements follow storage for PostgreSQL.
type FollowRepository struct {
	client *postgres.Client
}

// NewFollowRepository creates a new follow repository.
func NewFollowRepository(client *postgres.Client) *FollowRepository {
	return &FollowRepository{
		client: client,
	}
}

// Upsert inserts the follow or updates the existing source/target row.
func (r *FollowRepository) Upsert(ctx context.Context, model follow.Follow) error {
	query, args, err := sq.Insert("follows").
		Columns("id", "uri", "source_uri", "target_uri", "state", "created_at", "updated_at").
		Values(
			model.ID,
			model.URI,
			model.SourceURI,
			model.TargetURI,
			model.State,
			model.CreatedAt,
			model.UpdatedAt,
		).
		Suffix(`ON CONFLICT (source_uri, target_uri) DO UPDATE SET
			uri = EXCLUDED.uri,
			state = EXCLUDED.state,
			updated_at = ?`, time.Now()).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert follow: %w", err)
	}

	return nil
}

// UpdateState moves the source/target relation to a new state.
func (r *FollowRepository) UpdateState(
	ctx context.Context,
	sourceURI, targetURI string,
	state follow.State,
) error {
	query, args, err := sq.Update("follows").
		Set("state", state).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"source_uri": sourceURI, "target_uri": targetURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update follow state: %w", err)
	}

	return nil
}

// UpdateStateByURI moves the relation identified by its activity URI to a
// new state.
func (r *FollowRepository) UpdateStateByURI(
	ctx context.Context,
	uri string,
	state follow.State,
) error {
	query, args, err := sq.Update("follows").
		Set("state", state).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"uri": uri}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update follow state: %w", err)
	}

	return nil
}

// Delete removes the source/target relation.
func (r *FollowRepository) Delete(ctx context.Context, sourceURI, targetURI string) error {
	query, args, err := sq.Delete("follows").
		Where(sq.Eq{"source_uri": sourceURI, "target_uri": targetURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	return nil
}
