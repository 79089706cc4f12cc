package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/osmaa/takahe/internal/dal/postgres"
	"github.com/osmaa/takahe/internal/service/models/interaction"
)

// InteractionRepository implements interaction storage for PostgreSQL.
type InteractionRepository struct {
	client *postgres.Client
}

// NewInteractionRepository creates a new interaction repository.
func NewInteractionRepository(client *postgres.Client) *InteractionRepository {
	return &InteractionRepository{
		client: client,
	}
}

// Upsert inserts the interaction or refreshes the existing type/actor/post
// row. Re-applying an interaction is a no-op, which keeps handlers idempotent
// against redelivery.
func (r *InteractionRepository) Upsert(ctx context.Context, model interaction.Interaction) error {
	query, args, err := sq.Insert("interactions").
		Columns("id", "type", "actor_uri", "post_uri", "created_at").
		Values(model.ID, model.Type, model.ActorURI, model.PostURI, model.CreatedAt).
		Suffix("ON CONFLICT (type, actor_uri, post_uri) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert interaction: %w", err)
	}

	return nil
}

// Delete removes the type/actor/post interaction.
func (r *InteractionRepository) Delete(
	ctx context.Context,
	kind interaction.Type,
	actorURI, postURI string,
) error {
	query, args, err := sq.Delete("interactions").
		Where(sq.Eq{"type": kind, "actor_uri": actorURI, "post_uri": postURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}

	return nil
}

// DeleteByType removes all interactions of one type by an actor.
func (r *InteractionRepository) DeleteByType(
	ctx context.Context,
	kind interaction.Type,
	actorURI string,
) error {
	query, args, err := sq.Delete("interactions").
		Where(sq.Eq{"type": kind, "actor_uri": actorURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete interactions: %w", err)
	}

	return nil
}
