package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/osmaa/takahe/internal/dal/postgres"
	"github.com/osmaa/takahe/internal/service/models/block"
)

// BlockRepository implements block storage for PostgreSQL.
type BlockRepository struct {
	client *postgres.Client
}

// NewBlockRepository creates a new block repository.
func NewBlockRepository(client *postgres.Client) *BlockRepository {
	return &BlockRepository{
		client: client,
	}
}

// Upsert inserts the block or refreshes the existing source/target row.
func (r *BlockRepository) Upsert(ctx context.Context, model block.Block) error {
	query, args, err := sq.Insert("blocks").
		Columns("id", "uri", "source_uri", "target_uri", "created_at").
		Values(model.ID, model.URI, model.SourceURI, model.TargetURI, model.CreatedAt).
		Suffix("ON CONFLICT (source_uri, target_uri) DO UPDATE SET uri = EXCLUDED.uri").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert block: %w", err)
	}

	return nil
}

// Delete removes the source/target block.
func (r *BlockRepository) Delete(ctx context.Context, sourceURI, targetURI string) error {
	query, args, err := sq.Delete("blocks").
		Where(sq.Eq{"source_uri": sourceURI, "target_uri": targetURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}

	return nil
}
