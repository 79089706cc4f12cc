package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/osmaa/takahe/internal/dal/postgres"
	"github.com/osmaa/takahe/internal/service/models/post"
)

// PostRepository implements post storage for PostgreSQL.
type PostRepository struct {
	client *postgres.Client
}

// NewPostRepository creates a new post repository.
func NewPostRepository(client *postgres.Client) *PostRepository {
	return &PostRepository{
		client: client,
	}
}

// Upsert inserts the post or updates the existing row for its object URI.
func (r *PostRepository) Upsert(ctx context.Context, model post.Post) error {
	document, err := json.Marshal(model.Document)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query, args, err := sq.Insert("posts").
		Columns(
			"id",
			"object_uri",
			"author_uri",
			"object_type",
			"content",
			"document",
			"published_at",
			"created_at",
			"updated_at",
		).
		Values(
			model.ID,
			model.ObjectURI,
			model.AuthorURI,
			model.ObjectType,
			model.Content,
			document,
			model.PublishedAt,
			model.CreatedAt,
			model.UpdatedAt,
		).
		Suffix(`ON CONFLICT (object_uri) DO UPDATE SET
			object_type = EXCLUDED.object_type,
			content = EXCLUDED.content,
			document = EXCLUDED.document,
			published_at = EXCLUDED.published_at,
			updated_at = ?`, time.Now()).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}

	return nil
}

// GetByObjectURI returns the post for an object URI, or nil.
func (r *PostRepository) GetByObjectURI(
	ctx context.Context,
	objectURI string,
) (*post.Post, error) {
	query, args, err := sq.Select(
		"id",
		"object_uri",
		"author_uri",
		"object_type",
		"content",
		"document",
		"published_at",
		"created_at",
		"updated_at",
	).
		From("posts").
		Where(sq.Eq{"object_uri": objectURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var (
		model    post.Post
		document []byte
	)
	row := r.client.DB().QueryRowContext(ctx, query, args...)
	err = row.Scan(
		&model.ID,
		&model.ObjectURI,
		&model.AuthorURI,
		&model.ObjectType,
		&model.Content,
		&document,
		&model.PublishedAt,
		&model.CreatedAt,
		&model.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	if len(document) > 0 {
		if err := json.Unmarshal(document, &model.Document); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
	}

	return &model, nil
}

// ExistsByObjectURI reports whether a post row exists for the URI.
func (r *PostRepository) ExistsByObjectURI(ctx context.Context, objectURI string) (bool, error) {
	query, args, err := sq.Select("1").
		From("posts").
		Where(sq.Eq{"object_uri": objectURI}).
		Limit(1).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var one int
	err = r.client.DB().QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check post existence: %w", err)
	}

	return true, nil
}

// DeleteByObjectURI removes the post for an object URI.
func (r *PostRepository) DeleteByObjectURI(ctx context.Context, objectURI string) error {
	query, args, err := sq.Delete("posts").
		Where(sq.Eq{"object_uri": objectURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}
