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
	"github.com/osmaa/takahe/internal/service/models/identity"
)

// IdentityRepository implements identity storage for PostgreSQL.
type IdentityRepository struct {
	client *postgres.Client
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(client *postgres.Client) *IdentityRepository {
	return &IdentityRepository{
		client: client,
	}
}

// Upsert inserts the identity or updates the existing row for its actor URI.
func (r *IdentityRepository) Upsert(ctx context.Context, model identity.Identity) error {
	profile, err := json.Marshal(model.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query, args, err := sq.Insert("identities").
		Columns(
			"id",
			"actor_uri",
			"handle",
			"inbox_uri",
			"public_key_pem",
			"public_key_id",
			"local",
			"profile",
			"fetched_at",
			"created_at",
			"updated_at",
		).
		Values(
			model.ID,
			model.ActorURI,
			model.Handle,
			model.InboxURI,
			model.PublicKeyPEM,
			model.PublicKeyID,
			model.Local,
			profile,
			model.FetchedAt,
			model.CreatedAt,
			model.UpdatedAt,
		).
		Suffix(`ON CONFLICT (actor_uri) DO UPDATE SET
			handle = EXCLUDED.handle,
			inbox_uri = EXCLUDED.inbox_uri,
			public_key_pem = EXCLUDED.public_key_pem,
			public_key_id = EXCLUDED.public_key_id,
			profile = EXCLUDED.profile,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = ?`, time.Now()).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}

	return nil
}

// GetByActorURI returns the identity for an actor URI, or nil.
func (r *IdentityRepository) GetByActorURI(
	ctx context.Context,
	actorURI string,
) (*identity.Identity, error) {
	query, args, err := sq.Select(
		"id",
		"actor_uri",
		"handle",
		"inbox_uri",
		"public_key_pem",
		"public_key_id",
		"local",
		"profile",
		"fetched_at",
		"created_at",
		"updated_at",
	).
		From("identities").
		Where(sq.Eq{"actor_uri": actorURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var (
		model   identity.Identity
		profile []byte
	)
	row := r.client.DB().QueryRowContext(ctx, query, args...)
	err = row.Scan(
		&model.ID,
		&model.ActorURI,
		&model.Handle,
		&model.InboxURI,
		&model.PublicKeyPEM,
		&model.PublicKeyID,
		&model.Local,
		&profile,
		&model.FetchedAt,
		&model.CreatedAt,
		&model.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan identity: %w", err)
	}

	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &model.Profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
		}
	}

	return &model, nil
}

// ExistsByActorURI reports whether an identity row exists for the URI.
func (r *IdentityRepository) ExistsByActorURI(ctx context.Context, actorURI string) (bool, error) {
	query, args, err := sq.Select("1").
		From("identities").
		Where(sq.Eq{"actor_uri": actorURI}).
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
		return false, fmt.Errorf("failed to check identity existence: %w", err)
	}

	return true, nil
}

// DeleteByActorURI removes the identity for an actor URI.
func (r *IdentityRepository) DeleteByActorURI(ctx context.Context, actorURI string) error {
	query, args, err := sq.Delete("identities").
		Where(sq.Eq{"actor_uri": actorURI}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	return nil
}
