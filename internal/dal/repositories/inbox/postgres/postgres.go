package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/osmaa/takahe/internal/dal/postgres"
	"github.com/osmaa/takahe/internal/service/models/inbox"
)

// InboxRepository implements the inbox queue over PostgreSQL.
type InboxRepository struct {
	client *postgres.Client
}

// NewInboxRepository creates a new inbox repository.
func NewInboxRepository(client *postgres.Client) *InboxRepository {
	return &InboxRepository{
		client: client,
	}
}

// Insert stores a new message.
func (r *InboxRepository) Insert(ctx context.Context, msg inbox.Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query, args, err := sq.Insert("inbox_messages").
		Columns(
			"id",
			"payload",
			"state",
			"state_changed_at",
			"last_attempt_at",
			"locked_until",
		).
		Values(
			msg.ID,
			payload,
			msg.State,
			msg.StateChangedAt,
			msg.LastAttemptAt,
			msg.LockedUntil,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert inbox message: %w", err)
	}

	return nil
}

// ClaimBatch leases up to limit due messages in one atomic statement. The
// subquery takes row locks with SKIP LOCKED so concurrent workers never
// select the same rows, and the surrounding UPDATE moves the lease forward
// before any of them are returned.
func (r *InboxRepository) ClaimBatch(
	ctx context.Context,
	limit int,
	lease time.Duration,
) ([]inbox.Message, error) {
	now := time.Now()

	query, args, err := sq.Update("inbox_messages").
		Set("locked_until", now.Add(lease)).
		Set("last_attempt_at", now).
		Where(sq.Expr(
			`id IN (
				SELECT id FROM inbox_messages
				WHERE state = ?
				  AND (locked_until IS NULL OR locked_until <= ?)
				ORDER BY state_changed_at ASC
				LIMIT ?
				FOR UPDATE SKIP LOCKED
			)`,
			inbox.StateReceived,
			now,
			limit,
		)).
		Suffix("RETURNING id, payload, state, state_changed_at, last_attempt_at, locked_until").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim query: %w", err)
	}

	rows, err := r.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to claim inbox messages: %w", err)
	}
	defer rows.Close()

	var messages []inbox.Message
	for rows.Next() {
		var (
			msg     inbox.Message
			payload []byte
		)
		err := rows.Scan(
			&msg.ID,
			&payload,
			&msg.State,
			&msg.StateChangedAt,
			&msg.LastAttemptAt,
			&msg.LockedUntil,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inbox message: %w", err)
		}
		if err := json.Unmarshal(payload, &msg.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inbox messages: %w", err)
	}

	return messages, nil
}

// Commit transitions a message to a terminal state and clears its lease.
func (r *InboxRepository) Commit(ctx context.Context, id uuid.UUID, state inbox.State) error {
	if !inbox.CanTransition(inbox.StateReceived, state) {
		return fmt.Errorf("illegal transition received -> %s", state)
	}

	query, args, err := sq.Update("inbox_messages").
		Set("state", state).
		Set("state_changed_at", time.Now()).
		Set("locked_until", nil).
		Where(sq.Eq{"id": id, "state": inbox.StateReceived}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build commit query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to commit inbox message: %w", err)
	}

	return nil
}

// Release keeps a message in received and schedules its next attempt.
func (r *InboxRepository) Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	query, args, err := sq.Update("inbox_messages").
		Set("locked_until", nextAttemptAt).
		Where(sq.Eq{"id": id, "state": inbox.StateReceived}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build release query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to release inbox message: %w", err)
	}

	return nil
}

// DeleteExpired removes messages past their state's retention window.
func (r *InboxRepository) DeleteExpired(
	ctx context.Context,
	state inbox.State,
	changedBefore time.Time,
) (int64, error) {
	query, args, err := sq.Delete("inbox_messages").
		Where(sq.Eq{"state": state}).
		Where(sq.Lt{"state_changed_at": changedBefore}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired inbox messages: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted inbox messages: %w", err)
	}

	return deleted, nil
}
