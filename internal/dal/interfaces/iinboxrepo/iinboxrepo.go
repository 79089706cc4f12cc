package iinboxrepo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/osmaa/takahe/internal/service/models/inbox"
)

// IInboxRepository defines the durable queue operations for inbox messages.
type IInboxRepository interface {
	// Insert stores a new message
	Insert(ctx context.Context, msg inbox.Message) error

	// ClaimBatch atomically leases up to limit due messages for this worker.
	// A claimed message has locked_until set to now+lease and last_attempt_at
	// set to now; no other worker can claim it until the lease lapses.
	ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]inbox.Message, error)

	// Commit transitions a message to a terminal state and clears its lease
	Commit(ctx context.Context, id uuid.UUID, state inbox.State) error

	// Release returns a message to the queue after a failed attempt,
	// scheduling the next attempt at nextAttemptAt
	Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error

	// DeleteExpired removes messages in the given state whose last state
	// change is older than changedBefore, returning the count removed
	DeleteExpired(ctx context.Context, state inbox.State, changedBefore time.Time) (int64, error)
}
