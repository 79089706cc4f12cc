package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	inboxmodel "github.com/osmaa/takahe/internal/service/models/inbox"
)

type fakeInboxRepo struct {
	cutoffs map[inboxmodel.State]time.Time
}

func (f *fakeInboxRepo) Insert(ctx context.Context, msg inboxmodel.Message) error { return nil }

func (f *fakeInboxRepo) ClaimBatch(
	ctx context.Context, limit int, lease time.Duration,
) ([]inboxmodel.Message, error) {
	return nil, nil
}

func (f *fakeInboxRepo) Commit(
	ctx context.Context, id uuid.UUID, state inboxmodel.State,
) error {
	return nil
}

func (f *fakeInboxRepo) Release(
	ctx context.Context, id uuid.UUID, nextAttemptAt time.Time,
) error {
	return nil
}

func (f *fakeInboxRepo) DeleteExpired(
	ctx context.Context, state inboxmodel.State, changedBefore time.Time,
) (int64, error) {
	f.cutoffs[state] = changedBefore

	return 1, nil
}

func TestSweepUsesPerStateRetention(t *testing.T) {
	repo := &fakeInboxRepo{cutoffs: map[inboxmodel.State]time.Time{}}

	w := NewWorker(repo)
	before := time.Now()
	w.sweep(context.Background())

	for state, policy := range inboxmodel.Policies {
		cutoff, ok := repo.cutoffs[state]
		if !ok {
			t.Errorf("state %q was not swept", state)

			continue
		}

		want := before.Add(-policy.DeleteAfter)
		if cutoff.Before(want.Add(-time.Minute)) || cutoff.After(want.Add(time.Minute)) {
			t.Errorf("state %q cutoff %v, want about %v", state, cutoff, want)
		}
	}
}
