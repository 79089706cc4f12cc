package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	inboxmodel "github.com/osmaa/takahe/internal/service/models/inbox"
)

type fakeService struct {
	mu sync.Mutex

	claimed   []inboxmodel.Message
	outcome   inboxmodel.State
	handleErr error

	committed map[uuid.UUID]inboxmodel.State
	released  map[uuid.UUID]time.Time
}

func newFakeService(outcome inboxmodel.State, handleErr error, msgs ...inboxmodel.Message) *fakeService {
	return &fakeService{
		claimed:   msgs,
		outcome:   outcome,
		handleErr: handleErr,
		committed: map[uuid.UUID]inboxmodel.State{},
		released:  map[uuid.UUID]time.Time{},
	}
}

func (f *fakeService) ClaimBatch(
	ctx context.Context, limit int, lease time.Duration,
) ([]inboxmodel.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := f.claimed
	f.claimed = nil

	return batch, nil
}

func (f *fakeService) HandleReceived(
	ctx context.Context, msg inboxmodel.Message,
) (inboxmodel.State, error) {
	return f.outcome, f.handleErr
}

func (f *fakeService) Commit(ctx context.Context, id uuid.UUID, state inboxmodel.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed[id] = state

	return nil
}

func (f *fakeService) Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[id] = nextAttemptAt

	return nil
}

func TestProcessMessagesCommitsOutcome(t *testing.T) {
	msg := inboxmodel.New(map[string]any{"type": "Follow"})
	svc := newFakeService(inboxmodel.StateProcessed, nil, msg)

	w := NewWorker(svc)
	w.processMessages(context.Background())

	if got := svc.committed[msg.ID]; got != inboxmodel.StateProcessed {
		t.Errorf("committed state = %q, want processed", got)
	}
	if len(svc.released) != 0 {
		t.Errorf("nothing should be released: %v", svc.released)
	}
}

func TestProcessMessagesReleasesOnFault(t *testing.T) {
	msg := inboxmodel.New(map[string]any{"type": "Follow"})
	svc := newFakeService("", errors.New("remote server down"), msg)

	w := NewWorker(svc)
	before := time.Now()
	w.processMessages(context.Background())

	nextAttemptAt, ok := svc.released[msg.ID]
	if !ok {
		t.Fatal("message was not released")
	}

	wantDelay := inboxmodel.Policies[inboxmodel.StateReceived].TryInterval
	if nextAttemptAt.Before(before.Add(wantDelay)) {
		t.Errorf("next attempt %v is sooner than the retry interval %v", nextAttemptAt, wantDelay)
	}
	if len(svc.committed) != 0 {
		t.Errorf("nothing should be committed: %v", svc.committed)
	}
}

func TestProcessMessagesHandlesBatch(t *testing.T) {
	msgs := []inboxmodel.Message{
		inboxmodel.New(map[string]any{"type": "Follow"}),
		inboxmodel.New(map[string]any{"type": "Like"}),
		inboxmodel.New(map[string]any{"type": "Block"}),
	}
	svc := newFakeService(inboxmodel.StateProcessed, nil, msgs...)

	w := NewWorker(svc)
	w.processMessages(context.Background())

	if len(svc.committed) != len(msgs) {
		t.Errorf("committed %d of %d messages", len(svc.committed), len(msgs))
	}
}
