package inbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	inboxmodel "github.com/osmaa/takahe/internal/service/models/inbox"
)

// service represents the service layer interface.
type service interface {
	ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]inboxmodel.Message, error)
	HandleReceived(ctx context.Context, msg inboxmodel.Message) (inboxmodel.State, error)
	Commit(ctx context.Context, id uuid.UUID, state inboxmodel.State) error
	Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error
}

// Worker drains the inbox queue: it claims due messages under a lease and
// hands each to the dispatcher on a bounded pool.
type Worker struct {
	service      service
	pollInterval time.Duration
	batchSize    int
	lease        time.Duration
	concurrency  int
	stopCh       chan struct{}
}

// NewWorker creates a new inbox worker.
func NewWorker(service service) *Worker {
	pollInterval := viper.GetDuration("worker.poll_interval")
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	batchSize := viper.GetInt("worker.batch_size")
	if batchSize == 0 {
		batchSize = 10
	}
	lease := viper.GetDuration("worker.lease")
	if lease == 0 {
		lease = 5 * time.Minute
	}
	concurrency := viper.GetInt("worker.concurrency")
	if concurrency == 0 {
		concurrency = 4
	}

	return &Worker{
		service:      service,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		lease:        lease,
		concurrency:  concurrency,
		stopCh:       make(chan struct{}),
	}
}

// Start begins processing messages from the inbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Inbox worker started",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"concurrency", w.concurrency,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Inbox worker shutting down")
			return
		case <-w.stopCh:
			slog.Info("Inbox worker stopped")
			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// processMessages claims and processes one batch of due messages.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.service.ClaimBatch(ctx, w.batchSize, w.lease)
	if err != nil {
		slog.Error("Failed to claim inbox messages", "error", err)
		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Processing inbox messages", "count", len(messages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			w.processMessage(gctx, msg)
			return nil
		})
	}

	_ = g.Wait()
}

// processMessage runs one message through the dispatcher and persists the
// outcome. Unclassified faults release the message for a later attempt.
func (w *Worker) processMessage(ctx context.Context, msg inboxmodel.Message) {
	state, err := w.service.HandleReceived(ctx, msg)
	if err != nil {
		retryIn := inboxmodel.Policies[inboxmodel.StateReceived].TryInterval
		nextAttemptAt := time.Now().Add(retryIn)

		slog.Warn("Failed to process inbox message, will retry",
			"inbox_id", msg.ID,
			"next_attempt", nextAttemptAt,
			"error", err,
		)

		if err := w.service.Release(ctx, msg.ID, nextAttemptAt); err != nil {
			slog.Error("Failed to release inbox message", "inbox_id", msg.ID, "error", err)
		}

		return
	}

	if err := w.service.Commit(ctx, msg.ID, state); err != nil {
		slog.Error("Failed to commit inbox message", "inbox_id", msg.ID, "error", err)

		return
	}

	slog.Info("Inbox message processed", "inbox_id", msg.ID, "state", state)
}
