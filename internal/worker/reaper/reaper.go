package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/osmaa/takahe/internal/dal/interfaces/iinboxrepo"
	inboxmodel "github.com/osmaa/takahe/internal/service/models/inbox"
)

// Worker removes inbox messages that outlived their state's retention. A
// received message that was never processed expires too; that is the
// pipeline's give-up point.
type Worker struct {
	inboxRepo iinboxrepo.IInboxRepository
	interval  time.Duration
	stopCh    chan struct{}
}

// NewWorker creates a new reaper.
func NewWorker(inboxRepo iinboxrepo.IInboxRepository) *Worker {
	interval := viper.GetDuration("reaper.interval")
	if interval == 0 {
		interval = 10 * time.Minute
	}

	return &Worker{
		inboxRepo: inboxRepo,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("Reaper started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Reaper shutting down")
			return
		case <-w.stopCh:
			slog.Info("Reaper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the reaper.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// sweep deletes expired messages state by state.
func (w *Worker) sweep(ctx context.Context) {
	now := time.Now()

	for state, policy := range inboxmodel.Policies {
		if policy.DeleteAfter == 0 {
			continue
		}

		removed, err := w.inboxRepo.DeleteExpired(ctx, state, now.Add(-policy.DeleteAfter))
		if err != nil {
			slog.Error("Failed to delete expired inbox messages",
				"state", state, "error", err)

			continue
		}

		if removed > 0 {
			slog.Info("Expired inbox messages removed", "state", state, "count", removed)
		}
	}
}
