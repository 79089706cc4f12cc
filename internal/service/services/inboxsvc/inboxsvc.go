package inboxsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/osmaa/takahe/internal/actors"
	"github.com/osmaa/takahe/internal/dal/interfaces/iinboxrepo"
	"github.com/osmaa/takahe/internal/service/models/inbox"
)

// InboxService is the queue surface of the inbox pipeline: the HTTP
// front-end enqueues into it, the worker claims from it, and HandleReceived
// (dispatch.go) decides each message's next state.
type InboxService struct {
	inboxRepo iinboxrepo.IInboxRepository
	resolver  actors.Resolver

	follows      followHandler
	blocks       blockHandler
	posts        postHandler
	interactions interactionHandler
	identities   identityHandler
	reports      reportHandler
	timelines    timelineHandler
	identitySvc  identityService
}

// option is a function that configures the InboxService.
type option func(*InboxService)

// MustNewInboxService creates a new InboxService.
func MustNewInboxService(opts ...option) *InboxService {
	s := &InboxService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.inboxRepo == nil {
		panic("InboxService requires an inbox repository")
	}

	return s
}

// WithInboxRepository sets the inbox repository.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithInboxRepository(inboxRepo iinboxrepo.IInboxRepository) option {
	return func(s *InboxService) {
		s.inboxRepo = inboxRepo
	}
}

// WithActorResolver sets the actor resolver used for LD signature checks.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithActorResolver(resolver actors.Resolver) option {
	return func(s *InboxService) {
		s.resolver = resolver
	}
}

// WithHandlers sets the domain handler capabilities the dispatcher routes to.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithHandlers(handlers Handlers) option {
	return func(s *InboxService) {
		s.follows = handlers.Follows
		s.blocks = handlers.Blocks
		s.posts = handlers.Posts
		s.interactions = handlers.Interactions
		s.identities = handlers.Identities
		s.reports = handlers.Reports
		s.timelines = handlers.Timelines
		s.identitySvc = handlers.IdentityService
	}
}

// Enqueue stores a raw activity document as a new received message. The
// caller is responsible for any transport-level signature checks.
func (s *InboxService) Enqueue(ctx context.Context, payload map[string]any) (uuid.UUID, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InboxService.Enqueue")
	defer span.End()

	msg := inbox.New(payload)
	if err := s.inboxRepo.Insert(ctx, msg); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue inbox message: %w", err)
	}

	slog.Info("Inbox message enqueued", "inbox_id", msg.ID, "type", msg.Envelope().Type())

	return msg.ID, nil
}

// EnqueueInternal schedules a local maintenance action through the queue.
func (s *InboxService) EnqueueInternal(
	ctx context.Context,
	action string,
	payload map[string]any,
) (uuid.UUID, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InboxService.EnqueueInternal")
	defer span.End()

	msg := inbox.NewInternal(action, payload)
	if err := s.inboxRepo.Insert(ctx, msg); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue internal message: %w", err)
	}

	slog.Info("Internal message enqueued", "inbox_id", msg.ID, "action", action)

	return msg.ID, nil
}

// ClaimBatch leases up to limit due messages for processing.
func (s *InboxService) ClaimBatch(
	ctx context.Context,
	limit int,
	lease time.Duration,
) ([]inbox.Message, error) {
	return s.inboxRepo.ClaimBatch(ctx, limit, lease)
}

// Commit transitions a message to its terminal state.
func (s *InboxService) Commit(ctx context.Context, id uuid.UUID, state inbox.State) error {
	return s.inboxRepo.Commit(ctx, id, state)
}

// Release returns a message to the queue for a later retry.
func (s *InboxService) Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	return s.inboxRepo.Release(ctx, id, nextAttemptAt)
}
