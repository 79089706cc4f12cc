package federationsvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/follow"
	"github.com/osmaa/takahe/internal/service/models/interaction"
)

// TimelineHandler is the timeline-maintenance view of the service.
type TimelineHandler struct {
	s *FederationService
}

// Timelines returns the timeline handler.
func (s *FederationService) Timelines() *TimelineHandler {
	return &TimelineHandler{s: s}
}

// HandleClearTimeline wipes an identity's timeline, typically after they
// blocked or muted someone and asked for a rebuild.
func (h *TimelineHandler) HandleClearTimeline(ctx context.Context, object map[string]any) error {
	actorURI, _ := object["actor"].(string)
	if actorURI == "" {
		return fmt.Errorf("%w: clear request names no identity", federation.ErrFormat)
	}

	removed, err := h.s.timelineRepo.ClearForIdentity(ctx, actorURI)
	if err != nil {
		return fmt.Errorf("failed to clear timeline: %w", err)
	}

	slog.Info("Timeline cleared", "actor", actorURI, "removed", removed)

	return nil
}

// InternalIdentityHandler is the identity-maintenance view of the service.
type InternalIdentityHandler struct {
	s *FederationService
}

// InternalIdentities returns the internal identity handler.
func (s *FederationService) InternalIdentities() *InternalIdentityHandler {
	return &InternalIdentityHandler{s: s}
}

// HandleInternalAddFollow records a locally initiated follow as already
// accepted, used when importing follow lists.
func (h *InternalIdentityHandler) HandleInternalAddFollow(
	ctx context.Context,
	object map[string]any,
) error {
	source, _ := object["source"].(string)
	target, _ := object["target"].(string)
	if source == "" || target == "" {
		return fmt.Errorf("%w: add-follow request is incomplete", federation.ErrFormat)
	}

	record := follow.New("", source, target)
	record.State = follow.StateAccepted

	if err := h.s.followRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to store follow: %w", err)
	}

	return nil
}

// HandleInternalSyncPins replaces an actor's pins with the given set,
// mirroring their featured collection.
func (h *InternalIdentityHandler) HandleInternalSyncPins(
	ctx context.Context,
	object map[string]any,
) error {
	actorURI, _ := object["actor"].(string)
	if actorURI == "" {
		return fmt.Errorf("%w: pin sync names no identity", federation.ErrFormat)
	}

	pins, _ := object["pins"].([]any)

	if err := h.s.interactionRepo.DeleteByType(
		ctx, interaction.TypePin, actorURI,
	); err != nil {
		return fmt.Errorf("failed to clear pins: %w", err)
	}

	for _, pin := range pins {
		postURI, ok := pin.(string)
		if !ok || postURI == "" {
			continue
		}

		known, err := h.s.postRepo.ExistsByObjectURI(ctx, postURI)
		if err != nil {
			return fmt.Errorf("failed to look up post: %w", err)
		}
		if !known {
			continue
		}

		if err := h.s.interactionRepo.Upsert(
			ctx, interaction.New(interaction.TypePin, actorURI, postURI),
		); err != nil {
			return fmt.Errorf("failed to store pin: %w", err)
		}
	}

	return nil
}
