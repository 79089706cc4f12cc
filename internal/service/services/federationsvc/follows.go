package federationsvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osmaa/takahe/internal/events"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/follow"
	"github.com/osmaa/takahe/internal/service/models/timelineevent"
)

// FollowHandler is the follow-activity view of the service.
type FollowHandler struct {
	s *FederationService
}

// Follows returns the follow handler.
func (s *FederationService) Follows() *FollowHandler {
	return &FollowHandler{s: s}
}

// HandleRequest records an incoming follow of a local identity.
func (h *FollowHandler) HandleRequest(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	target, err := objectURI(payload)
	if err != nil {
		return err
	}

	known, err := h.s.identityRepo.ExistsByActorURI(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to look up follow target: %w", err)
	}
	if !known {
		return fmt.Errorf("%w: follow target %s is unknown", federation.ErrProtocol, target)
	}

	uri, _ := payload["id"].(string)

	if err := h.s.followRepo.Upsert(ctx, follow.New(uri, actor, target)); err != nil {
		return fmt.Errorf("failed to store follow: %w", err)
	}

	if err := h.s.timelineRepo.Insert(
		ctx, timelineevent.New(timelineevent.TypeFollowed, target, actor),
	); err != nil {
		slog.Error("Failed to record follow timeline event", "target", target, "error", err)
	}

	h.s.publisher.Publish(ctx, events.KindFollowRequested, actor, target)

	return nil
}

// HandleAccept marks a follow accepted. The object is either the original
// follow activity inlined, or its bare URI.
func (h *FollowHandler) HandleAccept(ctx context.Context, payload map[string]any) error {
	return h.progress(ctx, payload, follow.StateAccepted, events.KindFollowAccepted)
}

// HandleReject marks a follow rejected.
func (h *FollowHandler) HandleReject(ctx context.Context, payload map[string]any) error {
	return h.progress(ctx, payload, follow.StateRejected, events.KindFollowRejected)
}

func (h *FollowHandler) progress(
	ctx context.Context,
	payload map[string]any,
	state follow.State,
	eventKind string,
) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	if object, ok := payload["object"].(map[string]any); ok {
		source, _ := object["actor"].(string)
		target, _ := object["object"].(string)
		if source == "" || target == "" {
			return fmt.Errorf("%w: follow response has incomplete object", federation.ErrFormat)
		}

		// The responder must be the account that was followed.
		if target != actor {
			return fmt.Errorf(
				"%w: %s responded to a follow of %s", federation.ErrActorMismatch, actor, target,
			)
		}

		if err := h.s.followRepo.UpdateState(ctx, source, target, state); err != nil {
			return fmt.Errorf("failed to update follow: %w", err)
		}

		h.s.publisher.Publish(ctx, eventKind, source, target)

		return nil
	}

	uri, err := objectURI(payload)
	if err != nil {
		return err
	}

	if err := h.s.followRepo.UpdateStateByURI(ctx, uri, state); err != nil {
		return fmt.Errorf("failed to update follow: %w", err)
	}

	h.s.publisher.Publish(ctx, eventKind, actor, uri)

	return nil
}

// HandleUndo removes a follow. The undone follow arrives inlined as the
// object, and its actor must match the undoing actor.
func (h *FollowHandler) HandleUndo(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	object, ok := payload["object"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: undo follow has no inlined object", federation.ErrFormat)
	}

	source, _ := object["actor"].(string)
	target, _ := object["object"].(string)
	if source == "" || target == "" {
		return fmt.Errorf("%w: undone follow has incomplete object", federation.ErrFormat)
	}
	if source != actor {
		return fmt.Errorf(
			"%w: %s tried to undo a follow by %s", federation.ErrActorMismatch, actor, source,
		)
	}

	if err := h.s.followRepo.Delete(ctx, source, target); err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	h.s.publisher.Publish(ctx, events.KindFollowUndone, source, target)

	return nil
}
