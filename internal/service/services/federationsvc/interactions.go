package federationsvc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/osmaa/takahe/internal/events"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/interaction"
	"github.com/osmaa/takahe/internal/service/models/timelineevent"
)

// InteractionHandler is the like/boost/pin view of the service.
type InteractionHandler struct {
	s *FederationService
}

// Interactions returns the interaction handler.
func (s *FederationService) Interactions() *InteractionHandler {
	return &InteractionHandler{s: s}
}

// interactionKind maps a top-level activity type to the stored kind.
func interactionKind(payload map[string]any) (interaction.Type, error) {
	activityType, _ := payload["type"].(string)
	switch strings.ToLower(activityType) {
	case "like", "create":
		return interaction.TypeLike, nil
	case "announce":
		return interaction.TypeBoost, nil
	}

	return "", fmt.Errorf(
		"%w: %s is not an interaction", federation.ErrProtocol, activityType,
	)
}

// Handle records a like or boost of a post. Posts we only know by URI are
// fetched from their origin server first.
func (h *InteractionHandler) Handle(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	kind, err := interactionKind(payload)
	if err != nil {
		return err
	}

	postURI, err := objectURI(payload)
	if err != nil {
		return err
	}

	record, err := h.s.postRepo.GetByObjectURI(ctx, postURI)
	if err != nil {
		return fmt.Errorf("failed to look up post: %w", err)
	}
	if record == nil {
		document, err := h.s.fetchDocument(ctx, postURI)
		if err != nil {
			return err
		}
		fetched, err := h.s.postFromObject(document)
		if err != nil {
			return err
		}
		if err := h.s.storePost(ctx, fetched, events.KindPostCreated); err != nil {
			return err
		}
		record = &fetched
	}

	if err := h.s.interactionRepo.Upsert(
		ctx, interaction.New(kind, actor, postURI),
	); err != nil {
		return fmt.Errorf("failed to store interaction: %w", err)
	}

	eventType := timelineevent.TypeLike
	if kind == interaction.TypeBoost {
		eventType = timelineevent.TypeBoost
	}
	if err := h.s.timelineRepo.Insert(
		ctx, timelineevent.New(eventType, record.AuthorURI, postURI),
	); err != nil {
		slog.Error("Failed to record interaction timeline event",
			"post", postURI, "error", err)
	}

	h.s.publisher.Publish(ctx, events.KindInteraction, actor, postURI)

	return nil
}

// HandleUndo removes a like or boost. The undone interaction arrives
// inlined, and its actor must match the undoing actor.
func (h *InteractionHandler) HandleUndo(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	object, ok := payload["object"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: undo interaction has no inlined object", federation.ErrFormat)
	}

	kind, err := interactionKind(object)
	if err != nil {
		return err
	}

	source, _ := object["actor"].(string)
	if source != "" && source != actor {
		return fmt.Errorf(
			"%w: %s tried to undo an interaction by %s",
			federation.ErrActorMismatch, actor, source,
		)
	}

	postURI, err := objectURI(object)
	if err != nil {
		return err
	}

	if err := h.s.interactionRepo.Delete(ctx, kind, actor, postURI); err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}

	return nil
}

// HandleAdd records a pin when an actor adds a post to their featured
// collection.
func (h *InteractionHandler) HandleAdd(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	postURI, err := objectURI(payload)
	if err != nil {
		return err
	}

	known, err := h.s.postRepo.ExistsByObjectURI(ctx, postURI)
	if err != nil {
		return fmt.Errorf("failed to look up post: %w", err)
	}
	if !known {
		// Pins of posts we have not seen are ignored rather than fetched;
		// a later pin sync picks them up.
		return nil
	}

	if err := h.s.interactionRepo.Upsert(
		ctx, interaction.New(interaction.TypePin, actor, postURI),
	); err != nil {
		return fmt.Errorf("failed to store pin: %w", err)
	}

	return nil
}

// HandleRemove drops a pin.
func (h *InteractionHandler) HandleRemove(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	postURI, err := objectURI(payload)
	if err != nil {
		return err
	}

	if err := h.s.interactionRepo.Delete(
		ctx, interaction.TypePin, actor, postURI,
	); err != nil {
		return fmt.Errorf("failed to delete pin: %w", err)
	}

	return nil
}
