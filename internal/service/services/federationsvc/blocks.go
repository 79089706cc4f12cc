package federationsvc

import (
	"context"
	"fmt"

	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/block"
)

// BlockHandler is the block-activity view of the service.
type BlockHandler struct {
	s *FederationService
}

// Blocks returns the block handler.
func (s *FederationService) Blocks() *BlockHandler {
	return &BlockHandler{s: s}
}

// Handle records a block of a local identity. A block also severs any
// follow between the pair, in both directions.
func (h *BlockHandler) Handle(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	target, err := objectURI(payload)
	if err != nil {
		return err
	}

	uri, _ := payload["id"].(string)

	if err := h.s.blockRepo.Upsert(ctx, block.New(uri, actor, target)); err != nil {
		return fmt.Errorf("failed to store block: %w", err)
	}

	if err := h.s.followRepo.Delete(ctx, actor, target); err != nil {
		return fmt.Errorf("failed to sever follow: %w", err)
	}
	if err := h.s.followRepo.Delete(ctx, target, actor); err != nil {
		return fmt.Errorf("failed to sever follow: %w", err)
	}

	return nil
}

// HandleUndo removes a block. The undone block arrives inlined as the
// object, and its actor must match the undoing actor.
func (h *BlockHandler) HandleUndo(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	object, ok := payload["object"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: undo block has no inlined object", federation.ErrFormat)
	}

	source, _ := object["actor"].(string)
	target, _ := object["object"].(string)
	if source == "" || target == "" {
		return fmt.Errorf("%w: undone block has incomplete object", federation.ErrFormat)
	}
	if source != actor {
		return fmt.Errorf(
			"%w: %s tried to undo a block by %s", federation.ErrActorMismatch, actor, source,
		)
	}

	if err := h.s.blockRepo.Delete(ctx, source, target); err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}

	return nil
}
