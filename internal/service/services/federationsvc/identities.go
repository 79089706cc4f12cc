package federationsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osmaa/takahe/internal/events"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/identity"
)

// IdentityHandler is the identity-activity view of the service.
type IdentityHandler struct {
	s *FederationService
}

// Identities returns the identity handler.
func (s *FederationService) Identities() *IdentityHandler {
	return &IdentityHandler{s: s}
}

// HandleUpdate refreshes a remote identity from the actor document inlined
// in an Update activity. Only the actor may update their own profile.
func (h *IdentityHandler) HandleUpdate(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	document, ok := payload["object"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: update has no inlined actor document", federation.ErrFormat)
	}

	uri, _ := document["id"].(string)
	if uri == "" {
		return fmt.Errorf("%w: actor document has no id", federation.ErrFormat)
	}
	if uri != actor {
		return fmt.Errorf(
			"%w: %s sent a profile update for %s", federation.ErrActorMismatch, actor, uri,
		)
	}

	record := identity.New(uri)
	record.Profile = document
	now := time.Now()
	record.FetchedAt = &now
	if username, ok := document["preferredUsername"].(string); ok {
		record.Handle = username
	}
	if inbox, ok := document["inbox"].(string); ok {
		record.InboxURI = inbox
	}
	if publicKey, ok := document["publicKey"].(map[string]any); ok {
		if pem, ok := publicKey["publicKeyPem"].(string); ok && pem != "" {
			record.PublicKeyPEM = &pem
		}
		if keyID, ok := publicKey["id"].(string); ok && keyID != "" {
			record.PublicKeyID = &keyID
		}
	}

	if err := h.s.identityRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to store identity: %w", err)
	}

	h.s.publisher.Publish(ctx, events.KindIdentityUpdated, actor, uri)

	return nil
}

// HandleDelete removes a remote identity and everything hanging off it.
// Actors may only delete themselves.
func (h *IdentityHandler) HandleDelete(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	uri, err := objectURI(payload)
	if err != nil {
		return err
	}
	if uri != actor {
		return fmt.Errorf(
			"%w: %s tried to delete %s", federation.ErrActorMismatch, actor, uri,
		)
	}

	if err := h.s.identityRepo.DeleteByActorURI(ctx, uri); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	if _, err := h.s.timelineRepo.ClearForIdentity(ctx, uri); err != nil {
		slog.Error("Failed to clear timeline for deleted identity",
			"actor", uri, "error", err)
	}

	h.s.publisher.Publish(ctx, events.KindIdentityDeleted, actor, uri)

	return nil
}

// ExistsByActorURI reports whether an identity is stored locally.
func (h *IdentityHandler) ExistsByActorURI(ctx context.Context, actorURI string) (bool, error) {
	return h.s.identityRepo.ExistsByActorURI(ctx, actorURI)
}
