package receiveinbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/osmaa/takahe/internal/actors"
	"github.com/osmaa/takahe/internal/signatures"
)

// maxBodySize caps inbox deliveries; activities are small documents.
const maxBodySize = 1 << 20

// service is an interface for the service layer.
type service interface {
	Enqueue(ctx context.Context, payload map[string]any) (uuid.UUID, error)
}

// Receive authenticates an inbox delivery against its HTTP signature and
// enqueues it. Verification failures are terminal for the request but say
// nothing durable about the message, so nothing is stored for them.
func Receive(w http.ResponseWriter, r *http.Request, svc service, resolver actors.Resolver) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)

		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "body is not json", http.StatusBadRequest)
		slog.Info("Inbox delivery rejected: bad json", "error", err)

		return
	}

	details, err := signatures.ParseSignatureHeader(r.Header.Get("Signature"))
	if err != nil {
		http.Error(w, "bad signature header", http.StatusUnauthorized)
		slog.Info("Inbox delivery rejected: bad signature header", "error", err)

		return
	}

	actor, err := resolver.Resolve(r.Context(), details.KeyID, true, false)
	if err != nil {
		http.Error(w, "could not resolve signer", http.StatusInternalServerError)
		slog.Error("Failed to resolve inbox signer", "key_id", details.KeyID, "error", err)

		return
	}
	if !actor.HasPublicKey() {
		if err := resolver.Fetch(r.Context(), actor); err != nil {
			slog.Info("Could not fetch inbox signer", "key_id", details.KeyID, "error", err)
		}
	}
	if !actor.HasPublicKey() {
		http.Error(w, "signer key unavailable", http.StatusUnauthorized)

		return
	}

	publicKey, err := signatures.DecodePublicKeyPEM(actor.PublicKeyPEM)
	if err != nil {
		http.Error(w, "signer key invalid", http.StatusUnauthorized)
		slog.Info("Inbox signer has a bad key", "key_id", details.KeyID, "error", err)

		return
	}

	if err := signatures.VerifyRequest(r, body, publicKey, false); err != nil {
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		slog.Info("Inbox delivery rejected: bad signature",
			"key_id", details.KeyID, "error", err)

		return
	}

	// The signer must be the activity's actor; anything else is a relay
	// we have no trust path for.
	if actorURI := payloadActor(payload); actorURI == "" ||
		actors.StripFragment(actorURI) != actor.URI {
		http.Error(w, "actor does not match signer", http.StatusUnauthorized)
		slog.Info("Inbox delivery rejected: actor mismatch",
			"signer", actor.URI, "actor", payloadActor(payload))

		return
	}

	id, err := svc.Enqueue(r.Context(), payload)
	if err != nil {
		http.Error(w, "failed to enqueue", http.StatusInternalServerError)
		slog.Error("Failed to enqueue inbox delivery", "error", err)

		return
	}

	slog.Info("Inbox delivery accepted", "inbox_id", id, "actor", actor.URI)
	w.WriteHeader(http.StatusAccepted)
}

func payloadActor(payload map[string]any) string {
	switch actor := payload["actor"].(type) {
	case string:
		return actor
	case map[string]any:
		id, _ := actor["id"].(string)

		return id
	}

	return ""
}
