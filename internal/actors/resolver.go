package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/osmaa/takahe/internal/dal/interfaces/iidentityrepo"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/identity"
)

// Actor is the resolver's view of an identity: just enough to verify
// signatures and address replies.
type Actor struct {
	URI          string
	InboxURI     string
	PublicKeyPEM string
	PublicKeyID  string

	// transient actors are not persisted when fetched.
	transient bool
}

// HasPublicKey reports whether the actor's key is known.
func (a *Actor) HasPublicKey() bool {
	return a.PublicKeyPEM != ""
}

// Resolver resolves actor URIs to actors. Fetch performs a blocking network
// round trip to the actor's server; the inbox worker calls it deliberately,
// since the worker pool is the place to absorb that latency.
type Resolver interface {
	Resolve(ctx context.Context, actorURI string, createIfMissing, allowTransient bool) (*Actor, error)
	Fetch(ctx context.Context, actor *Actor) error
}

// HTTPResolver resolves actors from the identity store and fetches unknown
// ones over HTTP.
type HTTPResolver struct {
	identityRepo iidentityrepo.IIdentityRepository
	httpClient   *http.Client
}

// NewHTTPResolver creates a new HTTPResolver.
func NewHTTPResolver(identityRepo iidentityrepo.IIdentityRepository) *HTTPResolver {
	return &HTTPResolver{
		identityRepo: identityRepo,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StripFragment removes the fragment from a key or actor URI. Key IDs are
// usually `https://host/actor#main-key`; the actor lives at the base URI.
func StripFragment(uri string) string {
	base, _, _ := strings.Cut(uri, "#")

	return base
}

// Resolve returns the actor for a URI, consulting the identity store first.
func (r *HTTPResolver) Resolve(
	ctx context.Context,
	actorURI string,
	createIfMissing, allowTransient bool,
) (*Actor, error) {
	actorURI = StripFragment(actorURI)

	record, err := r.identityRepo.GetByActorURI(ctx, actorURI)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	if record != nil {
		actor := &Actor{
			URI:      record.ActorURI,
			InboxURI: record.InboxURI,
		}
		if record.PublicKeyPEM != nil {
			actor.PublicKeyPEM = *record.PublicKeyPEM
		}
		if record.PublicKeyID != nil {
			actor.PublicKeyID = *record.PublicKeyID
		}

		return actor, nil
	}

	if !createIfMissing {
		return nil, nil
	}

	return &Actor{URI: actorURI, transient: allowTransient}, nil
}

// Fetch retrieves the actor document from its server and populates (and,
// unless the actor is transient, persists) the public key and inbox.
func (r *HTTPResolver) Fetch(ctx context.Context, actor *Actor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, actor.URI, nil)
	if err != nil {
		return fmt.Errorf("failed to build actor request: %w", err)
	}
	req.Header.Set("Accept", `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch actor %s: %w", actor.URI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: actor %s returned status %d", federation.ErrProtocol, actor.URI, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read actor document: %w", err)
	}

	var document map[string]any
	if err := json.Unmarshal(body, &document); err != nil {
		return fmt.Errorf("%w: actor %s document is not json", federation.ErrFormat, actor.URI)
	}

	if inbox, ok := document["inbox"].(string); ok {
		actor.InboxURI = inbox
	}
	if publicKey, ok := document["publicKey"].(map[string]any); ok {
		if pem, ok := publicKey["publicKeyPem"].(string); ok {
			actor.PublicKeyPEM = pem
		}
		if keyID, ok := publicKey["id"].(string); ok {
			actor.PublicKeyID = keyID
		}
	}

	if actor.transient {
		return nil
	}

	record := identity.New(actor.URI)
	record.InboxURI = actor.InboxURI
	record.Profile = document
	now := time.Now()
	record.FetchedAt = &now
	if actor.PublicKeyPEM != "" {
		record.PublicKeyPEM = &actor.PublicKeyPEM
	}
	if actor.PublicKeyID != "" {
		record.PublicKeyID = &actor.PublicKeyID
	}
	if username, ok := document["preferredUsername"].(string); ok {
		record.Handle = username
	}

	if err := r.identityRepo.Upsert(ctx, record); err != nil {
		slog.Error("Failed to persist fetched actor", "actor", actor.URI, "error", err)
	}

	return nil
}
