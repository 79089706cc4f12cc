package inboxsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/osmaa/takahe/internal/activitypub"
	"github.com/osmaa/takahe/internal/actors"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/inbox"
	"github.com/osmaa/takahe/internal/signatures"
)

// Domain handler capabilities the dispatcher routes to. Each method receives
// the full activity payload; their internals are the domain layer's business.
type followHandler interface {
	HandleRequest(ctx context.Context, payload map[string]any) error
	HandleAccept(ctx context.Context, payload map[string]any) error
	HandleReject(ctx context.Context, payload map[string]any) error
	HandleUndo(ctx context.Context, payload map[string]any) error
}

type blockHandler interface {
	Handle(ctx context.Context, payload map[string]any) error
	HandleUndo(ctx context.Context, payload map[string]any) error
}

type postHandler interface {
	HandleCreate(ctx context.Context, payload map[string]any) error
	HandleUpdate(ctx context.Context, payload map[string]any) error
	HandleDelete(ctx context.Context, payload map[string]any) error
	ExistsByObjectURI(ctx context.Context, objectURI string) (bool, error)
	HandleFetchInternal(ctx context.Context, object map[string]any) error
}

type interactionHandler interface {
	Handle(ctx context.Context, payload map[string]any) error
	HandleUndo(ctx context.Context, payload map[string]any) error
	HandleAdd(ctx context.Context, payload map[string]any) error
	HandleRemove(ctx context.Context, payload map[string]any) error
}

type identityHandler interface {
	HandleUpdate(ctx context.Context, payload map[string]any) error
	HandleDelete(ctx context.Context, payload map[string]any) error
	ExistsByActorURI(ctx context.Context, actorURI string) (bool, error)
}

type reportHandler interface {
	Handle(ctx context.Context, payload map[string]any) error
}

type timelineHandler interface {
	HandleClearTimeline(ctx context.Context, object map[string]any) error
}

type identityService interface {
	HandleInternalAddFollow(ctx context.Context, object map[string]any) error
	HandleInternalSyncPins(ctx context.Context, object map[string]any) error
}

// Handlers bundles the domain capabilities for wiring.
type Handlers struct {
	Follows         followHandler
	Blocks          blockHandler
	Posts           postHandler
	Interactions    interactionHandler
	Identities      identityHandler
	Reports         reportHandler
	Timelines       timelineHandler
	IdentityService identityService
}

// HandleReceived decides the next state for a claimed message. It never
// commits the transition itself; the worker owns persistence. A returned
// error means the fault was unclassified and the message should be released
// for retry.
func (s *InboxService) HandleReceived(
	ctx context.Context,
	msg inbox.Message,
) (inbox.State, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InboxService.HandleReceived")
	defer span.End()

	env := msg.Envelope()

	// LD signature verification happens here rather than in the HTTP
	// front-end because it may require fetching an unknown actor from a
	// remote server, which the worker pool is built to absorb.
	if err := s.verifyLDSignature(ctx, env); err != nil {
		switch {
		case errors.Is(err, signatures.ErrVerificationFormat):
			slog.Warn("Message rejected due to bad LD signature format",
				"inbox_id", msg.ID, "error", err)

			return inbox.StateErrored, nil
		case errors.Is(err, signatures.ErrNormalization):
			slog.Warn("Message rejected due to LD normalization failure",
				"inbox_id", msg.ID, "error", err)

			return inbox.StateErrored, nil
		case errors.Is(err, signatures.ErrVerification):
			// Widely deployed implementations ship structurally valid but
			// wrong LD signatures; the transport signature was already
			// checked before enqueue, so carry on treating the document as
			// unsigned.
			slog.Info("Message has invalid LD signature",
				"inbox_id", msg.ID, "actor", env.Actor(), "error", err)
		default:
			return "", err
		}
	}

	state, err := s.dispatch(ctx, env)
	if err != nil {
		if errors.Is(err, federation.ErrProtocol) || errors.Is(err, signatures.ErrNormalization) {
			slog.Warn("Message errored during dispatch",
				"inbox_id", msg.ID, "type", env.Type(), "error", err)

			return inbox.StateErrored, nil
		}

		return "", err
	}

	return state, nil
}

// verifyLDSignature checks the embedded LD signature when one is present,
// resolving (and if necessary fetching) the creator's key. On any
// verification failure the signature is stripped from the document so
// downstream consumers see it as unsigned.
func (s *InboxService) verifyLDSignature(ctx context.Context, env activitypub.Envelope) error {
	document := env.Payload()

	raw, ok := document["signature"]
	if !ok {
		return nil
	}

	stripOnFailure := func(err error) error {
		if errors.Is(err, signatures.ErrVerification) {
			delete(document, "signature")
		}

		return err
	}

	section, ok := raw.(map[string]any)
	if !ok {
		return stripOnFailure(fmt.Errorf(
			"%w: signature section is not an object", signatures.ErrVerificationFormat,
		))
	}

	creator, ok := section["creator"].(string)
	if !ok || creator == "" {
		return stripOnFailure(fmt.Errorf(
			"%w: signature has no creator", signatures.ErrVerificationFormat,
		))
	}

	actor, err := s.resolver.Resolve(ctx, actors.StripFragment(creator), true, true)
	if err != nil {
		return err
	}
	if !actor.HasPublicKey() {
		if err := s.resolver.Fetch(ctx, actor); err != nil {
			slog.Info("Could not fetch signature creator", "creator", creator, "error", err)
		}
	}
	if !actor.HasPublicKey() {
		return stripOnFailure(fmt.Errorf(
			"%w: could not fetch actor %s to verify message signature",
			signatures.ErrVerification, creator,
		))
	}

	publicKey, err := signatures.DecodePublicKeyPEM(actor.PublicKeyPEM)
	if err != nil {
		return stripOnFailure(err)
	}

	return signatures.VerifySignature(document, publicKey)
}

// dispatch is the two-level routing table: activity kind, then object kind.
// Rows that no-op fall through to processed; unrecognized combinations error
// without invoking any handler.
func (s *InboxService) dispatch(
	ctx context.Context,
	env activitypub.Envelope,
) (inbox.State, error) {
	payload := env.Payload()
	objectType, objectIsMap := env.ObjectType()

	switch activitypub.ParseActivityKind(env.Type()) {
	case activitypub.ActivityFollow:
		if err := s.follows.HandleRequest(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityBlock:
		if err := s.blocks.Handle(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityAnnounce:
		// Lemmy announces likes and dislikes; they cannot be parsed as
		// boosts, so skip them outright.
		if objectType == "like" || objectType == "dislike" {
			return inbox.StateProcessed, nil
		}
		if err := s.interactions.Handle(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityLike:
		if err := s.interactions.Handle(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityCreate:
		switch {
		case objectType == "note" && env.ObjectHasContent():
			if err := s.posts.HandleCreate(ctx, payload); err != nil {
				return "", err
			}
		case objectType == "note":
			// Notes without content are interaction candidates
			if err := s.interactions.Handle(ctx, payload); err != nil {
				return "", err
			}
		case activitypub.PostTypeNames[objectType]:
			if err := s.posts.HandleCreate(ctx, payload); err != nil {
				return "", err
			}
		}

	case activitypub.ActivityUpdate:
		switch {
		case activitypub.PostTypeNames[objectType]:
			if err := s.posts.HandleUpdate(ctx, payload); err != nil {
				return "", err
			}
		case activitypub.IdentityTypeNames[objectType]:
			if err := s.identities.HandleUpdate(ctx, payload); err != nil {
				return "", err
			}
		}

	case activitypub.ActivityAccept:
		// A non-mapping object is a bare URI, which only follows send.
		if objectIsMap && objectType != "follow" {
			return inbox.StateErrored, nil
		}
		if err := s.follows.HandleAccept(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityReject:
		if objectIsMap && objectType != "follow" {
			return inbox.StateErrored, nil
		}
		if err := s.follows.HandleReject(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityUndo:
		switch objectType {
		case "follow":
			if err := s.follows.HandleUndo(ctx, payload); err != nil {
				return "", err
			}
		case "block":
			if err := s.blocks.HandleUndo(ctx, payload); err != nil {
				return "", err
			}
		case "like", "announce":
			if err := s.interactions.HandleUndo(ctx, payload); err != nil {
				return "", err
			}
		case activitypub.EmojiReactType:
			// Emoji reactions are not supported
		default:
			return inbox.StateErrored, nil
		}

	case activitypub.ActivityDelete:
		return s.dispatchDelete(ctx, env)

	case activitypub.ActivityAdd:
		if err := s.interactions.HandleAdd(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityRemove:
		if err := s.interactions.HandleRemove(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityMove:
		// Account moves are not supported

	case activitypub.ActivityEmojiReact:
		// Emoji reactions are not supported

	case activitypub.ActivityFlag:
		if err := s.reports.Handle(ctx, payload); err != nil {
			return "", err
		}

	case activitypub.ActivityInternal:
		return s.dispatchInternal(ctx, env)

	default:
		return inbox.StateErrored, nil
	}

	return inbox.StateProcessed, nil
}

// dispatchDelete handles the delete branch: a bare URI object has to be
// probed as an identity first, then a post; a mapping object must be a
// tombstone or note.
func (s *InboxService) dispatchDelete(
	ctx context.Context,
	env activitypub.Envelope,
) (inbox.State, error) {
	payload := env.Payload()

	if objectType, ok := env.ObjectType(); ok {
		switch objectType {
		case "tombstone", "note":
			if err := s.posts.HandleDelete(ctx, payload); err != nil {
				return "", err
			}

			return inbox.StateProcessed, nil
		default:
			return inbox.StateErrored, nil
		}
	}

	objectURI, ok := env.ObjectString()
	if !ok {
		// Neither a mapping nor a URI; whatever it named is presumably gone.
		return inbox.StateProcessed, nil
	}

	identityExists, err := s.identities.ExistsByActorURI(ctx, objectURI)
	if err != nil {
		return "", err
	}
	if identityExists {
		if err := s.identities.HandleDelete(ctx, payload); err != nil {
			return "", err
		}

		return inbox.StateProcessed, nil
	}

	postExists, err := s.posts.ExistsByObjectURI(ctx, objectURI)
	if err != nil {
		return "", err
	}
	if postExists {
		if err := s.posts.HandleDelete(ctx, payload); err != nil {
			return "", err
		}

		return inbox.StateProcessed, nil
	}

	// Deleting something we never saw; it is presumably already gone.
	return inbox.StateProcessed, nil
}

// dispatchInternal routes synthetic local maintenance messages.
func (s *InboxService) dispatchInternal(
	ctx context.Context,
	env activitypub.Envelope,
) (inbox.State, error) {
	object, ok := env.ObjectMap()
	if !ok {
		return inbox.StateErrored, nil
	}

	action, _ := env.ObjectType()
	switch action {
	case activitypub.InternalFetchPost:
		if err := s.posts.HandleFetchInternal(ctx, object); err != nil {
			return "", err
		}
	case activitypub.InternalClearTimeline:
		if err := s.timelines.HandleClearTimeline(ctx, object); err != nil {
			return "", err
		}
	case activitypub.InternalAddFollow:
		if err := s.identitySvc.HandleInternalAddFollow(ctx, object); err != nil {
			return "", err
		}
	case activitypub.InternalSyncPins:
		if err := s.identitySvc.HandleInternalSyncPins(ctx, object); err != nil {
			return "", err
		}
	default:
		return inbox.StateErrored, nil
	}

	return inbox.StateProcessed, nil
}
