package federationsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osmaa/takahe/internal/events"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/identity"
	"github.com/osmaa/takahe/internal/service/models/post"
	"github.com/osmaa/takahe/internal/service/models/timelineevent"
)

// PostHandler is the post-activity view of the service.
type PostHandler struct {
	s *FederationService
}

// Posts returns the post handler.
func (s *FederationService) Posts() *PostHandler {
	return &PostHandler{s: s}
}

// HandleCreate stores a new remote post.
func (h *PostHandler) HandleCreate(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	object, ok := payload["object"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: create has no inlined object", federation.ErrFormat)
	}

	record, err := h.s.postFromObject(object)
	if err != nil {
		return err
	}
	if record.AuthorURI != actor {
		return fmt.Errorf(
			"%w: %s sent a post attributed to %s",
			federation.ErrActorMismatch, actor, record.AuthorURI,
		)
	}

	return h.s.storePost(ctx, record, events.KindPostCreated)
}

// HandleUpdate replaces a stored post with its edited version. Updates for
// posts we never saw create them, which is how edits race delivery.
func (h *PostHandler) HandleUpdate(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	object, ok := payload["object"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: update has no inlined object", federation.ErrFormat)
	}

	record, err := h.s.postFromObject(object)
	if err != nil {
		return err
	}
	if record.AuthorURI != actor {
		return fmt.Errorf(
			"%w: %s sent an edit attributed to %s",
			federation.ErrActorMismatch, actor, record.AuthorURI,
		)
	}

	return h.s.storePost(ctx, record, events.KindPostUpdated)
}

// HandleDelete removes a post. Only its author may delete it.
func (h *PostHandler) HandleDelete(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	uri, err := objectURI(payload)
	if err != nil {
		return err
	}

	record, err := h.s.postRepo.GetByObjectURI(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to look up post: %w", err)
	}
	if record == nil {
		// Deletes replay freely; a post we no longer have is done.
		return nil
	}
	if record.AuthorURI != actor {
		return fmt.Errorf(
			"%w: %s tried to delete a post by %s",
			federation.ErrActorMismatch, actor, record.AuthorURI,
		)
	}

	if err := h.s.postRepo.DeleteByObjectURI(ctx, uri); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	h.s.publisher.Publish(ctx, events.KindPostDeleted, actor, uri)

	return nil
}

// ExistsByObjectURI reports whether a post is stored locally.
func (h *PostHandler) ExistsByObjectURI(ctx context.Context, objectURI string) (bool, error) {
	return h.s.postRepo.ExistsByObjectURI(ctx, objectURI)
}

// HandleFetchInternal pulls a post we only know by URI from its origin
// server and stores it.
func (h *PostHandler) HandleFetchInternal(ctx context.Context, object map[string]any) error {
	uri, _ := object["object"].(string)
	if uri == "" {
		return fmt.Errorf("%w: fetch request names no post", federation.ErrFormat)
	}

	document, err := h.s.fetchDocument(ctx, uri)
	if err != nil {
		return err
	}

	record, err := h.s.postFromObject(document)
	if err != nil {
		return err
	}

	return h.s.storePost(ctx, record, events.KindPostCreated)
}

// postFromObject builds a post record from an ActivityStreams object.
func (s *FederationService) postFromObject(object map[string]any) (post.Post, error) {
	uri, ok := object["id"].(string)
	if !ok || uri == "" {
		return post.Post{}, fmt.Errorf("%w: post object has no id", federation.ErrFormat)
	}

	author := firstString(object["attributedTo"])
	if author == "" {
		return post.Post{}, fmt.Errorf("%w: post %s has no author", federation.ErrFormat, uri)
	}

	objectType, _ := object["type"].(string)

	record := post.New(uri, author, objectType)
	record.Document = object
	if content, ok := object["content"].(string); ok {
		record.Content = content
	}
	if published, ok := object["published"].(string); ok {
		if at, err := time.Parse(time.RFC3339, published); err == nil {
			record.PublishedAt = &at
		}
	}

	return record, nil
}

// storePost upserts the post, makes sure its author has an identity row,
// records the timeline event and publishes.
func (s *FederationService) storePost(ctx context.Context, record post.Post, eventKind string) error {
	known, err := s.identityRepo.ExistsByActorURI(ctx, record.AuthorURI)
	if err != nil {
		return fmt.Errorf("failed to look up author: %w", err)
	}
	if !known {
		if err := s.fetchAuthor(ctx, record.AuthorURI); err != nil {
			slog.Info("Could not fetch post author", "author", record.AuthorURI, "error", err)
			if err := s.identityRepo.Upsert(ctx, identity.New(record.AuthorURI)); err != nil {
				return fmt.Errorf("failed to create author identity: %w", err)
			}
		}
	}

	if err := s.postRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to store post: %w", err)
	}

	if eventKind == events.KindPostCreated {
		if err := s.timelineRepo.Insert(
			ctx, timelineevent.New(timelineevent.TypePost, record.AuthorURI, record.ObjectURI),
		); err != nil {
			slog.Error("Failed to record post timeline event",
				"post", record.ObjectURI, "error", err)
		}
	}

	s.publisher.Publish(ctx, eventKind, record.AuthorURI, record.ObjectURI)

	return nil
}

// firstString unwraps a value that may be a string, an object with an id,
// or a list of either.
func firstString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		id, _ := v["id"].(string)

		return id
	case []any:
		for _, item := range v {
			if s := firstString(item); s != "" {
				return s
			}
		}
	}

	return ""
}
