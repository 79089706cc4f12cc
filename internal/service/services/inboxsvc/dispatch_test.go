package inboxsvc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/osmaa/takahe/internal/actors"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/inbox"
	"github.com/osmaa/takahe/internal/signatures"
)

// fakeHandlers implements every handler capability and records invocations.
type fakeHandlers struct {
	calls          []string
	failWith       error
	identityExists bool
	postExists     bool
}

func (f *fakeHandlers) record(name string) error {
	f.calls = append(f.calls, name)

	return f.failWith
}

func (f *fakeHandlers) HandleRequest(ctx context.Context, payload map[string]any) error {
	return f.record("follow.request")
}

func (f *fakeHandlers) HandleAccept(ctx context.Context, payload map[string]any) error {
	return f.record("follow.accept")
}

func (f *fakeHandlers) HandleReject(ctx context.Context, payload map[string]any) error {
	return f.record("follow.reject")
}

func (f *fakeHandlers) HandleUndo(ctx context.Context, payload map[string]any) error {
	return f.record("undo")
}

type fakeBlocks struct{ *fakeHandlers }

func (f fakeBlocks) Handle(ctx context.Context, payload map[string]any) error {
	return f.record("block.handle")
}

func (f fakeBlocks) HandleUndo(ctx context.Context, payload map[string]any) error {
	return f.record("block.undo")
}

type fakePosts struct{ *fakeHandlers }

func (f fakePosts) HandleCreate(ctx context.Context, payload map[string]any) error {
	return f.record("post.create")
}

func (f fakePosts) HandleUpdate(ctx context.Context, payload map[string]any) error {
	return f.record("post.update")
}

func (f fakePosts) HandleDelete(ctx context.Context, payload map[string]any) error {
	return f.record("post.delete")
}

func (f fakePosts) ExistsByObjectURI(ctx context.Context, objectURI string) (bool, error) {
	return f.postExists, nil
}

func (f fakePosts) HandleFetchInternal(ctx context.Context, object map[string]any) error {
	return f.record("post.fetch")
}

type fakeInteractions struct{ *fakeHandlers }

func (f fakeInteractions) Handle(ctx context.Context, payload map[string]any) error {
	return f.record("interaction.handle")
}

func (f fakeInteractions) HandleUndo(ctx context.Context, payload map[string]any) error {
	return f.record("interaction.undo")
}

func (f fakeInteractions) HandleAdd(ctx context.Context, payload map[string]any) error {
	return f.record("interaction.add")
}

func (f fakeInteractions) HandleRemove(ctx context.Context, payload map[string]any) error {
	return f.record("interaction.remove")
}

type fakeIdentities struct{ *fakeHandlers }

func (f fakeIdentities) HandleUpdate(ctx context.Context, payload map[string]any) error {
	return f.record("identity.update")
}

func (f fakeIdentities) HandleDelete(ctx context.Context, payload map[string]any) error {
	return f.record("identity.delete")
}

func (f fakeIdentities) ExistsByActorURI(ctx context.Context, actorURI string) (bool, error) {
	return f.identityExists, nil
}

type fakeReports struct{ *fakeHandlers }

func (f fakeReports) Handle(ctx context.Context, payload map[string]any) error {
	return f.record("report.handle")
}

type fakeTimelines struct{ *fakeHandlers }

func (f fakeTimelines) HandleClearTimeline(ctx context.Context, object map[string]any) error {
	return f.record("timeline.clear")
}

type fakeIdentitySvc struct{ *fakeHandlers }

func (f fakeIdentitySvc) HandleInternalAddFollow(ctx context.Context, object map[string]any) error {
	return f.record("identitysvc.addfollow")
}

func (f fakeIdentitySvc) HandleInternalSyncPins(ctx context.Context, object map[string]any) error {
	return f.record("identitysvc.syncpins")
}

// fakeResolver hands out a fixed public key for every actor.
type fakeResolver struct {
	publicKeyPEM string
}

func (f *fakeResolver) Resolve(
	ctx context.Context,
	actorURI string,
	createIfMissing, allowTransient bool,
) (*actors.Actor, error) {
	return &actors.Actor{URI: actorURI, PublicKeyPEM: f.publicKeyPEM}, nil
}

func (f *fakeResolver) Fetch(ctx context.Context, actor *actors.Actor) error {
	actor.PublicKeyPEM = f.publicKeyPEM

	return nil
}

// fakeInboxRepo satisfies the repository dependency; the dispatch tests
// never touch the queue itself.
type fakeInboxRepo struct{}

func (fakeInboxRepo) Insert(ctx context.Context, msg inbox.Message) error { return nil }

func (fakeInboxRepo) ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]inbox.Message, error) {
	return nil, nil
}

func (fakeInboxRepo) Commit(ctx context.Context, id uuid.UUID, state inbox.State) error {
	return nil
}

func (fakeInboxRepo) Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	return nil
}

func (fakeInboxRepo) DeleteExpired(ctx context.Context, state inbox.State, changedBefore time.Time) (int64, error) {
	return 0, nil
}

func newTestService(fake *fakeHandlers, resolver actors.Resolver) *InboxService {
	return MustNewInboxService(
		WithInboxRepository(&fakeInboxRepo{}),
		WithActorResolver(resolver),
		WithHandlers(Handlers{
			Follows:         fake,
			Blocks:          fakeBlocks{fake},
			Posts:           fakePosts{fake},
			Interactions:    fakeInteractions{fake},
			Identities:      fakeIdentities{fake},
			Reports:         fakeReports{fake},
			Timelines:       fakeTimelines{fake},
			IdentityService: fakeIdentitySvc{fake},
		}),
	)
}

func handle(t *testing.T, fake *fakeHandlers, payload map[string]any) (inbox.State, error) {
	t.Helper()

	svc := newTestService(fake, &fakeResolver{})

	return svc.HandleReceived(context.Background(), inbox.New(payload))
}

func TestDispatchTable(t *testing.T) {
	cases := []struct {
		name      string
		payload   map[string]any
		wantState inbox.State
		wantCalls []string
	}{
		{
			name:      "follow",
			payload:   map[string]any{"type": "Follow", "actor": "https://x/a", "object": "https://y/b"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"follow.request"},
		},
		{
			name:      "block",
			payload:   map[string]any{"type": "Block", "actor": "https://x/a", "object": "https://y/b"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"block.handle"},
		},
		{
			name:      "announce of like is skipped",
			payload:   map[string]any{"type": "Announce", "object": map[string]any{"type": "Like"}},
			wantState: inbox.StateProcessed,
			wantCalls: nil,
		},
		{
			name:      "announce of dislike is skipped",
			payload:   map[string]any{"type": "Announce", "object": map[string]any{"type": "Dislike"}},
			wantState: inbox.StateProcessed,
			wantCalls: nil,
		},
		{
			name:      "announce boost",
			payload:   map[string]any{"type": "Announce", "object": "https://y/post/1"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"interaction.handle"},
		},
		{
			name:      "like",
			payload:   map[string]any{"type": "Like", "object": "https://y/post/1"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"interaction.handle"},
		},
		{
			name: "create note with content",
			payload: map[string]any{
				"type":   "Create",
				"object": map[string]any{"type": "Note", "content": "<p>hi</p>"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"post.create"},
		},
		{
			name: "create note without content is an interaction candidate",
			payload: map[string]any{
				"type":   "Create",
				"object": map[string]any{"type": "Note"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"interaction.handle"},
		},
		{
			name: "create question",
			payload: map[string]any{
				"type":   "Create",
				"object": map[string]any{"type": "Question"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"post.create"},
		},
		{
			name: "create other post type",
			payload: map[string]any{
				"type":   "Create",
				"object": map[string]any{"type": "Article", "content": "x"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"post.create"},
		},
		{
			name: "create unrecognized object type is dropped",
			payload: map[string]any{
				"type":   "Create",
				"object": map[string]any{"type": "Widget"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: nil,
		},
		{
			name: "update note",
			payload: map[string]any{
				"type":   "Update",
				"object": map[string]any{"type": "Note", "content": "x"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"post.update"},
		},
		{
			name: "update person",
			payload: map[string]any{
				"type":   "Update",
				"object": map[string]any{"type": "Person"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"identity.update"},
		},
		{
			name: "update service",
			payload: map[string]any{
				"type":   "Update",
				"object": map[string]any{"type": "Service"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"identity.update"},
		},
		{
			name:      "accept follow",
			payload:   map[string]any{"type": "Accept", "object": map[string]any{"type": "Follow"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"follow.accept"},
		},
		{
			name:      "accept string object",
			payload:   map[string]any{"type": "Accept", "object": "https://y/follow/1"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"follow.accept"},
		},
		{
			name:      "accept unknown object",
			payload:   map[string]any{"type": "Accept", "object": map[string]any{"type": "Unknown"}},
			wantState: inbox.StateErrored,
			wantCalls: nil,
		},
		{
			name:      "reject follow",
			payload:   map[string]any{"type": "Reject", "object": map[string]any{"type": "Follow"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"follow.reject"},
		},
		{
			name:      "reject unknown object",
			payload:   map[string]any{"type": "Reject", "object": map[string]any{"type": "Note"}},
			wantState: inbox.StateErrored,
			wantCalls: nil,
		},
		{
			name:      "undo follow",
			payload:   map[string]any{"type": "Undo", "object": map[string]any{"type": "Follow"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"undo"},
		},
		{
			name:      "undo block",
			payload:   map[string]any{"type": "Undo", "object": map[string]any{"type": "Block"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"block.undo"},
		},
		{
			name:      "undo like",
			payload:   map[string]any{"type": "Undo", "object": map[string]any{"type": "Like"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"interaction.undo"},
		},
		{
			name:      "undo announce",
			payload:   map[string]any{"type": "Undo", "object": map[string]any{"type": "Announce"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"interaction.undo"},
		},
		{
			name: "undo emoji reaction is skipped",
			payload: map[string]any{
				"type":   "Undo",
				"object": map[string]any{"type": "http://litepub.social/ns#emojireact"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: nil,
		},
		{
			name:      "undo unknown object",
			payload:   map[string]any{"type": "Undo", "object": map[string]any{"type": "Note"}},
			wantState: inbox.StateErrored,
			wantCalls: nil,
		},
		{
			name:      "delete tombstone",
			payload:   map[string]any{"type": "Delete", "object": map[string]any{"type": "Tombstone"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"post.delete"},
		},
		{
			name:      "delete note",
			payload:   map[string]any{"type": "Delete", "object": map[string]any{"type": "Note"}},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"post.delete"},
		},
		{
			name:      "delete unknown object mapping",
			payload:   map[string]any{"type": "Delete", "object": map[string]any{"type": "Widget"}},
			wantState: inbox.StateErrored,
			wantCalls: nil,
		},
		{
			name:      "add pin",
			payload:   map[string]any{"type": "Add", "object": "https://y/post/1"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"interaction.add"},
		},
		{
			name:      "remove pin",
			payload:   map[string]any{"type": "Remove", "object": "https://y/post/1"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"interaction.remove"},
		},
		{
			name:      "move is skipped",
			payload:   map[string]any{"type": "Move"},
			wantState: inbox.StateProcessed,
			wantCalls: nil,
		},
		{
			name:      "emoji react is skipped",
			payload:   map[string]any{"type": "http://litepub.social/ns#EmojiReact"},
			wantState: inbox.StateProcessed,
			wantCalls: nil,
		},
		{
			name:      "flag",
			payload:   map[string]any{"type": "Flag", "object": "https://y/post/1"},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"report.handle"},
		},
		{
			name: "internal fetchpost",
			payload: map[string]any{
				"type":   "__internal__",
				"object": map[string]any{"type": "fetchpost", "object": "https://y/post/1"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"post.fetch"},
		},
		{
			name: "internal cleartimeline",
			payload: map[string]any{
				"type":   "__internal__",
				"object": map[string]any{"type": "cleartimeline", "actor": "https://y/a"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"timeline.clear"},
		},
		{
			name: "internal addfollow",
			payload: map[string]any{
				"type":   "__internal__",
				"object": map[string]any{"type": "addfollow"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"identitysvc.addfollow"},
		},
		{
			name: "internal syncpins",
			payload: map[string]any{
				"type":   "__internal__",
				"object": map[string]any{"type": "syncpins"},
			},
			wantState: inbox.StateProcessed,
			wantCalls: []string{"identitysvc.syncpins"},
		},
		{
			name: "internal unknown action",
			payload: map[string]any{
				"type":   "__internal__",
				"object": map[string]any{"type": "defragment"},
			},
			wantState: inbox.StateErrored,
			wantCalls: nil,
		},
		{
			name:      "unknown activity type",
			payload:   map[string]any{"type": "Frobnicate"},
			wantState: inbox.StateErrored,
			wantCalls: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeHandlers{}

			state, err := handle(t, fake, tc.payload)
			if err != nil {
				t.Fatalf("HandleReceived: %v", err)
			}
			if state != tc.wantState {
				t.Errorf("state = %q, want %q", state, tc.wantState)
			}
			if fmt.Sprint(fake.calls) != fmt.Sprint(tc.wantCalls) {
				t.Errorf("calls = %v, want %v", fake.calls, tc.wantCalls)
			}
		})
	}
}

func TestDispatchDeleteByURI(t *testing.T) {
	payload := map[string]any{"type": "Delete", "object": "https://y/thing/1"}

	t.Run("matches an identity", func(t *testing.T) {
		fake := &fakeHandlers{identityExists: true}
		state, err := handle(t, fake, payload)
		if err != nil {
			t.Fatalf("HandleReceived: %v", err)
		}
		if state != inbox.StateProcessed || fmt.Sprint(fake.calls) != "[identity.delete]" {
			t.Errorf("state=%q calls=%v", state, fake.calls)
		}
	})

	t.Run("matches a post", func(t *testing.T) {
		fake := &fakeHandlers{postExists: true}
		state, err := handle(t, fake, payload)
		if err != nil {
			t.Fatalf("HandleReceived: %v", err)
		}
		if state != inbox.StateProcessed || fmt.Sprint(fake.calls) != "[post.delete]" {
			t.Errorf("state=%q calls=%v", state, fake.calls)
		}
	})

	t.Run("matches nothing and is presumed gone", func(t *testing.T) {
		fake := &fakeHandlers{}
		state, err := handle(t, fake, payload)
		if err != nil {
			t.Fatalf("HandleReceived: %v", err)
		}
		if state != inbox.StateProcessed || len(fake.calls) != 0 {
			t.Errorf("state=%q calls=%v", state, fake.calls)
		}
	})
}

func TestDispatchErrorClassification(t *testing.T) {
	payload := map[string]any{"type": "Follow", "actor": "https://x/a"}

	t.Run("protocol errors convert to errored", func(t *testing.T) {
		fake := &fakeHandlers{
			failWith: fmt.Errorf("%w: unknown target", federation.ErrProtocol),
		}
		state, err := handle(t, fake, payload)
		if err != nil {
			t.Fatalf("protocol errors must not propagate: %v", err)
		}
		if state != inbox.StateErrored {
			t.Errorf("state = %q, want errored", state)
		}
	})

	t.Run("unclassified faults propagate for retry", func(t *testing.T) {
		fault := errors.New("database on fire")
		fake := &fakeHandlers{failWith: fault}
		_, err := handle(t, fake, payload)
		if !errors.Is(err, fault) {
			t.Fatalf("expected the fault to propagate, got %v", err)
		}
	})
}

func TestHandleReceivedLDSignaturePrePass(t *testing.T) {
	key, err := signatures.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	publicPEM, err := signatures.EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		t.Fatalf("encode key: %v", err)
	}

	t.Run("malformed signature block errors immediately", func(t *testing.T) {
		fake := &fakeHandlers{}
		svc := newTestService(fake, &fakeResolver{publicKeyPEM: publicPEM})

		msg := inbox.New(map[string]any{
			"type":      "Follow",
			"signature": map[string]any{"type": "RsaSignature2017"},
		})
		state, err := svc.HandleReceived(context.Background(), msg)
		if err != nil {
			t.Fatalf("HandleReceived: %v", err)
		}
		if state != inbox.StateErrored {
			t.Errorf("state = %q, want errored", state)
		}
		if len(fake.calls) != 0 {
			t.Errorf("no handler should run, got %v", fake.calls)
		}
	})

	t.Run("cryptographically invalid signature is tolerated", func(t *testing.T) {
		fake := &fakeHandlers{}
		svc := newTestService(fake, &fakeResolver{publicKeyPEM: publicPEM})

		payload := map[string]any{
			"@context": []any{"https://www.w3.org/ns/activitystreams"},
			"type":     "Follow",
			"actor":    "https://x/a",
			"signature": map[string]any{
				"type":           "RsaSignature2017",
				"creator":        "https://x/a#main-key",
				"created":        "2023-10-25T08:08:47.702Z",
				"signatureValue": "bm90IGEgcmVhbCBzaWduYXR1cmU=",
			},
		}
		msg := inbox.New(payload)
		state, err := svc.HandleReceived(context.Background(), msg)
		if err != nil {
			t.Fatalf("HandleReceived: %v", err)
		}
		if state != inbox.StateProcessed {
			t.Errorf("state = %q, want processed", state)
		}
		if fmt.Sprint(fake.calls) != "[follow.request]" {
			t.Errorf("calls = %v", fake.calls)
		}
		if _, ok := payload["signature"]; ok {
			t.Error("invalid signature should be stripped from the document")
		}
	})

	t.Run("valid signature stays on the document", func(t *testing.T) {
		fake := &fakeHandlers{}
		svc := newTestService(fake, &fakeResolver{publicKeyPEM: publicPEM})

		payload := map[string]any{
			"@context": []any{"https://www.w3.org/ns/activitystreams"},
			"type":     "Follow",
			"actor":    "https://x/a",
		}
		section, err := signatures.CreateSignature(payload, key, "https://x/a#main-key")
		if err != nil {
			t.Fatalf("CreateSignature: %v", err)
		}
		payload["signature"] = section

		msg := inbox.New(payload)
		state, err := svc.HandleReceived(context.Background(), msg)
		if err != nil {
			t.Fatalf("HandleReceived: %v", err)
		}
		if state != inbox.StateProcessed {
			t.Errorf("state = %q, want processed", state)
		}
		if _, ok := payload["signature"]; !ok {
			t.Error("valid signature should remain on the document")
		}
	})
}
