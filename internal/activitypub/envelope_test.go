package activitypub

import (
	"testing"
)

func TestEnvelopeProjections(t *testing.T) {
	cases := []struct {
		name        string
		payload     map[string]any
		wantType    string
		wantObjType string
		wantObjOK   bool
		wantContent bool
	}{
		{
			name: "inlined note with content",
			payload: map[string]any{
				"type":  "Create",
				"actor": "https://example.com/a",
				"object": map[string]any{
					"type":    "Note",
					"content": "<p>hi</p>",
				},
			},
			wantType:    "create",
			wantObjType: "note",
			wantObjOK:   true,
			wantContent: true,
		},
		{
			name: "contentMap counts as content",
			payload: map[string]any{
				"type": "Create",
				"object": map[string]any{
					"type":       "Note",
					"contentMap": map[string]any{"en": "hi"},
				},
			},
			wantType:    "create",
			wantObjType: "note",
			wantObjOK:   true,
			wantContent: true,
		},
		{
			name: "string object",
			payload: map[string]any{
				"type":   "Accept",
				"object": "https://example.com/follow/1",
			},
			wantType:  "accept",
			wantObjOK: false,
		},
		{
			name:      "missing everything",
			payload:   map[string]any{},
			wantType:  "",
			wantObjOK: false,
		},
		{
			name: "mistyped type field",
			payload: map[string]any{
				"type":   12.5,
				"object": map[string]any{"type": "NOTE"},
			},
			wantType:    "",
			wantObjType: "note",
			wantObjOK:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := NewEnvelope(tc.payload)

			if got := env.Type(); got != tc.wantType {
				t.Errorf("Type() = %q, want %q", got, tc.wantType)
			}
			objType, ok := env.ObjectType()
			if ok != tc.wantObjOK {
				t.Fatalf("ObjectType() ok = %v, want %v", ok, tc.wantObjOK)
			}
			if ok && objType != tc.wantObjType {
				t.Errorf("ObjectType() = %q, want %q", objType, tc.wantObjType)
			}
			if got := env.ObjectHasContent(); got != tc.wantContent {
				t.Errorf("ObjectHasContent() = %v, want %v", got, tc.wantContent)
			}
		})
	}
}

func TestParseActivityKind(t *testing.T) {
	if kind := ParseActivityKind("follow"); kind != ActivityFollow {
		t.Fatalf("expected ActivityFollow, got %q", kind)
	}
	if kind := ParseActivityKind("http://litepub.social/ns#emojireact"); kind != ActivityEmojiReact {
		t.Fatalf("expected ActivityEmojiReact, got %q", kind)
	}
	if kind := ParseActivityKind("frobnicate"); kind != ActivityUnknown {
		t.Fatalf("expected ActivityUnknown, got %q", kind)
	}
}
