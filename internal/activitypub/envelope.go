package activitypub

import (
	"strings"
)

// EmojiReactType is the litepub extension IRI used by Pleroma/Akkoma for
// emoji reactions. It appears both as a top-level activity type and as an
// Undo object type.
const EmojiReactType = "http://litepub.social/ns#emojireact"

// InternalType marks synthetic local-origin messages scheduled through the
// inbox queue. It is never valid on the wire.
const InternalType = "__internal__"

// Envelope is a read-only view over a raw activity document. The payload is
// attacker-controlled and has no fixed schema, so every accessor tolerates
// missing or mistyped fields.
type Envelope struct {
	payload map[string]any
}

func NewEnvelope(payload map[string]any) Envelope {
	return Envelope{payload: payload}
}

// Payload returns the underlying document.
func (e Envelope) Payload() map[string]any {
	return e.payload
}

// Type returns the lower-cased top-level type, or "" if absent.
func (e Envelope) Type() string {
	value, _ := e.payload["type"].(string)

	return strings.ToLower(value)
}

// Actor returns the raw actor field.
func (e Envelope) Actor() any {
	return e.payload["actor"]
}

// ObjectMap returns the embedded object when it is a mapping.
func (e Envelope) ObjectMap() (map[string]any, bool) {
	object, ok := e.payload["object"].(map[string]any)

	return object, ok
}

// ObjectString returns the embedded object when it is a plain string (a URI
// reference rather than an inlined object).
func (e Envelope) ObjectString() (string, bool) {
	object, ok := e.payload["object"].(string)

	return object, ok
}

// ObjectType returns the lower-cased type of the embedded object, or false
// when the object is absent or not a mapping.
func (e Envelope) ObjectType() (string, bool) {
	object, ok := e.ObjectMap()
	if !ok {
		return "", false
	}

	value, _ := object["type"].(string)

	return strings.ToLower(value), true
}

// ObjectHasContent reports whether the embedded object carries a content or
// contentMap key. Notes without content are interaction candidates rather
// than posts.
func (e Envelope) ObjectHasContent() bool {
	object, ok := e.ObjectMap()
	if !ok {
		return false
	}

	_, hasContent := object["content"]
	_, hasContentMap := object["contentMap"]

	return hasContent || hasContentMap
}
