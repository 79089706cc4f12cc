package inbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/osmaa/takahe/internal/activitypub"
)

// State is the lifecycle state of an inbox message.
type State string

const (
	StateReceived  State = "received"
	StateProcessed State = "processed"
	StateErrored   State = "errored"
)

// StatePolicy is the scheduling and retention policy attached to a state.
type StatePolicy struct {
	// TryInterval is how long after a failed attempt the message becomes
	// claimable again. Zero for externally progressed states.
	TryInterval time.Duration

	// DeleteAfter is how long after the last state change the reaper removes
	// the row.
	DeleteAfter time.Duration

	// ExternallyProgressed marks terminal states that nothing transitions out
	// of; they exist as a record for operators.
	ExternallyProgressed bool
}

// Policies holds the per-state policy table. The intervals are defaults;
// the worker and reaper may run with configured overrides, but the shape of
// the graph is fixed.
var Policies = map[State]StatePolicy{
	StateReceived:  {TryInterval: 300 * time.Second, DeleteAfter: 3 * 24 * time.Hour},
	StateProcessed: {DeleteAfter: 24 * time.Hour, ExternallyProgressed: true},
	StateErrored:   {DeleteAfter: 24 * time.Hour, ExternallyProgressed: true},
}

var transitions = map[State]map[State]bool{
	StateReceived: {StateProcessed: true, StateErrored: true},
}

// CanTransition reports whether the state graph permits from -> to.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

// Terminal reports whether the state has no outgoing transitions.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, ok := Policies[s]

	return ok
}

// Message is one unit of inbox work: a raw activity document and its queue
// bookkeeping.
type Message struct {
	ID             uuid.UUID
	Payload        map[string]any
	State          State
	StateChangedAt time.Time
	LastAttemptAt  *time.Time
	LockedUntil    *time.Time
}

// New creates a message in the received state for a raw activity payload.
func New(payload map[string]any) Message {
	return Message{
		ID:             uuid.New(),
		Payload:        payload,
		State:          StateReceived,
		StateChangedAt: time.Now(),
	}
}

// NewInternal creates an internal maintenance message. The action name
// becomes the object type, so it rides the same dispatch path as federated
// activities.
func NewInternal(action string, payload map[string]any) Message {
	object := map[string]any{"type": action}
	for key, value := range payload {
		object[key] = value
	}

	return New(map[string]any{
		"type":   activitypub.InternalType,
		"object": object,
	})
}

// Claimable reports whether a worker may claim the message at the given
// instant: the state must allow re-attempts and any lease must have lapsed.
func (m *Message) Claimable(now time.Time) bool {
	if m.State.Terminal() {
		return false
	}
	if m.LockedUntil != nil && m.LockedUntil.After(now) {
		return false
	}

	return true
}

// Envelope returns the projection view over the payload.
func (m *Message) Envelope() activitypub.Envelope {
	return activitypub.NewEnvelope(m.Payload)
}
