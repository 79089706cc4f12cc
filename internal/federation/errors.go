package federation

import (
	"errors"
	"fmt"
)

// ErrProtocol is the base error for activities a domain handler rejects on
// semantic grounds: the message parsed, but it references something unknown
// or asserts something the sender may not do. These convert the message to
// the errored state rather than being retried.
var ErrProtocol = errors.New("activitypub protocol error")

// ErrFormat marks activities whose required fields are missing or mistyped.
// It wraps ErrProtocol.
var ErrFormat = fmt.Errorf("%w: bad message format", ErrProtocol)

// ErrActorMismatch marks activities whose actor is not authorised for the
// action they describe. It wraps ErrProtocol.
var ErrActorMismatch = fmt.Errorf("%w: actor mismatch", ErrProtocol)
