package signatures

import (
	"errors"
	"fmt"
)

var (
	// ErrVerification is the base error for signature verification failures.
	// A wrapped ErrVerification that is not also an ErrVerificationFormat
	// means the material was well-formed but cryptographically invalid.
	ErrVerification = errors.New("signature verification failed")

	// ErrVerificationFormat marks structurally malformed signature material
	// (missing headers, missing parameters, undecodable values). It wraps
	// ErrVerification, so errors.Is(err, ErrVerification) holds for it too.
	ErrVerificationFormat = fmt.Errorf("%w: malformed signature", ErrVerification)

	// ErrNormalization marks a JSON-LD canonicalization fault.
	ErrNormalization = errors.New("json-ld normalization failed")
)
