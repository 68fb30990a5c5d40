package jws

import "errors"

// Named authentication failure modes, returned by VerifyMessage (wrapped
// with additional context via fmt.Errorf("%w: ...", ...)).
var (
	ErrMissingAuthorization  = errors.New("jws: missing authorization")
	ErrInvalidKid            = errors.New("jws: invalid kid")
	ErrUnsupportedAlgorithm  = errors.New("jws: unsupported algorithm")
	ErrKeyNotFound           = errors.New("jws: key not found")
	ErrSignatureMismatch     = errors.New("jws: signature mismatch")
	ErrDescriptorCidMismatch = errors.New("jws: descriptor cid mismatch")
)
