package rate

import "errors"

var (
	// ErrCounterUnavailable wraps every distributed backend failure.
	ErrCounterUnavailable = errors.New("distributed counter unavailable")
	// ErrCounterResponse reports a malformed backend reply.
	ErrCounterResponse = errors.New("distributed counter malformed response")
)
