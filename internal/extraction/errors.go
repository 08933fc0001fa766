package extraction

import "errors"

var (
	// ErrUnreachable means every attempt failed in transport: the service could not be
	// reached, timed out or answered with a non-2xx status.
	ErrUnreachable = errors.New("extraction service unreachable")
	// ErrUpstreamRejected means the service explicitly reported the extraction as failed.
	// It is never retried.
	ErrUpstreamRejected = errors.New("extraction rejected upstream")
	// ErrNoResult means every attempt's stream ended without a terminal event.
	ErrNoResult = errors.New("extraction stream ended without a result")
)
