package video

import "errors"

var (
	// ErrUpstream means the record or object store reported a failure. The
	// operation is retriable.
	ErrUpstream = errors.New("upstream failure")

	// ErrSuperseded means a newer reconciliation pass started while this
	// one was in flight; it left the purge to the newer pass.
	ErrSuperseded = errors.New("reconciliation pass superseded")
)
