package session

import "errors"

var (
	// ErrNoActiveSession is returned by operations that require a live
	// session before any mutation has created one.
	ErrNoActiveSession = errors.New("no active session")

	// ErrClosed is returned after the orchestrator has been shut down.
	ErrClosed = errors.New("session orchestrator closed")
)
