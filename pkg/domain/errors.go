package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoPendingInterrupt is returned by resume when the session is not suspended.
var ErrNoPendingInterrupt = errors.New("no pending interrupt for session")

// ErrDoubleSuspension is returned when a node attempts to suspend while a
// request is already outstanding. At most one interrupt may be pending per
// session.
var ErrDoubleSuspension = errors.New("session already has a pending interrupt")

// TerminalStateError indicates step or resume was called on a finished
// session. This is a caller bug, not a recoverable runtime condition.
type TerminalStateError struct {
	SessionID string
	Step      Step
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("session %s is terminal at step %s", e.SessionID, e.Step)
}

// StaleResumeError indicates a resume carried a request ID that does not
// match the outstanding suspension.
type StaleResumeError struct {
	SessionID string
	Got       string
	Want      string
}

func (e *StaleResumeError) Error() string {
	return fmt.Sprintf("stale resume for session %s: request %s does not match pending %s", e.SessionID, e.Got, e.Want)
}

// AlreadyResolvedError indicates a second resume for a request that was
// already consumed. The node is not re-run.
type AlreadyResolvedError struct {
	SessionID string
	RequestID string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("interrupt request %s for session %s is already resolved", e.RequestID, e.SessionID)
}
