package game

import "errors"

// Caller-contract violations surfaced synchronously to the transport.
// None of these are retried internally.
var (
	// ErrMatchStarted is returned by Join once the session has left Waiting.
	ErrMatchStarted = errors.New("match already started")

	// ErrSessionFull is returned by Join when both human seats are taken.
	ErrSessionFull = errors.New("session full")

	// ErrNotParticipant is returned by Leave for an unknown or already
	// departed user.
	ErrNotParticipant = errors.New("not a participant")

	// ErrInvalidSeat is returned by RouteBytes for a seat number outside
	// the currently assigned range.
	ErrInvalidSeat = errors.New("invalid seat")

	// ErrSessionClosed is returned when an operation reaches a session
	// whose run loop has already shut down.
	ErrSessionClosed = errors.New("session closed")
)
