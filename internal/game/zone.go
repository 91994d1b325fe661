package game

import "time"

// Zone is the simulation engine a session owns. It is not thread-safe:
// every entry point must be called from the session's run loop.
type Zone interface {
	// AddSeat registers the outbound byte sink for a seat.
	AddSeat(seat int, out func(payload []byte))

	// InjectInbound feeds client bytes into the simulation for a seat.
	InjectInbound(seat int, payload []byte)

	// SpawnController creates the controller for one match.
	SpawnController(players int, soloVsBot bool) Controller

	// DrainDueTimers runs any deferred work whose delay has elapsed.
	DrainDueTimers()
}

// ControllerState reports the controller lifecycle to the session.
type ControllerState int

const (
	ControllerRunning ControllerState = iota
	ControllerStopped
)

// Result is the outcome of a finished match. WinnerSeat is zero when the
// match had no decisive winner (external stop, dead-even timeout).
type Result struct {
	WinnerSeat int
}

// Controller drives one match inside the zone. Start and Stop are called
// from the session's run loop; onChange may fire from any context and
// must therefore be delivered back into the loop by the caller.
type Controller interface {
	Start(onChange func(ControllerState))
	Stop()
	Result() Result
}

// ZoneFactory builds the session's zone. The schedule hook arranges for
// DrainDueTimers to be invoked inside the session's run loop after the
// given delay; it is the only way the zone may wait for time to pass.
type ZoneFactory func(schedule func(delay time.Duration)) Zone
