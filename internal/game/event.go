package game

// EventType classifies session lifecycle events.
type EventType string

const (
	EventPlayerJoined EventType = "player_joined"
	EventMatchBegin   EventType = "match_begin"
	EventPlayerLeft   EventType = "player_left"
	EventMatchAborted EventType = "match_aborted"
	EventMatchEnded   EventType = "match_ended"
)

// Event is a lifecycle notification fanned out to session observers.
// Only the fields relevant to the event type are populated.
type Event struct {
	Type       EventType `json:"type"`
	Seat       int       `json:"seat,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	UserName   string    `json:"userName,omitempty"`
	WinnerSeat int       `json:"winnerSeat,omitempty"` // zero means no decisive winner
}

// Sink is the transport side of an observer handle: an opaque
// push-notification target bound to one open channel. Implementations
// must not block; delivery is at-most-once and non-durable.
type Sink interface {
	// SendEvent pushes a lifecycle event to the client.
	SendEvent(ev Event)
	// SendData pushes raw outbound simulation bytes to the client.
	SendData(payload []byte)
}

// Observer is the handle a session keeps per client. The underlying sink
// is swapped on reconnect and detached on channel loss; an unbound
// observer silently drops everything pushed at it.
//
// Observers are only touched from their session's run loop, so no lock
// guards the sink field.
type Observer struct {
	sink Sink
}

func newObserver(sink Sink) *Observer {
	return &Observer{sink: sink}
}

// Rebind points the handle at a newly opened channel.
func (o *Observer) Rebind(sink Sink) {
	o.sink = sink
}

// Unbind detaches the handle from its channel. Subsequent sends drop.
func (o *Observer) Unbind() {
	o.sink = nil
}

// UnbindFrom detaches the handle only while it is still bound to sink.
// A close racing behind a reconnect that already rebound the observer is
// a no-op, so the fresh channel keeps receiving.
func (o *Observer) UnbindFrom(sink Sink) {
	if o.sink == sink {
		o.sink = nil
	}
}

// Bound reports whether the handle currently has a live channel.
func (o *Observer) Bound() bool {
	return o != nil && o.sink != nil
}

func (o *Observer) sendEvent(ev Event) {
	if o.Bound() {
		o.sink.SendEvent(ev)
	}
}

func (o *Observer) sendData(payload []byte) {
	if o.Bound() {
		o.sink.SendData(payload)
	}
}
