package game

// Config holds the immutable creation parameters of a session.
type Config struct {
	// WithBot fills the second seat with a bot, so a single human join
	// starts the match.
	WithBot bool `json:"withBot"`
}

// maxSeats is the number of human seats per session. The bot never
// occupies a registry slot.
const maxSeats = 2

type clientStatus int

const (
	clientActive clientStatus = iota
	clientDeparted
)

// Client is one registered participant. Records are append-only: a
// departed client keeps its record so seat numbers stay stable and late
// messages can still be validated against the assigned range.
type Client struct {
	UserID   string
	UserName string
	Seat     int // 1-based, assigned once at join

	status   clientStatus
	observer *Observer
}

// active reports whether the client is still in the session. A client
// that merely lost its channel stays active; only an explicit Leave
// departs it, and a departed client is never rebound.
func (c *Client) active() bool {
	return c.status == clientActive
}

// Snapshot is the immutable view of a session returned to callers.
type Snapshot struct {
	ID      string   `json:"id"`
	WithBot bool     `json:"withBot"`
	Phase   Phase    `json:"phase"`
	Players []string `json:"players"` // display names in seat order
}
