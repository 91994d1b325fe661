package game

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const mailboxSize = 64

// Session coordinates one match: it owns the client registry, the phase
// state machine, the simulation zone, and the fan-out to observers.
//
// All state lives behind a single run loop. Public methods enqueue work
// onto the mailbox and the loop executes it one message at a time in
// delivery order, so join, leave, byte routing, timer drains, and
// controller callbacks never touch session state concurrently.
type Session struct {
	id  string
	cfg Config
	log *zap.Logger

	mailbox   chan func()
	pending   []func() // self-messages, run before the next mailbox receive
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the run loop.
	phase       Phase
	clients     []*Client
	byUser      map[string]int // userID -> clients index
	zone        Zone
	controller  Controller
	terminated  bool
	onTerminate func(id string)
}

// NewSession builds a session in Waiting phase and starts its run loop.
// The zone is created through newZone with the session's scheduling hook,
// keeping all zone timer work inside the run loop. onTerminate is the
// self-destruct signal to the owning manager.
func NewSession(id string, cfg Config, newZone ZoneFactory, log *zap.Logger, onTerminate func(id string)) *Session {
	s := &Session{
		id:          id,
		cfg:         cfg,
		log:         log,
		mailbox:     make(chan func(), mailboxSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		phase:       Waiting,
		byUser:      make(map[string]int),
		onTerminate: onTerminate,
	}
	s.zone = newZone(s.schedule)
	go s.run()
	return s
}

// ID returns the immutable session identifier.
func (s *Session) ID() string {
	return s.id
}

// Close shuts the run loop down. The loop finishes the message it is
// executing before exiting; queued messages are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		default:
		}
		if len(s.pending) > 0 {
			fn := s.pending[0]
			s.pending = s.pending[1:]
			fn()
			continue
		}
		select {
		case fn := <-s.mailbox:
			fn()
		case <-s.quit:
			return
		}
	}
}

// do runs fn inside the run loop and waits for it to finish.
func (s *Session) do(fn func()) error {
	executed := make(chan struct{})
	select {
	case s.mailbox <- func() { fn(); close(executed) }:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case <-executed:
		return nil
	case <-s.done:
		// The loop never exits mid-message: either fn already ran or it
		// never will.
		select {
		case <-executed:
			return nil
		default:
			return ErrSessionClosed
		}
	}
}

// postAsync enqueues fn without waiting. Safe to call from inside the
// run loop: when the mailbox is full the handoff moves to a goroutine
// instead of deadlocking.
func (s *Session) postAsync(fn func()) {
	select {
	case s.mailbox <- fn:
		return
	case <-s.done:
		return
	default:
	}
	go func() {
		select {
		case s.mailbox <- fn:
		case <-s.done:
		}
	}()
}

// deferSelf queues fn to run after the current message, before the next
// mailbox receive.
func (s *Session) deferSelf(fn func()) {
	s.pending = append(s.pending, fn)
}

// schedule is the zone's timer hook: after delay, a wake-up message
// drains due timers inside the run loop.
func (s *Session) schedule(delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.postAsync(func() { s.zone.DrainDueTimers() })
	})
}

// Join registers a new participant and returns its assigned seat number
// with a session snapshot. Fails with ErrSessionFull when both seats are
// taken and ErrMatchStarted once the session has left Waiting. When the
// join fills the seats, the match start is scheduled as a self-message
// so the caller is not blocked by controller spawn.
func (s *Session) Join(userID, userName string, sink Sink) (int, Snapshot, error) {
	var (
		seat int
		snap Snapshot
		err  error
	)
	if derr := s.do(func() { seat, snap, err = s.join(userID, userName, sink) }); derr != nil {
		return 0, Snapshot{}, derr
	}
	return seat, snap, err
}

func (s *Session) join(userID, userName string, sink Sink) (int, Snapshot, error) {
	if len(s.clients) >= maxSeats {
		return 0, Snapshot{}, ErrSessionFull
	}
	if s.phase != Waiting {
		return 0, Snapshot{}, ErrMatchStarted
	}

	seat := len(s.clients) + 1

	// Existing observers hear about the newcomer; the newcomer does not
	// see its own join.
	s.broadcast(Event{Type: EventPlayerJoined, Seat: seat, UserID: userID, UserName: userName})

	c := &Client{
		UserID:   userID,
		UserName: userName,
		Seat:     seat,
		observer: newObserver(sink),
	}
	s.byUser[userID] = len(s.clients)
	s.clients = append(s.clients, c)

	s.zone.AddSeat(seat, func(payload []byte) {
		// Runs inside the run loop: the zone is only entered from here.
		// An unbound or departed observer drops the bytes.
		if c.active() {
			c.observer.sendData(payload)
		}
	})

	s.log.Info("player joined",
		zap.String("user", userID),
		zap.Int("seat", seat))

	if s.seatsFilled() {
		s.deferSelf(s.startMatch)
	}
	return seat, s.snapshot(), nil
}

func (s *Session) seatsFilled() bool {
	if s.cfg.WithBot {
		return len(s.clients) >= 1
	}
	return len(s.clients) == maxSeats
}

// startMatch runs as a deferred self-message. A Leave racing with it is
// serialized ahead of it, so it re-checks the phase and no-ops when the
// session is no longer Waiting.
func (s *Session) startMatch() {
	if s.phase != Waiting {
		return
	}
	s.phase = Playing
	s.broadcast(Event{Type: EventMatchBegin})

	ctrl := s.zone.SpawnController(len(s.clients), s.cfg.WithBot)
	s.controller = ctrl
	ctrl.Start(func(st ControllerState) {
		s.postAsync(func() { s.controllerChanged(ctrl, st) })
	})

	s.log.Info("match started",
		zap.Int("players", len(s.clients)),
		zap.Bool("withBot", s.cfg.WithBot))
}

func (s *Session) controllerChanged(ctrl Controller, st ControllerState) {
	if st != ControllerStopped || s.phase != Playing {
		return
	}
	s.phase = Ended
	s.controller = nil
	winner := ctrl.Result().WinnerSeat
	s.broadcast(Event{Type: EventMatchEnded, WinnerSeat: winner})
	s.log.Info("match ended", zap.Int("winnerSeat", winner))
}

// Leave departs a participant. The record is retained for seat number
// stability, but its observer is dropped for good. Unless the match
// already Ended, the session aborts: the controller is stopped and a
// MatchAborted event is fanned out. When no client retains a bound
// observer afterwards, the session signals its own termination.
func (s *Session) Leave(userID string) error {
	var err error
	if derr := s.do(func() { err = s.leave(userID) }); derr != nil {
		return derr
	}
	return err
}

func (s *Session) leave(userID string) error {
	idx, ok := s.byUser[userID]
	if !ok || !s.clients[idx].active() {
		return ErrNotParticipant
	}
	c := s.clients[idx]
	c.status = clientDeparted
	c.observer.Unbind()

	s.broadcast(Event{Type: EventPlayerLeft, UserID: userID})
	s.log.Info("player left", zap.String("user", userID))

	if s.phase != Ended {
		if s.controller != nil {
			s.controller.Stop()
			s.controller = nil
		}
		s.phase = Aborted
		s.broadcast(Event{Type: EventMatchAborted})
	}

	if !s.terminated && !s.anyObserverBound() {
		s.terminated = true
		s.log.Info("all players gone, terminating")
		if s.onTerminate != nil {
			s.onTerminate(s.id)
		}
	}
	return nil
}

// RouteBytes delivers raw client bytes to the seat's inbound pipe.
func (s *Session) RouteBytes(seat int, payload []byte) error {
	var err error
	if derr := s.do(func() { err = s.routeBytes(seat, payload) }); derr != nil {
		return derr
	}
	return err
}

func (s *Session) routeBytes(seat int, payload []byte) error {
	if seat < 1 || seat > len(s.clients) {
		return ErrInvalidSeat
	}
	s.zone.InjectInbound(seat, payload)
	return nil
}

// OnChannelOpen rebinds the client's observer to a freshly opened
// channel, restoring delivery after a reconnect without a new Join. An
// unknown user or a departed client is a no-op.
func (s *Session) OnChannelOpen(userID string, sink Sink) {
	_ = s.do(func() {
		idx, ok := s.byUser[userID]
		if !ok {
			return
		}
		if c := s.clients[idx]; c.active() {
			c.observer.Rebind(sink)
			s.log.Debug("channel rebound", zap.String("user", userID))
		}
	})
}

// OnChannelClose detaches the client's observer from the given channel.
// The seat stays reserved and no abort is triggered; only an explicit
// Leave does that. When a reconnect already rebound the observer to a
// newer channel, the stale close is ignored.
func (s *Session) OnChannelClose(userID string, sink Sink) {
	_ = s.do(func() {
		idx, ok := s.byUser[userID]
		if !ok {
			return
		}
		if c := s.clients[idx]; c.active() {
			c.observer.UnbindFrom(sink)
			s.log.Debug("channel lost", zap.String("user", userID))
		}
	})
}

// Participant reports the seat assigned to userID, if it is still an
// active participant.
func (s *Session) Participant(userID string) (int, bool) {
	var (
		seat int
		ok   bool
	)
	if derr := s.do(func() {
		idx, found := s.byUser[userID]
		if found && s.clients[idx].active() {
			seat, ok = s.clients[idx].Seat, true
		}
	}); derr != nil {
		return 0, false
	}
	return seat, ok
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	var p Phase
	if derr := s.do(func() { p = s.phase }); derr != nil {
		return Aborted
	}
	return p
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	_ = s.do(func() { snap = s.snapshot() })
	return snap
}

func (s *Session) snapshot() Snapshot {
	players := make([]string, len(s.clients))
	for i, c := range s.clients {
		players[i] = c.UserName
	}
	return Snapshot{
		ID:      s.id,
		WithBot: s.cfg.WithBot,
		Phase:   s.phase,
		Players: players,
	}
}

func (s *Session) broadcast(ev Event) {
	for _, c := range s.clients {
		if c.active() {
			c.observer.sendEvent(ev)
		}
	}
}

func (s *Session) anyObserverBound() bool {
	for _, c := range s.clients {
		if c.active() && c.observer.Bound() {
			return true
		}
	}
	return false
}
