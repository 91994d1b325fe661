// Package zone is the built-in simulation engine: a minimal duel where
// each seat trades strikes until one side runs out of hit points. It
// implements the zone contract the session coordinator consumes and has
// no concurrency of its own; the owning session serializes every entry
// point, including timer drains.
package zone

import (
	"time"

	"go.uber.org/zap"

	"github.com/duelgrid/backend/internal/game"
)

// Inbound commands are a single opcode byte.
const (
	OpStrike byte = 0x01 // hit the opponent
	OpGuard  byte = 0x02 // halve the next strike received
	OpYield  byte = 0x03 // concede the match
)

// FrameState is the opcode of outbound state frames:
// [FrameState, hp(seat1), hp(seat2)].
const FrameState byte = 0x10

type Config struct {
	StartHP      int
	StrikeDamage int
	RoundLimit   time.Duration
	BotInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		StartHP:      10,
		StrikeDamage: 2,
		RoundLimit:   2 * time.Minute,
		BotInterval:  1500 * time.Millisecond,
	}
}

type seatState struct {
	out   func(payload []byte) // nil for the bot's virtual seat
	hp    int
	guard bool
}

type timerEntry struct {
	due time.Time
	fn  func()
}

type Engine struct {
	cfg      Config
	log      *zap.Logger
	schedule func(delay time.Duration)
	seats    map[int]*seatState
	timers   []timerEntry
	ctrl     *Controller
}

// NewEngine builds an engine. schedule is the session's timer hook; the
// engine never arms timers on its own.
func NewEngine(cfg Config, schedule func(delay time.Duration), log *zap.Logger) *Engine {
	if cfg.StartHP <= 0 {
		cfg.StartHP = DefaultConfig().StartHP
	}
	if cfg.StrikeDamage <= 0 {
		cfg.StrikeDamage = DefaultConfig().StrikeDamage
	}
	if cfg.RoundLimit <= 0 {
		cfg.RoundLimit = DefaultConfig().RoundLimit
	}
	if cfg.BotInterval <= 0 {
		cfg.BotInterval = DefaultConfig().BotInterval
	}
	return &Engine{
		cfg:      cfg,
		log:      log,
		schedule: schedule,
		seats:    make(map[int]*seatState),
	}
}

// Factory adapts the engine to the session's zone factory signature.
func Factory(cfg Config, log *zap.Logger) game.ZoneFactory {
	return func(schedule func(delay time.Duration)) game.Zone {
		return NewEngine(cfg, schedule, log)
	}
}

func (e *Engine) AddSeat(seat int, out func(payload []byte)) {
	e.ensureSeat(seat).out = out
}

func (e *Engine) ensureSeat(seat int) *seatState {
	st, ok := e.seats[seat]
	if !ok {
		st = &seatState{hp: e.cfg.StartHP}
		e.seats[seat] = st
	}
	return st
}

func (e *Engine) InjectInbound(seat int, payload []byte) {
	if e.ctrl == nil || !e.ctrl.running() || len(payload) == 0 {
		return
	}
	st, ok := e.seats[seat]
	if !ok {
		return
	}
	switch payload[0] {
	case OpStrike:
		e.strike(seat)
	case OpGuard:
		st.guard = true
	case OpYield:
		e.log.Debug("seat yielded", zap.Int("seat", seat))
		e.ctrl.finish(opponent(seat))
	default:
		e.log.Debug("unknown opcode dropped",
			zap.Int("seat", seat),
			zap.Uint8("opcode", payload[0]))
	}
}

func (e *Engine) SpawnController(players int, soloVsBot bool) game.Controller {
	c := &Controller{eng: e, players: players, soloVsBot: soloVsBot}
	e.ctrl = c
	return c
}

// DrainDueTimers runs every deferred work item whose delay has elapsed.
// Due items may arm new timers; those keep their place in the queue.
func (e *Engine) DrainDueTimers() {
	now := time.Now()
	var due []func()
	remaining := e.timers[:0]
	for _, t := range e.timers {
		if t.due.After(now) {
			remaining = append(remaining, t)
		} else {
			due = append(due, t.fn)
		}
	}
	e.timers = remaining
	for _, fn := range due {
		fn()
	}
}

// scheduleAfter queues deferred work and asks the session for a wake-up.
func (e *Engine) scheduleAfter(d time.Duration, fn func()) {
	e.timers = append(e.timers, timerEntry{due: time.Now().Add(d), fn: fn})
	if e.schedule != nil {
		e.schedule(d)
	}
}

func (e *Engine) strike(attacker int) {
	target, ok := e.seats[opponent(attacker)]
	if !ok {
		return
	}
	dmg := e.cfg.StrikeDamage
	if target.guard {
		dmg /= 2
		target.guard = false
	}
	target.hp -= dmg
	if target.hp < 0 {
		target.hp = 0
	}
	e.emitFrames()
	if target.hp == 0 {
		e.ctrl.finish(attacker)
	}
}

// emitFrames pushes the current state to every seat with a sink.
func (e *Engine) emitFrames() {
	frame := []byte{FrameState, byte(e.seatHP(1)), byte(e.seatHP(2))}
	for _, st := range e.seats {
		if st.out != nil {
			st.out(frame)
		}
	}
}

func (e *Engine) seatHP(seat int) int {
	if st, ok := e.seats[seat]; ok {
		return st.hp
	}
	return 0
}

func opponent(seat int) int {
	if seat == 1 {
		return 2
	}
	return 1
}
