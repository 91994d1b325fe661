package zone

import (
	"go.uber.org/zap"

	"github.com/duelgrid/backend/internal/game"
)

// Controller drives one duel: it resets the seats, arms the round limit
// timer, runs the bot in solo mode, and reports when the match stops.
type Controller struct {
	eng       *Engine
	players   int
	soloVsBot bool

	started  bool
	stopped  bool
	onChange func(game.ControllerState)
	result   game.Result
}

func (c *Controller) Start(onChange func(game.ControllerState)) {
	if c.started {
		return
	}
	c.started = true
	c.onChange = onChange

	for _, st := range c.eng.seats {
		st.hp = c.eng.cfg.StartHP
		st.guard = false
	}
	if c.soloVsBot && c.players == 1 {
		// The bot fights from the virtual second seat; it has no sink,
		// so its frames drop.
		c.eng.ensureSeat(2)
	}
	c.eng.emitFrames()

	c.eng.scheduleAfter(c.eng.cfg.RoundLimit, c.roundTimeout)
	if c.soloVsBot && c.players == 1 {
		c.eng.scheduleAfter(c.eng.cfg.BotInterval, c.botTurn)
	}

	if c.onChange != nil {
		c.onChange(game.ControllerRunning)
	}
}

// Stop halts the match. Called by the session on abort, or internally
// via finish when the duel resolves.
func (c *Controller) Stop() {
	if !c.running() {
		return
	}
	c.stopped = true
	if c.onChange != nil {
		c.onChange(game.ControllerStopped)
	}
}

func (c *Controller) Result() game.Result {
	return c.result
}

func (c *Controller) running() bool {
	return c.started && !c.stopped
}

func (c *Controller) finish(winnerSeat int) {
	if !c.running() {
		return
	}
	c.result = game.Result{WinnerSeat: winnerSeat}
	c.eng.log.Debug("duel resolved", zap.Int("winnerSeat", winnerSeat))
	c.Stop()
}

func (c *Controller) botTurn() {
	if !c.running() {
		return
	}
	c.eng.strike(2)
	if c.running() {
		c.eng.scheduleAfter(c.eng.cfg.BotInterval, c.botTurn)
	}
}

// roundTimeout resolves the duel on the clock: more hit points wins,
// dead even is a draw (winner seat zero).
func (c *Controller) roundTimeout() {
	if !c.running() {
		return
	}
	hp1, hp2 := c.eng.seatHP(1), c.eng.seatHP(2)
	switch {
	case hp1 > hp2:
		c.finish(1)
	case hp2 > hp1:
		c.finish(2)
	default:
		c.finish(0)
	}
}
