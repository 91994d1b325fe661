package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duelgrid/backend/internal/game"
)

// conn wraps one websocket connection with a buffered outbound queue and
// a single writer goroutine. It is the transport behind an observer
// handle: session events and simulation frames are pushed through it,
// and anything the queue cannot absorb is dropped rather than blocking
// the session.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	log  *zap.Logger
	once sync.Once
}

func newConn(wsc *websocket.Conn, buffer int, log *zap.Logger) *conn {
	if buffer < 1 {
		buffer = 64
	}
	c := &conn{
		ws:   wsc,
		send: make(chan []byte, buffer),
		log:  log,
	}
	go c.writePump()
	return c
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() { close(c.send) })
}

func (c *conn) sendMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal outbound message", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Debug("client too slow, message dropped")
	}
}

// SendEvent implements game.Sink.
func (c *conn) SendEvent(ev game.Event) {
	c.sendMessage(WSMessage{Type: MsgEvent, Payload: ev})
}

// SendData implements game.Sink.
func (c *conn) SendData(payload []byte) {
	c.sendMessage(WSMessage{Type: MsgFrame, Payload: FramePayload{Data: payload}})
}

func (c *conn) sendError(msg string) {
	c.sendMessage(WSMessage{Type: MsgError, Payload: ErrorPayload{Message: msg}})
}
