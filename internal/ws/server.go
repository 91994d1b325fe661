package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duelgrid/backend/internal/config"
	"github.com/duelgrid/backend/internal/game"
)

// Server bridges HTTP/WebSocket clients to match sessions. Each upgraded
// connection becomes the observer channel for one participant: a first
// connection joins the session, a reconnect with the same user tag
// rebinds the existing observer.
type Server struct {
	cfg            *config.Config
	manager        *game.Manager
	log            *zap.Logger
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(cfg *config.Config, manager *game.Manager, log *zap.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		manager:        manager,
		log:            log,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.Server.AuthToken,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	sessionID := q.Get("session")
	userID := q.Get("user")
	userName := q.Get("name")
	if sessionID == "" || userID == "" {
		http.Error(w, "session and user are required", http.StatusBadRequest)
		return
	}
	if userName == "" {
		userName = userID
	}

	sess, ok := s.manager.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	wsc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := newConn(wsc, s.cfg.Session.SendBuffer, s.log)

	var seat int
	if existing, participant := sess.Participant(userID); participant {
		// Reconnect: the seat is kept, missed traffic is not replayed.
		seat = existing
		sess.OnChannelOpen(userID, c)
		s.log.Info("client reattached",
			zap.String("session", sessionID),
			zap.String("user", userID),
			zap.Int("seat", seat))
	} else {
		seat, _, err = sess.Join(userID, userName, c)
		if err != nil {
			c.sendError(err.Error())
			c.close()
			return
		}
		s.log.Info("client joined",
			zap.String("session", sessionID),
			zap.String("user", userID),
			zap.Int("seat", seat))
	}

	c.sendMessage(WSMessage{Type: MsgWelcome, Payload: WelcomePayload{
		Seat:    seat,
		Session: sess.Snapshot(),
	}})

	go s.readLoop(c, sess, userID, seat)
}

func (s *Server) readLoop(c *conn, sess *game.Session, userID string, seat int) {
	defer func() {
		sess.OnChannelClose(userID, c)
		c.close()
		s.log.Info("client disconnected", zap.String("user", userID))
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}

		switch msg.Type {
		case MsgInput:
			var p InputPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				c.sendError("malformed input payload")
				continue
			}
			if err := sess.RouteBytes(seat, p.Data); err != nil {
				c.sendError(err.Error())
			}
		case MsgLeave:
			if err := sess.Leave(userID); err != nil && !errors.Is(err, game.ErrSessionClosed) {
				c.sendError(err.Error())
			}
			return
		default:
			c.sendError("unknown message type")
		}
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.manager.Snapshots())
	case http.MethodPost:
		var req struct {
			WithBot bool `json:"withBot"`
		}
		if r.Body != nil {
			// An empty body means defaults.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		sess := s.manager.Create(game.Config{WithBot: req.WithBot})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sess.Snapshot())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sess, ok := s.manager.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.Snapshot())
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Duelgrid-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}
