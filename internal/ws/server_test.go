package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duelgrid/backend/internal/config"
	"github.com/duelgrid/backend/internal/game"
	"github.com/duelgrid/backend/internal/zone"
)

func testServerConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{},
		Session: config.SessionConfig{SendBuffer: 16},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *game.Manager) {
	t.Helper()
	zcfg := zone.Config{
		StartHP:      4,
		StrikeDamage: 2,
		RoundLimit:   time.Minute,
		BotInterval:  time.Minute,
	}
	manager := game.NewManager(zone.Factory(zcfg, zap.NewNop()), zap.NewNop())
	t.Cleanup(manager.Close)

	srv := NewServer(testServerConfig(), manager, zap.NewNop())
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, manager
}

func createSession(t *testing.T, ts *httptest.Server, withBot bool) game.Snapshot {
	t.Helper()
	body := `{"withBot":false}`
	if withBot {
		body = `{"withBot":true}`
	}
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.NotEmpty(t, snap.ID)
	return snap
}

type testMsg struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// wsClient wraps a dialed connection and buffers messages consumed while
// scanning, since server pushes (welcome, events, frames) have no fixed
// relative order on the wire.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	buf  []testMsg
}

func dialWS(t *testing.T, ts *httptest.Server, sessionID, user, name string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/ws?session=" + sessionID + "&user=" + user + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) read() testMsg {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var msg testMsg
	require.NoError(c.t, json.Unmarshal(data, &msg))
	return msg
}

// await returns the first buffered or incoming message satisfying match;
// everything scanned past stays buffered for later awaits.
func (c *wsClient) await(match func(testMsg) bool) testMsg {
	c.t.Helper()
	for i, msg := range c.buf {
		if match(msg) {
			c.buf = append(c.buf[:i], c.buf[i+1:]...)
			return msg
		}
	}
	for i := 0; i < 20; i++ {
		msg := c.read()
		if match(msg) {
			return msg
		}
		c.buf = append(c.buf, msg)
	}
	c.t.Fatal("expected message never arrived")
	return testMsg{}
}

func (c *wsClient) welcome() WelcomePayload {
	c.t.Helper()
	msg := c.await(func(m testMsg) bool { return m.Type == MsgWelcome })
	var w WelcomePayload
	require.NoError(c.t, json.Unmarshal(msg.Payload, &w))
	return w
}

func (c *wsClient) event(want game.EventType) game.Event {
	c.t.Helper()
	var ev game.Event
	c.await(func(m testMsg) bool {
		if m.Type != MsgEvent {
			return false
		}
		var candidate game.Event
		if err := json.Unmarshal(m.Payload, &candidate); err != nil {
			return false
		}
		if candidate.Type != want {
			return false
		}
		ev = candidate
		return true
	})
	return ev
}

func (c *wsClient) frame(match func(data []byte) bool) FramePayload {
	c.t.Helper()
	var frame FramePayload
	c.await(func(m testMsg) bool {
		if m.Type != MsgFrame {
			return false
		}
		var candidate FramePayload
		if err := json.Unmarshal(m.Payload, &candidate); err != nil {
			return false
		}
		if !match(candidate.Data) {
			return false
		}
		frame = candidate
		return true
	})
	return frame
}

func (c *wsClient) sendInput(data []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(WSMessage{
		Type:    MsgInput,
		Payload: InputPayload{Data: data},
	}))
}

func TestSessionAPI(t *testing.T) {
	ts, manager := newTestServer(t)

	snap := createSession(t, ts, true)
	assert.True(t, snap.WithBot)
	assert.Equal(t, game.Waiting, snap.Phase)
	assert.Equal(t, 1, manager.Count())

	resp, err := http.Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	var snaps []game.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, snap.ID, snaps[0].ID)

	resp, err = http.Get(ts.URL + "/api/sessions/" + snap.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/sessions/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSUnknownSessionRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=nope&user=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSMatchLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createSession(t, ts, false)

	alice := dialWS(t, ts, snap.ID, "alice", "Alice")
	assert.Equal(t, 1, alice.welcome().Seat)

	bob := dialWS(t, ts, snap.ID, "bob", "Bob")
	assert.Equal(t, 2, bob.welcome().Seat)

	joined := alice.event(game.EventPlayerJoined)
	assert.Equal(t, "bob", joined.UserID)
	assert.Equal(t, 2, joined.Seat)
	alice.event(game.EventMatchBegin)
	bob.event(game.EventMatchBegin)

	// Two full strikes from seat 1 finish the 4 HP duel.
	alice.sendInput([]byte{zone.OpStrike})
	alice.sendInput([]byte{zone.OpStrike})

	ended := alice.event(game.EventMatchEnded)
	assert.Equal(t, 1, ended.WinnerSeat)
	bob.event(game.EventMatchEnded)
}

func TestWSFramesReachBothSeats(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createSession(t, ts, false)

	alice := dialWS(t, ts, snap.ID, "alice", "Alice")
	alice.welcome()
	bob := dialWS(t, ts, snap.ID, "bob", "Bob")
	bob.welcome()
	bob.event(game.EventMatchBegin)

	alice.sendInput([]byte{zone.OpStrike})

	want := []byte{zone.FrameState, 4, 2}
	hit := func(data []byte) bool { return len(data) == 3 && data[2] == 2 }
	assert.Equal(t, want, bob.frame(hit).Data)
	assert.Equal(t, want, alice.frame(hit).Data)
}

func TestWSThirdClientRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createSession(t, ts, false)

	alice := dialWS(t, ts, snap.ID, "alice", "Alice")
	alice.welcome()
	bob := dialWS(t, ts, snap.ID, "bob", "Bob")
	bob.welcome()

	carol := dialWS(t, ts, snap.ID, "carol", "Carol")
	msg := carol.await(func(m testMsg) bool { return m.Type == MsgError })
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &perr))
	assert.Equal(t, game.ErrSessionFull.Error(), perr.Message)
}

func TestWSReconnectKeepsSeat(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createSession(t, ts, false)

	alice := dialWS(t, ts, snap.ID, "alice", "Alice")
	require.Equal(t, 1, alice.welcome().Seat)
	alice.conn.Close()

	// Reconnect with the same identity: same seat, no second join.
	alice2 := dialWS(t, ts, snap.ID, "alice", "Alice")
	assert.Equal(t, 1, alice2.welcome().Seat)

	bob := dialWS(t, ts, snap.ID, "bob", "Bob")
	bob.welcome()

	joined := alice2.event(game.EventPlayerJoined)
	assert.Equal(t, "bob", joined.UserID)
}

func TestWSLeaveAbortsForOpponent(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createSession(t, ts, false)

	alice := dialWS(t, ts, snap.ID, "alice", "Alice")
	alice.welcome()
	bob := dialWS(t, ts, snap.ID, "bob", "Bob")
	bob.welcome()
	alice.event(game.EventMatchBegin)

	require.NoError(t, bob.conn.WriteJSON(WSMessage{Type: MsgLeave}))

	left := alice.event(game.EventPlayerLeft)
	assert.Equal(t, "bob", left.UserID)
	alice.event(game.EventMatchAborted)
}

func TestAuthorize(t *testing.T) {
	cfg := testServerConfig()
	cfg.Server.AuthToken = "secret"
	srv := NewServer(cfg, nil, zap.NewNop())

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  bool
	}{
		{"NoToken", func(r *http.Request) {}, false},
		{"QueryToken", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", "secret")
			r.URL.RawQuery = q.Encode()
		}, true},
		{"HeaderToken", func(r *http.Request) {
			r.Header.Set("X-Duelgrid-Token", "secret")
		}, true},
		{"BearerToken", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer secret")
		}, true},
		{"WrongToken", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, srv.authorize(r))
		})
	}
}

func TestAuthorizeDisabledWithoutToken(t *testing.T) {
	srv := NewServer(testServerConfig(), nil, zap.NewNop())
	r := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	assert.True(t, srv.authorize(r))
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"NoOriginHeader", nil, "", "example.com", true},
		{"SameHost", nil, "http://example.com", "example.com", true},
		{"Localhost", nil, "http://localhost:3000", "example.com", true},
		{"Loopback", nil, "http://127.0.0.1:3000", "example.com", true},
		{"ForeignHost", nil, "http://evil.example", "example.com", false},
		{"AllowedExact", []string{"https://game.example"}, "https://game.example", "api.example", true},
		{"AllowedHostOnly", []string{"https://game.example"}, "http://game.example", "api.example", true},
		{"NotAllowed", []string{"https://game.example"}, "https://other.example", "api.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testServerConfig()
			cfg.Server.AllowedOrigins = tt.allowed
			srv := NewServer(cfg, nil, zap.NewNop())

			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, srv.checkOrigin(r))
		})
	}
}
