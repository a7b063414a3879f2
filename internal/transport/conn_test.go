package transport

import (
	"Arcana/internal/event"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wsServer is a minimal event-stream peer for exercising the Conn.
type wsServer struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu          sync.Mutex
	conns       []*websocket.Conn
	authHeaders []string
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
		s.mu.Unlock()

		// Discard inbound frames; tests push outbound ones directly.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(s.Server.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

func (s *wsServer) latestConn(t *testing.T) *websocket.Conn {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	return s.conns[len(s.conns)-1]
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// stateRecorder collects every transition for assertions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(state State, detail string) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

func testOptions(url string) Options {
	return Options{
		URL:                   url,
		Credential:            "test-token",
		MaxReconnectAttempts:  3,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     20 * time.Millisecond,
	}
}

func TestConnectRequiresCredential(t *testing.T) {
	opts := testOptions("ws://localhost:0")
	opts.Credential = ""
	conn := NewConn(opts, Handlers{}, zap.NewNop())

	err := conn.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, StateDisconnected, conn.State())
}

func TestConnectRejectsExpiredJWT(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "local-user",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	credential, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	opts := testOptions("ws://localhost:0")
	opts.Credential = credential
	conn := NewConn(opts, Handlers{}, zap.NewNop())

	assert.ErrorIs(t, conn.Connect(context.Background()), ErrAuthRequired)
}

func TestConnectHandshakeSuccess(t *testing.T) {
	server := newWSServer(t)
	recorder := &stateRecorder{}
	conn := NewConn(testOptions(server.url()), Handlers{OnStateChange: recorder.record}, zap.NewNop())
	defer conn.Close()

	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, StateConnected, conn.State())
	assert.Equal(t, []State{StateConnecting, StateConnected}, recorder.snapshot())

	server.mu.Lock()
	auth := server.authHeaders[0]
	server.mu.Unlock()
	assert.Equal(t, "Bearer test-token", auth)
}

func TestConnectHandshakeFailure(t *testing.T) {
	recorder := &stateRecorder{}
	opts := testOptions("ws://127.0.0.1:1") // nothing listens here
	conn := NewConn(opts, Handlers{OnStateChange: recorder.record}, zap.NewNop())

	err := conn.Connect(context.Background())
	var hErr *HandshakeError
	require.ErrorAs(t, err, &hErr)
	assert.NotEmpty(t, hErr.Reason)
	assert.Equal(t, StateError, conn.State())
}

func TestSendWhileNotConnected(t *testing.T) {
	conn := NewConn(testOptions("ws://localhost:0"), Handlers{}, zap.NewNop())

	err := conn.Send(event.WsEvent{Event: event.EventNewMessage})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestInboundEventsReachHandler(t *testing.T) {
	server := newWSServer(t)

	received := make(chan event.WsEvent, 1)
	conn := NewConn(testOptions(server.url()), Handlers{
		OnEvent: func(ev event.WsEvent) { received <- ev },
	}, zap.NewNop())
	defer conn.Close()

	require.NoError(t, conn.Connect(context.Background()))

	peer := server.latestConn(t)
	require.NoError(t, peer.WriteJSON(event.WsEvent{Event: event.EventUserJoined}))

	select {
	case ev := <-received:
		assert.Equal(t, event.EventUserJoined, ev.Event)
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestUnexpectedDropTriggersReconnect(t *testing.T) {
	server := newWSServer(t)
	recorder := &stateRecorder{}

	reconnected := make(chan struct{}, 1)
	conn := NewConn(testOptions(server.url()), Handlers{
		OnStateChange: recorder.record,
		OnReconnected: func() { reconnected <- struct{}{} },
	}, zap.NewNop())
	defer conn.Close()

	require.NoError(t, conn.Connect(context.Background()))

	// Abrupt close, no close frame: the client must treat this as a
	// drop and re-handshake.
	_ = server.latestConn(t).UnderlyingConn().Close()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("never reconnected")
	}

	assert.Equal(t, StateConnected, conn.State())
	assert.GreaterOrEqual(t, server.connCount(), 2)

	states := recorder.snapshot()
	assert.Contains(t, states, StateReconnecting)
	assert.Equal(t, StateConnected, states[len(states)-1])
}

func TestReconnectBudgetExhaustionIsTerminal(t *testing.T) {
	server := newWSServer(t)
	recorder := &stateRecorder{}
	conn := NewConn(testOptions(server.url()), Handlers{OnStateChange: recorder.record}, zap.NewNop())

	require.NoError(t, conn.Connect(context.Background()))

	// Kill the server entirely so every reconnect attempt fails.
	// CloseClientConnections does not reach hijacked (upgraded)
	// sockets, so sever the tracked websocket conns directly too.
	server.Server.CloseClientConnections()
	server.Server.Close()
	server.mu.Lock()
	for _, wc := range server.conns {
		_ = wc.UnderlyingConn().Close()
	}
	server.mu.Unlock()

	require.Eventually(t, func() bool {
		return conn.State() == StateFailed
	}, 3*time.Second, 10*time.Millisecond)

	// Terminal: no further automatic attempts.
	attempts := server.connCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateFailed, conn.State())
	assert.Equal(t, attempts, server.connCount())
}

func TestCleanServerCloseGoesDisconnected(t *testing.T) {
	server := newWSServer(t)
	conn := NewConn(testOptions(server.url()), Handlers{}, zap.NewNop())

	require.NoError(t, conn.Connect(context.Background()))

	peer := server.latestConn(t)
	_ = peer.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))

	require.Eventually(t, func() bool {
		return conn.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendRoundTrip(t *testing.T) {
	server := newWSServer(t)
	conn := NewConn(testOptions(server.url()), Handlers{}, zap.NewNop())
	defer conn.Close()

	require.NoError(t, conn.Connect(context.Background()))
	require.NoError(t, conn.Send(event.WsEvent{Event: event.EventTypingStart}))
}
