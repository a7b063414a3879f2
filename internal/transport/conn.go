package transport

import (
	"Arcana/internal/event"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection states
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
	StateFailed       State = "failed"
)

var (
	ErrAuthRequired       = errors.New("connect requires a credential")
	ErrNotConnected       = errors.New("transport is not connected")
	ErrReconnectExhausted = errors.New("reconnect attempt budget exhausted")
)

// HandshakeError carries the transport-provided reason for a failed
// connect so it can be surfaced as displayable text.
type HandshakeError struct {
	Reason string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed: %s", e.Reason)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

var (
	// tuning parameters
	writeWait      = 10 * time.Second    // time allowed to write a message to the peer
	pongWait       = 20 * time.Second    // time allowed to read the next pong message from the peer
	pingInterval   = (pongWait * 9) / 10 // send pings to peer with this period
	maxMessageSize = 64 * 1024           // max inbound message size (64KB)
	sendBufSize    = 256                 // outbound buffer size
	sendTimeout    = 2 * time.Second     // timeout for enqueuing outbound messages
)

const (
	DefaultMaxReconnectAttempts  = 10
	DefaultReconnectInitialDelay = time.Second
	DefaultReconnectMaxDelay     = 5 * time.Second
)

// Options configures a Conn.
type Options struct {
	URL        string
	Credential string

	MaxReconnectAttempts  int
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration

	Dialer *websocket.Dialer
}

// Handlers receive transport callbacks. OnEvent runs on the read pump
// goroutine; handlers must not block or they stall the socket.
type Handlers struct {
	// OnEvent is invoked for every inbound frame.
	OnEvent func(event.WsEvent)

	// OnStateChange is invoked exactly once per state transition with a
	// human-readable detail string.
	OnStateChange func(state State, detail string)

	// OnReconnected is invoked after a reconnecting -> connected
	// transition, once stale session state must be re-requested.
	OnReconnected func()
}

// Conn owns one logical persistent connection per authenticated user
// and hides retry/backoff from callers. It is the single writer of
// connection state.
type Conn struct {
	opts     Options
	handlers Handlers
	logger   *zap.Logger

	mu         sync.RWMutex
	state      State
	conn       *websocket.Conn
	egress     chan event.WsEvent
	generation int // bumped per physical socket; stale pumps check it

	ctx    context.Context
	cancel context.CancelFunc
}

// NewConn builds a disconnected Conn. Connect must be called explicitly.
func NewConn(opts Options, handlers Handlers, logger *zap.Logger) *Conn {
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.ReconnectInitialDelay <= 0 {
		opts.ReconnectInitialDelay = DefaultReconnectInitialDelay
	}
	if opts.ReconnectMaxDelay <= 0 {
		opts.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Conn{
		opts:     opts,
		handlers: handlers,
		logger:   logger,
		state:    StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect performs the handshake and starts the pumps. It fails fast
// with ErrAuthRequired when no usable credential is present, and with a
// HandshakeError when the dial fails. A Conn in the failed state can be
// revived only by calling Connect again.
func (c *Conn) Connect(ctx context.Context) error {
	if c.opts.Credential == "" {
		return ErrAuthRequired
	}
	if err := checkCredential(c.opts.Credential); err != nil {
		return err
	}

	c.setState(StateConnecting, "connecting to chat server")

	conn, err := c.dial(ctx)
	if err != nil {
		hErr := &HandshakeError{Reason: err.Error(), Err: err}
		c.setState(StateError, hErr.Reason)
		return hErr
	}

	c.install(conn)
	c.setState(StateConnected, "connected")
	return nil
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opts.Credential)

	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: server rejected credential", ErrAuthRequired)
		}
		return nil, err
	}
	return conn, nil
}

// install swaps in a fresh physical socket and starts its pumps.
func (c *Conn) install(conn *websocket.Conn) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.conn = conn
	c.egress = make(chan event.WsEvent, sendBufSize)
	c.generation++
	gen := c.generation
	ctx := c.ctx
	egress := c.egress
	c.mu.Unlock()

	go c.readPump(conn, gen)
	go c.writePump(ctx, conn, egress)
}

// Send enqueues an event for the peer. It never silently drops: a send
// while not connected returns ErrNotConnected.
func (c *Conn) Send(ev event.WsEvent) error {
	c.mu.RLock()
	state := c.state
	egress := c.egress
	ctx := c.ctx
	c.mu.RUnlock()

	if state != StateConnected || egress == nil {
		return ErrNotConnected
	}

	select {
	case egress <- ev:
		return nil
	case <-ctx.Done():
		return ErrNotConnected
	case <-time.After(sendTimeout):
		return fmt.Errorf("%w: egress full", ErrNotConnected)
	}
}

// Close performs a clean local close and transitions to disconnected.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.conn = nil
	c.egress = nil
	c.generation++ // orphan any live pump
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	c.setState(StateDisconnected, "disconnected")
}

func (c *Conn) readPump(conn *websocket.Conn, gen int) {
	conn.SetReadLimit(int64(maxMessageSize))
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev event.WsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if c.stale(gen) {
				return
			}

			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				c.logger.Info("server closed connection")
				c.teardown(conn)
				c.setState(StateDisconnected, "server closed the connection")
				return
			}

			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.logger.Warn("read timed out, connection considered dropped")
			} else {
				c.logger.Warn("connection dropped", zap.Error(err))
			}

			c.teardown(conn)
			go c.reconnectLoop(gen)
			return
		}

		if c.stale(gen) {
			return
		}
		if c.handlers.OnEvent != nil {
			c.handlers.OnEvent(ev)
		}
	}
}

func (c *Conn) writePump(ctx context.Context, conn *websocket.Conn, egress chan event.WsEvent) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-egress:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				c.logger.Warn("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// stale reports whether gen belongs to a socket that has since been
// replaced or closed.
func (c *Conn) stale(gen int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return gen != c.generation
}

func (c *Conn) teardown(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.egress = nil
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// reconnectLoop retries the handshake with capped exponential backoff.
// It gives up after MaxReconnectAttempts and parks the Conn in the
// terminal failed state until the caller re-invokes Connect.
func (c *Conn) reconnectLoop(gen int) {
	c.setState(StateReconnecting, "connection lost, reconnecting")

	delay := c.opts.ReconnectInitialDelay
	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		time.Sleep(delay)

		// A Close or fresh Connect during the backoff wins.
		c.mu.RLock()
		aborted := gen != c.generation
		c.mu.RUnlock()
		if aborted {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			c.install(conn)
			c.setState(StateConnected, "reconnected")
			if c.handlers.OnReconnected != nil {
				c.handlers.OnReconnected()
			}
			return
		}

		c.logger.Warn("reconnect attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("budget", c.opts.MaxReconnectAttempts),
			zap.Error(err))

		delay *= 2
		if delay > c.opts.ReconnectMaxDelay {
			delay = c.opts.ReconnectMaxDelay
		}
	}

	c.setState(StateFailed, ErrReconnectExhausted.Error())
}

// setState records a transition and emits exactly one status-changed
// notification to the registered handler.
func (c *Conn) setState(state State, detail string) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = state
	c.mu.Unlock()

	c.logger.Info("connection state changed",
		zap.String("from", string(prev)),
		zap.String("to", string(state)))

	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(state, detail)
	}
}
