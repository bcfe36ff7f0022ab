// Package ws provides the websocket client used for the user-data stream.
// It is a single-stream client: one connection, one message handler, with
// automatic reconnection and keepalive.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// Config holds configuration options for a websocket client.
type Config struct {
	// URL is the websocket endpoint to connect to.
	URL string
	// ReconnectEnabled determines whether automatic reconnection is enabled.
	ReconnectEnabled bool
	// ReconnectBaseWait is the wait before the first reconnection attempt.
	ReconnectBaseWait time.Duration
	// ReconnectMaxWait caps the exponential backoff between attempts.
	ReconnectMaxWait time.Duration
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// PongWait is how long to wait for a pong before the connection is dead.
	PongWait time.Duration
}

// Handler receives every raw message delivered on the stream.
type Handler func(data []byte)

// Client manages a websocket connection with reconnection support.
type Client struct {
	config  Config
	state   connState
	handler Handler
	logger  zerolog.Logger

	mu                sync.Mutex
	conn              *gws.Conn
	connectedChan     chan struct{}
	stopChan          chan struct{}
	wg                sync.WaitGroup
	reconnectAttempts int
}

type eventHandler struct {
	client *Client
}

// NewClient creates a websocket client. Zero-valued config fields get defaults.
func NewClient(config Config, handler Handler) *Client {
	if config.ReconnectBaseWait == 0 {
		config.ReconnectBaseWait = 1 * time.Second
	}
	if config.ReconnectMaxWait == 0 {
		config.ReconnectMaxWait = 30 * time.Second
	}
	if config.PingInterval == 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.PongWait == 0 {
		config.PongWait = 60 * time.Second
	}

	c := &Client{
		config:        config,
		handler:       handler,
		connectedChan: make(chan struct{}),
		stopChan:      make(chan struct{}),
		logger:        zerolog.Nop(),
	}
	return c
}

// SetLogger configures the logger for the websocket client.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.client.state.store(StateConnected)

	h.client.mu.Lock()
	h.client.reconnectAttempts = 0
	select {
	case <-h.client.connectedChan:
	default:
		close(h.client.connectedChan)
	}
	h.client.mu.Unlock()

	h.client.logger.Info().
		Str("url", h.client.config.URL).
		Msg("websocket connected")

	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	h.client.state.store(StateDisconnected)

	h.client.mu.Lock()
	h.client.connectedChan = make(chan struct{})
	h.client.mu.Unlock()

	h.client.logger.Warn().
		Err(err).
		Str("url", h.client.config.URL).
		Msg("websocket disconnected")

	if h.client.config.ReconnectEnabled {
		select {
		case <-h.client.stopChan:
			return
		default:
			go h.client.attemptReconnect()
		}
	}
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
	_ = socket.WritePong(nil)
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	data := message.Bytes()
	if len(data) == 0 {
		return
	}

	if h.client.handler != nil {
		// The handler gets its own copy: gws reuses the message buffer.
		copied := make([]byte, len(data))
		copy(copied, data)
		h.client.handler(copied)
	}
}

// Connect establishes the websocket connection. It blocks until the
// connection is open, the context expires, or the client is closed.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.transition(StateDisconnected, StateConnecting) {
		current := c.state.load()
		if current == StateConnected {
			return nil
		}
		return fmt.Errorf("invalid state for connect: %s", current)
	}

	socket, _, err := gws.NewClient(&eventHandler{client: c}, &gws.ClientOption{
		Addr: c.config.URL,
	})
	if err != nil {
		c.state.store(StateDisconnected)
		return fmt.Errorf("connect websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = socket
	connected := c.connectedChan
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		socket.ReadLoop()
	}()

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		_ = socket.NetConn().Close()
		c.state.store(StateDisconnected)
		return ctx.Err()
	case <-c.stopChan:
		_ = socket.NetConn().Close()
		c.state.store(StateClosed)
		return fmt.Errorf("client stopped")
	}
}

// Close shuts down the websocket client and releases its resources.
func (c *Client) Close() error {
	if !c.state.shutdown() {
		return nil
	}

	close(c.stopChan)

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.NetConn().Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.state.load()
}

// IsConnected returns true if the websocket has an active connection.
func (c *Client) IsConnected() bool {
	return c.state.load() == StateConnected
}

// SendPing sends a ping frame to keep the connection alive.
func (c *Client) SendPing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state.load() != StateConnected {
		return fmt.Errorf("websocket not connected")
	}
	return c.conn.WritePing(nil)
}

func (c *Client) attemptReconnect() {
	if !c.state.transition(StateDisconnected, StateReconnecting) {
		return
	}

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		c.mu.Lock()
		attempts := c.reconnectAttempts
		c.reconnectAttempts++
		c.mu.Unlock()

		wait := min(c.config.ReconnectBaseWait*time.Duration(1<<uint(attempts)), c.config.ReconnectMaxWait)
		c.logger.Info().
			Dur("wait", wait).
			Int("attempt", attempts+1).
			Msg("attempting reconnect")

		select {
		case <-time.After(wait):
		case <-c.stopChan:
			return
		}

		c.state.store(StateDisconnected)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err != nil {
			c.logger.Error().Err(err).
				Int("attempt", attempts+1).
				Msg("reconnect failed")
			c.state.store(StateReconnecting)
			continue
		}

		c.logger.Info().Msg("reconnected")
		return
	}
}
