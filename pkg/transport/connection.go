package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// ConnectionState is the lifecycle state of a client connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateClosing
)

var stateNames = [...]string{
	StateDisconnected: "DISCONNECTED",
	StateConnecting:   "CONNECTING",
	StateConnected:    "CONNECTED",
	StateClosing:      "CLOSING",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrCloseTimeout     = errors.New("close timeout")
)

const defaultCloseTimeout = 2 * time.Second

// ConnectionConfig configures a client connection.
type ConnectionConfig struct {
	// MaxMessageSize defaults to DefaultMaxMessageSize.
	MaxMessageSize uint32

	// A zero PingInterval disables keep-alive.
	KeepAlive KeepAliveConfig

	// CloseTimeout bounds the close handshake (default 2s).
	CloseTimeout time.Duration

	// WriteTimeout bounds each write. Zero means none.
	WriteTimeout time.Duration

	// Logger receives a transport event per frame.
	Logger log.Logger
}

// DefaultConnectionConfig returns the default connection configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxMessageSize: DefaultMaxMessageSize,
		KeepAlive:      DefaultKeepAliveConfig(),
		CloseTimeout:   defaultCloseTimeout,
	}
}

// ConnectionHandler receives what a Connection reads.
type ConnectionHandler interface {
	OnMessage(msg []byte)
	OnStateChange(oldState, newState ConnectionState)
	OnError(err error)
}

// Connection is a client's link to one daemon. Control frames (ping, pong,
// close) are handled here; everything else goes to the handler.
type Connection struct {
	config  ConnectionConfig
	handler ConnectionHandler

	state atomic.Int32

	mu        sync.RWMutex
	conn      net.Conn
	framer    *Framer
	keepAlive *KeepAlive
	cancel    context.CancelFunc

	closeOnce sync.Once
	readDone  chan struct{}
}

// NewConnection returns a disconnected Connection.
func NewConnection(config ConnectionConfig, handler ConnectionHandler) *Connection {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.CloseTimeout == 0 {
		config.CloseTimeout = defaultCloseTimeout
	}
	return &Connection{config: config, handler: handler}
}

func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// transition moves to next, notifying the handler. It fails when the
// connection is not in from.
func (c *Connection) transition(from, next ConnectionState) bool {
	if !c.state.CompareAndSwap(int32(from), int32(next)) {
		return false
	}
	if c.handler != nil {
		c.handler.OnStateChange(from, next)
	}
	return true
}

// Connect dials address and starts reading.
func (c *Connection) Connect(ctx context.Context, address string) error {
	if !c.transition(StateDisconnected, StateConnecting) {
		return ErrAlreadyConnected
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		c.transition(StateConnecting, StateDisconnected)
		return fmt.Errorf("dial failed: %w", err)
	}

	framer := NewFramerWithMaxSize(conn, c.config.MaxMessageSize)
	if c.config.Logger != nil {
		framer.SetLogger(c.config.Logger, conn.LocalAddr().String())
	}
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.framer = framer
	c.cancel = cancel
	c.readDone = make(chan struct{})
	if c.config.KeepAlive.PingInterval > 0 {
		c.keepAlive = NewKeepAlive(c.config.KeepAlive,
			func(seq uint32) error { return c.SendControlMessage(wire.ControlPing, seq) },
			func() {
				c.handler.OnError(errors.New("keep-alive timeout"))
				c.ForceClose()
			})
	}
	ka := c.keepAlive
	c.mu.Unlock()

	c.transition(StateConnecting, StateConnected)
	if ka != nil {
		ka.Start(runCtx)
	}
	go c.readLoop(runCtx, framer)
	return nil
}

// Send writes one message frame.
func (c *Connection) Send(data []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.write(data)
}

// SendControlMessage writes a ping, pong or close frame.
func (c *Connection) SendControlMessage(t wire.ControlMessageType, seq uint32) error {
	data, err := encodeControl(t, seq)
	if err != nil {
		return fmt.Errorf("failed to encode control message: %w", err)
	}
	return c.write(data)
}

func (c *Connection) write(data []byte) error {
	c.mu.RLock()
	conn, framer := c.conn, c.framer
	c.mu.RUnlock()
	if framer == nil {
		return ErrNotConnected
	}

	if c.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return framer.WriteFrame(data)
}

// Close runs the close handshake, waiting up to the configured timeout for
// the daemon to acknowledge.
func (c *Connection) Close() error {
	return c.CloseWithTimeout(c.config.CloseTimeout)
}

// CloseWithTimeout is Close with an explicit handshake timeout.
func (c *Connection) CloseWithTimeout(timeout time.Duration) error {
	var err error
	c.closeOnce.Do(func() {
		if !c.transition(StateConnected, StateClosing) {
			c.teardown()
			return
		}

		_ = c.SendControlMessage(wire.ControlClose, 0)

		c.mu.RLock()
		done := c.readDone
		c.mu.RUnlock()
		select {
		case <-done:
		case <-time.After(timeout):
			err = ErrCloseTimeout
		}

		c.teardown()
		c.transition(StateClosing, StateDisconnected)
	})
	return err
}

// ForceClose drops the connection without a handshake.
func (c *Connection) ForceClose() {
	c.closeOnce.Do(func() {
		prev := c.State()
		c.teardown()
		if prev != StateDisconnected {
			c.transition(prev, StateDisconnected)
		}
	})
}

func (c *Connection) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keepAlive != nil {
		c.keepAlive.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Connection) LocalAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *Connection) RemoteAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

func (c *Connection) readLoop(ctx context.Context, framer *Framer) {
	defer close(c.readDone)

	for {
		data, err := framer.ReadFrame()
		if err != nil {
			if c.State() == StateClosing || ctx.Err() != nil {
				return
			}
			c.handler.OnError(fmt.Errorf("read error: %w", err))
			go c.ForceClose()
			return
		}

		if t, err := wire.PeekMessageType(data); err == nil && t == wire.MessageTypeControl {
			msg, err := wire.DecodeControlMessage(data)
			if err == nil {
				if c.control(msg) {
					return
				}
				continue
			}
		}
		c.handler.OnMessage(data)
	}
}

// control handles a control frame and reports whether reading should stop.
func (c *Connection) control(msg *wire.ControlMessage) bool {
	switch msg.Type {
	case wire.ControlPing:
		_ = c.SendControlMessage(wire.ControlPong, msg.Sequence)
	case wire.ControlPong:
		c.mu.RLock()
		ka := c.keepAlive
		c.mu.RUnlock()
		if ka != nil {
			ka.PongReceived(msg.Sequence)
		}
	case wire.ControlClose:
		if c.State() == StateClosing {
			return true
		}
		// The daemon is going away: acknowledge and drop.
		_ = c.SendControlMessage(wire.ControlClose, 0)
		go c.ForceClose()
		return true
	}
	return false
}
