package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// ClientConfig configures an RPC client.
type ClientConfig struct {
	// MaxMessageSize is the maximum message size (default: 16 MiB).
	MaxMessageSize uint32

	// ConnectTimeout is the connection timeout (default: 10s).
	ConnectTimeout time.Duration

	// KeepAlive configuration. A zero PingInterval disables keep-alive.
	KeepAlive KeepAliveConfig

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client calls messages on a daemon over one connection. Calls may be
// issued concurrently; responses are matched by message ID.
type Client struct {
	config ClientConfig
	conn   *Connection

	nextID  atomic.Uint32
	mu      sync.Mutex
	pending map[uint32]chan *wire.Response
	err     error
}

// Dial connects to the daemon at address.
func Dial(ctx context.Context, address string, config ClientConfig) (*Client, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	c := &Client{
		config:  config,
		pending: make(map[uint32]chan *wire.Response),
	}
	c.conn = NewConnection(ConnectionConfig{
		MaxMessageSize: config.MaxMessageSize,
		KeepAlive:      config.KeepAlive,
		Logger:         config.Logger,
	}, c)

	if err := c.conn.Connect(ctx, address); err != nil {
		return nil, err
	}

	return c, nil
}

// Call sends a request and waits for the matching response. An error
// response is returned as a *wire.ResponseError.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	id := c.nextID.Add(1)
	if id == wire.ControlMessageID {
		id = c.nextID.Add(1)
	}

	data, err := wire.EncodeRequest(&wire.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	ch := make(chan *wire.Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	start := time.Now()
	c.logMessage(log.DirectionOut, &log.MessageEvent{
		Type:      log.MessageTypeRequest,
		MessageID: id,
		Method:    method,
		Payload:   params,
	})

	if err := c.conn.Send(data); err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrConnectionClosed
		}
		elapsed := time.Since(start)
		status := resp.Status
		c.logMessage(log.DirectionIn, &log.MessageEvent{
			Type:           log.MessageTypeResponse,
			MessageID:      id,
			Status:         &status,
			ProcessingTime: &elapsed,
		})
		if err := resp.Err(); err != nil {
			return nil, err
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the daemon address.
func (c *Client) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// OnMessage implements ConnectionHandler.
func (c *Client) OnMessage(msg []byte) {
	resp, err := wire.DecodeResponse(msg)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.pending[resp.ID]; ok {
		delete(c.pending, resp.ID)
		ch <- resp // buffered, one response per ID
	}
}

// OnStateChange implements ConnectionHandler.
func (c *Client) OnStateChange(_, newState ConnectionState) {
	if newState != StateDisconnected {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = ErrConnectionClosed
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// OnError implements ConnectionHandler.
func (c *Client) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
}

func (c *Client) logMessage(dir log.Direction, msg *log.MessageEvent) {
	if c.config.Logger == nil {
		return
	}
	var connID string
	if addr := c.conn.LocalAddr(); addr != nil {
		connID = addr.String()
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleClient,
		RemoteAddr:   c.RemoteAddr(),
		Message:      msg,
	})
}
