package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// ServerConfig configures a daemon's listener.
type ServerConfig struct {
	// Address is the TCP listen address, e.g. ":38000" or "127.0.0.1:0".
	Address string

	// Name is the daemon name put on protocol log events.
	Name string

	MaxMessageSize uint32
	Logger         log.Logger

	OnConnect    func(conn *ServerConn)
	OnDisconnect func(conn *ServerConn)

	// OnMessage receives every non-control frame. Frames of one connection
	// arrive in order on that connection's goroutine.
	OnMessage func(conn *ServerConn, msg []byte)

	// OnError reports accept failures (conn is nil) and broken reads.
	OnError func(conn *ServerConn, err error)
}

// Server accepts client connections for one daemon.
type Server struct {
	config ServerConfig

	listener net.Listener
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*ServerConn]struct{}
}

func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		return nil, errors.New("address is required")
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Server{config: config, conns: make(map[*ServerConn]struct{})}, nil
}

// Start listens and serves until Stop or ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	var lc net.ListenConfig
	ln, err := lc.Listen(s.ctx, "tcp", s.config.Address)
	if err != nil {
		s.cancel()
		s.running.Store(false)
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.accept()
	return nil
}

// Stop closes the listener and every connection, and waits for their
// goroutines.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	_ = s.listener.Close()

	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) accept() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !s.running.Load() {
				return
			}
			if s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()

	c := &ServerConn{
		server: s,
		conn:   conn,
		framer: NewFramerWithMaxSize(conn, s.config.MaxMessageSize),
		id:     uuid.NewString(),
	}
	if s.config.Logger != nil {
		c.framer.SetLogger(s.config.Logger, c.id)
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	c.logState("", "CONNECTED")
	if s.config.OnConnect != nil {
		s.config.OnConnect(c)
	}

	c.read()

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.Close()
	c.logState("CONNECTED", "DISCONNECTED")
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(c)
	}
}

// ServerConn is the daemon side of one client connection.
type ServerConn struct {
	server *Server
	conn   net.Conn
	framer *Framer
	id     string
	closed atomic.Bool
}

func (c *ServerConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// ConnID is a random identifier used to correlate log events.
func (c *ServerConn) ConnID() string { return c.id }

// Send writes one frame to the client.
func (c *ServerConn) Send(data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.framer.WriteFrame(data)
}

func (c *ServerConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

func (c *ServerConn) read() {
	for !c.closed.Load() && c.server.ctx.Err() == nil {
		data, err := c.framer.ReadFrame()
		if err != nil {
			if !c.closed.Load() && c.server.running.Load() && !isClosedErr(err) && c.server.config.OnError != nil {
				c.server.config.OnError(c, err)
			}
			return
		}

		if t, err := wire.PeekMessageType(data); err == nil && t == wire.MessageTypeControl {
			if msg, err := wire.DecodeControlMessage(data); err == nil {
				c.control(msg)
				continue
			}
		}
		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, data)
		}
	}
}

// control answers pings and close requests. Keep-alive is client driven,
// so a pong needs nothing.
func (c *ServerConn) control(msg *wire.ControlMessage) {
	c.logControl(msg.Type, msg.Sequence, log.DirectionIn)

	switch msg.Type {
	case wire.ControlPing:
		c.reply(wire.ControlPong, msg.Sequence)
	case wire.ControlClose:
		c.reply(wire.ControlClose, 0)
		_ = c.Close()
	}
}

func (c *ServerConn) reply(t wire.ControlMessageType, seq uint32) {
	data, err := encodeControl(t, seq)
	if err != nil {
		return
	}
	if c.Send(data) == nil {
		c.logControl(t, seq, log.DirectionOut)
	}
}

func (c *ServerConn) event() log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		RemoteAddr:   c.conn.RemoteAddr().String(),
		DaemonName:   c.server.config.Name,
	}
}

func (c *ServerConn) logState(from, to string) {
	if c.server.config.Logger == nil {
		return
	}
	ev := c.event()
	ev.Category = log.CategoryState
	ev.StateChange = &log.StateChangeEvent{Entity: log.StateEntityConnection, OldState: from, NewState: to}
	c.server.config.Logger.Log(ev)
}

func (c *ServerConn) logControl(t wire.ControlMessageType, seq uint32, dir log.Direction) {
	if c.server.config.Logger == nil {
		return
	}
	ev := c.event()
	ev.Direction = dir
	ev.Category = log.CategoryControl
	ev.ControlMsg = &log.ControlMsgEvent{Type: log.ControlMsgTypeFromWire(t), Sequence: seq}
	c.server.config.Logger.Log(ev)
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, ErrFrameTruncated) || errors.Is(err, io.EOF)
}

func encodeControl(t wire.ControlMessageType, seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Type: t, Sequence: seq})
}

// EncodePing encodes a ping control frame.
func EncodePing(seq uint32) ([]byte, error) { return encodeControl(wire.ControlPing, seq) }

// EncodePong encodes a pong control frame.
func EncodePong(seq uint32) ([]byte, error) { return encodeControl(wire.ControlPong, seq) }

// EncodeClose encodes a close control frame.
func EncodeClose() ([]byte, error) { return encodeControl(wire.ControlClose, 0) }
