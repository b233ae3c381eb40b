package transport

import (
	"context"
	"net"
)

// Caller sends protocol messages to a daemon. The command line client is
// written against it rather than against *Client.
type Caller interface {
	Call(ctx context.Context, method string, params map[string]any) (any, error)
	Close() error
}

// FrameReadWriter is one end of a framed stream.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

// Listener is what a daemon needs from its server.
type Listener interface {
	Start(ctx context.Context) error
	Stop() error
	Addr() net.Addr
	ConnectionCount() int
}

var (
	_ Caller            = (*Client)(nil)
	_ ConnectionHandler = (*Client)(nil)
	_ FrameReadWriter   = (*Framer)(nil)
	_ Listener          = (*Server)(nil)
)
