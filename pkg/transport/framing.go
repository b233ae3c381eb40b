package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
)

const (
	// headerSize is the length of the big-endian frame length.
	headerSize = 4

	// DefaultMaxMessageSize bounds a single message. A get_measured
	// response carries a whole spectrum, so this is generous.
	DefaultMaxMessageSize = 16 << 20

	// maxLoggedFrame is how much of a frame goes into a protocol log event.
	maxLoggedFrame = 4096
)

var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// Framer reads and writes length-prefixed messages on one stream.
// Writes may come from several goroutines; reads must not.
type Framer struct {
	r      *bufio.Reader
	w      io.Writer
	limit  uint32
	header [headerSize]byte

	wmu sync.Mutex

	logger log.Logger
	connID string
}

// NewFramer returns a Framer using DefaultMaxMessageSize.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxMessageSize)
}

// NewFramerWithMaxSize returns a Framer rejecting messages over limit bytes.
// A zero limit means DefaultMaxMessageSize.
func NewFramerWithMaxSize(rw io.ReadWriter, limit uint32) *Framer {
	if limit == 0 {
		limit = DefaultMaxMessageSize
	}
	return &Framer{
		r:     bufio.NewReader(rw),
		w:     rw,
		limit: limit,
	}
}

// SetLogger makes the framer emit a transport-layer event per frame.
// Call it before the first read or write.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.logger = logger
	f.connID = connID
}

func (f *Framer) check(n int) error {
	switch {
	case n == 0:
		return ErrMessageEmpty
	case uint64(n) > uint64(f.limit):
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, f.limit)
	}
	return nil
}

// WriteFrame sends data as one frame.
func (f *Framer) WriteFrame(data []byte) error {
	if err := f.check(len(data)); err != nil {
		return err
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	f.wmu.Lock()
	bufs := net.Buffers{header[:], data}
	_, err := bufs.WriteTo(f.w)
	f.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	f.logFrame(data, log.DirectionOut)
	return nil
}

// ReadFrame returns the next frame's payload. A clean end of stream between
// frames is io.EOF; anywhere else it is ErrFrameTruncated.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.header[:]); err != nil {
		return nil, truncated(err, "length")
	}

	n := binary.BigEndian.Uint32(f.header[:])
	if err := f.check(int(n)); err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		if err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, truncated(err, "payload")
	}

	f.logFrame(payload, log.DirectionIn)
	return payload, nil
}

func truncated(err error, part string) error {
	switch {
	case err == io.EOF:
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return ErrFrameTruncated
	default:
		return fmt.Errorf("failed to read frame %s: %w", part, err)
	}
}

func (f *Framer) logFrame(data []byte, dir log.Direction) {
	if f.logger == nil {
		return
	}
	frame := &log.FrameEvent{Size: headerSize + len(data), Data: data}
	if len(data) > maxLoggedFrame {
		frame.Data = data[:maxLoggedFrame]
		frame.Truncated = true
	}
	f.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        frame,
	})
}
