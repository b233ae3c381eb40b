package log

import (
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// Event is one protocol log record. Exactly one of the payload pointers is
// set. Keys are small integers so a long capture stays compact.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID is the server's UUID for the connection, or the client's
	// local address. Empty for device events.
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`
	LocalRole    Role      `cbor:"6,keyasint,omitempty"`
	RemoteAddr   string    `cbor:"7,keyasint,omitempty"`

	// DaemonName is the configured daemon name, e.g. "qmini".
	DaemonName string `cbor:"8,keyasint,omitempty"`

	// DaemonKind is the protocol name, e.g. "rgb-qmini".
	DaemonKind string `cbor:"9,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/daemon state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Ping/pong/close
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
	Device      *DeviceEvent      `cbor:"15,keyasint,omitempty"` // Spectrometer commands
}

// enumName returns names[i], or "UNKNOWN" when i is out of range.
func enumName[T ~uint8](names []string, i T) string {
	if int(i) >= len(names) {
		return "UNKNOWN"
	}
	return names[i]
}

// Direction is the flow of a frame or message relative to the local end.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = []string{"IN", "OUT"}

func (d Direction) String() string { return enumName(directionNames, d) }

// Layer is where an event was captured. LayerDevice sits below the driver,
// on the spectrometer's USB command channel.
type Layer uint8

const (
	LayerTransport Layer = iota
	LayerWire
	LayerService
	LayerDevice
)

var layerNames = []string{"TRANSPORT", "WIRE", "SERVICE", "DEVICE"}

func (l Layer) String() string { return enumName(layerNames, l) }

type Category uint8

const (
	CategoryMessage Category = iota
	CategoryControl
	CategoryState
	CategoryError
	CategoryDevice
)

var categoryNames = []string{"MESSAGE", "CONTROL", "STATE", "ERROR", "DEVICE"}

func (c Category) String() string { return enumName(categoryNames, c) }

// Role tells whether a daemon or a client wrote the event.
type Role uint8

const (
	RoleDaemon Role = iota
	RoleClient
)

var roleNames = []string{"DAEMON", "CLIENT"}

func (r Role) String() string { return enumName(roleNames, r) }

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded protocol message at the wire layer.
type MessageEvent struct {
	// Type distinguishes request/response.
	Type MessageType `cbor:"1,keyasint"`

	// MessageID correlates request/response pairs.
	MessageID uint32 `cbor:"2,keyasint"`

	// For requests: the message name being called.
	Method string `cbor:"3,keyasint,omitempty"`

	// For responses: the status code.
	Status *wire.Status `cbor:"4,keyasint,omitempty"`

	// Decoded params or result (CBOR-compatible representation).
	Payload any `cbor:"5,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response send (response only).
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"6,keyasint,omitempty"`
}

type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
)

var messageTypeNames = []string{"REQUEST", "RESPONSE"}

func (m MessageType) String() string { return enumName(messageTypeNames, m) }

// StateChangeEvent captures connection and daemon lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity is what a StateChangeEvent describes.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntityDaemon
	StateEntityMeasurement
)

var stateEntityNames = []string{"CONNECTION", "DAEMON", "MEASUREMENT"}

func (s StateEntity) String() string { return enumName(stateEntityNames, s) }

// ControlMsgEvent captures transport-level control messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Sequence is the ping/pong sequence number.
	Sequence uint32 `cbor:"2,keyasint,omitempty"`
}

type ControlMsgType uint8

const (
	ControlMsgPing ControlMsgType = iota
	ControlMsgPong
	ControlMsgClose
)

var controlMsgNames = []string{"PING", "PONG", "CLOSE"}

func (c ControlMsgType) String() string { return enumName(controlMsgNames, c) }

// ControlMsgTypeFromWire maps a wire control type to its log form.
func ControlMsgTypeFromWire(t wire.ControlMessageType) ControlMsgType {
	switch t {
	case wire.ControlPing:
		return ControlMsgPing
	case wire.ControlPong:
		return ControlMsgPong
	default:
		return ControlMsgClose
	}
}

// DeviceEvent captures one command exchanged with the spectrometer.
type DeviceEvent struct {
	// Command is the 32-bit command code.
	Command uint32 `cbor:"1,keyasint"`

	// Args are the int32 arguments sent with the command.
	Args []int32 `cbor:"2,keyasint,omitempty"`

	// ReturnCode is the device return code (responses only).
	ReturnCode *uint8 `cbor:"3,keyasint,omitempty"`

	// Length is the number of payload bytes transferred.
	Length int `cbor:"4,keyasint,omitempty"`

	// Duration is the round-trip time of the command (responses only).
	Duration *time.Duration `cbor:"5,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
