package wire

import (
	"errors"
	"fmt"
)

// CBOR map keys for message encoding.
const (
	KeyMessageID = 1
	KeyMethod    = 2 // Method (request), Status (response), Type (control)
	KeyParams    = 3 // Params (request), Result (response), Sequence (control)
	KeyError     = 4
)

// ControlMessageID is the reserved message ID carried by control messages.
const ControlMessageID uint32 = 0

// ErrEmptyMethod is returned for requests that name no message.
var ErrEmptyMethod = errors.New("empty method name")

// Request asks the daemon to handle one protocol message.
//
// CBOR encoding:
//
//	{
//	  1: messageId,  // uint32, never 0
//	  2: method,     // string: message name, e.g. "set_exposure_time"
//	  3: params      // map[string]any, omitted when empty
//	}
type Request struct {
	ID     uint32         `cbor:"1,keyasint"`
	Method string         `cbor:"2,keyasint"`
	Params map[string]any `cbor:"3,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.ID == ControlMessageID {
		return fmt.Errorf("messageId 0 is reserved for control messages")
	}
	if r.Method == "" {
		return ErrEmptyMethod
	}
	return nil
}

// Response carries the result of a request.
//
// CBOR encoding:
//
//	{
//	  1: messageId,  // uint32: matches request
//	  2: status,     // uint8: 0=success, or error code
//	  3: result,     // message response value (success only)
//	  4: error       // string: human-readable error (errors only)
//	}
type Response struct {
	ID     uint32 `cbor:"1,keyasint"`
	Status Status `cbor:"2,keyasint"`
	Result any    `cbor:"3,keyasint,omitempty"`
	Error  string `cbor:"4,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// Err converts an error response into a *ResponseError, or nil on success.
func (r *Response) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return &ResponseError{Status: r.Status, Message: r.Error}
}

// NewErrorResponse builds an error response for the given request ID.
func NewErrorResponse(id uint32, status Status, msg string) *Response {
	return &Response{ID: id, Status: status, Error: msg}
}

// ResponseError is the client-side form of an error response.
type ResponseError struct {
	Status  Status
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// ControlMessage represents a transport-level control message.
// These are separate from the request/response model.
//
// CBOR encoding:
//
//	{
//	  1: 0,         // reserved messageId
//	  2: type,      // uint8
//	  3: sequence   // uint32, omitted when zero
//	}
type ControlMessage struct {
	ID       uint32             `cbor:"1,keyasint"`
	Type     ControlMessageType `cbor:"2,keyasint"`
	Sequence uint32             `cbor:"3,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}
