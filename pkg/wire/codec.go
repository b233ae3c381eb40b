package wire

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode = func() cbor.EncMode {
		m, err := cbor.EncOptions{
			Sort:          cbor.SortCanonical,
			IndefLength:   cbor.IndefLengthForbidden,
			NilContainers: cbor.NilContainerAsNull,
			Time:          cbor.TimeUnix,
		}.EncMode()
		if err != nil {
			panic(err)
		}
		return m
	}()

	// Untyped maps decode string keyed, as every map in the protocol is.
	// MaxArrayElements leaves room for the largest detector plus margin.
	decMode = func() cbor.DecMode {
		m, err := cbor.DecOptions{
			DupMapKey:        cbor.DupMapKeyQuiet,
			IndefLength:      cbor.IndefLengthAllowed,
			DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
			MaxArrayElements: 1 << 20,
		}.DecMode()
		if err != nil {
			panic(err)
		}
		return m
	}()
)

// Marshal encodes v with the protocol's canonical CBOR options.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes protocol CBOR into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

func decode[T any](data []byte, what string) (*T, error) {
	var v T
	if err := Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return &v, nil
}

func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(req)
}

func DecodeRequest(data []byte) (*Request, error) {
	req, err := decode[Request](data, "request")
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

func EncodeResponse(resp *Response) ([]byte, error) { return Marshal(resp) }

func DecodeResponse(data []byte) (*Response, error) {
	return decode[Response](data, "response")
}

// EncodeControlMessage stamps msg with ControlMessageID and encodes it.
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	msg.ID = ControlMessageID
	return Marshal(msg)
}

func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	msg, err := decode[ControlMessage](data, "control message")
	if err != nil {
		return nil, err
	}
	if msg.ID != ControlMessageID {
		return nil, fmt.Errorf("not a control message: id %d", msg.ID)
	}
	return msg, nil
}

// MessageType is the kind of a frame, as told by PeekMessageType.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeRequest
	MessageTypeResponse
	MessageTypeControl
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeRequest:
		return "request"
	case MessageTypeResponse:
		return "response"
	case MessageTypeControl:
		return "control"
	}
	return "unknown"
}

// PeekMessageType classifies a frame from its first two keys: id 0 is a
// control frame, a text key 2 is a request's message name and an integer
// key 2 is a response status.
func PeekMessageType(data []byte) (MessageType, error) {
	var head struct {
		ID   uint32          `cbor:"1,keyasint"`
		Next cbor.RawMessage `cbor:"2,keyasint"`
	}
	if err := Unmarshal(data, &head); err != nil {
		return MessageTypeUnknown, fmt.Errorf("failed to peek message: %w", err)
	}

	switch {
	case head.ID == ControlMessageID:
		return MessageTypeControl, nil
	case len(head.Next) == 0:
		return MessageTypeUnknown, nil
	}
	const majorUint, majorText = 0, 3
	switch head.Next[0] >> 5 {
	case majorText:
		return MessageTypeRequest, nil
	case majorUint:
		return MessageTypeResponse, nil
	}
	return MessageTypeUnknown, nil
}
