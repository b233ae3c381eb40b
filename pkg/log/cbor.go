package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	// Canonical encoding with RFC 3339 timestamps keeps nanoseconds and
	// makes identical events byte-identical.
	encMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic("log: invalid CBOR encoder options: " + err.Error())
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic("log: invalid CBOR decoder options: " + err.Error())
	}
	return m
}

// EncodeEvent returns the CBOR form of event.
func EncodeEvent(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// DecodeEvent parses one CBOR-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := decMode.Unmarshal(data, &event)
	return event, err
}

// NewEncoder returns an encoder writing events to w back to back.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a decoder reading a stream of events from r.
func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }
