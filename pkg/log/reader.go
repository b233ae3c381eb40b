package log

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything; TimeEnd is
// exclusive.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category
	TimeStart    *time.Time
	TimeEnd      *time.Time
	DaemonName   string

	// Method keeps only message events for this message name.
	Method string
}

func (f *Filter) matches(e *Event) bool {
	switch {
	case f.ConnectionID != "" && e.ConnectionID != f.ConnectionID,
		f.DaemonName != "" && e.DaemonName != f.DaemonName,
		f.Direction != nil && e.Direction != *f.Direction,
		f.Layer != nil && e.Layer != *f.Layer,
		f.Category != nil && e.Category != *f.Category,
		f.TimeStart != nil && e.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !e.Timestamp.Before(*f.TimeEnd):
		return false
	case f.Method != "":
		return e.Message != nil && e.Message.Method == f.Method
	}
	return true
}

// Reader streams events from a capture file.
type Reader struct {
	file   *os.File
	dec    *cbor.Decoder
	filter Filter
}

// NewReader opens path for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path, yielding only events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, dec: NewDecoder(bufio.NewReader(f)), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
// A record cut short by a crash is reported as io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	for {
		var e Event
		if err := r.dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(&e) {
			return e, nil
		}
	}
}

func (r *Reader) Close() error {
	return r.file.Close()
}
