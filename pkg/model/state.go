package model

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// State errors.
var (
	ErrFieldNotFound  = errors.New("state field not found")
	ErrStateValueType = errors.New("invalid value type for state field")
)

// FieldDef declares a state field.
type FieldDef struct {
	Name    string
	Type    protocol.Type
	Default any
}

// StateSubscriber is notified when a state field changes.
type StateSubscriber interface {
	OnStateChanged(name string, value any)
}

// StateSubscriberFunc adapts a function to StateSubscriber.
type StateSubscriberFunc func(name string, value any)

// OnStateChanged calls f.
func (f StateSubscriberFunc) OnStateChanged(name string, value any) {
	f(name, value)
}

type stateField struct {
	def   FieldDef
	value any
}

// State is the set of persisted daemon fields.
type State struct {
	mu          sync.RWMutex
	fields      map[string]*stateField
	dirty       bool
	nextSub     int
	subscribers map[int]StateSubscriber
}

// NewState creates a state whose fields hold their defaults.
func NewState(defs ...FieldDef) *State {
	s := &State{
		fields:      make(map[string]*stateField, len(defs)),
		subscribers: make(map[int]StateSubscriber),
	}
	for _, def := range defs {
		s.fields[def.Name] = &stateField{def: def, value: normalize(def.Type, def.Default)}
	}
	return s
}

// StateFromProtocol creates a state from a descriptor's [state] table.
func StateFromProtocol(p *protocol.Protocol) *State {
	defs := make([]FieldDef, 0, len(p.State))
	for name, f := range p.State {
		defs = append(defs, FieldDef{Name: name, Type: f.Type, Default: f.Default})
	}
	return NewState(defs...)
}

// Names returns the field names in sorted order.
func (s *State) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the current value of a field.
func (s *State) Get(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	return f.value, nil
}

// Float returns a numeric field as float64.
func (s *State) Float(name string) (float64, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	f, ok := wire.ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrStateValueType, name, v)
	}
	return f, nil
}

// Int returns an integer field as int64.
func (s *State) Int(name string) (int64, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	n, ok := wire.ToInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrStateValueType, name, v)
	}
	return n, nil
}

// Set type checks and stores a field value. Subscribers are notified when
// the value changes.
func (s *State) Set(name string, value any) error {
	s.mu.Lock()
	f, ok := s.fields[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	if err := f.def.Type.Check(value); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s: %v", ErrStateValueType, name, err)
	}
	value = normalize(f.def.Type, value)
	changed := !reflect.DeepEqual(f.value, value)
	if changed {
		f.value = value
		s.dirty = true
	}
	subs := make([]StateSubscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	if changed {
		for _, sub := range subs {
			sub.OnStateChanged(name, value)
		}
	}
	return nil
}

// Snapshot returns a copy of every field value.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.fields))
	for name, f := range s.fields {
		out[name] = f.value
	}
	return out
}

// Restore loads previously persisted values. Unknown keys are ignored and
// mistyped values keep their default; both are reported in the returned
// error. Subscribers are not notified.
func (s *State) Restore(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, v := range values {
		f, ok := s.fields[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrFieldNotFound, name))
			continue
		}
		if err := f.def.Type.Check(v); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrStateValueType, name, err))
			continue
		}
		f.value = normalize(f.def.Type, v)
	}
	return errors.Join(errs...)
}

// Reset returns every field to its default.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fields {
		f.value = normalize(f.def.Type, f.def.Default)
	}
	s.dirty = true
}

// IsDirty reports whether a field changed since the last ClearDirty.
func (s *State) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// ClearDirty clears the dirty flag.
func (s *State) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// Subscribe adds a subscriber for change notifications. The returned
// function removes it.
func (s *State) Subscribe(sub StateSubscriber) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = sub
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// normalize converts numeric values to the canonical Go type of a scalar
// field so that persisted and live values compare equal.
func normalize(t protocol.Type, v any) any {
	if t.IsUnion() || v == nil {
		return v
	}
	switch t.Name {
	case protocol.TypeFloat, protocol.TypeDouble:
		if f, ok := wire.ToFloat64(v); ok {
			return f
		}
	case protocol.TypeInt, protocol.TypeLong:
		if n, ok := wire.ToInt64(v); ok {
			return n
		}
	}
	return v
}
