package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
)

// Message errors.
var (
	ErrMessageNotFound   = errors.New("message not found")
	ErrNoHandler         = errors.New("message has no handler")
	ErrInvalidParameters = errors.New("invalid message parameters")
)

// MessageHandler answers one message. Params hold every declared request
// parameter, with defaults filled in.
type MessageHandler func(ctx context.Context, params map[string]any) (any, error)

// Message is a declared message bound to its handler.
type Message struct {
	desc    *protocol.Message
	handler MessageHandler
}

// NewMessage creates a message with the given descriptor and handler.
func NewMessage(desc *protocol.Message, handler MessageHandler) *Message {
	return &Message{desc: desc, handler: handler}
}

// Name returns the message name.
func (m *Message) Name() string {
	return m.desc.Name
}

// Descriptor returns the message descriptor.
func (m *Message) Descriptor() *protocol.Message {
	return m.desc
}

// Invoke validates params and calls the handler.
func (m *Message) Invoke(ctx context.Context, params map[string]any) (any, error) {
	if m.handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, m.desc.Name)
	}
	prepared, err := m.prepare(params)
	if err != nil {
		return nil, err
	}
	return m.handler(ctx, prepared)
}

// prepare rejects unknown and mistyped parameters and fills defaults.
func (m *Message) prepare(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m.desc.Request))
	for name := range params {
		if _, ok := m.desc.Param(name); !ok {
			return nil, fmt.Errorf("%w: %s has no parameter %q", ErrInvalidParameters, m.desc.Name, name)
		}
	}
	for _, p := range m.desc.Request {
		v, ok := params[p.Name]
		if !ok {
			if !p.HasDefault {
				return nil, fmt.Errorf("%w: %s requires %q", ErrInvalidParameters, m.desc.Name, p.Name)
			}
			v = p.Default
		}
		if err := p.Type.Check(v); err != nil {
			return nil, fmt.Errorf("%w: %s parameter %q: %v", ErrInvalidParameters, m.desc.Name, p.Name, err)
		}
		out[p.Name] = v
	}
	return out, nil
}

// Table is the dispatch table of a daemon: every message the descriptor
// declares, indexed by name.
type Table struct {
	mu       sync.RWMutex
	messages map[string]*Message
}

// NewTable creates a table holding every message of p without handlers.
func NewTable(p *protocol.Protocol) *Table {
	t := &Table{messages: make(map[string]*Message, len(p.Messages))}
	for name, desc := range p.Messages {
		t.messages[name] = NewMessage(desc, nil)
	}
	return t
}

// Handle binds a handler to a declared message.
func (t *Table) Handle(name string, h MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.messages[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, name)
	}
	m.handler = h
	return nil
}

// Wrap replaces the handler of name with wrap(current).
func (t *Table) Wrap(name string, wrap func(MessageHandler) MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.messages[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, name)
	}
	m.handler = wrap(m.handler)
	return nil
}

// Lookup returns the named message.
func (t *Table) Lookup(name string) (*Message, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.messages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, name)
	}
	return m, nil
}

// Invoke dispatches a request to the named message.
func (t *Table) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	m, err := t.Lookup(name)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	h := m.handler
	t.mu.RUnlock()
	return NewMessage(m.desc, h).Invoke(ctx, params)
}

// Names returns every message name in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.messages))
	for name := range t.messages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unhandled returns the sorted names of messages without a handler.
func (t *Table) Unhandled() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var names []string
	for name, m := range t.messages {
		if m.handler == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
