package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// Property errors.
var (
	ErrPropertyNotWritable = errors.New("property is not writable")
	ErrPropertyValueType   = errors.New("invalid value type for property")
	ErrOutOfRange          = errors.New("value out of range")
	ErrPropertyHasNoLimits = errors.New("property has no limits")
)

// PropertyHandlers are the accessors a property is built from. Get is
// required; the rest are optional.
type PropertyHandlers struct {
	Get    func(ctx context.Context) (any, error)
	Set    func(ctx context.Context, value any) error
	Units  func(ctx context.Context) (any, error)
	Limits func(ctx context.Context) (Limits, error)
}

// Property is a typed, unit-aware, limit-bounded attribute.
type Property struct {
	desc     *protocol.Property
	handlers PropertyHandlers
}

// NewProperty creates a property from a descriptor and its accessors.
func NewProperty(desc *protocol.Property, h PropertyHandlers) *Property {
	return &Property{desc: desc, handlers: h}
}

// Name returns the property name.
func (p *Property) Name() string { return p.desc.Name }

// Descriptor returns the property descriptor.
func (p *Property) Descriptor() *protocol.Property { return p.desc }

// Writable reports whether the property has a setter.
func (p *Property) Writable() bool { return p.handlers.Set != nil }

// Get returns the current value.
func (p *Property) Get(ctx context.Context) (any, error) {
	return p.handlers.Get(ctx)
}

// Set type checks value, checks it against the current limits, and writes
// it. Nothing is written when a check fails.
func (p *Property) Set(ctx context.Context, value any) error {
	if p.handlers.Set == nil {
		return fmt.Errorf("%w: %s", ErrPropertyNotWritable, p.desc.Name)
	}
	if err := p.desc.Type.Check(value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPropertyValueType, p.desc.Name, err)
	}
	if p.handlers.Limits != nil && p.desc.Type.IsNumeric() {
		limits, err := p.handlers.Limits(ctx)
		if err != nil {
			return fmt.Errorf("reading %s limits: %w", p.desc.Name, err)
		}
		v, _ := wire.ToFloat64(value)
		if !limits.Contains(v) {
			return fmt.Errorf("%w: %s %v not in [%v, %v]", ErrOutOfRange, p.desc.Name, value, limits.Min, limits.Max)
		}
	}
	return p.handlers.Set(ctx, value)
}

// Units returns the units string, or nil for unitless properties.
func (p *Property) Units(ctx context.Context) (any, error) {
	if p.handlers.Units == nil {
		return nil, nil
	}
	return p.handlers.Units(ctx)
}

// Limits returns the current limits.
func (p *Property) Limits(ctx context.Context) (Limits, error) {
	if p.handlers.Limits == nil {
		return Limits{}, fmt.Errorf("%w: %s", ErrPropertyHasNoLimits, p.desc.Name)
	}
	return p.handlers.Limits(ctx)
}

// BindProperties builds every property of proto from the handlers in table
// and routes each setter message through Property.Set. All accessor
// messages must already have handlers.
func BindProperties(proto *protocol.Protocol, table *Table) (map[string]*Property, error) {
	props := make(map[string]*Property, len(proto.Properties))
	for _, name := range proto.PropertyNames() {
		desc := proto.Properties[name]
		prop, err := bindProperty(desc, table)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		props[name] = prop
	}
	return props, nil
}

func bindProperty(desc *protocol.Property, table *Table) (*Property, error) {
	call := func(name string) (func(ctx context.Context) (any, error), error) {
		m, err := table.Lookup(name)
		if err != nil {
			return nil, err
		}
		if m.handler == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoHandler, name)
		}
		return func(ctx context.Context) (any, error) {
			return table.Invoke(ctx, name, nil)
		}, nil
	}

	var h PropertyHandlers
	get, err := call(desc.Getter)
	if err != nil {
		return nil, err
	}
	h.Get = get

	if desc.UnitsGetter != "" {
		if h.Units, err = call(desc.UnitsGetter); err != nil {
			return nil, err
		}
	}
	if desc.LimitsGetter != "" {
		limits, err := call(desc.LimitsGetter)
		if err != nil {
			return nil, err
		}
		h.Limits = func(ctx context.Context) (Limits, error) {
			v, err := limits(ctx)
			if err != nil {
				return Limits{}, err
			}
			return LimitsFromValue(v)
		}
	}

	prop := &Property{desc: desc}
	if desc.Setter != "" {
		m, err := table.Lookup(desc.Setter)
		if err != nil {
			return nil, err
		}
		if m.handler == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoHandler, desc.Setter)
		}
		if len(m.desc.Request) != 1 {
			return nil, fmt.Errorf("%w: setter %s must take one parameter", ErrInvalidParameters, desc.Setter)
		}
		param := m.desc.Request[0].Name
		set := m.handler
		h.Set = func(ctx context.Context, value any) error {
			_, err := set(ctx, map[string]any{param: value})
			return err
		}
		err = table.Wrap(desc.Setter, func(MessageHandler) MessageHandler {
			return func(ctx context.Context, params map[string]any) (any, error) {
				return nil, prop.Set(ctx, params[param])
			}
		})
		if err != nil {
			return nil, err
		}
	}
	prop.handlers = h
	return prop, nil
}
