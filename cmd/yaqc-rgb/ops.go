package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/transport"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// defaultPollInterval is how often measure checks get_measured.
const defaultPollInterval = 50 * time.Millisecond

var (
	errUnknownProperty = errors.New("unknown property")
	errReadOnly        = errors.New("property is read-only")
)

// property looks up a property of the descriptor.
func property(p *protocol.Protocol, name string) (*protocol.Property, error) {
	prop, ok := p.Properties[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownProperty, name)
	}
	return prop, nil
}

// callMessage sends method with command-line arguments.
func (c *commandContext) callMessage(ctx context.Context, client transport.Caller, method string, args []string) (any, error) {
	p, err := c.protocol()
	if err != nil {
		return nil, err
	}
	msg, _ := p.Message(method)
	params, err := buildParams(msg, args)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, client, method, params)
}

// propertyReading is a property value with its units.
type propertyReading struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Units string `json:"units,omitempty"`
}

func (c *commandContext) getProperty(ctx context.Context, client transport.Caller, name string) (*propertyReading, error) {
	p, err := c.protocol()
	if err != nil {
		return nil, err
	}
	prop, err := property(p, name)
	if err != nil {
		return nil, err
	}

	value, err := c.call(ctx, client, prop.Getter, nil)
	if err != nil {
		return nil, err
	}
	reading := &propertyReading{Name: name, Value: value}

	if prop.UnitsGetter != "" {
		units, err := c.call(ctx, client, prop.UnitsGetter, nil)
		if err != nil {
			return nil, err
		}
		if s, ok := units.(string); ok {
			reading.Units = s
		}
	}
	return reading, nil
}

func (c *commandContext) setProperty(ctx context.Context, client transport.Caller, name, raw string) error {
	p, err := c.protocol()
	if err != nil {
		return err
	}
	prop, err := property(p, name)
	if err != nil {
		return err
	}
	if prop.Setter == "" {
		return fmt.Errorf("%w: %s", errReadOnly, name)
	}
	msg, ok := p.Message(prop.Setter)
	if !ok || len(msg.Request) == 0 {
		return fmt.Errorf("setter %s of %s takes no value", prop.Setter, name)
	}
	params, err := buildParams(msg, []string{raw})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, client, prop.Setter, params)
	return err
}

// measureOptions controls the measure command.
type measureOptions struct {
	Loop bool
	Wait bool
	Poll time.Duration
}

// measure triggers a measurement and, with Wait, polls get_measured until
// the returned measurement id appears.
func (c *commandContext) measure(ctx context.Context, client transport.Caller, opts measureOptions) (any, error) {
	params := map[string]any{"loop": opts.Loop}
	result, err := c.call(ctx, client, "measure", params)
	if err != nil {
		return nil, err
	}
	id, ok := wire.ToInt64(result)
	if !ok {
		return nil, fmt.Errorf("measure returned %T, want an integer", result)
	}
	if !opts.Wait {
		return id, nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		measured, err := c.call(ctx, client, "get_measured", nil)
		if err != nil {
			return nil, err
		}
		if m, ok := jsonable(measured).(map[string]any); ok {
			if got, ok := wire.ToInt64(m["measurement_id"]); ok && got >= id {
				return m, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
