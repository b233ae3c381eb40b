package main

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
)

var errTooManyArgs = errors.New("too many arguments")

// parseValue reads a command-line value as a YAML scalar or flow
// collection: "0.25" is a double, "[1, 2]" an array, "true" a boolean and
// anything else a string.
func parseValue(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("cannot parse %q: %w", s, err)
	}
	return v, nil
}

// coerce converts v to p's type where the command line is ambiguous, so a
// serial number like 123 stays a string.
func coerce(p protocol.Param, raw string, v any) any {
	if p.Type.Check(v) == nil {
		return v
	}
	if p.Type.Check(raw) == nil {
		return raw
	}
	return v
}

// buildParams turns "value" and "name=value" arguments into request
// parameters. Positional values fill msg's parameters in order.
func buildParams(msg *protocol.Message, args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	params := make(map[string]any, len(args))
	pos := 0
	for _, arg := range args {
		if name, raw, ok := strings.Cut(arg, "="); ok && isParamName(msg, name) {
			v, err := parseValue(raw)
			if err != nil {
				return nil, err
			}
			if msg != nil {
				if p, found := msg.Param(name); found {
					v = coerce(p, raw, v)
				}
			}
			params[name] = v
			continue
		}

		if msg == nil {
			return nil, fmt.Errorf("unknown message: pass parameters as name=value, got %q", arg)
		}
		if pos >= len(msg.Request) {
			return nil, fmt.Errorf("%w: %s takes %d", errTooManyArgs, msg.Name, len(msg.Request))
		}
		p := msg.Request[pos]
		pos++
		v, err := parseValue(arg)
		if err != nil {
			return nil, err
		}
		params[p.Name] = coerce(p, arg, v)
	}
	return params, nil
}

// isParamName reports whether name is usable as a key=value parameter
// name. Unknown messages accept any identifier.
func isParamName(msg *protocol.Message, name string) bool {
	if name == "" || strings.ContainsAny(name, " []{},:") {
		return false
	}
	if msg == nil {
		return true
	}
	_, ok := msg.Param(name)
	return ok
}
