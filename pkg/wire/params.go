package wire

import (
	"errors"
	"fmt"
	"math"
)

// Parameter extraction errors.
var (
	ErrMissingParam = errors.New("missing parameter")
	ErrParamType    = errors.New("wrong parameter type")
)

// ToFloat64 converts any CBOR-decoded number to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ToInt64 converts a CBOR-decoded integer to int64. Floats are accepted
// only when they hold an integral value.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return ToInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// ToFloat64Slice converts a decoded array of numbers to []float64.
func ToFloat64Slice(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return s, true
	case []float32:
		out := make([]float64, len(s))
		for i, f := range s {
			out[i] = float64(f)
		}
		return out, true
	case []any:
		out := make([]float64, len(s))
		for i, item := range s {
			f, ok := ToFloat64(item)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// Float returns the named parameter as float64.
func Float(params map[string]any, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	f, ok := ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrParamType, name, v)
	}
	return f, nil
}

// Int returns the named parameter as int64.
func Int(params map[string]any, name string) (int64, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	n, ok := ToInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrParamType, name, v)
	}
	return n, nil
}

// Bool returns the named parameter as bool, or def when it is absent.
func Bool(params map[string]any, name string, def bool) (bool, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrParamType, name, v)
	}
	return b, nil
}
