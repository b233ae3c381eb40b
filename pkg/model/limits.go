package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// ErrInvalidLimits is returned for limits that are not an ordered pair.
var ErrInvalidLimits = errors.New("invalid limits")

// Limits is the closed interval a numeric property accepts.
type Limits struct {
	Min float64
	Max float64
}

// Validate checks that the limits are finite or infinite numbers with
// Min <= Max.
func (l Limits) Validate() error {
	if math.IsNaN(l.Min) || math.IsNaN(l.Max) {
		return fmt.Errorf("%w: NaN bound", ErrInvalidLimits)
	}
	if l.Min > l.Max {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidLimits, l.Min, l.Max)
	}
	return nil
}

// Contains reports whether v lies within the limits, inclusive.
func (l Limits) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Clamp returns v bounded by the limits.
func (l Limits) Clamp(v float64) float64 {
	return math.Max(l.Min, math.Min(l.Max, v))
}

// Slice returns the limits in their wire form, [min, max].
func (l Limits) Slice() []float64 {
	return []float64{l.Min, l.Max}
}

// LimitsFromValue decodes the [min, max] response of a limits getter.
func LimitsFromValue(v any) (Limits, error) {
	s, ok := wire.ToFloat64Slice(v)
	if !ok {
		if ints, isInts := v.([]int64); isInts {
			s = make([]float64, len(ints))
			for i, n := range ints {
				s[i] = float64(n)
			}
			ok = true
		}
	}
	if !ok {
		return Limits{}, fmt.Errorf("%w: %T is not a numeric array", ErrInvalidLimits, v)
	}
	if len(s) != 2 {
		return Limits{}, fmt.Errorf("%w: %d elements, want 2", ErrInvalidLimits, len(s))
	}
	l := Limits{Min: s[0], Max: s[1]}
	return l, l.Validate()
}
