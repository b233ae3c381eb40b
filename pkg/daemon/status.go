package daemon

import (
	"context"
	"errors"

	"github.com/yaq-go/yaqd-rgb/pkg/model"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// StatusFor maps a handler error onto the wire status reported to the
// client.
func StatusFor(err error) wire.Status {
	switch {
	case err == nil:
		return wire.StatusSuccess
	case errors.Is(err, model.ErrMessageNotFound):
		return wire.StatusUnknownMessage
	case errors.Is(err, model.ErrOutOfRange):
		return wire.StatusOutOfRange
	case errors.Is(err, model.ErrInvalidParameters),
		errors.Is(err, model.ErrPropertyValueType),
		errors.Is(err, model.ErrPropertyNotWritable),
		errors.Is(err, model.ErrStateValueType),
		errors.Is(err, wire.ErrMissingParam),
		errors.Is(err, wire.ErrParamType),
		errors.Is(err, wire.ErrEmptyMethod):
		return wire.StatusInvalidParameter
	case errors.Is(err, ErrBusy):
		return wire.StatusBusy
	case errors.Is(err, ErrNotSupported):
		return wire.StatusNotSupported
	case errors.Is(err, ErrShuttingDown):
		return wire.StatusShuttingDown
	case errors.Is(err, ErrDevice),
		errors.Is(err, context.DeadlineExceeded):
		return wire.StatusDeviceError
	default:
		return wire.StatusInternal
	}
}
