package wire

// Status represents a response status code.
type Status uint8

const (
	// StatusSuccess indicates the message was handled successfully.
	StatusSuccess Status = 0

	// StatusUnknownMessage indicates the daemon does not implement the message.
	StatusUnknownMessage Status = 1

	// StatusInvalidParameter indicates a missing or mistyped parameter.
	StatusInvalidParameter Status = 2

	// StatusOutOfRange indicates a value outside the property limits.
	StatusOutOfRange Status = 3

	// StatusBusy indicates the hardware cannot accept the request right now.
	StatusBusy Status = 4

	// StatusDeviceError indicates the hardware reported or caused a failure.
	StatusDeviceError Status = 5

	// StatusNotSupported indicates the connected hardware lacks the feature.
	StatusNotSupported Status = 6

	// StatusInternal indicates an unexpected daemon failure.
	StatusInternal Status = 7

	// StatusShuttingDown indicates the daemon is stopping.
	StatusShuttingDown Status = 8
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusUnknownMessage:
		return "UNKNOWN_MESSAGE"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusOutOfRange:
		return "OUT_OF_RANGE"
	case StatusBusy:
		return "BUSY"
	case StatusDeviceError:
		return "DEVICE_ERROR"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusInternal:
		return "INTERNAL"
	case StatusShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusSuccess
}
