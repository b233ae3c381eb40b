package qseries

import (
	"errors"
	"fmt"
)

// Driver errors.
var (
	ErrClosed              = errors.New("device connection is closed")
	ErrNoDevice            = errors.New("no spectrometer found")
	ErrShortResponse       = errors.New("short response from device")
	ErrUnexpectedLength    = errors.New("unexpected response length")
	ErrBootloader          = errors.New("device is waiting for a new firmware to be programmed")
	ErrFirmwareTooOld      = errors.New("device firmware is too old for this driver")
	ErrFirmwareUnsupported = errors.New("not supported by device firmware")
	ErrNotIdle             = errors.New("spectrometer is not idle")
	ErrExposureTooLarge    = errors.New("exposure time is too large")
	ErrExposureTooSmall    = errors.New("exposure time is too small")
	ErrAveraging           = errors.New("averaging out of range")
	ErrPixelCount          = errors.New("pixel count from device does not match")
	ErrPixelFormat         = errors.New("pixel format not supported")
	ErrPinRange            = errors.New("pin number out of range")
)

// DeviceError is returned when the device answers with a non-zero return
// code.
type DeviceError struct {
	Command Command
	Code    ReturnCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: device returned %s (%d)", e.Command, e.Code, uint8(e.Code))
}

// IsDeviceError reports whether err carries a *DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
