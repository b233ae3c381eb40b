package qseries

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/yaq-go/yaqd-rgb/pkg/version"
)

// Wavelengths returns the wavelength of every pixel in nm. Firmware with
// bulk wavelength support reports them directly; older firmware falls back
// to the cubic polynomial of the cached coefficients.
func (s *Spectrometer) Wavelengths(ctx context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !version.Supports(s.firmware, version.CapBulkWavelengths) {
		s.logger.Warn("firmware cannot report wavelengths, computing them from default coefficients",
			"firmware", s.firmware.String())
		return Polynomial(s.coefficients, s.pixelCount)
	}

	data, err := s.readData(ctx, CmdGetWavelengths)
	if err != nil {
		return nil, err
	}
	if len(data) != 4*s.pixelCount {
		return nil, fmt.Errorf("%s: %w: %d bytes for %d pixels", CmdGetWavelengths, ErrUnexpectedLength, len(data), s.pixelCount)
	}
	return Float32s(data), nil
}

// WavelengthCoefficients returns the constant, linear, quadratic and cubic
// coefficients of the wavelength calibration.
func (s *Spectrometer) WavelengthCoefficients(ctx context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !version.Supports(s.firmware, version.CapCoefficients) {
		return nil, fmt.Errorf("wavelength coefficients: %w (firmware %s)", ErrFirmwareUnsupported, s.firmware)
	}
	data, err := s.readData(ctx, CmdGetWavelengthCoefficients)
	if err != nil {
		return nil, err
	}
	if len(data) != 16 {
		return nil, fmt.Errorf("%s: %w: %d bytes", CmdGetWavelengthCoefficients, ErrUnexpectedLength, len(data))
	}
	s.coefficients = Float32s(data)
	return append([]float64(nil), s.coefficients...), nil
}

// NonlinearityCoefficients returns the nonlinearity correction
// coefficients.
func (s *Spectrometer) NonlinearityCoefficients(ctx context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !version.Supports(s.firmware, version.CapCoefficients) {
		return nil, fmt.Errorf("nonlinearity coefficients: %w (firmware %s)", ErrFirmwareUnsupported, s.firmware)
	}
	data, err := s.readData(ctx, CmdGetNonlinearityCoefficients)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%s: %w", CmdGetNonlinearityCoefficients, ErrShortResponse)
	}
	n := int(binary.LittleEndian.Uint32(data))
	if len(data) < 4+4*n {
		return nil, fmt.Errorf("%s: %w: %d coefficients in %d bytes", CmdGetNonlinearityCoefficients, ErrUnexpectedLength, n, len(data))
	}
	return Float32s(data[4 : 4+4*n]), nil
}
