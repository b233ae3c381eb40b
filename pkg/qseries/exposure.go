package qseries

import (
	"context"
	"fmt"
	"math"
)

// ExposureTime returns the exposure time in seconds.
func (s *Spectrometer) ExposureTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exposure
}

// ExposureLimits returns the minimum and maximum exposure time in seconds.
func (s *Spectrometer) ExposureLimits() (minSeconds, maxSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minExposure, s.maxExposure
}

// SetExposureTime sets the exposure time in seconds. The device must be
// idle. Setting the exposure time also cancels a running exposure.
func (s *Spectrometer) SetExposureTime(ctx context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("setting exposure time", "seconds", seconds)
	if err := s.requireIdle(ctx); err != nil {
		return err
	}
	if seconds > s.maxExposure {
		s.logger.Error("exposure time above maximum", "seconds", seconds, "max", s.maxExposure)
		return fmt.Errorf("%w: %g s > %g s", ErrExposureTooLarge, seconds, s.maxExposure)
	}
	if math.IsNaN(seconds) || seconds < s.minExposure {
		s.logger.Error("exposure time below minimum", "seconds", seconds, "min", s.minExposure)
		return fmt.Errorf("%w: %g s < %g s", ErrExposureTooSmall, seconds, s.minExposure)
	}

	if err := s.writeCommand(ctx, CmdSetExposureTime, micros(seconds)); err != nil {
		return err
	}
	s.exposure = seconds
	return nil
}

// Averaging returns the number of exposures averaged per spectrum.
func (s *Spectrometer) Averaging() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.averaging
}

// MaxAveraging returns the largest accepted averaging.
func (s *Spectrometer) MaxAveraging() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxAveraging
}

// SetAveraging sets the number of exposures averaged per spectrum.
func (s *Spectrometer) SetAveraging(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > s.maxAveraging {
		return fmt.Errorf("%w: %d is too large, max %d", ErrAveraging, n, s.maxAveraging)
	}
	if n < 1 {
		return fmt.Errorf("%w: %d, must be positive", ErrAveraging, n)
	}
	if err := s.writeCommand(ctx, CmdSetAveraging, int32(n)); err != nil {
		return err
	}
	s.averaging = n
	return nil
}

// StartExposure starts n exposures, or continuous exposure when n is
// ContinuousLatest or ContinuousAll. Unread spectra are discarded.
func (s *Spectrometer) StartExposure(ctx context.Context, n int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("starting exposure", "count", n)
	return s.writeCommand(ctx, CmdStartExposure, n)
}

// CancelExposure stops a running exposure.
func (s *Spectrometer) CancelExposure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCommand(ctx, CmdCancelExposure)
}

// Status returns the acquisition state, or StatusClosed when the
// connection is closed.
func (s *Spectrometer) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status(ctx)
}

func (s *Spectrometer) status(ctx context.Context) (Status, error) {
	if !s.open {
		return StatusClosed, nil
	}
	v, err := s.readInt(ctx, CmdGetStatus)
	if err != nil {
		return StatusError, err
	}
	return Status(int8(uint8(v))), nil
}

// AvailableSpectra returns the number of spectra ready to be read.
func (s *Spectrometer) AvailableSpectra(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.readInt(ctx, CmdGetStatus)
	if err != nil {
		return 0, err
	}
	return int(uint32(v) >> 8), nil
}

// SpectrumData reads the oldest available spectrum.
func (s *Spectrometer) SpectrumData(ctx context.Context) (*SpectrumData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.readData(ctx, CmdGetSpectrum)
	if err != nil {
		return nil, err
	}
	data, err := ParseSpectrum(payload, s.pixelCount)
	if err != nil {
		return nil, err
	}
	s.loadLevel = data.LoadLevel
	s.logger.Debug("spectrum read", "load_level", data.LoadLevel, "exposure", data.ExposureTime)
	return data, nil
}

// ProcessingSteps returns the processing steps applied on-board.
func (s *Spectrometer) ProcessingSteps() ProcessingSteps {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// AvailableProcessingSteps returns the steps the device can apply.
func (s *Spectrometer) AvailableProcessingSteps() ProcessingSteps {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableSteps
}

// DefaultProcessingSteps returns the factory default processing steps.
func (s *Spectrometer) DefaultProcessingSteps() ProcessingSteps {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultSteps
}

// SetProcessingSteps selects the on-board processing steps. Steps the
// device does not offer are dropped.
func (s *Spectrometer) SetProcessingSteps(ctx context.Context, steps ProcessingSteps) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if steps == s.steps {
		return nil
	}
	steps &= s.availableSteps
	if err := s.writeCommand(ctx, CmdSetProcessingSteps, int32(steps)); err != nil {
		return err
	}
	s.steps = steps
	return nil
}
