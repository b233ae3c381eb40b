package rgbqmini

import (
	"context"

	"github.com/yaq-go/yaqd-rgb/pkg/model"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// Handlers implements daemon.Driver.
func (s *Sensor) Handlers() map[string]model.MessageHandler {
	return map[string]model.MessageHandler{
		"set_exposure_time":        s.setExposureTime,
		"get_exposure_time":        s.getExposureTime,
		"get_exposure_time_units":  s.getExposureTimeUnits,
		"get_exposure_time_limits": s.getExposureTimeLimits,
		"set_averaging":            s.setAveraging,
		"get_averaging":            s.getAveraging,
		"get_averaging_units":      s.getAveragingUnits,
		"get_averaging_limits":     s.getAveragingLimits,
		"get_temperature":          s.getTemperature,
		"get_firmware_version":     s.getFirmwareVersion,
	}
}

// setExposureTime writes the device first so that state only ever holds
// an exposure the device accepted.
func (s *Sensor) setExposureTime(ctx context.Context, params map[string]any) (any, error) {
	v, err := wire.Float(params, "exposure_time")
	if err != nil {
		return nil, err
	}
	if err := s.Spectrometer().SetExposureTime(ctx, v); err != nil {
		return nil, classify(err)
	}
	return nil, s.state.Set("exposure_time", v)
}

func (s *Sensor) getExposureTime(ctx context.Context, params map[string]any) (any, error) {
	return s.state.Float("exposure_time")
}

func (s *Sensor) getExposureTimeUnits(ctx context.Context, params map[string]any) (any, error) {
	return "s", nil
}

func (s *Sensor) getExposureTimeLimits(ctx context.Context, params map[string]any) (any, error) {
	lo, hi := s.Spectrometer().ExposureLimits()
	return []float64{lo, hi}, nil
}

func (s *Sensor) setAveraging(ctx context.Context, params map[string]any) (any, error) {
	n, err := wire.Int(params, "averaging")
	if err != nil {
		return nil, err
	}
	if err := s.Spectrometer().SetAveraging(ctx, int(n)); err != nil {
		return nil, classify(err)
	}
	return nil, s.state.Set("averaging", n)
}

func (s *Sensor) getAveraging(ctx context.Context, params map[string]any) (any, error) {
	return s.state.Int("averaging")
}

func (s *Sensor) getAveragingUnits(ctx context.Context, params map[string]any) (any, error) {
	return nil, nil
}

func (s *Sensor) getAveragingLimits(ctx context.Context, params map[string]any) (any, error) {
	return []int64{1, int64(s.Spectrometer().MaxAveraging())}, nil
}

func (s *Sensor) getTemperature(ctx context.Context, params map[string]any) (any, error) {
	t, err := s.Spectrometer().Temperature(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

func (s *Sensor) getFirmwareVersion(ctx context.Context, params map[string]any) (any, error) {
	return s.Spectrometer().Firmware().String(), nil
}
