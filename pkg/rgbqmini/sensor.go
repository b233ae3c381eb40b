package rgbqmini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/daemon"
	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/model"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
)

// Kind is the protocol name the sensor implements.
const Kind = "rgb-qmini"

// Make is reported by id when the configuration leaves make unset.
const Make = "RGB Photonics"

// ChannelName is the name of the spectrum channel.
const ChannelName = "intensities"

// MappingName indexes the spectrum channel.
const MappingName = "wavelengths"

// DefaultPollInterval is how often a measurement checks for a spectrum.
const DefaultPollInterval = 10 * time.Millisecond

// cancelTimeout bounds the CancelExposure sent when a measurement is
// abandoned.
const cancelTimeout = time.Second

// Config configures a Sensor.
type Config struct {
	// Enumerator finds and opens devices (USB or simulated).
	Enumerator qseries.Enumerator

	// Serial selects the device; empty opens the first one found.
	Serial string

	// PollInterval between spectrum availability checks.
	PollInterval time.Duration

	// Logger for driver logs (optional).
	Logger *slog.Logger

	// ProtocolLogger receives device command events (optional).
	ProtocolLogger log.Logger

	// DaemonName tags device events.
	DaemonName string
}

// Sensor is the rgb-qmini driver.
type Sensor struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.RWMutex
	spec        *qseries.Spectrometer
	state       *model.State
	wavelengths []float64
}

// New creates a sensor. The device is opened by Init.
func New(cfg Config) *Sensor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sensor{cfg: cfg, logger: logger}
}

// Spectrometer returns the open device, or nil before Init.
func (s *Sensor) Spectrometer() *qseries.Spectrometer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec
}

// Init implements daemon.Driver. It opens the device, reads the
// wavelength calibration and applies persisted settings.
func (s *Sensor) Init(ctx context.Context, state *model.State) error {
	if s.cfg.Enumerator == nil {
		return errors.New("no device enumerator configured")
	}

	spec, err := qseries.Connect(ctx, s.cfg.Enumerator, s.cfg.Serial, qseries.Config{
		Logger:         s.logger,
		ProtocolLogger: s.cfg.ProtocolLogger,
		DaemonName:     s.cfg.DaemonName,
	})
	if err != nil {
		return err
	}

	wl, err := spec.Wavelengths(ctx)
	if err != nil {
		spec.Close()
		return fmt.Errorf("reading wavelengths: %w", err)
	}

	s.mu.Lock()
	s.spec = spec
	s.state = state
	s.wavelengths = wl
	s.mu.Unlock()

	s.applyExposure(ctx)
	s.applyAveraging(ctx)

	info := spec.Info()
	s.logger.Info("spectrometer ready",
		"model", info.Model(),
		"serial", info.Serial,
		"firmware", spec.Firmware().String(),
		"pixels", spec.PixelCount())
	return nil
}

// applyExposure pushes a persisted exposure time to the device. Without
// one, or when the device refuses it, state takes the device's value.
func (s *Sensor) applyExposure(ctx context.Context) {
	if v, err := s.state.Float("exposure_time"); err == nil && v != 0 {
		err := s.spec.SetExposureTime(ctx, v)
		if err == nil {
			return
		}
		s.logger.Warn("persisted exposure time rejected", "exposure_time", v, "error", err)
	}
	if err := s.state.Set("exposure_time", s.spec.ExposureTime()); err != nil {
		s.logger.Warn("storing exposure time failed", "error", err)
	}
}

func (s *Sensor) applyAveraging(ctx context.Context) {
	if n, err := s.state.Int("averaging"); err == nil && n > 0 {
		err := s.spec.SetAveraging(ctx, int(n))
		if err == nil {
			return
		}
		s.logger.Warn("persisted averaging rejected", "averaging", n, "error", err)
	}
	if err := s.state.Set("averaging", int64(s.spec.Averaging())); err != nil {
		s.logger.Warn("storing averaging failed", "error", err)
	}
}

// Measure implements daemon.Driver: one exposure, polled until the
// spectrum is available.
func (s *Sensor) Measure(ctx context.Context) (map[string]any, error) {
	spec := s.Spectrometer()
	if spec == nil {
		return nil, daemon.ErrNotStarted
	}

	if err := spec.StartExposure(ctx, 1); err != nil {
		return nil, classify(err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		n, err := spec.AvailableSpectra(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.abandon(spec)
				return nil, ctx.Err()
			}
			return nil, classify(err)
		}
		if n > 0 {
			break
		}
		select {
		case <-ctx.Done():
			s.abandon(spec)
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	data, err := spec.SpectrumData(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return map[string]any{ChannelName: data.Spectrum}, nil
}

// abandon cancels a pending exposure after the measurement context ended.
func (s *Sensor) abandon(spec *qseries.Spectrometer) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := spec.CancelExposure(ctx); err != nil {
		s.logger.Warn("cancelling exposure failed", "error", err)
	}
}

// Channels implements daemon.Driver.
func (s *Sensor) Channels() []daemon.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return []daemon.Channel{{
		Name:     ChannelName,
		Shape:    []int{len(s.wavelengths)},
		Mappings: []string{MappingName},
	}}
}

// Mappings implements daemon.Driver.
func (s *Sensor) Mappings() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{MappingName: append([]float64(nil), s.wavelengths...)}
}

// Identity implements daemon.Identifier.
func (s *Sensor) Identity() daemon.Identity {
	id := daemon.Identity{Make: Make}
	if spec := s.Spectrometer(); spec != nil {
		info := spec.Info()
		id.Model = info.Model()
		id.Serial = info.Serial
	}
	return id
}

// Close implements daemon.Driver.
func (s *Sensor) Close() error {
	s.mu.Lock()
	spec := s.spec
	s.mu.Unlock()
	if spec == nil {
		return nil
	}
	return spec.Close()
}

// classify wraps driver errors with the daemon sentinel that selects
// their wire status.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, qseries.ErrExposureTooLarge),
		errors.Is(err, qseries.ErrExposureTooSmall),
		errors.Is(err, qseries.ErrAveraging),
		errors.Is(err, qseries.ErrPinRange):
		return fmt.Errorf("%w: %w", model.ErrOutOfRange, err)
	case errors.Is(err, qseries.ErrNotIdle):
		return fmt.Errorf("%w: %w", daemon.ErrBusy, err)
	case errors.Is(err, qseries.ErrFirmwareUnsupported):
		return fmt.Errorf("%w: %w", daemon.ErrNotSupported, err)
	default:
		return fmt.Errorf("%w: %w", daemon.ErrDevice, err)
	}
}

var (
	_ daemon.Driver     = (*Sensor)(nil)
	_ daemon.Identifier = (*Sensor)(nil)
)
