package qseries

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/version"
)

// CalibrationPageSize is the size of one calibration data page.
const CalibrationPageSize = 4096

// minCalibrationLength is the smallest plausible calibration record.
const minCalibrationLength = 128

// Temperatures outside this range are reported but probably bogus.
const (
	minPlausibleTemperature = -30.0
	maxPlausibleTemperature = 80.0
)

// Config configures a Spectrometer.
type Config struct {
	// Logger receives driver logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives one event per command and response
	// (optional).
	ProtocolLogger log.Logger

	// DaemonName tags protocol events (optional).
	DaemonName string
}

// Spectrometer drives a Qseries device over a Transport. All methods are
// safe for concurrent use; device access is serialised.
type Spectrometer struct {
	mu        sync.Mutex
	transport Transport
	info      DeviceInfo
	open      bool

	logger     *slog.Logger
	protoLog   log.Logger
	daemonName string

	modelID  uint32
	firmware version.Firmware

	pixelCount       int
	dataCount        int
	firstOffsetPixel int
	numOffsetPixels  int
	firstDarkPixel   int
	numDarkPixels    int
	firstRealPixel   int
	mirror           bool
	calibrPages      int
	userDataPages    int
	maxDataValue     int

	availableSteps ProcessingSteps
	defaultSteps   ProcessingSteps
	steps          ProcessingSteps

	minExposure  float64
	maxExposure  float64
	exposure     float64
	maxAveraging int
	averaging    int

	pinConfig     [NumIOPins]IOConfig
	triggerPin    int
	triggerRising bool
	triggerOption TriggerOption
	useTrigger    bool

	factoryCalibration bool
	coefficients       []float64
	loadLevel          float64
}

// New returns a Spectrometer talking over t. Call Open before use.
func New(t Transport, info DeviceInfo, cfg Config) *Spectrometer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Spectrometer{
		transport:     t,
		info:          info,
		logger:        logger.With("device", info.String()),
		protoLog:      cfg.ProtocolLogger,
		daemonName:    cfg.DaemonName,
		maxAveraging:  1,
		averaging:     1,
		triggerRising: true,
		coefficients:  []float64{1, 1, 0, 0},
		loadLevel:     -1,
	}
}

// Connect searches e for a device with the given serial (any device when
// serial is empty), opens a transport to the first match and opens the
// spectrometer.
func Connect(ctx context.Context, e Enumerator, serial string, cfg Config) (*Spectrometer, error) {
	devs, err := Search(ctx, e, serial)
	if err != nil {
		return nil, err
	}
	info := devs[0]

	t, err := e.Open(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", info, err)
	}

	s := New(t, info, cfg)
	if err := s.Open(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}
	return s, nil
}

// Open reads the device description and parameters and resets the
// acquisition state. The connection is closed again if anything fails.
func (s *Spectrometer) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("opening device connection")
	s.open = true

	if err := s.readDescription(ctx); err != nil {
		s.closeLocked()
		return err
	}

	s.logger.Info("device connection open",
		"model_id", fmt.Sprintf("0x%08X", s.modelID),
		"firmware", s.firmware.String(),
		"pixels", s.pixelCount)
	return nil
}

func (s *Spectrometer) readDescription(ctx context.Context) error {
	id, err := s.readInt(ctx, CmdGetDeviceID)
	if err != nil {
		return fmt.Errorf("reading model id: %w", err)
	}
	s.modelID = uint32(id)

	code, err := s.readInt(ctx, CmdGetSoftwareVersion)
	if err != nil {
		return fmt.Errorf("reading firmware version: %w", err)
	}
	s.firmware = version.FromPacked(uint32(code))
	if s.firmware.IsBootloader() {
		return ErrBootloader
	}
	if s.firmware.Less(version.MinSupported) {
		return fmt.Errorf("%w: %s < %s, please update the firmware", ErrFirmwareTooOld, s.firmware, version.MinSupported)
	}

	ints := []struct {
		cmd Command
		dst *int
	}{
		{CmdGetPixelCount, &s.pixelCount},
		{CmdGetDataCount, &s.dataCount},
		{CmdGetFirstOffsetPixel, &s.firstOffsetPixel},
		{CmdGetNumOffsetPixels, &s.numOffsetPixels},
		{CmdGetFirstDarkPixel, &s.firstDarkPixel},
		{CmdGetNumDarkPixels, &s.numDarkPixels},
		{CmdGetFirstRealPixel, &s.firstRealPixel},
		{CmdGetCalibrationDataNumPages, &s.calibrPages},
		{CmdGetUserDataNumPages, &s.userDataPages},
		{CmdGetMaxAveraging, &s.maxAveraging},
		{CmdGetAveraging, &s.averaging},
		{CmdGetMaxDataValue, &s.maxDataValue},
	}
	for _, r := range ints {
		v, err := s.readInt(ctx, r.cmd)
		if err != nil {
			return err
		}
		*r.dst = int(v)
	}

	mirror, err := s.readInt(ctx, CmdGetMirrorSpectrum)
	if err != nil {
		return err
	}
	s.mirror = mirror != 0

	steps := []struct {
		cmd Command
		dst *ProcessingSteps
	}{
		{CmdGetMaxProcessingSteps, &s.availableSteps},
		{CmdGetDefaultProcessingSteps, &s.defaultSteps},
		{CmdGetProcessingSteps, &s.steps},
	}
	for _, r := range steps {
		v, err := s.readInt(ctx, r.cmd)
		if err != nil {
			return err
		}
		*r.dst = ProcessingSteps(v)
	}

	times := []struct {
		cmd Command
		dst *float64
	}{
		{CmdGetMinExposureTime, &s.minExposure},
		{CmdGetMaxExposureTime, &s.maxExposure},
		{CmdGetExposureTime, &s.exposure},
	}
	for _, r := range times {
		v, err := s.readInt(ctx, r.cmd)
		if err != nil {
			return err
		}
		*r.dst = float64(v) / 1e6
	}

	if err := s.readPorts(ctx); err != nil {
		return err
	}
	if err := s.writeCommand(ctx, CmdInitialize); err != nil {
		return err
	}

	available, err := s.factoryCalibrationAvailable(ctx)
	if err != nil {
		s.logger.Warn("could not read factory calibration header", "error", err)
	}
	s.factoryCalibration = available
	return nil
}

func (s *Spectrometer) readPorts(ctx context.Context) error {
	pins, err := s.readInt(ctx, CmdGetPortConfig)
	if err != nil {
		return err
	}
	for i := range s.pinConfig {
		s.pinConfig[i] = IOConfig(uint32(pins) >> (8 * i))
	}

	trig, err := s.readInt(ctx, CmdGetTriggerConfiguration)
	if err != nil {
		return err
	}
	s.triggerOption, s.triggerRising, s.triggerPin = unpackTrigger(trig)

	enabled, err := s.readInt(ctx, CmdGetTriggerEnabled)
	if err != nil {
		return err
	}
	s.useTrigger = enabled != 0
	return nil
}

func (s *Spectrometer) factoryCalibrationAvailable(ctx context.Context) (bool, error) {
	page, err := s.readData(ctx, CmdGetCalibrationData, int32(s.calibrPages))
	if err != nil {
		return false, err
	}
	if len(page) < 4 {
		return false, nil
	}
	n := int(binary.LittleEndian.Uint32(page))
	return n >= minCalibrationLength && n <= CalibrationPageSize*s.calibrPages, nil
}

// Close sends Bye so the device can save power and releases the
// transport. Closing a closed spectrometer is a no-op.
func (s *Spectrometer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Spectrometer) closeLocked() error {
	if !s.open {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	if err := s.writeCommand(ctx, CmdBye); err != nil {
		s.logger.Debug("bye failed", "error", err)
	}
	s.open = false
	err := s.transport.Close()
	s.logger.Info("device connection closed")
	return err
}

// IsOpen reports whether the connection is open.
func (s *Spectrometer) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Info returns the USB identity of the device.
func (s *Spectrometer) Info() DeviceInfo { return s.info }

// ModelID returns the device model id (VID<<16 | PID).
func (s *Spectrometer) ModelID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

// Firmware returns the firmware version read at Open.
func (s *Spectrometer) Firmware() version.Firmware {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firmware
}

// PixelCount returns the number of values in a spectrum.
func (s *Spectrometer) PixelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pixelCount
}

// MaxDataValue returns the largest value a raw pixel can take.
func (s *Spectrometer) MaxDataValue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxDataValue
}

// FactoryCalibrationAvailable reports whether the device stores a factory
// calibration.
func (s *Spectrometer) FactoryCalibrationAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factoryCalibration
}

// LoadLevel returns the sensor load level of the most recent spectrum: 0
// is no signal, 1 the maximum for a good signal, above 1 overload. It is
// negative before the first spectrum.
func (s *Spectrometer) LoadLevel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLevel
}

// HardwareVersion returns the hardware revision as "a.b.c".
func (s *Spectrometer) HardwareVersion(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.readInt(ctx, CmdGetHardwareVersion)
	if err != nil {
		return "", err
	}
	u := uint32(v)
	return fmt.Sprintf("%d.%d.%d", uint8(u>>24), uint8(u>>16), uint8(u>>8)), nil
}

// Temperature returns the sensor temperature in °C.
func (s *Spectrometer) Temperature(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.readFloat(ctx, CmdGetTemperature)
	if err != nil {
		return 0, err
	}
	temp := float64(t)
	if temp < minPlausibleTemperature || temp > maxPlausibleTemperature {
		s.logger.Debug("device temperature does not seem to be correct", "celsius", temp)
	}
	return temp, nil
}

// DeviceReset resets the device to its power-on state. The connection is
// closed afterwards; the device re-enumerates and must be opened again.
func (s *Spectrometer) DeviceReset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireIdle(ctx); err != nil {
		return err
	}
	if err := s.writeCommand(ctx, CmdBye); err != nil {
		return err
	}
	if err := s.writeCommand(ctx, CmdSystemReset); err != nil {
		return err
	}
	s.open = false
	return s.transport.Close()
}

// ParameterReset restores the device's default parameters and closes the
// connection, since cached parameters are no longer valid.
func (s *Spectrometer) ParameterReset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireIdle(ctx); err != nil {
		return err
	}
	if err := s.writeCommand(ctx, CmdParameterReset); err != nil {
		return err
	}
	return s.closeLocked()
}

func (s *Spectrometer) requireIdle(ctx context.Context) error {
	st, err := s.status(ctx)
	if err != nil {
		return err
	}
	if st != StatusIdle {
		return fmt.Errorf("%w: %s", ErrNotIdle, st)
	}
	return nil
}

// exchange sends one request and returns the response payload. The caller
// holds s.mu.
func (s *Spectrometer) exchange(ctx context.Context, cmd Command, args ...int32) ([]byte, error) {
	if !s.open {
		return nil, ErrClosed
	}

	req := encodeRequest(cmd, args...)
	s.logDevice(log.DirectionOut, &log.DeviceEvent{Command: uint32(cmd), Args: args, Length: len(req)})

	start := time.Now()
	rx, err := s.transport.Exchange(ctx, req)
	if err != nil {
		s.logDeviceError(cmd, err)
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	elapsed := time.Since(start)

	ev := &log.DeviceEvent{Command: uint32(cmd), Length: len(rx), Duration: &elapsed}
	if len(rx) > 0 {
		code := rx[0]
		ev.ReturnCode = &code
	}
	s.logDevice(log.DirectionIn, ev)

	return decodeResponse(cmd, rx)
}

// writeCommand sends a command whose response carries no payload.
func (s *Spectrometer) writeCommand(ctx context.Context, cmd Command, args ...int32) error {
	s.logger.Debug("write command", "command", cmd.String(), "args", args)
	payload, err := s.exchange(ctx, cmd, args...)
	if err != nil {
		return err
	}
	if len(payload) != 0 {
		return fmt.Errorf("%s: %w: %d instead of 4 bytes received", cmd, ErrUnexpectedLength, len(payload)+4)
	}
	return nil
}

func (s *Spectrometer) readInt(ctx context.Context, cmd Command) (int32, error) {
	payload, err := s.exchange(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, err := payloadInt(cmd, payload)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("read integer", "command", cmd.String(), "value", v)
	return v, nil
}

func (s *Spectrometer) readFloat(ctx context.Context, cmd Command) (float32, error) {
	payload, err := s.exchange(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return payloadFloat(cmd, payload)
}

func (s *Spectrometer) readData(ctx context.Context, cmd Command, args ...int32) ([]byte, error) {
	payload, err := s.exchange(ctx, cmd, args...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("read data", "command", cmd.String(), "bytes", len(payload))
	return payload, nil
}

func (s *Spectrometer) logDevice(dir log.Direction, ev *log.DeviceEvent) {
	if s.protoLog == nil {
		return
	}
	s.protoLog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  dir,
		Layer:      log.LayerDevice,
		Category:   log.CategoryDevice,
		DaemonName: s.daemonName,
		Device:     ev,
	})
}

func (s *Spectrometer) logDeviceError(cmd Command, err error) {
	if s.protoLog == nil {
		return
	}
	s.protoLog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerDevice,
		Category:   log.CategoryError,
		DaemonName: s.daemonName,
		Error: &log.ErrorEventData{
			Layer:   log.LayerDevice,
			Message: err.Error(),
			Context: cmd.String(),
		},
	})
}

func micros(seconds float64) int32 {
	return int32(math.Round(seconds * 1e6))
}
