package qseries_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries/mocks"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries/sim"
	"github.com/yaq-go/yaqd-rgb/pkg/version"
)

func quietConfig() qseries.Config {
	return qseries.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func openSim(t *testing.T, cfg sim.Config) (*qseries.Spectrometer, *sim.Device) {
	t.Helper()
	dev := sim.New(cfg)
	s := qseries.New(dev, dev.Info(), quietConfig())
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, dev
}

func fastConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.PixelCount = 64
	cfg.TimeScale = 0
	return cfg
}

func TestOpenReadsDescription(t *testing.T) {
	cfg := fastConfig()
	s, _ := openSim(t, cfg)

	assert.True(t, s.IsOpen())
	assert.Equal(t, uint32(0x276E0208), s.ModelID())
	assert.Equal(t, cfg.Firmware, s.Firmware())
	assert.Equal(t, 64, s.PixelCount())
	assert.Equal(t, 65535, s.MaxDataValue())
	assert.InDelta(t, 0.1, s.ExposureTime(), 1e-12)

	lo, hi := s.ExposureLimits()
	assert.InDelta(t, 10e-6, lo, 1e-12)
	assert.InDelta(t, 10.0, hi, 1e-12)
	assert.Equal(t, 1, s.Averaging())
	assert.Equal(t, 1000, s.MaxAveraging())
	assert.True(t, s.FactoryCalibrationAvailable())
	assert.True(t, s.TriggerRisingEdge())
	assert.Equal(t, qseries.TriggerFreeRunningEnd, s.TriggerOption())
}

func TestOpenRejectsOldFirmware(t *testing.T) {
	tests := []struct {
		name string
		fw   version.Firmware
		want error
	}{
		{"bootloader", version.Firmware{Major: 0, Minor: 0, Patch: 9, Build: 0}, qseries.ErrBootloader},
		{"too old", version.Firmware{Major: 2, Minor: 0, Patch: 6, Build: 0}, qseries.ErrFirmwareTooOld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig()
			cfg.Firmware = tt.fw
			dev := sim.New(cfg)
			s := qseries.New(dev, dev.Info(), quietConfig())

			err := s.Open(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, s.IsOpen())
		})
	}
}

func TestClosedSpectrometer(t *testing.T) {
	s, _ := openSim(t, fastConfig())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, qseries.StatusClosed, st)

	_, err = s.AvailableSpectra(context.Background())
	assert.ErrorIs(t, err, qseries.ErrClosed)
}

func TestSetExposureTime(t *testing.T) {
	ctx := context.Background()
	s, _ := openSim(t, fastConfig())

	require.NoError(t, s.SetExposureTime(ctx, 0.25))
	assert.InDelta(t, 0.25, s.ExposureTime(), 1e-12)

	err := s.SetExposureTime(ctx, 11)
	assert.ErrorIs(t, err, qseries.ErrExposureTooLarge)
	err = s.SetExposureTime(ctx, 1e-6)
	assert.ErrorIs(t, err, qseries.ErrExposureTooSmall)
	err = s.SetExposureTime(ctx, math.NaN())
	assert.ErrorIs(t, err, qseries.ErrExposureTooSmall)
	assert.InDelta(t, 0.25, s.ExposureTime(), 1e-12)
}

func TestSetExposureTimeRequiresIdle(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.TimeScale = 1
	s, _ := openSim(t, cfg)

	require.NoError(t, s.StartExposure(ctx, qseries.ContinuousLatest))
	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, qseries.StatusTakingSpectrum, st)

	err = s.SetExposureTime(ctx, 0.2)
	assert.ErrorIs(t, err, qseries.ErrNotIdle)

	require.NoError(t, s.CancelExposure(ctx))
	require.NoError(t, s.SetExposureTime(ctx, 0.2))
}

func TestSetAveraging(t *testing.T) {
	ctx := context.Background()
	s, _ := openSim(t, fastConfig())

	require.NoError(t, s.SetAveraging(ctx, 10))
	assert.Equal(t, 10, s.Averaging())
	assert.ErrorIs(t, s.SetAveraging(ctx, 0), qseries.ErrAveraging)
	assert.ErrorIs(t, s.SetAveraging(ctx, 1001), qseries.ErrAveraging)
	assert.Equal(t, 10, s.Averaging())
}

func TestAcquireSpectrum(t *testing.T) {
	ctx := context.Background()
	s, _ := openSim(t, fastConfig())

	require.NoError(t, s.StartExposure(ctx, 2))
	n, err := s.AvailableSpectra(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := s.SpectrumData(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Spectrum, 64)
	assert.InDelta(t, 0.1, data.ExposureTime, 1e-12)
	assert.Equal(t, 1, data.Averaging)
	assert.Equal(t, qseries.UnitADCValues, data.IntensityUnit)
	assert.Greater(t, s.LoadLevel(), 0.0)

	n, err = s.AvailableSpectra(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, qseries.StatusIdle, st)
}

func TestSpectrumScalesWithExposure(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.Noise = 0
	cfg.Baseline = 0
	cfg.PixelCount = 2500
	s, dev := openSim(t, cfg)

	peak := func() float64 {
		require.NoError(t, s.StartExposure(ctx, 1))
		data, err := s.SpectrumData(ctx)
		require.NoError(t, err)
		m := 0.0
		for _, v := range data.Spectrum {
			m = max(m, v)
		}
		return m
	}

	require.NoError(t, s.SetExposureTime(ctx, 0.01))
	short := peak()
	require.NoError(t, s.SetExposureTime(ctx, 0.02))
	long := peak()
	assert.InDelta(t, 2.0, long/short, 0.01)
	assert.NotEmpty(t, dev.Wavelengths())
}

func TestWavelengths(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	s, dev := openSim(t, cfg)

	w, err := s.Wavelengths(ctx)
	require.NoError(t, err)
	require.Len(t, w, 64)
	want := dev.Wavelengths()
	for i := range w {
		assert.InDelta(t, want[i], w[i], 1e-3)
	}

	coeff, err := s.WavelengthCoefficients(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 225.0, coeff[0], 1e-4)

	nl, err := s.NonlinearityCoefficients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0}, nl)
}

func TestWavelengthsOldFirmware(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.Firmware = version.Firmware{Major: 2, Minor: 0, Patch: 9, Build: 0}
	s, _ := openSim(t, cfg)

	w, err := s.Wavelengths(ctx)
	require.NoError(t, err)
	require.Len(t, w, 64)
	assert.Equal(t, 1.0, w[0])
	assert.Equal(t, 2.0, w[1])

	_, err = s.WavelengthCoefficients(ctx)
	assert.ErrorIs(t, err, qseries.ErrFirmwareUnsupported)
}

func TestTemperature(t *testing.T) {
	s, dev := openSim(t, fastConfig())
	dev.SetTemperature(-40)

	temp, err := s.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -40.0, temp, 1e-6)
}

func TestDeviceErrorPropagates(t *testing.T) {
	ctx := context.Background()
	s, dev := openSim(t, fastConfig())
	dev.InjectError(qseries.CmdStartExposure, qseries.RetInternalError)

	err := s.StartExposure(ctx, 1)
	var de *qseries.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, qseries.RetInternalError, de.Code)

	dev.InjectError(qseries.CmdStartExposure, qseries.RetOK)
	assert.NoError(t, s.StartExposure(ctx, 1))
}

func TestIOAndTrigger(t *testing.T) {
	ctx := context.Background()
	s, _ := openSim(t, fastConfig())

	require.NoError(t, s.SetIOPin(ctx, 2, true))
	cfg, err := s.IOPinConfiguration(2)
	require.NoError(t, err)
	assert.Equal(t, qseries.IOOutputConstantHigh, cfg)

	assert.ErrorIs(t, s.SetIOPin(ctx, 4, true), qseries.ErrPinRange)
	_, err = s.IOPinConfiguration(-1)
	assert.ErrorIs(t, err, qseries.ErrPinRange)

	high, err := s.IOPin(ctx, 0)
	require.NoError(t, err)
	assert.False(t, high)

	require.NoError(t, s.SetTriggerSource(ctx, 1))
	require.NoError(t, s.SetTriggerOption(ctx, qseries.TriggerHardware))
	require.NoError(t, s.SetTriggerRisingEdge(ctx, false))
	require.NoError(t, s.SetExternalTrigger(ctx, true))
	assert.Equal(t, 1, s.TriggerSource())
	assert.Equal(t, qseries.TriggerHardware, s.TriggerOption())
	assert.False(t, s.TriggerRisingEdge())
	assert.True(t, s.ExternalTrigger())
}

func TestProcessingSteps(t *testing.T) {
	ctx := context.Background()
	s, _ := openSim(t, fastConfig())

	assert.Equal(t, s.DefaultProcessingSteps(), s.ProcessingSteps())
	require.NoError(t, s.SetProcessingSteps(ctx, qseries.StepAdjustOffset|0x8000))
	assert.Equal(t, qseries.StepAdjustOffset, s.ProcessingSteps())
	assert.Zero(t, s.AvailableProcessingSteps()&0x8000)
}

func TestHardwareVersion(t *testing.T) {
	s, _ := openSim(t, fastConfig())
	hw, err := s.HardwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", hw)
}

func TestParameterReset(t *testing.T) {
	ctx := context.Background()
	s, _ := openSim(t, fastConfig())
	require.NoError(t, s.SetAveraging(ctx, 5))
	require.NoError(t, s.ParameterReset(ctx))
	assert.False(t, s.IsOpen())
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	a := sim.New(fastConfig())
	cfgB := fastConfig()
	cfgB.Serial = "SIM00002"
	cfgB.ProductID = qseries.ProductQred
	b := sim.New(cfgB)
	e := sim.NewEnumerator(a, b)

	s, err := qseries.Connect(ctx, e, "SIM00002", quietConfig())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "SIM00002", s.Info().Serial)
	assert.Equal(t, "Qred", s.Info().Model())

	_, err = qseries.Connect(ctx, e, "NOPE", quietConfig())
	assert.ErrorIs(t, err, qseries.ErrNoDevice)
}

func TestSearchFiltersVendor(t *testing.T) {
	ctx := context.Background()
	e := mocks.NewMockEnumerator(t)
	e.EXPECT().List(mock.Anything).Return([]qseries.DeviceInfo{
		{VendorID: 0x1234, Serial: "A"},
		{VendorID: qseries.VendorID, ProductID: qseries.ProductQmini, Serial: "B"},
		{VendorID: qseries.VendorID, ProductID: qseries.ProductQwave, Serial: "C"},
	}, nil)

	all, err := qseries.Search(ctx, e, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := qseries.Search(ctx, e, "C")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Qwave", one[0].Model())

	_, err = qseries.Search(ctx, e, "A")
	assert.ErrorIs(t, err, qseries.ErrNoDevice)
}

// scripted answers every request from a table keyed by command.
func scripted(t *testing.T, answers map[qseries.Command][]byte) *mocks.MockTransport {
	tr := mocks.NewMockTransport(t)
	tr.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		func(_ context.Context, req []byte) ([]byte, error) {
			cmd, _, err := qseries.DecodeRequest(req)
			if err != nil {
				return nil, err
			}
			if rx, ok := answers[cmd]; ok {
				return rx, nil
			}
			return qseries.EncodeResponse(qseries.RetOK, qseries.AppendInt32(nil, 0)), nil
		}).Maybe()
	tr.EXPECT().Close().Return(nil).Maybe()
	return tr
}

func intResp(v int32) []byte {
	return qseries.EncodeResponse(qseries.RetOK, qseries.AppendInt32(nil, v))
}

func TestMockTransportOpen(t *testing.T) {
	tr := scripted(t, map[qseries.Command][]byte{
		qseries.CmdGetDeviceID:        intResp(0x276E0209),
		qseries.CmdGetSoftwareVersion: intResp(int32(version.Firmware{Major: 2, Minor: 1, Patch: 0, Build: 1}.Packed())),
		qseries.CmdGetPixelCount:      intResp(4),
		qseries.CmdGetMaxAveraging:    intResp(1),
		qseries.CmdGetAveraging:       intResp(1),
		qseries.CmdGetMinExposureTime: intResp(100),
		qseries.CmdGetMaxExposureTime: intResp(5_000_000),
		qseries.CmdGetExposureTime:    intResp(1000),
		qseries.CmdInitialize:         qseries.EncodeResponse(qseries.RetOK, nil),
		qseries.CmdBye:                qseries.EncodeResponse(qseries.RetOK, nil),
		qseries.CmdGetWavelengths:     qseries.EncodeResponse(qseries.RetOK, qseries.AppendFloat32s(nil, 400, 401, 402, 403)),
		qseries.CmdGetCalibrationData: qseries.EncodeResponse(qseries.RetOK, make([]byte, 8)),
	})

	var events []log.Event
	cfg := quietConfig()
	cfg.ProtocolLogger = logFunc(func(e log.Event) { events = append(events, e) })
	cfg.DaemonName = "qmini"

	s := qseries.New(tr, qseries.DeviceInfo{Serial: "X"}, cfg)
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, uint32(0x276E0209), s.ModelID())
	assert.InDelta(t, 0.001, s.ExposureTime(), 1e-12)
	assert.False(t, s.FactoryCalibrationAvailable())

	w, err := s.Wavelengths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{400, 401, 402, 403}, w)

	require.NotEmpty(t, events)
	assert.Equal(t, log.LayerDevice, events[0].Layer)
	assert.Equal(t, uint32(qseries.CmdGetDeviceID), events[0].Device.Command)
	assert.Equal(t, "qmini", events[0].DaemonName)

	require.NoError(t, s.Close())
}

func TestMockTransportWriteRejectsPayload(t *testing.T) {
	tr := scripted(t, map[qseries.Command][]byte{
		qseries.CmdGetSoftwareVersion: intResp(int32(version.MinSupported.Packed())),
		qseries.CmdGetMaxAveraging:    intResp(1),
		qseries.CmdInitialize:         intResp(7),
	})
	s := qseries.New(tr, qseries.DeviceInfo{}, quietConfig())

	err := s.Open(context.Background())
	assert.ErrorIs(t, err, qseries.ErrUnexpectedLength)
}

func TestMockTransportIOError(t *testing.T) {
	tr := mocks.NewMockTransport(t)
	ioErr := errors.New("usb: timeout")
	tr.EXPECT().Exchange(mock.Anything, mock.Anything).Return(nil, ioErr).Once()
	tr.EXPECT().Exchange(mock.Anything, mock.Anything).Return(qseries.EncodeResponse(qseries.RetOK, nil), nil).Maybe()
	tr.EXPECT().Close().Return(nil).Once()

	s := qseries.New(tr, qseries.DeviceInfo{}, quietConfig())
	err := s.Open(context.Background())
	assert.ErrorIs(t, err, ioErr)
	assert.False(t, qseries.IsDeviceError(err))
}

func TestContinuousLatestKeepsOne(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.TimeScale = 0.01
	s, _ := openSim(t, cfg)

	require.NoError(t, s.StartExposure(ctx, qseries.ContinuousLatest))
	time.Sleep(20 * time.Millisecond)

	n, err := s.AvailableSpectra(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, s.CancelExposure(ctx))
}

type logFunc func(log.Event)

func (f logFunc) Log(e log.Event) { f(e) }
