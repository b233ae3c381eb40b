package sim

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
)

func request(cmd qseries.Command, args ...int32) []byte {
	b := qseries.AppendInt32(nil, int32(cmd))
	for _, a := range args {
		b = qseries.AppendInt32(b, a)
	}
	return b
}

// exchange sends one request and splits the response into return code and
// payload.
func exchange(t *testing.T, d *Device, cmd qseries.Command, args ...int32) (qseries.ReturnCode, []byte) {
	t.Helper()
	rx, err := d.Exchange(context.Background(), request(cmd, args...))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rx), 4)
	return qseries.ReturnCode(rx[0]), rx[4:]
}

func exchangeInt(t *testing.T, d *Device, cmd qseries.Command) int32 {
	t.Helper()
	code, payload := exchange(t, d, cmd)
	require.Equal(t, qseries.RetOK, code)
	require.Len(t, payload, 4)
	return int32(binary.LittleEndian.Uint32(payload))
}

// withClock replaces the device clock and returns a function advancing it.
func withClock(d *Device) func(time.Duration) {
	now := time.Unix(1_000, 0)
	d.now = func() time.Time { return now }
	d.bootTime = now
	return func(dt time.Duration) { now = now.Add(dt) }
}

func TestSetExposureTimeLimits(t *testing.T) {
	cfg := DefaultConfig()
	d := New(cfg)

	tests := []struct {
		name string
		args []int32
		want qseries.ReturnCode
	}{
		{"below minimum", []int32{cfg.MinExposure - 1}, qseries.RetInvalidParameter},
		{"above maximum", []int32{cfg.MaxExposure + 1}, qseries.RetInvalidParameter},
		{"negative", []int32{-5}, qseries.RetInvalidParameter},
		{"missing argument", nil, qseries.RetMissingParameter},
		{"minimum", []int32{cfg.MinExposure}, qseries.RetOK},
		{"maximum", []int32{cfg.MaxExposure}, qseries.RetOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := exchange(t, d, qseries.CmdSetExposureTime, tt.args...)
			assert.Equal(t, tt.want, code)
		})
	}

	code, _ := exchange(t, d, qseries.CmdSetExposureTime, 250_000)
	require.Equal(t, qseries.RetOK, code)
	assert.EqualValues(t, 250_000, exchangeInt(t, d, qseries.CmdGetExposureTime))

	code, _ = exchange(t, d, qseries.CmdSetExposureTime, cfg.MaxExposure+1)
	assert.Equal(t, qseries.RetInvalidParameter, code)
	assert.EqualValues(t, 250_000, exchangeInt(t, d, qseries.CmdGetExposureTime))

	assert.Equal(t, cfg.MinExposure, exchangeInt(t, d, qseries.CmdGetMinExposureTime))
	assert.Equal(t, cfg.MaxExposure, exchangeInt(t, d, qseries.CmdGetMaxExposureTime))
}

func TestAcquisitionStatus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PixelCount = 64
	d := New(cfg)
	advance := withClock(d)

	assert.EqualValues(t, qseries.StatusIdle, exchangeInt(t, d, qseries.CmdGetStatus))

	code, _ := exchange(t, d, qseries.CmdStartExposure, 1)
	require.Equal(t, qseries.RetOK, code)
	assert.EqualValues(t, qseries.StatusTakingSpectrum, exchangeInt(t, d, qseries.CmdGetStatus))

	code, _ = exchange(t, d, qseries.CmdGetSpectrum)
	assert.Equal(t, qseries.RetInvalidOperation, code)

	// Default exposure is 100 ms.
	advance(150 * time.Millisecond)
	status := exchangeInt(t, d, qseries.CmdGetStatus)
	assert.EqualValues(t, qseries.StatusIdle, status&0xFF)
	assert.EqualValues(t, 1, status>>8, "one spectrum buffered")

	code, payload := exchange(t, d, qseries.CmdGetSpectrum)
	require.Equal(t, qseries.RetOK, code)
	assert.NotEmpty(t, payload)

	code, _ = exchange(t, d, qseries.CmdGetSpectrum)
	assert.Equal(t, qseries.RetInvalidOperation, code)
}

func TestSetExposureCancelsAcquisition(t *testing.T) {
	d := New(DefaultConfig())
	withClock(d)

	code, _ := exchange(t, d, qseries.CmdStartExposure, 3)
	require.Equal(t, qseries.RetOK, code)
	code, _ = exchange(t, d, qseries.CmdSetExposureTime, 50_000)
	require.Equal(t, qseries.RetOK, code)
	assert.EqualValues(t, qseries.StatusIdle, exchangeInt(t, d, qseries.CmdGetStatus))
}

func TestAmplitudeScalesWithExposure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PixelCount = 1000
	cfg.Noise = 0
	cfg.Baseline = 0
	cfg.Peaks = []Peak{{Center: 435.8, Width: 1.5, Amplitude: 250_000}}
	d := New(cfg)

	peak := func() float64 {
		m := float32(0)
		for _, v := range d.synthesize() {
			m = max(m, v)
		}
		return float64(m)
	}

	d.p.exposure = 100_000
	short := peak()
	d.p.exposure = 200_000
	long := peak()

	require.Greater(t, short, 0.0)
	assert.InDelta(t, 2.0, long/short, 1e-3)

	// Counts clip at the saturation value.
	d.p.exposure = 10_000_000
	assert.InDelta(t, float64(cfg.MaxDataValue), peak(), 1e-3)
}

func TestInjectedErrorAndClose(t *testing.T) {
	d := New(DefaultConfig())

	d.InjectError(qseries.CmdGetTemperature, qseries.RetInternalError)
	code, _ := exchange(t, d, qseries.CmdGetTemperature)
	assert.Equal(t, qseries.RetInternalError, code)

	d.InjectError(qseries.CmdGetTemperature, qseries.RetOK)
	code, _ = exchange(t, d, qseries.CmdGetTemperature)
	assert.Equal(t, qseries.RetOK, code)

	require.NoError(t, d.Close())
	_, err := d.Exchange(context.Background(), request(qseries.CmdGetStatus))
	assert.ErrorIs(t, err, ErrDisconnected)

	d.Reconnect()
	_, err = d.Exchange(context.Background(), request(qseries.CmdGetStatus))
	assert.NoError(t, err)
}
