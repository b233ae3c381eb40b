package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/config"
	"github.com/yaq-go/yaqd-rgb/pkg/daemon"
	"github.com/yaq-go/yaqd-rgb/pkg/discovery"
	"github.com/yaq-go/yaqd-rgb/pkg/discovery/mocks"
	"github.com/yaq-go/yaqd-rgb/pkg/model"
	"github.com/yaq-go/yaqd-rgb/pkg/persistence"
	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/transport"
	"github.com/yaq-go/yaqd-rgb/pkg/version"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// fakeDriver answers the rgb-qmini messages from daemon state.
type fakeDriver struct {
	state *model.State

	initExposure float64
	skip         string
	measureErr   error
	gate         chan struct{}

	measures atomic.Int32
	closed   atomic.Bool
}

func (f *fakeDriver) Init(ctx context.Context, state *model.State) error {
	f.state = state
	f.initExposure, _ = state.Float("exposure_time")
	return nil
}

func (f *fakeDriver) Handlers() map[string]model.MessageHandler {
	h := map[string]model.MessageHandler{
		"set_exposure_time": func(ctx context.Context, params map[string]any) (any, error) {
			return nil, f.state.Set("exposure_time", params["exposure_time"])
		},
		"get_exposure_time": func(ctx context.Context, params map[string]any) (any, error) {
			return f.state.Float("exposure_time")
		},
		"get_exposure_time_units": func(ctx context.Context, params map[string]any) (any, error) {
			return "s", nil
		},
		"get_exposure_time_limits": func(ctx context.Context, params map[string]any) (any, error) {
			return []float64{1e-5, 10}, nil
		},
		"set_averaging": func(ctx context.Context, params map[string]any) (any, error) {
			return nil, f.state.Set("averaging", params["averaging"])
		},
		"get_averaging": func(ctx context.Context, params map[string]any) (any, error) {
			return f.state.Int("averaging")
		},
		"get_averaging_units": func(ctx context.Context, params map[string]any) (any, error) {
			return nil, nil
		},
		"get_averaging_limits": func(ctx context.Context, params map[string]any) (any, error) {
			return []int64{1, 1000}, nil
		},
		"get_temperature": func(ctx context.Context, params map[string]any) (any, error) {
			return nil, errors.Join(daemon.ErrDevice, errors.New("usb timeout"))
		},
		"get_firmware_version": func(ctx context.Context, params map[string]any) (any, error) {
			return "2.1.4.0", nil
		},
	}
	delete(h, f.skip)
	return h
}

func (f *fakeDriver) Measure(ctx context.Context) (map[string]any, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.measures.Add(1)
	if f.measureErr != nil {
		return nil, f.measureErr
	}
	return map[string]any{"intensities": []float64{1, 2, 3}}, nil
}

func (f *fakeDriver) Channels() []daemon.Channel {
	return []daemon.Channel{{Name: "intensities", Shape: []int{3}, Mappings: []string{"wavelengths"}}}
}

func (f *fakeDriver) Mappings() map[string]any {
	return map[string]any{"wavelengths": []float64{400, 500, 600}}
}

func (f *fakeDriver) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeDriver) Identity() daemon.Identity {
	return daemon.Identity{Make: "RGB Photonics", Model: "Qmini", Serial: "QM-0001"}
}

func testConfig(t *testing.T) daemon.Config {
	t.Helper()
	proto, err := protocol.Default()
	require.NoError(t, err)
	return daemon.Config{
		Protocol: proto,
		Daemon: &config.Daemon{
			Name:     "qmini",
			Port:     39876,
			Enable:   true,
			LogLevel: "info",
			Raw:      map[string]any{"port": int64(39876)},
		},
		ConfigPath: "/etc/yaqd/rgb-qmini/config.toml",
		Address:    "127.0.0.1:0",
	}
}

func startDaemon(t *testing.T, cfg daemon.Config, drv daemon.Driver) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, drv)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { d.Stop() })
	return d
}

func dial(t *testing.T, d *daemon.Daemon) *transport.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, d.Addr().String(), transport.ClientConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func call(t *testing.T, c *transport.Client, method string, params map[string]any) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Call(ctx, method, params)
}

func statusOf(t *testing.T, err error) wire.Status {
	t.Helper()
	var respErr *wire.ResponseError
	require.ErrorAs(t, err, &respErr)
	return respErr.Status
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig(t)

	_, err := daemon.New(daemon.Config{}, &fakeDriver{})
	assert.ErrorIs(t, err, daemon.ErrInvalidConfig)

	_, err = daemon.New(cfg, nil)
	assert.ErrorIs(t, err, daemon.ErrInvalidConfig)

	raw, err := protocol.Parse(protocol.DefaultTOML())
	require.NoError(t, err)
	cfg.Protocol = raw
	_, err = daemon.New(cfg, &fakeDriver{})
	assert.ErrorIs(t, err, daemon.ErrInvalidConfig, "unexpanded protocol")
}

func TestStartRequiresEveryHandler(t *testing.T) {
	drv := &fakeDriver{skip: "get_temperature"}
	d, err := daemon.New(testConfig(t), drv)
	require.NoError(t, err)

	err = d.Start(context.Background())
	assert.ErrorIs(t, err, daemon.ErrUnhandled)
	assert.ErrorContains(t, err, "get_temperature")
	assert.True(t, drv.closed.Load())
	assert.Equal(t, daemon.StateStopped, d.Lifecycle())
}

func TestStartTwice(t *testing.T) {
	d := startDaemon(t, testConfig(t), &fakeDriver{})
	assert.Equal(t, daemon.StateRunning, d.Lifecycle())
	assert.ErrorIs(t, d.Start(context.Background()), daemon.ErrAlreadyStarted)
}

func TestExposureTimeOverNetwork(t *testing.T) {
	d := startDaemon(t, testConfig(t), &fakeDriver{})
	c := dial(t, d)

	v, err := call(t, c, "get_exposure_time", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.1, v)

	units, err := call(t, c, "get_exposure_time_units", nil)
	require.NoError(t, err)
	assert.Equal(t, "s", units)

	limits, err := call(t, c, "get_exposure_time_limits", nil)
	require.NoError(t, err)
	l, err := model.LimitsFromValue(limits)
	require.NoError(t, err)
	assert.LessOrEqual(t, l.Min, l.Max)
	assert.True(t, l.Contains(0.1))

	_, err = call(t, c, "set_exposure_time", map[string]any{"exposure_time": 0.5})
	require.NoError(t, err)
	v, err = call(t, c, "get_exposure_time", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	_, err = call(t, c, "set_exposure_time", map[string]any{"exposure_time": 20.0})
	assert.Equal(t, wire.StatusOutOfRange, statusOf(t, err))
	v, err = call(t, c, "get_exposure_time", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v, "rejected value must not change state")
}

func TestErrorStatuses(t *testing.T) {
	d := startDaemon(t, testConfig(t), &fakeDriver{})
	c := dial(t, d)

	_, err := call(t, c, "get_gain", nil)
	assert.Equal(t, wire.StatusUnknownMessage, statusOf(t, err))

	_, err = call(t, c, "set_exposure_time", map[string]any{"exposure_time": "fast"})
	assert.Equal(t, wire.StatusInvalidParameter, statusOf(t, err))

	_, err = call(t, c, "set_exposure_time", nil)
	assert.Equal(t, wire.StatusInvalidParameter, statusOf(t, err))

	_, err = call(t, c, "get_temperature", nil)
	assert.Equal(t, wire.StatusDeviceError, statusOf(t, err))
}

func TestIsDaemonMessages(t *testing.T) {
	d := startDaemon(t, testConfig(t), &fakeDriver{})
	ctx := context.Background()

	id, err := d.Invoke(ctx, "id", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":   "qmini",
		"kind":   "rgb-qmini",
		"make":   "RGB Photonics",
		"model":  "Qmini",
		"serial": "QM-0001",
	}, id)

	traits, err := d.Invoke(ctx, "get_traits", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"has-mapping", "has-measure-trigger", "is-sensor", "is-daemon"}, traits)

	v, err := d.Invoke(ctx, "get_version", nil)
	require.NoError(t, err)
	assert.Equal(t, version.Current, v)

	path, err := d.Invoke(ctx, "get_config_filepath", nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/yaqd/rgb-qmini/config.toml", path)

	cfg, err := d.Invoke(ctx, "get_config", nil)
	require.NoError(t, err)
	assert.Contains(t, cfg, "port = 39876")
	assert.Contains(t, cfg, "loop_at_startup = false")

	state, err := d.Invoke(ctx, "get_state", nil)
	require.NoError(t, err)
	assert.Contains(t, state, "exposure_time = 0.1")

	busy, err := d.Invoke(ctx, "busy", nil)
	require.NoError(t, err)
	assert.Equal(t, false, busy)
}

func TestConfigIdentityWins(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Model = "Qmini VIS"
	d := startDaemon(t, cfg, &fakeDriver{})

	id, err := d.Invoke(context.Background(), "id", nil)
	require.NoError(t, err)
	assert.Equal(t, "Qmini VIS", id.(map[string]any)["model"])
	assert.Equal(t, "QM-0001", id.(map[string]any)["serial"])
}

func TestSensorAndMappingMessages(t *testing.T) {
	d := startDaemon(t, testConfig(t), &fakeDriver{})
	ctx := context.Background()

	names, err := d.Invoke(ctx, "get_channel_names", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"intensities"}, names)

	units, err := d.Invoke(ctx, "get_channel_units", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"intensities": nil}, units)

	shapes, err := d.Invoke(ctx, "get_channel_shapes", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"intensities": []int{3}}, shapes)

	cm, err := d.Invoke(ctx, "get_channel_mappings", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"intensities": []string{"wavelengths"}}, cm)

	mappings, err := d.Invoke(ctx, "get_mappings", nil)
	require.NoError(t, err)
	assert.Contains(t, mappings, "wavelengths")

	mid, err := d.Invoke(ctx, "get_mapping_id", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mid)

	d.MappingsChanged()
	mid, err = d.Invoke(ctx, "get_mapping_id", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mid)
}

func waitIdle(t *testing.T, d *daemon.Daemon) {
	t.Helper()
	require.Eventually(t, func() bool { return !d.Busy() }, 5*time.Second, 5*time.Millisecond)
}

func TestMeasure(t *testing.T) {
	d := startDaemon(t, testConfig(t), &fakeDriver{})
	ctx := context.Background()

	measured, err := d.Invoke(ctx, "get_measured", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"measurement_id": int64(0)}, measured)

	id, err := d.Invoke(ctx, "measure", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	waitIdle(t, d)

	measured, err = d.Invoke(ctx, "get_measured", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"measurement_id": int64(1),
		"intensities":    []float64{1, 2, 3},
	}, measured)

	id, err = d.Invoke(ctx, "measure", map[string]any{"loop": false})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	waitIdle(t, d)
}

func TestMeasureWhileBusy(t *testing.T) {
	drv := &fakeDriver{gate: make(chan struct{})}
	d := startDaemon(t, testConfig(t), drv)
	ctx := context.Background()

	id, err := d.Invoke(ctx, "measure", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.True(t, d.Busy())

	id, err = d.Invoke(ctx, "measure", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id, "a second trigger joins the pending measurement")

	drv.gate <- struct{}{}
	waitIdle(t, d)
	assert.Equal(t, int32(1), drv.measures.Load())
}

func TestMeasureLoop(t *testing.T) {
	drv := &fakeDriver{gate: make(chan struct{})}
	d := startDaemon(t, testConfig(t), drv)
	ctx := context.Background()

	_, err := d.Invoke(ctx, "measure", map[string]any{"loop": true})
	require.NoError(t, err)
	for range 3 {
		drv.gate <- struct{}{}
	}
	// Once the third result is visible the loop has committed to a fourth.
	require.Eventually(t, func() bool {
		measured, err := d.Invoke(ctx, "get_measured", nil)
		return err == nil && measured.(map[string]any)["measurement_id"] == int64(3)
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, d.Busy())

	_, err = d.Invoke(ctx, "stop_looping", nil)
	require.NoError(t, err)
	drv.gate <- struct{}{}
	waitIdle(t, d)

	measured, err := d.Invoke(ctx, "get_measured", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), measured.(map[string]any)["measurement_id"])
}

func TestMeasureFailureEndsLoop(t *testing.T) {
	drv := &fakeDriver{measureErr: errors.New("spectrum read failed")}
	d := startDaemon(t, testConfig(t), drv)

	_, err := d.Invoke(context.Background(), "measure", map[string]any{"loop": true})
	require.NoError(t, err)
	waitIdle(t, d)
	assert.Equal(t, int32(1), drv.measures.Load())

	measured, err := d.Invoke(context.Background(), "get_measured", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), measured.(map[string]any)["measurement_id"])
}

func TestStopCancelsMeasurement(t *testing.T) {
	drv := &fakeDriver{gate: make(chan struct{})}
	d, err := daemon.New(testConfig(t), drv)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	_, err = d.Invoke(context.Background(), "measure", map[string]any{"loop": true})
	require.NoError(t, err)

	require.NoError(t, d.Stop())
	assert.False(t, d.Busy())
	assert.True(t, drv.closed.Load())
	assert.Equal(t, daemon.StateStopped, d.Lifecycle())
	assert.NoError(t, d.Stop(), "second stop is a no-op")

	_, err = d.Invoke(context.Background(), "busy", nil)
	assert.ErrorIs(t, err, daemon.ErrNotStarted)
}

func TestLoopAtStartup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.LoopAtStartup = true
	drv := &fakeDriver{gate: make(chan struct{})}
	d := startDaemon(t, cfg, drv)

	assert.True(t, d.Busy())
	drv.gate <- struct{}{}
	drv.gate <- struct{}{}
	assert.True(t, d.Busy())
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	store := persistence.NewStateStore(filepath.Join(t.TempDir(), "qmini-state.toml"))
	cfg := testConfig(t)
	cfg.StateStore = store

	first := &fakeDriver{}
	d, err := daemon.New(cfg, first)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, 0.1, first.initExposure)

	_, err = d.Invoke(context.Background(), "set_exposure_time", map[string]any{"exposure_time": 0.25})
	require.NoError(t, err)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0.25, saved["exposure_time"], "every mutation is saved")
	require.NoError(t, d.Stop())

	second := &fakeDriver{}
	d = startDaemon(t, cfg, second)
	assert.Equal(t, 0.25, second.initExposure)

	v, err := d.Invoke(context.Background(), "get_exposure_time", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
}

func TestPropertiesBound(t *testing.T) {
	d := startDaemon(t, testConfig(t), &fakeDriver{})
	ctx := context.Background()

	p, ok := d.Property("exposure_time")
	require.True(t, ok)
	assert.True(t, p.Writable())

	units, err := p.Units(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s", units)

	err = p.Set(ctx, 11.0)
	assert.ErrorIs(t, err, model.ErrOutOfRange)
	assert.Equal(t, wire.StatusOutOfRange, daemon.StatusFor(err))

	require.NoError(t, p.Set(ctx, 2.0))
	v, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	avg, ok := d.Property("averaging")
	require.True(t, ok)
	assert.ErrorIs(t, avg.Set(ctx, int64(0)), model.ErrOutOfRange)
}

func TestShutdownWithRestart(t *testing.T) {
	drv := &fakeDriver{}
	d, err := daemon.New(testConfig(t), drv)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = d.Run(ctx)
	}()
	require.Eventually(t, func() bool { return d.Lifecycle() == daemon.StateRunning }, 5*time.Second, 5*time.Millisecond)

	c := dial(t, d)
	_, err = call(t, c, "shutdown", map[string]any{"restart": true})
	require.NoError(t, err)

	wg.Wait()
	assert.ErrorIs(t, runErr, daemon.ErrRestart)
	assert.True(t, drv.closed.Load())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d, err := daemon.New(testConfig(t), &fakeDriver{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	require.Eventually(t, func() bool { return d.Lifecycle() == daemon.StateRunning }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestAdvertisesWhileRunning(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.MatchedBy(func(info *discovery.DaemonInfo) bool {
		return info.Kind == "rgb-qmini" && info.Name == "qmini" && info.Model == "Qmini" &&
			info.Serial == "QM-0001" && info.Port != 0
	})).Return(nil).Once()
	adv.EXPECT().Stop("rgb-qmini:qmini").Return(nil).Once()

	cfg := testConfig(t)
	cfg.Daemon.Advertise = true
	cfg.Advertiser = adv

	d, err := daemon.New(cfg, &fakeDriver{})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop())
}

func TestAdvertiseDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Advertiser = mocks.NewMockAdvertiser(t)
	startDaemon(t, cfg, &fakeDriver{})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want wire.Status
	}{
		{nil, wire.StatusSuccess},
		{model.ErrMessageNotFound, wire.StatusUnknownMessage},
		{model.ErrOutOfRange, wire.StatusOutOfRange},
		{model.ErrInvalidParameters, wire.StatusInvalidParameter},
		{wire.ErrParamType, wire.StatusInvalidParameter},
		{daemon.ErrBusy, wire.StatusBusy},
		{daemon.ErrDevice, wire.StatusDeviceError},
		{context.DeadlineExceeded, wire.StatusDeviceError},
		{daemon.ErrNotSupported, wire.StatusNotSupported},
		{daemon.ErrShuttingDown, wire.StatusShuttingDown},
		{errors.New("boom"), wire.StatusInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, daemon.StatusFor(tt.err), "%v", tt.err)
	}
}

func TestLifecycleString(t *testing.T) {
	assert.Equal(t, "RUNNING", daemon.StateRunning.String())
	assert.Equal(t, "UNKNOWN", daemon.State(99).String())
}
