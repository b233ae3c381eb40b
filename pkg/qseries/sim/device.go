package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
	"github.com/yaq-go/yaqd-rgb/pkg/version"
)

// ErrDisconnected is returned by Exchange after Close or a system reset.
var ErrDisconnected = errors.New("simulated device disconnected")

// Peak is one emission line in the synthetic spectrum.
type Peak struct {
	Center    float64 // nm
	Width     float64 // standard deviation, nm
	Amplitude float64 // counts per second of exposure
}

// Config describes the simulated device.
type Config struct {
	Serial    string
	ProductID uint16
	Firmware  version.Firmware
	Hardware  [3]uint8

	PixelCount   int
	MinExposure  int32 // µs
	MaxExposure  int32 // µs
	Exposure     int32 // µs, power-on value
	MaxAveraging int32
	MaxDataValue int32

	// Coefficients are the cubic wavelength calibration in nm.
	Coefficients [4]float64

	Baseline    float64 // counts
	Noise       float64 // standard deviation, counts
	Peaks       []Peak
	Temperature float32

	// FactoryCalibration stores a factory calibration record.
	FactoryCalibration bool
	CalibrationPages   int32

	// BufferSize is the FIFO depth for continuous exposure.
	BufferSize int

	// TimeScale multiplies simulated exposure durations; 0 completes
	// exposures immediately.
	TimeScale float64

	Seed uint64
}

// DefaultConfig returns a Qmini-like device with two peaks.
func DefaultConfig() Config {
	return Config{
		Serial:             "SIM00001",
		ProductID:          qseries.ProductQmini,
		Firmware:           version.Firmware{Major: 2, Minor: 1, Patch: 4, Build: 0},
		Hardware:           [3]uint8{1, 2, 0},
		PixelCount:         2500,
		MinExposure:        10,
		MaxExposure:        10_000_000,
		Exposure:           100_000,
		MaxAveraging:       1000,
		MaxDataValue:       65535,
		Coefficients:       [4]float64{225, 0.35, -1.2e-5, 0},
		Baseline:           1200,
		Noise:              8,
		Peaks:              []Peak{{Center: 435.8, Width: 1.5, Amplitude: 250_000}, {Center: 546.1, Width: 1.5, Amplitude: 400_000}},
		Temperature:        31.5,
		FactoryCalibration: true,
		CalibrationPages:   8,
		BufferSize:         16,
		TimeScale:          1,
		Seed:               1,
	}
}

type params struct {
	exposure      int32
	averaging     int32
	steps         int32
	portConfig    int32
	triggerConfig int32
	triggerOn     int32
}

// Device is a simulated spectrometer.
type Device struct {
	mu  sync.Mutex
	cfg Config
	rng *rand.Rand
	now func() time.Time

	p params

	connected bool
	injected  map[qseries.Command]qseries.ReturnCode

	// acquisition
	running   bool
	target    int32 // requested exposures, or a Continuous* value
	started   time.Time
	completed int64 // exposures finished since started
	buffer    [][]float32
	bootTime  time.Time
}

// New returns a simulated device in its power-on state.
func New(cfg Config) *Device {
	d := &Device{
		cfg:       cfg,
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)),
		now:       time.Now,
		connected: true,
		injected:  make(map[qseries.Command]qseries.ReturnCode),
	}
	d.bootTime = d.now()
	d.resetParams()
	return d
}

func (d *Device) resetParams() {
	d.p = params{
		exposure:      d.cfg.Exposure,
		averaging:     1,
		steps:         int32(d.defaultSteps()),
		triggerConfig: packTrigger(qseries.TriggerFreeRunningEnd, true, 0),
	}
}

func (d *Device) defaultSteps() qseries.ProcessingSteps {
	return qseries.StepAdjustOffset | qseries.StepCorrectNonlinearity | qseries.StepRemovePermanentBadPixels
}

func (d *Device) availableSteps() qseries.ProcessingSteps {
	return qseries.StepScaleTo16BitRange<<1 - 1
}

// Info describes the device the way an enumerator would.
func (d *Device) Info() qseries.DeviceInfo {
	return qseries.DeviceInfo{
		VendorID:     qseries.VendorID,
		ProductID:    d.cfg.ProductID,
		Serial:       d.cfg.Serial,
		Manufacturer: "RGB Photonics GmbH",
		Product:      qseries.DeviceInfo{ProductID: d.cfg.ProductID}.Model(),
		Path:         "sim",
	}
}

// Wavelengths returns the calibrated wavelength of every pixel.
func (d *Device) Wavelengths() []float64 {
	w, _ := qseries.Polynomial(d.cfg.Coefficients[:], d.cfg.PixelCount)
	return w
}

// InjectError makes every future cmd fail with code until cleared with
// RetOK.
func (d *Device) InjectError(cmd qseries.Command, code qseries.ReturnCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if code == qseries.RetOK {
		delete(d.injected, cmd)
		return
	}
	d.injected[cmd] = code
}

// SetTemperature changes the reported sensor temperature.
func (d *Device) SetTemperature(celsius float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.Temperature = celsius
}

// Reconnect makes a closed or reset device reachable again.
func (d *Device) Reconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
}

// Close implements qseries.Transport.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

// Exchange implements qseries.Transport.
func (d *Device) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrDisconnected
	}

	cmd, args, err := qseries.DecodeRequest(req)
	if err != nil {
		return qseries.EncodeResponse(qseries.RetCommunicationError, nil), nil
	}
	if code, ok := d.injected[cmd]; ok {
		return qseries.EncodeResponse(code, nil), nil
	}
	if d.cfg.Firmware.IsBootloader() && cmd != qseries.CmdGetDeviceID && cmd != qseries.CmdGetSoftwareVersion {
		return qseries.EncodeResponse(qseries.RetUnknownBootloaderCommandCode, nil), nil
	}

	d.advance()
	payload, code := d.handle(cmd, args)
	return qseries.EncodeResponse(code, payload), nil
}

func intPayload(v int32) []byte {
	return qseries.AppendInt32(nil, v)
}

func (d *Device) handle(cmd qseries.Command, args []int32) ([]byte, qseries.ReturnCode) {
	arg := func() (int32, bool) {
		if len(args) == 0 {
			return 0, false
		}
		return args[0], true
	}

	switch cmd {
	case qseries.CmdInitialize:
		d.stop()
		return nil, qseries.RetOK
	case qseries.CmdBye:
		return nil, qseries.RetOK
	case qseries.CmdSystemReset:
		d.stop()
		d.resetParams()
		d.connected = false
		return nil, qseries.RetOK
	case qseries.CmdParameterReset:
		d.stop()
		d.resetParams()
		return nil, qseries.RetOK
	case qseries.CmdStartExposure:
		n, ok := arg()
		if !ok {
			return nil, qseries.RetMissingParameter
		}
		if n == 0 || n < qseries.ContinuousAll {
			return nil, qseries.RetInvalidParameter
		}
		d.start(n)
		return nil, qseries.RetOK
	case qseries.CmdCancelExposure:
		d.stop()
		return nil, qseries.RetOK

	case qseries.CmdGetExposureTime:
		return intPayload(d.p.exposure), qseries.RetOK
	case qseries.CmdSetExposureTime:
		v, ok := arg()
		if !ok {
			return nil, qseries.RetMissingParameter
		}
		if v < d.cfg.MinExposure || v > d.cfg.MaxExposure {
			return nil, qseries.RetInvalidParameter
		}
		d.stop()
		d.p.exposure = v
		return nil, qseries.RetOK
	case qseries.CmdGetMinExposureTime:
		return intPayload(d.cfg.MinExposure), qseries.RetOK
	case qseries.CmdGetMaxExposureTime:
		return intPayload(d.cfg.MaxExposure), qseries.RetOK

	case qseries.CmdGetAveraging:
		return intPayload(d.p.averaging), qseries.RetOK
	case qseries.CmdSetAveraging:
		v, ok := arg()
		if !ok {
			return nil, qseries.RetMissingParameter
		}
		if v < 1 || v > d.cfg.MaxAveraging {
			return nil, qseries.RetInvalidParameter
		}
		d.p.averaging = v
		return nil, qseries.RetOK
	case qseries.CmdGetMaxAveraging:
		return intPayload(d.cfg.MaxAveraging), qseries.RetOK

	case qseries.CmdGetProcessingSteps:
		return intPayload(d.p.steps), qseries.RetOK
	case qseries.CmdSetProcessingSteps:
		v, ok := arg()
		if !ok {
			return nil, qseries.RetMissingParameter
		}
		d.p.steps = v & int32(d.availableSteps())
		return nil, qseries.RetOK
	case qseries.CmdGetMaxProcessingSteps:
		return intPayload(int32(d.availableSteps())), qseries.RetOK
	case qseries.CmdGetDefaultProcessingSteps:
		return intPayload(int32(d.defaultSteps())), qseries.RetOK

	case qseries.CmdGetPortConfig:
		return intPayload(d.p.portConfig), qseries.RetOK
	case qseries.CmdSetPortConfig:
		return d.setParam(&d.p.portConfig, args)
	case qseries.CmdGetTriggerConfiguration:
		return intPayload(d.p.triggerConfig), qseries.RetOK
	case qseries.CmdSetTriggerConfiguration:
		return d.setParam(&d.p.triggerConfig, args)
	case qseries.CmdGetTriggerEnabled:
		return intPayload(d.p.triggerOn), qseries.RetOK
	case qseries.CmdSetTriggerEnabled:
		return d.setParam(&d.p.triggerOn, args)
	case qseries.CmdGetTriggerDelay:
		return intPayload(0), qseries.RetOK

	case qseries.CmdGetDeviceID:
		return intPayload(int32(uint32(qseries.VendorID)<<16 | uint32(d.cfg.ProductID))), qseries.RetOK
	case qseries.CmdGetSoftwareVersion:
		return intPayload(int32(d.cfg.Firmware.Packed())), qseries.RetOK
	case qseries.CmdGetHardwareVersion:
		h := d.cfg.Hardware
		return intPayload(int32(uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8)), qseries.RetOK
	case qseries.CmdGetMaxDataValue:
		return intPayload(d.cfg.MaxDataValue), qseries.RetOK
	case qseries.CmdGetPixelCount:
		return intPayload(int32(d.cfg.PixelCount)), qseries.RetOK
	case qseries.CmdGetDataCount:
		return intPayload(int32(d.cfg.PixelCount + 32)), qseries.RetOK
	case qseries.CmdGetFirstOffsetPixel:
		return intPayload(0), qseries.RetOK
	case qseries.CmdGetNumOffsetPixels:
		return intPayload(16), qseries.RetOK
	case qseries.CmdGetFirstDarkPixel:
		return intPayload(16), qseries.RetOK
	case qseries.CmdGetNumDarkPixels:
		return intPayload(16), qseries.RetOK
	case qseries.CmdGetFirstRealPixel:
		return intPayload(32), qseries.RetOK
	case qseries.CmdGetMirrorSpectrum, qseries.CmdGetSensorType:
		return intPayload(0), qseries.RetOK
	case qseries.CmdGetCalibrationDataNumPages:
		return intPayload(d.cfg.CalibrationPages), qseries.RetOK
	case qseries.CmdGetUserDataNumPages:
		return intPayload(0), qseries.RetOK

	case qseries.CmdGetStatus:
		status := qseries.StatusIdle
		if d.running {
			status = qseries.StatusTakingSpectrum
		}
		return intPayload(int32(uint32(uint8(status)) | uint32(len(d.buffer))<<8)), qseries.RetOK
	case qseries.CmdGetTemperature:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(d.cfg.Temperature)), qseries.RetOK
	case qseries.CmdReadPort:
		return intPayload(0), qseries.RetOK
	case qseries.CmdGetSysTick:
		return intPayload(int32(d.tick())), qseries.RetOK
	case qseries.CmdGetBufferCount:
		return intPayload(int32(len(d.buffer))), qseries.RetOK

	case qseries.CmdGetSpectrum:
		return d.popSpectrum()
	case qseries.CmdGetWavelengths:
		if !version.Supports(d.cfg.Firmware, version.CapBulkWavelengths) {
			return nil, qseries.RetUnknownCommandCode
		}
		return qseries.AppendFloat32s(nil, d.Wavelengths()...), qseries.RetOK
	case qseries.CmdGetWavelengthCoefficients:
		if !version.Supports(d.cfg.Firmware, version.CapCoefficients) {
			return nil, qseries.RetUnknownCommandCode
		}
		return qseries.AppendFloat32s(nil, d.cfg.Coefficients[:]...), qseries.RetOK
	case qseries.CmdGetNonlinearityCoefficients:
		if !version.Supports(d.cfg.Firmware, version.CapCoefficients) {
			return nil, qseries.RetUnknownCommandCode
		}
		b := binary.LittleEndian.AppendUint32(nil, 4)
		return qseries.AppendFloat32s(b, 1, 0, 0, 0), qseries.RetOK
	case qseries.CmdGetCalibrationData:
		page, ok := arg()
		if !ok {
			return nil, qseries.RetMissingParameter
		}
		return d.calibrationPage(page)
	}

	return nil, qseries.RetUnknownCommandCode
}

func (d *Device) setParam(dst *int32, args []int32) ([]byte, qseries.ReturnCode) {
	if len(args) == 0 {
		return nil, qseries.RetMissingParameter
	}
	*dst = args[0]
	return nil, qseries.RetOK
}

func (d *Device) calibrationPage(page int32) ([]byte, qseries.ReturnCode) {
	if page < 0 || page >= 2*d.cfg.CalibrationPages {
		return nil, qseries.RetInvalidParameter
	}
	buf := make([]byte, qseries.CalibrationPageSize)
	// User calibration lives in the first half, factory in the second.
	if page == d.cfg.CalibrationPages && d.cfg.FactoryCalibration {
		binary.LittleEndian.PutUint32(buf, 1024)
	}
	return buf, qseries.RetOK
}

func (d *Device) tick() uint32 {
	return uint32(d.now().Sub(d.bootTime) / time.Millisecond)
}

func packTrigger(opt qseries.TriggerOption, rising bool, pin int) int32 {
	v := int32(opt) | int32(pin)<<16
	if rising {
		v |= 1 << 8
	}
	return v
}

func (d *Device) String() string {
	return fmt.Sprintf("sim %s", d.cfg.Serial)
}
