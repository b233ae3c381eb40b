// Package usb provides a libusb-backed qseries.Transport using
// google/gousb.
package usb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/gousb"

	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
)

// Qseries devices expose one configuration with one bulk interface.
const (
	configNum    = 1
	interfaceNum = 0
	altSetting   = 0
)

// ErrWriteIncomplete is returned when the OUT transfer was cut short.
var ErrWriteIncomplete = errors.New("device write failed")

// Enumerator finds Qseries devices on the USB bus.
type Enumerator struct {
	ctx    *gousb.Context
	logger *slog.Logger
}

// NewEnumerator initialises libusb. Close it when done.
func NewEnumerator(logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{ctx: gousb.NewContext(), logger: logger}
}

// Close releases the libusb context.
func (e *Enumerator) Close() error {
	return e.ctx.Close()
}

func isQseries(desc *gousb.DeviceDesc) bool {
	return desc.Vendor == gousb.ID(qseries.VendorID)
}

func describe(dev *gousb.Device) qseries.DeviceInfo {
	info := qseries.DeviceInfo{
		VendorID:  uint16(dev.Desc.Vendor),
		ProductID: uint16(dev.Desc.Product),
		Path:      fmt.Sprintf("%d-%d", dev.Desc.Bus, dev.Desc.Address),
	}
	info.Serial, _ = dev.SerialNumber()
	info.Manufacturer, _ = dev.Manufacturer()
	info.Product, _ = dev.Product()
	return info
}

// List implements qseries.Enumerator.
func (e *Enumerator) List(ctx context.Context) ([]qseries.DeviceInfo, error) {
	devs, err := e.ctx.OpenDevices(isQseries)
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("opening USB devices: %w", err)
	}
	if err != nil {
		e.logger.Debug("some USB devices could not be opened", "error", err)
	}

	out := make([]qseries.DeviceInfo, 0, len(devs))
	for _, d := range devs {
		out = append(out, describe(d))
	}
	return out, nil
}

// Open implements qseries.Enumerator. The kernel driver is detached
// automatically and configuration 1 is selected only when it is not
// already active, since selecting it again performs a lightweight reset.
func (e *Enumerator) Open(ctx context.Context, info qseries.DeviceInfo) (qseries.Transport, error) {
	devs, err := e.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isQseries(desc) && uint16(desc.Product) == info.ProductID
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("opening USB devices: %w", err)
	}

	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && (info.Serial == "" || describe(d).Serial == info.Serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: %s", qseries.ErrNoDevice, info)
	}

	t, err := newTransport(dev, e.logger)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return t, nil
}

// Transport is a claimed bulk interface on a Qseries device.
type Transport struct {
	mu   sync.Mutex
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
	buf  []byte
}

func newTransport(dev *gousb.Device, logger *slog.Logger) (*Transport, error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("enabling kernel driver auto-detach: %w", err)
	}

	active, err := dev.ActiveConfigNum()
	if err == nil && active == configNum {
		logger.Info("device already configured", "config", active)
	} else {
		logger.Info("setting device configuration", "config", configNum)
	}

	cfg, err := dev.Config(configNum)
	if err != nil {
		return nil, fmt.Errorf("selecting configuration %d: %w", configNum, err)
	}
	intf, err := cfg.Interface(interfaceNum, altSetting)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("claiming interface %d (another daemon may own the device): %w", interfaceNum, err)
	}
	out, err := intf.OutEndpoint(qseries.EndpointOut)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("OUT endpoint: %w", err)
	}
	in, err := intf.InEndpoint(qseries.EndpointIn & 0x0F)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("IN endpoint: %w", err)
	}

	return &Transport{
		dev:  dev,
		cfg:  cfg,
		intf: intf,
		out:  out,
		in:   in,
		buf:  make([]byte, qseries.MaxResponseSize),
	}, nil
}

// Exchange implements qseries.Transport.
func (t *Transport) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil, qseries.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, qseries.Timeout)
	defer cancel()

	n, err := t.out.WriteContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("usb write: %w", err)
	}
	if n != len(request) {
		return nil, fmt.Errorf("%w: %d of %d bytes sent", ErrWriteIncomplete, n, len(request))
	}

	n, err = t.in.ReadContext(ctx, t.buf)
	if err != nil {
		return nil, fmt.Errorf("usb read: %w", err)
	}
	return append([]byte(nil), t.buf[:n]...), nil
}

// Close releases the interface, configuration and device.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil
	}
	t.intf.Close()
	err := t.cfg.Close()
	if cerr := t.dev.Close(); err == nil {
		err = cerr
	}
	t.dev = nil
	return err
}

var (
	_ qseries.Enumerator = (*Enumerator)(nil)
	_ qseries.Transport  = (*Transport)(nil)
)
