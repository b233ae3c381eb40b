package sim

import (
	"context"
	"fmt"

	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
)

// Enumerator lists a fixed set of simulated devices.
type Enumerator struct {
	Devices []*Device
}

// NewEnumerator returns an Enumerator over devs.
func NewEnumerator(devs ...*Device) *Enumerator {
	return &Enumerator{Devices: devs}
}

// List implements qseries.Enumerator.
func (e *Enumerator) List(ctx context.Context) ([]qseries.DeviceInfo, error) {
	out := make([]qseries.DeviceInfo, 0, len(e.Devices))
	for _, d := range e.Devices {
		out = append(out, d.Info())
	}
	return out, nil
}

// Open implements qseries.Enumerator. Opening reconnects a device that was
// closed earlier.
func (e *Enumerator) Open(ctx context.Context, info qseries.DeviceInfo) (qseries.Transport, error) {
	for _, d := range e.Devices {
		if d.cfg.Serial == info.Serial {
			d.Reconnect()
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w with serial %q", qseries.ErrNoDevice, info.Serial)
}

var (
	_ qseries.Transport  = (*Device)(nil)
	_ qseries.Enumerator = (*Enumerator)(nil)
)
