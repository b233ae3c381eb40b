package qseries

import (
	"context"
	"fmt"
	"time"
)

// USB identifiers and transfer limits.
const (
	VendorID     uint16 = 0x276E
	ProductQmini uint16 = 0x0208
	ProductQred  uint16 = 0x0209
	ProductQwave uint16 = 0x020A

	EndpointOut = 0x01
	EndpointIn  = 0x81

	// Timeout bounds a single request/response exchange.
	Timeout = time.Second

	// MaxResponseSize is the largest response the device sends.
	MaxResponseSize = 16384
)

// Transport carries one request/response exchange at a time.
type Transport interface {
	// Exchange writes request and returns the complete response.
	Exchange(ctx context.Context, request []byte) ([]byte, error)

	// Close releases the underlying device.
	Close() error
}

// DeviceInfo identifies an attached spectrometer.
type DeviceInfo struct {
	VendorID     uint16
	ProductID    uint16
	Serial       string
	Manufacturer string
	Product      string

	// Path locates the device on its bus, e.g. "1-4". Informational only.
	Path string
}

// Model returns the product family name.
func (d DeviceInfo) Model() string {
	switch d.ProductID {
	case ProductQmini:
		return "Qmini"
	case ProductQred:
		return "Qred"
	case ProductQwave:
		return "Qwave"
	default:
		if d.Product != "" {
			return d.Product
		}
		return fmt.Sprintf("Qseries(0x%04X)", d.ProductID)
	}
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s %s", d.Model(), d.Serial)
}

// Enumerator lists attached devices and opens transports to them.
type Enumerator interface {
	List(ctx context.Context) ([]DeviceInfo, error)
	Open(ctx context.Context, info DeviceInfo) (Transport, error)
}

// Search lists the Qseries devices known to e. When serial is not empty
// only the device with that serial number is returned. ErrNoDevice is
// returned when nothing matches.
func Search(ctx context.Context, e Enumerator, serial string) ([]DeviceInfo, error) {
	all, err := e.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var found []DeviceInfo
	for _, d := range all {
		if d.VendorID != VendorID {
			continue
		}
		if serial != "" && d.Serial != serial {
			continue
		}
		found = append(found, d)
	}
	if len(found) == 0 {
		if serial != "" {
			return nil, fmt.Errorf("%w with serial %q", ErrNoDevice, serial)
		}
		return nil, ErrNoDevice
	}
	return found, nil
}
