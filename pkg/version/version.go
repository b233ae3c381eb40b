// Package version provides daemon and firmware version parsing and comparison.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the daemon version reported by get_version.
const Current = "2023.1.0"

// Firmware is a four-part Qseries firmware version such as 2.0.6.1.
type Firmware struct {
	Major uint8
	Minor uint8
	Patch uint8
	Build uint8
}

// Bootloader is the first firmware version that is not a bootloader image.
var Bootloader = Firmware{0, 1, 0, 0}

// MinSupported is the oldest application firmware the driver talks to.
var MinSupported = Firmware{2, 0, 6, 1}

// FromPacked decodes the version word reported by the device, most
// significant byte first.
func FromPacked(v uint32) Firmware {
	return Firmware{
		Major: uint8(v >> 24),
		Minor: uint8(v >> 16),
		Patch: uint8(v >> 8),
		Build: uint8(v),
	}
}

// Packed returns the inverse of FromPacked.
func (f Firmware) Packed() uint32 {
	return uint32(f.Major)<<24 | uint32(f.Minor)<<16 | uint32(f.Patch)<<8 | uint32(f.Build)
}

// ParseFirmware parses a dotted "a.b.c.d" firmware version.
func ParseFirmware(s string) (Firmware, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Firmware{}, fmt.Errorf("invalid firmware version %q: expected a.b.c.d", s)
	}

	var out [4]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil || p == "" {
			return Firmware{}, fmt.Errorf("invalid firmware version %q: bad component %d", s, i)
		}
		out[i] = uint8(n)
	}

	return Firmware{out[0], out[1], out[2], out[3]}, nil
}

// String returns the version as "a.b.c.d".
func (f Firmware) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", f.Major, f.Minor, f.Patch, f.Build)
}

// Compare returns -1, 0 or 1 depending on whether f is older than, equal to
// or newer than other.
func (f Firmware) Compare(other Firmware) int {
	a, b := f.Packed(), other.Packed()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether f is older than other.
func (f Firmware) Less(other Firmware) bool {
	return f.Compare(other) < 0
}

// AtLeast reports whether f is other or newer.
func (f Firmware) AtLeast(other Firmware) bool {
	return f.Compare(other) >= 0
}

// IsBootloader reports whether the version identifies a bootloader image.
func (f Firmware) IsBootloader() bool {
	return f.Less(Bootloader)
}
