package version

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed capabilities.yaml
var capabilitiesYAML []byte

// Capability names a firmware feature gated by a minimum version.
type Capability string

const (
	// CapBulkWavelengths means the device reports its wavelength table directly.
	CapBulkWavelengths Capability = "bulk_wavelengths"
	// CapCoefficients means wavelength and nonlinearity coefficients can be read.
	CapCoefficients Capability = "coefficients"
)

// CapabilitySpec describes a firmware capability.
type CapabilitySpec struct {
	MinFirmware string `yaml:"min_firmware"`
	Description string `yaml:"description"`

	min Firmware
}

// Manifest lists the firmware-gated capabilities the driver knows about.
type Manifest struct {
	Capabilities map[Capability]*CapabilitySpec `yaml:"capabilities"`
}

var (
	manifestOnce sync.Once
	manifest     *Manifest
	manifestErr  error
)

// LoadManifest returns the embedded capability manifest.
func LoadManifest() (*Manifest, error) {
	manifestOnce.Do(func() {
		manifest, manifestErr = parseManifest(capabilitiesYAML)
	})
	return manifest, manifestErr
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing capability manifest: %w", err)
	}
	for name, c := range m.Capabilities {
		fw, err := ParseFirmware(c.MinFirmware)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", name, err)
		}
		c.min = fw
	}
	return &m, nil
}

// Names returns the capability names, sorted.
func (m *Manifest) Names() []Capability {
	out := make([]Capability, 0, len(m.Capabilities))
	for name := range m.Capabilities {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supports reports whether firmware fw provides capability c. Unknown
// capabilities are never supported.
func (m *Manifest) Supports(fw Firmware, c Capability) bool {
	spec, ok := m.Capabilities[c]
	if !ok {
		return false
	}
	return fw.AtLeast(spec.min)
}

// Supports is a convenience wrapper around the embedded manifest.
func Supports(fw Firmware, c Capability) bool {
	m, err := LoadManifest()
	if err != nil {
		return false
	}
	return m.Supports(fw, c)
}
