package qseries

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// SpectrumHeaderSize is the size of the header preceding the pixel data.
const SpectrumHeaderSize = 48

// PixelFormatFloat32 is uncompressed 32-bit float pixel data, the only
// format the driver decodes. Formats above 3 are undefined.
const PixelFormatFloat32 = 0

// SpectrumHeader is the fixed header of a GetSpectrum response, in wire
// order.
type SpectrumHeader struct {
	ExposureTime    uint32 // µs
	Averaging       uint32
	Timestamp       uint32 // device tick in ms at start of exposure
	LoadLevel       float32
	Temperature     float32 // °C
	PixelCount      uint16
	PixelFormat     uint16
	ProcessingSteps uint16
	IntensityUnit   uint16
	SpectrumDropped int32
	SaturationValue float32
	OffsetAvg       float32
	DarkAvg         float32
	ReadoutNoise    float32
}

// AppendBinary appends the encoded header to b.
func (h SpectrumHeader) AppendBinary(b []byte) ([]byte, error) {
	return binary.Append(b, binary.LittleEndian, h)
}

// SpectrumData is a spectrum together with its metadata.
type SpectrumData struct {
	Spectrum []float64

	ExposureTime    float64 // seconds
	Averaging       int
	Timestamp       time.Time
	DeviceTick      uint32
	LoadLevel       float64
	Temperature     float64
	ProcessingSteps ProcessingSteps
	IntensityUnit   IntensityUnit
	SaturationValue float64
	OffsetAvg       float64
	DarkAvg         float64
	ReadoutNoise    float64
}

// ParseSpectrum decodes a GetSpectrum payload for a device with pixelCount
// pixels.
func ParseSpectrum(payload []byte, pixelCount int) (*SpectrumData, error) {
	if len(payload) < SpectrumHeaderSize {
		return nil, fmt.Errorf("spectrum: %w: %d bytes", ErrShortResponse, len(payload))
	}

	var h SpectrumHeader
	if err := binary.Read(bytes.NewReader(payload[:SpectrumHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("spectrum header: %w", err)
	}
	if int(h.PixelCount) != pixelCount {
		return nil, fmt.Errorf("%w: got %d pixels, device has %d", ErrPixelCount, h.PixelCount, pixelCount)
	}
	if h.PixelFormat != PixelFormatFloat32 {
		return nil, fmt.Errorf("%w: %d", ErrPixelFormat, h.PixelFormat)
	}

	data := payload[SpectrumHeaderSize:]
	if len(data) < 4*pixelCount {
		return nil, fmt.Errorf("spectrum: %w: %d data bytes for %d pixels", ErrShortResponse, len(data), pixelCount)
	}

	return &SpectrumData{
		Spectrum:        Float32s(data[:4*pixelCount]),
		ExposureTime:    float64(h.ExposureTime) / 1e6,
		Averaging:       int(h.Averaging),
		Timestamp:       time.Now(),
		DeviceTick:      h.Timestamp,
		LoadLevel:       float64(h.LoadLevel),
		Temperature:     float64(h.Temperature),
		ProcessingSteps: ProcessingSteps(h.ProcessingSteps),
		IntensityUnit:   IntensityUnit(h.IntensityUnit),
		SaturationValue: float64(h.SaturationValue),
		OffsetAvg:       float64(h.OffsetAvg),
		DarkAvg:         float64(h.DarkAvg),
		ReadoutNoise:    float64(h.ReadoutNoise),
	}, nil
}

// Polynomial evaluates the cubic wavelength calibration for n pixels.
// Coefficients are constant, linear, quadratic and cubic terms; missing
// terms are zero.
func Polynomial(coefficients []float64, n int) ([]float64, error) {
	if len(coefficients) < 2 {
		return nil, fmt.Errorf("need at least 2 wavelength coefficients, have %d", len(coefficients))
	}
	var c [4]float64
	copy(c[:], coefficients)

	out := make([]float64, n)
	for i := range out {
		x := float64(i)
		out[i] = c[0] + c[1]*x + c[2]*x*x + c[3]*x*x*x
	}
	return out, nil
}
