package sim

import (
	"math"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
)

// duration returns the simulated time one spectrum takes.
func (d *Device) duration() time.Duration {
	seconds := float64(d.p.exposure) * float64(d.p.averaging) / 1e6 * d.cfg.TimeScale
	return time.Duration(seconds * float64(time.Second))
}

func (d *Device) start(n int32) {
	d.buffer = nil
	d.running = true
	d.target = n
	d.started = d.now()
	d.completed = 0
	d.advance()
}

func (d *Device) stop() {
	d.running = false
	d.buffer = nil
	d.completed = 0
}

// advance moves the acquisition forward to the current time.
func (d *Device) advance() {
	if !d.running {
		return
	}

	done := int64(d.target)
	if per := d.duration(); per > 0 {
		done = int64(d.now().Sub(d.started) / per)
		if d.target > 0 && done > int64(d.target) {
			done = int64(d.target)
		}
	} else if d.target < 0 {
		// Instant continuous exposure still produces one spectrum per poll.
		done = d.completed + 1
	}

	fresh := done - d.completed
	if fresh <= 0 {
		return
	}
	d.completed = done

	switch d.target {
	case qseries.ContinuousLatest:
		d.buffer = [][]float32{d.synthesize()}
	case qseries.ContinuousAll:
		for ; fresh > 0 && len(d.buffer) < d.cfg.BufferSize; fresh-- {
			d.buffer = append(d.buffer, d.synthesize())
		}
	default:
		for ; fresh > 0; fresh-- {
			d.buffer = append(d.buffer, d.synthesize())
		}
	}

	if d.target > 0 && d.completed >= int64(d.target) {
		d.running = false
	}
}

func (d *Device) synthesize() []float32 {
	wl := d.Wavelengths()
	seconds := float64(d.p.exposure) / 1e6
	avg := float64(d.p.averaging)
	limit := float64(d.cfg.MaxDataValue) * avg

	out := make([]float32, len(wl))
	for i, w := range wl {
		v := d.cfg.Baseline
		for _, p := range d.cfg.Peaks {
			x := (w - p.Center) / p.Width
			v += p.Amplitude * seconds * math.Exp(-0.5*x*x)
		}
		v *= avg
		v += d.rng.NormFloat64() * d.cfg.Noise * math.Sqrt(avg)
		out[i] = float32(math.Max(0, math.Min(v, limit)))
	}
	return out
}

func (d *Device) popSpectrum() ([]byte, qseries.ReturnCode) {
	if len(d.buffer) == 0 {
		return nil, qseries.RetInvalidOperation
	}
	spectrum := d.buffer[0]
	d.buffer = d.buffer[1:]

	peak := float32(0)
	for _, v := range spectrum {
		peak = max(peak, v)
	}
	limit := float32(d.cfg.MaxDataValue) * float32(d.p.averaging)

	h := qseries.SpectrumHeader{
		ExposureTime:    uint32(d.p.exposure),
		Averaging:       uint32(d.p.averaging),
		Timestamp:       d.tick(),
		LoadLevel:       peak / limit,
		Temperature:     d.cfg.Temperature,
		PixelCount:      uint16(len(spectrum)),
		PixelFormat:     qseries.PixelFormatFloat32,
		ProcessingSteps: uint16(d.p.steps),
		IntensityUnit:   uint16(qseries.UnitADCValues),
		SaturationValue: limit,
		OffsetAvg:       float32(d.cfg.Baseline),
		ReadoutNoise:    float32(d.cfg.Noise),
	}
	b, err := h.AppendBinary(nil)
	if err != nil {
		return nil, qseries.RetInternalError
	}
	for _, v := range spectrum {
		b = qseries.AppendFloat32s(b, float64(v))
	}
	return b, qseries.RetOK
}
