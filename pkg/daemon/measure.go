package daemon

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
)

// measurer runs measurements on one goroutine. The first completed
// measurement carries ID 1; get_measured reports ID 0 before that.
type measurer struct {
	d *Daemon

	mu       sync.Mutex
	busy     bool
	looping  bool
	nextID   int64
	measured map[string]any
	cancel   context.CancelFunc
	done     chan struct{}
}

func newMeasurer(d *Daemon) *measurer {
	return &measurer{
		d:        d,
		nextID:   1,
		measured: map[string]any{"measurement_id": int64(0)},
	}
}

// measure starts a measurement unless one is running, and returns the ID
// the next completed measurement will carry.
func (m *measurer) measure(loop bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.looping = loop
	if !m.busy {
		m.busy = true
		ctx, cancel := context.WithCancel(m.d.ctx)
		m.cancel = cancel
		m.done = make(chan struct{})
		go m.run(ctx, m.done)
	}
	return m.nextID
}

func (m *measurer) stopLooping() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.looping = false
}

// stop ends looping and cancels a running measurement, waiting for the
// goroutine to exit.
func (m *measurer) stop() {
	m.mu.Lock()
	m.looping = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *measurer) isBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *measurer) last() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.measured)
}

func (m *measurer) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	m.d.logMeasurement("IDLE", "MEASURING")

	for {
		start := time.Now()
		out, err := m.d.driver.Measure(ctx)

		m.mu.Lock()
		if err != nil {
			// A failed measurement ends looping so a broken device does
			// not spin.
			m.looping = false
			if ctx.Err() == nil {
				m.d.logger.Error("measurement failed", "error", err)
				m.d.logError(nil, "measure", err)
			}
		} else {
			out["measurement_id"] = m.nextID
			m.measured = out
			m.d.logger.Debug("measurement complete", "id", m.nextID, "duration", time.Since(start))
			m.nextID++
		}
		if !m.looping || ctx.Err() != nil {
			m.busy = false
			cancel := m.cancel
			m.cancel = nil
			m.mu.Unlock()
			cancel()
			m.d.logMeasurement("MEASURING", "IDLE")
			return
		}
		m.mu.Unlock()
	}
}

func (d *Daemon) logMeasurement(old, s string) {
	if d.protocolLogger == nil {
		return
	}
	d.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerService,
		Category:   log.CategoryState,
		DaemonName: d.Name(),
		DaemonKind: d.Kind(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityMeasurement,
			OldState: old,
			NewState: s,
		},
	})
}
