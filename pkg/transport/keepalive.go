package transport

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultPingInterval   = 10 * time.Second
	DefaultPongTimeout    = 3 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures client-side liveness checks.
type KeepAliveConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay is the longest a dead daemon can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	d := DefaultKeepAliveConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = d.MaxMissedPongs
	}
	return c
}

// KeepAliveStats is a snapshot of a KeepAlive.
type KeepAliveStats struct {
	Sent     uint32
	LastPing time.Time
	LastPong time.Time
	Latency  time.Duration
	Missed   int
}

// KeepAlive pings a daemon once per interval and calls dead after
// MaxMissedPongs consecutive pings go unanswered within PongTimeout.
type KeepAlive struct {
	cfg   KeepAliveConfig
	ping  func(seq uint32) error
	dead  func()
	pongs chan uint32

	mu     sync.Mutex
	stats  KeepAliveStats
	cancel context.CancelFunc
}

// NewKeepAlive returns a stopped KeepAlive. ping sends one ping frame; dead
// runs on the monitoring goroutine, which exits right after.
func NewKeepAlive(cfg KeepAliveConfig, ping func(seq uint32) error, dead func()) *KeepAlive {
	return &KeepAlive{
		cfg:   cfg.withDefaults(),
		ping:  ping,
		dead:  dead,
		pongs: make(chan uint32, 4),
	}
}

// Start launches monitoring until ctx ends or Stop is called.
func (k *KeepAlive) Start(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cancel != nil {
		return
	}
	ctx, k.cancel = context.WithCancel(ctx)
	go k.run(ctx)
}

// Stop ends monitoring. It does not wait, so dead may call it.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cancel != nil {
		k.cancel()
	}
}

// PongReceived reports a pong carrying seq.
func (k *KeepAlive) PongReceived(seq uint32) {
	select {
	case k.pongs <- seq:
	default:
	}
}

// Stats returns the current counters.
func (k *KeepAlive) Stats() KeepAliveStats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stats
}

func (k *KeepAlive) run(ctx context.Context) {
	ticker := time.NewTicker(k.cfg.PingInterval)
	defer ticker.Stop()

	for {
		seq := k.send()
		answered, ok := k.await(ctx, seq)
		if !ok {
			return
		}
		if !answered && k.miss() {
			if k.dead != nil {
				k.dead()
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (k *KeepAlive) send() uint32 {
	k.mu.Lock()
	k.stats.Sent++
	seq := k.stats.Sent
	k.stats.LastPing = time.Now()
	k.mu.Unlock()

	// A failed send shows up as a missed pong.
	_ = k.ping(seq)
	return seq
}

// await waits for the pong to seq. ok is false when ctx ended first.
func (k *KeepAlive) await(ctx context.Context, seq uint32) (answered, ok bool) {
	timeout := time.NewTimer(k.cfg.PongTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, false
		case <-timeout.C:
			return false, true
		case got := <-k.pongs:
			if got != seq {
				continue // late pong for an earlier ping
			}
			now := time.Now()
			k.mu.Lock()
			k.stats.LastPong = now
			k.stats.Latency = now.Sub(k.stats.LastPing)
			k.stats.Missed = 0
			k.mu.Unlock()
			return true, true
		}
	}
}

// miss records an unanswered ping and reports whether the daemon is dead.
func (k *KeepAlive) miss() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stats.Missed++
	return k.stats.Missed >= k.cfg.MaxMissedPongs
}
