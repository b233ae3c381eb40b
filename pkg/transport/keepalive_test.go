package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var fastKeepAlive = KeepAliveConfig{
	PingInterval:   20 * time.Millisecond,
	PongTimeout:    10 * time.Millisecond,
	MaxMissedPongs: 2,
}

func TestKeepAliveDefaults(t *testing.T) {
	cfg := KeepAliveConfig{PingInterval: time.Second}.withDefaults()
	if cfg.PingInterval != time.Second || cfg.PongTimeout != DefaultPongTimeout || cfg.MaxMissedPongs != DefaultMaxMissedPongs {
		t.Errorf("withDefaults = %+v", cfg)
	}
	if got := DefaultKeepAliveConfig().DetectionDelay(); got != 33*time.Second {
		t.Errorf("DetectionDelay = %v, want 33s", got)
	}
}

func TestKeepAliveAnsweredPings(t *testing.T) {
	var dead atomic.Bool
	var ka *KeepAlive
	ka = NewKeepAlive(fastKeepAlive,
		func(seq uint32) error {
			go ka.PongReceived(seq)
			return nil
		},
		func() { dead.Store(true) },
	)
	ka.Start(context.Background())
	defer ka.Stop()

	time.Sleep(150 * time.Millisecond)

	if dead.Load() {
		t.Fatal("daemon declared dead while answering")
	}
	stats := ka.Stats()
	if stats.Sent < 3 {
		t.Errorf("Sent = %d, want at least 3", stats.Sent)
	}
	if stats.LastPong.IsZero() || stats.Missed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestKeepAliveDeclaresDead(t *testing.T) {
	done := make(chan struct{})
	ka := NewKeepAlive(fastKeepAlive,
		func(uint32) error { return errors.New("broken pipe") },
		func() { close(done) },
	)
	ka.Start(context.Background())
	defer ka.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dead callback not called")
	}
	if got := ka.Stats().Missed; got != fastKeepAlive.MaxMissedPongs {
		t.Errorf("Missed = %d, want %d", got, fastKeepAlive.MaxMissedPongs)
	}
}

func TestKeepAliveIgnoresStalePongs(t *testing.T) {
	var dead atomic.Bool
	var ka *KeepAlive
	ka = NewKeepAlive(fastKeepAlive,
		func(seq uint32) error {
			go ka.PongReceived(seq + 100)
			return nil
		},
		func() { dead.Store(true) },
	)
	ka.Start(context.Background())
	defer ka.Stop()

	deadline := time.Now().Add(time.Second)
	for !dead.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !dead.Load() {
		t.Error("mismatched pongs kept the connection alive")
	}
}

func TestKeepAliveMissResetByPong(t *testing.T) {
	var n atomic.Int32
	var dead atomic.Bool
	var ka *KeepAlive
	// Every other ping is answered, so misses never accumulate to two.
	ka = NewKeepAlive(fastKeepAlive,
		func(seq uint32) error {
			if n.Add(1)%2 == 0 {
				go ka.PongReceived(seq)
			}
			return nil
		},
		func() { dead.Store(true) },
	)
	ka.Start(context.Background())
	defer ka.Stop()

	time.Sleep(200 * time.Millisecond)
	if dead.Load() {
		t.Error("alternating pongs should keep the daemon alive")
	}
}

func TestKeepAliveStopAndCancel(t *testing.T) {
	var pings atomic.Int32
	ka := NewKeepAlive(fastKeepAlive, func(uint32) error {
		pings.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ka.Start(ctx)
	ka.Start(ctx) // no second loop
	cancel()
	time.Sleep(50 * time.Millisecond)

	before := pings.Load()
	time.Sleep(60 * time.Millisecond)
	if pings.Load() != before {
		t.Error("pings continued after context cancel")
	}

	ka.Stop()
	ka.Stop()
	ka.PongReceived(1)
}
