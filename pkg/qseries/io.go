package qseries

import (
	"context"
	"fmt"
)

func packTrigger(opt TriggerOption, rising bool, pin int) int32 {
	v := int32(opt) | int32(pin)<<16
	if rising {
		v |= 1 << 8
	}
	return v
}

func unpackTrigger(v int32) (opt TriggerOption, rising bool, pin int) {
	u := uint32(v)
	return TriggerOption(u & 0xFF), (u>>8)&0xFF != 0, int((u >> 16) & 0xFF)
}

func packPins(cfg [NumIOPins]IOConfig) int32 {
	var v uint32
	for i, c := range cfg {
		v |= uint32(c) << (8 * i)
	}
	return int32(v)
}

func checkPin(pin int) error {
	if pin < 0 || pin >= NumIOPins {
		return fmt.Errorf("%w: %d", ErrPinRange, pin)
	}
	return nil
}

// IOPinConfiguration returns the configuration of pin (0-based).
func (s *Spectrometer) IOPinConfiguration(pin int) (IOConfig, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinConfig[pin], nil
}

// SetIOPinConfiguration configures pin (0-based).
func (s *Spectrometer) SetIOPinConfiguration(ctx context.Context, pin int, cfg IOConfig) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.pinConfig
	next[pin] = cfg
	if err := s.writeCommand(ctx, CmdSetPortConfig, packPins(next)); err != nil {
		return err
	}
	s.pinConfig = next
	return nil
}

// SetIOPin drives an output pin constantly high or low.
func (s *Spectrometer) SetIOPin(ctx context.Context, pin int, high bool) error {
	cfg := IOOutputConstantLow
	if high {
		cfg = IOOutputConstantHigh
	}
	return s.SetIOPinConfiguration(ctx, pin, cfg)
}

// IOPins returns the input state of all pins; bit n is pin n.
func (s *Spectrometer) IOPins(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.readInt(ctx, CmdReadPort)
	return uint32(v), err
}

// IOPin returns the input state of pin.
func (s *Spectrometer) IOPin(ctx context.Context, pin int) (bool, error) {
	if err := checkPin(pin); err != nil {
		return false, err
	}
	v, err := s.IOPins(ctx)
	if err != nil {
		return false, err
	}
	return v&(1<<pin) != 0, nil
}

// TriggerSource returns the pin used as external trigger.
func (s *Spectrometer) TriggerSource() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggerPin
}

// SetTriggerSource selects the pin used as external trigger.
func (s *Spectrometer) SetTriggerSource(ctx context.Context, pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendTrigger(ctx, s.triggerOption, s.triggerRising, pin)
}

// TriggerOption returns the trigger option.
func (s *Spectrometer) TriggerOption() TriggerOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggerOption
}

// SetTriggerOption sets the trigger option.
func (s *Spectrometer) SetTriggerOption(ctx context.Context, opt TriggerOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendTrigger(ctx, opt, s.triggerRising, s.triggerPin)
}

// TriggerRisingEdge reports whether the external trigger fires on the
// rising edge.
func (s *Spectrometer) TriggerRisingEdge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggerRising
}

// SetTriggerRisingEdge selects the trigger edge.
func (s *Spectrometer) SetTriggerRisingEdge(ctx context.Context, rising bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendTrigger(ctx, s.triggerOption, rising, s.triggerPin)
}

func (s *Spectrometer) sendTrigger(ctx context.Context, opt TriggerOption, rising bool, pin int) error {
	if err := s.writeCommand(ctx, CmdSetTriggerConfiguration, packTrigger(opt, rising, pin)); err != nil {
		return err
	}
	s.triggerOption, s.triggerRising, s.triggerPin = opt, rising, pin
	return nil
}

// ExternalTrigger reports whether exposures wait for the external trigger.
func (s *Spectrometer) ExternalTrigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useTrigger
}

// SetExternalTrigger enables or disables the external trigger.
func (s *Spectrometer) SetExternalTrigger(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled == s.useTrigger {
		return nil
	}
	var v int32
	if enabled {
		v = 1
	}
	if err := s.writeCommand(ctx, CmdSetTriggerEnabled, v); err != nil {
		return err
	}
	s.useTrigger = enabled
	return nil
}
