package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var logLevels = map[string]slog.Level{
	"debug":    slog.LevelDebug,
	"info":     slog.LevelInfo,
	"notice":   slog.LevelInfo,
	"warn":     slog.LevelWarn,
	"warning":  slog.LevelWarn,
	"error":    slog.LevelError,
	"critical": slog.LevelError + 4,
}

// Validate checks every daemon entry and the file as a whole.
func (f *File) Validate() error {
	var errs []error
	ports := make(map[int]string)
	for _, d := range f.All() {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if !d.Enable {
			continue
		}
		if other, ok := ports[d.Port]; ok {
			errs = append(errs, fmt.Errorf("%w: %s and %s both use port %d", ErrInvalidConfig, other, d.Name, d.Port))
			continue
		}
		ports[d.Port] = d.Name
	}
	return errors.Join(errs...)
}

// Validate checks a single daemon entry.
func (d *Daemon) Validate() error {
	if d.Name == "" || strings.ContainsAny(d.Name, " \t/") {
		return fmt.Errorf("%w: bad daemon name %q", ErrInvalidConfig, d.Name)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("%w: %s.port must be between 1 and 65535, got %d", ErrInvalidConfig, d.Name, d.Port)
	}
	if _, ok := logLevels[strings.ToLower(d.LogLevel)]; !ok {
		return fmt.Errorf("%w: %s.log_level %q is not one of debug, info, warn, error, critical", ErrInvalidConfig, d.Name, d.LogLevel)
	}
	return nil
}

// SlogLevel maps log_level to a slog level.
func (d *Daemon) SlogLevel() slog.Level {
	if lvl, ok := logLevels[strings.ToLower(d.LogLevel)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Address returns the TCP listen address of the daemon.
func (d *Daemon) Address() string {
	return fmt.Sprintf(":%d", d.Port)
}

// Check compares the raw table against the descriptor's [config] section.
// Mistyped values are errors; keys the descriptor does not declare are
// returned so the caller can warn about them.
func (d *Daemon) Check(p *protocol.Protocol) (unknown []string, err error) {
	var errs []error
	for key, v := range d.Raw {
		field, ok := p.Config[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if err := field.Type.Check(v); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s.%s: %v", ErrInvalidConfig, d.Name, key, err))
		}
	}
	sort.Strings(unknown)
	return unknown, errors.Join(errs...)
}

// Effective returns the daemon's configuration with descriptor defaults
// filled in for every key the file leaves unset.
func (d *Daemon) Effective(p *protocol.Protocol) map[string]any {
	out := make(map[string]any, len(p.Config)+len(d.Raw))
	for name, f := range p.Config {
		if f.HasDefault {
			out[name] = f.Default
		}
	}
	for k, v := range d.Raw {
		out[k] = v
	}
	return out
}

// EffectiveTOML renders Effective as a TOML document.
func (d *Daemon) EffectiveTOML(p *protocol.Protocol) (string, error) {
	data, err := toml.Marshal(d.Effective(p))
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return string(data), nil
}
