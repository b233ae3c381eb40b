package daemon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yaq-go/yaqd-rgb/pkg/config"
	"github.com/yaq-go/yaqd-rgb/pkg/discovery"
	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/model"
	"github.com/yaq-go/yaqd-rgb/pkg/persistence"
	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
)

// Daemon errors.
var (
	ErrNotStarted     = errors.New("daemon not started")
	ErrAlreadyStarted = errors.New("daemon already started")
	ErrInvalidConfig  = errors.New("invalid daemon configuration")
	ErrUnhandled      = errors.New("declared messages have no handler")
	ErrRestart        = errors.New("restart requested")

	// Drivers wrap these so that StatusFor can classify their failures.
	ErrBusy         = errors.New("hardware busy")
	ErrDevice       = errors.New("device error")
	ErrNotSupported = errors.New("not supported by hardware")
	ErrShuttingDown = errors.New("daemon shutting down")
)

// State represents the daemon lifecycle state.
type State uint8

const (
	// StateIdle - daemon created but not started.
	StateIdle State = iota

	// StateStarting - descriptor bound, driver initialising.
	StateStarting

	// StateRunning - serving requests.
	StateRunning

	// StateStopping - shutting down.
	StateStopping

	// StateStopped - stopped; Start may not be called again.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Channel describes one is-sensor channel.
type Channel struct {
	Name string

	// Units is empty for unitless channels.
	Units string

	// Shape is empty for scalar channels.
	Shape []int

	// Mappings name the has-mapping entries that index this channel.
	Mappings []string
}

// Driver supplies the hardware side of a daemon.
type Driver interface {
	// Init is called once at start-up after persisted state has been
	// restored. The driver keeps state for its own handlers.
	Init(ctx context.Context, state *model.State) error

	// Handlers returns handlers for the messages the descriptor declares
	// beyond the built-in traits.
	Handlers() map[string]model.MessageHandler

	// Measure performs one measurement and returns channel values.
	Measure(ctx context.Context) (map[string]any, error)

	// Channels describes the measured channels.
	Channels() []Channel

	// Mappings returns the has-mapping arrays keyed by name.
	Mappings() map[string]any

	// Close releases the hardware.
	Close() error
}

// Identity is what a driver knows about the hardware it talks to.
type Identity struct {
	Make   string
	Model  string
	Serial string
}

// Identifier is implemented by drivers that can identify their hardware.
// Values from the configuration file take precedence.
type Identifier interface {
	Identity() Identity
}

// Config configures a Daemon.
type Config struct {
	// Protocol is the expanded, validated descriptor.
	Protocol *protocol.Protocol

	// Daemon is this daemon's entry of the configuration file.
	Daemon *config.Daemon

	// ConfigPath is reported by get_config_filepath.
	ConfigPath string

	// Address overrides Daemon.Address(), e.g. "127.0.0.1:0" in tests.
	Address string

	// StateStore persists state. Nil disables persistence.
	StateStore *persistence.StateStore

	// Advertiser announces the daemon. Nil disables advertisement.
	Advertiser discovery.Advertiser

	// Logger for daemon logs (optional).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events (optional).
	ProtocolLogger log.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Protocol == nil {
		return errors.Join(ErrInvalidConfig, errors.New("protocol is required"))
	}
	if !c.Protocol.Expanded() {
		return errors.Join(ErrInvalidConfig, errors.New("protocol must be expanded"))
	}
	if c.Daemon == nil {
		return errors.Join(ErrInvalidConfig, errors.New("daemon configuration is required"))
	}
	if c.Daemon.Name == "" {
		return errors.Join(ErrInvalidConfig, errors.New("daemon name is required"))
	}
	if c.Address == "" && c.Daemon.Port == 0 {
		return errors.Join(ErrInvalidConfig, errors.New("port is required"))
	}
	return nil
}
