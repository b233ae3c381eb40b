package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/discovery"
	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/model"
	"github.com/yaq-go/yaqd-rgb/pkg/transport"
	"github.com/yaq-go/yaqd-rgb/pkg/version"
)

// Daemon serves one configured device.
type Daemon struct {
	mu sync.RWMutex

	config    Config
	driver    Driver
	lifecycle State

	state      *model.State
	table      *model.Table
	properties map[string]*model.Property
	meas       *measurer
	mappingID  atomic.Int64

	server      *transport.Server
	unsubscribe func()
	advertised  string

	// shutdown is closed once a shutdown response has been sent.
	shutdown          chan struct{}
	shutdownOnce      sync.Once
	shutdownRequested atomic.Bool
	restart           atomic.Bool

	logger         *slog.Logger
	protocolLogger log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a daemon for drv. Nothing touches the network or the
// hardware until Start.
func New(cfg Config, drv Driver) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if drv == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("driver is required"))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("daemon", cfg.Daemon.Name, "kind", cfg.Protocol.Name)

	d := &Daemon{
		config:         cfg,
		driver:         drv,
		state:          model.StateFromProtocol(cfg.Protocol),
		table:          model.NewTable(cfg.Protocol),
		shutdown:       make(chan struct{}),
		logger:         logger,
		protocolLogger: cfg.ProtocolLogger,
	}
	d.meas = newMeasurer(d)
	return d, nil
}

// Name returns the configured daemon name.
func (d *Daemon) Name() string {
	return d.config.Daemon.Name
}

// Kind returns the protocol name.
func (d *Daemon) Kind() string {
	return d.config.Protocol.Name
}

// Lifecycle returns the current lifecycle state.
func (d *Daemon) Lifecycle() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lifecycle
}

// State returns the daemon's persisted state fields.
func (d *Daemon) State() *model.State {
	return d.state
}

// Property returns a bound property. Properties exist once started.
func (d *Daemon) Property(name string) (*model.Property, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.properties[name]
	return p, ok
}

// Addr returns the listen address, or nil before Start.
func (d *Daemon) Addr() net.Addr {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.server == nil {
		return nil
	}
	return d.server.Addr()
}

// Busy reports whether a measurement is in progress.
func (d *Daemon) Busy() bool {
	return d.meas.isBusy()
}

// MappingsChanged increments the mapping ID so that clients refetch
// get_mappings.
func (d *Daemon) MappingsChanged() {
	d.mappingID.Add(1)
}

// Invoke calls a message directly, bypassing the network.
func (d *Daemon) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	if d.Lifecycle() != StateRunning {
		return nil, ErrNotStarted
	}
	return d.table.Invoke(ctx, name, params)
}

// Start restores state, initialises the driver, binds every declared
// message and starts serving.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.lifecycle != StateIdle {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.lifecycle = StateStarting
	d.mu.Unlock()
	d.logLifecycle(StateIdle, StateStarting)

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.start(); err != nil {
		d.cancel()
		d.setLifecycle(StateStopped)
		return err
	}

	d.setLifecycle(StateRunning)
	d.logger.Info("daemon running", "addr", d.Addr())

	if d.config.Daemon.LoopAtStartup {
		d.meas.measure(true)
	}
	return nil
}

func (d *Daemon) start() error {
	d.restoreState()

	if err := d.driver.Init(d.ctx, d.state); err != nil {
		return fmt.Errorf("initialising driver: %w", err)
	}
	if err := d.bind(); err != nil {
		d.closeDriver()
		return err
	}
	d.MappingsChanged()

	address := d.config.Address
	if address == "" {
		address = d.config.Daemon.Address()
	}
	server, err := transport.NewServer(transport.ServerConfig{
		Address:   address,
		Name:      d.Name(),
		Logger:    d.protocolLogger,
		OnMessage: d.handleMessage,
		OnError: func(conn *transport.ServerConn, err error) {
			d.logger.Debug("connection error", "error", err)
		},
	})
	if err != nil {
		d.closeDriver()
		return err
	}
	if err := server.Start(d.ctx); err != nil {
		d.closeDriver()
		return err
	}

	d.mu.Lock()
	d.server = server
	d.mu.Unlock()

	d.unsubscribe = d.state.Subscribe(model.StateSubscriberFunc(func(name string, value any) {
		d.logger.Debug("state changed", "field", name, "value", value)
		d.saveState()
	}))

	d.advertise()
	return nil
}

// bind registers the trait handlers and the driver's handlers, then
// builds the properties. Every declared message must end up handled.
func (d *Daemon) bind() error {
	handlers := d.traitHandlers()
	for name, h := range d.driver.Handlers() {
		handlers[name] = h
	}
	for name, h := range handlers {
		if _, ok := d.config.Protocol.Messages[name]; !ok {
			continue
		}
		if err := d.table.Handle(name, h); err != nil {
			return err
		}
	}
	if missing := d.table.Unhandled(); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnhandled, missing)
	}

	props, err := model.BindProperties(d.config.Protocol, d.table)
	if err != nil {
		return fmt.Errorf("binding properties: %w", err)
	}
	d.mu.Lock()
	d.properties = props
	d.mu.Unlock()
	return nil
}

// Stop shuts the daemon down: looping stops, a running measurement is
// cancelled, the server stops, state is saved, the driver is closed and
// the advertisement is withdrawn.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	switch d.lifecycle {
	case StateIdle:
		d.mu.Unlock()
		return ErrNotStarted
	case StateStopping, StateStopped:
		d.mu.Unlock()
		return nil
	}
	d.lifecycle = StateStopping
	server := d.server
	d.mu.Unlock()
	d.logLifecycle(StateRunning, StateStopping)

	d.meas.stop()

	var errs []error
	if err := server.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping server: %w", err))
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	if err := d.saveState(); err != nil {
		errs = append(errs, err)
	}
	if err := d.closeDriver(); err != nil {
		errs = append(errs, err)
	}
	if d.advertised != "" {
		if err := d.config.Advertiser.Stop(d.advertised); err != nil {
			d.logger.Warn("withdrawing advertisement failed", "error", err)
		}
	}
	d.cancel()

	d.setLifecycle(StateStopped)
	d.logger.Info("daemon stopped")
	return errors.Join(errs...)
}

// Run starts the daemon and blocks until ctx is done or a client sends
// shutdown. A shutdown with restart=true returns ErrRestart.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-d.shutdown:
		d.logger.Info("shutdown requested", "restart", d.restart.Load())
	}

	if err := d.Stop(); err != nil {
		return err
	}
	if d.restart.Load() {
		return ErrRestart
	}
	return nil
}

func (d *Daemon) requestShutdown(restart bool) {
	d.restart.Store(restart)
	d.shutdownRequested.Store(true)
}

// triggerShutdown releases Run once the shutdown response is on its way.
func (d *Daemon) triggerShutdown() {
	if d.shutdownRequested.Load() {
		d.shutdownOnce.Do(func() { close(d.shutdown) })
	}
}

func (d *Daemon) setLifecycle(s State) {
	d.mu.Lock()
	old := d.lifecycle
	d.lifecycle = s
	d.mu.Unlock()
	d.logLifecycle(old, s)
}

func (d *Daemon) closeDriver() error {
	if err := d.driver.Close(); err != nil {
		d.logger.Error("closing driver failed", "error", err)
		return fmt.Errorf("closing driver: %w", err)
	}
	return nil
}

func (d *Daemon) restoreState() {
	store := d.config.StateStore
	if store == nil {
		return
	}
	values, err := store.Load()
	if err != nil {
		d.logger.Warn("loading state failed, using defaults", "path", store.Path(), "error", err)
		return
	}
	if values == nil {
		return
	}
	if err := d.state.Restore(values); err != nil {
		d.logger.Warn("state file has unusable entries", "path", store.Path(), "error", err)
	}
	d.logger.Debug("state restored", "path", store.Path())
}

func (d *Daemon) saveState() error {
	store := d.config.StateStore
	if store == nil {
		return nil
	}
	if err := store.Save(d.state.Snapshot()); err != nil {
		d.logger.Error("saving state failed", "path", store.Path(), "error", err)
		return fmt.Errorf("saving state: %w", err)
	}
	d.state.ClearDirty()
	return nil
}

func (d *Daemon) advertise() {
	adv := d.config.Advertiser
	if adv == nil || !d.config.Daemon.Advertise {
		return
	}
	tcp, ok := d.Addr().(*net.TCPAddr)
	if !ok {
		return
	}

	id := d.identity()
	info := &discovery.DaemonInfo{
		Kind:    d.Kind(),
		Name:    d.Name(),
		Make:    id.Make,
		Model:   id.Model,
		Serial:  id.Serial,
		Version: version.Current,
		Port:    uint16(tcp.Port),
	}
	if err := adv.Advertise(d.ctx, info); err != nil {
		d.logger.Warn("mDNS advertisement failed", "error", err)
		return
	}
	d.advertised = info.InstanceName()
	d.logger.Info("advertising", "instance", d.advertised, "port", info.Port)
}

// identity merges the configured identity with what the driver reports.
func (d *Daemon) identity() Identity {
	var id Identity
	if ider, ok := d.driver.(Identifier); ok {
		id = ider.Identity()
	}
	cfg := d.config.Daemon
	if cfg.Make != "" {
		id.Make = cfg.Make
	}
	if cfg.Model != "" {
		id.Model = cfg.Model
	}
	if cfg.Serial != "" {
		id.Serial = cfg.Serial
	}
	return id
}

func (d *Daemon) logLifecycle(old, s State) {
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
			Entity:   log.StateEntityDaemon,
			OldState: old.String(),
			NewState: s.String(),
		},
	})
}
