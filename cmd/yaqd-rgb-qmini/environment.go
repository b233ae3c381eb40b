package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yaq-go/yaqd-rgb/pkg/config"
	"github.com/yaq-go/yaqd-rgb/pkg/daemon"
	"github.com/yaq-go/yaqd-rgb/pkg/discovery"
	protolog "github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/persistence"
	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries/sim"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries/usb"
	"github.com/yaq-go/yaqd-rgb/pkg/rgbqmini"
)

// environment holds what the daemons of one process share: the libusb
// context, the mDNS responder and the --protocol-log file.
type environment struct {
	opts       Options
	configPath string

	mu         sync.Mutex
	usb        *usb.Enumerator
	advertiser *discovery.MDNSAdvertiser
	sims       map[string]*sim.Device
	protoLog   *protolog.FileLogger
}

func newEnvironment(opts Options, configPath string) (*environment, error) {
	e := &environment{
		opts:       opts,
		configPath: configPath,
		sims:       make(map[string]*sim.Device),
	}
	if opts.ProtocolLogFile != "" {
		fl, err := protolog.NewFileLogger(opts.ProtocolLogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open protocol log: %w", err)
		}
		e.protoLog = fl
	}
	return e, nil
}

// Close releases shared resources once every daemon has stopped.
func (e *environment) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.advertiser != nil {
		e.advertiser.StopAll()
	}
	if e.usb != nil {
		_ = e.usb.Close()
	}
	if e.protoLog != nil {
		_ = e.protoLog.Close()
	}
}

// serve runs one daemon until ctx is cancelled, rebuilding it whenever a
// client asks for a restart.
func (e *environment) serve(ctx context.Context, proto *protocol.Protocol, d *config.Daemon) error {
	for {
		err := e.runOnce(ctx, proto, d)
		if errors.Is(err, daemon.ErrRestart) {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		return nil
	}
}

func (e *environment) runOnce(ctx context.Context, proto *protocol.Protocol, d *config.Daemon) error {
	logger, closeLog, err := newLogger(proto.Name, d)
	if err != nil {
		return err
	}
	defer closeLog()

	plog, closeProto, err := e.protocolLogger(d, logger)
	if err != nil {
		return err
	}
	defer closeProto()

	enum, err := e.enumerator(d, logger)
	if err != nil {
		return err
	}

	sensor := rgbqmini.New(rgbqmini.Config{
		Enumerator:     enum,
		Serial:         d.Serial,
		Logger:         logger,
		ProtocolLogger: plog,
		DaemonName:     d.Name,
	})

	cfg := daemon.Config{
		Protocol:       proto,
		Daemon:         d,
		ConfigPath:     e.configPath,
		StateStore:     persistence.NewStateStore(persistence.DefaultStatePath(proto.Name, d.Name)),
		Logger:         logger,
		ProtocolLogger: plog,
	}
	if d.Advertise {
		adv, err := e.mdns()
		if err != nil {
			logger.Warn("mDNS advertisement disabled", "error", err)
		} else {
			cfg.Advertiser = adv
		}
	}

	dmn, err := daemon.New(cfg, sensor)
	if err != nil {
		return err
	}
	logger.Info("starting", "port", d.Port, "simulate", d.Simulate, "serial", d.Serial)
	return dmn.Run(ctx)
}

// enumerator returns the device source for d. Simulated devices survive
// restarts so their settings behave like real hardware.
func (e *environment) enumerator(d *config.Daemon, logger *slog.Logger) (qseries.Enumerator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d.Simulate {
		dev, ok := e.sims[d.Name]
		if !ok {
			cfg := sim.DefaultConfig()
			if d.Serial != "" {
				cfg.Serial = d.Serial
			}
			dev = sim.New(cfg)
			e.sims[d.Name] = dev
		}
		return sim.NewEnumerator(dev), nil
	}

	if e.usb == nil {
		e.usb = usb.NewEnumerator(logger.With("component", "usb"))
	}
	return e.usb, nil
}

func (e *environment) mdns() (discovery.Advertiser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.advertiser == nil {
		adv, err := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		if err != nil {
			return nil, err
		}
		e.advertiser = adv
	}
	return e.advertiser, nil
}

// protocolLogger combines the process-wide protocol log, the daemon's own
// protocol_log file and, at debug level, the daemon's slog output.
func (e *environment) protocolLogger(d *config.Daemon, logger *slog.Logger) (protolog.Logger, func(), error) {
	var loggers []protolog.Logger
	closeFn := func() {}

	if e.protoLog != nil {
		loggers = append(loggers, e.protoLog)
	}
	if d.ProtocolLog != "" && d.ProtocolLog != e.opts.ProtocolLogFile {
		fl, err := protolog.NewFileLogger(d.ProtocolLog)
		if err != nil {
			return nil, closeFn, fmt.Errorf("%s: failed to open protocol log: %w", d.Name, err)
		}
		loggers = append(loggers, fl)
		closeFn = func() { _ = fl.Close() }
	}
	if d.SlogLevel() <= slog.LevelDebug {
		loggers = append(loggers, protolog.NewSlogAdapter(logger))
	}

	switch len(loggers) {
	case 0:
		return protolog.NoopLogger{}, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return protolog.NewMultiLogger(loggers...), closeFn, nil
	}
}

// newLogger builds the daemon's slog logger. With log_to_file the output
// is also appended to $XDG_STATE_HOME/yaqd/<kind>/<name>.log.
func newLogger(kind string, d *config.Daemon) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}

	if d.LogToFile {
		path := logFilePath(kind, d.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, closeFn, fmt.Errorf("%s: failed to create log directory: %w", d.Name, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("%s: failed to open log file: %w", d.Name, err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { _ = f.Close() }
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: d.SlogLevel()})
	return slog.New(handler), closeFn, nil
}

func logFilePath(kind, name string) string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".local", "state")
		}
	}
	return filepath.Join(base, "yaqd", kind, name+".log")
}
