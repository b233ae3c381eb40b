// Command yaqd-rgb-qmini is the yaq daemon for RGB Photonics Qseries
// (Qmini, Qwave) spectrometers.
//
// Every enabled table of the configuration file starts one daemon on its
// own port. All daemons share the process; SIGINT or SIGTERM stops them.
//
// Usage:
//
//	yaqd-rgb-qmini [flags]
//
// Flags:
//
//	--config string        Configuration file (default $XDG_CONFIG_HOME/yaqd/rgb-qmini/config.toml)
//	--protocol             Print the protocol descriptor and exit
//	--format string        Descriptor format for --protocol: toml, yaml, expanded (default "toml")
//	--version              Print the version and exit
//	--simulate             Use simulated spectrometers for every daemon
//	--log-level string     Override log_level of every daemon
//	--protocol-log string  Append protocol events of every daemon to this file
//
// Examples:
//
//	# Run the daemons in the default configuration file
//	yaqd-rgb-qmini
//
//	# Try it without hardware
//	yaqd-rgb-qmini --config ./qmini.toml --simulate --log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/yaq-go/yaqd-rgb/pkg/config"
	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/version"
)

// Options holds the command-line options.
type Options struct {
	ConfigFile      string
	PrintProtocol   bool
	Format          string
	PrintVersion    bool
	Simulate        bool
	LogLevel        string
	ProtocolLogFile string
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", config.DefaultPath(config.Kind), "Configuration file path")
	flag.BoolVar(&opts.PrintProtocol, "protocol", false, "Print the protocol descriptor and exit")
	flag.StringVar(&opts.Format, "format", "toml", "Descriptor format for --protocol: toml, yaml, expanded")
	flag.BoolVar(&opts.PrintVersion, "version", false, "Print the version and exit")
	flag.BoolVar(&opts.Simulate, "simulate", false, "Use simulated spectrometers for every daemon")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Override log_level of every daemon: debug, info, warn, error")
	flag.StringVar(&opts.ProtocolLogFile, "protocol-log", "", "Append protocol events of every daemon to this file")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if opts.PrintVersion {
		fmt.Printf("yaqd-%s %s\n", config.Kind, version.Current)
		return
	}

	proto, err := protocol.Default()
	if err != nil {
		log.Fatalf("Invalid embedded protocol: %v", err)
	}

	if opts.PrintProtocol {
		if err := printProtocol(proto, opts.Format); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	file, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	daemons := file.Daemons()
	if len(daemons) == 0 {
		log.Fatalf("No enabled daemons in %s", file.Path)
	}

	log.Printf("yaqd-%s %s", config.Kind, version.Current)
	log.Printf("Config: %s (%d daemons)", file.Path, len(daemons))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(opts, file.Path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer env.Close()

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range daemons {
		if opts.LogLevel != "" {
			d.LogLevel = opts.LogLevel
			if err := d.Validate(); err != nil {
				log.Fatalf("%v", err)
			}
		}
		if opts.Simulate {
			d.Simulate = true
		}
		unknown, err := d.Check(proto)
		if err != nil {
			log.Fatalf("%v", err)
		}
		for _, key := range unknown {
			log.Printf("Warning: %s: unknown config key %q", d.Name, key)
		}

		g.Go(func() error {
			return env.serve(gctx, proto, d)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Daemon failed: %v", err)
	}
	log.Println("Goodbye!")
}

func printProtocol(p *protocol.Protocol, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "toml":
		data = protocol.DefaultTOML()
	case "yaml":
		data, err = p.MarshalYAML()
	case "expanded":
		data, err = p.MarshalTOML()
	default:
		return fmt.Errorf("unknown format %q (toml, yaml, expanded)", format)
	}
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
