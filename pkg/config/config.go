package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Kind is the daemon kind configured by default.
const Kind = "rgb-qmini"

// Daemon is the configuration of one daemon.
type Daemon struct {
	// Name is the table name the daemon was configured under.
	Name string `toml:"-"`

	Port          int    `toml:"port"`
	Serial        string `toml:"serial,omitempty"`
	Make          string `toml:"make,omitempty"`
	Model         string `toml:"model,omitempty"`
	Enable        bool   `toml:"enable"`
	LogLevel      string `toml:"log_level"`
	LogToFile     bool   `toml:"log_to_file"`
	LoopAtStartup bool   `toml:"loop_at_startup"`
	Advertise     bool   `toml:"advertise"`
	Simulate      bool   `toml:"simulate"`
	ProtocolLog   string `toml:"protocol_log,omitempty"`

	// Raw holds every key of the daemon's table, shared keys included.
	Raw map[string]any `toml:"-"`
}

// File is a parsed configuration file.
type File struct {
	Path string

	entries map[string]*Daemon
}

// defaultDaemon returns a daemon configuration with every default applied.
func defaultDaemon(name string) Daemon {
	return Daemon{
		Name:      name,
		Make:      "RGB Photonics",
		Enable:    true,
		LogLevel:  "info",
		Advertise: true,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/yaqd/<kind>/config.toml.
func DefaultPath(kind string) string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "yaqd", kind, "config.toml")
}

// Load reads, parses and validates a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	f, err := Parse(data, abs)
	if err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes configuration data. path is recorded for
// get_config_filepath and may be empty.
func Parse(data []byte, path string) (*File, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	shared := make(map[string]any)
	tables := make(map[string]map[string]any)
	for key, v := range doc {
		if table, ok := v.(map[string]any); ok {
			tables[key] = table
		} else {
			shared[key] = v
		}
	}

	f := &File{Path: path, entries: make(map[string]*Daemon, len(tables))}
	for name, table := range tables {
		merged := make(map[string]any, len(shared)+len(table))
		for k, v := range shared {
			merged[k] = v
		}
		for k, v := range table {
			merged[k] = v
		}

		d, err := decodeDaemon(name, merged)
		if err != nil {
			return nil, err
		}
		f.entries[name] = d
	}
	return f, nil
}

// decodeDaemon applies raw onto the defaults one key at a time so a
// mistyped value is reported under its own key.
func decodeDaemon(name string, raw map[string]any) (*Daemon, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := defaultDaemon(name)
	var errs []error
	for _, key := range keys {
		data, err := toml.Marshal(map[string]any{key: raw[key]})
		if err == nil {
			err = toml.Unmarshal(data, &d)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s.%s: %v", ErrInvalidConfig, name, key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	d.Name = name
	d.Raw = raw
	return &d, nil
}

// Daemons returns the enabled daemons sorted by name.
func (f *File) Daemons() []*Daemon {
	var out []*Daemon
	for _, d := range f.All() {
		if d.Enable {
			out = append(out, d)
		}
	}
	return out
}

// All returns every configured daemon, disabled ones included, sorted by
// name.
func (f *File) All() []*Daemon {
	names := make([]string, 0, len(f.entries))
	for name := range f.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Daemon, len(names))
	for i, name := range names {
		out[i] = f.entries[name]
	}
	return out
}

// Daemon returns the named daemon configuration.
func (f *File) Daemon(name string) (*Daemon, bool) {
	d, ok := f.entries[name]
	return d, ok
}
