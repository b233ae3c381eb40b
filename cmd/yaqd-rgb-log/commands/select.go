// Package commands implements the yaqd-rgb-log subcommands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
)

// Selection is the set of event flags shared by every subcommand. Empty
// fields select everything.
type Selection struct {
	ConnID    string
	Daemon    string
	Method    string
	Layer     string
	Direction string
	Category  string
	Since     string
	Until     string
}

// Bind registers the selection flags on cmd.
func (s *Selection) Bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.ConnID, "conn-id", "", "only events of this connection")
	f.StringVar(&s.Daemon, "daemon", "", "only events of this daemon")
	f.StringVar(&s.Method, "method", "", "only messages with this name, e.g. set_exposure_time")
	f.StringVar(&s.Layer, "layer", "", "only this layer ("+choices(layers)+")")
	f.StringVar(&s.Direction, "direction", "", "only this direction ("+choices(directions)+")")
	f.StringVar(&s.Category, "category", "", "only this category ("+choices(categories)+")")
	f.StringVar(&s.Since, "since", "", "only events at or after this RFC3339 time")
	f.StringVar(&s.Until, "until", "", "only events before this RFC3339 time")
}

var (
	layers = map[string]log.Layer{
		"transport": log.LayerTransport,
		"wire":      log.LayerWire,
		"service":   log.LayerService,
		"device":    log.LayerDevice,
	}
	directions = map[string]log.Direction{
		"in":  log.DirectionIn,
		"out": log.DirectionOut,
	}
	categories = map[string]log.Category{
		"message": log.CategoryMessage,
		"control": log.CategoryControl,
		"state":   log.CategoryState,
		"error":   log.CategoryError,
		"device":  log.CategoryDevice,
	}
)

func choices[T any](m map[string]T) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// lookup resolves a case-insensitive flag value. An empty value yields nil.
func lookup[T any](what, value string, m map[string]T) (*T, error) {
	if value == "" {
		return nil, nil
	}
	v, ok := m[strings.ToLower(value)]
	if !ok {
		return nil, fmt.Errorf("invalid %s %q (want one of %s)", what, value, choices(m))
	}
	return &v, nil
}

func parseTime(what, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", what, err)
	}
	return &t, nil
}

// Filter converts the selection into a reader filter.
func (s Selection) Filter() (log.Filter, error) {
	f := log.Filter{ConnectionID: s.ConnID, DaemonName: s.Daemon, Method: s.Method}
	var errs []error
	var err error

	f.Layer, err = lookup("layer", s.Layer, layers)
	errs = append(errs, err)
	f.Direction, err = lookup("direction", s.Direction, directions)
	errs = append(errs, err)
	f.Category, err = lookup("category", s.Category, categories)
	errs = append(errs, err)
	f.TimeStart, err = parseTime("since", s.Since)
	errs = append(errs, err)
	f.TimeEnd, err = parseTime("until", s.Until)
	errs = append(errs, err)

	return f, errors.Join(errs...)
}

// each calls fn for every selected event of the log at path.
func each(path string, sel Selection, fn func(log.Event) error) error {
	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}
