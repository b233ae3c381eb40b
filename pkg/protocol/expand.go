package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Trait names implemented by the runtime.
const (
	TraitIsDaemon          = "is-daemon"
	TraitIsSensor          = "is-sensor"
	TraitHasMeasureTrigger = "has-measure-trigger"
	TraitHasMapping        = "has-mapping"
)

// ErrUnknownTrait is returned for traits without a built-in fragment.
var ErrUnknownTrait = errors.New("unknown trait")

var (
	traitsOnce sync.Once
	traits     map[string]*Protocol
	traitsErr  error
)

func loadTraits() (map[string]*Protocol, error) {
	traitsOnce.Do(func() {
		entries, err := traitFS.ReadDir("traits")
		if err != nil {
			traitsErr = fmt.Errorf("reading trait fragments: %w", err)
			return
		}
		traits = make(map[string]*Protocol, len(entries))
		for _, e := range entries {
			data, err := traitFS.ReadFile("traits/" + e.Name())
			if err != nil {
				traitsErr = fmt.Errorf("reading %s: %w", e.Name(), err)
				return
			}
			p, err := Parse(data)
			if err != nil {
				traitsErr = fmt.Errorf("trait %s: %w", strings.TrimSuffix(e.Name(), ".toml"), err)
				return
			}
			traits[p.Name] = p
		}
	})
	return traits, traitsErr
}

// Trait returns the built-in fragment for the named trait.
func Trait(name string) (*Protocol, error) {
	all, err := loadTraits()
	if err != nil {
		return nil, err
	}
	t, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrait, name)
	}
	return t, nil
}

// KnownTraits returns the names of all built-in traits.
func KnownTraits() []string {
	all, err := loadTraits()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expand merges the config, state, messages and properties of every
// declared trait into p. Definitions made by the descriptor itself take
// precedence over trait definitions. Expand is idempotent.
func (p *Protocol) Expand() error {
	if p.expanded {
		return nil
	}
	for _, name := range p.Traits {
		t, err := Trait(name)
		if err != nil {
			return err
		}
		mergeFields(p.Config, t.Config, name)
		mergeFields(p.State, t.State, name)
		for mname, m := range t.Messages {
			if _, ok := p.Messages[mname]; ok {
				continue
			}
			cp := *m
			cp.Request = append([]Param(nil), m.Request...)
			cp.Origin = name
			p.Messages[mname] = &cp
		}
		for pname, prop := range t.Properties {
			if _, ok := p.Properties[pname]; ok {
				continue
			}
			cp := *prop
			cp.Origin = name
			p.Properties[pname] = &cp
		}
	}
	p.expanded = true
	return nil
}

// Expanded reports whether Expand has run.
func (p *Protocol) Expanded() bool {
	return p.expanded
}

func mergeFields(dst, src map[string]*Field, origin string) {
	for name, f := range src {
		if existing, ok := dst[name]; ok {
			// A descriptor may restate a trait field to change its default.
			if existing.Type.IsZero() {
				existing.Type = f.Type
			}
			if existing.Doc == "" {
				existing.Doc = f.Doc
			}
			continue
		}
		cp := *f
		cp.Origin = origin
		dst[name] = &cp
	}
}
