package protocol

import (
	"errors"
	"fmt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid protocol")

// Validate checks the structural invariants of an expanded descriptor and
// returns every violation found, joined.
func (p *Protocol) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if p.Name == "" {
		add("missing protocol name")
	}

	for _, name := range p.Traits {
		t, err := Trait(name)
		if err != nil {
			add("trait %s: %v", name, err)
			continue
		}
		for _, req := range t.Requires {
			if !p.HasTrait(req) {
				add("trait %s requires %s", name, req)
			}
		}
	}
	if len(p.Traits) > 0 && !p.HasTrait(TraitIsDaemon) {
		add("traits must include %s", TraitIsDaemon)
	}

	for _, name := range sortedKeys(p.Config) {
		validateField("config", p.Config[name], add)
	}
	for _, name := range sortedKeys(p.State) {
		validateField("state", p.State[name], add)
	}

	for _, name := range p.MessageNames() {
		m := p.Messages[name]
		seen := make(map[string]bool, len(m.Request))
		for _, param := range m.Request {
			if param.Name == "" {
				add("message %s: unnamed request parameter", name)
				continue
			}
			if seen[param.Name] {
				add("message %s: duplicate parameter %s", name, param.Name)
			}
			seen[param.Name] = true
			if err := param.Type.Validate(); err != nil {
				add("message %s parameter %s: %v", name, param.Name, err)
				continue
			}
			if param.HasDefault {
				if err := param.Type.Check(param.Default); err != nil {
					add("message %s parameter %s default: %v", name, param.Name, err)
				}
			}
		}
		if err := m.Response.Validate(); err != nil {
			add("message %s response: %v", name, err)
		}
	}

	for _, name := range p.PropertyNames() {
		p.validateProperty(p.Properties[name], add)
	}

	return errors.Join(errs...)
}

func validateField(section string, f *Field, add func(string, ...any)) {
	if f.Type.IsZero() {
		add("%s %s: missing type", section, f.Name)
		return
	}
	if err := f.Type.Validate(); err != nil {
		add("%s %s: %v", section, f.Name, err)
		return
	}
	if f.HasDefault {
		if err := f.Type.Check(f.Default); err != nil {
			add("%s %s default: %v", section, f.Name, err)
		}
	}
}

func (p *Protocol) validateProperty(prop *Property, add func(string, ...any)) {
	name := prop.Name
	if err := prop.Type.Validate(); err != nil {
		add("property %s: %v", name, err)
		return
	}

	switch prop.ControlKind {
	case "", ControlNormal, ControlHinted:
	default:
		add("property %s: unknown control_kind %q", name, prop.ControlKind)
	}
	switch prop.RecordKind {
	case "", RecordMetadata, RecordData:
	default:
		add("property %s: unknown record_kind %q", name, prop.RecordKind)
	}

	if prop.Getter == "" {
		add("property %s: missing getter", name)
	} else if getter, ok := p.Messages[prop.Getter]; !ok {
		add("property %s: getter %s is not a message", name, prop.Getter)
	} else {
		if len(getter.Request) != 0 {
			add("property %s: getter %s takes parameters", name, prop.Getter)
		}
		if !getter.Response.Equal(prop.Type) {
			add("property %s: getter %s returns %s, want %s", name, prop.Getter, getter.Response, prop.Type)
		}
	}

	if prop.Setter != "" {
		if setter, ok := p.Messages[prop.Setter]; !ok {
			add("property %s: setter %s is not a message", name, prop.Setter)
		} else if len(setter.Request) != 1 {
			add("property %s: setter %s takes %d parameters, want 1", name, prop.Setter, len(setter.Request))
		} else if !setter.Request[0].Type.Equal(prop.Type) {
			add("property %s: setter %s accepts %s, want %s", name, prop.Setter, setter.Request[0].Type, prop.Type)
		}
	}

	if prop.UnitsGetter != "" {
		if units, ok := p.Messages[prop.UnitsGetter]; !ok {
			add("property %s: units_getter %s is not a message", name, prop.UnitsGetter)
		} else if !isUnitsType(units.Response) {
			add("property %s: units_getter %s returns %s, want string", name, prop.UnitsGetter, units.Response)
		}
	}

	if prop.LimitsGetter != "" {
		want := ArrayOf(prop.Type)
		if limits, ok := p.Messages[prop.LimitsGetter]; !ok {
			add("property %s: limits_getter %s is not a message", name, prop.LimitsGetter)
		} else if !prop.Type.IsNumeric() {
			add("property %s: limits on non-numeric type %s", name, prop.Type)
		} else if !limits.Response.Equal(want) {
			add("property %s: limits_getter %s returns %s, want %s", name, prop.LimitsGetter, limits.Response, want)
		}
	}

	if prop.OptionsGetter != "" {
		if _, ok := p.Messages[prop.OptionsGetter]; !ok {
			add("property %s: options_getter %s is not a message", name, prop.OptionsGetter)
		}
	}
}

func isUnitsType(t Type) bool {
	str := Primitive(TypeString)
	return t.Equal(str) || t.Equal(UnionOf(Primitive(TypeNull), str))
}
