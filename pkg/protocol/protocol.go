package protocol

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

//go:embed rgb-qmini.toml
var defaultTOML []byte

//go:embed traits/*.toml
var traitFS embed.FS

// Property control kinds.
const (
	ControlNormal = "normal"
	ControlHinted = "hinted"
)

// Property record kinds.
const (
	RecordMetadata = "metadata"
	RecordData     = "data"
)

// rawProtocol mirrors the TOML layout of a descriptor.
type rawProtocol struct {
	Protocol     string                 `toml:"protocol" yaml:"protocol"`
	Doc          string                 `toml:"doc,omitempty" yaml:"doc,omitempty"`
	Traits       []string               `toml:"traits,omitempty" yaml:"traits,omitempty"`
	Requires     []string               `toml:"requires,omitempty" yaml:"requires,omitempty"`
	Hardware     []string               `toml:"hardware,omitempty" yaml:"hardware,omitempty"`
	Links        map[string]string      `toml:"links,omitempty" yaml:"links,omitempty"`
	Installation map[string]string      `toml:"installation,omitempty" yaml:"installation,omitempty"`
	Config       map[string]rawField    `toml:"config,omitempty" yaml:"config,omitempty"`
	State        map[string]rawField    `toml:"state,omitempty" yaml:"state,omitempty"`
	Messages     map[string]rawMessage  `toml:"messages,omitempty" yaml:"messages,omitempty"`
	Properties   map[string]rawProperty `toml:"properties,omitempty" yaml:"properties,omitempty"`
}

type rawField struct {
	Type    any    `toml:"type,omitempty" yaml:"type,omitempty"`
	Default any    `toml:"default,omitempty" yaml:"default,omitempty"`
	Doc     string `toml:"doc,omitempty" yaml:"doc,omitempty"`
}

type rawParam struct {
	Name    string `toml:"name" yaml:"name"`
	Type    any    `toml:"type" yaml:"type"`
	Default any    `toml:"default,omitempty" yaml:"default,omitempty"`
	Doc     string `toml:"doc,omitempty" yaml:"doc,omitempty"`
}

type rawMessage struct {
	Request  []rawParam `toml:"request,omitempty" yaml:"request,omitempty"`
	Response any        `toml:"response,omitempty" yaml:"response,omitempty"`
	Doc      string     `toml:"doc,omitempty" yaml:"doc,omitempty"`
}

type rawProperty struct {
	Getter        string `toml:"getter" yaml:"getter"`
	Setter        string `toml:"setter,omitempty" yaml:"setter,omitempty"`
	UnitsGetter   string `toml:"units_getter,omitempty" yaml:"units_getter,omitempty"`
	LimitsGetter  string `toml:"limits_getter,omitempty" yaml:"limits_getter,omitempty"`
	OptionsGetter string `toml:"options_getter,omitempty" yaml:"options_getter,omitempty"`
	Type          any    `toml:"type" yaml:"type"`
	ControlKind   string `toml:"control_kind,omitempty" yaml:"control_kind,omitempty"`
	RecordKind    string `toml:"record_kind,omitempty" yaml:"record_kind,omitempty"`
}

// Field is a config or state entry.
type Field struct {
	Name       string
	Type       Type
	Default    any
	HasDefault bool
	Doc        string

	// Origin is the trait that contributed the field, empty when the
	// descriptor declares it directly.
	Origin string
}

// Param is one named request parameter.
type Param struct {
	Name       string
	Type       Type
	Default    any
	HasDefault bool
	Doc        string
}

// Message is an RPC message the daemon answers.
type Message struct {
	Name     string
	Request  []Param
	Response Type
	Doc      string
	Origin   string
}

// Param returns the named request parameter.
func (m *Message) Param(name string) (Param, bool) {
	for _, p := range m.Request {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Property binds getter, setter, units and limits messages into one
// attribute.
type Property struct {
	Name          string
	Getter        string
	Setter        string
	UnitsGetter   string
	LimitsGetter  string
	OptionsGetter string
	Type          Type
	ControlKind   string
	RecordKind    string
	Origin        string
}

// Protocol is a parsed descriptor.
type Protocol struct {
	Name         string
	Doc          string
	Traits       []string
	Requires     []string
	Hardware     []string
	Links        map[string]string
	Installation map[string]string
	Config       map[string]*Field
	State        map[string]*Field
	Messages     map[string]*Message
	Properties   map[string]*Property

	expanded bool
}

// Parse decodes a descriptor from TOML bytes.
func Parse(data []byte) (*Protocol, error) {
	var raw rawProtocol
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing protocol: %w", err)
	}
	if raw.Protocol == "" {
		return nil, fmt.Errorf("protocol definition missing name")
	}
	return fromRaw(&raw)
}

// Load reads and parses a descriptor file.
func Load(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded rgb-qmini descriptor, expanded and validated.
func Default() (*Protocol, error) {
	p, err := Parse(defaultTOML)
	if err != nil {
		return nil, err
	}
	if err := p.Expand(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultTOML returns the embedded rgb-qmini descriptor source.
func DefaultTOML() []byte {
	return bytes.Clone(defaultTOML)
}

func fromRaw(raw *rawProtocol) (*Protocol, error) {
	p := &Protocol{
		Name:         raw.Protocol,
		Doc:          raw.Doc,
		Traits:       raw.Traits,
		Requires:     raw.Requires,
		Hardware:     raw.Hardware,
		Links:        raw.Links,
		Installation: raw.Installation,
		Config:       make(map[string]*Field, len(raw.Config)),
		State:        make(map[string]*Field, len(raw.State)),
		Messages:     make(map[string]*Message, len(raw.Messages)),
		Properties:   make(map[string]*Property, len(raw.Properties)),
	}

	for name, rf := range raw.Config {
		f, err := fieldFromRaw(name, rf)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", name, err)
		}
		p.Config[name] = f
	}
	for name, rf := range raw.State {
		f, err := fieldFromRaw(name, rf)
		if err != nil {
			return nil, fmt.Errorf("state %s: %w", name, err)
		}
		p.State[name] = f
	}
	for name, rm := range raw.Messages {
		m, err := messageFromRaw(name, rm)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", name, err)
		}
		p.Messages[name] = m
	}
	for name, rp := range raw.Properties {
		typ, err := parseType(rp.Type)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		p.Properties[name] = &Property{
			Name:          name,
			Getter:        rp.Getter,
			Setter:        rp.Setter,
			UnitsGetter:   rp.UnitsGetter,
			LimitsGetter:  rp.LimitsGetter,
			OptionsGetter: rp.OptionsGetter,
			Type:          typ,
			ControlKind:   rp.ControlKind,
			RecordKind:    rp.RecordKind,
		}
	}
	return p, nil
}

func fieldFromRaw(name string, rf rawField) (*Field, error) {
	typ, err := parseType(rf.Type)
	if err != nil {
		return nil, err
	}
	return &Field{
		Name:       name,
		Type:       typ,
		Default:    rf.Default,
		HasDefault: rf.Default != nil,
		Doc:        rf.Doc,
	}, nil
}

func messageFromRaw(name string, rm rawMessage) (*Message, error) {
	m := &Message{Name: name, Doc: rm.Doc}
	for _, rp := range rm.Request {
		typ, err := parseType(rp.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", rp.Name, err)
		}
		m.Request = append(m.Request, Param{
			Name:       rp.Name,
			Type:       typ,
			Default:    rp.Default,
			HasDefault: rp.Default != nil,
			Doc:        rp.Doc,
		})
	}
	resp, err := parseType(rm.Response)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	if resp.IsZero() {
		resp = Primitive(TypeNull)
	}
	m.Response = resp
	return m, nil
}

// Message returns the named message.
func (p *Protocol) Message(name string) (*Message, bool) {
	m, ok := p.Messages[name]
	return m, ok
}

// MessageNames returns all message names in sorted order.
func (p *Protocol) MessageNames() []string {
	return sortedKeys(p.Messages)
}

// PropertyNames returns all property names in sorted order.
func (p *Protocol) PropertyNames() []string {
	return sortedKeys(p.Properties)
}

// HasTrait reports whether the descriptor declares the named trait.
func (p *Protocol) HasTrait(name string) bool {
	for _, t := range p.Traits {
		if t == name {
			return true
		}
	}
	return false
}

// StateDefaults returns the default value of every state field that has one.
func (p *Protocol) StateDefaults() map[string]any {
	out := make(map[string]any, len(p.State))
	for name, f := range p.State {
		if f.HasDefault {
			out[name] = f.Default
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
