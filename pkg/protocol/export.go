package protocol

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// MarshalTOML renders the descriptor, including any expanded trait
// definitions, as TOML.
func (p *Protocol) MarshalTOML() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(p.toRaw()); err != nil {
		return nil, fmt.Errorf("encoding protocol: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalYAML renders the descriptor as a YAML document.
func (p *Protocol) MarshalYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p.toRaw()); err != nil {
		return nil, fmt.Errorf("encoding protocol: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding protocol: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Protocol) toRaw() *rawProtocol {
	raw := &rawProtocol{
		Protocol:     p.Name,
		Doc:          p.Doc,
		Traits:       p.Traits,
		Requires:     p.Requires,
		Hardware:     p.Hardware,
		Links:        p.Links,
		Installation: p.Installation,
	}
	if len(p.Config) > 0 {
		raw.Config = fieldsToRaw(p.Config)
	}
	if len(p.State) > 0 {
		raw.State = fieldsToRaw(p.State)
	}
	if len(p.Messages) > 0 {
		raw.Messages = make(map[string]rawMessage, len(p.Messages))
		for name, m := range p.Messages {
			rm := rawMessage{Response: m.Response.raw(), Doc: m.Doc}
			for _, param := range m.Request {
				rm.Request = append(rm.Request, rawParam{
					Name:    param.Name,
					Type:    param.Type.raw(),
					Default: param.Default,
					Doc:     param.Doc,
				})
			}
			raw.Messages[name] = rm
		}
	}
	if len(p.Properties) > 0 {
		raw.Properties = make(map[string]rawProperty, len(p.Properties))
		for name, prop := range p.Properties {
			raw.Properties[name] = rawProperty{
				Getter:        prop.Getter,
				Setter:        prop.Setter,
				UnitsGetter:   prop.UnitsGetter,
				LimitsGetter:  prop.LimitsGetter,
				OptionsGetter: prop.OptionsGetter,
				Type:          prop.Type.raw(),
				ControlKind:   prop.ControlKind,
				RecordKind:    prop.RecordKind,
			}
		}
	}
	return raw
}

func fieldsToRaw(fields map[string]*Field) map[string]rawField {
	out := make(map[string]rawField, len(fields))
	for name, f := range fields {
		out[name] = rawField{Type: f.Type.raw(), Default: f.Default, Doc: f.Doc}
	}
	return out
}
