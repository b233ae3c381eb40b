package protocol

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// Primitive type names.
const (
	TypeNull    = "null"
	TypeBoolean = "boolean"
	TypeInt     = "int"
	TypeLong    = "long"
	TypeFloat   = "float"
	TypeDouble  = "double"
	TypeString  = "string"
	TypeBytes   = "bytes"
	TypeNDArray = "ndarray"

	typeArray = "array"
	typeMap   = "map"
)

var primitives = map[string]bool{
	TypeNull:    true,
	TypeBoolean: true,
	TypeInt:     true,
	TypeLong:    true,
	TypeFloat:   true,
	TypeDouble:  true,
	TypeString:  true,
	TypeBytes:   true,
	TypeNDArray: true,
}

// ErrTypeMismatch is returned by Type.Check for values of the wrong type.
var ErrTypeMismatch = errors.New("type mismatch")

// Type is a descriptor type: a primitive name, an array or map of another
// type, or a union of types.
type Type struct {
	// Name is a primitive name, "array" or "map". Empty for unions.
	Name string

	// Items is the element type of an array.
	Items *Type

	// Values is the value type of a map. Map keys are always strings.
	Values *Type

	// Union lists the member types of a union.
	Union []Type
}

// Primitive returns the primitive type with the given name.
func Primitive(name string) Type {
	return Type{Name: name}
}

// ArrayOf returns an array type.
func ArrayOf(items Type) Type {
	return Type{Name: typeArray, Items: &items}
}

// MapOf returns a string-keyed map type.
func MapOf(values Type) Type {
	return Type{Name: typeMap, Values: &values}
}

// UnionOf returns a union of the given types.
func UnionOf(members ...Type) Type {
	return Type{Union: members}
}

// IsZero reports whether no type was declared.
func (t Type) IsZero() bool {
	return t.Name == "" && len(t.Union) == 0
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t.Name == typeArray }

// IsMap reports whether t is a map type.
func (t Type) IsMap() bool { return t.Name == typeMap }

// IsUnion reports whether t is a union.
func (t Type) IsUnion() bool { return len(t.Union) > 0 }

// IsNumeric reports whether t is an integer or floating point primitive.
func (t Type) IsNumeric() bool {
	switch t.canonical() {
	case TypeInt, TypeLong, TypeDouble:
		return true
	}
	return false
}

// canonical folds the primitive aliases: float and double are both IEEE
// floating point on the wire, int and long are both integers.
func (t Type) canonical() string {
	switch t.Name {
	case TypeFloat:
		return TypeDouble
	case TypeLong:
		return TypeInt
	default:
		return t.Name
	}
}

// Equal reports whether two types describe the same values.
func (t Type) Equal(other Type) bool {
	if t.IsUnion() || other.IsUnion() {
		if len(t.Union) != len(other.Union) {
			return false
		}
		a, b := t.unionKeys(), other.unionKeys()
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if t.canonical() != other.canonical() {
		return false
	}
	switch {
	case t.IsArray():
		return t.Items != nil && other.Items != nil && t.Items.Equal(*other.Items)
	case t.IsMap():
		return t.Values != nil && other.Values != nil && t.Values.Equal(*other.Values)
	}
	return true
}

func (t Type) unionKeys() []string {
	keys := make([]string, len(t.Union))
	for i, m := range t.Union {
		keys[i] = m.key()
	}
	sort.Strings(keys)
	return keys
}

func (t Type) key() string {
	if t.IsUnion() {
		return strings.Join(t.unionKeys(), "|")
	}
	switch {
	case t.IsArray() && t.Items != nil:
		return "array<" + t.Items.key() + ">"
	case t.IsMap() && t.Values != nil:
		return "map<" + t.Values.key() + ">"
	}
	return t.canonical()
}

// String returns a compact rendering such as "array<double>" or
// "null|string".
func (t Type) String() string {
	if t.IsUnion() {
		parts := make([]string, len(t.Union))
		for i, m := range t.Union {
			parts[i] = m.String()
		}
		return strings.Join(parts, "|")
	}
	switch {
	case t.IsArray() && t.Items != nil:
		return "array<" + t.Items.String() + ">"
	case t.IsMap() && t.Values != nil:
		return "map<" + t.Values.String() + ">"
	case t.Name == "":
		return "<none>"
	}
	return t.Name
}

// Validate checks that the type is well formed.
func (t Type) Validate() error {
	if t.IsUnion() {
		for _, m := range t.Union {
			if err := m.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	switch t.Name {
	case "":
		return fmt.Errorf("missing type")
	case typeArray:
		if t.Items == nil {
			return fmt.Errorf("array type without items")
		}
		return t.Items.Validate()
	case typeMap:
		if t.Values == nil {
			return fmt.Errorf("map type without values")
		}
		return t.Values.Validate()
	}
	if !primitives[t.Name] {
		return fmt.Errorf("unknown type %q", t.Name)
	}
	return nil
}

// Check reports whether v, a Go or CBOR-decoded value, is a valid instance
// of t.
func (t Type) Check(v any) error {
	if t.IsUnion() {
		for _, m := range t.Union {
			if m.Check(v) == nil {
				return nil
			}
		}
		return fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, t)
	}

	ok := false
	switch t.canonical() {
	case TypeNull:
		ok = v == nil
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeInt:
		_, ok = wire.ToInt64(v)
	case TypeDouble:
		_, ok = wire.ToFloat64(v)
	case TypeString:
		_, ok = v.(string)
	case TypeBytes:
		_, ok = v.([]byte)
	case TypeNDArray:
		ok = isNumericArray(v)
	case typeArray:
		return t.checkArray(v)
	case typeMap:
		return t.checkMap(v)
	}
	if !ok {
		return fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, t)
	}
	return nil
}

func (t Type) checkArray(v any) error {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, t)
	}
	if _, isBytes := v.([]byte); isBytes {
		return fmt.Errorf("%w: bytes is not %s", ErrTypeMismatch, t)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.Items.Check(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func (t Type) checkMap(v any) error {
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, t)
	}
	iter := rv.MapRange()
	for iter.Next() {
		if err := t.Values.Check(iter.Value().Interface()); err != nil {
			return fmt.Errorf("key %q: %w", iter.Key().String(), err)
		}
	}
	return nil
}

// isNumericArray accepts flat or nested slices of numbers.
func isNumericArray(v any) bool {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false
	}
	if _, isBytes := v.([]byte); isBytes {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if _, ok := wire.ToFloat64(item); ok {
			continue
		}
		if !isNumericArray(item) {
			return false
		}
	}
	return true
}

// parseType converts a decoded TOML type expression: a name, a union list,
// or a table {type = "array", items = T} / {type = "map", values = T}.
func parseType(v any) (Type, error) {
	switch raw := v.(type) {
	case nil:
		return Type{}, nil
	case string:
		if raw == typeArray || raw == typeMap {
			return Type{}, fmt.Errorf("%s type must be a table with its element type", raw)
		}
		t := Primitive(raw)
		return t, t.Validate()
	case []any:
		members := make([]Type, 0, len(raw))
		for _, item := range raw {
			m, err := parseType(item)
			if err != nil {
				return Type{}, err
			}
			if m.IsZero() {
				return Type{}, fmt.Errorf("empty union member")
			}
			members = append(members, m)
		}
		if len(members) == 0 {
			return Type{}, fmt.Errorf("empty union")
		}
		return UnionOf(members...), nil
	case map[string]any:
		name, _ := raw["type"].(string)
		switch name {
		case typeArray:
			items, err := parseType(raw["items"])
			if err != nil {
				return Type{}, fmt.Errorf("array items: %w", err)
			}
			t := ArrayOf(items)
			return t, t.Validate()
		case typeMap:
			values, err := parseType(raw["values"])
			if err != nil {
				return Type{}, fmt.Errorf("map values: %w", err)
			}
			t := MapOf(values)
			return t, t.Validate()
		default:
			return Type{}, fmt.Errorf("unsupported complex type %q", name)
		}
	default:
		return Type{}, fmt.Errorf("invalid type expression %T", v)
	}
}

// raw converts t back to its TOML/YAML expression form.
func (t Type) raw() any {
	if t.IsZero() {
		return nil
	}
	if t.IsUnion() {
		out := make([]any, len(t.Union))
		for i, m := range t.Union {
			out[i] = m.raw()
		}
		return out
	}
	switch {
	case t.IsArray():
		return map[string]any{"type": typeArray, "items": t.Items.raw()}
	case t.IsMap():
		return map[string]any{"type": typeMap, "values": t.Values.raw()}
	}
	return t.Name
}
