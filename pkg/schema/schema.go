// Package schema describes protobuf messages in YAML so that they can be
// encoded and decoded without generated Go code.
//
// A schema lists enums and messages. Build turns a message into a
// serial.Serializer over serial.Record values which the protoserial codec
// accepts like any hand-written serializer.
package schema

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Position is a location in a schema file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Schema is one parsed schema file.
type Schema struct {
	Position Position   `yaml:"-"`
	Package  string     `yaml:"package,omitempty"`
	Imports  []string   `yaml:"imports,omitempty"`
	Messages []*Message `yaml:"messages,omitempty"`
	Enums    []*Enum    `yaml:"enums,omitempty"`

	// imported holds the schemas named by Imports once a Loader resolved
	// them.
	imported []*Schema
}

// Message declares a message type.
type Message struct {
	Position Position `yaml:"-"`
	Name     string   `yaml:"name"`
	Fields   []*Field `yaml:"fields,omitempty"`
}

// Field declares one field of a message. Exactly one of Type, Map, OneOf
// and UnknownFields describes its content.
type Field struct {
	Position Position `yaml:"-"`
	Name     string   `yaml:"name"`

	// Number is the field number. Zero selects the position in the
	// message plus one.
	Number int `yaml:"number,omitempty"`

	// Type is a scalar type name or the name of an enum or message.
	Type string `yaml:"type,omitempty"`

	// Integer is the integer encoding: default, signed or fixed.
	Integer string `yaml:"integer,omitempty"`

	Repeated bool `yaml:"repeated,omitempty"`
	Packed   bool `yaml:"packed,omitempty"`
	Optional bool `yaml:"optional,omitempty"`
	Nullable bool `yaml:"nullable,omitempty"`

	Map           *MapType   `yaml:"map,omitempty"`
	OneOf         []*Variant `yaml:"oneof,omitempty"`
	UnknownFields bool       `yaml:"unknown_fields,omitempty"`
}

// MapType is the key and value type of a map field.
type MapType struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Variant is one alternative of a oneof field. Every variant has its own
// field number in the enclosing message.
type Variant struct {
	Position Position `yaml:"-"`
	Name     string   `yaml:"name"`
	Number   int      `yaml:"number,omitempty"`
	Type     string   `yaml:"type,omitempty"`
	Integer  string   `yaml:"integer,omitempty"`
}

// Enum declares an enum type.
type Enum struct {
	Position Position     `yaml:"-"`
	Name     string       `yaml:"name"`
	Values   []*EnumValue `yaml:"values,omitempty"`
}

// EnumValue is one enum constant. Without a number it takes its position
// in the enum.
type EnumValue struct {
	Position Position `yaml:"-"`
	Name     string   `yaml:"name"`
	Number   *int     `yaml:"number,omitempty"`
}

// Message returns the message named name, looking through imports.
func (s *Schema) Message(name string) *Message {
	for _, m := range s.Messages {
		if m.Name == name {
			return m
		}
	}
	for _, imp := range s.imported {
		if m := imp.Message(name); m != nil {
			return m
		}
	}
	return nil
}

// Enum returns the enum named name, looking through imports.
func (s *Schema) Enum(name string) *Enum {
	for _, e := range s.Enums {
		if e.Name == name {
			return e
		}
	}
	for _, imp := range s.imported {
		if e := imp.Enum(name); e != nil {
			return e
		}
	}
	return nil
}

// Imported returns the schemas resolved from Imports.
func (s *Schema) Imported() []*Schema { return s.imported }

// FieldNumber returns the effective number of field i.
func (m *Message) FieldNumber(i int) int {
	if n := m.Fields[i].Number; n != 0 {
		return n
	}
	return i + 1
}

// Field returns the field named name, or nil.
func (m *Message) Field(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Value returns the constant named name, or nil.
func (e *Enum) Value(name string) *EnumValue {
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// ValueNumber returns the effective number of constant i.
func (e *Enum) ValueNumber(i int) int {
	if n := e.Values[i].Number; n != nil {
		return *n
	}
	return i
}

// ValueByNumber returns the first constant numbered n, or nil.
func (e *Enum) ValueByNumber(n int) *EnumValue {
	for i, v := range e.Values {
		if e.ValueNumber(i) == n {
			return v
		}
	}
	return nil
}

func (s *Schema) UnmarshalYAML(n *yaml.Node) error {
	type plain Schema
	return decodeStrict(n, (*plain)(s), &s.Position, "package", "imports", "messages", "enums")
}

func (m *Message) UnmarshalYAML(n *yaml.Node) error {
	type plain Message
	return decodeStrict(n, (*plain)(m), &m.Position, "name", "fields")
}

func (f *Field) UnmarshalYAML(n *yaml.Node) error {
	type plain Field
	return decodeStrict(n, (*plain)(f), &f.Position,
		"name", "number", "type", "integer", "repeated", "packed", "optional", "nullable",
		"map", "oneof", "unknown_fields")
}

func (m *MapType) UnmarshalYAML(n *yaml.Node) error {
	type plain MapType
	return decodeStrict(n, (*plain)(m), nil, "key", "value")
}

func (v *Variant) UnmarshalYAML(n *yaml.Node) error {
	type plain Variant
	return decodeStrict(n, (*plain)(v), &v.Position, "name", "number", "type", "integer")
}

func (e *Enum) UnmarshalYAML(n *yaml.Node) error {
	type plain Enum
	return decodeStrict(n, (*plain)(e), &e.Position, "name", "values")
}

func (v *EnumValue) UnmarshalYAML(n *yaml.Node) error {
	type plain EnumValue
	return decodeStrict(n, (*plain)(v), &v.Position, "name", "number")
}

// decodeStrict decodes a mapping node into out, rejecting keys outside
// allowed, and records the node position.
func decodeStrict(n *yaml.Node, out any, pos *Position, allowed ...string) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if !slices.Contains(allowed, key.Value) {
			return fmt.Errorf("line %d: unknown key %q", key.Line, key.Value)
		}
		if value.Kind != yaml.SequenceNode {
			continue
		}
		for _, item := range value.Content {
			if item.Kind == yaml.ScalarNode && item.ShortTag() == "!!null" {
				return fmt.Errorf("line %d: empty entry in %q", item.Line, key.Value)
			}
		}
	}
	if err := n.Decode(out); err != nil {
		return err
	}
	if pos != nil {
		*pos = Position{Line: n.Line, Column: n.Column}
	}
	return nil
}

// setFilename stamps every position of s with name.
func (s *Schema) setFilename(name string) {
	s.Position.Filename = name
	for _, m := range s.Messages {
		m.Position.Filename = name
		for _, f := range m.Fields {
			f.Position.Filename = name
			for _, v := range f.OneOf {
				v.Position.Filename = name
			}
		}
	}
	for _, e := range s.Enums {
		e.Position.Filename = name
		for _, v := range e.Values {
			v.Position.Filename = name
		}
	}
}
