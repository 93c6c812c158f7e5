package schema

import (
	"fmt"

	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/serial"
)

// VariantValue is the element name under which a oneof variant holds its
// value. A decoded oneof is a serial.Choice whose Value is a serial.Record
// with this single key.
const VariantValue = "value"

// Build returns the serializer of the named message. Its values are
// serial.Record maps keyed by field name:
//
//   - scalars hold the Go type of their serial serializer (int32, string...)
//   - enums hold the constant name
//   - nested messages hold serial.Record
//   - repeated fields hold []any, maps hold map[any]any
//   - oneofs hold serial.Choice
//   - the unknown_fields element holds protoserial.ProtoMessage
//
// Build fails when s has error-severity validation findings.
func Build(s *Schema, message string) (serial.Serializer, error) {
	if errs := Errors(Validate(s)); len(errs) > 0 {
		return nil, fmt.Errorf("schema: invalid schema: %w", errs[0])
	}
	return newBuilder(s).build(message)
}

type builder struct {
	schema   *Schema
	messages map[*Message]serial.Serializer
	enums    map[*Enum]serial.Serializer
}

func newBuilder(s *Schema) *builder {
	return &builder{
		schema:   s,
		messages: make(map[*Message]serial.Serializer),
		enums:    make(map[*Enum]serial.Serializer),
	}
}

func (b *builder) build(name string) (serial.Serializer, error) {
	m := b.schema.Message(name)
	if m == nil {
		return nil, fmt.Errorf("schema: unknown message %q", name)
	}
	return b.message(m), nil
}

func (b *builder) message(m *Message) serial.Serializer {
	if s, ok := b.messages[m]; ok {
		return s
	}
	fields := make([]serial.Field[serial.Record], len(m.Fields))
	for i, f := range m.Fields {
		fields[i] = b.field(m, i, f)
	}
	s := serial.NewStruct(m.Name, fields...)
	b.messages[m] = s
	return s
}

func (b *builder) field(m *Message, i int, f *Field) serial.Field[serial.Record] {
	if f.UnknownFields {
		return serial.RecordField(f.Name, protoserial.UnknownFields,
			serial.Optional(), serial.Annotate(protoserial.ProtoUnknownFields{}))
	}

	var (
		ser         serial.Serializer
		integer     protoserial.IntegerType
		annotations = []any{protoserial.ProtoNumber(m.FieldNumber(i))}
	)
	switch {
	case len(f.OneOf) > 0:
		ser = serial.Nullable(b.oneof(m, f))
		annotations = []any{protoserial.ProtoOneOf{}}

	case f.Map != nil:
		key, value := b.typeRef(f.Map.Key), b.typeRef(f.Map.Value)
		ser = collection{
			Serializer: serial.MapOf[any, any](key, value),
			empty:      func() any { return map[any]any{} },
		}
		integer = FieldEncoding(f)

	default:
		ser = b.typeRef(f.Type)
		integer = FieldEncoding(f)
		switch {
		case f.Repeated:
			ser = collection{
				Serializer: serial.ListOf[any](ser),
				empty:      func() any { return []any{} },
			}
			if f.Packed {
				annotations = append(annotations, protoserial.ProtoPacked{})
			}
		case f.Nullable || b.schema.Message(f.Type) != nil:
			ser = serial.Nullable(ser)
		}
	}

	if integer != protoserial.IntegerDefault {
		annotations = append(annotations, protoserial.ProtoType(integer))
	}
	opts := []serial.FieldOption{serial.Annotate(annotations...)}
	if f.Optional {
		opts = append(opts, serial.Optional())
	}
	return serial.RecordField(f.Name, ser, opts...)
}

// oneof builds one single-element class per variant, numbered by the
// variant's field number.
func (b *builder) oneof(m *Message, f *Field) serial.Serializer {
	variants := make([]serial.Serializer, len(f.OneOf))
	for i, v := range f.OneOf {
		annotations := []any{protoserial.ProtoNumber(v.Number)}
		if it := IntegerEncoding(v.Type, v.Integer); it != protoserial.IntegerDefault {
			annotations = append(annotations, protoserial.ProtoType(it))
		}
		variants[i] = serial.NewStruct(v.Name,
			serial.RecordField(VariantValue, b.typeRef(v.Type), serial.Annotate(annotations...)))
	}
	return serial.ChoicesOf(m.Name+"."+f.Name, variants...)
}

// typeRef resolves a type name. Validation guarantees it exists.
func (b *builder) typeRef(name string) serial.Serializer {
	if st, ok := scalarTypes[name]; ok {
		return st.ser
	}
	if e := b.schema.Enum(name); e != nil {
		return b.enum(e)
	}
	return b.message(b.schema.Message(name))
}

func (b *builder) enum(e *Enum) serial.Serializer {
	if s, ok := b.enums[e]; ok {
		return s
	}
	entries := make([]serial.EnumEntry, len(e.Values))
	for i, v := range e.Values {
		entries[i] = serial.EnumEntry{
			Name:        v.Name,
			Annotations: []any{protoserial.ProtoNumber(e.ValueNumber(i))},
		}
	}
	s := serial.EnumByName(serial.EnumDescriptor(e.Name, entries))
	b.enums[e] = s
	return s
}

// collection substitutes an empty list or map for nil, so records decoded
// without the field encode again.
type collection struct {
	serial.Serializer
	empty func() any
}

func (c collection) Serialize(e serial.Encoder, v any) error {
	if v == nil {
		v = c.empty()
	}
	return c.Serializer.Serialize(e, v)
}

func (c collection) Merge(d serial.Decoder, previous any) (any, error) {
	return c.Serializer.(serial.Merger).Merge(d, previous)
}
