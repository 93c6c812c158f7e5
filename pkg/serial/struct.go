package serial

import "fmt"

// Field describes one element of a Struct.
type Field[T any] struct {
	name        string
	ser         Serializer
	optional    bool
	annotations []any
	get         func(*T) any
	set         func(*T, any) error
}

// FieldOption configures a Field.
type FieldOption func(*fieldOptions)

type fieldOptions struct {
	optional    bool
	annotations []any
}

// Optional marks a field as having a default: it may be absent from the
// input and is skipped on output while it holds its zero value.
func Optional() FieldOption {
	return func(o *fieldOptions) { o.optional = true }
}

// Annotate attaches format annotations to a field.
func Annotate(annotations ...any) FieldOption {
	return func(o *fieldOptions) { o.annotations = append(o.annotations, annotations...) }
}

// FieldOf declares a field of T with Go type V.
func FieldOf[T, V any](name string, s Serializer, get func(*T) V, set func(*T, V), opts ...FieldOption) Field[T] {
	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}
	return Field[T]{
		name:        name,
		ser:         s,
		optional:    o.optional,
		annotations: o.annotations,
		get:         func(t *T) any { return get(t) },
		set: func(t *T, v any) error {
			x, err := cast[V](s.Descriptor(), v)
			if err != nil {
				return err
			}
			set(t, x)
			return nil
		},
	}
}

// Struct serializes T as a structure with a fixed list of fields.
type Struct[T any] struct {
	desc   Descriptor
	fields []Field[T]
}

// NewStruct returns a serializer for T named name.
func NewStruct[T any](name string, fields ...Field[T]) *Struct[T] {
	return NewAnnotatedStruct(name, nil, fields...)
}

// NewAnnotatedStruct is NewStruct with class-level annotations.
func NewAnnotatedStruct[T any](name string, annotations []any, fields ...Field[T]) *Struct[T] {
	elements := make([]Element, len(fields))
	for i, f := range fields {
		elements[i] = Element{
			Name:        f.name,
			Descriptor:  f.ser.Descriptor(),
			Annotations: f.annotations,
			Optional:    f.optional,
		}
	}
	return &Struct[T]{
		desc:   NewDescriptor(name, KindClass, elements, annotations...),
		fields: fields,
	}
}

func (s *Struct[T]) Descriptor() Descriptor { return s.desc }

func (s *Struct[T]) Serialize(e Encoder, v any) error {
	var val T
	switch x := v.(type) {
	case T:
		val = x
	case *T:
		if x == nil {
			return mismatch(s.desc, v)
		}
		val = *x
	default:
		return mismatch(s.desc, v)
	}

	c, err := e.BeginStructure(s.desc)
	if err != nil {
		return err
	}
	for i := range s.fields {
		f := &s.fields[i]
		fv := f.get(&val)
		if f.optional && IsZero(fv) && !c.ShouldEncodeElementDefault(s.desc, i) {
			continue
		}
		if f.ser.Descriptor().IsNullable() {
			err = c.EncodeNullableElement(s.desc, i, f.ser, fv)
		} else {
			err = c.EncodeElement(s.desc, i, f.ser, fv)
		}
		if err != nil {
			return err
		}
	}
	return c.EndStructure(s.desc)
}

func (s *Struct[T]) Deserialize(d Decoder) (any, error) {
	var val T
	c, err := d.BeginStructure(s.desc)
	if err != nil {
		return nil, err
	}
	seen := make([]bool, len(s.fields))
	for {
		i, err := c.DecodeElementIndex(s.desc)
		if err != nil {
			return nil, err
		}
		if i == DecodeDone {
			break
		}
		if i < 0 || i >= len(s.fields) {
			return nil, unexpectedIndex(s.desc, i)
		}

		f := &s.fields[i]
		var previous any
		if seen[i] {
			previous = f.get(&val)
		}
		var v any
		if f.ser.Descriptor().IsNullable() {
			v, err = c.DecodeNullableElement(s.desc, i, f.ser, previous)
		} else {
			v, err = c.DecodeElement(s.desc, i, f.ser, previous)
		}
		if err != nil {
			return nil, err
		}
		if err := f.set(&val, v); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.desc.SerialName(), f.name, err)
		}
		seen[i] = true
	}
	if err := c.EndStructure(s.desc); err != nil {
		return nil, err
	}
	return val, nil
}

// Record is a dynamically shaped message keyed by element name.
type Record map[string]any

// RecordField declares a Record element. Absent and nil values are left
// out of the map.
func RecordField(name string, s Serializer, opts ...FieldOption) Field[Record] {
	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}
	return Field[Record]{
		name:        name,
		ser:         s,
		optional:    o.optional,
		annotations: o.annotations,
		get:         func(r *Record) any { return (*r)[name] },
		set: func(r *Record, v any) error {
			if IsNil(v) {
				delete(*r, name)
				return nil
			}
			if *r == nil {
				*r = Record{}
			}
			(*r)[name] = v
			return nil
		},
	}
}
