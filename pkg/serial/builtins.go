package serial

import (
	"fmt"
	"reflect"
)

// Serializer walks values of one shape against the Encoder and Decoder
// contracts.
type Serializer interface {
	Descriptor() Descriptor
	Serialize(e Encoder, v any) error
	Deserialize(d Decoder) (any, error)
}

// Merger is implemented by serializers whose values can absorb a second
// occurrence of the same element, such as lists split into several runs.
type Merger interface {
	Merge(d Decoder, previous any) (any, error)
}

type primitive[T any] struct {
	desc   Descriptor
	encode func(Encoder, T) error
	decode func(Decoder) (T, error)
}

func newPrimitive[T any](name string, kind Kind, encode func(Encoder, T) error, decode func(Decoder) (T, error)) Serializer {
	return &primitive[T]{
		desc:   PrimitiveDescriptor(name, kind),
		encode: encode,
		decode: decode,
	}
}

func (p *primitive[T]) Descriptor() Descriptor { return p.desc }

func (p *primitive[T]) Serialize(e Encoder, v any) error {
	t, ok := v.(T)
	if !ok {
		return mismatch(p.desc, v)
	}
	return p.encode(e, t)
}

func (p *primitive[T]) Deserialize(d Decoder) (any, error) {
	v, err := p.decode(d)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Built-in serializers for primitive Go types.
var (
	Bool    = newPrimitive("bool", KindBool, Encoder.EncodeBool, Decoder.DecodeBool)
	Int8    = newPrimitive("int8", KindInt8, Encoder.EncodeInt8, Decoder.DecodeInt8)
	Int16   = newPrimitive("int16", KindInt16, Encoder.EncodeInt16, Decoder.DecodeInt16)
	Int32   = newPrimitive("int32", KindInt32, Encoder.EncodeInt32, Decoder.DecodeInt32)
	Int64   = newPrimitive("int64", KindInt64, Encoder.EncodeInt64, Decoder.DecodeInt64)
	Uint32  = newPrimitive("uint32", KindUint32, Encoder.EncodeUint32, Decoder.DecodeUint32)
	Uint64  = newPrimitive("uint64", KindUint64, Encoder.EncodeUint64, Decoder.DecodeUint64)
	Float32 = newPrimitive("float32", KindFloat32, Encoder.EncodeFloat32, Decoder.DecodeFloat32)
	Float64 = newPrimitive("float64", KindFloat64, Encoder.EncodeFloat64, Decoder.DecodeFloat64)
	Rune    = newPrimitive("rune", KindRune, Encoder.EncodeRune, Decoder.DecodeRune)
	String  = newPrimitive("string", KindString, Encoder.EncodeString, Decoder.DecodeString)
	Bytes   = newPrimitive("bytes", KindBytes, Encoder.EncodeBytes, Decoder.DecodeBytes)
)

type enumSerializer[E ~int32] struct {
	desc Descriptor
}

// EnumOf returns a serializer for Go enum values whose numeric value is
// the index of the constant in d.
func EnumOf[E ~int32](d Descriptor) Serializer {
	if d.Kind() != KindEnum {
		panic(fmt.Sprintf("serial: EnumOf needs an enum descriptor, got %v", d.Kind()))
	}
	return &enumSerializer[E]{desc: d}
}

func (s *enumSerializer[E]) Descriptor() Descriptor { return s.desc }

func (s *enumSerializer[E]) Serialize(e Encoder, v any) error {
	x, ok := v.(E)
	if !ok {
		return mismatch(s.desc, v)
	}
	if int(x) < 0 || int(x) >= s.desc.ElementsCount() {
		return fmt.Errorf("%w: %d for %s", ErrEnumOutOfRange, x, s.desc.SerialName())
	}
	return e.EncodeEnum(s.desc, int(x))
}

func (s *enumSerializer[E]) Deserialize(d Decoder) (any, error) {
	i, err := d.DecodeEnum(s.desc)
	if err != nil {
		return nil, err
	}
	return E(i), nil
}

type enumNames struct {
	desc Descriptor
}

// EnumByName returns a serializer for enum values held as constant names.
func EnumByName(d Descriptor) Serializer {
	if d.Kind() != KindEnum {
		panic(fmt.Sprintf("serial: EnumByName needs an enum descriptor, got %v", d.Kind()))
	}
	return &enumNames{desc: d}
}

func (s *enumNames) Descriptor() Descriptor { return s.desc }

func (s *enumNames) Serialize(e Encoder, v any) error {
	name, ok := v.(string)
	if !ok {
		return mismatch(s.desc, v)
	}
	i := s.desc.ElementIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q for %s", ErrEnumOutOfRange, name, s.desc.SerialName())
	}
	return e.EncodeEnum(s.desc, i)
}

func (s *enumNames) Deserialize(d Decoder) (any, error) {
	i, err := d.DecodeEnum(s.desc)
	if err != nil {
		return nil, err
	}
	return s.desc.ElementName(i), nil
}

type nullable struct {
	inner Serializer
	desc  Descriptor
}

// Nullable returns a serializer that also accepts nil.
func Nullable(s Serializer) Serializer {
	if s.Descriptor().IsNullable() {
		return s
	}
	return &nullable{inner: s, desc: NullableDescriptor(s.Descriptor())}
}

func (n *nullable) Descriptor() Descriptor { return n.desc }

func (n *nullable) Serialize(e Encoder, v any) error {
	if IsNil(v) {
		return e.EncodeNull()
	}
	return n.inner.Serialize(e, v)
}

func (n *nullable) Deserialize(d Decoder) (any, error) {
	if !d.DecodeNotNullMark() {
		return nil, d.DecodeNull()
	}
	return n.inner.Deserialize(d)
}

type pointer[T any] struct {
	inner Serializer
	desc  Descriptor
}

// Ptr returns a nullable serializer for *T values, delegating the pointee
// to s.
func Ptr[T any](s Serializer) Serializer {
	return &pointer[T]{inner: s, desc: NullableDescriptor(s.Descriptor())}
}

func (p *pointer[T]) Descriptor() Descriptor { return p.desc }

func (p *pointer[T]) Serialize(e Encoder, v any) error {
	if v == nil {
		return e.EncodeNull()
	}
	ptr, ok := v.(*T)
	if !ok {
		return mismatch(p.desc, v)
	}
	if ptr == nil {
		return e.EncodeNull()
	}
	return p.inner.Serialize(e, *ptr)
}

func (p *pointer[T]) Deserialize(d Decoder) (any, error) {
	if !d.DecodeNotNullMark() {
		return (*T)(nil), d.DecodeNull()
	}
	v, err := p.inner.Deserialize(d)
	if err != nil {
		return nil, err
	}
	t, ok := v.(T)
	if !ok {
		return nil, mismatch(p.desc, v)
	}
	return &t, nil
}

// IsNil reports whether v is nil or a nil pointer, map, slice or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// IsZero reports whether v holds its default value. Empty slices and maps
// count as default.
func IsZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return rv.IsZero()
}
