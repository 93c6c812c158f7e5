package protoserial

import (
	"fmt"

	"github.com/blockberries/protoserial/pkg/serial"
)

// encodeStrategy selects how an encoder numbers its elements and where its
// output goes.
type encodeStrategy uint8

const (
	// encodeMessage numbers elements from the message layout. A nested
	// message buffers its fields and writes them as one LEN field.
	encodeMessage encodeStrategy = iota
	// encodeRepeated writes every element under the list's own tag.
	encodeRepeated
	// encodeNestedRepeated writes a list inside a list as a LEN block whose
	// elements are field 1.
	encodeNestedRepeated
	// encodePacked writes untagged scalars into one LEN field.
	encodePacked
	// encodeMapEntry writes a key/value entry as a message with fields 1
	// and 2.
	encodeMapEntry
	// encodeOneOf writes the chosen variant of a oneof element directly into
	// the enclosing message.
	encodeOneOf
	// encodeVariant writes the single element of a oneof variant under the
	// variant's field number.
	encodeVariant
)

type encoder struct {
	f        *Format
	w        *Writer
	desc     serial.Descriptor
	strategy encodeStrategy
	tags     tagStack
	layout   *messageLayout

	// tag is the field this encoder was opened under.
	tag ProtoDesc

	// Buffered strategies write into buf and flush into parent on
	// EndStructure.
	buf    *Output
	parent *Writer

	depth int
}

func newEncoder(f *Format, w *Writer, desc serial.Descriptor) (*encoder, error) {
	e := &encoder{f: f, w: w, desc: desc}
	if hasLayout(desc.Kind()) {
		l, err := f.layout(desc)
		if err != nil {
			return nil, NewEncodeError(err.Error(), err)
		}
		e.layout = l
	}
	return e, nil
}

func (e *encoder) child(desc serial.Descriptor, strategy encodeStrategy, tag ProtoDesc, buffered bool) (*encoder, error) {
	depth := e.depth + 1
	if limit := e.f.opts.Limits.MaxDepth; limit > 0 && depth > limit {
		return nil, &EncodeError{
			Type:    desc.SerialName(),
			Message: fmt.Sprintf("nesting depth %d exceeds limit %d", depth, limit),
			Cause:   ErrMaxDepthExceeded,
		}
	}
	c := &encoder{f: e.f, w: e.w, desc: desc, strategy: strategy, tag: tag, depth: depth}
	if buffered {
		c.buf = NewOutput()
		c.w = NewWriter(c.buf)
		c.parent = e.w
	}
	if strategy == encodeMessage {
		l, err := e.f.layout(desc)
		if err != nil {
			return nil, NewEncodeError(err.Error(), err)
		}
		c.layout = l
	}
	return c, nil
}

func (e *encoder) Module() *serial.Module { return e.f.module() }

func (e *encoder) EncodeBool(v bool) error {
	var b uint64
	if v {
		b = 1
	}
	e.w.WriteUint64(b, ProtoDesc{Number: e.tags.pop().Number})
	return nil
}

func (e *encoder) EncodeInt8(v int8) error {
	e.w.WriteInt32(int32(v), e.tags.pop())
	return nil
}

func (e *encoder) EncodeInt16(v int16) error {
	e.w.WriteInt32(int32(v), e.tags.pop())
	return nil
}

func (e *encoder) EncodeInt32(v int32) error {
	e.w.WriteInt32(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeInt64(v int64) error {
	e.w.WriteInt64(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeUint32(v uint32) error {
	e.w.WriteUint32(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeUint64(v uint64) error {
	e.w.WriteUint64(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeFloat32(v float32) error {
	e.w.WriteFloat32(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeFloat64(v float64) error {
	e.w.WriteFloat64(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeRune(v rune) error {
	e.w.WriteInt32(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeString(v string) error {
	e.w.WriteString(v, e.tags.pop())
	return nil
}

func (e *encoder) EncodeBytes(v []byte) error {
	e.w.WriteLengthDelimited(v, e.tags.pop())
	return nil
}

// EncodeEnum writes the constant's number. Enum numbers are always plain
// varints whatever integer type the element declares.
func (e *encoder) EncodeEnum(d serial.Descriptor, index int) error {
	tag := e.tags.pop()
	if index < 0 || index >= d.ElementsCount() {
		return NewEncodeError(fmt.Sprintf("enum index %d out of range for %s", index, d.SerialName()), serial.ErrEnumOutOfRange)
	}
	e.w.WriteInt32(int32(extractProtoID(d, index, true)), ProtoDesc{Number: tag.Number})
	return nil
}

func (e *encoder) EncodeNull() error {
	e.tags.pop()
	return NewEncodeError("nil value", ErrNullNotSupported)
}

func (e *encoder) EncodeSerializable(s serial.Serializer, v any) error {
	return s.Serialize(e, v)
}

func (e *encoder) BeginStructure(d serial.Descriptor) (serial.CompositeEncoder, error) {
	return e.begin(d, -1, false)
}

// BeginCollection writes the element count first when the collection is
// positional, since nothing else would delimit it.
func (e *encoder) BeginCollection(d serial.Descriptor, size int) (serial.CompositeEncoder, error) {
	return e.begin(d, size, true)
}

func (e *encoder) begin(d serial.Descriptor, size int, collection bool) (serial.CompositeEncoder, error) {
	tag := e.tags.peek()
	switch d.Kind() {
	case serial.KindList:
		// A list inside a list is always a LEN block of field 1 values,
		// whatever the packing of the outer field.
		if e.desc.Kind() == serial.KindList && !tag.IsMissing() && !serial.Same(e.desc, d) {
			return e.child(d, encodeNestedRepeated, tag, true)
		}
		if tag.Packed && !tag.IsMissing() && isPackable(d.ElementDescriptor(0)) {
			return e.child(d, encodePacked, tag, true)
		}
		if tag.IsMissing() {
			if !collection || size < 0 {
				return nil, &EncodeError{Type: d.SerialName(), Message: "a list without a field number needs its size", Cause: ErrMisuse}
			}
			e.w.WriteVarint(uint64(size))
		}
		return e.child(d, encodeRepeated, tag, false)

	case serial.KindMap:
		return e.child(d, encodeMapEntry, tag, true)

	case serial.KindClass, serial.KindObject, serial.KindSealed, serial.KindOpen:
		switch {
		case tag.OneOf:
			return e.child(d, encodeOneOf, tag, false)
		case tag.payload:
			return e.child(d, encodeVariant, tag, false)
		case tag.IsMissing() && serial.Same(d, e.desc):
			return e, nil
		}
		return e.child(d, encodeMessage, tag, true)

	default:
		return nil, &EncodeError{
			Type:    d.SerialName(),
			Message: fmt.Sprintf("kind %v cannot be written as a structure", d.Kind()),
			Cause:   ErrMisuse,
		}
	}
}

// elementTag returns the tag element i of d is written under.
func (e *encoder) elementTag(d serial.Descriptor, i int, s serial.Serializer) (ProtoDesc, error) {
	switch e.strategy {
	case encodeRepeated:
		return e.tag, nil
	case encodePacked:
		return e.tag.untagged(), nil
	case encodeNestedRepeated:
		return ProtoDesc{Number: 1}, nil
	case encodeMapEntry:
		return ProtoDesc{Number: i%2 + 1, Integer: e.tag.Integer}, nil
	case encodeOneOf:
		n, err := variantNumber(s.Descriptor())
		if err != nil {
			return ProtoDesc{}, err
		}
		return ProtoDesc{Number: n, payload: true}, nil
	case encodeVariant:
		tag, err := extractParameters(d, i)
		if err != nil {
			return ProtoDesc{}, err
		}
		tag.Number = e.tag.Number
		return tag, nil
	default:
		if e.layout != nil && serial.Same(d, e.desc) {
			return e.layout.tags[i], nil
		}
		return extractParameters(d, i)
	}
}

func (e *encoder) EncodeElement(d serial.Descriptor, i int, s serial.Serializer, v any) error {
	switch {
	case e.strategy == encodeMessage && e.layout != nil && i == e.layout.unknown:
		return e.writeUnknown(d, i, v)
	case e.strategy == encodeOneOf && i == serial.PolymorphicTypeIndex:
		// The variant's field number identifies it.
		return nil
	}

	tag, err := e.elementTag(d, i, s)
	if err != nil {
		return encodeElementError(err, d.SerialName(), elementName(d, i))
	}
	depth := e.tags.push(tag)
	err = s.Serialize(e, v)
	e.tags.truncate(depth)
	if err != nil {
		return encodeElementError(err, d.SerialName(), elementName(d, i))
	}
	return nil
}

func (e *encoder) EncodeNullableElement(d serial.Descriptor, i int, s serial.Serializer, v any) error {
	if !serial.IsNil(v) {
		return e.EncodeElement(d, i, s, v)
	}
	if elementDescriptor(d, i).Kind().IsCollection() {
		return &EncodeError{
			Type:    d.SerialName(),
			Field:   elementName(d, i),
			Message: "'null' is not supported for collection types in ProtoBuf",
			Cause:   ErrNullNotSupported,
		}
	}
	return nil
}

func (e *encoder) ShouldEncodeElementDefault(serial.Descriptor, int) bool {
	return e.f.opts.EncodeDefaults
}

func (e *encoder) EndStructure(serial.Descriptor) error {
	if e.parent == nil {
		return nil
	}
	if e.strategy == encodePacked && e.buf.Len() == 0 {
		return nil
	}
	e.parent.WriteSubmessage(e.buf, e.tag)
	return nil
}

func (e *encoder) writeUnknown(d serial.Descriptor, i int, v any) error {
	var msg ProtoMessage
	switch x := v.(type) {
	case nil:
		return nil
	case ProtoMessage:
		msg = x
	case *ProtoMessage:
		if x == nil {
			return nil
		}
		msg = *x
	default:
		return &EncodeError{
			Type:    d.SerialName(),
			Field:   d.ElementName(i),
			Message: fmt.Sprintf("unknown fields element holds %T, want ProtoMessage", v),
			Cause:   ErrMisuse,
		}
	}
	for _, f := range msg.Fields {
		e.w.WriteUnknownField(f)
	}
	return nil
}
