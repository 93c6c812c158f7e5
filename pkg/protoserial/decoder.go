package protoserial

import (
	"fmt"
	"math"

	"github.com/blockberries/protoserial/pkg/serial"
)

// decodeStrategy selects how a decoder finds its elements.
type decodeStrategy uint8

const (
	// decodeMessage resolves field numbers through the message layout.
	decodeMessage decodeStrategy = iota
	// decodeRepeated yields consecutive fields with the list's number, or a
	// counted run of positional values.
	decodeRepeated
	// decodePacked yields untagged values until its slice is exhausted.
	decodePacked
	// decodeMapEntry maps field 1 to the key and field 2 to the value.
	decodeMapEntry
	// decodeOneOf yields the variant name and value of a oneof field.
	decodeOneOf
	// decodeVariant yields the single element of a oneof variant.
	decodeVariant
	// decodeEmpty yields nothing. Absent lists and maps decode from it.
	decodeEmpty
)

// absence records why DecodeElementIndex returned an element that is not on
// the wire.
type absence uint8

const (
	present absence = iota
	absentEmpty
	absentNull
)

type decoder struct {
	f        *Format
	r        *Reader
	desc     serial.Descriptor
	strategy decodeStrategy
	tags     tagStack
	layout   *messageLayout
	marker   elementMarker

	// tag is the field this decoder was opened under.
	tag ProtoDesc

	// Repeated and packed state. size is the element count of a positional
	// list, or -1 when the list is delimited by its field number.
	index    int
	size     int
	packable bool
	wireType WireType

	// field is the variant field number of a oneof.
	field int

	absent      absence
	absentIndex int

	depth int
}

func newDecoder(f *Format, r *Reader, desc serial.Descriptor) (*decoder, error) {
	d := &decoder{f: f, r: r, desc: desc, size: -1}
	if hasLayout(desc.Kind()) {
		if err := d.initMessage(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *decoder) initMessage() error {
	l, err := d.f.layout(d.desc)
	if err != nil {
		return NewDecodeError(err.Error(), err)
	}
	d.layout = l
	d.marker = newElementMarker(d.desc.ElementsCount())
	return nil
}

func (d *decoder) child(desc serial.Descriptor, strategy decodeStrategy, tag ProtoDesc, r *Reader) (*decoder, error) {
	depth := d.depth + 1
	if limit := d.f.opts.Limits.MaxDepth; limit > 0 && depth > limit {
		return nil, &DecodeError{
			Type:    desc.SerialName(),
			Offset:  d.r.in.Pos(),
			Message: fmt.Sprintf("nesting depth %d exceeds limit %d", depth, limit),
			Cause:   ErrMaxDepthExceeded,
		}
	}
	c := &decoder{f: d.f, r: r, desc: desc, strategy: strategy, tag: tag, size: -1, depth: depth}
	if strategy == decodeMessage {
		if err := c.initMessage(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (d *decoder) Module() *serial.Module { return d.f.module() }

// DecodeNotNullMark reports false only for absent values.
func (d *decoder) DecodeNotNullMark() bool { return d.strategy != decodeEmpty }

func (d *decoder) DecodeNull() error { return nil }

func (d *decoder) DecodeBool() (bool, error) {
	return d.r.ReadBool(ProtoDesc{Number: d.tags.pop().Number})
}

func (d *decoder) DecodeInt8() (int8, error) {
	v, err := d.r.ReadInt32(d.tags.pop())
	return int8(v), err
}

func (d *decoder) DecodeInt16() (int16, error) {
	v, err := d.r.ReadInt32(d.tags.pop())
	return int16(v), err
}

func (d *decoder) DecodeInt32() (int32, error) { return d.r.ReadInt32(d.tags.pop()) }

func (d *decoder) DecodeInt64() (int64, error) { return d.r.ReadInt64(d.tags.pop()) }

func (d *decoder) DecodeUint32() (uint32, error) { return d.r.ReadUint32(d.tags.pop()) }

func (d *decoder) DecodeUint64() (uint64, error) { return d.r.ReadUint64(d.tags.pop()) }

func (d *decoder) DecodeFloat32() (float32, error) { return d.r.ReadFloat32(d.tags.pop()) }

func (d *decoder) DecodeFloat64() (float64, error) { return d.r.ReadFloat64(d.tags.pop()) }

func (d *decoder) DecodeRune() (rune, error) { return d.r.ReadInt32(d.tags.pop()) }

func (d *decoder) DecodeString() (string, error) { return d.r.ReadString(d.tags.pop()) }

func (d *decoder) DecodeBytes() ([]byte, error) { return d.r.ReadBytes(d.tags.pop()) }

// DecodeEnum maps the number on the wire back to the constant's index.
func (d *decoder) DecodeEnum(desc serial.Descriptor) (int, error) {
	start := d.r.in.Pos()
	n, err := d.r.ReadInt32(ProtoDesc{Number: d.tags.pop().Number})
	if err != nil {
		return 0, err
	}
	for i := 0; i < desc.ElementsCount(); i++ {
		if extractProtoID(desc, i, true) == int(n) {
			return i, nil
		}
	}
	return 0, NewDecodeErrorAt(start, fmt.Sprintf("%d is not among valid %s enum proto numbers", n, desc.SerialName()), ErrUnknownEnumValue)
}

func (d *decoder) DecodeSerializable(s serial.Serializer) (any, error) {
	return s.Deserialize(d)
}

func (d *decoder) BeginStructure(desc serial.Descriptor) (serial.CompositeDecoder, error) {
	if d.strategy == decodeEmpty {
		return d, nil
	}
	tag := d.tags.peek()
	switch desc.Kind() {
	case serial.KindList:
		return d.beginList(desc, tag)

	case serial.KindMap:
		in, err := d.r.ReadLengthDelimitedSlice(tag)
		if err != nil {
			return nil, err
		}
		return d.child(desc, decodeMapEntry, tag, NewReader(in, &d.f.opts))

	case serial.KindClass, serial.KindObject, serial.KindSealed, serial.KindOpen:
		switch {
		case tag.OneOf:
			c, err := d.child(desc, decodeOneOf, tag, d.r)
			if err != nil {
				return nil, err
			}
			c.field = d.r.CurrentField()
			return c, nil
		case tag.payload:
			return d.child(desc, decodeVariant, tag, d.r)
		case tag.IsMissing() && serial.Same(desc, d.desc):
			return d, nil
		}
		in, err := d.r.ReadLengthDelimitedSlice(tag)
		if err != nil {
			return nil, err
		}
		return d.child(desc, decodeMessage, tag, NewReader(in, &d.f.opts))

	default:
		return nil, &DecodeError{
			Type:    desc.SerialName(),
			Offset:  -1,
			Message: fmt.Sprintf("kind %v cannot be read as a structure", desc.Kind()),
			Cause:   ErrMisuse,
		}
	}
}

func (d *decoder) beginList(desc serial.Descriptor, tag ProtoDesc) (serial.CompositeDecoder, error) {
	packable := isPackable(desc.ElementDescriptor(0))

	switch {
	case d.desc.Kind() == serial.KindList && !tag.IsMissing() && !serial.Same(d.desc, desc):
		// A list inside a list: a LEN block of field 1 values.
		in, err := d.r.ReadLengthDelimitedSlice(tag)
		if err != nil {
			return nil, err
		}
		r := NewReader(in, &d.f.opts)
		if _, err := r.ReadTag(); err != nil {
			return nil, err
		}
		c, err := d.child(desc, decodeRepeated, ProtoDesc{Number: 1}, r)
		if err != nil {
			return nil, err
		}
		c.packable = packable
		return c, nil

	case packable && !tag.IsMissing() && d.r.CurrentWireType() == WireBytes:
		in, err := d.r.ReadLengthDelimitedSlice(tag)
		if err != nil {
			return nil, err
		}
		return d.child(desc, decodePacked, tag.untagged(), NewReader(in, &d.f.opts))
	}

	c, err := d.child(desc, decodeRepeated, tag, d.r)
	if err != nil {
		return nil, err
	}
	c.packable = packable
	if tag.IsMissing() {
		start := d.r.in.Pos()
		n, err := d.r.ReadUint64(MissingTag)
		if err != nil {
			return nil, err
		}
		if n > math.MaxInt32 {
			return nil, NewDecodeErrorAt(start, fmt.Sprintf("element count %d of %s exceeds the int32 range", n, desc.SerialName()), ErrInvalidLength)
		}
		if limit := d.f.opts.Limits.MaxCollectionLength; limit > 0 && int(n) > limit {
			return nil, NewDecodeErrorAt(start, fmt.Sprintf("list of %d elements exceeds limit %d", n, limit), ErrMaxCollectionLength)
		}
		// Every element takes at least one byte.
		if avail := d.r.in.Available(); int(n) > avail {
			return nil, NewDecodeErrorAt(start, fmt.Sprintf("list of %d elements but only %d bytes remain", n, avail), ErrUnexpectedEOF)
		}
		c.size = int(n)
	}
	return c, nil
}

func (d *decoder) DecodeElementIndex(desc serial.Descriptor) (int, error) {
	switch d.strategy {
	case decodeMessage:
		return d.nextField(desc)
	case decodeRepeated:
		return d.nextRepeated()
	case decodePacked:
		if d.r.EOF() {
			return serial.DecodeDone, nil
		}
		d.index++
		return d.index - 1, nil
	case decodeMapEntry:
		for {
			field, err := d.r.ReadTag()
			if err != nil {
				return 0, err
			}
			switch field {
			case EOFField:
				return serial.DecodeDone, nil
			case 1:
				return 0, nil
			case 2:
				return 1, nil
			}
			if err := d.r.SkipField(); err != nil {
				return 0, err
			}
		}
	case decodeOneOf:
		if d.index > serial.PolymorphicValueIndex {
			return serial.DecodeDone, nil
		}
		d.index++
		return d.index - 1, nil
	case decodeVariant:
		if d.index > 0 {
			return serial.DecodeDone, nil
		}
		d.index++
		return 0, nil
	default:
		return serial.DecodeDone, nil
	}
}

func (d *decoder) nextField(desc serial.Descriptor) (int, error) {
	if d.layout == nil {
		return serial.DecodeDone, nil
	}
	for {
		field, err := d.r.ReadTag()
		if err != nil {
			return 0, err
		}
		if field == EOFField {
			return d.nextAbsent(desc)
		}
		i := d.layout.index(field)
		if i < 0 {
			if d.layout.unknown >= 0 {
				d.marker.mark(d.layout.unknown)
				return d.layout.unknown, nil
			}
			if err := d.r.SkipField(); err != nil {
				return 0, err
			}
			continue
		}
		d.marker.mark(i)
		return i, nil
	}
}

// nextAbsent walks the elements never seen on the wire once input is
// exhausted.
func (d *decoder) nextAbsent(desc serial.Descriptor) (int, error) {
	for {
		i := d.marker.nextUnmarked()
		if i < 0 {
			return serial.DecodeDone, nil
		}
		d.marker.mark(i)
		if i == d.layout.unknown || desc.IsElementOptional(i) {
			continue
		}
		elem := desc.ElementDescriptor(i)
		switch {
		case elem.Kind().IsCollection():
			d.absent, d.absentIndex = absentEmpty, i
			return i, nil
		case elem.IsNullable():
			d.absent, d.absentIndex = absentNull, i
			return i, nil
		}
		return 0, &DecodeError{
			Type:        desc.SerialName(),
			Field:       desc.ElementName(i),
			FieldNumber: d.layout.tags[i].Number,
			Offset:      -1,
			Message: fmt.Sprintf("field '%s' (#%d) is required in type %s but it was missing",
				desc.ElementName(i), d.layout.tags[i].Number, desc.SerialName()),
			Cause: ErrMissingField,
		}
	}
}

func (d *decoder) nextRepeated() (int, error) {
	if d.size >= 0 {
		if d.index >= d.size {
			return serial.DecodeDone, nil
		}
		d.index++
		return d.index - 1, nil
	}

	field := d.r.CurrentField()
	if d.index == 0 {
		// The enclosing decoder has already read the first tag.
		d.wireType = d.r.CurrentWireType()
	} else {
		var err error
		if field, err = d.r.ReadTag(); err != nil {
			return 0, err
		}
	}
	if field == EOFField {
		return serial.DecodeDone, nil
	}
	if field != d.tag.Number || (d.packable && d.r.CurrentWireType() != d.wireType) {
		d.r.PushBackTag()
		return serial.DecodeDone, nil
	}
	d.index++
	return d.index - 1, nil
}

func (d *decoder) DecodeCollectionSize(serial.Descriptor) (int, error) {
	switch {
	case d.strategy == decodeEmpty:
		return 0, nil
	case d.strategy == decodeRepeated && d.size >= 0:
		return d.size, nil
	default:
		return -1, nil
	}
}

// elementTag returns the tag element i of desc is read under.
func (d *decoder) elementTag(desc serial.Descriptor, i int) (ProtoDesc, error) {
	switch d.strategy {
	case decodeRepeated, decodePacked:
		return d.tag, nil
	case decodeMapEntry:
		return ProtoDesc{Number: i%2 + 1, Integer: d.tag.Integer}, nil
	case decodeOneOf:
		return ProtoDesc{Number: d.field, payload: true}, nil
	case decodeVariant:
		tag, err := extractParameters(desc, i)
		if err != nil {
			return ProtoDesc{}, err
		}
		tag.Number = d.tag.Number
		return tag, nil
	default:
		if d.layout != nil && serial.Same(desc, d.desc) {
			return d.layout.tags[i], nil
		}
		return extractParameters(desc, i)
	}
}

func (d *decoder) DecodeElement(desc serial.Descriptor, i int, s serial.Serializer, previous any) (any, error) {
	if d.strategy == decodeMessage && d.layout != nil {
		if i == d.layout.unknown {
			v, err := d.captureUnknown(previous)
			if err != nil {
				return nil, decodeElementError(err, desc.SerialName(), elementName(desc, i), d.r.CurrentField())
			}
			return v, nil
		}
		if d.absent != present && i == d.absentIndex {
			a := d.absent
			d.absent = present
			if a == absentNull {
				return nil, nil
			}
			empty := &decoder{f: d.f, r: NewReader(NewInput(nil), &d.f.opts), desc: desc.ElementDescriptor(i), strategy: decodeEmpty, size: -1}
			return s.Deserialize(empty)
		}
	}
	if d.strategy == decodeOneOf && i == serial.PolymorphicTypeIndex {
		return d.variantName(desc)
	}

	tag, err := d.elementTag(desc, i)
	if err != nil {
		return nil, decodeElementError(err, desc.SerialName(), elementName(desc, i), 0)
	}
	depth := d.tags.push(tag)
	var v any
	if m, ok := s.(serial.Merger); ok && previous != nil {
		v, err = m.Merge(d, previous)
	} else {
		v, err = s.Deserialize(d)
	}
	d.tags.truncate(depth)
	if err != nil {
		return nil, decodeElementError(err, desc.SerialName(), elementName(desc, i), tag.Number)
	}
	return v, nil
}

func (d *decoder) DecodeNullableElement(desc serial.Descriptor, i int, s serial.Serializer, previous any) (any, error) {
	return d.DecodeElement(desc, i, s, previous)
}

func (d *decoder) EndStructure(serial.Descriptor) error { return nil }

// variantName returns the serial name of the oneof variant written under
// the current field number.
func (d *decoder) variantName(desc serial.Descriptor) (string, error) {
	for _, variant := range serial.Subclasses(desc, d.f.module()) {
		n, err := variantNumber(variant)
		if err != nil {
			return "", err
		}
		if n == d.field {
			return variant.SerialName(), nil
		}
	}
	return "", &DecodeError{
		Type:        desc.SerialName(),
		FieldNumber: d.field,
		Offset:      d.r.in.Pos(),
		Message:     fmt.Sprintf("no oneof variant of %s has field number %d", desc.SerialName(), d.field),
		Cause:       ErrUnknownOneOf,
	}
}

func (d *decoder) captureUnknown(previous any) (ProtoMessage, error) {
	f, err := d.r.ReadUnknownField()
	if err != nil {
		return ProtoMessage{}, err
	}
	var msg ProtoMessage
	switch p := previous.(type) {
	case ProtoMessage:
		msg = p
	case *ProtoMessage:
		if p != nil {
			msg = *p
		}
	}
	return msg.Merge(ProtoMessage{Fields: []ProtoField{f}}), nil
}
