package protoserial

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/blockberries/protoserial/internal/wire"
)

// EOFField is the field number ReadTag reports at the end of input.
const EOFField = -1

type fieldTag struct {
	field    int
	wireType WireType
}

// optionalTag holds at most one pushed-back tag.
type optionalTag struct {
	tag fieldTag
	set bool
}

func (o *optionalTag) take() (fieldTag, bool) {
	if !o.set {
		return fieldTag{}, false
	}
	o.set = false
	return o.tag, true
}

// Reader reads Protocol Buffers framing from an Input.
//
// ReadTag makes a field current; typed reads then consume its value. Typed
// reads take the element's ProtoDesc: for a tagged descriptor the current
// wire type must match, a missing one reads a bare value.
type Reader struct {
	in      *Input
	opts    *Options
	current fieldTag
	pending optionalTag
}

// NewReader creates a Reader over in.
func NewReader(in *Input, opts *Options) *Reader {
	if opts == nil {
		opts = &DefaultOptions
	}
	return &Reader{in: in, opts: opts, current: fieldTag{field: EOFField}}
}

// Input returns the underlying input.
func (r *Reader) Input() *Input { return r.in }

// CurrentField returns the field number of the last tag read.
func (r *Reader) CurrentField() int { return r.current.field }

// CurrentWireType returns the wire type of the last tag read.
func (r *Reader) CurrentWireType() WireType { return r.current.wireType }

// EOF reports whether the input is exhausted and no tag is pushed back.
func (r *Reader) EOF() bool { return !r.pending.set && r.in.EOF() }

// ReadTag reads the next field header and returns its field number, or
// EOFField when the input is exhausted. Groups and unassigned wire types
// are rejected.
func (r *Reader) ReadTag() (int, error) {
	if t, ok := r.pending.take(); ok {
		r.current = t
		return t.field, nil
	}
	if r.in.EOF() {
		r.current = fieldTag{field: EOFField}
		return EOFField, nil
	}

	start := r.in.pos
	field, wt, n, err := wire.DecodeTag(r.in.data[r.in.pos:r.in.end])
	if err != nil {
		switch {
		case errors.Is(err, wire.ErrVarintTruncated):
			return 0, NewDecodeErrorAt(start, "input ends inside a tag", ErrUnexpectedEOF)
		case errors.Is(err, wire.ErrInvalidFieldNumber), errors.Is(err, wire.ErrTagOverflow):
			return 0, NewDecodeErrorAt(start, err.Error(), ErrInvalidFieldNumber)
		default:
			return 0, NewDecodeErrorAt(start, err.Error(), ErrMalformedVarint)
		}
	}
	if !wt.IsValid() {
		return 0, NewDecodeErrorAt(start,
			fmt.Sprintf("unsupported wire type %v(%d) for field %d", wt, wt, field), ErrUnsupportedWireType)
	}
	r.in.pos += n
	r.current = fieldTag{field: field, wireType: wt}
	return field, nil
}

// PushBackTag un-reads the current tag; the next ReadTag returns it again.
func (r *Reader) PushBackTag() {
	r.pending = optionalTag{tag: r.current, set: true}
}

func (r *Reader) expect(tag ProtoDesc, want WireType) error {
	if tag.IsMissing() || r.current.wireType == want {
		return nil
	}
	return NewDecodeErrorAt(r.in.pos, fmt.Sprintf("expected wire type %v(%d), but found %v(%d)",
		want, want, r.current.wireType, r.current.wireType), ErrWireTypeMismatch)
}

func (r *Reader) varint(tag ProtoDesc) (uint64, error) {
	if err := r.expect(tag, wire.Varint); err != nil {
		return 0, err
	}
	return r.in.ReadVarint()
}

// ReadInt32 reads an int32 per the integer type of tag.
func (r *Reader) ReadInt32(tag ProtoDesc) (int32, error) {
	switch tag.Integer {
	case IntegerFixed:
		if err := r.expect(tag, wire.Fixed32); err != nil {
			return 0, err
		}
		v, err := r.in.ReadFixed32()
		return int32(v), err
	case IntegerSigned:
		v, err := r.varint(tag)
		return wire.DecodeZigZag32(uint32(v & math.MaxUint32)), err
	default:
		v, err := r.varint(tag)
		return int32(v), err
	}
}

// ReadInt64 reads an int64 per the integer type of tag.
func (r *Reader) ReadInt64(tag ProtoDesc) (int64, error) {
	switch tag.Integer {
	case IntegerFixed:
		if err := r.expect(tag, wire.Fixed64); err != nil {
			return 0, err
		}
		v, err := r.in.ReadFixed64()
		return int64(v), err
	case IntegerSigned:
		v, err := r.varint(tag)
		return wire.DecodeZigZag(v), err
	default:
		v, err := r.varint(tag)
		return int64(v), err
	}
}

// ReadUint32 reads a uint32 varint, or fixed32 in fixed mode.
func (r *Reader) ReadUint32(tag ProtoDesc) (uint32, error) {
	if tag.Integer == IntegerFixed {
		if err := r.expect(tag, wire.Fixed32); err != nil {
			return 0, err
		}
		return r.in.ReadFixed32()
	}
	v, err := r.varint(tag)
	return uint32(v), err
}

// ReadUint64 reads a uint64 varint, or fixed64 in fixed mode.
func (r *Reader) ReadUint64(tag ProtoDesc) (uint64, error) {
	if tag.Integer == IntegerFixed {
		if err := r.expect(tag, wire.Fixed64); err != nil {
			return 0, err
		}
		return r.in.ReadFixed64()
	}
	return r.varint(tag)
}

// ReadBool reads a boolean varint, which must be 0 or 1.
func (r *Reader) ReadBool(tag ProtoDesc) (bool, error) {
	start := r.in.pos
	v, err := r.varint(tag)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, NewDecodeErrorAt(start, fmt.Sprintf("expected boolean value (0 or 1), found %d", v), ErrInvalidBool)
	}
}

// ReadFloat32 reads a fixed32 float, preserving its bits.
func (r *Reader) ReadFloat32(tag ProtoDesc) (float32, error) {
	if err := r.expect(tag, wire.Fixed32); err != nil {
		return 0, err
	}
	return r.in.ReadFloat32()
}

// ReadFloat64 reads a fixed64 float, preserving its bits.
func (r *Reader) ReadFloat64(tag ProtoDesc) (float64, error) {
	if err := r.expect(tag, wire.Fixed64); err != nil {
		return 0, err
	}
	return r.in.ReadFloat64()
}

func (r *Reader) lengthDelimited(tag ProtoDesc, limit int, limitErr error) ([]byte, error) {
	if err := r.expect(tag, wire.Bytes); err != nil {
		return nil, err
	}
	start := r.in.pos
	n, err := r.in.ReadLength()
	if err != nil {
		return nil, err
	}
	if limit > 0 && n > limit {
		return nil, NewDecodeErrorAt(start, fmt.Sprintf("length %d exceeds limit %d", n, limit), limitErr)
	}
	return r.in.ReadExact(n)
}

// ReadBytes reads a length-delimited byte slice. The result is a copy.
func (r *Reader) ReadBytes(tag ProtoDesc) ([]byte, error) {
	b, err := r.lengthDelimited(tag, r.opts.Limits.MaxBytesLength, ErrMaxBytesLength)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadString reads a length-delimited string, handling invalid UTF-8 per
// the configured mode.
func (r *Reader) ReadString(tag ProtoDesc) (string, error) {
	start := r.in.pos
	b, err := r.lengthDelimited(tag, r.opts.Limits.MaxStringLength, ErrMaxStringLength)
	if err != nil {
		return "", err
	}
	if r.opts.UTF8 == UTF8Unchecked || utf8.Valid(b) {
		return string(b), nil
	}
	if r.opts.UTF8 == UTF8Strict {
		return "", NewDecodeErrorAt(start, "string is not valid UTF-8", ErrInvalidUTF8)
	}
	fixed, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return "", NewDecodeErrorAt(start, "string is not valid UTF-8", errors.Join(ErrInvalidUTF8, err))
	}
	return string(fixed), nil
}

// ReadLengthDelimitedSlice reads a length prefix and returns a bounded
// input over the payload without copying. The reader moves past it.
func (r *Reader) ReadLengthDelimitedSlice(tag ProtoDesc) (*Input, error) {
	if err := r.expect(tag, wire.Bytes); err != nil {
		return nil, err
	}
	n, err := r.in.ReadLength()
	if err != nil {
		return nil, err
	}
	return r.in.Slice(n)
}

// ReadTaglessSlice reads a length-prefixed payload written without a
// field header.
func (r *Reader) ReadTaglessSlice() (*Input, error) {
	return r.ReadLengthDelimitedSlice(MissingTag)
}

// SkipField consumes the value of the current field.
func (r *Reader) SkipField() error {
	switch r.current.wireType {
	case wire.Varint:
		_, err := r.in.ReadVarint()
		return err
	case wire.Fixed64:
		return r.in.Skip(wire.Fixed64Size)
	case wire.Fixed32:
		return r.in.Skip(wire.Fixed32Size)
	case wire.Bytes:
		n, err := r.in.ReadLength()
		if err != nil {
			return err
		}
		return r.in.Skip(n)
	default:
		return NewDecodeErrorAt(r.in.pos,
			fmt.Sprintf("cannot skip wire type %v(%d)", r.current.wireType, r.current.wireType), ErrUnsupportedWireType)
	}
}

// ReadUnknownField captures the current field without interpreting it.
func (r *Reader) ReadUnknownField() (ProtoField, error) {
	f := ProtoField{Number: r.current.field, WireType: r.current.wireType}
	var raw []byte
	switch r.current.wireType {
	case wire.Varint:
		start := r.in.pos
		if _, err := r.in.ReadVarint(); err != nil {
			return ProtoField{}, err
		}
		raw = r.in.data[start:r.in.pos]
	case wire.Fixed64:
		b, err := r.in.ReadExact(wire.Fixed64Size)
		if err != nil {
			return ProtoField{}, err
		}
		raw = b
	case wire.Fixed32:
		b, err := r.in.ReadExact(wire.Fixed32Size)
		if err != nil {
			return ProtoField{}, err
		}
		raw = b
	case wire.Bytes:
		n, err := r.in.ReadLength()
		if err != nil {
			return ProtoField{}, err
		}
		if raw, err = r.in.ReadExact(n); err != nil {
			return ProtoField{}, err
		}
	default:
		return ProtoField{}, NewDecodeErrorAt(r.in.pos,
			fmt.Sprintf("cannot capture wire type %v(%d)", r.current.wireType, r.current.wireType), ErrUnsupportedWireType)
	}
	f.Data = append([]byte(nil), raw...)
	return f, nil
}
