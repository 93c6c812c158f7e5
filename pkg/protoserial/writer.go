package protoserial

import "github.com/blockberries/protoserial/internal/wire"

// Writer writes Protocol Buffers framing to an Output.
//
// Typed writes take the element's ProtoDesc: a tagged descriptor writes the
// field header first, a missing one writes the bare value.
type Writer struct {
	out *Output
}

// NewWriter creates a Writer appending to out.
func NewWriter(out *Output) *Writer {
	return &Writer{out: out}
}

// Output returns the destination buffer.
func (w *Writer) Output() *Output { return w.out }

// WriteTag writes a field header.
func (w *Writer) WriteTag(fieldNumber int, wt WireType) {
	w.out.WriteVarint(uint64(wire.NewTag(fieldNumber, wt)))
}

func (w *Writer) header(tag ProtoDesc, wt WireType) {
	if !tag.IsMissing() {
		w.WriteTag(tag.Number, wt)
	}
}

// WriteVarint writes a bare varint.
func (w *Writer) WriteVarint(v uint64) { w.out.WriteVarint(v) }

// WriteFixed32 writes a bare little-endian 32-bit value.
func (w *Writer) WriteFixed32(v uint32) { w.out.WriteFixed32(v) }

// WriteFixed64 writes a bare little-endian 64-bit value.
func (w *Writer) WriteFixed64(v uint64) { w.out.WriteFixed64(v) }

// WriteInt32 writes v per the integer type of tag. Negative values in
// default mode are sign-extended to ten bytes.
func (w *Writer) WriteInt32(v int32, tag ProtoDesc) {
	switch tag.Integer {
	case IntegerFixed:
		w.header(tag, wire.Fixed32)
		w.out.WriteFixed32(uint32(v))
	case IntegerSigned:
		w.header(tag, wire.Varint)
		w.out.WriteVarint(uint64(wire.EncodeZigZag32(v)))
	default:
		w.header(tag, wire.Varint)
		w.out.WriteVarint(uint64(int64(v)))
	}
}

// WriteInt64 writes v per the integer type of tag.
func (w *Writer) WriteInt64(v int64, tag ProtoDesc) {
	switch tag.Integer {
	case IntegerFixed:
		w.header(tag, wire.Fixed64)
		w.out.WriteFixed64(uint64(v))
	case IntegerSigned:
		w.header(tag, wire.Varint)
		w.out.WriteVarint(wire.EncodeZigZag(v))
	default:
		w.header(tag, wire.Varint)
		w.out.WriteVarint(uint64(v))
	}
}

// WriteUint32 writes v as a varint, or fixed32 in fixed mode.
func (w *Writer) WriteUint32(v uint32, tag ProtoDesc) {
	if tag.Integer == IntegerFixed {
		w.header(tag, wire.Fixed32)
		w.out.WriteFixed32(v)
		return
	}
	w.header(tag, wire.Varint)
	w.out.WriteVarint(uint64(v))
}

// WriteUint64 writes v as a varint, or fixed64 in fixed mode.
func (w *Writer) WriteUint64(v uint64, tag ProtoDesc) {
	if tag.Integer == IntegerFixed {
		w.header(tag, wire.Fixed64)
		w.out.WriteFixed64(v)
		return
	}
	w.header(tag, wire.Varint)
	w.out.WriteVarint(v)
}

// WriteFloat32 writes the bits of v as fixed32.
func (w *Writer) WriteFloat32(v float32, tag ProtoDesc) {
	w.header(tag, wire.Fixed32)
	w.out.WriteFloat32(v)
}

// WriteFloat64 writes the bits of v as fixed64.
func (w *Writer) WriteFloat64(v float64, tag ProtoDesc) {
	w.header(tag, wire.Fixed64)
	w.out.WriteFloat64(v)
}

// WriteLengthDelimited writes b with a length prefix.
func (w *Writer) WriteLengthDelimited(b []byte, tag ProtoDesc) {
	w.header(tag, wire.Bytes)
	w.out.WriteVarint(uint64(len(b)))
	_, _ = w.out.Write(b)
}

// WriteString writes s with a length prefix.
func (w *Writer) WriteString(s string, tag ProtoDesc) {
	w.header(tag, wire.Bytes)
	w.out.WriteVarint(uint64(len(s)))
	w.out.ensureCapacity(len(s))
	w.out.buf = append(w.out.buf, s...)
}

// WriteSubmessage writes an encoded message under tag, or with only a
// length prefix when tag is missing.
func (w *Writer) WriteSubmessage(msg *Output, tag ProtoDesc) {
	w.header(tag, wire.Bytes)
	w.out.WriteVarint(uint64(msg.Len()))
	w.out.WriteOutput(msg)
}

// WriteUnknownField replays a captured field byte for byte.
func (w *Writer) WriteUnknownField(f ProtoField) {
	w.WriteTag(f.Number, f.WireType)
	if f.WireType == wire.Bytes {
		w.out.WriteVarint(uint64(len(f.Data)))
	}
	_, _ = w.out.Write(f.Data)
}
