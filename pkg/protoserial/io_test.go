package protoserial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/protoserial/pkg/serial"
)

func TestOutput(t *testing.T) {
	out := NewOutput()
	require.NoError(t, out.WriteByte(0x01))
	_, err := out.Write([]byte{0x02, 0x03})
	require.NoError(t, err)
	out.WriteVarint(300)
	out.WriteFixed32(1)
	out.WriteFixed64(2)
	assert.Equal(t, 3+2+4+8, out.Len())

	b := out.Bytes()
	b[0] = 0xff
	assert.Equal(t, byte(0x01), out.Bytes()[0], "Bytes returns a copy")

	other := NewOutput()
	other.WriteOutput(out)
	assert.Equal(t, out.Bytes(), other.Bytes())

	out.Reset()
	assert.Zero(t, out.Len())
}

func TestInput(t *testing.T) {
	in := NewInput(fromHex(t, "ac02 01000000 0200000000000000 03 aabbcc"))

	v, err := in.ReadVarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)

	f32, err := in.ReadFixed32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f32)

	f64, err := in.ReadFixed64()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f64)

	n, err := in.ReadLength()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sub, err := in.Slice(n)
	require.NoError(t, err)
	assert.True(t, in.EOF())
	assert.Equal(t, 3, sub.Available())
	assert.Equal(t, 15, sub.Pos(), "positions are absolute")

	b, err := sub.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), b)
	require.NoError(t, sub.Skip(2))
	_, err = sub.ReadByte()
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestInputBounds(t *testing.T) {
	in := NewInput([]byte{1, 2})
	_, err := in.ReadExact(3)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
	_, err = in.ReadExact(-1)
	require.ErrorIs(t, err, ErrInvalidLength)
	_, err = in.Slice(3)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
	_, err = in.ReadFixed32()
	require.ErrorIs(t, err, ErrUnexpectedEOF)

	// A slice cannot read past its own end.
	sub, err := in.Slice(1)
	require.NoError(t, err)
	_, err = sub.ReadExact(2)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestReadLength(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want error
	}{
		{"negative", "ffffffffffffffffff01", ErrInvalidLength},
		{"above int32", "8080808008", ErrInvalidLength},
		{"beyond input", "05 01", ErrUnexpectedEOF},
		{"truncated", "80", ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInput(fromHex(t, tt.hex)).ReadLength()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriterIntegerTypes(t *testing.T) {
	tag := func(n int, it IntegerType) ProtoDesc { return ProtoDesc{Number: n, Integer: it} }

	tests := []struct {
		name  string
		write func(w *Writer)
		want  []byte
	}{
		{
			"int32 default",
			func(w *Writer) { w.WriteInt32(-2, tag(1, IntegerDefault)) },
			protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), uint64(math.MaxUint64-1)),
		},
		{
			"int32 signed",
			func(w *Writer) { w.WriteInt32(-2, tag(1, IntegerSigned)) },
			protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 3),
		},
		{
			"int32 fixed",
			func(w *Writer) { w.WriteInt32(-2, tag(1, IntegerFixed)) },
			protowire.AppendFixed32(protowire.AppendTag(nil, 1, protowire.Fixed32Type), math.MaxUint32-1),
		},
		{
			"int64 signed",
			func(w *Writer) { w.WriteInt64(math.MinInt64, tag(2, IntegerSigned)) },
			protowire.AppendVarint(protowire.AppendTag(nil, 2, protowire.VarintType), math.MaxUint64),
		},
		{
			"int64 fixed",
			func(w *Writer) { w.WriteInt64(-1, tag(2, IntegerFixed)) },
			protowire.AppendFixed64(protowire.AppendTag(nil, 2, protowire.Fixed64Type), math.MaxUint64),
		},
		{
			"uint32 ignores signed",
			func(w *Writer) { w.WriteUint32(5, tag(3, IntegerSigned)) },
			protowire.AppendVarint(protowire.AppendTag(nil, 3, protowire.VarintType), 5),
		},
		{
			"uint64 fixed",
			func(w *Writer) { w.WriteUint64(5, tag(3, IntegerFixed)) },
			protowire.AppendFixed64(protowire.AppendTag(nil, 3, protowire.Fixed64Type), 5),
		},
		{
			"untagged",
			func(w *Writer) { w.WriteInt32(150, MissingTag) },
			[]byte{0x96, 0x01},
		},
		{
			"string",
			func(w *Writer) { w.WriteString("hi", tag(4, IntegerDefault)) },
			protowire.AppendString(protowire.AppendTag(nil, 4, protowire.BytesType), "hi"),
		},
		{
			"float64",
			func(w *Writer) { w.WriteFloat64(math.Inf(-1), tag(5, IntegerDefault)) },
			protowire.AppendFixed64(protowire.AppendTag(nil, 5, protowire.Fixed64Type), math.Float64bits(math.Inf(-1))),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewOutput()
			tt.write(NewWriter(out))
			assert.Equal(t, tt.want, out.Bytes())
		})
	}
}

func TestReaderRoundTrip(t *testing.T) {
	out := NewOutput()
	w := NewWriter(out)
	w.WriteInt32(-7, ProtoDesc{Number: 1, Integer: IntegerSigned})
	w.WriteInt64(-1, ProtoDesc{Number: 2})
	w.WriteUint64(math.MaxUint64, ProtoDesc{Number: 3, Integer: IntegerFixed})
	w.WriteFloat32(float32(math.NaN()), ProtoDesc{Number: 4})
	w.WriteString("ok", ProtoDesc{Number: 5})
	w.WriteLengthDelimited([]byte{9}, ProtoDesc{Number: 6})

	r := NewReader(NewInput(out.Bytes()), nil)

	field, err := r.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, 1, field)
	i32, err := r.ReadInt32(ProtoDesc{Number: 1, Integer: IntegerSigned})
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i32)

	_, err = r.ReadTag()
	require.NoError(t, err)
	i64, err := r.ReadInt64(ProtoDesc{Number: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), i64)

	_, err = r.ReadTag()
	require.NoError(t, err)
	u64, err := r.ReadUint64(ProtoDesc{Number: 3, Integer: IntegerFixed})
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u64)

	_, err = r.ReadTag()
	require.NoError(t, err)
	f32, err := r.ReadFloat32(ProtoDesc{Number: 4})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(f32)))

	_, err = r.ReadTag()
	require.NoError(t, err)
	s, err := r.ReadString(ProtoDesc{Number: 5})
	require.NoError(t, err)
	assert.Equal(t, "ok", s)

	_, err = r.ReadTag()
	require.NoError(t, err)
	b, err := r.ReadBytes(ProtoDesc{Number: 6})
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, b)

	field, err = r.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, EOFField, field)
	assert.True(t, r.EOF())
}

func TestReaderPushBack(t *testing.T) {
	r := NewReader(NewInput(assemble(t, "3: 1")), &DefaultOptions)
	field, err := r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, 3, field)

	r.PushBackTag()
	assert.False(t, r.EOF())
	field, err = r.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, 3, field)
	assert.Equal(t, WireVarint, r.CurrentWireType())
}

func TestReaderSlices(t *testing.T) {
	r := NewReader(NewInput(assemble(t, `1: {"abc"} 2: 5`)), nil)
	_, err := r.ReadTag()
	require.NoError(t, err)

	in, err := r.ReadLengthDelimitedSlice(ProtoDesc{Number: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, in.Available())

	_, err = r.ReadTag()
	require.NoError(t, err)
	_, err = r.ReadLengthDelimitedSlice(ProtoDesc{Number: 2})
	require.ErrorIs(t, err, ErrWireTypeMismatch)

	tagless := NewReader(NewInput(fromHex(t, "02 aabb")), nil)
	in, err = tagless.ReadTaglessSlice()
	require.NoError(t, err)
	assert.Equal(t, 2, in.Available())
}

func TestReaderUnknownFields(t *testing.T) {
	data := assemble(t, `1: 150 2: 1i64 3: {"x"} 4: 1i32`)
	r := NewReader(NewInput(data), nil)

	var msg ProtoMessage
	for {
		field, err := r.ReadTag()
		require.NoError(t, err)
		if field == EOFField {
			break
		}
		f, err := r.ReadUnknownField()
		require.NoError(t, err)
		msg.Fields = append(msg.Fields, f)
	}
	require.Equal(t, 4, msg.Len())
	assert.Equal(t, []byte{0x96, 0x01}, msg.Fields[0].Data)
	assert.Equal(t, WireFixed64, msg.Fields[1].WireType)
	assert.Equal(t, []byte("x"), msg.Fields[2].Data)
	assert.Len(t, msg.Fields[3].Data, 4)
	assert.Equal(t, data, msg.AsWireContent())

	// Captured data does not alias the input.
	data[1] = 0
	assert.Equal(t, byte(0x96), msg.Fields[0].Data[0])
}

func TestSkipField(t *testing.T) {
	r := NewReader(NewInput(assemble(t, `1: 150 2: 1i64 3: {"x"} 4: 1i32 5: 9`)), nil)
	for i := 0; i < 4; i++ {
		_, err := r.ReadTag()
		require.NoError(t, err)
		require.NoError(t, r.SkipField())
	}
	field, err := r.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, 5, field)
}

func TestTagStack(t *testing.T) {
	var s tagStack
	assert.Equal(t, MissingTag, s.peek())
	assert.Equal(t, MissingTag, s.pop())

	depth := s.push(ProtoDesc{Number: 1})
	s.push(ProtoDesc{Number: 2})
	assert.Equal(t, 2, s.peek().Number)
	assert.Equal(t, 2, s.pop().Number)
	s.push(ProtoDesc{Number: 3})
	s.truncate(depth)
	assert.Zero(t, s.len())
}

func TestElementMarker(t *testing.T) {
	m := newElementMarker(70)
	assert.Equal(t, 0, m.nextUnmarked())
	for i := 0; i < 65; i++ {
		m.mark(i)
	}
	assert.True(t, m.marked(64))
	assert.False(t, m.marked(65))
	assert.Equal(t, 65, m.nextUnmarked())
	for i := 65; i < 70; i++ {
		m.mark(i)
	}
	assert.Equal(t, -1, m.nextUnmarked())

	empty := newElementMarker(0)
	assert.Equal(t, -1, empty.nextUnmarked())
}

func TestLayout(t *testing.T) {
	l, err := buildLayout(oneOfData.Descriptor(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, l.index(1))
	assert.Equal(t, 0, l.index(2))
	assert.Equal(t, 1, l.index(3))
	assert.Equal(t, -1, l.index(4))
	assert.Equal(t, -1, l.unknown)

	l, err = buildLayout(staggered.Descriptor(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, l.unknown)
	assert.Equal(t, 2, l.index(4))
	assert.Equal(t, -1, l.index(1))
	assert.Nil(t, l.flat, "numbers above the element count use the map")
}

func TestLayoutIsCached(t *testing.T) {
	f := NewFormat(DefaultOptions)
	a, err := f.layout(scalars.Descriptor())
	require.NoError(t, err)
	b, err := f.layout(scalars.Descriptor())
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestOpenOneOfLayoutIsNotCached(t *testing.T) {
	m := serial.NewModule()
	open := serial.OpenOf("Shape")
	type Holder struct{ Shape any }
	holder := serial.NewStruct("Holder",
		serial.FieldOf("shape", open,
			func(v *Holder) any { return v.Shape },
			func(v *Holder, x any) { v.Shape = x },
			serial.Annotate(ProtoOneOf{})))

	f := NewFormat(Options{Module: m})
	a, err := f.layout(holder.Descriptor())
	require.NoError(t, err)
	assert.True(t, a.open)
	assert.Equal(t, -1, a.index(1))

	require.NoError(t, serial.RegisterPolymorphic[IntType](m, "Shape", intType))
	b, err := f.layout(holder.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, 0, b.index(1))

	got, err := f.Encode(holder, Holder{Shape: IntType{Value: 42}})
	require.NoError(t, err)
	assert.Equal(t, fromHex(t, "082a"), got)

	v, err := f.Decode(holder, got)
	require.NoError(t, err)
	assert.Equal(t, IntType{Value: 42}, v.(Holder).Shape)
}
