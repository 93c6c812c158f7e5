package protoserial

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/protoserial/pkg/serial"
)

// fromHex decodes a hex fixture, ignoring spaces.
func fromHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

// assemble builds a wire fixture from protoscope text.
func assemble(t *testing.T, src string) []byte {
	t.Helper()
	b, err := protoscope.NewScanner(src).Exec()
	require.NoError(t, err, "assembling %q", src)
	return b
}

type IntAndBytes struct {
	A int32
	B []byte
}

var intAndBytes = serial.NewStruct("IntAndBytes",
	serial.FieldOf("a", serial.Int32,
		func(v *IntAndBytes) int32 { return v.A },
		func(v *IntAndBytes, x int32) { v.A = x },
		serial.Annotate(ProtoType(IntegerSigned))),
	serial.FieldOf("b", serial.Bytes,
		func(v *IntAndBytes) []byte { return v.B },
		func(v *IntAndBytes, x []byte) { v.B = x }),
)

type Scalars struct {
	Flag    bool
	Small   int8
	Short   int16
	Int     int32
	Signed  int64
	Fixed   int32
	Unsign  uint32
	Big     uint64
	Single  float32
	Double  float64
	Char    rune
	Name    string
	Payload []byte
}

var scalars = serial.NewStruct("Scalars",
	serial.FieldOf("flag", serial.Bool, func(v *Scalars) bool { return v.Flag }, func(v *Scalars, x bool) { v.Flag = x }),
	serial.FieldOf("small", serial.Int8, func(v *Scalars) int8 { return v.Small }, func(v *Scalars, x int8) { v.Small = x }),
	serial.FieldOf("short", serial.Int16, func(v *Scalars) int16 { return v.Short }, func(v *Scalars, x int16) { v.Short = x }),
	serial.FieldOf("int", serial.Int32, func(v *Scalars) int32 { return v.Int }, func(v *Scalars, x int32) { v.Int = x }),
	serial.FieldOf("signed", serial.Int64, func(v *Scalars) int64 { return v.Signed }, func(v *Scalars, x int64) { v.Signed = x },
		serial.Annotate(ProtoType(IntegerSigned))),
	serial.FieldOf("fixed", serial.Int32, func(v *Scalars) int32 { return v.Fixed }, func(v *Scalars, x int32) { v.Fixed = x },
		serial.Annotate(ProtoType(IntegerFixed))),
	serial.FieldOf("unsign", serial.Uint32, func(v *Scalars) uint32 { return v.Unsign }, func(v *Scalars, x uint32) { v.Unsign = x },
		serial.Annotate(ProtoType(IntegerSigned))),
	serial.FieldOf("big", serial.Uint64, func(v *Scalars) uint64 { return v.Big }, func(v *Scalars, x uint64) { v.Big = x }),
	serial.FieldOf("single", serial.Float32, func(v *Scalars) float32 { return v.Single }, func(v *Scalars, x float32) { v.Single = x }),
	serial.FieldOf("double", serial.Float64, func(v *Scalars) float64 { return v.Double }, func(v *Scalars, x float64) { v.Double = x }),
	serial.FieldOf("char", serial.Rune, func(v *Scalars) rune { return v.Char }, func(v *Scalars, x rune) { v.Char = x }),
	serial.FieldOf("name", serial.String, func(v *Scalars) string { return v.Name }, func(v *Scalars, x string) { v.Name = x }),
	serial.FieldOf("payload", serial.Bytes, func(v *Scalars) []byte { return v.Payload }, func(v *Scalars, x []byte) { v.Payload = x }),
)

// Oneof fixtures.

type IntType struct{ Value int32 }

type StringType struct{ Value string }

type OneOfData struct {
	I    any
	Name string
}

var (
	intType = serial.NewStruct("IntType",
		serial.FieldOf("intValue", serial.Int32,
			func(v *IntType) int32 { return v.Value },
			func(v *IntType, x int32) { v.Value = x },
			serial.Annotate(ProtoNumber(1))))

	stringType = serial.NewStruct("StringType",
		serial.FieldOf("stringValue", serial.String,
			func(v *StringType) string { return v.Value },
			func(v *StringType, x string) { v.Value = x },
			serial.Annotate(ProtoNumber(2))))

	iType = serial.SealedOf("IType",
		serial.VariantOf[IntType](intType),
		serial.VariantOf[StringType](stringType))

	oneOfData = serial.NewStruct("OneOfData",
		serial.FieldOf("i", iType,
			func(v *OneOfData) any { return v.I },
			func(v *OneOfData, x any) { v.I = x },
			serial.Annotate(ProtoOneOf{})),
		serial.FieldOf("name", serial.String,
			func(v *OneOfData) string { return v.Name },
			func(v *OneOfData, x string) { v.Name = x },
			serial.Annotate(ProtoNumber(3))))
)

// Unknown field fixtures.

type WithUnknown struct {
	A       int32
	Unknown ProtoMessage
}

var withUnknown = serial.NewStruct("WithUnknown",
	serial.FieldOf("a", serial.Int32,
		func(v *WithUnknown) int32 { return v.A },
		func(v *WithUnknown, x int32) { v.A = x }),
	UnknownFieldsOf("unknown",
		func(v *WithUnknown) ProtoMessage { return v.Unknown },
		func(v *WithUnknown, m ProtoMessage) { v.Unknown = m }),
)

type Staggered struct {
	B       string
	Unknown ProtoMessage
	D       []int32
}

var staggered = serial.NewStruct("Staggered",
	serial.FieldOf("b", serial.String,
		func(v *Staggered) string { return v.B },
		func(v *Staggered, x string) { v.B = x },
		serial.Annotate(ProtoNumber(2))),
	UnknownFieldsOf("unknown",
		func(v *Staggered) ProtoMessage { return v.Unknown },
		func(v *Staggered, m ProtoMessage) { v.Unknown = m }),
	serial.FieldOf("d", serial.ListOf[int32](serial.Int32),
		func(v *Staggered) []int32 { return v.D },
		func(v *Staggered, x []int32) { v.D = x },
		serial.Annotate(ProtoNumber(4))),
)

const unknownFieldsHex = "082a120234321a032a2a2a202a202a202a2a120a023432102a1a0234321a0234321a023432"

// Collection fixtures.

type Lists struct {
	Packed   []int32
	Repeated []int32
	Names    []string
	Grid     [][]int32
	Zig      []int64
}

var lists = serial.NewStruct("Lists",
	serial.FieldOf("packed", serial.ListOf[int32](serial.Int32),
		func(v *Lists) []int32 { return v.Packed },
		func(v *Lists, x []int32) { v.Packed = x },
		serial.Annotate(ProtoPacked{})),
	serial.FieldOf("repeated", serial.ListOf[int32](serial.Int32),
		func(v *Lists) []int32 { return v.Repeated },
		func(v *Lists, x []int32) { v.Repeated = x }),
	serial.FieldOf("names", serial.ListOf[string](serial.String),
		func(v *Lists) []string { return v.Names },
		func(v *Lists, x []string) { v.Names = x }),
	serial.FieldOf("grid", serial.ListOf[[]int32](serial.ListOf[int32](serial.Int32)),
		func(v *Lists) [][]int32 { return v.Grid },
		func(v *Lists, x [][]int32) { v.Grid = x }),
	serial.FieldOf("zig", serial.ListOf[int64](serial.Int64),
		func(v *Lists) []int64 { return v.Zig },
		func(v *Lists, x []int64) { v.Zig = x },
		serial.Annotate(ProtoPacked{}, ProtoType(IntegerSigned))),
)

type Maps struct {
	Counts map[string]int32
	Zig    map[int32]int32
}

var maps = serial.NewStruct("Maps",
	serial.FieldOf("counts", serial.MapOf[string, int32](serial.String, serial.Int32),
		func(v *Maps) map[string]int32 { return v.Counts },
		func(v *Maps, x map[string]int32) { v.Counts = x }),
	serial.FieldOf("zig", serial.MapOf[int32, int32](serial.Int32, serial.Int32),
		func(v *Maps) map[int32]int32 { return v.Zig },
		func(v *Maps, x map[int32]int32) { v.Zig = x },
		serial.Annotate(ProtoType(IntegerSigned))),
)

// Enum fixtures.

type Color int32

const (
	Red Color = iota
	Green
	Blue
)

var colorDesc = serial.EnumDescriptor("Color", []serial.EnumEntry{
	{Name: "RED"},
	{Name: "GREEN", Annotations: []any{ProtoNumber(5)}},
	{Name: "BLUE", Annotations: []any{ProtoNumber(10)}},
})

type Paint struct {
	Color  Color
	Layers []Color
}

var paint = serial.NewStruct("Paint",
	serial.FieldOf("color", serial.EnumOf[Color](colorDesc),
		func(v *Paint) Color { return v.Color },
		func(v *Paint, x Color) { v.Color = x }),
	serial.FieldOf("layers", serial.ListOf[Color](serial.EnumOf[Color](colorDesc)),
		func(v *Paint) []Color { return v.Layers },
		func(v *Paint, x []Color) { v.Layers = x },
		serial.Annotate(ProtoPacked{})),
)

// Nesting fixtures.

type Inner struct{ A int32 }

type Outer struct {
	Inner *Inner
	X     int32
}

var inner = serial.NewStruct("Inner",
	serial.FieldOf("a", serial.Int32,
		func(v *Inner) int32 { return v.A },
		func(v *Inner, x int32) { v.A = x }),
)

var outer = serial.NewStruct("Outer",
	serial.FieldOf("inner", serial.Ptr[Inner](inner),
		func(v *Outer) *Inner { return v.Inner },
		func(v *Outer, x *Inner) { v.Inner = x }),
	serial.FieldOf("x", serial.Int32,
		func(v *Outer) int32 { return v.X },
		func(v *Outer, x int32) { v.X = x },
		serial.Optional()),
)

type Wrapper struct{ Outer Outer }

var wrapper = serial.NewStruct("Wrapper",
	serial.FieldOf("outer", outer,
		func(v *Wrapper) Outer { return v.Outer },
		func(v *Wrapper, x Outer) { v.Outer = x }),
)

type Required struct {
	ID   int32
	Note string
}

var required = serial.NewStruct("Required",
	serial.FieldOf("id", serial.Int32,
		func(v *Required) int32 { return v.ID },
		func(v *Required, x int32) { v.ID = x }),
	serial.FieldOf("note", serial.String,
		func(v *Required) string { return v.Note },
		func(v *Required, x string) { v.Note = x },
		serial.Optional()),
)
