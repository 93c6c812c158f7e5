package schema

import (
	"fmt"
	"slices"

	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/serial"
)

// scalarType is a built-in field type.
type scalarType struct {
	ser serial.Serializer

	// integer is the encoding implied by protobuf-style names such as
	// sint32 or fixed64.
	integer protoserial.IntegerType
}

var scalarTypes = map[string]scalarType{
	"bool":     {ser: serial.Bool},
	"int8":     {ser: serial.Int8},
	"int16":    {ser: serial.Int16},
	"int32":    {ser: serial.Int32},
	"int64":    {ser: serial.Int64},
	"uint32":   {ser: serial.Uint32},
	"uint64":   {ser: serial.Uint64},
	"sint32":   {ser: serial.Int32, integer: protoserial.IntegerSigned},
	"sint64":   {ser: serial.Int64, integer: protoserial.IntegerSigned},
	"fixed32":  {ser: serial.Uint32, integer: protoserial.IntegerFixed},
	"fixed64":  {ser: serial.Uint64, integer: protoserial.IntegerFixed},
	"sfixed32": {ser: serial.Int32, integer: protoserial.IntegerFixed},
	"sfixed64": {ser: serial.Int64, integer: protoserial.IntegerFixed},
	"float":    {ser: serial.Float32},
	"double":   {ser: serial.Float64},
	"rune":     {ser: serial.Rune},
	"string":   {ser: serial.String},
	"bytes":    {ser: serial.Bytes},
}

func (t scalarType) kind() serial.Kind {
	if t.ser == nil {
		return 0
	}
	return t.ser.Descriptor().Kind()
}

// integral reports whether the integer encoding can be chosen.
func (t scalarType) integral() bool {
	switch t.kind() {
	case serial.KindInt8, serial.KindInt16, serial.KindInt32, serial.KindInt64,
		serial.KindUint32, serial.KindUint64:
		return true
	}
	return false
}

func (t scalarType) packable() bool {
	k := t.kind()
	return k != serial.KindString && k != serial.KindBytes
}

// mapKey reports whether the type may key a map.
func (t scalarType) mapKey() bool {
	switch t.kind() {
	case serial.KindFloat32, serial.KindFloat64, serial.KindBytes:
		return false
	}
	return true
}

// parseInteger maps the integer setting of a field to its encoding.
func parseInteger(s string) (protoserial.IntegerType, error) {
	switch s {
	case "", "default":
		return protoserial.IntegerDefault, nil
	case "signed":
		return protoserial.IntegerSigned, nil
	case "fixed":
		return protoserial.IntegerFixed, nil
	default:
		return 0, fmt.Errorf("unknown integer encoding %q (want default, signed or fixed)", s)
	}
}

// IntegerEncoding returns the encoding of a value of type typ with the
// explicit setting integer.
func IntegerEncoding(typ, integer string) protoserial.IntegerType {
	if it, err := parseInteger(integer); err == nil && integer != "" {
		return it
	}
	return scalarTypes[typ].integer
}

// FieldEncoding returns the integer encoding the codec applies to a field.
// A map shares one encoding between keys and values; the key decides
// unless it is not an integer.
func FieldEncoding(f *Field) protoserial.IntegerType {
	if f.Map == nil {
		return IntegerEncoding(f.Type, f.Integer)
	}
	if it := IntegerEncoding(f.Map.Key, f.Integer); it != protoserial.IntegerDefault {
		return it
	}
	return IntegerEncoding(f.Map.Value, f.Integer)
}

// IsScalar reports whether name is a built-in scalar type.
func IsScalar(name string) bool {
	_, ok := scalarTypes[name]
	return ok
}

// ScalarTypes returns the names of the built-in scalar types, sorted.
func ScalarTypes() []string {
	names := make([]string, 0, len(scalarTypes))
	for name := range scalarTypes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
