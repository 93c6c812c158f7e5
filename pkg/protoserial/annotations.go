package protoserial

import (
	"fmt"

	"github.com/blockberries/protoserial/internal/wire"
	"github.com/blockberries/protoserial/pkg/serial"
)

// ProtoNumber sets the field number of an element. On an enum constant it
// sets the constant's number; on a class used as a oneof variant it sets
// the field number the variant is written under.
type ProtoNumber int

// ProtoType selects the integer encoding of an element, or of the keys and
// values of a map element.
type ProtoType IntegerType

// ProtoPacked marks a list of scalars to be written packed.
type ProtoPacked struct{}

// ProtoOneOf marks a polymorphic element whose variants are written as
// alternative fields of the enclosing message.
type ProtoOneOf struct{}

// ProtoUnknownFields marks the ProtoMessage element that collects fields
// the descriptor does not name.
type ProtoUnknownFields struct{}

// extractParameters returns the wire description of element i of d.
// Field numbers default to index+1.
func extractParameters(d serial.Descriptor, i int) (ProtoDesc, error) {
	desc := ProtoDesc{Number: i + 1}
	for _, a := range d.ElementAnnotations(i) {
		switch a := a.(type) {
		case ProtoNumber:
			desc.Number = int(a)
		case ProtoType:
			desc.Integer = IntegerType(a)
		case ProtoPacked:
			desc.Packed = true
		case ProtoOneOf:
			desc.OneOf = true
			// Variants carry their own numbers; the element keeps a
			// placeholder.
			desc.Number = i + 1
		}
	}
	if desc.OneOf {
		return desc, nil
	}
	if err := wire.ValidateFieldNumber(desc.Number); err != nil {
		return ProtoDesc{}, fmt.Errorf("%w: %d for %s.%s", ErrInvalidFieldNumber, desc.Number, d.SerialName(), d.ElementName(i))
	}
	return desc, nil
}

// extractProtoID returns the number of element i: the ProtoNumber
// annotation if present, otherwise the index (zeroBased) or index+1.
func extractProtoID(d serial.Descriptor, i int, zeroBased bool) int {
	if n, ok := serial.FindAnnotation[ProtoNumber](d.ElementAnnotations(i)); ok {
		return int(n)
	}
	if zeroBased {
		return i
	}
	return i + 1
}

func isOneOf(d serial.Descriptor, i int) bool {
	_, ok := serial.FindAnnotation[ProtoOneOf](d.ElementAnnotations(i))
	return ok
}

func isUnknownFields(d serial.Descriptor, i int) bool {
	_, ok := serial.FindAnnotation[ProtoUnknownFields](d.ElementAnnotations(i))
	return ok
}

// variantNumber returns the field number a oneof variant is written under:
// its class-level ProtoNumber, or else that of its single element. Either
// way the variant must have exactly one element, since its payload is
// that element's value.
func variantNumber(variant serial.Descriptor) (int, error) {
	if variant.ElementsCount() != 1 {
		return 0, fmt.Errorf("%w: oneof variant %s must have exactly one element, has %d",
			ErrMisuse, variant.SerialName(), variant.ElementsCount())
	}
	n, ok := serial.FindAnnotation[ProtoNumber](variant.Annotations())
	if !ok {
		n = ProtoNumber(extractProtoID(variant, 0, false))
	}
	if err := wire.ValidateFieldNumber(int(n)); err != nil {
		return 0, fmt.Errorf("%w: %d for oneof variant %s", ErrInvalidFieldNumber, n, variant.SerialName())
	}
	return int(n), nil
}

// isPackable reports whether list elements of d may be written packed.
func isPackable(d serial.Descriptor) bool {
	switch d.Kind() {
	case serial.KindBool, serial.KindInt8, serial.KindInt16, serial.KindInt32, serial.KindInt64,
		serial.KindUint32, serial.KindUint64, serial.KindFloat32, serial.KindFloat64,
		serial.KindRune, serial.KindEnum:
		return true
	default:
		return false
	}
}
