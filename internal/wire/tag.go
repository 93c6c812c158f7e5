package wire

import (
	"errors"
	"math"
)

// Type indicates how a field value is framed on the wire.
type Type uint8

const (
	// Varint is used for integers, booleans and enums.
	Varint Type = 0

	// Fixed64 is used for 8-byte little-endian values (fixed64, sfixed64, double).
	Fixed64 Type = 1

	// Bytes is used for length-delimited data: strings, byte slices,
	// embedded messages and packed repeated fields.
	// Format: [length: varint] [data: length bytes]
	Bytes Type = 2

	// StartGroup and EndGroup are the deprecated group delimiters. They are
	// named so errors can report them, but nothing in this module accepts them.
	StartGroup Type = 3
	EndGroup   Type = 4

	// Fixed32 is used for 4-byte little-endian values (fixed32, sfixed32, float).
	Fixed32 Type = 5
)

// String returns a human-readable name for the wire type.
func (t Type) String() string {
	switch t {
	case Varint:
		return "VARINT"
	case Fixed64:
		return "I64"
	case Bytes:
		return "LEN"
	case StartGroup:
		return "SGROUP"
	case EndGroup:
		return "EGROUP"
	case Fixed32:
		return "I32"
	default:
		return "INVALID"
	}
}

// IsValid reports whether the wire type is one of the four supported types.
func (t Type) IsValid() bool {
	switch t {
	case Varint, Fixed64, Bytes, Fixed32:
		return true
	default:
		return false
	}
}

// Errors for tag decoding.
var (
	// ErrInvalidFieldNumber indicates a field number outside 1..MaxFieldNumber.
	ErrInvalidFieldNumber = errors.New("protoserial: invalid field number")

	// ErrTagOverflow indicates a tag header that does not fit 32 bits.
	ErrTagOverflow = errors.New("protoserial: tag overflows uint32")
)

// MaxFieldNumber is the largest field number that fits a 32-bit tag.
const MaxFieldNumber = 1<<29 - 1

// Tag combines a field number and a wire type: (field_number << 3) | wire_type.
type Tag uint32

// NewTag creates a new tag from a field number and wire type.
func NewTag(fieldNum int, wireType Type) Tag {
	return Tag(uint32(fieldNum)<<3 | uint32(wireType))
}

// FieldNumber returns the field number from the tag.
func (t Tag) FieldNumber() int {
	return int(t >> 3)
}

// WireType returns the wire type from the tag.
func (t Tag) WireType() Type {
	return Type(t & 0x7)
}

// AppendTag appends a field tag to buf and returns the extended buffer.
func AppendTag(buf []byte, fieldNum int, wireType Type) []byte {
	return AppendUvarint(buf, uint64(NewTag(fieldNum, wireType)))
}

// DecodeTag decodes a field tag header from data.
// Returns the field number, wire type and bytes consumed.
//
// The wire type is returned as found; callers decide whether groups or
// unassigned wire types are errors. A field number of 0 is rejected.
func DecodeTag(data []byte) (fieldNum int, wireType Type, n int, err error) {
	header, n, err := DecodeUvarint(data)
	if err != nil {
		return 0, 0, 0, err
	}
	if header > math.MaxUint32 {
		return 0, 0, 0, ErrTagOverflow
	}
	tag := Tag(header)
	if tag.FieldNumber() <= 0 {
		return 0, 0, 0, ErrInvalidFieldNumber
	}
	return tag.FieldNumber(), tag.WireType(), n, nil
}

// TagSize returns the number of bytes required to encode a tag.
func TagSize(fieldNum int) int {
	// The wire type occupies the low 3 bits, which never changes the size.
	return UvarintSize(uint64(fieldNum) << 3)
}

// ValidateFieldNumber returns an error if the field number is invalid.
func ValidateFieldNumber(fieldNum int) error {
	if fieldNum <= 0 || fieldNum > MaxFieldNumber {
		return ErrInvalidFieldNumber
	}
	return nil
}
