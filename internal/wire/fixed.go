package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrFixedTruncated indicates fewer bytes remained than a fixed-width value needs.
var ErrFixedTruncated = errors.New("protoserial: fixed-width value truncated")

// Size constants for fixed-width types.
const (
	Fixed32Size = 4
	Fixed64Size = 8
)

// AppendFixed32 appends a 32-bit value in little-endian format.
func AppendFixed32(buf []byte, v uint32) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
	)
}

// AppendFixed64 appends a 64-bit value in little-endian format.
func AppendFixed64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// DecodeFixed32 decodes a little-endian 32-bit value.
func DecodeFixed32(data []byte) (uint32, error) {
	if len(data) < Fixed32Size {
		return 0, ErrFixedTruncated
	}
	return binary.LittleEndian.Uint32(data), nil
}

// DecodeFixed64 decodes a little-endian 64-bit value.
func DecodeFixed64(data []byte) (uint64, error) {
	if len(data) < Fixed64Size {
		return 0, ErrFixedTruncated
	}
	return binary.LittleEndian.Uint64(data), nil
}

// AppendFloat32 appends the IEEE 754 bits of v in little-endian order.
// NaN payloads and negative zero are preserved bit for bit.
func AppendFloat32(buf []byte, v float32) []byte {
	return AppendFixed32(buf, math.Float32bits(v))
}

// AppendFloat64 appends the IEEE 754 bits of v in little-endian order.
func AppendFloat64(buf []byte, v float64) []byte {
	return AppendFixed64(buf, math.Float64bits(v))
}

// DecodeFloat32 decodes a little-endian float32.
func DecodeFloat32(data []byte) (float32, error) {
	bits, err := DecodeFixed32(data)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// DecodeFloat64 decodes a little-endian float64.
func DecodeFloat64(data []byte) (float64, error) {
	bits, err := DecodeFixed64(data)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
