// Package wire provides the low-level Protocol Buffers wire primitives:
// base-128 varints, zig-zag transforms, field tags and little-endian
// fixed-width values.
package wire

import "errors"

// Maximum number of bytes for a varint-encoded uint64.
// A uint64 has 64 bits, and each varint byte encodes 7 bits,
// so we need ceil(64/7) = 10 bytes maximum.
const MaxVarintLen64 = 10

// MaxVarintLen32 is the maximum number of bytes for a varint-encoded uint32.
const MaxVarintLen32 = 5

// Errors for varint decoding.
var (
	// ErrVarintOverflow indicates the varint overflows a 64-bit integer.
	ErrVarintOverflow = errors.New("protoserial: varint overflows uint64")

	// ErrVarintTruncated indicates the input ended before the varint terminated.
	ErrVarintTruncated = errors.New("protoserial: varint truncated")

	// ErrVarintTooLong indicates more than 10 continuation groups were seen.
	ErrVarintTooLong = errors.New("protoserial: varint exceeds maximum length")
)

// AppendUvarint appends the varint encoding of v to buf and returns the extended buffer.
//
// The encoding uses 7 bits per byte, with the MSB as a continuation flag.
// Groups are ordered from least significant to most significant.
//
// Example encodings:
//   - 0 → [0x00]
//   - 127 → [0x7f]
//   - 128 → [0x80, 0x01]
//   - 300 → [0xac, 0x02]
func AppendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// AppendSvarint appends the zig-zag varint encoding of v to buf.
func AppendSvarint(buf []byte, v int64) []byte {
	return AppendUvarint(buf, EncodeZigZag(v))
}

// DecodeUvarint decodes a varint from data and returns the value and the number of bytes consumed.
//
// A tenth byte may only contribute the single remaining bit of a uint64:
// a tenth byte with its continuation bit set reports ErrVarintTooLong and
// one with a payload above 1 reports ErrVarintOverflow.
func DecodeUvarint(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrVarintTruncated
	}

	// Fast path for single-byte varints (values 0-127)
	if data[0] < 0x80 {
		return uint64(data[0]), 1, nil
	}

	var v uint64
	var shift uint
	for i := range min(len(data), MaxVarintLen64) {
		b := data[i]
		if i == MaxVarintLen64-1 {
			if b >= 0x80 {
				return 0, 0, ErrVarintTooLong
			}
			if b > 1 {
				return 0, 0, ErrVarintOverflow
			}
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrVarintTruncated
}

// DecodeUvarint32 decodes a varint and truncates it to 32 bits.
//
// Negative int32 values are sign-extended to ten bytes on the wire, so the
// full 64-bit varint is consumed before the low half is kept.
func DecodeUvarint32(data []byte) (uint32, int, error) {
	if len(data) > 0 && data[0] < 0x80 {
		return uint32(data[0]), 1, nil
	}
	v, n, err := DecodeUvarint(data)
	return uint32(v), n, err
}

// DecodeSvarint decodes a zig-zag varint from data.
func DecodeSvarint(data []byte) (int64, int, error) {
	uv, n, err := DecodeUvarint(data)
	if err != nil {
		return 0, n, err
	}
	return DecodeZigZag(uv), n, nil
}

// EncodeZigZag maps a signed 64-bit integer onto an unsigned one so that
// values with a small magnitude stay small: 0 → 0, -1 → 1, 1 → 2, -2 → 3.
func EncodeZigZag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// DecodeZigZag reverses EncodeZigZag.
func DecodeZigZag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// EncodeZigZag32 is the 32-bit form of EncodeZigZag.
func EncodeZigZag32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// DecodeZigZag32 reverses EncodeZigZag32.
func DecodeZigZag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// UvarintSize returns the number of bytes required to encode v as a varint.
func UvarintSize(v uint64) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	case v < 1<<35:
		return 5
	case v < 1<<42:
		return 6
	case v < 1<<49:
		return 7
	case v < 1<<56:
		return 8
	case v < 1<<63:
		return 9
	default:
		return 10
	}
}

// SvarintSize returns the number of bytes required to encode v as a zig-zag varint.
func SvarintSize(v int64) int {
	return UvarintSize(EncodeZigZag(v))
}
