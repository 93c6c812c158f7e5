package protoserial

import (
	"errors"
	"fmt"
	"math"

	"github.com/blockberries/protoserial/internal/wire"
)

// Input is a read cursor over a window of a byte slice.
//
// Positions are absolute offsets into the backing slice, so errors from a
// nested message report where the bad byte sits in the whole input.
// Invariant: pos <= end <= len(data).
type Input struct {
	data []byte
	pos  int
	end  int
}

// NewInput creates an Input over data.
func NewInput(data []byte) *Input {
	return &Input{data: data, end: len(data)}
}

// Pos returns the absolute read position.
func (in *Input) Pos() int { return in.pos }

// Available returns the number of unread bytes in the window.
func (in *Input) Available() int { return in.end - in.pos }

// EOF reports whether the window is exhausted.
func (in *Input) EOF() bool { return in.pos >= in.end }

func (in *Input) eofError(want int) error {
	if in.Available() == 0 {
		return NewDecodeErrorAt(in.pos, "no more input", ErrUnexpectedEOF)
	}
	return NewDecodeErrorAt(in.pos,
		fmt.Sprintf("need %d bytes, %d remaining", want, in.Available()), ErrUnexpectedEOF)
}

// ReadByte reads a single byte.
func (in *Input) ReadByte() (byte, error) {
	if in.pos >= in.end {
		return 0, in.eofError(1)
	}
	b := in.data[in.pos]
	in.pos++
	return b, nil
}

// ReadExact returns the next n bytes without copying.
func (in *Input) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, NewDecodeErrorAt(in.pos, fmt.Sprintf("negative length %d", n), ErrInvalidLength)
	}
	if n > in.Available() {
		return nil, in.eofError(n)
	}
	b := in.data[in.pos : in.pos+n : in.pos+n]
	in.pos += n
	return b, nil
}

// Skip advances past n bytes.
func (in *Input) Skip(n int) error {
	_, err := in.ReadExact(n)
	return err
}

// ReadVarint reads an unsigned varint of up to ten bytes.
func (in *Input) ReadVarint() (uint64, error) {
	v, n, err := wire.DecodeUvarint(in.data[in.pos:in.end])
	if err != nil {
		switch {
		case errors.Is(err, wire.ErrVarintTruncated):
			return 0, NewDecodeErrorAt(in.pos, "input ends inside a varint", ErrUnexpectedEOF)
		default:
			return 0, NewDecodeErrorAt(in.pos, err.Error(), ErrMalformedVarint)
		}
	}
	in.pos += n
	return v, nil
}

// ReadFixed32 reads a little-endian 32-bit value.
func (in *Input) ReadFixed32() (uint32, error) {
	b, err := in.ReadExact(wire.Fixed32Size)
	if err != nil {
		return 0, err
	}
	v, _ := wire.DecodeFixed32(b)
	return v, nil
}

// ReadFixed64 reads a little-endian 64-bit value.
func (in *Input) ReadFixed64() (uint64, error) {
	b, err := in.ReadExact(wire.Fixed64Size)
	if err != nil {
		return 0, err
	}
	v, _ := wire.DecodeFixed64(b)
	return v, nil
}

// ReadFloat32 reads a little-endian float32 bit for bit.
func (in *Input) ReadFloat32() (float32, error) {
	b, err := in.ReadExact(wire.Fixed32Size)
	if err != nil {
		return 0, err
	}
	v, _ := wire.DecodeFloat32(b)
	return v, nil
}

// ReadFloat64 reads a little-endian float64 bit for bit.
func (in *Input) ReadFloat64() (float64, error) {
	b, err := in.ReadExact(wire.Fixed64Size)
	if err != nil {
		return 0, err
	}
	v, _ := wire.DecodeFloat64(b)
	return v, nil
}

// ReadLength reads a varint length prefix. The 64-bit value is checked
// against the int32 range and the remaining input before it is narrowed.
func (in *Input) ReadLength() (int, error) {
	start := in.pos
	length, err := in.ReadVarint()
	if err != nil {
		return 0, err
	}
	if int64(length) < 0 {
		return 0, NewDecodeErrorAt(start, fmt.Sprintf("negative length %d", int64(length)), ErrInvalidLength)
	}
	if length > math.MaxInt32 {
		return 0, NewDecodeErrorAt(start, fmt.Sprintf("length %d overflows int32", length), ErrInvalidLength)
	}
	if int(length) > in.Available() {
		return 0, NewDecodeErrorAt(start,
			fmt.Sprintf("declared length %d exceeds remaining %d bytes", length, in.Available()), ErrUnexpectedEOF)
	}
	return int(length), nil
}

// Slice returns a bounded view of the next n bytes sharing the backing
// array, and advances past them.
func (in *Input) Slice(n int) (*Input, error) {
	if n < 0 {
		return nil, NewDecodeErrorAt(in.pos, fmt.Sprintf("negative length %d", n), ErrInvalidLength)
	}
	if n > in.Available() {
		return nil, in.eofError(n)
	}
	sub := &Input{data: in.data, pos: in.pos, end: in.pos + n}
	in.pos += n
	return sub, nil
}
