package protoserial

import (
	"math/bits"

	"github.com/blockberries/protoserial/internal/wire"
)

const defaultOutputSize = 32

// Output is a growable byte buffer. The zero value is ready for use.
//
// Output buffers are not pooled: every encode call and every nested
// message owns a fresh one.
type Output struct {
	buf []byte
}

// NewOutput creates an Output with a small initial capacity.
func NewOutput() *Output {
	return &Output{buf: make([]byte, 0, defaultOutputSize)}
}

// Len returns the number of bytes written.
func (o *Output) Len() int { return len(o.buf) }

// Bytes returns a copy of the written bytes.
func (o *Output) Bytes() []byte {
	out := make([]byte, len(o.buf))
	copy(out, o.buf)
	return out
}

// Reset discards the written bytes, keeping the capacity.
func (o *Output) Reset() { o.buf = o.buf[:0] }

// ensureCapacity grows the buffer to the power of two above len+n.
func (o *Output) ensureCapacity(n int) {
	need := len(o.buf) + n
	if need <= cap(o.buf) {
		return
	}
	newCap := 1 << bits.Len(uint(need))
	grown := make([]byte, len(o.buf), newCap)
	copy(grown, o.buf)
	o.buf = grown
}

// Write appends p. It never fails.
func (o *Output) Write(p []byte) (int, error) {
	o.ensureCapacity(len(p))
	o.buf = append(o.buf, p...)
	return len(p), nil
}

// WriteByte appends b. It never fails.
func (o *Output) WriteByte(b byte) error {
	o.ensureCapacity(1)
	o.buf = append(o.buf, b)
	return nil
}

// WriteOutput appends the contents of other.
func (o *Output) WriteOutput(other *Output) {
	_, _ = o.Write(other.buf)
}

// WriteVarint appends v as an unsigned varint.
func (o *Output) WriteVarint(v uint64) {
	o.ensureCapacity(wire.MaxVarintLen64)
	o.buf = wire.AppendUvarint(o.buf, v)
}

// WriteFixed32 appends v in little-endian order.
func (o *Output) WriteFixed32(v uint32) {
	o.ensureCapacity(wire.Fixed32Size)
	o.buf = wire.AppendFixed32(o.buf, v)
}

// WriteFixed64 appends v in little-endian order.
func (o *Output) WriteFixed64(v uint64) {
	o.ensureCapacity(wire.Fixed64Size)
	o.buf = wire.AppendFixed64(o.buf, v)
}

// WriteFloat32 appends the IEEE 754 bits of v.
func (o *Output) WriteFloat32(v float32) {
	o.ensureCapacity(wire.Fixed32Size)
	o.buf = wire.AppendFloat32(o.buf, v)
}

// WriteFloat64 appends the IEEE 754 bits of v.
func (o *Output) WriteFloat64(v float64) {
	o.ensureCapacity(wire.Fixed64Size)
	o.buf = wire.AppendFloat64(o.buf, v)
}
