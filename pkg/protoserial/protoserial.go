package protoserial

import (
	"fmt"
	"sync"

	"github.com/blockberries/protoserial/pkg/serial"
)

// Format encodes and decodes values in the Protocol Buffers wire format.
// A Format is safe for concurrent use; it caches the layout of every
// message descriptor it meets.
type Format struct {
	opts    Options
	layouts sync.Map // serial.Descriptor -> *messageLayout
}

// NewFormat creates a Format with the given options.
func NewFormat(opts Options) *Format {
	return &Format{opts: opts}
}

// Default is the Format used by Marshal and Unmarshal.
var Default = NewFormat(DefaultOptions)

// Options returns the options of f.
func (f *Format) Options() Options { return f.opts }

func (f *Format) module() *serial.Module {
	if f.opts.Module != nil {
		return f.opts.Module
	}
	return serial.DefaultModule
}

func (f *Format) encodeTo(out *Output, s serial.Serializer, v any) error {
	e, err := newEncoder(f, NewWriter(out), s.Descriptor())
	if err != nil {
		return err
	}
	if err := s.Serialize(e, v); err != nil {
		return err
	}
	if limit := f.opts.Limits.MaxMessageSize; limit > 0 && int64(out.Len()) > limit {
		return &EncodeError{
			Type:    s.Descriptor().SerialName(),
			Message: fmt.Sprintf("message of %d bytes exceeds limit %d", out.Len(), limit),
			Cause:   ErrMaxSizeExceeded,
		}
	}
	return nil
}

// Encode writes v using s. A message is written as its fields; other
// values are written positionally.
func (f *Format) Encode(s serial.Serializer, v any) ([]byte, error) {
	out := NewOutput()
	if err := f.encodeTo(out, s, v); err != nil {
		return nil, err
	}
	return out.buf, nil
}

// Decode reads a value written by Encode.
func (f *Format) Decode(s serial.Serializer, data []byte) (any, error) {
	if limit := f.opts.Limits.MaxMessageSize; limit > 0 && int64(len(data)) > limit {
		return nil, &DecodeError{
			Type:    s.Descriptor().SerialName(),
			Offset:  -1,
			Message: fmt.Sprintf("message of %d bytes exceeds limit %d", len(data), limit),
			Cause:   ErrMaxSizeExceeded,
		}
	}
	return f.decodeFrom(NewInput(data), s)
}

func (f *Format) decodeFrom(in *Input, s serial.Serializer) (any, error) {
	d, err := newDecoder(f, NewReader(in, &f.opts), s.Descriptor())
	if err != nil {
		return nil, err
	}
	return s.Deserialize(d)
}

// EncodeDelimited writes v prefixed with its length as a varint.
func (f *Format) EncodeDelimited(s serial.Serializer, v any) ([]byte, error) {
	msg := NewOutput()
	if err := f.encodeTo(msg, s, v); err != nil {
		return nil, err
	}
	out := NewOutput()
	NewWriter(out).WriteSubmessage(msg, MissingTag)
	return out.buf, nil
}

// DecodeDelimited reads one length-prefixed value from the front of data
// and returns it with the bytes that follow.
func (f *Format) DecodeDelimited(s serial.Serializer, data []byte) (any, []byte, error) {
	in := NewInput(data)
	start := in.Pos()
	n, err := in.ReadLength()
	if err != nil {
		return nil, data, err
	}
	if limit := f.opts.Limits.MaxMessageSize; limit > 0 && int64(n) > limit {
		return nil, data, NewDecodeErrorAt(start, fmt.Sprintf("message of %d bytes exceeds limit %d", n, limit), ErrMaxSizeExceeded)
	}
	msg, err := in.Slice(n)
	if err != nil {
		return nil, data, err
	}
	v, err := f.decodeFrom(msg, s)
	if err != nil {
		return nil, data, err
	}
	return v, data[in.Pos():], nil
}

// Size returns the number of bytes Encode would produce for v.
func (f *Format) Size(s serial.Serializer, v any) (int, error) {
	out := NewOutput()
	if err := f.encodeTo(out, s, v); err != nil {
		return 0, err
	}
	return out.Len(), nil
}

// Marshal encodes v with the Default format.
func Marshal[T any](s serial.Serializer, v T) ([]byte, error) {
	return Default.Encode(s, v)
}

// Unmarshal decodes data with the Default format into a T.
func Unmarshal[T any](s serial.Serializer, data []byte) (T, error) {
	var zero T
	v, err := Default.Decode(s, data)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, NewDecodeError(fmt.Sprintf("%s decoded to %T, want %T", s.Descriptor().SerialName(), v, zero), serial.ErrTypeMismatch)
	}
	return t, nil
}
