package protoserial

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/blockberries/protoserial/internal/wire"
	"github.com/blockberries/protoserial/pkg/serial"
)

// DefaultStreamMessageSize bounds a single delimited message read from a
// stream when the format's limits leave the message size unset.
const DefaultStreamMessageSize = 256 * 1024

const streamBufferSize = 4096

// StreamWriter writes length-delimited messages to an io.Writer.
//
// StreamWriter is not safe for concurrent use.
type StreamWriter struct {
	w      *bufio.Writer
	f      *Format
	err    error
	closed bool
	// scratch holds the length prefix of the message being written.
	scratch [wire.MaxVarintLen64]byte
}

// NewStreamWriter creates a StreamWriter using the Default format.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return NewStreamWriterWithFormat(w, Default)
}

// NewStreamWriterWithFormat creates a StreamWriter using f.
func NewStreamWriterWithFormat(w io.Writer, f *Format) *StreamWriter {
	return &StreamWriter{w: bufio.NewWriterSize(w, streamBufferSize), f: f}
}

// Err returns the first error that occurred during writing.
func (sw *StreamWriter) Err() error {
	return sw.err
}

func (sw *StreamWriter) setError(err error) {
	if sw.err == nil {
		sw.err = err
	}
}

// WriteDelimited encodes v and writes it with a varint length prefix.
func (sw *StreamWriter) WriteDelimited(s serial.Serializer, v any) error {
	if sw.closed {
		sw.setError(NewEncodeError("writer is closed", nil))
	}
	if sw.err != nil {
		return sw.err
	}
	msg := NewOutput()
	if err := sw.f.encodeTo(msg, s, v); err != nil {
		return err
	}
	if _, err := sw.w.Write(wire.AppendUvarint(sw.scratch[:0], uint64(msg.Len()))); err != nil {
		sw.setError(NewEncodeError("write failed", err))
		return sw.err
	}
	if _, err := sw.w.Write(msg.buf); err != nil {
		sw.setError(NewEncodeError("write failed", err))
	}
	return sw.err
}

// Flush writes any buffered data to the underlying writer.
func (sw *StreamWriter) Flush() error {
	if sw.err != nil {
		return sw.err
	}
	if err := sw.w.Flush(); err != nil {
		sw.setError(NewEncodeError("flush failed", err))
	}
	return sw.err
}

// Close flushes buffered data. The underlying io.Writer is not closed.
func (sw *StreamWriter) Close() error {
	if sw.closed {
		return nil
	}
	sw.closed = true
	return sw.Flush()
}

// StreamReader reads length-delimited messages from an io.Reader.
type StreamReader struct {
	r       *bufio.Reader
	f       *Format
	maxSize int64
	offset  int
}

// NewStreamReader creates a StreamReader using the Default format.
func NewStreamReader(r io.Reader) *StreamReader {
	return NewStreamReaderWithFormat(r, Default)
}

// NewStreamReaderWithFormat creates a StreamReader using f. Messages larger
// than the format's MaxMessageSize, or DefaultStreamMessageSize when that
// is unset, are rejected before they are read.
func NewStreamReaderWithFormat(r io.Reader, f *Format) *StreamReader {
	maxSize := f.opts.Limits.MaxMessageSize
	if maxSize <= 0 {
		maxSize = DefaultStreamMessageSize
	}
	return &StreamReader{r: bufio.NewReaderSize(r, streamBufferSize), f: f, maxSize: maxSize}
}

// readLength reads the varint length prefix. It returns io.EOF only when
// the stream ends cleanly before the prefix.
func (sr *StreamReader) readLength() (int, error) {
	var buf [wire.MaxVarintLen64]byte
	for i := range buf {
		b, err := sr.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 {
					return 0, io.EOF
				}
				return 0, NewDecodeErrorAt(sr.offset, "stream ends inside a length prefix", ErrUnexpectedEOF)
			}
			return 0, NewDecodeErrorAt(sr.offset, "read failed", err)
		}
		buf[i] = b
		if b < 0x80 {
			v, _, err := wire.DecodeUvarint(buf[:i+1])
			if err != nil {
				return 0, NewDecodeErrorAt(sr.offset, err.Error(), ErrMalformedVarint)
			}
			if v > uint64(sr.maxSize) {
				return 0, NewDecodeErrorAt(sr.offset, fmt.Sprintf("message of %d bytes exceeds limit %d", v, sr.maxSize), ErrMaxSizeExceeded)
			}
			sr.offset += i + 1
			return int(v), nil
		}
	}
	return 0, NewDecodeErrorAt(sr.offset, "length prefix longer than 10 bytes", ErrMalformedVarint)
}

// ReadMessage returns the bytes of the next delimited message, or io.EOF
// at a clean end of stream.
func (sr *StreamReader) ReadMessage() ([]byte, error) {
	n, err := sr.readLength()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(sr.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, NewDecodeErrorAt(sr.offset, fmt.Sprintf("stream ends inside a message of %d bytes", n), ErrUnexpectedEOF)
		}
		return nil, NewDecodeErrorAt(sr.offset, "read failed", err)
	}
	sr.offset += n
	return buf, nil
}

// ReadDelimited reads and decodes the next delimited message. It returns
// io.EOF at a clean end of stream.
func (sr *StreamReader) ReadDelimited(s serial.Serializer) (any, error) {
	data, err := sr.ReadMessage()
	if err != nil {
		return nil, err
	}
	return sr.f.decodeFrom(NewInput(data), s)
}

// MessageIterator iterates over the delimited messages of a stream.
//
//	it := protoserial.NewMessageIterator(r, s)
//	for it.Next() {
//		use(it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type MessageIterator struct {
	reader *StreamReader
	s      serial.Serializer
	value  any
	err    error
}

// NewMessageIterator creates an iterator decoding messages from r with s.
func NewMessageIterator(r io.Reader, s serial.Serializer) *MessageIterator {
	return &MessageIterator{reader: NewStreamReader(r), s: s}
}

// NewMessageIteratorWithFormat is NewMessageIterator using f.
func NewMessageIteratorWithFormat(r io.Reader, s serial.Serializer, f *Format) *MessageIterator {
	return &MessageIterator{reader: NewStreamReaderWithFormat(r, f), s: s}
}

// Next decodes the next message. It returns false at the end of the stream
// or on error.
func (it *MessageIterator) Next() bool {
	if it.err != nil {
		return false
	}
	v, err := it.reader.ReadDelimited(it.s)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			it.err = err
		}
		it.value = nil
		return false
	}
	it.value = v
	return true
}

// Value returns the message decoded by the last successful Next.
func (it *MessageIterator) Value() any { return it.value }

// Err returns the error that stopped iteration, if any.
func (it *MessageIterator) Err() error { return it.err }
