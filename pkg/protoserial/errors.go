// Package protoserial encodes and decodes values described by serial
// descriptors in the Protocol Buffers wire format.
package protoserial

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/blockberries/protoserial/pkg/serial"
)

// Sentinel errors for common conditions.
// These can be checked using errors.Is().
var (
	// ErrUnexpectedEOF indicates the input ended inside a value or before a
	// declared length-delimited payload completed.
	ErrUnexpectedEOF = errors.New("protoserial: unexpected end of input")

	// ErrMalformedVarint indicates a varint longer than ten bytes or one
	// whose value exceeds 64 bits.
	ErrMalformedVarint = errors.New("protoserial: malformed varint")

	// ErrWireTypeMismatch indicates a field whose wire type does not match
	// the type being decoded.
	ErrWireTypeMismatch = errors.New("protoserial: wire type mismatch")

	// ErrInvalidLength indicates a negative or oversized length prefix.
	ErrInvalidLength = errors.New("protoserial: invalid length")

	// ErrUnsupportedWireType indicates a group or unassigned wire type.
	ErrUnsupportedWireType = errors.New("protoserial: unsupported wire type")

	// ErrMissingField indicates a required element absent from the input.
	ErrMissingField = errors.New("protoserial: missing required field")

	// ErrUnknownEnumValue indicates an enum number with no constant.
	ErrUnknownEnumValue = errors.New("protoserial: unknown enum value")

	// ErrUnknownOneOf indicates a oneof field number with no variant.
	ErrUnknownOneOf = errors.New("protoserial: unknown oneof variant")

	// ErrNullNotSupported indicates a nil value where the wire format has no
	// representation for it.
	ErrNullNotSupported = errors.New("protoserial: 'null' is not supported in ProtoBuf")

	// ErrInvalidBool indicates a boolean varint other than 0 or 1.
	ErrInvalidBool = errors.New("protoserial: invalid boolean value")

	// ErrInvalidUTF8 indicates a string with invalid UTF-8 in strict mode.
	ErrInvalidUTF8 = errors.New("protoserial: invalid UTF-8 string")

	// ErrInvalidFieldNumber indicates a field number outside 1..2^29-1.
	ErrInvalidFieldNumber = errors.New("protoserial: invalid field number")

	// ErrDuplicateFieldNumber indicates two elements with the same number.
	ErrDuplicateFieldNumber = errors.New("protoserial: duplicate field number")

	// ErrMisuse indicates a call sequence the codec cannot express, such as
	// a raw value outside any element.
	ErrMisuse = errors.New("protoserial: invalid call sequence")

	// ErrUnknownFieldsCodec indicates the unknown-fields serializer was
	// driven by a different format.
	ErrUnknownFieldsCodec = errors.New("protoserial: unknown fields can only be used with the protobuf codec")

	// ErrMaxDepthExceeded indicates the maximum nesting depth was exceeded.
	ErrMaxDepthExceeded = errors.New("protoserial: maximum nesting depth exceeded")

	// ErrMaxSizeExceeded indicates the maximum message size was exceeded.
	ErrMaxSizeExceeded = errors.New("protoserial: maximum message size exceeded")

	// ErrMaxStringLength indicates the maximum string length was exceeded.
	ErrMaxStringLength = errors.New("protoserial: maximum string length exceeded")

	// ErrMaxBytesLength indicates the maximum bytes length was exceeded.
	ErrMaxBytesLength = errors.New("protoserial: maximum bytes length exceeded")

	// ErrMaxCollectionLength indicates the maximum collection length was
	// exceeded.
	ErrMaxCollectionLength = errors.New("protoserial: maximum collection length exceeded")
)

// DecodeError provides detailed context for decoding failures.
type DecodeError struct {
	// Type is the serial name of the message being decoded (if known).
	Type string

	// Field is the name of the element being decoded (if applicable).
	Field string

	// FieldNumber is the wire field number (if applicable).
	FieldNumber int

	// Offset is the byte offset in the input where the error occurred,
	// or -1.
	Offset int

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message.
func (e *DecodeError) Error() string {
	prefix := e.prefix()
	if prefix != "" {
		if e.Offset >= 0 {
			return fmt.Sprintf("protoserial: decode %s at offset %d: %s", prefix, e.Offset, e.Message)
		}
		return fmt.Sprintf("protoserial: decode %s: %s", prefix, e.Message)
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("protoserial: decode at offset %d: %s", e.Offset, e.Message)
	}
	return fmt.Sprintf("protoserial: decode: %s", e.Message)
}

func (e *DecodeError) prefix() string {
	var prefix string
	switch {
	case e.Type != "" && e.Field != "":
		prefix = e.Type + "." + e.Field
	case e.Type != "":
		prefix = e.Type
	case e.Field != "":
		prefix = e.Field
	}
	if prefix != "" && e.FieldNumber > 0 {
		prefix = fmt.Sprintf("%s (#%d)", prefix, e.FieldNumber)
	}
	return prefix
}

// Unwrap returns the underlying cause of the error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *DecodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// NewDecodeError creates a new DecodeError without offset information.
func NewDecodeError(message string, cause error) *DecodeError {
	return &DecodeError{
		Offset:  -1,
		Message: message,
		Cause:   cause,
	}
}

// NewDecodeErrorAt creates a new DecodeError with offset information.
func NewDecodeErrorAt(offset int, message string, cause error) *DecodeError {
	return &DecodeError{
		Offset:  offset,
		Message: message,
		Cause:   cause,
	}
}

// EncodeError provides detailed context for encoding failures.
type EncodeError struct {
	// Type is the serial name of the message being encoded.
	Type string

	// Field is the name of the element being encoded (if applicable).
	Field string

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message.
func (e *EncodeError) Error() string {
	var prefix string
	switch {
	case e.Type != "" && e.Field != "":
		prefix = e.Type + "." + e.Field
	case e.Type != "":
		prefix = e.Type
	case e.Field != "":
		prefix = e.Field
	}
	if prefix != "" {
		return fmt.Sprintf("protoserial: encode %s: %s", prefix, e.Message)
	}
	return fmt.Sprintf("protoserial: encode: %s", e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *EncodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// NewEncodeError creates a new EncodeError.
func NewEncodeError(message string, cause error) *EncodeError {
	return &EncodeError{
		Message: message,
		Cause:   cause,
	}
}

// IsFatal returns true if the error indicates a programming error in the
// descriptors or serializers rather than bad input.
func IsFatal(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidFieldNumber),
		errors.Is(err, ErrDuplicateFieldNumber),
		errors.Is(err, ErrMisuse),
		errors.Is(err, ErrUnknownFieldsCodec):
		return true
	default:
		return false
	}
}

// IsLimitExceeded returns true if the error indicates a configured limit was exceeded.
func IsLimitExceeded(err error) bool {
	switch {
	case errors.Is(err, ErrMaxDepthExceeded),
		errors.Is(err, ErrMaxSizeExceeded),
		errors.Is(err, ErrMaxStringLength),
		errors.Is(err, ErrMaxBytesLength),
		errors.Is(err, ErrMaxCollectionLength):
		return true
	default:
		return false
	}
}

// decodeElementError attaches element context to err. A DecodeError raised
// deeper keeps the innermost element; any other error is wrapped.
func decodeElementError(err error, typeName, field string, number int) error {
	var de *DecodeError
	if errors.As(err, &de) {
		if de.Field == "" {
			de.Type, de.Field, de.FieldNumber = typeName, field, number
		}
		return err
	}
	return &DecodeError{
		Type:        typeName,
		Field:       field,
		FieldNumber: number,
		Offset:      -1,
		Message:     err.Error(),
		Cause:       err,
	}
}

// elementName names element i of d in errors. Lists and maps reuse their
// element slots for every value, so elements past the slots go by index.
func elementName(d serial.Descriptor, i int) string {
	if i >= 0 && i < d.ElementsCount() {
		return d.ElementName(i)
	}
	return strconv.Itoa(i)
}

// elementDescriptor is d.ElementDescriptor(i) with collection indices
// folded onto their element slots.
func elementDescriptor(d serial.Descriptor, i int) serial.Descriptor {
	if n := d.ElementsCount(); d.Kind().IsCollection() && n > 0 {
		i %= n
	}
	return d.ElementDescriptor(i)
}

// encodeElementError is decodeElementError for the encoding direction.
func encodeElementError(err error, typeName, field string) error {
	var ee *EncodeError
	if errors.As(err, &ee) {
		if ee.Field == "" {
			ee.Type, ee.Field = typeName, field
		}
		return err
	}
	return &EncodeError{
		Type:    typeName,
		Field:   field,
		Message: err.Error(),
		Cause:   err,
	}
}
