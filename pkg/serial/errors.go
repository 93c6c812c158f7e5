package serial

import (
	"errors"
	"fmt"
)

// Sentinel errors for serializer failures.
var (
	// ErrTypeMismatch indicates a value does not have the Go type its
	// serializer expects.
	ErrTypeMismatch = errors.New("serial: value type mismatch")

	// ErrUnknownSubclass indicates a polymorphic type name with no
	// registered serializer.
	ErrUnknownSubclass = errors.New("serial: unknown polymorphic subclass")

	// ErrUnregisteredType indicates a polymorphic value whose Go type has
	// no registered serializer.
	ErrUnregisteredType = errors.New("serial: unregistered polymorphic type")

	// ErrDuplicateSubclass indicates a subclass registered more than once.
	ErrDuplicateSubclass = errors.New("serial: duplicate subclass registration")

	// ErrMissingTypeToken indicates a polymorphic value decoded before its
	// type name.
	ErrMissingTypeToken = errors.New("serial: polymorphic value before its type")

	// ErrUnexpectedIndex indicates a decoder returned an element index the
	// descriptor does not have.
	ErrUnexpectedIndex = errors.New("serial: unexpected element index")

	// ErrEnumOutOfRange indicates an enum value with no constant.
	ErrEnumOutOfRange = errors.New("serial: enum value out of range")
)

// RegistrationError represents an error during subclass registration.
type RegistrationError struct {
	// Base is the serial name of the polymorphic base.
	Base string

	// Name is the serial name of the subclass.
	Name string

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("serial: register %s in %s: %s", e.Name, e.Base, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

func mismatch(d Descriptor, v any) error {
	return fmt.Errorf("%w: %s cannot handle %T", ErrTypeMismatch, d.SerialName(), v)
}

func unexpectedIndex(d Descriptor, index int) error {
	return fmt.Errorf("%w: %d for %s", ErrUnexpectedIndex, index, d.SerialName())
}
