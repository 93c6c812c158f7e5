package protoserial

import (
	"fmt"

	"github.com/blockberries/protoserial/internal/wire"
	"github.com/blockberries/protoserial/pkg/serial"
)

// WireType indicates how a field value is framed on the wire.
type WireType = wire.Type

// Wire type constants.
const (
	WireVarint  = wire.Varint
	WireFixed64 = wire.Fixed64
	WireBytes   = wire.Bytes
	WireFixed32 = wire.Fixed32
)

// IntegerType selects the encoding of integral values.
type IntegerType uint8

const (
	// IntegerDefault writes plain varints; negative values take ten bytes.
	IntegerDefault IntegerType = iota
	// IntegerSigned writes zig-zag varints.
	IntegerSigned
	// IntegerFixed writes little-endian fixed-width values.
	IntegerFixed
)

func (t IntegerType) String() string {
	switch t {
	case IntegerDefault:
		return "DEFAULT"
	case IntegerSigned:
		return "SIGNED"
	case IntegerFixed:
		return "FIXED"
	default:
		return fmt.Sprintf("IntegerType(%d)", uint8(t))
	}
}

// ProtoDesc is the wire-side description of one element: its field number
// and how its integers are encoded.
//
// A zero Number means the value is written positionally without a header.
// MissingTag is that value with default integers; untagged values may keep
// another integer type, as the elements of a packed sint32 list do.
type ProtoDesc struct {
	Number  int
	Integer IntegerType
	Packed  bool
	OneOf   bool

	// payload marks the single element of a oneof variant, written as a
	// field of the message that holds the oneof.
	payload bool
}

// MissingTag is the descriptor of a positional value.
var MissingTag = ProtoDesc{}

// IsMissing reports whether the value has no tag.
func (d ProtoDesc) IsMissing() bool { return d.Number == 0 }

// untagged returns the positional form of d, keeping its integer type.
func (d ProtoDesc) untagged() ProtoDesc {
	return ProtoDesc{Integer: d.Integer}
}

func (d ProtoDesc) String() string {
	if d.IsMissing() {
		return "MISSING(" + d.Integer.String() + ")"
	}
	s := fmt.Sprintf("#%d %s", d.Number, d.Integer)
	if d.Packed {
		s += " packed"
	}
	if d.OneOf {
		s += " oneof"
	}
	return s
}

// UTF8Mode controls how invalid UTF-8 in decoded strings is handled.
type UTF8Mode uint8

const (
	// UTF8Replace replaces invalid sequences with U+FFFD.
	UTF8Replace UTF8Mode = iota
	// UTF8Strict rejects invalid sequences with ErrInvalidUTF8.
	UTF8Strict
	// UTF8Unchecked passes bytes through unchanged.
	UTF8Unchecked
)

// Limits defines resource limits for encoding/decoding.
type Limits struct {
	// MaxMessageSize is the maximum total message size in bytes.
	// A value of 0 means no limit.
	MaxMessageSize int64

	// MaxDepth is the maximum nesting depth of structures.
	// A value of 0 means no limit.
	MaxDepth int

	// MaxStringLength is the maximum length of a string in bytes.
	// A value of 0 means no limit.
	MaxStringLength int

	// MaxBytesLength is the maximum length of a byte slice.
	// A value of 0 means no limit.
	MaxBytesLength int

	// MaxCollectionLength is the maximum element count of an untagged list.
	// A value of 0 means no limit.
	MaxCollectionLength int
}

// DefaultLimits are the default resource limits.
// These are generous limits suitable for most use cases.
var DefaultLimits = Limits{
	MaxMessageSize:      64 * 1024 * 1024, // 64 MB
	MaxDepth:            100,
	MaxStringLength:     10 * 1024 * 1024, // 10 MB
	MaxBytesLength:      64 * 1024 * 1024, // 64 MB
	MaxCollectionLength: 1_000_000,
}

// SecureLimits are conservative limits for untrusted input.
var SecureLimits = Limits{
	MaxMessageSize:      1 * 1024 * 1024, // 1 MB
	MaxDepth:            32,
	MaxStringLength:     1 * 1024 * 1024, // 1 MB
	MaxBytesLength:      1 * 1024 * 1024, // 1 MB
	MaxCollectionLength: 10_000,
}

// NoLimits disables all resource limits.
// Use with caution - only for trusted input.
var NoLimits = Limits{}

// Options configures encoding/decoding behavior.
type Options struct {
	// Limits specifies resource limits.
	Limits Limits

	// EncodeDefaults writes optional elements even when they hold their
	// default value.
	EncodeDefaults bool

	// UTF8 selects the handling of invalid UTF-8 in decoded strings.
	UTF8 UTF8Mode

	// Module resolves open polymorphic subclasses. Nil means
	// serial.DefaultModule.
	Module *serial.Module
}

// DefaultOptions are the default encoding/decoding options.
var DefaultOptions = Options{
	Limits: DefaultLimits,
	UTF8:   UTF8Replace,
}

// SecureOptions are conservative options for untrusted input.
var SecureOptions = Options{
	Limits: SecureLimits,
	UTF8:   UTF8Strict,
}

// StrictOptions reject invalid strings and write every element.
var StrictOptions = Options{
	Limits:         DefaultLimits,
	EncodeDefaults: true,
	UTF8:           UTF8Strict,
}

// Version information, set by ldflags at build time.
var (
	// Version is the semantic version of the library.
	Version = "dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// VersionInfo returns a formatted version string.
func VersionInfo() string {
	return Version + " (" + GitCommit + ", " + BuildDate + ")"
}
