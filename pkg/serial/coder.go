package serial

// DecodeDone is returned by CompositeDecoder.DecodeElementIndex when no
// elements remain.
const DecodeDone = -1

// Encoder is implemented by a format to receive values.
type Encoder interface {
	// Module returns the serializers module used for open polymorphism.
	Module() *Module

	EncodeBool(v bool) error
	EncodeInt8(v int8) error
	EncodeInt16(v int16) error
	EncodeInt32(v int32) error
	EncodeInt64(v int64) error
	EncodeUint32(v uint32) error
	EncodeUint64(v uint64) error
	EncodeFloat32(v float32) error
	EncodeFloat64(v float64) error
	EncodeRune(v rune) error
	EncodeString(v string) error
	EncodeBytes(v []byte) error

	// EncodeEnum encodes the enum constant at index of d.
	EncodeEnum(d Descriptor, index int) error

	// EncodeNull encodes an absent value. Formats without a null
	// representation return an error.
	EncodeNull() error

	EncodeSerializable(s Serializer, v any) error

	BeginStructure(d Descriptor) (CompositeEncoder, error)
	// BeginCollection starts a list or map with a known number of elements.
	// Size is -1 when unknown.
	BeginCollection(d Descriptor, size int) (CompositeEncoder, error)
}

// CompositeEncoder receives the elements of a structure or collection.
type CompositeEncoder interface {
	EncodeElement(d Descriptor, index int, s Serializer, v any) error
	EncodeNullableElement(d Descriptor, index int, s Serializer, v any) error

	// ShouldEncodeElementDefault reports whether an optional element holding
	// its default value must still be written.
	ShouldEncodeElementDefault(d Descriptor, index int) bool

	EndStructure(d Descriptor) error
}

// Decoder is implemented by a format to produce values.
type Decoder interface {
	Module() *Module

	// DecodeNotNullMark reports whether a non-nil value follows.
	DecodeNotNullMark() bool
	DecodeNull() error

	DecodeBool() (bool, error)
	DecodeInt8() (int8, error)
	DecodeInt16() (int16, error)
	DecodeInt32() (int32, error)
	DecodeInt64() (int64, error)
	DecodeUint32() (uint32, error)
	DecodeUint64() (uint64, error)
	DecodeFloat32() (float32, error)
	DecodeFloat64() (float64, error)
	DecodeRune() (rune, error)
	DecodeString() (string, error)
	DecodeBytes() ([]byte, error)

	// DecodeEnum returns the index of the decoded constant in d.
	DecodeEnum(d Descriptor) (int, error)

	DecodeSerializable(s Serializer) (any, error)

	BeginStructure(d Descriptor) (CompositeDecoder, error)
}

// CompositeDecoder yields the elements of a structure or collection.
type CompositeDecoder interface {
	// DecodeElementIndex returns the index of the next element to decode,
	// or DecodeDone.
	DecodeElementIndex(d Descriptor) (int, error)

	// DecodeCollectionSize returns the number of elements when the format
	// knows it up front, or -1.
	DecodeCollectionSize(d Descriptor) (int, error)

	// DecodeElement decodes the element at index. Previous holds the value
	// already decoded for the same element, if any, so that collections
	// split across the input can be merged.
	DecodeElement(d Descriptor, index int, s Serializer, previous any) (any, error)
	DecodeNullableElement(d Descriptor, index int, s Serializer, previous any) (any, error)

	EndStructure(d Descriptor) error
}
