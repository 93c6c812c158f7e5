// Package serial defines the format-agnostic side of serialization: serial
// descriptors that describe the shape of a value, the Encoder and Decoder
// contracts a wire format implements, and the serializers that walk a value
// against those contracts.
//
// A format never inspects Go values directly. It only sees the call sequence
// a Serializer produces ("begin structure D, encode element 2 as int32, end")
// together with the Descriptor that names, numbers and annotates each element.
package serial

import "fmt"

// Kind classifies a descriptor.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindRune
	KindString
	KindBytes
	KindEnum

	// KindClass is an ordinary structure with named elements.
	KindClass
	// KindObject is a singleton structure without elements.
	KindObject
	KindList
	KindMap

	// KindSealed is a closed polymorphic hierarchy.
	KindSealed
	// KindOpen is a polymorphic hierarchy resolved through a Module.
	KindOpen
)

var kindNames = [...]string{
	KindBool:    "BOOL",
	KindInt8:    "INT8",
	KindInt16:   "INT16",
	KindInt32:   "INT32",
	KindInt64:   "INT64",
	KindUint32:  "UINT32",
	KindUint64:  "UINT64",
	KindFloat32: "FLOAT32",
	KindFloat64: "FLOAT64",
	KindRune:    "RUNE",
	KindString:  "STRING",
	KindBytes:   "BYTES",
	KindEnum:    "ENUM",
	KindClass:   "CLASS",
	KindObject:  "OBJECT",
	KindList:    "LIST",
	KindMap:     "MAP",
	KindSealed:  "SEALED",
	KindOpen:    "OPEN",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsPrimitive reports whether values of the kind are written with a single
// scalar call.
func (k Kind) IsPrimitive() bool {
	return k >= KindBool && k <= KindBytes
}

// IsCollection reports whether the kind is a list or a map.
func (k Kind) IsCollection() bool {
	return k == KindList || k == KindMap
}

// IsPolymorphic reports whether the kind is sealed or open.
func (k Kind) IsPolymorphic() bool {
	return k == KindSealed || k == KindOpen
}

// IsStructure reports whether values of the kind are written between
// BeginStructure and EndStructure.
func (k Kind) IsStructure() bool {
	return k >= KindClass
}

// Descriptor describes the serial shape of a type.
//
// Element indices are zero based and stable: formats use them to look up
// names, annotations and nested descriptors.
type Descriptor interface {
	SerialName() string
	Kind() Kind
	IsNullable() bool

	// Annotations returns the class-level annotations.
	Annotations() []any

	ElementsCount() int
	ElementName(index int) string
	// ElementIndex returns the index of the named element, or -1.
	ElementIndex(name string) int
	ElementDescriptor(index int) Descriptor
	ElementAnnotations(index int) []any
	// IsElementOptional reports whether the element may be absent from
	// encoded input, in which case it keeps its default value.
	IsElementOptional(index int) bool
}

// Element describes one element of a structure descriptor.
type Element struct {
	Name        string
	Descriptor  Descriptor
	Annotations []any
	Optional    bool
}

type descriptor struct {
	name        string
	kind        Kind
	elements    []Element
	annotations []any
	indices     map[string]int
}

// NewDescriptor builds a descriptor with the given elements.
// Element names must be unique.
func NewDescriptor(name string, kind Kind, elements []Element, annotations ...any) Descriptor {
	d := &descriptor{
		name:        name,
		kind:        kind,
		elements:    elements,
		annotations: annotations,
		indices:     make(map[string]int, len(elements)),
	}
	for i, e := range elements {
		if _, dup := d.indices[e.Name]; dup {
			panic(fmt.Sprintf("serial: descriptor %s has duplicate element %q", name, e.Name))
		}
		d.indices[e.Name] = i
	}
	return d
}

// PrimitiveDescriptor returns a descriptor for a primitive kind.
func PrimitiveDescriptor(name string, kind Kind) Descriptor {
	if !kind.IsPrimitive() {
		panic(fmt.Sprintf("serial: %v is not a primitive kind", kind))
	}
	return &descriptor{name: name, kind: kind}
}

// ListDescriptor returns the descriptor of a list of elem values.
func ListDescriptor(elem Descriptor) Descriptor {
	return NewDescriptor("list<"+elem.SerialName()+">", KindList, []Element{
		{Name: "0", Descriptor: elem},
	})
}

// MapDescriptor returns the descriptor of a map, and equally of one map
// entry: element 0 is the key and element 1 the value.
func MapDescriptor(key, value Descriptor) Descriptor {
	return NewDescriptor("map<"+key.SerialName()+","+value.SerialName()+">", KindMap, []Element{
		{Name: "key", Descriptor: key},
		{Name: "value", Descriptor: value},
	})
}

// EnumEntry names one enum constant.
type EnumEntry struct {
	Name        string
	Annotations []any
}

// EnumDescriptor returns an enum descriptor. Entries become elements of
// kind KindObject, in declaration order.
func EnumDescriptor(name string, entries []EnumEntry, annotations ...any) Descriptor {
	elements := make([]Element, len(entries))
	for i, e := range entries {
		elements[i] = Element{
			Name:        e.Name,
			Descriptor:  &descriptor{name: name + "." + e.Name, kind: KindObject},
			Annotations: e.Annotations,
		}
	}
	return NewDescriptor(name, KindEnum, elements, annotations...)
}

func (d *descriptor) SerialName() string { return d.name }

func (d *descriptor) Kind() Kind { return d.kind }

func (d *descriptor) IsNullable() bool { return false }

func (d *descriptor) Annotations() []any { return d.annotations }

func (d *descriptor) ElementsCount() int { return len(d.elements) }

func (d *descriptor) ElementName(i int) string {
	return d.element(i).Name
}

func (d *descriptor) ElementIndex(name string) int {
	if i, ok := d.indices[name]; ok {
		return i
	}
	return -1
}

func (d *descriptor) ElementDescriptor(i int) Descriptor {
	return d.element(i).Descriptor
}

func (d *descriptor) ElementAnnotations(i int) []any {
	return d.element(i).Annotations
}

func (d *descriptor) IsElementOptional(i int) bool {
	return d.element(i).Optional
}

func (d *descriptor) element(i int) *Element {
	if i < 0 || i >= len(d.elements) {
		panic(fmt.Sprintf("serial: element index %d out of range for %s with %d elements", i, d.name, len(d.elements)))
	}
	return &d.elements[i]
}

func (d *descriptor) String() string {
	return d.name + "(" + d.kind.String() + ")"
}

// nullableDescriptor marks a descriptor as accepting nil.
type nullableDescriptor struct {
	Descriptor
}

// NullableDescriptor wraps d so that IsNullable reports true.
func NullableDescriptor(d Descriptor) Descriptor {
	if d.IsNullable() {
		return d
	}
	return nullableDescriptor{d}
}

func (nullableDescriptor) IsNullable() bool { return true }

func (n nullableDescriptor) SerialName() string { return n.Descriptor.SerialName() + "?" }

// Unwrap returns the non-nullable descriptor.
func (n nullableDescriptor) Unwrap() Descriptor { return n.Descriptor }

// Same reports whether a and b describe the same structure, looking through
// nullable wrappers.
func Same(a, b Descriptor) bool {
	return unwrapNullable(a) == unwrapNullable(b)
}

func unwrapNullable(d Descriptor) Descriptor {
	if n, ok := d.(nullableDescriptor); ok {
		return n.Descriptor
	}
	return d
}

// FindAnnotation returns the first annotation of type A.
func FindAnnotation[A any](annotations []any) (A, bool) {
	for _, a := range annotations {
		if v, ok := a.(A); ok {
			return v, true
		}
	}
	var zero A
	return zero, false
}
