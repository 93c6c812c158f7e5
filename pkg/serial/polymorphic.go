package serial

import (
	"fmt"
	"reflect"
	"sort"
)

// Polymorphic values are written as a two-element structure: element 0 is
// the serial name of the concrete subclass, element 1 is the value written
// by that subclass's serializer.
const (
	PolymorphicTypeIndex  = 0
	PolymorphicValueIndex = 1
)

func polymorphicDescriptor(base string, kind Kind, subclasses []Descriptor) Descriptor {
	elements := make([]Element, len(subclasses))
	for i, d := range subclasses {
		elements[i] = Element{Name: d.SerialName(), Descriptor: d}
	}
	value := NewDescriptor(kind.String()+"<"+base+">", KindClass, elements)
	return NewDescriptor(base, kind, []Element{
		{Name: "type", Descriptor: String.Descriptor()},
		{Name: "value", Descriptor: value},
	})
}

// Variant is one subclass of a sealed hierarchy.
type Variant struct {
	typ reflect.Type
	ser Serializer
}

// VariantOf declares that values of Go type T (or *T) are written by s.
func VariantOf[T any](s Serializer) Variant {
	return Variant{typ: reflect.TypeFor[T](), ser: s}
}

// Sealed serializes a closed set of variants.
type Sealed struct {
	desc     Descriptor
	variants []Variant
	byName   map[string]Serializer
}

// SealedOf returns a serializer for the polymorphic base with the given
// variants. Variant serial names must be unique.
func SealedOf(base string, variants ...Variant) *Sealed {
	subclasses := make([]Descriptor, len(variants))
	byName := make(map[string]Serializer, len(variants))
	for i, v := range variants {
		name := v.ser.Descriptor().SerialName()
		if _, dup := byName[name]; dup {
			panic(fmt.Sprintf("serial: sealed %s has duplicate variant %q", base, name))
		}
		byName[name] = v.ser
		subclasses[i] = v.ser.Descriptor()
	}
	return &Sealed{
		desc:     polymorphicDescriptor(base, KindSealed, subclasses),
		variants: variants,
		byName:   byName,
	}
}

func (s *Sealed) Descriptor() Descriptor { return s.desc }

// Variant returns the serializer for a subclass serial name.
func (s *Sealed) Variant(name string) (Serializer, bool) {
	ser, ok := s.byName[name]
	return ser, ok
}

func (s *Sealed) Serialize(e Encoder, v any) error {
	t := concreteType(v)
	for _, variant := range s.variants {
		if variant.typ == t {
			return encodePolymorphic(e, s.desc, variant.ser, v)
		}
	}
	return fmt.Errorf("%w: %T in %s", ErrUnregisteredType, v, s.desc.SerialName())
}

func (s *Sealed) Deserialize(d Decoder) (any, error) {
	return decodePolymorphic(d, s.desc, func(name string) (Serializer, error) {
		if ser, ok := s.byName[name]; ok {
			return ser, nil
		}
		return nil, fmt.Errorf("%w: %q in %s", ErrUnknownSubclass, name, s.desc.SerialName())
	})
}

// Open serializes values of a polymorphic base whose subclasses are
// registered in the coder's Module.
type Open struct {
	desc Descriptor
	base string
}

// OpenOf returns a serializer for the polymorphic base.
func OpenOf(base string) *Open {
	return &Open{desc: polymorphicDescriptor(base, KindOpen, nil), base: base}
}

func (o *Open) Descriptor() Descriptor { return o.desc }

func (o *Open) Serialize(e Encoder, v any) error {
	ser, ok := e.Module().PolymorphicFor(o.base, v)
	if !ok {
		return fmt.Errorf("%w: %T in %s", ErrUnregisteredType, v, o.base)
	}
	return encodePolymorphic(e, o.desc, ser, v)
}

func (o *Open) Deserialize(d Decoder) (any, error) {
	return decodePolymorphic(d, o.desc, func(name string) (Serializer, error) {
		if ser, ok := d.Module().Polymorphic(o.base, name); ok {
			return ser, nil
		}
		return nil, fmt.Errorf("%w: %q in %s", ErrUnknownSubclass, name, o.base)
	})
}

// Choice is a polymorphic value tagged with the serial name of its
// subclass. Choices serializers use it when variants share a Go type, as
// serial.Record values do.
type Choice struct {
	Name  string
	Value any
}

// Choices serializes Choice values over a closed set of variants. Its
// descriptor has the same shape as that of SealedOf.
type Choices struct {
	desc   Descriptor
	byName map[string]Serializer
}

// ChoicesOf returns a serializer for the polymorphic base whose variants
// are told apart by serial name alone. Variant serial names must be unique.
func ChoicesOf(base string, variants ...Serializer) *Choices {
	subclasses := make([]Descriptor, len(variants))
	byName := make(map[string]Serializer, len(variants))
	for i, v := range variants {
		name := v.Descriptor().SerialName()
		if _, dup := byName[name]; dup {
			panic(fmt.Sprintf("serial: choices %s has duplicate variant %q", base, name))
		}
		byName[name] = v
		subclasses[i] = v.Descriptor()
	}
	return &Choices{
		desc:   polymorphicDescriptor(base, KindSealed, subclasses),
		byName: byName,
	}
}

func (c *Choices) Descriptor() Descriptor { return c.desc }

func (c *Choices) Serialize(e Encoder, v any) error {
	var choice Choice
	switch x := v.(type) {
	case Choice:
		choice = x
	case *Choice:
		if x == nil {
			return mismatch(c.desc, v)
		}
		choice = *x
	default:
		return mismatch(c.desc, v)
	}
	ser, ok := c.byName[choice.Name]
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrUnregisteredType, choice.Name, c.desc.SerialName())
	}
	return encodePolymorphic(e, c.desc, ser, choice.Value)
}

func (c *Choices) Deserialize(d Decoder) (any, error) {
	var name string
	v, err := decodePolymorphic(d, c.desc, func(n string) (Serializer, error) {
		ser, ok := c.byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnknownSubclass, n, c.desc.SerialName())
		}
		name = n
		return ser, nil
	})
	if err != nil {
		return nil, err
	}
	return Choice{Name: name, Value: v}, nil
}

// Subclasses returns the subclass descriptors of a polymorphic descriptor:
// the declared variants for sealed hierarchies, the module registrations
// for open ones.
func Subclasses(d Descriptor, m *Module) []Descriptor {
	switch d.Kind() {
	case KindSealed:
		value := d.ElementDescriptor(PolymorphicValueIndex)
		out := make([]Descriptor, value.ElementsCount())
		for i := range out {
			out[i] = value.ElementDescriptor(i)
		}
		return out
	case KindOpen:
		if m == nil {
			return nil
		}
		sers := m.Subclasses(d.SerialName())
		out := make([]Descriptor, len(sers))
		for i, s := range sers {
			out[i] = s.Descriptor()
		}
		return out
	default:
		return nil
	}
}

func encodePolymorphic(e Encoder, d Descriptor, ser Serializer, v any) error {
	c, err := e.BeginStructure(d)
	if err != nil {
		return err
	}
	if err := c.EncodeElement(d, PolymorphicTypeIndex, String, ser.Descriptor().SerialName()); err != nil {
		return err
	}
	if err := c.EncodeElement(d, PolymorphicValueIndex, ser, v); err != nil {
		return err
	}
	return c.EndStructure(d)
}

func decodePolymorphic(d Decoder, desc Descriptor, resolve func(string) (Serializer, error)) (any, error) {
	c, err := d.BeginStructure(desc)
	if err != nil {
		return nil, err
	}
	var (
		name    string
		hasName bool
		value   any
	)
	for {
		i, err := c.DecodeElementIndex(desc)
		if err != nil {
			return nil, err
		}
		switch i {
		case DecodeDone:
			if err := c.EndStructure(desc); err != nil {
				return nil, err
			}
			return value, nil
		case PolymorphicTypeIndex:
			v, err := c.DecodeElement(desc, i, String, nil)
			if err != nil {
				return nil, err
			}
			name, hasName = v.(string), true
		case PolymorphicValueIndex:
			if !hasName {
				return nil, fmt.Errorf("%w in %s", ErrMissingTypeToken, desc.SerialName())
			}
			ser, err := resolve(name)
			if err != nil {
				return nil, err
			}
			if value, err = c.DecodeElement(desc, i, ser, nil); err != nil {
				return nil, err
			}
		default:
			return nil, unexpectedIndex(desc, i)
		}
	}
}

func concreteType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func sortByName(sers []Serializer) {
	sort.Slice(sers, func(i, j int) bool {
		return sers[i].Descriptor().SerialName() < sers[j].Descriptor().SerialName()
	})
}
