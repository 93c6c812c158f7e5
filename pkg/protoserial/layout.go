package protoserial

import (
	"fmt"

	"github.com/blockberries/protoserial/pkg/serial"
)

// flatLayoutLimit bounds the element count for which field numbers are
// resolved through a slice rather than a map.
const flatLayoutLimit = 32

// messageLayout is the wire layout of a message descriptor: the tag of
// every element and the reverse lookup from field number to element index.
type messageLayout struct {
	tags []ProtoDesc

	// flat is indexed by field number and holds -1 for unused numbers. It is
	// nil when the numbers are sparse, in which case sparse is used.
	flat   []int
	sparse map[int]int

	// unknown is the index of the ProtoUnknownFields element, or -1. It has
	// no field number of its own.
	unknown int

	// open is set when a oneof resolves its variants from the module, whose
	// registrations may still change.
	open bool
}

func buildLayout(d serial.Descriptor, m *serial.Module) (*messageLayout, error) {
	n := d.ElementsCount()
	l := &messageLayout{tags: make([]ProtoDesc, n), unknown: -1}
	numbers := make(map[int]int, n)

	add := func(number, i int) error {
		if prev, dup := numbers[number]; dup {
			return fmt.Errorf("%w: %d is used by both %s and %s in %s",
				ErrDuplicateFieldNumber, number, d.ElementName(prev), d.ElementName(i), d.SerialName())
		}
		numbers[number] = i
		return nil
	}

	for i := 0; i < n; i++ {
		if isUnknownFields(d, i) {
			if l.unknown >= 0 {
				return nil, fmt.Errorf("%w: %s has more than one unknown fields element (%s, %s)",
					ErrMisuse, d.SerialName(), d.ElementName(l.unknown), d.ElementName(i))
			}
			l.unknown = i
			continue
		}
		tag, err := extractParameters(d, i)
		if err != nil {
			return nil, err
		}
		l.tags[i] = tag
		if !tag.OneOf {
			if err := add(tag.Number, i); err != nil {
				return nil, err
			}
			continue
		}
		oneof := d.ElementDescriptor(i)
		if oneof.Kind() == serial.KindOpen {
			l.open = true
		}
		for _, variant := range serial.Subclasses(oneof, m) {
			number, err := variantNumber(variant)
			if err != nil {
				return nil, err
			}
			if err := add(number, i); err != nil {
				return nil, err
			}
		}
	}

	if n < flatLayoutLimit && maxKey(numbers) <= n {
		l.flat = make([]int, n+1)
		for i := range l.flat {
			l.flat[i] = -1
		}
		for number, i := range numbers {
			l.flat[number] = i
		}
	} else {
		l.sparse = numbers
	}
	return l, nil
}

// index returns the element index for a field number, or -1.
func (l *messageLayout) index(number int) int {
	if l.flat != nil {
		if number < 0 || number >= len(l.flat) {
			return -1
		}
		return l.flat[number]
	}
	if i, ok := l.sparse[number]; ok {
		return i
	}
	return -1
}

func maxKey(m map[int]int) int {
	highest := 0
	for k := range m {
		highest = max(highest, k)
	}
	return highest
}

// layout returns the cached layout of d.
func (f *Format) layout(d serial.Descriptor) (*messageLayout, error) {
	if cached, ok := f.layouts.Load(d); ok {
		return cached.(*messageLayout), nil
	}
	l, err := buildLayout(d, f.module())
	if err != nil {
		return nil, err
	}
	if l.open {
		return l, nil
	}
	actual, _ := f.layouts.LoadOrStore(d, l)
	return actual.(*messageLayout), nil
}

// hasLayout reports whether values of kind k are written as messages.
func hasLayout(k serial.Kind) bool {
	switch k {
	case serial.KindClass, serial.KindObject, serial.KindSealed, serial.KindOpen:
		return true
	default:
		return false
	}
}
