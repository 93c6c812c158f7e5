package serial

import (
	"cmp"
	"fmt"
	"slices"
)

// List serializes []E values.
type List[E any] struct {
	desc Descriptor
	elem Serializer
}

// ListOf returns a serializer for []E with elements written by elem.
func ListOf[E any](elem Serializer) *List[E] {
	return &List[E]{desc: ListDescriptor(elem.Descriptor()), elem: elem}
}

func (l *List[E]) Descriptor() Descriptor { return l.desc }

// Element returns the element serializer.
func (l *List[E]) Element() Serializer { return l.elem }

func (l *List[E]) Serialize(e Encoder, v any) error {
	items, ok := v.([]E)
	if !ok {
		return mismatch(l.desc, v)
	}
	c, err := e.BeginCollection(l.desc, len(items))
	if err != nil {
		return err
	}
	for i, item := range items {
		if err := c.EncodeElement(l.desc, i, l.elem, item); err != nil {
			return err
		}
	}
	return c.EndStructure(l.desc)
}

func (l *List[E]) Deserialize(d Decoder) (any, error) {
	return l.Merge(d, nil)
}

// Merge appends the decoded elements to previous.
func (l *List[E]) Merge(d Decoder, previous any) (any, error) {
	var items []E
	if previous != nil {
		prev, ok := previous.([]E)
		if !ok {
			return nil, mismatch(l.desc, previous)
		}
		items = prev
	}

	c, err := d.BeginStructure(l.desc)
	if err != nil {
		return nil, err
	}
	size, err := c.DecodeCollectionSize(l.desc)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		items = slices.Grow(items, min(size, maxPreallocated))
	}
	for {
		i, err := c.DecodeElementIndex(l.desc)
		if err != nil {
			return nil, err
		}
		if i == DecodeDone {
			break
		}
		v, err := c.DecodeElement(l.desc, i, l.elem, nil)
		if err != nil {
			return nil, err
		}
		item, err := cast[E](l.elem.Descriptor(), v)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := c.EndStructure(l.desc); err != nil {
		return nil, err
	}
	return items, nil
}

// maxPreallocated caps the capacity reserved from a decoded collection
// size; longer lists grow as elements arrive.
const maxPreallocated = 4096

// MapEntry is one key/value pair of a map.
type MapEntry[K comparable, V any] struct {
	Key   K
	Value V
}

type mapEntry[K comparable, V any] struct {
	desc  Descriptor
	key   Serializer
	value Serializer
}

func (s *mapEntry[K, V]) Descriptor() Descriptor { return s.desc }

func (s *mapEntry[K, V]) Serialize(e Encoder, v any) error {
	entry, ok := v.(MapEntry[K, V])
	if !ok {
		return mismatch(s.desc, v)
	}
	c, err := e.BeginStructure(s.desc)
	if err != nil {
		return err
	}
	if err := c.EncodeElement(s.desc, 0, s.key, entry.Key); err != nil {
		return err
	}
	if err := c.EncodeElement(s.desc, 1, s.value, entry.Value); err != nil {
		return err
	}
	return c.EndStructure(s.desc)
}

func (s *mapEntry[K, V]) Deserialize(d Decoder) (any, error) {
	var entry MapEntry[K, V]
	c, err := d.BeginStructure(s.desc)
	if err != nil {
		return nil, err
	}
	for {
		i, err := c.DecodeElementIndex(s.desc)
		if err != nil {
			return nil, err
		}
		switch i {
		case DecodeDone:
			if err := c.EndStructure(s.desc); err != nil {
				return nil, err
			}
			return entry, nil
		case 0:
			v, err := c.DecodeElement(s.desc, 0, s.key, nil)
			if err != nil {
				return nil, err
			}
			if entry.Key, err = cast[K](s.key.Descriptor(), v); err != nil {
				return nil, err
			}
		case 1:
			v, err := c.DecodeElement(s.desc, 1, s.value, nil)
			if err != nil {
				return nil, err
			}
			if entry.Value, err = cast[V](s.value.Descriptor(), v); err != nil {
				return nil, err
			}
		default:
			return nil, unexpectedIndex(s.desc, i)
		}
	}
}

// Map serializes map[K]V values as a collection of key/value entries.
// Entries are written in ascending key order so output is deterministic.
type Map[K comparable, V any] struct {
	desc    Descriptor
	key     Serializer
	value   Serializer
	entries *List[MapEntry[K, V]]
}

// MapOf returns a serializer for map[K]V.
func MapOf[K comparable, V any](key, value Serializer) *Map[K, V] {
	desc := MapDescriptor(key.Descriptor(), value.Descriptor())
	entry := &mapEntry[K, V]{desc: desc, key: key, value: value}
	return &Map[K, V]{
		desc:    desc,
		key:     key,
		value:   value,
		entries: ListOf[MapEntry[K, V]](entry),
	}
}

func (m *Map[K, V]) Descriptor() Descriptor { return m.desc }

// Key returns the key serializer.
func (m *Map[K, V]) Key() Serializer { return m.key }

// Value returns the value serializer.
func (m *Map[K, V]) Value() Serializer { return m.value }

func (m *Map[K, V]) Serialize(e Encoder, v any) error {
	values, ok := v.(map[K]V)
	if !ok {
		return mismatch(m.desc, v)
	}
	entries := make([]MapEntry[K, V], 0, len(values))
	for k, val := range values {
		entries = append(entries, MapEntry[K, V]{Key: k, Value: val})
	}
	slices.SortFunc(entries, func(a, b MapEntry[K, V]) int {
		return compareKeys(a.Key, b.Key)
	})
	return m.entries.Serialize(e, entries)
}

func (m *Map[K, V]) Deserialize(d Decoder) (any, error) {
	return m.Merge(d, nil)
}

// Merge adds the decoded entries to previous. Later entries replace
// earlier ones with the same key.
func (m *Map[K, V]) Merge(d Decoder, previous any) (any, error) {
	var values map[K]V
	if previous != nil {
		prev, ok := previous.(map[K]V)
		if !ok {
			return nil, mismatch(m.desc, previous)
		}
		values = prev
	}
	decoded, err := m.entries.Deserialize(d)
	if err != nil {
		return nil, err
	}
	entries := decoded.([]MapEntry[K, V])
	if values == nil && len(entries) > 0 {
		values = make(map[K]V, len(entries))
	}
	for _, entry := range entries {
		values[entry.Key] = entry.Value
	}
	return values, nil
}

func compareKeys[K comparable](a, b K) int {
	switch x := any(a).(type) {
	case string:
		return cmp.Compare(x, any(b).(string))
	case bool:
		y := any(b).(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int8:
		return cmp.Compare(x, any(b).(int8))
	case int16:
		return cmp.Compare(x, any(b).(int16))
	case int32:
		return cmp.Compare(x, any(b).(int32))
	case int64:
		return cmp.Compare(x, any(b).(int64))
	case int:
		return cmp.Compare(x, any(b).(int))
	case uint32:
		return cmp.Compare(x, any(b).(uint32))
	case uint64:
		return cmp.Compare(x, any(b).(uint64))
	case float32:
		return cmp.Compare(x, any(b).(float32))
	case float64:
		return cmp.Compare(x, any(b).(float64))
	default:
		return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func cast[T any](d Descriptor, v any) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, mismatch(d, v)
	}
	return t, nil
}
