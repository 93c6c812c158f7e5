package serial

import (
	"fmt"
	"slices"
)

// The tree format stores values as nested Go values so serializers can be
// tested without a wire format. Structures and collections become node
// maps keyed by element index.

type node map[int]any

type enumIndex int

type treeEncoder struct {
	module   *Module
	defaults bool
	out      any
}

func encodeTree(s Serializer, v any, m *Module) (any, error) {
	e := &treeEncoder{module: m}
	if err := s.Serialize(e, v); err != nil {
		return nil, err
	}
	return e.out, nil
}

func (e *treeEncoder) Module() *Module { return e.module }

func (e *treeEncoder) set(v any) error { e.out = v; return nil }

func (e *treeEncoder) EncodeBool(v bool) error       { return e.set(v) }
func (e *treeEncoder) EncodeInt8(v int8) error       { return e.set(v) }
func (e *treeEncoder) EncodeInt16(v int16) error     { return e.set(v) }
func (e *treeEncoder) EncodeInt32(v int32) error     { return e.set(v) }
func (e *treeEncoder) EncodeInt64(v int64) error     { return e.set(v) }
func (e *treeEncoder) EncodeUint32(v uint32) error   { return e.set(v) }
func (e *treeEncoder) EncodeUint64(v uint64) error   { return e.set(v) }
func (e *treeEncoder) EncodeFloat32(v float32) error { return e.set(v) }
func (e *treeEncoder) EncodeFloat64(v float64) error { return e.set(v) }
func (e *treeEncoder) EncodeRune(v rune) error       { return e.set(v) }
func (e *treeEncoder) EncodeString(v string) error   { return e.set(v) }
func (e *treeEncoder) EncodeBytes(v []byte) error    { return e.set(v) }
func (e *treeEncoder) EncodeNull() error             { return e.set(nil) }

func (e *treeEncoder) EncodeEnum(_ Descriptor, index int) error { return e.set(enumIndex(index)) }

func (e *treeEncoder) EncodeSerializable(s Serializer, v any) error { return s.Serialize(e, v) }

func (e *treeEncoder) BeginStructure(Descriptor) (CompositeEncoder, error) {
	n := node{}
	e.out = n
	return &treeComposite{enc: e, node: n}, nil
}

func (e *treeEncoder) BeginCollection(d Descriptor, _ int) (CompositeEncoder, error) {
	return e.BeginStructure(d)
}

type treeComposite struct {
	enc  *treeEncoder
	node node
}

func (c *treeComposite) EncodeElement(_ Descriptor, i int, s Serializer, v any) error {
	sub := &treeEncoder{module: c.enc.module, defaults: c.enc.defaults}
	if err := s.Serialize(sub, v); err != nil {
		return err
	}
	c.node[i] = sub.out
	return nil
}

func (c *treeComposite) EncodeNullableElement(d Descriptor, i int, s Serializer, v any) error {
	if IsNil(v) {
		c.node[i] = nil
		return nil
	}
	return c.EncodeElement(d, i, s, v)
}

func (c *treeComposite) ShouldEncodeElementDefault(Descriptor, int) bool { return c.enc.defaults }

func (c *treeComposite) EndStructure(Descriptor) error { return nil }

type treeDecoder struct {
	module *Module
	in     any
}

func decodeTree(s Serializer, v any, m *Module) (any, error) {
	return s.Deserialize(&treeDecoder{module: m, in: v})
}

func take[T any](d *treeDecoder) (T, error) {
	v, ok := d.in.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("tree holds %T, want %T", d.in, zero)
	}
	return v, nil
}

func (d *treeDecoder) Module() *Module           { return d.module }
func (d *treeDecoder) DecodeNotNullMark() bool   { return d.in != nil }
func (d *treeDecoder) DecodeNull() error         { return nil }
func (d *treeDecoder) DecodeBool() (bool, error) { return take[bool](d) }

func (d *treeDecoder) DecodeInt8() (int8, error)       { return take[int8](d) }
func (d *treeDecoder) DecodeInt16() (int16, error)     { return take[int16](d) }
func (d *treeDecoder) DecodeInt32() (int32, error)     { return take[int32](d) }
func (d *treeDecoder) DecodeInt64() (int64, error)     { return take[int64](d) }
func (d *treeDecoder) DecodeUint32() (uint32, error)   { return take[uint32](d) }
func (d *treeDecoder) DecodeUint64() (uint64, error)   { return take[uint64](d) }
func (d *treeDecoder) DecodeFloat32() (float32, error) { return take[float32](d) }
func (d *treeDecoder) DecodeFloat64() (float64, error) { return take[float64](d) }
func (d *treeDecoder) DecodeRune() (rune, error)       { return take[rune](d) }
func (d *treeDecoder) DecodeString() (string, error)   { return take[string](d) }
func (d *treeDecoder) DecodeBytes() ([]byte, error)    { return take[[]byte](d) }

func (d *treeDecoder) DecodeEnum(Descriptor) (int, error) {
	i, err := take[enumIndex](d)
	return int(i), err
}

func (d *treeDecoder) DecodeSerializable(s Serializer) (any, error) { return s.Deserialize(d) }

func (d *treeDecoder) BeginStructure(Descriptor) (CompositeDecoder, error) {
	n, err := take[node](d)
	if err != nil {
		return nil, err
	}
	keys := make([]int, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return &treeElements{module: d.module, node: n, keys: keys}, nil
}

type treeElements struct {
	module *Module
	node   node
	keys   []int
}

func (c *treeElements) DecodeElementIndex(Descriptor) (int, error) {
	if len(c.keys) == 0 {
		return DecodeDone, nil
	}
	i := c.keys[0]
	c.keys = c.keys[1:]
	return i, nil
}

func (c *treeElements) DecodeCollectionSize(Descriptor) (int, error) { return len(c.node), nil }

func (c *treeElements) DecodeElement(_ Descriptor, i int, s Serializer, previous any) (any, error) {
	sub := &treeDecoder{module: c.module, in: c.node[i]}
	if m, ok := s.(Merger); ok && previous != nil {
		return m.Merge(sub, previous)
	}
	return s.Deserialize(sub)
}

func (c *treeElements) DecodeNullableElement(d Descriptor, i int, s Serializer, previous any) (any, error) {
	return c.DecodeElement(d, i, s, previous)
}

func (c *treeElements) EndStructure(Descriptor) error { return nil }
