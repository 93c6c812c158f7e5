package schema

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/serial"
)

// Coerce converts a generic value, as produced by a YAML or JSON decoder,
// into the record the serializer of the named message expects. Numbers are
// range-checked against their field types, enums may be given by name or
// number and bytes are base64 strings.
//
// Absent repeated and map fields become empty; absent optional scalars
// take their zero value. An absent required scalar is an error.
func Coerce(s *Schema, message string, v any) (serial.Record, error) {
	m := s.Message(message)
	if m == nil {
		return nil, fmt.Errorf("schema: unknown message %q", message)
	}
	c := coercer{schema: s}
	return c.message(m, v, message)
}

type coercer struct {
	schema *Schema
}

func (c coercer) message(m *Message, v any, path string) (serial.Record, error) {
	in, err := stringMap(v, path)
	if err != nil {
		return nil, err
	}
	for key := range in {
		if m.Field(key) == nil {
			return nil, fmt.Errorf("%s: unknown field %q of %s", path, key, m.Name)
		}
	}

	out := make(serial.Record, len(m.Fields))
	for _, f := range m.Fields {
		fp := path + "." + f.Name
		raw, present := in[f.Name]
		if !present || raw == nil {
			zero, err := c.absent(f, fp, present)
			if err != nil {
				return nil, err
			}
			if zero != nil {
				out[f.Name] = zero
			}
			continue
		}
		val, err := c.field(f, raw, fp)
		if err != nil {
			return nil, err
		}
		out[f.Name] = val
	}
	return out, nil
}

// absent returns the value of a field missing from the input, or nil to
// leave it out of the record.
func (c coercer) absent(f *Field, path string, null bool) (any, error) {
	switch {
	case f.UnknownFields, len(f.OneOf) > 0, f.Nullable:
		return nil, nil
	case f.Map != nil:
		return map[any]any{}, nil
	case f.Repeated:
		return []any{}, nil
	case c.schema.Message(f.Type) != nil:
		return nil, nil
	case !f.Optional && null:
		return nil, fmt.Errorf("%s: null for non-nullable field", path)
	case !f.Optional:
		return nil, fmt.Errorf("%s: missing required field", path)
	}
	if e := c.schema.Enum(f.Type); e != nil {
		return e.Values[0].Name, nil
	}
	return zeroScalar(f.Type), nil
}

func (c coercer) field(f *Field, v any, path string) (any, error) {
	switch {
	case f.UnknownFields:
		return unknownFields(v, path)

	case len(f.OneOf) > 0:
		in, err := stringMap(v, path)
		if err != nil {
			return nil, err
		}
		if len(in) != 1 {
			return nil, fmt.Errorf("%s: oneof needs exactly one variant, got %d", path, len(in))
		}
		for name, raw := range in {
			for _, variant := range f.OneOf {
				if variant.Name != name {
					continue
				}
				val, err := c.value(variant.Type, raw, path+"."+name)
				if err != nil {
					return nil, err
				}
				return serial.Choice{Name: name, Value: serial.Record{VariantValue: val}}, nil
			}
			return nil, fmt.Errorf("%s: unknown oneof variant %q", path, name)
		}

	case f.Map != nil:
		in, ok := v.(map[string]any)
		entries := make(map[any]any)
		if ok {
			for k, raw := range in {
				if err := c.entry(f.Map, k, raw, path, entries); err != nil {
					return nil, err
				}
			}
			return entries, nil
		}
		generic, ok := v.(map[any]any)
		if !ok {
			return nil, fmt.Errorf("%s: want a mapping, got %T", path, v)
		}
		for k, raw := range generic {
			if err := c.entry(f.Map, k, raw, path, entries); err != nil {
				return nil, err
			}
		}
		return entries, nil

	case f.Repeated:
		in, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: want a sequence, got %T", path, v)
		}
		out := make([]any, len(in))
		for i, raw := range in {
			val, err := c.value(f.Type, raw, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	}
	return c.value(f.Type, v, path)
}

func (c coercer) entry(mt *MapType, k, raw any, path string, out map[any]any) error {
	ep := fmt.Sprintf("%s[%v]", path, k)
	// YAML keeps numeric-looking keys as strings only when quoted.
	if s, ok := k.(string); ok && mt.Key != "string" {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			k = int(parsed)
		} else if b, err := strconv.ParseBool(s); err == nil && mt.Key == "bool" {
			k = b
		}
	}
	key, err := c.value(mt.Key, k, ep)
	if err != nil {
		return err
	}
	val, err := c.value(mt.Value, raw, ep)
	if err != nil {
		return err
	}
	out[key] = val
	return nil
}

func (c coercer) value(typ string, v any, path string) (any, error) {
	if m := c.schema.Message(typ); m != nil {
		return c.message(m, v, path)
	}
	if e := c.schema.Enum(typ); e != nil {
		return enumValue(e, v, path)
	}
	return c.scalar(typ, v, path)
}

func enumValue(e *Enum, v any, path string) (any, error) {
	switch x := v.(type) {
	case string:
		if e.Value(x) == nil {
			return nil, fmt.Errorf("%s: %q is not a value of %s", path, x, e.Name)
		}
		return x, nil
	case int, int32, int64, float64:
		n, err := integer(x, math.MinInt32, math.MaxInt32, path)
		if err != nil {
			return nil, err
		}
		if val := e.ValueByNumber(int(n)); val != nil {
			return val.Name, nil
		}
		return nil, fmt.Errorf("%s: %d is not a value of %s", path, n, e.Name)
	default:
		return nil, fmt.Errorf("%s: want a name or number of %s, got %T", path, e.Name, v)
	}
}

func (c coercer) scalar(typ string, v any, path string) (any, error) {
	st := scalarTypes[typ]
	switch st.kind() {
	case serial.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: want a bool, got %T", path, v)
		}
		return b, nil
	case serial.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: want a string, got %T", path, v)
		}
		return s, nil
	case serial.KindBytes:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			b, err := base64.StdEncoding.DecodeString(x)
			if err != nil {
				return nil, fmt.Errorf("%s: bytes must be base64: %w", path, err)
			}
			return b, nil
		}
		return nil, fmt.Errorf("%s: want base64 bytes, got %T", path, v)
	case serial.KindRune:
		if s, ok := v.(string); ok {
			r, size := utf8.DecodeRuneInString(s)
			if size == 0 || size != len(s) {
				return nil, fmt.Errorf("%s: want a single character, got %q", path, s)
			}
			return r, nil
		}
		n, err := integer(v, math.MinInt32, math.MaxInt32, path)
		return rune(n), err
	case serial.KindFloat32:
		f, err := float(v, path)
		return float32(f), err
	case serial.KindFloat64:
		return float(v, path)
	case serial.KindInt8:
		n, err := integer(v, math.MinInt8, math.MaxInt8, path)
		return int8(n), err
	case serial.KindInt16:
		n, err := integer(v, math.MinInt16, math.MaxInt16, path)
		return int16(n), err
	case serial.KindInt32:
		n, err := integer(v, math.MinInt32, math.MaxInt32, path)
		return int32(n), err
	case serial.KindInt64:
		return integer(v, math.MinInt64, math.MaxInt64, path)
	case serial.KindUint32:
		n, err := unsigned(v, math.MaxUint32, path)
		return uint32(n), err
	case serial.KindUint64:
		return unsigned(v, math.MaxUint64, path)
	}
	return nil, fmt.Errorf("%s: unknown type %q", path, typ)
}

// zeroScalar returns the zero value of a scalar type.
func zeroScalar(typ string) any {
	switch scalarTypes[typ].kind() {
	case serial.KindBool:
		return false
	case serial.KindInt8:
		return int8(0)
	case serial.KindInt16:
		return int16(0)
	case serial.KindInt32:
		return int32(0)
	case serial.KindInt64:
		return int64(0)
	case serial.KindUint32:
		return uint32(0)
	case serial.KindUint64:
		return uint64(0)
	case serial.KindFloat32:
		return float32(0)
	case serial.KindFloat64:
		return float64(0)
	case serial.KindRune:
		return rune(0)
	case serial.KindBytes:
		return []byte{}
	default:
		return ""
	}
}

func integer(v any, lo, hi int64, path string) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%s: %d out of range", path, x)
		}
		n = int64(x)
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("%s: %v is not an integer", path, x)
		}
		n = int64(x)
	default:
		return 0, fmt.Errorf("%s: want an integer, got %T", path, v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s: %d out of range [%d, %d]", path, n, lo, hi)
	}
	return n, nil
}

func unsigned(v any, hi uint64, path string) (uint64, error) {
	var n uint64
	if x, ok := v.(uint64); ok {
		n = x
	} else {
		signed, err := integer(v, 0, math.MaxInt64, path)
		if err != nil {
			return 0, err
		}
		n = uint64(signed)
	}
	if n > hi {
		return 0, fmt.Errorf("%s: %d out of range [0, %d]", path, n, hi)
	}
	return n, nil
}

func float(v any, path string) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	n, err := integer(v, math.MinInt64, math.MaxInt64, path)
	if err != nil {
		return 0, fmt.Errorf("%s: want a number, got %T", path, v)
	}
	return float64(n), nil
}

func stringMap(v any, path string) (map[string]any, error) {
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case serial.Record:
		return x, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			s, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%s: field names must be strings, got %T", path, k)
			}
			out[s] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: want a mapping, got %T", path, v)
}

// unknownFields reads a list of {number, wire_type, data} mappings.
func unknownFields(v any, path string) (protoserial.ProtoMessage, error) {
	if msg, ok := v.(protoserial.ProtoMessage); ok {
		return msg, nil
	}
	items, ok := v.([]any)
	if !ok {
		return protoserial.ProtoMessage{}, fmt.Errorf("%s: want a sequence of unknown fields, got %T", path, v)
	}
	var msg protoserial.ProtoMessage
	for i, item := range items {
		ip := fmt.Sprintf("%s[%d]", path, i)
		in, err := stringMap(item, ip)
		if err != nil {
			return protoserial.ProtoMessage{}, err
		}
		number, err := integer(in["number"], 1, 1<<29-1, ip+".number")
		if err != nil {
			return protoserial.ProtoMessage{}, err
		}
		wt, err := integer(in["wire_type"], 0, 5, ip+".wire_type")
		if err != nil {
			return protoserial.ProtoMessage{}, err
		}
		if !protoserial.WireType(wt).IsValid() {
			return protoserial.ProtoMessage{}, fmt.Errorf("%s.wire_type: unsupported wire type %d", ip, wt)
		}
		data, _ := in["data"].(string)
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return protoserial.ProtoMessage{}, fmt.Errorf("%s.data: %w", ip, err)
		}
		msg.Fields = append(msg.Fields, protoserial.ProtoField{
			Number:   int(number),
			WireType: protoserial.WireType(wt),
			Data:     raw,
		})
	}
	return msg, nil
}

// Plain converts a decoded record into generic values suitable for YAML
// or JSON output: records become string-keyed maps, oneofs a single-key
// map of the variant, bytes base64 strings and unknown fields a list of
// {number, wire_type, data} mappings.
func Plain(v any) any {
	switch x := v.(type) {
	case serial.Record:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Plain(val)
		}
		return out
	case serial.Choice:
		val := x.Value
		if rec, ok := val.(serial.Record); ok {
			val = rec[VariantValue]
		}
		return map[string]any{x.Name: Plain(val)}
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Plain(val)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(x))
		for k, val := range x {
			out[k] = Plain(val)
		}
		return out
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case protoserial.ProtoMessage:
		out := make([]any, len(x.Fields))
		for i, f := range x.Fields {
			out[i] = map[string]any{
				"number":    f.Number,
				"wire_type": int(f.WireType),
				"data":      base64.StdEncoding.EncodeToString(f.Data),
			}
		}
		return out
	}
	return v
}
