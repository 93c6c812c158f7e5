package schema

import (
	"fmt"
	"slices"

	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/serial"
)

// BreakingChangeType indicates the kind of breaking change detected.
type BreakingChangeType int

const (
	// FieldNumberReused indicates a field number now names a different field
	// with an incompatible encoding.
	FieldNumberReused BreakingChangeType = iota
	// FieldTypeChanged indicates a field's encoding changed.
	FieldTypeChanged
	// RequiredFieldAdded indicates a required field was added or an
	// optional one made required.
	RequiredFieldAdded
	// RequiredFieldRemoved indicates a required field was removed.
	RequiredFieldRemoved
	// EnumValueReused indicates an enum value number was reused with a different name.
	EnumValueReused
	// EnumValueRemoved indicates an enum value was removed.
	EnumValueRemoved
	// MessageRemoved indicates a message was removed.
	MessageRemoved
	// EnumRemoved indicates an enum was removed.
	EnumRemoved
)

func (t BreakingChangeType) String() string {
	switch t {
	case FieldNumberReused:
		return "field number reused"
	case FieldTypeChanged:
		return "field type changed"
	case RequiredFieldAdded:
		return "required field added"
	case RequiredFieldRemoved:
		return "required field removed"
	case EnumValueReused:
		return "enum value number reused"
	case EnumValueRemoved:
		return "enum value removed"
	case MessageRemoved:
		return "message removed"
	case EnumRemoved:
		return "enum removed"
	default:
		return "unknown breaking change"
	}
}

// BreakingChange represents an incompatible schema change.
type BreakingChange struct {
	Type     BreakingChangeType
	Message  string
	Location string
}

func (b BreakingChange) Error() string {
	if b.Location != "" {
		return fmt.Sprintf("%s: %s at %s", b.Type, b.Message, b.Location)
	}
	return fmt.Sprintf("%s: %s", b.Type, b.Message)
}

// CompatibilityReport contains the results of a schema compatibility check.
type CompatibilityReport struct {
	Breaking []BreakingChange
	Warnings []string
}

// IsCompatible returns true if no breaking changes were detected.
func (r *CompatibilityReport) IsCompatible() bool {
	return len(r.Breaking) == 0
}

func (r *CompatibilityReport) breaking(t BreakingChangeType, location, format string, args ...any) {
	r.Breaking = append(r.Breaking, BreakingChange{Type: t, Message: fmt.Sprintf(format, args...), Location: location})
}

func (r *CompatibilityReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// CheckCompatibility reports whether data written with oldSchema can be
// read with newSchema and the other way round. Messages and fields are
// matched by name and field number; findings are sorted by location.
func CheckCompatibility(oldSchema, newSchema *Schema) *CompatibilityReport {
	report := &CompatibilityReport{}
	c := compat{old: oldSchema, new: newSchema, report: report}

	for _, oldMsg := range oldSchema.Messages {
		newMsg := newSchema.Message(oldMsg.Name)
		if newMsg == nil {
			report.breaking(MessageRemoved, oldMsg.Name, "message %q was removed", oldMsg.Name)
			continue
		}
		c.message(oldMsg, newMsg)
	}
	for _, oldEnum := range oldSchema.Enums {
		newEnum := newSchema.Enum(oldEnum.Name)
		if newEnum == nil {
			report.breaking(EnumRemoved, oldEnum.Name, "enum %q was removed", oldEnum.Name)
			continue
		}
		checkEnumCompat(oldEnum, newEnum, report)
	}

	slices.SortStableFunc(report.Breaking, func(a, b BreakingChange) int {
		switch {
		case a.Location < b.Location:
			return -1
		case a.Location > b.Location:
			return 1
		}
		return 0
	})
	return report
}

type compat struct {
	old, new *Schema
	report   *CompatibilityReport
}

// slot is what one field number carries: a plain field or one oneof
// variant.
type slot struct {
	name     string
	field    *Field
	typ      string
	integer  string
	required bool
}

func slots(s *Schema, m *Message) map[int]slot {
	out := make(map[int]slot)
	for i, f := range m.Fields {
		switch {
		case f.UnknownFields:
		case len(f.OneOf) > 0:
			for _, v := range f.OneOf {
				out[v.Number] = slot{name: f.Name + "." + v.Name, field: f, typ: v.Type, integer: v.Integer}
			}
		default:
			out[m.FieldNumber(i)] = slot{
				name:     f.Name,
				field:    f,
				typ:      f.Type,
				integer:  f.Integer,
				required: isRequired(s, f),
			}
		}
	}
	return out
}

// isRequired reports whether decoding fails when the field is absent.
// Message fields are always nullable.
func isRequired(s *Schema, f *Field) bool {
	if f.Optional || f.Nullable || f.Repeated || f.Map != nil {
		return false
	}
	return s.Message(f.Type) == nil
}

func (c compat) message(oldMsg, newMsg *Message) {
	oldSlots, newSlots := slots(c.old, oldMsg), slots(c.new, newMsg)

	numbers := make([]int, 0, len(oldSlots))
	for n := range oldSlots {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	for _, n := range numbers {
		o := oldSlots[n]
		loc := fmt.Sprintf("%s.%s", oldMsg.Name, o.name)
		nw, ok := newSlots[n]
		if !ok {
			if o.required {
				c.report.breaking(RequiredFieldRemoved, loc, "required field %q (#%d) was removed", o.name, n)
			} else {
				c.report.warn("field %s (#%d) was removed", loc, n)
			}
			continue
		}

		oldEnc, newEnc := c.encoding(c.old, o), c.encoding(c.new, nw)
		switch {
		case oldEnc != newEnc && o.name != nw.name:
			c.report.breaking(FieldNumberReused, loc, "field number %d changed from %q (%s) to %q (%s)", n, o.name, oldEnc, nw.name, newEnc)
		case oldEnc != newEnc:
			c.report.breaking(FieldTypeChanged, loc, "field %q changed from %s to %s", o.name, oldEnc, newEnc)
		case o.name != nw.name:
			c.report.warn("field %s (#%d) was renamed to %q", loc, n, nw.name)
		}
		if !o.required && nw.required {
			c.report.breaking(RequiredFieldAdded, loc, "field %q became required", nw.name)
		}
		if o.field.Repeated != nw.field.Repeated {
			c.report.warn("field %s (#%d) changed between singular and repeated", loc, n)
		}
	}

	for n, nw := range newSlots {
		if _, ok := oldSlots[n]; !ok && nw.required {
			c.report.breaking(RequiredFieldAdded, fmt.Sprintf("%s.%s", newMsg.Name, nw.name), "required field %q (#%d) was added", nw.name, n)
		}
	}
}

// encoding names how a slot's values look on the wire. Slots with the same
// encoding can read each other's data.
func (c compat) encoding(s *Schema, sl slot) string {
	f := sl.field
	if f.Map != nil {
		return fmt.Sprintf("map<%s,%s>", c.valueEncoding(s, f.Map.Key, f.Integer), c.valueEncoding(s, f.Map.Value, f.Integer))
	}
	return c.valueEncoding(s, sl.typ, sl.integer)
}

func (c compat) valueEncoding(s *Schema, typ, integer string) string {
	if s.Enum(typ) != nil {
		return "varint"
	}
	if s.Message(typ) != nil {
		return "message " + typ
	}
	st, ok := scalarTypes[typ]
	if !ok {
		return "unknown " + typ
	}
	switch st.kind() {
	case serial.KindString, serial.KindBytes:
		return "len"
	case serial.KindFloat32:
		return "i32"
	case serial.KindFloat64:
		return "i64"
	case serial.KindBool, serial.KindRune:
		return "varint"
	}
	switch IntegerEncoding(typ, integer) {
	case protoserial.IntegerSigned:
		return "zigzag"
	case protoserial.IntegerFixed:
		if k := st.kind(); k == serial.KindInt64 || k == serial.KindUint64 {
			return "i64"
		}
		return "i32"
	}
	return "varint"
}

func checkEnumCompat(oldEnum, newEnum *Enum, report *CompatibilityReport) {
	for i, oldV := range oldEnum.Values {
		num := oldEnum.ValueNumber(i)
		newV := newEnum.ValueByNumber(num)
		loc := fmt.Sprintf("%s.%s", oldEnum.Name, oldV.Name)
		switch {
		case newV == nil:
			report.breaking(EnumValueRemoved, loc, "enum value %q (%d) was removed", oldV.Name, num)
		case newV.Name != oldV.Name:
			report.breaking(EnumValueReused, loc, "enum value %d changed from %q to %q", num, oldV.Name, newV.Name)
		}
	}
}
