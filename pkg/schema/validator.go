package schema

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/blockberries/protoserial/internal/wire"
)

// ValidationError represents a schema validation finding.
type ValidationError struct {
	Position Position
	Message  string
	Severity Severity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Position, e.Severity, e.Message)
}

// Severity indicates the severity of a validation finding.
type Severity int

const (
	// SeverityError is a finding that prevents building serializers.
	SeverityError Severity = iota
	// SeverityWarning is a non-fatal issue.
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Reserved field numbers, kept free for the protobuf implementation.
const (
	reservedStart = 19000
	reservedEnd   = 19999
)

// Validate checks s and the schemas it imports. Findings are ordered by
// position.
func Validate(s *Schema) []ValidationError {
	v := &validator{
		messages: make(map[string]*Message),
		enums:    make(map[string]*Enum),
		seen:     make(map[*Schema]bool),
	}
	schemas := v.collect(s, nil)
	for _, sc := range schemas {
		for _, m := range sc.Messages {
			v.validateMessage(m)
		}
		for _, e := range sc.Enums {
			v.validateEnum(e)
		}
	}
	v.checkCycles(schemas)

	slices.SortStableFunc(v.errors, func(a, b ValidationError) int {
		return cmp.Or(
			cmp.Compare(a.Position.Filename, b.Position.Filename),
			cmp.Compare(a.Position.Line, b.Position.Line),
			cmp.Compare(a.Position.Column, b.Position.Column),
		)
	})
	return v.errors
}

// Errors returns the error-severity findings.
func Errors(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns the warning-severity findings.
func Warnings(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}

type validator struct {
	errors   []ValidationError
	messages map[string]*Message
	enums    map[string]*Enum
	seen     map[*Schema]bool
}

// collect registers the type names of s and its imports, depth first.
func (v *validator) collect(s *Schema, out []*Schema) []*Schema {
	if v.seen[s] {
		return out
	}
	v.seen[s] = true
	out = append(out, s)

	for _, m := range s.Messages {
		v.define(m.Name, m.Position)
		if m.Name != "" {
			v.messages[m.Name] = m
		}
	}
	for _, e := range s.Enums {
		v.define(e.Name, e.Position)
		if e.Name != "" {
			v.enums[e.Name] = e
		}
	}
	for _, imp := range s.imported {
		out = v.collect(imp, out)
	}
	return out
}

func (v *validator) define(name string, pos Position) {
	switch {
	case name == "":
		v.addError(pos, "type has no name")
	case v.messages[name] != nil:
		v.addError(pos, "duplicate type name %q (previously defined at %s)", name, v.messages[name].Position)
	case v.enums[name] != nil:
		v.addError(pos, "duplicate type name %q (previously defined at %s)", name, v.enums[name].Position)
	default:
		if _, ok := scalarTypes[name]; ok {
			v.addError(pos, "type name %q shadows a scalar type", name)
		}
	}
}

func (v *validator) validateMessage(msg *Message) {
	numbers := make(map[int]string)
	names := make(map[string]bool)
	unknown := ""

	claim := func(pos Position, number int, owner string) {
		if err := wire.ValidateFieldNumber(number); err != nil {
			v.addError(pos, "field number %d of %q is out of range (1 to %d)", number, owner, wire.MaxFieldNumber)
			return
		}
		if number >= reservedStart && number <= reservedEnd {
			v.addWarning(pos, "field number %d of %q is in the reserved range (%d-%d)", number, owner, reservedStart, reservedEnd)
		}
		if existing, ok := numbers[number]; ok {
			v.addError(pos, "duplicate field number %d (used by %q and %q)", number, existing, owner)
			return
		}
		numbers[number] = owner
	}

	for i, f := range msg.Fields {
		switch {
		case f.Name == "":
			v.addError(f.Position, "field %d of %s has no name", i+1, msg.Name)
		case names[f.Name]:
			v.addError(f.Position, "duplicate field name %q", f.Name)
		}
		names[f.Name] = true

		forms := 0
		for _, set := range []bool{f.Type != "", f.Map != nil, len(f.OneOf) > 0, f.UnknownFields} {
			if set {
				forms++
			}
		}
		if forms != 1 {
			v.addError(f.Position, "field %q must declare exactly one of type, map, oneof and unknown_fields", f.Name)
			continue
		}

		switch {
		case f.UnknownFields:
			if unknown != "" {
				v.addError(f.Position, "more than one unknown_fields element (%q and %q)", unknown, f.Name)
			}
			unknown = f.Name
			if f.Number != 0 {
				v.addWarning(f.Position, "unknown_fields element %q has no field number; %d is ignored", f.Name, f.Number)
			}
			v.noModifiers(f, "unknown_fields")

		case len(f.OneOf) > 0:
			if f.Number != 0 {
				v.addWarning(f.Position, "oneof %q is numbered by its variants; %d is ignored", f.Name, f.Number)
			}
			v.noModifiers(f, "oneof")
			variants := make(map[string]bool)
			for _, variant := range f.OneOf {
				if variants[variant.Name] {
					v.addError(variant.Position, "duplicate oneof variant %q in %q", variant.Name, f.Name)
				}
				variants[variant.Name] = true
				if variant.Name == "" {
					v.addError(variant.Position, "oneof variant of %q has no name", f.Name)
				}
				if variant.Type == "" {
					v.addError(variant.Position, "oneof variant %q has no type", variant.Name)
				} else {
					v.checkType(variant.Position, variant.Type, variant.Integer)
				}
				claim(variant.Position, variant.Number, f.Name+"."+variant.Name)
			}

		case f.Map != nil:
			claim(f.Position, msg.FieldNumber(i), f.Name)
			if f.Repeated || f.Packed || f.Nullable {
				v.addError(f.Position, "map field %q cannot be repeated, packed or nullable", f.Name)
			}
			if st, ok := scalarTypes[f.Map.Key]; !ok || !st.mapKey() {
				v.addError(f.Position, "map key type %q of %q must be an integer, bool or string scalar", f.Map.Key, f.Name)
			}
			v.checkType(f.Position, f.Map.Value, "")
			// One encoding covers both keys and values.
			key, value := scalarTypes[f.Map.Key], scalarTypes[f.Map.Value]
			if f.Integer == "" && key.integral() && value.integral() && key.integer != value.integer {
				v.addError(f.Position, "map %q mixes %v keys with %v values", f.Name, key.integer, value.integer)
			}
			if f.Integer != "" {
				if _, err := parseInteger(f.Integer); err != nil {
					v.addError(f.Position, "%v", err)
				}
			}

		default:
			claim(f.Position, msg.FieldNumber(i), f.Name)
			v.checkType(f.Position, f.Type, f.Integer)
			if f.Repeated && f.Nullable {
				v.addError(f.Position, "repeated field %q cannot be nullable", f.Name)
			}
			if f.Packed {
				st, scalar := scalarTypes[f.Type]
				packable := (scalar && st.packable()) || v.enums[f.Type] != nil
				if !f.Repeated || !packable {
					v.addError(f.Position, "packed applies only to repeated scalar or enum fields, not %q", f.Name)
				}
			}
			if f.Repeated && f.Optional {
				v.addWarning(f.Position, "optional has no effect on repeated field %q", f.Name)
			}
		}
	}
}

// noModifiers reports modifiers on fields whose shape fixes them.
func (v *validator) noModifiers(f *Field, form string) {
	if f.Repeated || f.Packed || f.Integer != "" {
		v.addError(f.Position, "%s field %q takes no repeated, packed or integer settings", form, f.Name)
	}
	if form == "unknown_fields" && (f.Optional || f.Nullable) {
		v.addWarning(f.Position, "unknown_fields element %q is always optional", f.Name)
	}
}

// checkType reports unknown type names and integer settings that do not
// apply.
func (v *validator) checkType(pos Position, typ, integer string) {
	st, scalar := scalarTypes[typ]
	if !scalar && v.messages[typ] == nil && v.enums[typ] == nil {
		v.addError(pos, "unknown type %q", typ)
		return
	}
	if integer == "" {
		return
	}
	it, err := parseInteger(integer)
	if err != nil {
		v.addError(pos, "%v", err)
		return
	}
	switch {
	case !scalar || !st.integral():
		v.addError(pos, "integer encoding %q applies only to integer types, not %q", integer, typ)
	case st.integer != 0 && st.integer != it:
		v.addError(pos, "type %q already implies %v integers", typ, st.integer)
	}
}

func (v *validator) validateEnum(enum *Enum) {
	if len(enum.Values) == 0 {
		v.addError(enum.Position, "enum %q has no values", enum.Name)
		return
	}
	numbers := make(map[int]string)
	names := make(map[string]bool)
	hasZero := false
	for i, val := range enum.Values {
		n := enum.ValueNumber(i)
		if n == 0 {
			hasZero = true
		}
		if n < 0 {
			v.addError(val.Position, "enum value number must be non-negative, got %d", n)
		}
		if existing, ok := numbers[n]; ok {
			v.addError(val.Position, "duplicate enum value number %d (also used by %q)", n, existing)
		} else {
			numbers[n] = val.Name
		}
		if names[val.Name] {
			v.addError(val.Position, "duplicate enum value name %q", val.Name)
		}
		names[val.Name] = true
	}
	if !hasZero {
		v.addWarning(enum.Position, "enum %q should have a zero value", enum.Name)
	}
}

// checkCycles reports messages that contain themselves. Serializers are
// built eagerly, so such messages cannot be built.
func (v *validator) checkCycles(schemas []*Schema) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Message]int)
	var visit func(m *Message) bool
	visit = func(m *Message) bool {
		switch state[m] {
		case visiting:
			return true
		case done:
			return false
		}
		state[m] = visiting
		for _, ref := range references(m) {
			if next := v.messages[ref]; next != nil && visit(next) {
				state[m] = done
				v.addError(m.Position, "message %q contains itself through %q, recursive messages are not supported", m.Name, ref)
				return false
			}
		}
		state[m] = done
		return false
	}
	for _, sc := range schemas {
		for _, m := range sc.Messages {
			visit(m)
		}
	}
}

// references returns the type names a message refers to.
func references(m *Message) []string {
	var out []string
	for _, f := range m.Fields {
		switch {
		case f.Type != "":
			out = append(out, f.Type)
		case f.Map != nil:
			out = append(out, f.Map.Value)
		}
		for _, variant := range f.OneOf {
			out = append(out, variant.Type)
		}
	}
	return out
}

func (v *validator) addError(pos Position, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	})
}

func (v *validator) addWarning(pos Position, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityWarning,
	})
}
