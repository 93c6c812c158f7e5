package extract

import (
	"fmt"
	"go/types"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/blockberries/protoserial/pkg/schema"
)

const protoMessagePath = "github.com/blockberries/protoserial/pkg/protoserial"

// SchemaBuilder converts collected type information into a schema.
type SchemaBuilder struct {
	types      map[string]*TypeInfo
	interfaces map[string]*InterfaceInfo
	enums      map[string]*EnumInfo
	schema     *schema.Schema
	warnings   []string

	// wrappers are the variant types of a oneof that hold a single Value
	// field. They become the variant's type and get no message.
	wrappers map[string]bool
}

// NewSchemaBuilder creates a new schema builder.
func NewSchemaBuilder(types map[string]*TypeInfo, interfaces map[string]*InterfaceInfo, enums map[string]*EnumInfo) *SchemaBuilder {
	return &SchemaBuilder{
		types:      types,
		interfaces: interfaces,
		enums:      enums,
		wrappers:   make(map[string]bool),
	}
}

// Warnings returns any warnings generated during schema building.
func (b *SchemaBuilder) Warnings() []string {
	return b.warnings
}

func (b *SchemaBuilder) addWarning(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// Build constructs a schema from the collected types. Struct types become
// messages, integer types with constants become enums and interface
// fields become oneofs of the interface's implementations.
func (b *SchemaBuilder) Build(packageName string) (*schema.Schema, error) {
	b.schema = &schema.Schema{Package: packageName}

	// Integer types without constants are encoded as their base type.
	for name, enum := range b.enums {
		if len(enum.Values) == 0 {
			delete(b.enums, name)
		}
	}
	for _, iface := range b.interfaces {
		for _, impl := range iface.Implementations {
			if isWrapper(impl) {
				b.wrappers[qualified(impl)] = true
			}
		}
	}

	b.buildEnums()
	b.buildMessages()
	return b.schema, nil
}

func qualified(t *TypeInfo) string {
	return t.PkgPath + "." + t.Name
}

func isWrapper(t *TypeInfo) bool {
	return len(t.Fields) == 1 && t.Fields[0].Name == "Value"
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *SchemaBuilder) buildEnums() {
	for _, name := range sortedKeys(b.enums) {
		enum := b.enums[name]
		schemaEnum := &schema.Enum{Name: enum.Name}

		values := slices.Clone(enum.Values)
		slices.SortStableFunc(values, func(x, y *EnumValueInfo) int {
			switch {
			case x.Number < y.Number:
				return -1
			case x.Number > y.Number:
				return 1
			}
			return strings.Compare(x.Name, y.Name)
		})

		for _, val := range values {
			if val.Number < 0 || val.Number > math.MaxInt32 {
				b.addWarning("enum value %s = %d does not fit a protobuf enum, skipped", val.Name, val.Number)
				continue
			}
			number := int(val.Number)
			schemaEnum.Values = append(schemaEnum.Values, &schema.EnumValue{
				Name:   enumValueName(enum.Name, val.Name),
				Number: &number,
			})
		}

		b.schema.Enums = append(b.schema.Enums, schemaEnum)
	}
}

// enumValueName turns a constant such as StatusActive of enum Status into
// ACTIVE.
func enumValueName(enumName, constName string) string {
	trimmed := strings.TrimPrefix(constName, enumName)
	if trimmed == "" {
		trimmed = constName
	}
	return strings.ToUpper(toSnakeCase(trimmed))
}

func (b *SchemaBuilder) buildMessages() {
	for _, name := range sortedKeys(b.types) {
		if b.wrappers[name] {
			continue
		}
		typ := b.types[name]
		msg := &schema.Message{Name: typ.Name}

		fields := slices.Clone(typ.Fields)
		slices.SortStableFunc(fields, func(x, y *FieldInfo) int {
			return x.Tag.FieldNum - y.Tag.FieldNum
		})

		usedFieldNums := make(map[int]string)
		for _, field := range fields {
			f := b.field(typ, field)
			if f == nil {
				continue
			}
			if f.Number != 0 {
				if existing, exists := usedFieldNums[f.Number]; exists {
					b.addWarning("field number collision in type %q: fields %q and %q both have field number %d",
						typ.Name, existing, field.Name, f.Number)
				}
				usedFieldNums[f.Number] = field.Name
			}
			msg.Fields = append(msg.Fields, f)
		}

		// Variants are numbered once all plain fields claimed theirs.
		for _, f := range msg.Fields {
			if len(f.OneOf) > 0 {
				b.numberVariants(typ, f, usedFieldNums)
			}
		}

		b.schema.Messages = append(b.schema.Messages, msg)
	}
}

// field maps one struct field. It returns nil for fields whose type has
// no schema equivalent.
func (b *SchemaBuilder) field(typ *TypeInfo, fi *FieldInfo) *schema.Field {
	f := &schema.Field{
		Name:     toSnakeCase(fi.Name),
		Number:   fi.Tag.FieldNum,
		Optional: fi.Tag.Optional,
		Nullable: fi.Tag.Nullable,
		Packed:   fi.Tag.Packed,
		Integer:  fi.Tag.Integer,
	}

	t := fi.GoType
	if isProtoMessage(t) {
		return &schema.Field{Name: f.Name, UnknownFields: true}
	}
	if iface := b.oneofInterface(t); iface != nil {
		f.Number, f.Optional, f.Nullable = 0, false, false
		f.OneOf = b.variants(iface)
		if len(f.OneOf) == 0 {
			b.addWarning("field %s.%s: interface %s has no implementations, skipped", typ.Name, fi.Name, iface.Name)
			return nil
		}
		return f
	}

	var ok bool
	switch u := t.Underlying().(type) {
	case *types.Pointer:
		f.Type, ok = b.valueType(u.Elem())
		if ok && !b.isMessage(u.Elem()) {
			f.Nullable = true
		}
	case *types.Slice:
		if isBytes(u) {
			f.Type, ok = "bytes", true
			break
		}
		elem := u.Elem()
		if p, isPtr := elem.(*types.Pointer); isPtr && b.isMessage(p.Elem()) {
			elem = p.Elem()
		}
		f.Repeated = true
		f.Type, ok = b.valueType(elem)
	case *types.Map:
		key, keyOK := b.valueType(u.Key())
		value, valueOK := b.valueType(u.Elem())
		f.Map, ok = &schema.MapType{Key: key, Value: value}, keyOK && valueOK
	default:
		f.Type, ok = b.valueType(t)
	}
	if !ok {
		b.addWarning("field %s.%s: unsupported type %s, skipped", typ.Name, fi.Name, typeString(t))
		return nil
	}
	return f
}

// valueType returns the schema type name of a single value.
func (b *SchemaBuilder) valueType(t types.Type) (string, bool) {
	if named, ok := t.(*types.Named); ok {
		obj := named.Obj()
		if obj.Pkg() != nil {
			name := obj.Pkg().Path() + "." + obj.Name()
			if _, isEnum := b.enums[name]; isEnum {
				return obj.Name(), true
			}
			if _, isType := b.types[name]; isType {
				return obj.Name(), true
			}
		}
		if _, isStruct := named.Underlying().(*types.Struct); isStruct {
			return "", false
		}
		return b.valueType(named.Underlying())
	}

	switch u := t.(type) {
	case *types.Basic:
		return b.basicType(u)
	case *types.Slice:
		if isBytes(u) {
			return "bytes", true
		}
	}
	return "", false
}

func (b *SchemaBuilder) basicType(t *types.Basic) (string, bool) {
	switch t.Kind() {
	case types.Bool:
		return "bool", true
	case types.Int8:
		return "int8", true
	case types.Int16:
		return "int16", true
	case types.Int32:
		if t.Name() == "rune" {
			return "rune", true
		}
		return "int32", true
	case types.Int64:
		return "int64", true
	case types.Int:
		b.addWarning("type 'int' is platform-dependent; mapped to int64, consider using explicit int32 or int64")
		return "int64", true
	case types.Uint8, types.Uint16:
		b.addWarning("type %q has no protobuf equivalent; widened to uint32", t.Name())
		return "uint32", true
	case types.Uint32:
		return "uint32", true
	case types.Uint64:
		return "uint64", true
	case types.Uint:
		b.addWarning("type 'uint' is platform-dependent; mapped to uint64, consider using explicit uint32 or uint64")
		return "uint64", true
	case types.Float32:
		return "float", true
	case types.Float64:
		return "double", true
	case types.String:
		return "string", true
	}
	return "", false
}

func (b *SchemaBuilder) isMessage(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}
	_, isType := b.types[named.Obj().Pkg().Path()+"."+named.Obj().Name()]
	return isType
}

func (b *SchemaBuilder) oneofInterface(t types.Type) *InterfaceInfo {
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return nil
	}
	return b.interfaces[named.Obj().Pkg().Path()+"."+named.Obj().Name()]
}

// variants lists the implementations of iface sorted by name. A wrapper
// contributes the type of its Value field; any other implementation is
// referenced as a message.
func (b *SchemaBuilder) variants(iface *InterfaceInfo) []*schema.Variant {
	impls := slices.Clone(iface.Implementations)
	slices.SortFunc(impls, func(x, y *TypeInfo) int {
		return strings.Compare(x.Name, y.Name)
	})

	var out []*schema.Variant
	for _, impl := range impls {
		name := strings.TrimPrefix(impl.Name, iface.Name)
		if name == "" {
			name = impl.Name
		}
		v := &schema.Variant{Name: toSnakeCase(name), Number: impl.Number}
		if b.wrappers[qualified(impl)] {
			value := impl.Fields[0]
			typ, ok := b.valueType(value.GoType)
			if !ok {
				b.addWarning("variant %s: unsupported type %s, skipped", impl.Name, typeString(value.GoType))
				continue
			}
			v.Type, v.Integer = typ, value.Tag.Integer
		} else {
			v.Type = impl.Name
		}
		out = append(out, v)
	}
	return out
}

// numberVariants assigns free field numbers to variants without an
// explicit @protoNumber, counting up from the highest number in use.
func (b *SchemaBuilder) numberVariants(typ *TypeInfo, f *schema.Field, used map[int]string) {
	for _, v := range f.OneOf {
		if v.Number == 0 {
			continue
		}
		owner := f.Name + "." + v.Name
		if existing, exists := used[v.Number]; exists {
			b.addWarning("field number collision in type %q: fields %q and %q both have field number %d",
				typ.Name, existing, owner, v.Number)
		}
		used[v.Number] = owner
	}

	next := 1
	for n := range used {
		next = max(next, n+1)
	}
	for _, v := range f.OneOf {
		if v.Number != 0 {
			continue
		}
		for used[next] != "" {
			next++
		}
		v.Number = next
		used[next] = f.Name + "." + v.Name
		next++
	}
}

func isProtoMessage(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}
	return named.Obj().Pkg().Path() == protoMessagePath && named.Obj().Name() == "ProtoMessage"
}

func isBytes(s *types.Slice) bool {
	basic, ok := s.Elem().(*types.Basic)
	return ok && basic.Kind() == types.Byte
}

func typeString(t types.Type) string {
	return types.TypeString(t, func(pkg *types.Package) string {
		return pkg.Name()
	})
}

// toSnakeCase converts CamelCase to snake_case.
// It properly handles runs of uppercase letters (e.g., "HTTPServer" -> "http_server").
func toSnakeCase(s string) string {
	if s == "" {
		return ""
	}

	var result strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r >= 'A' && r <= 'Z' {
			// Underscore before an uppercase letter that follows a lowercase
			// one or ends an acronym.
			if i > 0 {
				prev := runes[i-1]
				isLowerPrev := (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')
				isLowerNext := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if isLowerPrev || (isLowerNext && prev != '_') {
					result.WriteByte('_')
				}
			}
			result.WriteRune(r + 32)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
