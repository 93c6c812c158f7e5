package schema

import (
	"fmt"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/serial"
)

// FileDescriptorProto describes s as a proto3 file whose messages read and
// write the same bytes as the serializers of Build. Declarations of
// imported schemas are flattened into the file. Unknown-field elements
// have no counterpart and are left out; int8, int16 and rune widen to
// their 32-bit protobuf types.
func FileDescriptorProto(s *Schema) (*descriptorpb.FileDescriptorProto, error) {
	if errs := Errors(Validate(s)); len(errs) > 0 {
		return nil, fmt.Errorf("schema: invalid schema: %w", errs[0])
	}

	d := describer{schema: s, seen: make(map[string]bool)}
	if s.Package != "" {
		d.prefix = "." + s.Package
	}
	file := &descriptorpb.FileDescriptorProto{
		Name:   proto.String(protoFileName(s.Position.Filename)),
		Syntax: proto.String("proto3"),
	}
	if s.Package != "" {
		file.Package = proto.String(s.Package)
	}
	if err := d.collect(s, file); err != nil {
		return nil, err
	}
	return file, nil
}

// FileDescriptor is FileDescriptorProto resolved into a protoreflect
// descriptor, ready for dynamicpb.
func FileDescriptor(s *Schema) (protoreflect.FileDescriptor, error) {
	fdp, err := FileDescriptorProto(s)
	if err != nil {
		return nil, err
	}
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		return nil, fmt.Errorf("schema: building descriptor: %w", err)
	}
	return fd, nil
}

func protoFileName(filename string) string {
	if filename == "" {
		return "schema.proto"
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".proto"
}

type describer struct {
	schema *Schema
	prefix string
	seen   map[string]bool
}

func (d describer) collect(s *Schema, file *descriptorpb.FileDescriptorProto) error {
	for _, e := range s.Enums {
		if d.seen[e.Name] {
			continue
		}
		d.seen[e.Name] = true
		file.EnumType = append(file.EnumType, d.enum(e))
	}
	for _, m := range s.Messages {
		if d.seen[m.Name] {
			continue
		}
		d.seen[m.Name] = true
		md, err := d.message(m)
		if err != nil {
			return err
		}
		file.MessageType = append(file.MessageType, md)
	}
	for _, imp := range s.Imported() {
		if err := d.collect(imp, file); err != nil {
			return err
		}
	}
	return nil
}

func (d describer) enum(e *Enum) *descriptorpb.EnumDescriptorProto {
	ed := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.Name)}
	for i, v := range e.Values {
		ed.Value = append(ed.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(int32(e.ValueNumber(i))),
		})
	}
	return ed
}

func (d describer) message(m *Message) (*descriptorpb.DescriptorProto, error) {
	md := &descriptorpb.DescriptorProto{Name: proto.String(m.Name)}

	// Synthetic oneofs of nullable scalars must follow the real ones.
	var synthetic []*descriptorpb.FieldDescriptorProto
	for i, f := range m.Fields {
		loc := m.Name + "." + f.Name
		switch {
		case f.UnknownFields:

		case len(f.OneOf) > 0:
			index := proto.Int32(int32(len(md.OneofDecl)))
			md.OneofDecl = append(md.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(f.Name)})
			for _, v := range f.OneOf {
				fd, err := d.field(v.Name, v.Number, v.Type, IntegerEncoding(v.Type, v.Integer))
				if err != nil {
					return nil, fmt.Errorf("schema: %s: %w", loc, err)
				}
				fd.OneofIndex = index
				md.Field = append(md.Field, fd)
			}

		case f.Map != nil:
			integer := FieldEncoding(f)
			key, err := d.field("key", 1, f.Map.Key, integer)
			if err != nil {
				return nil, fmt.Errorf("schema: %s: %w", loc, err)
			}
			value, err := d.field("value", 2, f.Map.Value, integer)
			if err != nil {
				return nil, fmt.Errorf("schema: %s: %w", loc, err)
			}
			entry := mapEntryName(f.Name)
			md.NestedType = append(md.NestedType, &descriptorpb.DescriptorProto{
				Name:    proto.String(entry),
				Field:   []*descriptorpb.FieldDescriptorProto{key, value},
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
			})
			md.Field = append(md.Field, &descriptorpb.FieldDescriptorProto{
				Name:     proto.String(f.Name),
				Number:   proto.Int32(int32(m.FieldNumber(i))),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String(d.prefix + "." + m.Name + "." + entry),
			})

		default:
			fd, err := d.field(f.Name, m.FieldNumber(i), f.Type, FieldEncoding(f))
			if err != nil {
				return nil, fmt.Errorf("schema: %s: %w", loc, err)
			}
			switch {
			case f.Repeated:
				fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
				if d.packable(f.Type) {
					fd.Options = &descriptorpb.FieldOptions{Packed: proto.Bool(f.Packed)}
				}
			case f.Nullable && fd.GetType() != descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
				fd.Proto3Optional = proto.Bool(true)
				synthetic = append(synthetic, fd)
			}
			md.Field = append(md.Field, fd)
		}
	}

	for _, fd := range synthetic {
		fd.OneofIndex = proto.Int32(int32(len(md.OneofDecl)))
		md.OneofDecl = append(md.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String("_" + fd.GetName())})
	}
	return md, nil
}

func (d describer) packable(typ string) bool {
	if d.schema.Enum(typ) != nil {
		return true
	}
	st, ok := scalarTypes[typ]
	return ok && st.packable()
}

// field describes a singular field of type typ.
func (d describer) field(name string, number int, typ string, integer protoserial.IntegerType) (*descriptorpb.FieldDescriptorProto, error) {
	fd := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(int32(number)),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	switch {
	case d.schema.Enum(typ) != nil:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
		fd.TypeName = proto.String(d.prefix + "." + typ)
	case d.schema.Message(typ) != nil:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		fd.TypeName = proto.String(d.prefix + "." + typ)
	default:
		st, ok := scalarTypes[typ]
		if !ok {
			return nil, fmt.Errorf("unknown type %q", typ)
		}
		fd.Type = scalarProtoType(st.kind(), integer).Enum()
	}
	return fd, nil
}

func scalarProtoType(k serial.Kind, integer protoserial.IntegerType) descriptorpb.FieldDescriptorProto_Type {
	switch k {
	case serial.KindBool:
		return descriptorpb.FieldDescriptorProto_TYPE_BOOL
	case serial.KindFloat32:
		return descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	case serial.KindFloat64:
		return descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	case serial.KindString:
		return descriptorpb.FieldDescriptorProto_TYPE_STRING
	case serial.KindBytes:
		return descriptorpb.FieldDescriptorProto_TYPE_BYTES
	case serial.KindRune:
		return descriptorpb.FieldDescriptorProto_TYPE_INT32
	case serial.KindInt64:
		switch integer {
		case protoserial.IntegerSigned:
			return descriptorpb.FieldDescriptorProto_TYPE_SINT64
		case protoserial.IntegerFixed:
			return descriptorpb.FieldDescriptorProto_TYPE_SFIXED64
		}
		return descriptorpb.FieldDescriptorProto_TYPE_INT64
	case serial.KindUint32:
		if integer == protoserial.IntegerFixed {
			return descriptorpb.FieldDescriptorProto_TYPE_FIXED32
		}
		return descriptorpb.FieldDescriptorProto_TYPE_UINT32
	case serial.KindUint64:
		if integer == protoserial.IntegerFixed {
			return descriptorpb.FieldDescriptorProto_TYPE_FIXED64
		}
		return descriptorpb.FieldDescriptorProto_TYPE_UINT64
	}
	// int8, int16 and int32
	switch integer {
	case protoserial.IntegerSigned:
		return descriptorpb.FieldDescriptorProto_TYPE_SINT32
	case protoserial.IntegerFixed:
		return descriptorpb.FieldDescriptorProto_TYPE_SFIXED32
	}
	return descriptorpb.FieldDescriptorProto_TYPE_INT32
}

// mapEntryName is the nested entry message protoc derives from a map
// field name: "user_ids" becomes "UserIdsEntry".
func mapEntryName(field string) string {
	var b strings.Builder
	upper := true
	for _, r := range field {
		if r == '_' {
			upper = true
			continue
		}
		if upper && 'a' <= r && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String() + "Entry"
}
