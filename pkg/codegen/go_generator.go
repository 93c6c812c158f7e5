package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"strings"
	"text/template"

	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/schema"
)

// GoGenerator generates Go types and serial serializers from schemas.
type GoGenerator struct{}

// NewGoGenerator creates a new Go code generator.
func NewGoGenerator() *GoGenerator {
	return &GoGenerator{}
}

// Language returns the target language.
func (g *GoGenerator) Language() Language {
	return LanguageGo
}

// FileExtension returns the file extension for generated files.
func (g *GoGenerator) FileExtension() string {
	return ".pb.go"
}

// Generate produces Go code for the messages and enums declared in s.
// Imported types are referenced by name and must be generated into the
// same package.
func (g *GoGenerator) Generate(w io.Writer, s *schema.Schema, opts Options) error {
	if errs := schema.Errors(schema.Validate(s)); len(errs) > 0 {
		return &GeneratorError{Message: errs[0].Message, Position: errs[0].Position}
	}

	ctx := &goContext{
		Schema:  s,
		Options: opts,
	}

	tmpl, err := template.New("go").Funcs(ctx.funcMap()).Parse(goTemplate)
	if err != nil {
		return &GeneratorError{Message: "parsing template", Cause: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return &GeneratorError{Message: "executing template", Position: s.Position, Cause: err}
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return &GeneratorError{Message: "generated code does not parse", Position: s.Position, Cause: err}
	}
	_, err = w.Write(src)
	return err
}

// goScalar is the Go rendering of a schema scalar type.
type goScalar struct {
	goType     string
	serializer string
}

var goScalars = map[string]goScalar{
	"bool":     {"bool", "serial.Bool"},
	"int8":     {"int8", "serial.Int8"},
	"int16":    {"int16", "serial.Int16"},
	"int32":    {"int32", "serial.Int32"},
	"int64":    {"int64", "serial.Int64"},
	"uint32":   {"uint32", "serial.Uint32"},
	"uint64":   {"uint64", "serial.Uint64"},
	"sint32":   {"int32", "serial.Int32"},
	"sint64":   {"int64", "serial.Int64"},
	"fixed32":  {"uint32", "serial.Uint32"},
	"fixed64":  {"uint64", "serial.Uint64"},
	"sfixed32": {"int32", "serial.Int32"},
	"sfixed64": {"int64", "serial.Int64"},
	"float":    {"float32", "serial.Float32"},
	"double":   {"float64", "serial.Float64"},
	"rune":     {"rune", "serial.Rune"},
	"string":   {"string", "serial.String"},
	"bytes":    {"[]byte", "serial.Bytes"},
}

// goContext holds context for Go code generation.
type goContext struct {
	Schema  *schema.Schema
	Options Options
}

func (c *goContext) funcMap() template.FuncMap {
	return template.FuncMap{
		"goPackage":       c.goPackage,
		"goTypeName":      c.goTypeName,
		"goEnumValueName": c.goEnumValueName,
		"goFieldName":     c.goFieldName,
		"goFieldType":     c.goFieldType,
		"goValueType":     c.goValueType,
		"oneofType":       c.oneofType,
		"variantType":     c.variantType,
		"valueSerializer": c.valueSerializer,
		"fieldSerializer": c.fieldSerializer,
		"fieldOptions":    c.fieldOptions,
		"variantOptions":  c.variantOptions,
		"fieldTag":        c.fieldTag,
		"enumNumber":      func(e *schema.Enum, i int) int { return e.ValueNumber(i) },
		"oneofs":          oneofs,
		"quote":           func(s string) string { return fmt.Sprintf("%q", s) },
		"generateMarshal": func() bool { return c.Options.GenerateMarshal },
		"usesProtoserial": c.usesProtoserial,
	}
}

// usesProtoserial reports whether the output refers to the protoserial
// package: enum numbers, field annotations and marshal methods do.
func (c *goContext) usesProtoserial() bool {
	if len(c.Schema.Enums) > 0 {
		return true
	}
	for _, m := range c.Schema.Messages {
		if len(m.Fields) > 0 || c.Options.GenerateMarshal {
			return true
		}
	}
	return false
}

func (c *goContext) goPackage() string {
	if c.Options.Package != "" {
		return c.Options.Package
	}
	if c.Schema.Package != "" {
		return ToSnakeCase(c.Schema.Package)
	}
	return "generated"
}

// goTypeName returns the Go name of a declared message or enum.
func (c *goContext) goTypeName(name string) string {
	return c.Options.TypePrefix + ToPascalCase(name) + c.Options.TypeSuffix
}

func (c *goContext) goEnumValueName(e *schema.Enum, v *schema.EnumValue) string {
	return c.goTypeName(e.Name) + ToPascalCase(v.Name)
}

func (c *goContext) goFieldName(f *schema.Field) string {
	return ToPascalCase(f.Name)
}

// goValueType returns the Go type holding one value of a type name.
func (c *goContext) goValueType(name string) string {
	if st, ok := goScalars[name]; ok {
		return st.goType
	}
	return c.goTypeName(name)
}

func (c *goContext) goFieldType(m *schema.Message, f *schema.Field) string {
	switch {
	case f.UnknownFields:
		return "protoserial.ProtoMessage"
	case len(f.OneOf) > 0:
		return c.oneofType(m, f)
	case f.Map != nil:
		return "map[" + c.goValueType(f.Map.Key) + "]" + c.goValueType(f.Map.Value)
	case f.Repeated:
		return "[]" + c.goValueType(f.Type)
	case c.pointer(f):
		return "*" + c.goValueType(f.Type)
	}
	return c.goValueType(f.Type)
}

// pointer reports whether a singular field is held through a pointer.
// Message fields always are.
func (c *goContext) pointer(f *schema.Field) bool {
	return f.Nullable || c.Schema.Message(f.Type) != nil
}

func (c *goContext) oneofType(m *schema.Message, f *schema.Field) string {
	return c.goTypeName(m.Name) + ToPascalCase(f.Name)
}

func (c *goContext) variantType(m *schema.Message, f *schema.Field, v *schema.Variant) string {
	return c.oneofType(m, f) + ToPascalCase(v.Name)
}

// valueSerializer returns the expression of the serializer for one value
// of a type name.
func (c *goContext) valueSerializer(name string) string {
	if st, ok := goScalars[name]; ok {
		return st.serializer
	}
	return c.goTypeName(name) + "Serializer"
}

func (c *goContext) fieldSerializer(m *schema.Message, f *schema.Field) string {
	switch {
	case len(f.OneOf) > 0:
		return "serial.Nullable(" + c.oneofType(m, f) + "Serializer)"
	case f.Map != nil:
		return fmt.Sprintf("serial.MapOf[%s, %s](%s, %s)",
			c.goValueType(f.Map.Key), c.goValueType(f.Map.Value),
			c.valueSerializer(f.Map.Key), c.valueSerializer(f.Map.Value))
	case f.Repeated:
		return fmt.Sprintf("serial.ListOf[%s](%s)", c.goValueType(f.Type), c.valueSerializer(f.Type))
	case c.pointer(f):
		return fmt.Sprintf("serial.Ptr[%s](%s)", c.goValueType(f.Type), c.valueSerializer(f.Type))
	}
	return c.valueSerializer(f.Type)
}

// fieldOptions renders the field options of field i of m.
func (c *goContext) fieldOptions(m *schema.Message, i int, f *schema.Field) string {
	var annotations []string
	if len(f.OneOf) > 0 {
		annotations = append(annotations, "protoserial.ProtoOneOf{}")
	} else {
		annotations = append(annotations, fmt.Sprintf("protoserial.ProtoNumber(%d)", m.FieldNumber(i)))
		if f.Packed {
			annotations = append(annotations, "protoserial.ProtoPacked{}")
		}
		if it := integerType(schema.FieldEncoding(f)); it != "" {
			annotations = append(annotations, it)
		}
	}
	opts := []string{"serial.Annotate(" + strings.Join(annotations, ", ") + ")"}
	if f.Optional {
		opts = append(opts, "serial.Optional()")
	}
	return strings.Join(opts, ", ")
}

func (c *goContext) variantOptions(v *schema.Variant) string {
	annotations := []string{fmt.Sprintf("protoserial.ProtoNumber(%d)", v.Number)}
	if it := integerType(schema.IntegerEncoding(v.Type, v.Integer)); it != "" {
		annotations = append(annotations, it)
	}
	return "serial.Annotate(" + strings.Join(annotations, ", ") + ")"
}

func integerType(it protoserial.IntegerType) string {
	switch it {
	case protoserial.IntegerSigned:
		return "protoserial.ProtoType(protoserial.IntegerSigned)"
	case protoserial.IntegerFixed:
		return "protoserial.ProtoType(protoserial.IntegerFixed)"
	}
	return ""
}

func (c *goContext) fieldTag(f *schema.Field) string {
	if !c.Options.GenerateJSON {
		return ""
	}
	jsonTag := ToSnakeCase(f.Name)
	if f.Optional || f.Nullable || f.Repeated || f.Map != nil || f.UnknownFields || len(f.OneOf) > 0 {
		jsonTag += ",omitempty"
	}
	return fmt.Sprintf("`json:%q`", jsonTag)
}

// oneofs returns the oneof fields of m.
func oneofs(m *schema.Message) []*schema.Field {
	var out []*schema.Field
	for _, f := range m.Fields {
		if len(f.OneOf) > 0 {
			out = append(out, f)
		}
	}
	return out
}

func init() {
	MustRegister(NewGoGenerator())
}

const goTemplate = `// Code generated by protoserial. DO NOT EDIT.
{{- with .Schema.Position.Filename}}
// Source: {{.}}
{{- end}}

package {{goPackage}}

import (
{{- if usesProtoserial}}
	"github.com/blockberries/protoserial/pkg/protoserial"
{{- end}}
{{- if or .Schema.Enums .Schema.Messages}}
	"github.com/blockberries/protoserial/pkg/serial"
{{- end}}
)
{{range $enum := .Schema.Enums}}
{{- $t := goTypeName $enum.Name}}
// {{$t}} is the {{$enum.Name}} enum. Constants count up from zero in
// declaration order; the wire carries their protobuf numbers.
type {{$t}} int32

const (
{{- range $i, $v := $enum.Values}}
	{{goEnumValueName $enum $v}}{{if eq $i 0}} {{$t}} = iota{{end}}
{{- end}}
)

// {{$t}}Serializer encodes {{$t}} values.
var {{$t}}Serializer = serial.EnumOf[{{$t}}](serial.EnumDescriptor({{quote $enum.Name}}, []serial.EnumEntry{
{{- range $i, $v := $enum.Values}}
	{Name: {{quote $v.Name}}, Annotations: []any{protoserial.ProtoNumber({{enumNumber $enum $i}})}},
{{- end}}
}))

// String returns the schema name of the value.
func (e {{$t}}) String() string {
	switch e {
{{- range $enum.Values}}
	case {{goEnumValueName $enum .}}:
		return {{quote .Name}}
{{- end}}
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the value is a declared constant.
func (e {{$t}}) IsValid() bool {
	return e >= 0 && int(e) < {{len $enum.Values}}
}
{{end}}
{{- range $msg := .Schema.Messages}}
{{- $t := goTypeName $msg.Name}}
type {{$t}} struct {
{{- range $msg.Fields}}
	{{goFieldName .}} {{goFieldType $msg .}} {{fieldTag .}}
{{- end}}
}
{{range $f := oneofs $msg}}
{{- $o := oneofType $msg $f}}
// {{$o}} is one of the variants of {{$msg.Name}}.{{$f.Name}}.
type {{$o}} interface {
	is{{$o}}()
}
{{range $v := $f.OneOf}}
type {{variantType $msg $f $v}} struct {
	Value {{goValueType $v.Type}}
}

func ({{variantType $msg $f $v}}) is{{$o}}() {}
{{end}}
// {{$o}}Serializer encodes the variants of {{$msg.Name}}.{{$f.Name}}.
var {{$o}}Serializer = serial.SealedOf({{quote (printf "%s.%s" $msg.Name $f.Name)}},
{{- range $v := $f.OneOf}}
{{- $vt := variantType $msg $f $v}}
	serial.VariantOf[{{$vt}}](serial.NewStruct({{quote $v.Name}},
		serial.FieldOf("value", {{valueSerializer $v.Type}},
			func(v *{{$vt}}) {{goValueType $v.Type}} { return v.Value },
			func(v *{{$vt}}, x {{goValueType $v.Type}}) { v.Value = x },
			{{variantOptions $v}}))),
{{- end}}
)
{{end}}
// {{$t}}Serializer encodes {{$t}} values.
var {{$t}}Serializer = serial.NewStruct[{{$t}}]({{quote $msg.Name}},
{{- range $i, $f := $msg.Fields}}
{{- if $f.UnknownFields}}
	protoserial.UnknownFieldsOf({{quote $f.Name}},
		func(v *{{$t}}) protoserial.ProtoMessage { return v.{{goFieldName $f}} },
		func(v *{{$t}}, x protoserial.ProtoMessage) { v.{{goFieldName $f}} = x }),
{{- else}}
	serial.FieldOf({{quote $f.Name}}, {{fieldSerializer $msg $f}},
		func(v *{{$t}}) {{goFieldType $msg $f}} { return v.{{goFieldName $f}} },
		func(v *{{$t}}, x {{goFieldType $msg $f}}) { v.{{goFieldName $f}} = x },
		{{fieldOptions $msg $i $f}}),
{{- end}}
{{- end}}
)
{{if generateMarshal}}
// MarshalProto encodes m in the protobuf wire format.
func (m *{{$t}}) MarshalProto() ([]byte, error) {
	return protoserial.Marshal({{$t}}Serializer, *m)
}

// UnmarshalProto decodes data into m.
func (m *{{$t}}) UnmarshalProto(data []byte) error {
	v, err := protoserial.Unmarshal[{{$t}}]({{$t}}Serializer, data)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
{{end}}
{{- end}}
`
