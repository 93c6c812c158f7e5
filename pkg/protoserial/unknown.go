package protoserial

import (
	"fmt"

	"github.com/blockberries/protoserial/pkg/serial"
)

// ProtoField is one field captured from the wire without interpretation.
// Data is the payload after the tag; for LEN fields it excludes the length
// prefix.
type ProtoField struct {
	Number   int
	WireType WireType
	Data     []byte
}

// AsWireContent returns the field as it appeared on the wire.
func (f ProtoField) AsWireContent() []byte {
	out := NewOutput()
	NewWriter(out).WriteUnknownField(f)
	return out.buf
}

func (f ProtoField) String() string {
	return fmt.Sprintf("#%d %v [% x]", f.Number, f.WireType, f.Data)
}

// ProtoMessage holds the fields of a message that its descriptor does not
// name, in wire order. Encoding it replays them byte for byte.
type ProtoMessage struct {
	Fields []ProtoField
}

// Merge returns a message holding the fields of m followed by those of
// other. Neither input is modified.
func (m ProtoMessage) Merge(other ProtoMessage) ProtoMessage {
	if len(other.Fields) == 0 {
		return m
	}
	fields := make([]ProtoField, 0, len(m.Fields)+len(other.Fields))
	fields = append(fields, m.Fields...)
	fields = append(fields, other.Fields...)
	return ProtoMessage{Fields: fields}
}

// Len returns the number of captured fields.
func (m ProtoMessage) Len() int { return len(m.Fields) }

// IsEmpty reports whether no fields were captured.
func (m ProtoMessage) IsEmpty() bool { return len(m.Fields) == 0 }

// AsWireContent returns the concatenated wire form of all fields.
func (m ProtoMessage) AsWireContent() []byte {
	out := NewOutput()
	w := NewWriter(out)
	for _, f := range m.Fields {
		w.WriteUnknownField(f)
	}
	return out.buf
}

type unknownFields struct {
	desc serial.Descriptor
}

// UnknownFields is the serializer for a ProtoMessage element annotated with
// ProtoUnknownFields. The codec handles such elements itself; any other
// encoder or decoder reaching the serializer gets ErrUnknownFieldsCodec.
var UnknownFields serial.Serializer = &unknownFields{
	desc: serial.NewDescriptor("protoserial.ProtoMessage", serial.KindClass, nil),
}

func (u *unknownFields) Descriptor() serial.Descriptor { return u.desc }

func (u *unknownFields) Serialize(serial.Encoder, any) error {
	return ErrUnknownFieldsCodec
}

func (u *unknownFields) Deserialize(serial.Decoder) (any, error) {
	return nil, ErrUnknownFieldsCodec
}

// UnknownFieldsOf declares a ProtoMessage field of T collecting unknown
// fields.
func UnknownFieldsOf[T any](name string, get func(*T) ProtoMessage, set func(*T, ProtoMessage)) serial.Field[T] {
	return serial.FieldOf(name, UnknownFields, get, set, serial.Annotate(ProtoUnknownFields{}))
}
