package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Builder appends protobuf fields in the order they are written. Zero values
// are written too: the peer distinguishes "absent" from "zero" for several
// status fields.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Uint writes a varint field.
func (b *Builder) Uint(num protowire.Number, v uint64) *Builder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
	return b
}

// Int writes a signed varint field using two's complement, like int32/int64.
func (b *Builder) Int(num protowire.Number, v int64) *Builder {
	return b.Uint(num, uint64(v))
}

// Bool writes a bool field.
func (b *Builder) Bool(num protowire.Number, v bool) *Builder {
	return b.Uint(num, protowire.EncodeBool(v))
}

// Bytes writes a length-delimited field.
func (b *Builder) Bytes(num protowire.Number, v []byte) *Builder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
	return b
}

// String writes a string field.
func (b *Builder) String(num protowire.Number, v string) *Builder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendString(b.buf, v)
	return b
}

// Message writes a nested message field.
func (b *Builder) Message(num protowire.Number, nested *Builder) *Builder {
	return b.Bytes(num, nested.Encode())
}

// Encode returns the encoded message.
func (b *Builder) Encode() []byte {
	if b.buf == nil {
		return []byte{}
	}
	return b.buf
}

// Field is one decoded protobuf field. Varint holds the value of varint and
// fixed-width fields, Bytes the value of length-delimited ones.
type Field struct {
	Number protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// Fields is a decoded message in wire order.
type Fields []Field

// ParseFields decodes the top level of a protobuf message.
func ParseFields(b []byte) (Fields, error) {
	var fields Fields
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		field := Field{Number: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			field.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			field.Varint = uint64(v)
		case protowire.Fixed64Type:
			field.Varint, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			field.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		fields = append(fields, field)
	}
	return fields, nil
}

func (f Fields) last(num protowire.Number) (Field, bool) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i].Number == num {
			return f[i], true
		}
	}
	return Field{}, false
}

// Has reports whether num is present.
func (f Fields) Has(num protowire.Number) bool {
	_, ok := f.last(num)
	return ok
}

// Uint returns the last value of a scalar field, or zero.
func (f Fields) Uint(num protowire.Number) uint64 {
	field, _ := f.last(num)
	return field.Varint
}

// Int32 returns a scalar field as int32.
func (f Fields) Int32(num protowire.Number) int32 {
	return int32(f.Uint(num))
}

// Int64 returns a scalar field as int64.
func (f Fields) Int64(num protowire.Number) int64 {
	return int64(f.Uint(num))
}

// Bool returns a scalar field as bool.
func (f Fields) Bool(num protowire.Number) bool {
	return protowire.DecodeBool(f.Uint(num))
}

// Bytes returns the last value of a length-delimited field.
func (f Fields) Bytes(num protowire.Number) []byte {
	field, _ := f.last(num)
	return field.Bytes
}

// String returns a length-delimited field as string.
func (f Fields) String(num protowire.Number) string {
	return string(f.Bytes(num))
}

// Message decodes a nested message field. An absent field decodes as empty.
func (f Fields) Message(num protowire.Number) (Fields, error) {
	return ParseFields(f.Bytes(num))
}

// Repeated returns every occurrence of num in wire order.
func (f Fields) Repeated(num protowire.Number) []Field {
	var out []Field
	for _, field := range f {
		if field.Number == num {
			out = append(out, field)
		}
	}
	return out
}

// RepeatedUint returns a repeated scalar field, accepting both packed and
// unpacked encodings.
func (f Fields) RepeatedUint(num protowire.Number) []uint64 {
	var out []uint64
	for _, field := range f.Repeated(num) {
		if field.Type != protowire.BytesType {
			out = append(out, field.Varint)
			continue
		}
		packed := field.Bytes
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				break
			}
			out = append(out, v)
			packed = packed[n:]
		}
	}
	return out
}
