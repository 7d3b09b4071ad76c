package message

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrMalformed is returned when a buffer cannot be decoded into a Message
	ErrMalformed = errors.New("malformed message record")
	// ErrNilMessage is returned when a nil message is marshaled
	ErrNilMessage = errors.New("message cannot be nil")
)

// Codec converts messages to and from datagram payloads
type Codec interface {
	// Size returns the exact number of bytes Marshal will produce for m
	Size(m *Message) int

	// Marshal encodes m
	Marshal(m *Message) ([]byte, error)

	// Unmarshal decodes a buffer produced by Marshal
	Unmarshal(b []byte) (*Message, error)
}

// Field numbers of the wire record
const (
	fieldName      protowire.Number = 1
	fieldSource    protowire.Number = 2
	fieldSourceAux protowire.Number = 3
	fieldCommunity protowire.Number = 4
	fieldKind      protowire.Number = 5
	fieldDouble    protowire.Number = 6
	fieldText      protowire.Number = 7
	fieldData      protowire.Number = 8
	fieldTime      protowire.Number = 9
)

// ProtoCodec encodes messages using the protobuf wire format.
// Empty fields are omitted and unknown fields are skipped on decode.
type ProtoCodec struct{}

// Size returns the encoded size of m
func (ProtoCodec) Size(m *Message) int {
	if m == nil {
		return 0
	}

	n := sizeString(fieldName, m.Name)
	n += sizeString(fieldSource, m.Source)
	n += sizeString(fieldSourceAux, m.SourceAux)
	n += sizeString(fieldCommunity, m.Community)
	n += protowire.SizeTag(fieldKind) + protowire.SizeVarint(uint64(m.Kind))

	switch m.Kind {
	case KindDouble:
		n += protowire.SizeTag(fieldDouble) + protowire.SizeFixed64()
	case KindString:
		n += sizeString(fieldText, m.Text)
	case KindBinary:
		if len(m.Data) > 0 {
			n += protowire.SizeTag(fieldData) + protowire.SizeBytes(len(m.Data))
		}
	}

	if !m.Time.IsZero() {
		n += protowire.SizeTag(fieldTime) + protowire.SizeVarint(protowire.EncodeZigZag(m.Time.UnixNano()))
	}
	return n
}

// Marshal encodes m into a new buffer
func (c ProtoCodec) Marshal(m *Message) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("cannot marshal %q: unknown kind %d", m.Name, m.Kind)
	}

	b := make([]byte, 0, c.Size(m))
	b = appendString(b, fieldName, m.Name)
	b = appendString(b, fieldSource, m.Source)
	b = appendString(b, fieldSourceAux, m.SourceAux)
	b = appendString(b, fieldCommunity, m.Community)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind))

	switch m.Kind {
	case KindDouble:
		b = protowire.AppendTag(b, fieldDouble, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.Double))
	case KindString:
		b = appendString(b, fieldText, m.Text)
	case KindBinary:
		if len(m.Data) > 0 {
			b = protowire.AppendTag(b, fieldData, protowire.BytesType)
			b = protowire.AppendBytes(b, m.Data)
		}
	}

	if !m.Time.IsZero() {
		b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Time.UnixNano()))
	}
	return b, nil
}

// Unmarshal decodes b. A record without a name is malformed.
func (ProtoCodec) Unmarshal(b []byte) (*Message, error) {
	m := &Message{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: kind: %v", ErrMalformed, protowire.ParseError(n))
			}
			m.Kind = Kind(v)
			b = b[n:]

		case num == fieldDouble && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: double: %v", ErrMalformed, protowire.ParseError(n))
			}
			m.Double = math.Float64frombits(v)
			b = b[n:]

		case num == fieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: time: %v", ErrMalformed, protowire.ParseError(n))
			}
			m.Time = time.Unix(0, protowire.DecodeZigZag(v))
			b = b[n:]

		case typ == protowire.BytesType && num >= fieldName && num <= fieldData:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			setBytesField(m, num, v)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if m.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrMalformed)
	}
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, m.Kind)
	}
	return m, nil
}

func setBytesField(m *Message, num protowire.Number, v []byte) {
	switch num {
	case fieldName:
		m.Name = string(v)
	case fieldSource:
		m.Source = string(v)
	case fieldSourceAux:
		m.SourceAux = string(v)
	case fieldCommunity:
		m.Community = string(v)
	case fieldText:
		m.Text = string(v)
	case fieldData:
		m.Data = append([]byte(nil), v...)
	}
}

func sizeString(num protowire.Number, s string) int {
	if s == "" {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(len(s))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Verify that ProtoCodec implements Codec at compile time
var _ Codec = ProtoCodec{}
