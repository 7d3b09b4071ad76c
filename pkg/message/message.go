package message

import (
	"strconv"
	"time"
)

// Kind identifies the value carried by a Message
type Kind int

const (
	// KindDouble is a numeric value
	KindDouble Kind = iota

	// KindString is a text value
	KindString

	// KindBinary is an opaque byte string
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the defined kinds
func (k Kind) Valid() bool {
	return k >= KindDouble && k <= KindBinary
}

// Message is a single named notification.
type Message struct {
	// Name is the variable name (the key) of the notification
	Name string

	// Source is the name of the application that published it
	Source string

	// SourceAux carries auxiliary source information, if any
	SourceAux string

	// Community is the name of the community the publisher belongs to
	Community string

	// Kind selects which of Double, Text or Data holds the value
	Kind Kind

	Double float64
	Text   string
	Data   []byte

	// Time is when the value was published
	Time time.Time
}

// NewDouble creates a numeric message stamped with the current time
func NewDouble(name string, value float64) *Message {
	return &Message{
		Name:   name,
		Kind:   KindDouble,
		Double: value,
		Time:   time.Now(),
	}
}

// NewString creates a text message stamped with the current time
func NewString(name, value string) *Message {
	return &Message{
		Name: name,
		Kind: KindString,
		Text: value,
		Time: time.Now(),
	}
}

// NewBinary creates a binary message stamped with the current time.
// The data is copied.
func NewBinary(name string, data []byte) *Message {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	return &Message{
		Name: name,
		Kind: KindBinary,
		Data: dataCopy,
		Time: time.Now(),
	}
}

// Copy returns a deep copy of the message
func (m *Message) Copy() *Message {
	c := *m
	if m.Data != nil {
		c.Data = make([]byte, len(m.Data))
		copy(c.Data, m.Data)
	}
	return &c
}

// Rename returns a copy of the message carrying a different name.
// The receiver is left untouched so one notification can be renamed once per route.
func (m *Message) Rename(name string) *Message {
	c := m.Copy()
	c.Name = name
	return c
}

// ValueString renders the value for logs and status output
func (m *Message) ValueString() string {
	switch m.Kind {
	case KindDouble:
		return strconv.FormatFloat(m.Double, 'g', -1, 64)
	case KindString:
		return m.Text
	case KindBinary:
		return "<" + strconv.Itoa(len(m.Data)) + " bytes>"
	default:
		return ""
	}
}

// IsDouble reports whether the message carries a numeric value
func (m *Message) IsDouble() bool {
	return m.Kind == KindDouble
}

// IsString reports whether the message carries a text value
func (m *Message) IsString() bool {
	return m.Kind == KindString
}
