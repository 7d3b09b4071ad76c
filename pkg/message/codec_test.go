package message

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestProtoCodec_RoundTrip(t *testing.T) {
	codec := ProtoCodec{}
	stamp := time.Unix(1700000000, 123456789)

	tests := []*Message{
		{Name: "DEPTH", Source: "iSensor", Community: "alpha", Kind: KindDouble, Double: -4.25, Time: stamp},
		{Name: "MODE", Source: "pHelm", SourceAux: "b1", Kind: KindString, Text: "SURVEYING", Time: stamp},
		{Name: "IMAGE", Kind: KindBinary, Data: []byte{0, 1, 2, 255}},
	}

	for _, msg := range tests {
		t.Run(msg.Name, func(t *testing.T) {
			b, err := codec.Marshal(msg)
			require.NoError(t, err)
			assert.Equal(t, codec.Size(msg), len(b), "Size must predict encoded length")

			got, err := codec.Unmarshal(b)
			require.NoError(t, err)
			assert.Equal(t, msg.Name, got.Name)
			assert.Equal(t, msg.Source, got.Source)
			assert.Equal(t, msg.SourceAux, got.SourceAux)
			assert.Equal(t, msg.Community, got.Community)
			assert.Equal(t, msg.Kind, got.Kind)
			assert.Equal(t, msg.Double, got.Double)
			assert.Equal(t, msg.Text, got.Text)
			assert.Equal(t, msg.Data, got.Data)
			assert.True(t, msg.Time.Equal(got.Time), "time %v != %v", msg.Time, got.Time)
		})
	}
}

func TestProtoCodec_UnmarshalMalformed(t *testing.T) {
	codec := ProtoCodec{}

	valid, err := codec.Marshal(NewString("X", "payload"))
	require.NoError(t, err)

	cases := map[string][]byte{
		"truncated": valid[:len(valid)-2],
		"garbage":   {0xff, 0xff, 0xff},
		"no name":   protowire.AppendVarint(protowire.AppendTag(nil, fieldKind, protowire.VarintType), 1),
		"bad kind":  append(appendString(nil, fieldName, "X"), protowire.AppendVarint(protowire.AppendTag(nil, fieldKind, protowire.VarintType), 7)...),
	}

	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Unmarshal(b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "expected ErrMalformed, got %v", err)
		})
	}
}

func TestProtoCodec_SkipsUnknownFields(t *testing.T) {
	codec := ProtoCodec{}

	b, err := codec.Marshal(NewDouble("X", 1))
	require.NoError(t, err)

	b = protowire.AppendTag(b, 42, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	got, err := codec.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, "X", got.Name)
	assert.Equal(t, 1.0, got.Double)
}

func TestProtoCodec_MarshalNil(t *testing.T) {
	_, err := ProtoCodec{}.Marshal(nil)
	assert.ErrorIs(t, err, ErrNilMessage)
}
