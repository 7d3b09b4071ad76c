package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliases_Channel(t *testing.T) {
	aliases := DefaultAliases()

	ep, err := aliases.Channel(5)
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "224.1.1.11", Port: 24465}, ep)

	_, err = aliases.Channel(MaxChannels)
	assert.ErrorIs(t, err, ErrChannelRange)

	_, err = aliases.Channel(-1)
	assert.ErrorIs(t, err, ErrChannelRange)
}

func TestAliases_Channel_PortOverflow(t *testing.T) {
	aliases := Aliases{Base: Endpoint{Host: "224.1.1.11", Port: 65500}}

	_, err := aliases.Channel(100)
	assert.ErrorIs(t, err, ErrChannelRange)
}

func TestAliases_AliasOf(t *testing.T) {
	aliases := DefaultAliases()

	name, err := aliases.AliasOf(Endpoint{Host: "224.1.1.11", Port: 24468})
	require.NoError(t, err)
	assert.Equal(t, "multicast_8", name)

	_, err = aliases.AliasOf(Endpoint{Host: "224.1.1.11", Port: 24000})
	assert.ErrorIs(t, err, ErrBelowBasePort)
}

func TestParseAlias(t *testing.T) {
	n, ok, err := ParseAlias("multicast_21")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 21, n)

	_, ok, err = ParseAlias("localhost:9000")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParseAlias("multicast_x")
	assert.True(t, ok)
	assert.Error(t, err)

	_, ok, err = ParseAlias("multicast_999")
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrChannelRange)
}
