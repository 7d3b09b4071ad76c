package shareconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_SetDefaults(t *testing.T) {
	var s Settings
	s.SetDefaults()

	assert.Equal(t, "pShare", s.AppName)
	assert.Equal(t, "224.1.1.11", s.MulticastAddress)
	assert.Equal(t, 24460, s.MulticastBasePort)
	assert.Equal(t, 25*time.Millisecond, s.AppTick)
	assert.Equal(t, "info", s.Log.Level)
	require.NoError(t, s.Validate())

	aliases := s.Aliases()
	assert.Equal(t, "224.1.1.11", aliases.Base.Host)
	assert.Equal(t, uint16(24460), aliases.Base.Port)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"empty app name", func(s *Settings) { s.AppName = "" }, true},
		{"port too large", func(s *Settings) { s.MulticastBasePort = 70000 }, true},
		{"negative port", func(s *Settings) { s.MulticastBasePort = -1 }, true},
		{"unicast group", func(s *Settings) { s.MulticastAddress = "10.0.0.1" }, true},
		{"not an address", func(s *Settings) { s.MulticastAddress = "group" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Settings
			s.SetDefaults()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
