package shareconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const missionFile = `
// mission file with two process blocks
ServerPort = 9000

ProcessConfig = pHelm
{
  Output = src_name=WRONG,route=localhost:1
}

ProcessConfig = pShare
{
  AppTick = 20
  multicast_base_port = 25000
  multicast_address = 224.1.1.12
  Verbose = true

  Output = src_name=X,dest_name=Y,route=localhost:9010  // unicast share
  output = NAV_*->multicast_2
  Input = route=multicast_2&localhost:9020,white_list=FOO*
  http_listen = :8080
}
`

func TestLoadMission(t *testing.T) {
	var s Settings
	require.NoError(t, LoadMission(strings.NewReader(missionFile), "pShare", &s))

	assert.Equal(t, 25000, s.MulticastBasePort)
	assert.Equal(t, "224.1.1.12", s.MulticastAddress)
	assert.True(t, s.Verbose)
	assert.Equal(t, 50*time.Millisecond, s.AppTick)
	assert.Equal(t, ":8080", s.HTTPListen)
	assert.Equal(t, []string{
		"src_name=X,dest_name=Y,route=localhost:9010",
		"NAV_*->multicast_2",
	}, s.Outputs)
	assert.Equal(t, []string{"route=multicast_2&localhost:9020,white_list=FOO*"}, s.Inputs)
}

func TestLoadMission_MissingBlock(t *testing.T) {
	var s Settings
	err := LoadMission(strings.NewReader(missionFile), "pOther", &s)
	assert.ErrorContains(t, err, "no ProcessConfig block")
}

func TestLoadMission_Malformed(t *testing.T) {
	tests := map[string]string{
		"missing brace":     "ProcessConfig = pShare\nOutput = x\n",
		"unterminated":      "ProcessConfig = pShare\n{\nOutput = x\n",
		"not an assignment": "ProcessConfig = pShare\n{\njunk\n}\n",
		"bad port":          "ProcessConfig = pShare\n{\nmulticast_base_port = abc\n}\n",
		"bad apptick":       "ProcessConfig = pShare\n{\nAppTick = 0\n}\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			var s Settings
			assert.Error(t, LoadMission(strings.NewReader(content), "pShare", &s))
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pshare.yaml")
	content := `
app_name: pShare2
multicast_base_port: 24000
verbose: true
app_tick: 100ms
outputs:
  - X->Y:localhost:9010
inputs:
  - route=localhost:9020
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var s Settings
	require.NoError(t, Load(path, "ignored", &s))
	s.SetDefaults()
	require.NoError(t, s.Validate())

	assert.Equal(t, "pShare2", s.AppName)
	assert.Equal(t, 24000, s.MulticastBasePort)
	assert.Equal(t, 100*time.Millisecond, s.AppTick)
	assert.Equal(t, []string{"X->Y:localhost:9010"}, s.Outputs)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)
}

func TestLoad_YAMLUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_field: 1\n"), 0o600))

	var s Settings
	assert.Error(t, Load(path, "pShare", &s))
}

func TestLoad_MissionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicle.moos")
	require.NoError(t, os.WriteFile(path, []byte(missionFile), 0o600))

	var s Settings
	require.NoError(t, Load(path, "pShare", &s))
	assert.Len(t, s.Outputs, 2)
}

func TestLoad_MissingFile(t *testing.T) {
	var s Settings
	assert.Error(t, Load(filepath.Join(t.TempDir(), "absent.moos"), "pShare", &s))
}
