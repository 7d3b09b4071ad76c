package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rmacdonaldsmith/pshare-go/internal/health"
	"github.com/rmacdonaldsmith/pshare-go/internal/localbus"
	"github.com/rmacdonaldsmith/pshare-go/internal/relay"
	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
)

const missionFile = `
ProcessConfig = ANTLER
{
  MSBetweenLaunches = 200
}

ProcessConfig = pShare
{
  AppTick = 4
  Output = src_name=NAV_X,dest_name=X,route=127.0.0.1:19000
  Output = NAV_Y->Y:127.0.0.1:19001@2
  Input = route=127.0.0.1:19002
  multicast_base_port = 24500
}

ProcessConfig = pShareB
{
  Output = Q->127.0.0.1:19020
}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootCmd := newRootCommand()
	output := &bytes.Buffer{}
	rootCmd.SetOut(output)
	rootCmd.SetErr(output)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return output.String(), err
}

func freeTCPAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pShare v0.1.0\n", out)
}

func TestMainCommandHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, name := range []string{"run", "routes", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRoutesCommand_MissionFile(t *testing.T) {
	path := writeFile(t, "alpha.moos", missionFile)

	out, err := execute(t, "routes", path)
	require.NoError(t, err)

	assert.Contains(t, out, "NAV_X")
	assert.Contains(t, out, "127.0.0.1:19001")
	assert.Contains(t, out, "@ 2Hz")
	assert.Contains(t, out, "127.0.0.1:19002")
	assert.Contains(t, out, "Configured")
}

func TestRoutesCommand_Flags(t *testing.T) {
	out, err := execute(t, "routes",
		"-o", "DEPTH->multicast_3,SPEED->127.0.0.1:19005",
		"-i", "multicast_1",
		"--multicast-base-port", "24600")
	require.NoError(t, err)

	assert.Contains(t, out, "DEPTH")
	assert.Contains(t, out, "224.1.1.11:24603 (multicast_3)")
	assert.Contains(t, out, "SPEED")
	assert.Contains(t, out, "224.1.1.11:24601 (multicast_1)")
}

func TestRoutesCommand_BadRoute(t *testing.T) {
	_, err := execute(t, "routes", "-o", "NO_ARROW")
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	path := writeFile(t, "alpha.moos", missionFile)

	t.Run("defaults without a file", func(t *testing.T) {
		cmd := &cobra.Command{Use: "run"}
		var f settingsFlags
		f.register(cmd)
		s, err := loadSettings(cmd, nil, &f)
		require.NoError(t, err)
		assert.Equal(t, shareconfig.DefaultAppName, s.AppName)
		assert.Equal(t, 24460, s.MulticastBasePort)
		assert.Equal(t, shareconfig.DefaultAppTick, s.AppTick)
	})

	t.Run("flags override the file", func(t *testing.T) {
		cmd := &cobra.Command{Use: "run"}
		var f settingsFlags
		f.register(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--multicast-base-port", "25000", "--verbose", "-o", "A->127.0.0.1:1"}))

		s, err := loadSettings(cmd, []string{path}, &f)
		require.NoError(t, err)
		assert.Equal(t, 25000, s.MulticastBasePort)
		assert.True(t, s.Verbose)
		assert.Len(t, s.Outputs, 3)
		assert.Len(t, s.Inputs, 1)
	})

	t.Run("app name selects the block", func(t *testing.T) {
		cmd := &cobra.Command{Use: "run"}
		var f settingsFlags
		f.register(cmd)

		s, err := loadSettings(cmd, []string{path, "pShareB"}, &f)
		require.NoError(t, err)
		assert.Equal(t, "pShareB", s.AppName)
		assert.Equal(t, []string{"Q->127.0.0.1:19020"}, s.Outputs)
		assert.Equal(t, 24460, s.MulticastBasePort)
	})

	t.Run("invalid base port", func(t *testing.T) {
		cmd := &cobra.Command{Use: "run"}
		var f settingsFlags
		f.register(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--multicast-base-port", "70000"}))

		_, err := loadSettings(cmd, nil, &f)
		assert.ErrorIs(t, err, shareconfig.ErrInvalidBasePort)
	})
}

func TestApp_StartStop(t *testing.T) {
	settings := &shareconfig.Settings{
		AppName:          "pShare",
		Outputs:          []string{"NAV_X->X:127.0.0.1:19010"},
		GRPCHealthListen: freeTCPAddr(t),
		HTTPListen:       freeTCPAddr(t),
		NoAuth:           true,
	}
	settings.SetDefaults()
	settings.Log.Level = "error"

	var (
		engine    *relay.Engine
		community *localbus.Community
	)
	app := fxtest.New(t,
		appOptions(settings),
		fx.Populate(&engine, &community),
	)
	app.RequireStart()

	report := engine.Report()
	require.Len(t, report.Outputs, 1)
	assert.Equal(t, "NAV_X", report.Outputs[0].Source)
	assert.True(t, engine.Health().Healthy)

	conn, err := grpc.NewClient(settings.GRPCHealthListen, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: health.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	// the relay subscribed to NAV_X on start
	publisher, err := community.Connect("nav")
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(message.NewDouble("NAV_X", 12.5)))

	app.RequireStop()
	assert.False(t, engine.Health().Healthy)
}
