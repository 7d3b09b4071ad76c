package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
)

const shutdownTimeout = 30 * time.Second

func newRunCommand() *cobra.Command {
	var flags settingsFlags

	cmd := &cobra.Command{
		Use:   "run [mission-file] [app-name]",
		Short: "Run the relay",
		Long: `Run the relay with routes from an optional mission or YAML file and the
command line. The app name selects the "ProcessConfig = <app-name>" block of a
mission file and names the "<APPNAME>_CMD" command variable.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, args, &flags)
			if err != nil {
				return err
			}
			return runRelay(cmd.OutOrStdout(), settings)
		},
	}

	flags.register(cmd)
	return cmd
}

func runRelay(out io.Writer, settings *shareconfig.Settings) error {
	showStartupInfo(out, settings)

	app := newApp(settings)

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	fmt.Fprintf(out, "✅ %s started successfully!\n", settings.AppName)
	fmt.Fprintf(out, "💡 Use Ctrl+C to shutdown gracefully\n")

	sig := <-app.Wait()
	fmt.Fprintf(out, "🛑 Received %v, shutting down gracefully...\n", sig.Signal)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("error during graceful stop: %w", err)
	}

	fmt.Fprintf(out, "👋 %s stopped\n", settings.AppName)
	if sig.ExitCode != 0 {
		return fmt.Errorf("relay exited with code %d", sig.ExitCode)
	}
	return nil
}

// showStartupInfo prints the effective configuration before the relay starts
func showStartupInfo(out io.Writer, s *shareconfig.Settings) {
	fmt.Fprintf(out, "🚀 Starting %s v%s as %s\n", appName, appVersion, s.AppName)
	fmt.Fprintf(out, "📡 Multicast channels: %s:%d + N\n", s.MulticastAddress, s.MulticastBasePort)
	fmt.Fprintf(out, "📤 Output lines: %d\n", len(s.Outputs))
	fmt.Fprintf(out, "📥 Input lines: %d\n", len(s.Inputs))
	fmt.Fprintf(out, "✉️  Command variable: %s\n", s.CommandVar())
	if s.HTTPListen != "" {
		fmt.Fprintf(out, "🔌 Admin API: %s\n", s.HTTPListen)
	}
	if s.GRPCHealthListen != "" {
		fmt.Fprintf(out, "🏥 gRPC health: %s\n", s.GRPCHealthListen)
	}
}
