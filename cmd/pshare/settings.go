package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
)

// settingsFlags holds the command line overrides shared by run and routes
type settingsFlags struct {
	outputs           []string
	inputs            []string
	multicastAddress  string
	multicastBasePort int
	verbose           bool
	httpListen        string
	grpcHealthListen  string
	logLevel          string
	logFile           string
	noAuth            bool
	jwtSecret         string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVarP(&f.outputs, "output", "o", nil, "Comma separated shorthand output routes, e.g. X->Y:localhost:9000&multicast_2@2")
	flags.StringSliceVarP(&f.inputs, "input", "i", nil, "Comma separated input routes, e.g. localhost:9001&multicast_2")
	flags.StringVar(&f.multicastAddress, "multicast-address", "", "Base address of the multicast channels")
	flags.IntVar(&f.multicastBasePort, "multicast-base-port", 0, "Port of multicast_0")
	flags.BoolVar(&f.verbose, "verbose", false, "Log every send and every republished share")
	flags.StringVar(&f.httpListen, "http", "", "Admin API listen address, e.g. :8080 (disabled when empty)")
	flags.StringVar(&f.grpcHealthListen, "grpc-health", "", "gRPC health service listen address (disabled when empty)")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this rotated file")
	flags.BoolVar(&f.noAuth, "no-auth", false, "Disable admin API authentication (development only)")
	flags.StringVar(&f.jwtSecret, "jwt-secret", "", "Secret used to sign admin API tokens")
}

// loadSettings builds settings from defaults, the optional config file in
// args[0] and the command line, later sources overriding earlier ones.
// args[1], if present, names the application and its mission file block.
func loadSettings(cmd *cobra.Command, args []string, f *settingsFlags) (*shareconfig.Settings, error) {
	s := &shareconfig.Settings{}

	appName := shareconfig.DefaultAppName
	if len(args) > 1 {
		appName = strings.TrimSpace(args[1])
	}
	s.AppName = appName

	if len(args) > 0 && args[0] != "" {
		if err := shareconfig.Load(args[0], appName, s); err != nil {
			return nil, err
		}
		// the second argument renames the process even when the file sets a name
		if len(args) > 1 {
			s.AppName = appName
		}
	}

	flags := cmd.Flags()
	s.Outputs = append(s.Outputs, f.outputs...)
	s.Inputs = append(s.Inputs, f.inputs...)
	if flags.Changed("multicast-address") {
		s.MulticastAddress = f.multicastAddress
	}
	if flags.Changed("multicast-base-port") {
		s.MulticastBasePort = f.multicastBasePort
	}
	if flags.Changed("verbose") {
		s.Verbose = f.verbose
	}
	if flags.Changed("http") {
		s.HTTPListen = f.httpListen
	}
	if flags.Changed("grpc-health") {
		s.GRPCHealthListen = f.grpcHealthListen
	}
	if flags.Changed("log-level") {
		s.Log.Level = f.logLevel
	}
	if flags.Changed("log-file") {
		s.Log.File = f.logFile
	}
	if flags.Changed("no-auth") {
		s.NoAuth = f.noAuth
	}
	if flags.Changed("jwt-secret") {
		s.JWTSecret = f.jwtSecret
	}

	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}
