package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pshare-go/pkg/httpclient"
)

var (
	// Global flags
	serverURL string
	clientID  string
	token     string
	timeout   time.Duration
	noAuth    bool

	// Global client instance
	client *httpclient.Client
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pshare-cli",
		Short: "pShare admin API command line interface",
		Long: `pshare-cli talks to the admin API of a running pShare relay.
It can check relay health, print the routing table and add output or input
routes at runtime.`,
		PersistentPreRunE: initializeClient,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "pShare admin API URL")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "Client ID for authentication")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT token (if already authenticated)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&noAuth, "no-auth", false, "Skip authentication (for relays started with --no-auth)")

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newRoutesCommand())
	rootCmd.AddCommand(newOutputCommand())
	rootCmd.AddCommand(newInputCommand())

	return rootCmd
}

// initializeClient sets up the HTTP client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	if !noAuth && clientID == "" {
		return fmt.Errorf("client-id is required (unless using --no-auth)")
	}

	effectiveClientID := clientID
	if noAuth && effectiveClientID == "" {
		effectiveClientID = "dev-client"
	}

	config := httpclient.Config{
		ServerURL: serverURL,
		ClientID:  effectiveClientID,
		Timeout:   timeout,
	}

	var err error
	client, err = httpclient.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if token != "" {
		client.SetToken(token)
	} else if noAuth {
		// the server ignores the token in no-auth mode
		client.SetToken("no-auth-mode")
	}

	return nil
}

// requireAuthentication checks if the client is authenticated
func requireAuthentication() error {
	if client == nil {
		return fmt.Errorf("client not initialized")
	}

	if noAuth {
		return nil
	}

	if !client.IsAuthenticated() {
		return fmt.Errorf("not authenticated - run 'pshare-cli auth' first or provide --token")
	}
	return nil
}
