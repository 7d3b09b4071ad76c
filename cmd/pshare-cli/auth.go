package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the pShare admin API",
		Long: `Authenticate with the admin API using your client ID.
This generates a JWT token for subsequent requests. Use the client ID
"admin" to obtain a token that may add routes.`,
		RunE: runAuth,
	}
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authenticating with server %s as client %s...\n", serverURL, clientID)

	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	token := client.GetToken()
	fmt.Fprintf(out, "✅ Authentication successful!\n")
	fmt.Fprintf(out, "Token: %s\n", token)
	fmt.Fprintf(out, "\nSave this token for future use:\n")
	fmt.Fprintf(out, "  export PSHARE_TOKEN=\"%s\"\n", token)
	fmt.Fprintf(out, "  pshare-cli --token \"$PSHARE_TOKEN\" routes\n")

	return nil
}
