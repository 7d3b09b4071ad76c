package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pshare-go/internal/routereport"
)

func newRoutesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the relay routing table",
		Long:  "Print every output route, wildcard rule and listener of the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			report, err := client.GetRoutes(ctx)
			if err != nil {
				return fmt.Errorf("failed to get routes: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			routereport.Print(cmd.OutOrStdout(), *report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON report")
	return cmd
}
