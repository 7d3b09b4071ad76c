package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check relay health",
		Long:  "Check the health status of the pShare relay",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checking health of %s...\n", serverURL)

	health, err := client.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Healthy {
		fmt.Fprintf(out, "✅ Relay is healthy!\n")
	} else {
		fmt.Fprintf(out, "❌ Relay is not healthy!\n")
	}
	fmt.Fprintf(out, "Running: %t\n", health.Running)
	fmt.Fprintf(out, "Output Routes: %d\n", health.OutputRoutes)
	fmt.Fprintf(out, "Wildcard Rules: %d\n", health.WildcardRules)
	fmt.Fprintf(out, "Listeners: %d\n", health.Listeners)
	fmt.Fprintf(out, "Sockets: %d\n", health.Senders)
	fmt.Fprintf(out, "Inbound Queue: %d\n", health.QueueDepth)
	if health.Message != "" {
		fmt.Fprintf(out, "Message: %s\n", health.Message)
	}

	return nil
}
