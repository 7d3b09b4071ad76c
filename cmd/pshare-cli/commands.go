package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pshare-go/pkg/httpclient"
)

func newOutputCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "output <fields>",
		Short: "Add output routes",
		Long: `Add output routes to the running relay. Fields use the mission-file
long form without the cmd prefix, for example:

  pshare-cli output "src_name=NAV_X,dest_name=X,route=localhost:9000&multicast_2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRouteCommand(cmd, args[0], client.AddOutput)
		},
	}
}

func newInputCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "input <fields>",
		Short: "Add input listeners",
		Long: `Add input listeners to the running relay, for example:

  pshare-cli input "route=localhost:9001&multicast_3"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRouteCommand(cmd, args[0], client.AddInput)
		},
	}
}

type routeFunc func(ctx context.Context, fields string) (*httpclient.CommandResponse, error)

func runRouteCommand(cmd *cobra.Command, fields string, send routeFunc) error {
	if err := requireAuthentication(); err != nil {
		return err
	}
	if strings.TrimSpace(fields) == "" {
		return fmt.Errorf("route fields must not be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := send(ctx, fields)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ Applied: %s\n", resp.Command)
	fmt.Fprintf(out, "Output routes: %d, wildcard rules: %d, listeners: %d\n",
		len(resp.Routes.Outputs), len(resp.Routes.Wildcards), len(resp.Routes.Inputs))
	return nil
}
