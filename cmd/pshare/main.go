package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	// Application info
	appName    = "pShare"
	appVersion = "0.1.0"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pshare",
		Short: "Share bus variables between communities over UDP",
		Long: `pshare relays variables published on the local bus to remote communities
over UDP unicast or multicast, and republishes variables received from them.
Routes come from a mission file, a YAML config file or the command line.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRoutesCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", appName, appVersion)
		},
	}
}
