package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return buildRootCommand(newCommandContext())
}

func buildRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "yaqc-rgb",
		Short:         "Client for rgb-qmini yaq daemons",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.host, "host", "127.0.0.1", "Daemon host")
	flags.IntVarP(&ctx.port, "port", "p", 0, "Daemon port")
	flags.StringVarP(&ctx.name, "name", "n", "", "Find the daemon by name over mDNS instead of --host/--port")
	flags.DurationVar(&ctx.timeout, "timeout", 5*time.Second, "Timeout for each request")
	flags.BoolVar(&ctx.jsonOut, "json", false, "Print results as JSON")
	flags.StringVar(&ctx.protocolLog, "protocol-log", "", "Append protocol events to this file")

	rootCmd.AddCommand(newCallCommand(ctx))
	rootCmd.AddCommand(newIDCommand(ctx))
	rootCmd.AddCommand(newGetCommand(ctx))
	rootCmd.AddCommand(newSetCommand(ctx))
	rootCmd.AddCommand(newMeasureCommand(ctx))
	rootCmd.AddCommand(newDescribeCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShellCommand(ctx))

	return rootCmd
}
