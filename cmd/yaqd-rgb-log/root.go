package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yaq-go/yaqd-rgb/cmd/yaqd-rgb-log/commands"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "yaqd-rgb-log",
		Short:         "Inspect yaq protocol capture files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newViewCommand(), newExportCommand(), newFilterCommand(), newStatsCommand())
	return root
}

func newViewCommand() *cobra.Command {
	var sel commands.Selection
	cmd := &cobra.Command{
		Use:   "view [flags] <file.ylog>",
		Short: "Print events in readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunView(args[0], sel, cmd.OutOrStdout())
		},
	}
	sel.Bind(cmd)
	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		sel    commands.Selection
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export [flags] <file.ylog>",
		Short: "Convert events to JSON lines or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return commands.RunExport(args[0], sel, format, w)
		},
	}
	sel.Bind(cmd)
	cmd.Flags().StringVar(&format, "format", "jsonl", "output format ("+strings.Join(commands.ExportFormats, ", ")+")")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newFilterCommand() *cobra.Command {
	var (
		sel    commands.Selection
		output string
	)
	cmd := &cobra.Command{
		Use:   "filter [flags] -o <out.ylog> <file.ylog>",
		Short: "Copy selected events into another capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := commands.RunFilter(args[0], sel, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, output)
			return nil
		},
	}
	sel.Bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output capture file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newStatsCommand() *cobra.Command {
	var sel commands.Selection
	cmd := &cobra.Command{
		Use:   "stats [flags] <file.ylog>",
		Short: "Summarize traffic, message timings and device commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], sel, cmd.OutOrStdout())
		},
	}
	sel.Bind(cmd)
	return cmd
}
