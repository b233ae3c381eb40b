package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yaq-go/yaqd-rgb/pkg/config"
	"github.com/yaq-go/yaqd-rgb/pkg/discovery"
	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/transport"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "call <message> [value | name=value]...",
		Short: "Call a message and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *transport.Client) error {
				result, err := ctx.callMessage(c, client, args[0], args[1:])
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), result, ctx.jsonOut)
			})
		},
	}
}

func newIDCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Show the daemon's name, kind and hardware identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *transport.Client) error {
				result, err := ctx.call(c, client, "id", nil)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), result, ctx.jsonOut)
			})
		},
	}
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <property>...",
		Short: "Read properties",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *transport.Client) error {
				readings := make([]*propertyReading, 0, len(args))
				for _, name := range args {
					r, err := ctx.getProperty(c, client, name)
					if err != nil {
						return err
					}
					readings = append(readings, r)
				}
				return printReadings(cmd.OutOrStdout(), readings, ctx.jsonOut)
			})
		},
	}
}

func printReadings(w io.Writer, readings []*propertyReading, asJSON bool) error {
	if asJSON {
		return writeJSON(w, readings)
	}
	for _, r := range readings {
		value := formatValue(r.Value)
		if r.Units != "" {
			value += " " + r.Units
		}
		fmt.Fprintf(w, "%s = %s\n", r.Name, value)
	}
	return nil
}

func newSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <property> <value>",
		Short: "Write a property and print the value the daemon applied",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *transport.Client) error {
				if err := ctx.setProperty(c, client, args[0], args[1]); err != nil {
					return err
				}
				r, err := ctx.getProperty(c, client, args[0])
				if err != nil {
					return err
				}
				return printReadings(cmd.OutOrStdout(), []*propertyReading{r}, ctx.jsonOut)
			})
		},
	}
}

func newMeasureCommand(ctx *commandContext) *cobra.Command {
	opts := measureOptions{Wait: true}
	var noWait bool

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Trigger a measurement and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Wait = !noWait
			return ctx.withClient(cmd, func(c context.Context, client *transport.Client) error {
				result, err := ctx.measure(c, client, opts)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), result, ctx.jsonOut)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Loop, "loop", false, "Keep measuring until stop_looping")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Print the measurement id without waiting for data")
	cmd.Flags().DurationVar(&opts.Poll, "poll", defaultPollInterval, "Interval between get_measured polls")
	return cmd
}

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe [message | property]",
		Short: "Describe the rgb-qmini protocol",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.protocol()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			switch format {
			case "":
			case "toml":
				data, err := p.MarshalTOML()
				if err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			case "yaml":
				data, err := p.MarshalYAML()
				if err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			default:
				return fmt.Errorf("unknown format %q (toml, yaml)", format)
			}

			if len(args) == 1 {
				return describeOne(w, p, args[0])
			}
			describeAll(w, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Print the expanded descriptor as toml or yaml")
	return cmd
}

func formatParams(msg *protocol.Message) string {
	parts := make([]string, len(msg.Request))
	for i, p := range msg.Request {
		s := p.Name + ": " + p.Type.String()
		if p.HasDefault {
			s += " = " + formatValue(p.Default)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func describeAll(w io.Writer, p *protocol.Protocol) {
	fmt.Fprintf(w, "%s\n", p.Name)
	if p.Doc != "" {
		fmt.Fprintf(w, "%s\n", p.Doc)
	}
	fmt.Fprintf(w, "Traits: %s\n\n", strings.Join(p.Traits, ", "))

	tw := newTable(w, table.Row{"Property", "Type", "Getter", "Setter", "Units", "Limits"})
	for _, name := range p.PropertyNames() {
		prop := p.Properties[name]
		tw.AppendRow(table.Row{name, prop.Type.String(), prop.Getter, prop.Setter, prop.UnitsGetter, prop.LimitsGetter})
	}
	tw.Render()
	fmt.Fprintln(w)

	tw = newTable(w, table.Row{"Message", "Parameters", "Returns", "Trait"})
	for _, name := range p.MessageNames() {
		msg := p.Messages[name]
		tw.AppendRow(table.Row{name, formatParams(msg), msg.Response.String(), msg.Origin})
	}
	tw.Render()
}

func describeOne(w io.Writer, p *protocol.Protocol, name string) error {
	if prop, ok := p.Properties[name]; ok {
		fmt.Fprintf(w, "property %s: %s\n", name, prop.Type.String())
		for _, row := range [][2]string{
			{"getter", prop.Getter},
			{"setter", prop.Setter},
			{"units", prop.UnitsGetter},
			{"limits", prop.LimitsGetter},
			{"options", prop.OptionsGetter},
			{"control_kind", prop.ControlKind},
			{"record_kind", prop.RecordKind},
		} {
			if row[1] != "" {
				fmt.Fprintf(w, "  %-13s %s\n", row[0], row[1])
			}
		}
		return nil
	}

	msg, ok := p.Message(name)
	if !ok {
		return fmt.Errorf("%s is neither a message nor a property of %s", name, p.Name)
	}
	fmt.Fprintf(w, "%s(%s) -> %s\n", msg.Name, formatParams(msg), msg.Response.String())
	if msg.Doc != "" {
		fmt.Fprintf(w, "  %s\n", msg.Doc)
	}
	if msg.Origin != "" {
		fmt.Fprintf(w, "  from trait %s\n", msg.Origin)
	}
	return nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		all  bool
		wait time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List daemons advertised over mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			browser, err := ctx.newBrowser()
			if err != nil {
				return err
			}

			c, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			var filters []discovery.FilterFunc
			if !all {
				filters = append(filters, discovery.FilterByKind(config.Kind))
			}
			services, err := discovery.Collect(c, browser, filters...)
			if err != nil {
				return err
			}
			sort.Slice(services, func(i, j int) bool {
				return services[i].InstanceName < services[j].InstanceName
			})
			return printServices(cmd, services, ctx.jsonOut)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include daemons of every kind")
	cmd.Flags().DurationVar(&wait, "wait", discovery.BrowseTimeout, "How long to browse")
	return cmd
}

func printServices(cmd *cobra.Command, services []*discovery.Service, asJSON bool) error {
	w := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(w, services)
	}
	if len(services) == 0 {
		fmt.Fprintln(w, "No daemons found")
		return nil
	}
	tw := newTable(w, table.Row{"Name", "Kind", "Address", "Make", "Model", "Serial", "Version"})
	for _, s := range services {
		tw.AppendRow(table.Row{s.Name, s.Kind, s.Address(), s.Make, s.Model, s.Serial, s.Version})
	}
	tw.Render()
	return nil
}

func newShellCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with one daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *transport.Client) error {
				sh, err := newShell(ctx, client)
				if err != nil {
					return err
				}
				return sh.Run(c)
			})
		},
	}
}
