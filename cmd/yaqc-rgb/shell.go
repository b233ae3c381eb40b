package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/yaq-go/yaqd-rgb/pkg/transport"
)

var errQuit = errors.New("quit")

// shell is the interactive session of yaqc-rgb shell.
type shell struct {
	ctx    *commandContext
	client *transport.Client
	rl     *readline.Instance
	out    io.Writer
}

func newShell(ctx *commandContext, client *transport.Client) (*shell, error) {
	p, err := ctx.protocol()
	if err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          p.Name + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &shell{ctx: ctx, client: client, rl: rl, out: rl.Stdout()}, nil
}

// completer offers command words, message names and property names.
func completer(ctx *commandContext) readline.AutoCompleter {
	p, err := ctx.protocol()
	if err != nil {
		return nil
	}
	messages := make([]readline.PrefixCompleterInterface, 0, len(p.Messages))
	for _, name := range p.MessageNames() {
		messages = append(messages, readline.PcItem(name))
	}
	properties := func() []readline.PrefixCompleterInterface {
		items := make([]readline.PrefixCompleterInterface, 0, len(p.Properties))
		for _, name := range p.PropertyNames() {
			items = append(items, readline.PcItem(name))
		}
		return items
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("call", messages...),
		readline.PcItem("get", properties()...),
		readline.PcItem("set", properties()...),
		readline.PcItem("describe", append(properties(), messages...)...),
		readline.PcItem("measure", readline.PcItem("loop")),
		readline.PcItem("stop"),
		readline.PcItem("id"),
		readline.PcItem("json"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// Run reads commands until quit, EOF or ctx ends.
func (s *shell) Run(ctx context.Context) error {
	defer s.rl.Close()

	s.printHelp()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}

		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Fprintln(s.out, "Exiting...")
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// exec runs one shell line.
func (s *shell) exec(ctx context.Context, line string) error {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
		return nil

	case "id":
		result, err := s.ctx.call(ctx, s.client, "id", nil)
		if err != nil {
			return err
		}
		return printResult(s.out, result, s.ctx.jsonOut)

	case "call", "c":
		if len(args) == 0 {
			return errors.New("usage: call <message> [value | name=value]")
		}
		result, err := s.ctx.callMessage(ctx, s.client, args[0], args[1:])
		if err != nil {
			return err
		}
		return printResult(s.out, result, s.ctx.jsonOut)

	case "get", "g":
		if len(args) == 0 {
			return errors.New("usage: get <property> [property]")
		}
		readings := make([]*propertyReading, 0, len(args))
		for _, name := range args {
			r, err := s.ctx.getProperty(ctx, s.client, name)
			if err != nil {
				return err
			}
			readings = append(readings, r)
		}
		return printReadings(s.out, readings, s.ctx.jsonOut)

	case "set", "s":
		if len(args) != 2 {
			return errors.New("usage: set <property> <value>")
		}
		return s.ctx.setProperty(ctx, s.client, args[0], args[1])

	case "measure", "m":
		opts := measureOptions{Wait: true}
		if len(args) > 0 && args[0] == "loop" {
			opts.Loop = true
			opts.Wait = false
		}
		result, err := s.ctx.measure(ctx, s.client, opts)
		if err != nil {
			return err
		}
		return printResult(s.out, result, s.ctx.jsonOut)

	case "stop":
		_, err := s.ctx.call(ctx, s.client, "stop_looping", nil)
		return err

	case "describe", "d":
		p, err := s.ctx.protocol()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			return describeOne(s.out, p, args[0])
		}
		describeAll(s.out, p)
		return nil

	case "json":
		s.ctx.jsonOut = !s.ctx.jsonOut
		fmt.Fprintf(s.out, "JSON output: %v\n", s.ctx.jsonOut)
		return nil

	case "quit", "exit", "q":
		return errQuit

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `
Commands:
  id                          - Show daemon identity
  get <property>...           - Read properties (e.g. get exposure_time)
  set <property> <value>      - Write a property
  call <message> [args]...    - Call any message; args are values or name=value
  measure [loop]              - Measure once and print, or start looping
  stop                        - Stop looping
  describe [name]             - Describe the protocol, a message or a property
  json                        - Toggle JSON output
  help                        - Show this help
  quit                        - Exit`)
}
