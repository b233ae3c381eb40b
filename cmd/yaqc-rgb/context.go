package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaq-go/yaqd-rgb/pkg/config"
	"github.com/yaq-go/yaqd-rgb/pkg/discovery"
	protolog "github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
	"github.com/yaq-go/yaqd-rgb/pkg/transport"
)

var errNoAddress = errors.New("no daemon selected: use --port or --name")

type commandContext struct {
	host        string
	port        int
	name        string
	timeout     time.Duration
	jsonOut     bool
	protocolLog string

	// newBrowser is replaced in tests.
	newBrowser func() (discovery.Browser, error)

	protoOnce sync.Once
	proto     *protocol.Protocol
	protoErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{
		newBrowser: func() (discovery.Browser, error) {
			return discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
		},
	}
}

// protocol returns the embedded descriptor the daemons implement.
func (c *commandContext) protocol() (*protocol.Protocol, error) {
	c.protoOnce.Do(func() {
		c.proto, c.protoErr = protocol.Default()
	})
	return c.proto, c.protoErr
}

// address resolves the daemon to dial.
func (c *commandContext) address(ctx context.Context) (string, error) {
	if c.name != "" {
		browser, err := c.newBrowser()
		if err != nil {
			return "", err
		}
		svc, err := browser.Find(ctx, c.name)
		if err != nil {
			return "", err
		}
		if svc.Kind != "" && svc.Kind != config.Kind {
			return "", fmt.Errorf("daemon %s is a %s, not a %s", c.name, svc.Kind, config.Kind)
		}
		return svc.Address(), nil
	}
	if c.port <= 0 {
		return "", errNoAddress
	}
	return net.JoinHostPort(c.host, strconv.Itoa(c.port)), nil
}

// dial connects to the selected daemon. The returned func closes the
// connection and the protocol log.
func (c *commandContext) dial(ctx context.Context) (*transport.Client, func(), error) {
	addr, err := c.address(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := transport.ClientConfig{ConnectTimeout: c.timeout}
	var fl *protolog.FileLogger
	if c.protocolLog != "" {
		fl, err = protolog.NewFileLogger(c.protocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open protocol log: %w", err)
		}
		cfg.Logger = fl
	}

	client, err := transport.Dial(ctx, addr, cfg)
	if err != nil {
		if fl != nil {
			_ = fl.Close()
		}
		return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	return client, func() {
		_ = client.Close()
		if fl != nil {
			_ = fl.Close()
		}
	}, nil
}

// withClient dials, runs fn and disconnects.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(context.Context, *transport.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, closeFn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, client)
}

// call sends one request bounded by --timeout.
func (c *commandContext) call(ctx context.Context, client transport.Caller, method string, params map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return client.Call(ctx, method, params)
}
