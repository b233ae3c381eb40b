package main

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/transport"
)

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	port := startDaemon(t)

	client, err := transport.Dial(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), transport.ClientConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := newCommandContext()
	ctx.timeout = 2 * time.Second
	var buf bytes.Buffer
	return &shell{ctx: ctx, client: client, out: &buf}, &buf
}

func TestShellGetSet(t *testing.T) {
	sh, buf := newTestShell(t)
	ctx := context.Background()

	require.NoError(t, sh.exec(ctx, "get exposure_time"))
	assert.Equal(t, "exposure_time = 0.1 s\n", buf.String())

	require.NoError(t, sh.exec(ctx, "set exposure_time 0.3"))
	buf.Reset()
	require.NoError(t, sh.exec(ctx, "g exposure_time"))
	assert.Equal(t, "exposure_time = 0.3 s\n", buf.String())

	buf.Reset()
	require.NoError(t, sh.exec(ctx, "call get_exposure_time_units"))
	assert.Equal(t, "s\n", buf.String())
}

func TestShellMeasure(t *testing.T) {
	sh, buf := newTestShell(t)
	ctx := context.Background()

	require.NoError(t, sh.exec(ctx, "json"))
	buf.Reset()
	require.NoError(t, sh.exec(ctx, "measure"))
	assert.Contains(t, buf.String(), `"measurement_id": 1`)

	buf.Reset()
	require.NoError(t, sh.exec(ctx, "measure loop"))
	require.NoError(t, sh.exec(ctx, "stop"))
}

func TestShellMisc(t *testing.T) {
	sh, buf := newTestShell(t)
	ctx := context.Background()

	require.NoError(t, sh.exec(ctx, ""))
	assert.Empty(t, buf.String())

	require.NoError(t, sh.exec(ctx, "describe exposure_time"))
	assert.Contains(t, buf.String(), "set_exposure_time")

	buf.Reset()
	require.NoError(t, sh.exec(ctx, "help"))
	assert.Contains(t, buf.String(), "Commands:")

	assert.Error(t, sh.exec(ctx, "set exposure_time"))
	assert.Error(t, sh.exec(ctx, "call"))
	assert.Error(t, sh.exec(ctx, "frobnicate"))
	assert.ErrorIs(t, sh.exec(ctx, "quit"), errQuit)
	assert.ErrorIs(t, sh.exec(ctx, "EXIT"), errQuit)
}
