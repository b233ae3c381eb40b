package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
)

func capture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qmini.ylog")
	l, err := log.NewFileLogger(path)
	require.NoError(t, err)

	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	l.Log(log.Event{Timestamp: ts, DaemonName: "qmini", Layer: log.LayerWire, Category: log.CategoryMessage,
		Message: &log.MessageEvent{Type: log.MessageTypeRequest, MessageID: 1, Method: "measure"}})
	l.Log(log.Event{Timestamp: ts, DaemonName: "qmini", Layer: log.LayerDevice, Category: log.CategoryDevice,
		Direction: log.DirectionOut, Device: &log.DeviceEvent{Command: 1}})
	require.NoError(t, l.Close())
	return path
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestViewCommand(t *testing.T) {
	out, err := execute("view", "--layer", "wire", capture(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Method: measure")
	assert.NotContains(t, out, "DEVICE")
}

func TestExportCommandToFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.csv")
	_, err := execute("export", "--format", "csv", "-o", dst, capture(t))
	require.NoError(t, err)
	assert.FileExists(t, dst)
}

func TestFilterCommand(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "devices.ylog")
	out, err := execute("filter", "--category", "device", "-o", dst, capture(t))
	require.NoError(t, err)
	assert.Equal(t, "Filtered 1 events to "+dst+"\n", out)

	_, err = execute("filter", capture(t))
	assert.ErrorContains(t, err, "output")
}

func TestStatsCommand(t *testing.T) {
	out, err := execute("stats", "--daemon", "qmini", capture(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Total Events: 2")
}

func TestCommandArgs(t *testing.T) {
	_, err := execute("view")
	assert.Error(t, err)
	_, err = execute("view", "--layer", "physical", capture(t))
	assert.ErrorContains(t, err, "invalid layer")
}
