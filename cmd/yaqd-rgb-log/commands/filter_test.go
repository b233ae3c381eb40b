package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, event)
	}
}

func TestFilter(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, ConnectionID: "conn-1", DaemonName: "qmini", Layer: log.LayerWire, Category: log.CategoryMessage, Direction: log.DirectionIn, Message: &log.MessageEvent{Method: "measure"}},
		{Timestamp: base.Add(time.Hour), ConnectionID: "conn-2", DaemonName: "qmini", Layer: log.LayerWire, Category: log.CategoryMessage, Direction: log.DirectionIn, Message: &log.MessageEvent{Method: "get_measured"}},
		{Timestamp: base.Add(2 * time.Hour), ConnectionID: "conn-1", DaemonName: "other", Layer: log.LayerWire, Category: log.CategoryMessage, Direction: log.DirectionOut, Message: &log.MessageEvent{Method: "measure"}},
		{Timestamp: base.Add(3 * time.Hour), DaemonName: "qmini", Layer: log.LayerDevice, Category: log.CategoryDevice, Direction: log.DirectionOut, Device: &log.DeviceEvent{Command: 1}},
		{Timestamp: base.Add(4 * time.Hour), DaemonName: "qmini", Layer: log.LayerDevice, Category: log.CategoryError, Direction: log.DirectionIn, Error: &log.ErrorEventData{Message: "usb"}},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name string
		sel  Selection
		want []int
	}{
		{"everything", Selection{}, []int{0, 1, 2, 3, 4}},
		{"connection", Selection{ConnID: "conn-1"}, []int{0, 2}},
		{"daemon and method", Selection{Daemon: "qmini", Method: "measure"}, []int{0}},
		{"layer and category", Selection{Layer: "DEVICE", Category: "device"}, []int{3}},
		{"direction", Selection{Direction: "out"}, []int{2, 3}},
		{"time window", Selection{
			Since: base.Add(30 * time.Minute).Format(time.RFC3339),
			Until: base.Add(150 * time.Minute).Format(time.RFC3339),
		}, []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "filtered.ylog")
			n, err := RunFilter(path, tt.sel, out)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)

			got := readAll(t, out)
			require.Len(t, got, len(tt.want))
			for i, idx := range tt.want {
				assert.True(t, got[i].Timestamp.Equal(events[idx].Timestamp), "event %d", i)
			}
		})
	}
}

func TestFilterErrors(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "filtered.ylog")

	_, err := RunFilter(path, Selection{}, "")
	assert.Error(t, err, "missing output")

	_, err = RunFilter(path, Selection{Since: "yesterday"}, out)
	assert.ErrorContains(t, err, "--since")
	assert.NoFileExists(t, out)

	_, err = RunFilter(filepath.Join(t.TempDir(), "missing.ylog"), Selection{}, out)
	assert.Error(t, err)
}
