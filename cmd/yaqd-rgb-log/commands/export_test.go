package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ylog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func exchangeEvents(ts time.Time) []log.Event {
	status := wire.StatusSuccess
	rc := uint8(qseries.RetOK)
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "abc12345",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			DaemonName:   "qmini",
			Message: &log.MessageEvent{
				Type:      log.MessageTypeRequest,
				MessageID: 42,
				Method:    "set_exposure_time",
				Payload:   map[string]any{"exposure_time": 0.5},
			},
		},
		{
			Timestamp:  ts.Add(time.Millisecond),
			Direction:  log.DirectionIn,
			Layer:      log.LayerDevice,
			Category:   log.CategoryDevice,
			DaemonName: "qmini",
			Device: &log.DeviceEvent{
				Command:    uint32(qseries.CmdSetExposureTime),
				ReturnCode: &rc,
			},
		},
		{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "abc12345",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			DaemonName:   "qmini",
			Message: &log.MessageEvent{
				Type:      log.MessageTypeResponse,
				MessageID: 42,
				Method:    "set_exposure_time",
				Status:    &status,
			},
		},
	}
}

var exchangeTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, exchangeEvents(exchangeTime))

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, Selection{}, "jsonl", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var decoded map[string]any
		assert.NoError(t, json.Unmarshal([]byte(line), &decoded), line)
	}
	assert.Contains(t, lines[0], `"exposure_time":0.5`)
	assert.Contains(t, lines[0], `"set_exposure_time"`)
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, exchangeEvents(exchangeTime))

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, Selection{}, "csv", &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{
		"2026-01-28T10:15:32.123456Z", "abc12345", "IN", "WIRE", "MESSAGE",
		"qmini", "REQUEST", "42", "set_exposure_time", "",
	}, records[1])

	device := records[2]
	assert.Equal(t, "device", device[6])
	assert.Equal(t, "SetExposureTime", device[8])
	assert.Equal(t, "0", device[9])

	assert.Equal(t, "SUCCESS", records[3][9])
}

func TestExportHonoursSelection(t *testing.T) {
	path := createTestLogFile(t, exchangeEvents(exchangeTime))

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, Selection{Layer: "device"}, "csv", &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "DEVICE", records[1][3])
}

func TestExportErrors(t *testing.T) {
	path := createTestLogFile(t, nil)
	var buf bytes.Buffer

	assert.ErrorContains(t, RunExport(path, Selection{}, "xml", &buf), "unknown format")
	assert.Error(t, RunExport(filepath.Join(t.TempDir(), "missing.ylog"), Selection{}, "jsonl", &buf))
	assert.Error(t, RunExport(path, Selection{Direction: "up"}, "jsonl", &buf))
}
