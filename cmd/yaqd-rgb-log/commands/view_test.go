package commands

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

func render(e log.Event) string {
	var buf bytes.Buffer
	writeEvent(&buf, e)
	return buf.String()
}

func TestWriteEventFrame(t *testing.T) {
	out := render(log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC),
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        &log.FrameEvent{Size: 128, Data: []byte{0xa1, 0x01, 0x02, 0x03}},
	})

	assert.Equal(t, "2026-01-28T10:15:32.123456Z [conn:abc12345] OUT TRANSPORT Frame\n"+
		"  Size: 128 bytes\n"+
		"  Data: a1010203\n\n", out)

	out = render(log.Event{Frame: &log.FrameEvent{Size: 70000, Data: []byte{0x01}, Truncated: true}})
	assert.Contains(t, out, "  Data: 01 (truncated)\n")
}

func TestWriteEventMessages(t *testing.T) {
	status := wire.StatusOutOfRange
	took := 1500 * time.Microsecond

	req := render(log.Event{
		ConnectionID: "abc12345",
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			MessageID: 42,
			Method:    "set_exposure_time",
			Payload:   map[any]any{"exposure_time": 0.25},
		},
	})
	assert.Contains(t, req, "IN  WIRE REQUEST\n")
	assert.Contains(t, req, "  MessageID: 42\n  Method: set_exposure_time\n")
	assert.Contains(t, req, `  Payload: {"exposure_time":0.25}`)

	resp := render(log.Event{
		ConnectionID: "abc12345",
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Message: &log.MessageEvent{
			Type:           log.MessageTypeResponse,
			MessageID:      42,
			Status:         &status,
			ProcessingTime: &took,
		},
	})
	assert.Contains(t, resp, "RESPONSE")
	assert.Contains(t, resp, "  Status: OUT_OF_RANGE (3)\n")
	assert.Contains(t, resp, "  Duration: 1.500ms\n")
	assert.NotContains(t, resp, "Method")
}

func TestWriteEventState(t *testing.T) {
	out := render(log.Event{
		DaemonName: "qmini",
		Layer:      log.LayerService,
		Category:   log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityMeasurement,
			OldState: "idle",
			NewState: "acquiring",
			Reason:   "measure",
		},
	})
	assert.Contains(t, out, "[daemon:qmini]")
	assert.Contains(t, out, "  Entity: MEASUREMENT\n  idle -> acquiring\n  Reason: measure\n")

	out = render(log.Event{StateChange: &log.StateChangeEvent{Entity: log.StateEntityDaemon, NewState: "running"}})
	assert.Contains(t, out, "  -> running\n")
}

func TestWriteEventControl(t *testing.T) {
	out := render(log.Event{
		ConnectionID: "abc12345",
		Layer:        log.LayerWire,
		Category:     log.CategoryControl,
		ControlMsg:   &log.ControlMsgEvent{Type: log.ControlMsgPing, Sequence: 7},
	})
	assert.Contains(t, out, " CTRL PING\n  Sequence: 7\n")
}

func TestWriteEventDevice(t *testing.T) {
	rc := uint8(qseries.RetInvalidParameter)
	took := 250 * time.Microsecond
	out := render(log.Event{
		DaemonName: "qmini",
		Direction:  log.DirectionIn,
		Layer:      log.LayerDevice,
		Category:   log.CategoryDevice,
		Device: &log.DeviceEvent{
			Command:    uint32(qseries.CmdSetExposureTime),
			Args:       []int32{250000, -1},
			ReturnCode: &rc,
			Length:     5,
			Duration:   &took,
		},
	})

	assert.Contains(t, out, "DEVICE SetExposureTime\n")
	assert.Contains(t, out, "  Args: [250000, -1]\n")
	assert.Contains(t, out, "  Return: "+qseries.RetInvalidParameter.String())
	assert.Contains(t, out, "  Length: 5 bytes\n")
	assert.Contains(t, out, "  Duration: 250.000us\n")
}

func TestWriteEventError(t *testing.T) {
	code := 5
	out := render(log.Event{
		Layer:    log.LayerService,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerDevice,
			Message: "usb: timeout",
			Code:    &code,
			Context: "measure",
		},
	})
	assert.Contains(t, out, "SERVICE Error\n  Layer: DEVICE\n  Message: usb: timeout\n  Code: 5\n  Context: measure\n")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.500us", formatDuration(500*time.Nanosecond))
	assert.Equal(t, "2.500ms", formatDuration(2500*time.Microsecond))
	assert.Equal(t, "1.500s", formatDuration(1500*time.Millisecond))
}

func TestRunView(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryMessage, Message: &log.MessageEvent{Method: "get_exposure_time"}},
		{Timestamp: ts, Layer: log.LayerDevice, Category: log.CategoryDevice, Device: &log.DeviceEvent{Command: uint32(qseries.CmdGetExposureTime)}},
	})

	var buf bytes.Buffer
	require.NoError(t, RunView(path, Selection{Layer: "device"}, &buf))
	assert.Contains(t, buf.String(), "GetExposureTime")
	assert.NotContains(t, buf.String(), "get_exposure_time")

	assert.Error(t, RunView(filepath.Join(t.TempDir(), "missing.ylog"), Selection{}, &buf))
}
