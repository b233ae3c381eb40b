package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

func logOne(t *testing.T, level slog.Level, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))).Log(event)
	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("bad JSON %q: %v", buf.String(), err)
	}
	return entry
}

func group(t *testing.T, entry map[string]any, key string) map[string]any {
	t.Helper()
	g, ok := entry[key].(map[string]any)
	if !ok {
		t.Fatalf("no %q group in %v", key, entry)
	}
	return g
}

func TestSlogAdapterSkipsAboveDebug(t *testing.T) {
	if entry := logOne(t, slog.LevelInfo, Event{Frame: &FrameEvent{Size: 8}}); entry != nil {
		t.Errorf("logged at info level: %v", entry)
	}
}

func TestSlogAdapterMessage(t *testing.T) {
	status := wire.StatusOutOfRange
	elapsed := 2 * time.Millisecond
	entry := logOne(t, slog.LevelDebug, Event{
		ConnectionID: "conn-456",
		DaemonName:   "qmini",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Message: &MessageEvent{
			Type:           MessageTypeResponse,
			MessageID:      42,
			Method:         "set_exposure_time",
			Status:         &status,
			ProcessingTime: &elapsed,
		},
	})

	if entry["msg"] != "message" || entry["conn"] != "conn-456" || entry["daemon"] != "qmini" {
		t.Errorf("header = %v", entry)
	}
	if entry["layer"] != "WIRE" || entry["dir"] != "OUT" {
		t.Errorf("layer/dir = %v/%v", entry["layer"], entry["dir"])
	}
	rpc := group(t, entry, "rpc")
	if rpc["id"] != float64(42) || rpc["type"] != "RESPONSE" || rpc["method"] != "set_exposure_time" {
		t.Errorf("rpc = %v", rpc)
	}
	if rpc["status"] != "OUT_OF_RANGE" {
		t.Errorf("status = %v", rpc["status"])
	}
}

func TestSlogAdapterDevice(t *testing.T) {
	rc := uint8(3)
	entry := logOne(t, slog.LevelDebug, Event{
		Direction: DirectionIn,
		Layer:     LayerDevice,
		Device:    &DeviceEvent{Command: 0x0B, Args: []int32{100000}, ReturnCode: &rc, Length: 4},
	})

	if entry["msg"] != "device" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if _, ok := entry["conn"]; ok {
		t.Error("empty connection id should be omitted")
	}
	dev := group(t, entry, "dev")
	if dev["cmd"] != "0x000B" || dev["rc"] != float64(3) || dev["bytes"] != float64(4) {
		t.Errorf("dev = %v", dev)
	}
}

func TestSlogAdapterPayloadGroups(t *testing.T) {
	tests := []struct {
		event Event
		msg   string
		key   string
		field string
		want  any
	}{
		{Event{Frame: &FrameEvent{Size: 256}}, "frame", "frame", "size", float64(256)},
		{Event{StateChange: &StateChangeEvent{Entity: StateEntityMeasurement, NewState: "DONE"}}, "state", "state", "entity", "MEASUREMENT"},
		{Event{ControlMsg: &ControlMsgEvent{Type: ControlMsgPing, Sequence: 7}}, "control", "ctrl", "type", "PING"},
		{Event{Error: &ErrorEventData{Layer: LayerDevice, Message: "timeout"}}, "error", "err", "error", "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			entry := logOne(t, slog.LevelDebug, tt.event)
			if entry["msg"] != tt.msg {
				t.Errorf("msg = %v, want %v", entry["msg"], tt.msg)
			}
			if got := group(t, entry, tt.key)[tt.field]; got != tt.want {
				t.Errorf("%s.%s = %v, want %v", tt.key, tt.field, got, tt.want)
			}
		})
	}
}

func TestSlogAdapterBareEvent(t *testing.T) {
	entry := logOne(t, slog.LevelDebug, Event{Layer: LayerService})
	if entry["msg"] != "event" || entry["layer"] != "SERVICE" {
		t.Errorf("entry = %v", entry)
	}
}
