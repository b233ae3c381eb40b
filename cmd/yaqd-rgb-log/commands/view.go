package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// field is one indented detail line under an event header.
type field struct {
	key, value string
}

// RunView prints the selected events of the log at path.
func RunView(path string, sel Selection, w io.Writer) error {
	return each(path, sel, func(e log.Event) error {
		writeEvent(w, e)
		return nil
	})
}

// writeEvent prints one event as a header line followed by its details:
//
//	2026-01-28T10:15:32.123456Z [conn:abc12345] IN  WIRE REQUEST
//	  MessageID: 42
func writeEvent(w io.Writer, e log.Event) {
	layer := e.Layer.String()
	if e.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [%s] %-3s %s %s\n",
		e.Timestamp.UTC().Format(timeLayout), scope(e), e.Direction, layer, kind(e))

	for _, f := range details(e) {
		if f.key == "" {
			fmt.Fprintf(w, "  %s\n", f.value)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", f.key, f.value)
	}
	fmt.Fprintln(w)
}

// scope names what the event belongs to: a connection, or failing that a
// daemon.
func scope(e log.Event) string {
	if e.ConnectionID == "" && e.DaemonName != "" {
		return "daemon:" + e.DaemonName
	}
	return "conn:" + shortID(e.ConnectionID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// kind is the short label of the event's payload.
func kind(e log.Event) string {
	switch {
	case e.Frame != nil:
		return "Frame"
	case e.Message != nil:
		return e.Message.Type.String()
	case e.StateChange != nil:
		return "State"
	case e.ControlMsg != nil:
		return e.ControlMsg.Type.String()
	case e.Device != nil:
		return qseries.Command(e.Device.Command).String()
	case e.Error != nil:
		return "Error"
	}
	return "Unknown"
}

func details(e log.Event) []field {
	var out []field
	add := func(key, format string, args ...any) {
		out = append(out, field{key, fmt.Sprintf(format, args...)})
	}

	switch {
	case e.Frame != nil:
		add("Size", "%d bytes", e.Frame.Size)
		if len(e.Frame.Data) > 0 {
			data := hex.EncodeToString(e.Frame.Data)
			if e.Frame.Truncated {
				data += " (truncated)"
			}
			add("Data", "%s", data)
		}

	case e.Message != nil:
		m := e.Message
		add("MessageID", "%d", m.MessageID)
		if m.Method != "" {
			add("Method", "%s", m.Method)
		}
		if m.Status != nil {
			add("Status", "%s (%d)", m.Status, *m.Status)
		}
		if m.ProcessingTime != nil {
			add("Duration", "%s", formatDuration(*m.ProcessingTime))
		}
		if m.Payload != nil {
			if b, err := json.Marshal(jsonable(m.Payload)); err == nil {
				add("Payload", "%s", b)
			}
		}

	case e.StateChange != nil:
		sc := e.StateChange
		add("Entity", "%s", sc.Entity)
		if sc.OldState != "" {
			add("", "%s -> %s", sc.OldState, sc.NewState)
		} else {
			add("", "-> %s", sc.NewState)
		}
		if sc.Reason != "" {
			add("Reason", "%s", sc.Reason)
		}

	case e.ControlMsg != nil:
		if e.ControlMsg.Sequence != 0 {
			add("Sequence", "%d", e.ControlMsg.Sequence)
		}

	case e.Device != nil:
		d := e.Device
		add("Command", "0x%04X", d.Command)
		if len(d.Args) > 0 {
			args := make([]string, len(d.Args))
			for i, a := range d.Args {
				args[i] = strconv.Itoa(int(a))
			}
			add("Args", "[%s]", strings.Join(args, ", "))
		}
		if d.ReturnCode != nil {
			add("Return", "%s (%d)", qseries.ReturnCode(*d.ReturnCode), *d.ReturnCode)
		}
		if d.Length > 0 {
			add("Length", "%d bytes", d.Length)
		}
		if d.Duration != nil {
			add("Duration", "%s", formatDuration(*d.Duration))
		}

	case e.Error != nil:
		er := e.Error
		add("Layer", "%s", er.Layer)
		add("Message", "%s", er.Message)
		if er.Code != nil {
			add("Code", "%d", *er.Code)
		}
		if er.Context != "" {
			add("Context", "%s", er.Context)
		}
	}
	return out
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.3fus", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// jsonable rewrites CBOR-decoded containers so encoding/json accepts them.
func jsonable(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = jsonable(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = jsonable(val)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonable(val)
		}
		return out
	}
	return v
}
