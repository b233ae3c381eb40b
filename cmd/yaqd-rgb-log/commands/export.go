package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
)

// ExportFormats lists the formats RunExport accepts.
var ExportFormats = []string{"jsonl", "csv"}

var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category",
	"daemon", "type", "message_id", "method", "status",
}

// RunExport writes the selected events of the log at path to w as JSON
// lines or CSV.
func RunExport(path string, sel Selection, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return each(path, sel, func(e log.Event) error {
			if e.Message != nil && e.Message.Payload != nil {
				m := *e.Message
				m.Payload = jsonable(m.Payload)
				e.Message = &m
			}
			return enc.Encode(e)
		})

	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		err := each(path, sel, func(e log.Event) error {
			return cw.Write(csvRow(e))
		})
		cw.Flush()
		if err != nil {
			return err
		}
		return cw.Error()
	}
	return fmt.Errorf("unknown format %q (want jsonl or csv)", format)
}

// csvRow flattens an event. Message events fill id, method and status;
// device events put the command in method and the return code in status.
func csvRow(e log.Event) []string {
	typ := "unknown"
	var id, method, status string
	switch {
	case e.Frame != nil:
		typ = "frame"
	case e.Message != nil:
		typ = e.Message.Type.String()
		id = strconv.FormatUint(uint64(e.Message.MessageID), 10)
		method = e.Message.Method
		if e.Message.Status != nil {
			status = e.Message.Status.String()
		}
	case e.StateChange != nil:
		typ = "state"
	case e.ControlMsg != nil:
		typ = e.ControlMsg.Type.String()
	case e.Device != nil:
		typ = "device"
		method = qseries.Command(e.Device.Command).String()
		if e.Device.ReturnCode != nil {
			status = strconv.Itoa(int(*e.Device.ReturnCode))
		}
	case e.Error != nil:
		typ = "error"
	}

	return []string{
		e.Timestamp.UTC().Format(timeLayout),
		e.ConnectionID,
		e.Direction.String(),
		e.Layer.String(),
		e.Category.String(),
		e.DaemonName,
		typ,
		id,
		method,
		status,
	}
}
