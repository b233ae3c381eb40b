package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter mirrors protocol events into an operational slog.Logger at
// debug level, one record per event with the payload in a group.
type SlogAdapter struct {
	logger *slog.Logger
}

func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("layer", event.Layer.String()),
		slog.String("dir", event.Direction.String()),
	)
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn", event.ConnectionID))
	}
	if event.DaemonName != "" {
		attrs = append(attrs, slog.String("daemon", event.DaemonName))
	}

	msg, payload := describe(&event)
	if payload.Key != "" {
		attrs = append(attrs, payload)
	}
	a.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

// describe returns the record message and payload group for an event.
func describe(e *Event) (string, slog.Attr) {
	switch {
	case e.Frame != nil:
		return "frame", slog.Group("frame",
			slog.Int("size", e.Frame.Size),
			slog.Bool("truncated", e.Frame.Truncated))

	case e.Message != nil:
		m := e.Message
		args := []any{slog.Uint64("id", uint64(m.MessageID)), slog.String("type", m.Type.String())}
		if m.Method != "" {
			args = append(args, slog.String("method", m.Method))
		}
		if m.Status != nil {
			args = append(args, slog.String("status", m.Status.String()))
		}
		if m.ProcessingTime != nil {
			args = append(args, slog.Duration("elapsed", *m.ProcessingTime))
		}
		return "message", slog.Group("rpc", args...)

	case e.StateChange != nil:
		s := e.StateChange
		args := []any{slog.String("entity", s.Entity.String()), slog.String("from", s.OldState), slog.String("to", s.NewState)}
		if s.Reason != "" {
			args = append(args, slog.String("reason", s.Reason))
		}
		return "state", slog.Group("state", args...)

	case e.ControlMsg != nil:
		return "control", slog.Group("ctrl",
			slog.String("type", e.ControlMsg.Type.String()),
			slog.Uint64("seq", uint64(e.ControlMsg.Sequence)))

	case e.Device != nil:
		d := e.Device
		args := []any{slog.String("cmd", fmt.Sprintf("0x%04X", d.Command))}
		if len(d.Args) > 0 {
			args = append(args, slog.Any("args", d.Args))
		}
		if d.ReturnCode != nil {
			args = append(args, slog.Int("rc", int(*d.ReturnCode)))
		}
		if d.Length > 0 {
			args = append(args, slog.Int("bytes", d.Length))
		}
		if d.Duration != nil {
			args = append(args, slog.Duration("elapsed", *d.Duration))
		}
		return "device", slog.Group("dev", args...)

	case e.Error != nil:
		args := []any{slog.String("layer", e.Error.Layer.String()), slog.String("error", e.Error.Message)}
		if e.Error.Context != "" {
			args = append(args, slog.String("context", e.Error.Context))
		}
		if e.Error.Code != nil {
			args = append(args, slog.Int("code", *e.Error.Code))
		}
		return "error", slog.Group("err", args...)
	}
	return "event", slog.Attr{}
}

var _ Logger = (*SlogAdapter)(nil)
