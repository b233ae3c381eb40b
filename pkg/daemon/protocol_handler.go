package daemon

import (
	"time"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/transport"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// handleMessage answers one request frame. Requests on a connection are
// handled in order on the connection's goroutine.
func (d *Daemon) handleMessage(conn *transport.ServerConn, data []byte) {
	start := time.Now()

	req, err := wire.DecodeRequest(data)
	if err != nil {
		d.logger.Warn("rejecting malformed request", "conn", conn.ConnID(), "error", err)
		d.logError(conn, "decoding request", err)

		// Answer when the message ID survived decoding.
		var partial wire.Request
		if wire.Unmarshal(data, &partial) == nil && partial.ID != wire.ControlMessageID {
			d.send(conn, wire.NewErrorResponse(partial.ID, wire.StatusInvalidParameter, err.Error()), start)
		}
		return
	}

	d.logMessage(conn, log.DirectionIn, &log.MessageEvent{
		Type:      log.MessageTypeRequest,
		MessageID: req.ID,
		Method:    req.Method,
		Payload:   req.Params,
	})

	resp := d.HandleRequest(req)
	d.send(conn, resp, start)
	d.triggerShutdown()
}

// HandleRequest dispatches a decoded request and builds its response.
func (d *Daemon) HandleRequest(req *wire.Request) *wire.Response {
	if err := req.Validate(); err != nil {
		return wire.NewErrorResponse(req.ID, StatusFor(err), err.Error())
	}
	if d.Lifecycle() != StateRunning || d.shutdownRequested.Load() {
		return wire.NewErrorResponse(req.ID, wire.StatusShuttingDown, ErrShuttingDown.Error())
	}

	result, err := d.table.Invoke(d.ctx, req.Method, req.Params)
	if err != nil {
		status := StatusFor(err)
		if status == wire.StatusInternal || status == wire.StatusDeviceError {
			d.logger.Error("message failed", "method", req.Method, "status", status, "error", err)
		} else {
			d.logger.Debug("message rejected", "method", req.Method, "status", status, "error", err)
		}
		return wire.NewErrorResponse(req.ID, status, err.Error())
	}
	return &wire.Response{ID: req.ID, Status: wire.StatusSuccess, Result: result}
}

func (d *Daemon) send(conn *transport.ServerConn, resp *wire.Response, start time.Time) {
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		d.logger.Error("encoding response failed", "id", resp.ID, "error", err)
		resp = wire.NewErrorResponse(resp.ID, wire.StatusInternal, err.Error())
		if data, err = wire.EncodeResponse(resp); err != nil {
			return
		}
	}
	if err := conn.Send(data); err != nil {
		d.logger.Debug("sending response failed", "conn", conn.ConnID(), "error", err)
		return
	}

	elapsed := time.Since(start)
	status := resp.Status
	d.logMessage(conn, log.DirectionOut, &log.MessageEvent{
		Type:           log.MessageTypeResponse,
		MessageID:      resp.ID,
		Status:         &status,
		ProcessingTime: &elapsed,
	})
}

func (d *Daemon) logMessage(conn *transport.ServerConn, dir log.Direction, msg *log.MessageEvent) {
	if d.protocolLogger == nil {
		return
	}
	d.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.ConnID(),
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleDaemon,
		RemoteAddr:   conn.RemoteAddr().String(),
		DaemonName:   d.Name(),
		DaemonKind:   d.Kind(),
		Message:      msg,
	})
}

func (d *Daemon) logError(conn *transport.ServerConn, context string, err error) {
	if d.protocolLogger == nil {
		return
	}
	ev := log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerService,
		Category:   log.CategoryError,
		LocalRole:  log.RoleDaemon,
		DaemonName: d.Name(),
		DaemonKind: d.Kind(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
			Context: context,
		},
	}
	if conn != nil {
		ev.ConnectionID = conn.ConnID()
		ev.RemoteAddr = conn.RemoteAddr().String()
	}
	d.protocolLogger.Log(ev)
}
