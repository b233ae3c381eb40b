// Package log captures protocol events for yaq daemons and clients.
//
// An Event records one thing seen at one layer: a TCP frame, a decoded
// request or response, a state change, a control message or a command sent
// to the spectrometer over USB. This is separate from operational logging
// with slog; a capture is a machine-readable trace meant for the
// yaqd-rgb-log tool.
//
//	file, err := log.NewFileLogger(filepath.Join(stateDir, "qmini.ylog"))
//	...
//	cfg.ProtocolLogger = log.NewMultiLogger(file, log.NewSlogAdapter(slog.Default()))
//
// Capture files are plain concatenations of CBOR-encoded events, appended
// with one write each, so a daemon and a client can share one file. Read
// them back with NewReader or NewFilteredReader.
package log
