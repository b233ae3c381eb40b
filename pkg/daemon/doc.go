// Package daemon is the generic runtime behind a yaq daemon.
//
// A Daemon reads its protocol descriptor, restores persisted state, binds
// the built-in trait messages and the driver's own handlers into one
// dispatch table, and answers CBOR requests on a TCP port:
//
//	proto, _ := protocol.Default()
//	d, err := daemon.New(daemon.Config{
//		Protocol: proto,
//		Daemon:   cfg,
//	}, driver)
//	err = d.Run(ctx)
//
// # Traits
//
// The runtime implements is-daemon (identity, config, state, shutdown),
// is-sensor (channels and the last measurement), has-measure-trigger
// (one-shot and looping measurements on a dedicated goroutine) and
// has-mapping (secondary arrays such as wavelengths). Messages the
// descriptor declares beyond these come from the Driver.
//
// # Errors
//
// Handler errors are mapped onto wire statuses by StatusFor. Drivers
// signal busy hardware, device failures and missing features by wrapping
// ErrBusy, ErrDevice and ErrNotSupported.
package daemon
