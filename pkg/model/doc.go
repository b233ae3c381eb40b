// Package model implements the runtime data model of a yaq daemon.
//
// # State
//
// State holds the named, typed fields a daemon persists across restarts.
// Fields are declared by the protocol descriptor's [state] table and start
// at their declared defaults. Subscribers are notified of every change so
// the daemon can persist the new state.
//
// # Messages
//
// A Table maps every message the descriptor declares to a handler. Invoke
// fills defaulted parameters, rejects unknown or mistyped ones and calls the
// handler:
//
//	table := model.NewTable(proto)
//	table.Handle("get_exposure_time", getExposure)
//	result, err := table.Invoke(ctx, "get_exposure_time", nil)
//
// # Properties
//
// A Property groups getter, setter, units and limits messages into a single
// typed attribute. BindProperties builds them from the table and routes the
// setter message through Property.Set, so every write is type checked and
// bounded by the current limits before it reaches the driver.
package model
