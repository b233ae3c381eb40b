// Package persistence stores daemon state between restarts.
//
// State files are flat TOML tables, one per daemon, written atomically and
// guarded by a cross-process file lock so two daemons pointed at the same
// file cannot interleave writes.
package persistence
