// Package protocol parses, expands and validates yaq protocol descriptors.
//
// A descriptor is a TOML document naming a daemon kind, the traits it
// implements, its config and state fields, the messages it answers and the
// properties that group getter/setter/units/limits messages into a single
// attribute. Traits are themselves small descriptors; Expand merges them into
// the daemon's own definitions so the runtime sees one flat message table.
//
// The rgb-qmini descriptor is embedded and returned by Default.
package protocol
