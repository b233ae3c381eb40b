// Package config loads yaq daemon configuration files.
//
// A configuration file holds one TOML table per daemon, keyed by daemon
// name. Top-level keys that are not tables are shared by every daemon in
// the file:
//
//	log_level = "debug"
//
//	[qmini]
//	port = 38200
//	serial = "Q12345"
//
//	[qred]
//	port = 38201
//	serial = "R67890"
//	enable = false
//
// The default location is $XDG_CONFIG_HOME/yaqd/<kind>/config.toml.
package config
