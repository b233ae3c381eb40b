// Package wire defines the CBOR wire format of the yaq daemon RPC protocol.
//
// Every message is a CBOR map with small integer keys, sent as one
// length-prefixed frame (see package transport).
//
// # Message Types
//
// There are three message types:
//   - Request: client to daemon, naming a message from the daemon's protocol
//   - Response: daemon to client, success result or error status
//   - Control: either direction, transport liveness (ping/pong/close)
//
// Message ID 0 is reserved for control messages, so a peer can classify a
// frame with PeekMessageType before decoding it fully.
//
// # Parameters and results
//
// Request parameters are a map keyed by parameter name. After a CBOR round
// trip numbers arrive as uint64, int64 or float64; the Param helpers
// normalise them to the type the protocol descriptor declares.
package wire
