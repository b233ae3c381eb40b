// Package transport moves CBOR frames between yaq clients and daemons.
//
// Each frame on the TCP stream is a 4 byte big-endian length followed by
// that many bytes of CBOR. Frames whose message id is 0 are control
// frames (ping, pong, close) and never reach the protocol handler.
//
// The daemon side is Server, which answers pings and close requests and
// hands every other frame to ServerConfig.OnMessage. The client side is
// Client, built on Connection, which matches responses to requests by id
// and pings the daemon every 10s. Three pings left unanswered for 3s each
// close the connection.
//
// There is no transport security: daemons sit on a trusted lab network.
package transport
