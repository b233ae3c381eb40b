// Package discovery announces running yaq daemons over mDNS and finds them.
//
// Every daemon registers one instance of the _yaq._tcp service, named
// "<kind>:<name>", on its TCP port. TXT records carry the identity a client
// needs before connecting:
//
//	kind=rgb-qmini
//	name=qmini
//	make=RGB Photonics
//	model=Qmini
//	serial=Q12345
//	version=2023.1.0
//
// MDNSAdvertiser registers services; MDNSBrowser aggregates answers from
// every interface into one Service per instance.
package discovery
