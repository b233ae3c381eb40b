// Package qseries implements the binary command protocol spoken by RGB
// Photonics Qseries spectrometers (Qmini, Qred, Qwave).
//
// Every exchange is a single little-endian request written to the bulk OUT
// endpoint followed by a single response read from the bulk IN endpoint. A
// request is a 32-bit command code optionally followed by one or two signed
// 32-bit arguments. The first byte of every response is a return code; any
// payload starts after the 4-byte response header.
//
// Command codes are composed from three fields:
//
//	MsgType (bits 12-15) | MsgKind (bits 8-11) | Index (bits 0-7)
//
// so that, for example, setting the exposure time is
// TypeParameter|KindSet|0x00 = 0x1100.
//
// The package does not talk to USB directly. A Transport carries the
// exchange; package usb provides one backed by libusb and package sim an
// in-process emulator.
package qseries
