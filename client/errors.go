package client

import "errors"

// Error kinds surfaced by the client. Every error returned by this
// package wraps one of these sentinels, so callers classify failures
// with errors.Is.
var (
	// ErrRead marks a failed transport read, including reads whose
	// returned length does not match the requested count.
	ErrRead = errors.New("modbus: transport read failed")

	// ErrWrite marks a failed transport write.
	ErrWrite = errors.New("modbus: transport write failed")

	// ErrEncoding marks a value that cannot be represented in a
	// register's encoding, on either the decode or the encode path.
	ErrEncoding = errors.New("modbus: value not representable")

	// ErrMissingData marks an address that no executed range read
	// covered. It indicates a bug in the read request, not a device
	// or network fault.
	ErrMissingData = errors.New("modbus: address missing from read session")

	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = errors.New("modbus: connection closed")
)
