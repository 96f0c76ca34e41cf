package connection

import "errors"

var (
	// ErrTransportUnavailable is returned by Open when the endpoint cannot be
	// opened or configured. The connection stays disconnected.
	ErrTransportUnavailable = errors.New("connection: transport unavailable")

	// ErrWriteFailed is returned by Send when the transport write fails. By
	// the time it is returned the connection has already been closed; it is
	// not a retryable condition.
	ErrWriteFailed = errors.New("connection: write failed")

	// ErrReadTransient is logged when reading arrived bytes fails. It never
	// reaches a caller and does not change the connection state.
	ErrReadTransient = errors.New("connection: transient read failure")

	// ErrNotConnected is the cause wrapped by ErrWriteFailed when Send is
	// called without an open transport.
	ErrNotConnected = errors.New("connection: not connected")

	// ErrAlreadyOpen is returned by Open when the connection is not disconnected.
	ErrAlreadyOpen = errors.New("connection: already open")

	// ErrExpeditedWriteUnsupported is returned by SendImmediately when the
	// transport has no expedited write path.
	ErrExpeditedWriteUnsupported = errors.New("connection: expedited write not supported")

	// ErrInvalidBaudRate is returned by Open for baud rates <= 0.
	ErrInvalidBaudRate = errors.New("connection: invalid baud rate")
)
