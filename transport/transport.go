// Package transport defines the byte-stream collaborator a connection talks
// through, and provides serial port and TCP implementations.
//
// A Transport delivers incoming bytes asynchronously: its own reader goroutine
// buffers whatever arrives and invokes the registered arrival handler, which
// is expected to collect the bytes with ReadAvailable.
package transport

import "errors"

var (
	// ErrClosed is returned when writing to a closed transport.
	ErrClosed = errors.New("transport: closed")
	// ErrEmptyPortName is returned by SerialDialer when no port name is given.
	ErrEmptyPortName = errors.New("transport: serial port name is required")
	// ErrEmptyAddress is returned by TCPDialer when no address is given.
	ErrEmptyAddress = errors.New("transport: address is required")
)

// Transport is an open, bidirectional byte stream to a controller.
type Transport interface {
	// ReadAvailable returns the bytes received since the previous call. It
	// returns a nil slice when nothing is pending. A read failure observed by
	// the reader goroutine is reported once, after all pending bytes.
	ReadAvailable() ([]byte, error)
	// Write writes p to the controller. Writes are serialized.
	Write(p []byte) (int, error)
	// SetArrivalHandler registers fn to be called from the transport's reader
	// goroutine whenever new bytes (or a read failure) are available.
	// A nil fn unregisters the current handler.
	SetArrivalHandler(fn func())
	// IsOpen reports whether Close has not been called yet.
	IsOpen() bool
	// Close closes the stream. It does not wait for a running arrival
	// handler to return, and it is safe to call more than once.
	Close() error
}

// ExpeditedWriter is implemented by transports that offer a priority write
// path bypassing normal output buffering.
type ExpeditedWriter interface {
	WriteImmediate(p []byte) error
}

// Dialer opens a Transport.
type Dialer interface {
	// Dial opens the endpoint identified by name. baudRate is meaningful for
	// serial endpoints only.
	Dial(name string, baudRate int) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(name string, baudRate int) (Transport, error)

// Dial calls f(name, baudRate).
func (f DialerFunc) Dial(name string, baudRate int) (Transport, error) {
	return f(name, baudRate)
}
