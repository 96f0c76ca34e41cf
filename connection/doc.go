// Package connection manages the lifecycle of a line-oriented connection to a
// CNC controller.
//
// A Connection owns a transport.Transport and a framer.Extractor. Bytes
// delivered by the transport's reader goroutine are appended to the extractor,
// complete frames are drained and each frame is handed to the FrameHandler,
// synchronously and in stream order.
//
// # Locking
//
// Arrival notifications are serialized by one mutex so frames are never
// reordered. Inside it, a second mutex guards "read available bytes, append,
// drain"; Close takes the same mutex before discarding the accumulator, so a
// live notification never touches a released buffer. Frames are dispatched
// after the extraction step has finished, which lets a frame handler call
// Send or Close without deadlocking. Dispatch stops at the first frame after
// the connection was closed.
//
// A slow frame handler delays the processing of later arrivals; the
// connection imposes no bound on handler execution time.
//
// # Failures
//
// Open reports ErrTransportUnavailable and leaves the connection
// disconnected. A failed Send closes the connection before returning
// ErrWriteFailed, so callers must treat it as "the connection is gone" rather
// than retry. Read failures on the arrival path are logged and absorbed.
//
// # Closure events
//
// Every call to Close notifies the lifecycle listeners registered with
// Events exactly once, also when the connection was already closed.
package connection
