package connection

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// BytesRecvCount indicates the number of bytes received.
	BytesRecvCount atomic.Uint64
	// FrameRecvCount indicates the number of frames extracted. Frames dropped
	// because the connection closed mid-batch are included.
	FrameRecvCount atomic.Uint64
	// BytesSendCount indicates the number of bytes written, delimiters included.
	BytesSendCount atomic.Uint64
	// FrameSendCount indicates the number of successful Send calls.
	FrameSendCount atomic.Uint64
	// WriteErrCount indicates the number of failed writes.
	WriteErrCount atomic.Uint64
	// ReadErrCount indicates the number of transient read failures.
	ReadErrCount atomic.Uint64
	// HandlerPanicCount indicates the number of recovered frame handler panics.
	HandlerPanicCount atomic.Uint64
	// OpenCount indicates the number of successful Open calls.
	OpenCount atomic.Uint64
	// CloseCount indicates the number of Close calls.
	CloseCount atomic.Uint64
	// BufferedBytes indicates the bytes retained after the last complete frame.
	BufferedBytes atomic.Int64
}

func (m *ConnectionMetrics) addBytesRecv(n int) {
	m.BytesRecvCount.Add(uint64(n))
}

func (m *ConnectionMetrics) addFrameRecv(n int) {
	m.FrameRecvCount.Add(uint64(n))
}

func (m *ConnectionMetrics) addBytesSend(n int) {
	m.BytesSendCount.Add(uint64(n))
}

func (m *ConnectionMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *ConnectionMetrics) incWriteErrCount() {
	m.WriteErrCount.Add(1)
}

func (m *ConnectionMetrics) incReadErrCount() {
	m.ReadErrCount.Add(1)
}

func (m *ConnectionMetrics) incHandlerPanicCount() {
	m.HandlerPanicCount.Add(1)
}

func (m *ConnectionMetrics) incOpenCount() {
	m.OpenCount.Add(1)
}

func (m *ConnectionMetrics) incCloseCount() {
	m.CloseCount.Add(1)
}

func (m *ConnectionMetrics) setBufferedBytes(n int) {
	m.BufferedBytes.Store(int64(n))
}
