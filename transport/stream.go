package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-grbl/logger"
)

// DefaultReadBufferSize is the size of a single read from the stream.
const DefaultReadBufferSize = 4096

// StreamTransport turns a blocking io.ReadWriteCloser into a Transport.
//
// A reader goroutine, started by NewStreamTransport, reads chunks into a
// pending buffer and calls the arrival handler after each chunk. The handler
// is called outside of the transport's own lock, so it may call any method,
// including Close.
type StreamTransport struct {
	name   string
	rwc    io.ReadWriteCloser
	logger logger.Logger

	mu      sync.Mutex
	pending []byte
	readErr error
	handler func()

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
}

var _ Transport = (*StreamTransport)(nil)

// NewStreamTransport wraps rwc and starts its reader goroutine. readBufSize
// values <= 0 select DefaultReadBufferSize. A nil logger selects the package
// default logger.
func NewStreamTransport(name string, rwc io.ReadWriteCloser, readBufSize int, l logger.Logger) *StreamTransport {
	if readBufSize <= 0 {
		readBufSize = DefaultReadBufferSize
	}
	if l == nil {
		l = logger.GetLogger()
	}

	t := &StreamTransport{
		name:   name,
		rwc:    rwc,
		logger: l.With("transport", name),
		done:   make(chan struct{}),
	}
	go t.readLoop(readBufSize)

	return t
}

// Name returns the endpoint name the transport was opened with.
func (t *StreamTransport) Name() string { return t.name }

// Done is closed when the reader goroutine has exited.
func (t *StreamTransport) Done() <-chan struct{} { return t.done }

func (t *StreamTransport) ReadAvailable() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) > 0 {
		data := t.pending
		t.pending = nil

		return data, nil
	}

	if t.readErr != nil {
		err := t.readErr
		t.readErr = nil

		return nil, err
	}

	return nil, nil
}

func (t *StreamTransport) Write(p []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed.Load() {
		return 0, ErrClosed
	}

	written := 0
	for written < len(p) {
		n, err := t.rwc.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}

	return written, nil
}

func (t *StreamTransport) SetArrivalHandler(fn func()) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

func (t *StreamTransport) IsOpen() bool {
	return !t.closed.Load()
}

func (t *StreamTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.SetArrivalHandler(nil)

	return t.rwc.Close()
}

func (t *StreamTransport) readLoop(bufSize int) {
	defer close(t.done)

	buf := make([]byte, bufSize)
	for {
		n, err := t.rwc.Read(buf)
		if n > 0 {
			t.mu.Lock()
			t.pending = append(t.pending, buf[:n]...)
			t.mu.Unlock()
			t.notify()
		}

		if err == nil {
			continue
		}
		if t.closed.Load() {
			return
		}
		if isTimeout(err) {
			continue
		}

		t.logger.Debug("transport: reader stopped", "error", err)
		t.mu.Lock()
		t.readErr = err
		t.mu.Unlock()
		t.notify()

		return
	}
}

func (t *StreamTransport) notify() {
	t.mu.Lock()
	fn := t.handler
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
