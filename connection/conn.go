package connection

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/arloliu/go-grbl/event"
	"github.com/arloliu/go-grbl/framer"
	"github.com/arloliu/go-grbl/internal/util"
	"github.com/arloliu/go-grbl/logger"
	"github.com/arloliu/go-grbl/machine"
	"github.com/arloliu/go-grbl/transport"
)

// FrameHandler receives the frames extracted from the incoming byte stream.
//
// HandleFrame is called from the transport's reader goroutine, once per frame
// and in stream order. The frame excludes the delimiter and is owned by the
// handler.
type FrameHandler interface {
	HandleFrame(frame []byte)
}

// FrameHandlerFunc adapts a function to the FrameHandler interface.
type FrameHandlerFunc func(frame []byte)

// HandleFrame calls f(frame).
func (f FrameHandlerFunc) HandleFrame(frame []byte) { f(frame) }

type frameHandlerRef struct {
	h FrameHandler
}

// Connection manages a connection to a CNC controller: open, close, send, the
// arrival path from the transport to the frame handler, and the last known
// controller status.
type Connection struct {
	cfg      *ConnectionConfig
	logger   logger.Logger
	stateMgr *ConnStateMgr
	events   *event.Registry
	metrics  ConnectionMetrics

	// openMu serializes Open calls.
	openMu sync.Mutex

	// dispatchMu serializes arrival notifications end to end.
	dispatchMu sync.Mutex

	// rxMu guards the extractor and the append/drain step. Close holds it
	// while discarding the accumulator.
	rxMu      sync.Mutex
	extractor *framer.Extractor

	// connMu guards the transport and the endpoint parameters.
	connMu    sync.RWMutex
	transport transport.Transport
	portName  string
	baudRate  int
	sessionID string

	// generation changes on every Open and Close. Arrival handlers and
	// in-flight dispatch loops compare it to detect a stale transport.
	generation atomic.Uint64

	status       atomic.Pointer[machine.Status]
	frameHandler atomic.Pointer[frameHandlerRef]
}

// NewConnection creates a disconnected Connection.
func NewConnection(cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		var err error
		if cfg, err = NewConnectionConfig(); err != nil {
			return nil, err
		}
	}

	l := cfg.logger.With("component", "connection")
	c := &Connection{
		cfg:      cfg,
		logger:   l,
		stateMgr: NewConnStateMgr(l),
		events:   event.NewRegistry(l),
	}
	c.status.Store(&machine.Status{})
	c.SetFrameHandler(cfg.frameHandler)

	return c, nil
}

// Open opens the endpoint portName at baudRate and starts delivering frames.
//
// On success the accumulator is empty, positions are at the origin and the
// active state is empty. On failure Open returns an error wrapping
// ErrTransportUnavailable, the connection stays disconnected and no lifecycle
// listener is notified.
//
// State handlers observe ConnectedState before the first frame is dispatched.
// Bytes the endpoint sent before Open returned are delivered as well.
func (c *Connection) Open(portName string, baudRate int) error {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	if baudRate <= 0 {
		return fmt.Errorf("%w: %w: %d", ErrTransportUnavailable, ErrInvalidBaudRate, baudRate)
	}

	if !c.stateMgr.ToConnecting() {
		return ErrAlreadyOpen
	}

	tr, err := c.cfg.dialer.Dial(portName, baudRate)
	if err == nil && tr == nil {
		err = errors.New("dialer returned no transport")
	}
	if err != nil {
		c.stateMgr.ToDisconnected()
		c.logger.Warn("connection: open failed", "port", portName, "baud", baudRate, "error", err)

		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	ext, err := framer.New(c.cfg.delimiter)
	if err != nil {
		_ = tr.Close()
		c.stateMgr.ToDisconnected()

		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	c.rxMu.Lock()
	if !c.stateMgr.IsConnecting() {
		// closed while dialing
		c.rxMu.Unlock()
		ext.Release()
		_ = tr.Close()

		return fmt.Errorf("%w: closed while opening %q", ErrTransportUnavailable, portName)
	}
	gen := c.generation.Add(1)
	sessionID := uuid.NewString()
	c.extractor = ext
	c.connMu.Lock()
	c.transport = tr
	c.portName = portName
	c.baudRate = baudRate
	c.sessionID = sessionID
	c.connMu.Unlock()
	c.status.Store(&machine.Status{})
	c.metrics.setBufferedBytes(0)
	c.rxMu.Unlock()

	if !c.stateMgr.ToConnected() {
		return fmt.Errorf("%w: closed while opening %q", ErrTransportUnavailable, portName)
	}

	c.metrics.incOpenCount()
	c.logger.Info("connection: opened", "port", portName, "baud", baudRate, "session", sessionID)

	tr.SetArrivalHandler(func() { c.onArrival(gen) })
	// Bytes read between Dial and the registration above raised no
	// notification. Open may run inside a dispatch (a listener reopening
	// after a handler closed), so drain them off this goroutine.
	go c.onArrival(gen)

	return nil
}

// Close closes the connection and notifies every lifecycle listener once.
//
// Close is idempotent and safe to call concurrently and from a frame handler
// or lifecycle listener. Calling it on a closed connection still fires the
// closure event. The returned error, if any, comes from closing the
// transport; the connection is disconnected regardless.
func (c *Connection) Close() error {
	c.rxMu.Lock()
	c.generation.Add(1)
	ext := c.extractor
	c.extractor = nil
	c.connMu.Lock()
	tr := c.transport
	c.transport = nil
	portName, sessionID := c.portName, c.sessionID
	c.connMu.Unlock()
	if ext != nil {
		ext.Release()
	}
	c.metrics.setBufferedBytes(0)
	c.rxMu.Unlock()

	var err error
	if tr != nil {
		tr.SetArrivalHandler(nil)
		if tr.IsOpen() {
			if cerr := tr.Close(); cerr != nil {
				err = fmt.Errorf("connection: close transport %q: %w", portName, cerr)
			}
		}
		c.logger.Info("connection: closed", "port", portName, "session", sessionID)
	}

	c.stateMgr.ToDisconnected()
	c.metrics.incCloseCount()
	c.events.FireConnectionClosed(event.NewClosedEvent(portName))

	return err
}

// Send appends the delimiter to payload and writes it to the transport.
//
// Any write failure is fatal to the connection: Send closes the connection
// (ignoring a secondary close failure) and then returns an error wrapping
// ErrWriteFailed and the cause. Concurrent Send calls are not ordered with
// respect to each other.
func (c *Connection) Send(payload []byte) error {
	c.connMu.RLock()
	tr := c.transport
	c.connMu.RUnlock()

	wire := util.ConcatBytes(payload, c.cfg.delimiter)

	var err error
	if tr == nil {
		err = ErrNotConnected
	} else {
		var n int
		n, err = tr.Write(wire)
		if n > 0 {
			c.metrics.addBytesSend(n)
		}
		if err == nil && n < len(wire) {
			err = io.ErrShortWrite
		}
	}

	if err == nil {
		c.metrics.incFrameSendCount()
		return nil
	}

	c.metrics.incWriteErrCount()
	c.logger.Error("connection: write failed, closing", "port", c.PortName(), "error", err)

	if cerr := c.Close(); cerr != nil {
		c.logger.Debug("connection: close after write failure failed", "error", cerr)
	}

	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}

// SendString is Send for text payloads.
func (c *Connection) SendString(payload string) error {
	return c.Send([]byte(payload))
}

// SendImmediately writes payload through the transport's expedited write
// path, without a delimiter. Transports that have no such path make it fail
// with ErrExpeditedWriteUnsupported. A failure does not close the connection.
func (c *Connection) SendImmediately(payload []byte) error {
	c.connMu.RLock()
	tr := c.transport
	c.connMu.RUnlock()

	if tr == nil {
		return ErrNotConnected
	}

	ew, ok := tr.(transport.ExpeditedWriter)
	if !ok {
		return ErrExpeditedWriteUnsupported
	}

	if err := ew.WriteImmediate(payload); err != nil {
		c.metrics.incWriteErrCount()
		return fmt.Errorf("connection: expedited write: %w", err)
	}
	c.metrics.addBytesSend(len(payload))

	return nil
}

// onArrival is the transport arrival handler registered by Open for the
// connection generation gen.
func (c *Connection) onArrival(gen uint64) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	frames, ok := c.extract(gen)
	if !ok {
		return
	}

	handler := c.FrameHandler()
	for i, frame := range frames {
		if c.generation.Load() != gen {
			c.logger.Debug("connection: closed during dispatch, dropping frames", "dropped", len(frames)-i)
			return
		}
		c.dispatch(handler, frame)
	}
}

// extract reads the available bytes and drains the complete frames.
func (c *Connection) extract(gen uint64) ([][]byte, bool) {
	c.rxMu.Lock()
	defer c.rxMu.Unlock()

	if c.generation.Load() != gen || c.extractor == nil {
		return nil, false
	}

	c.connMu.RLock()
	tr := c.transport
	c.connMu.RUnlock()
	if tr == nil {
		return nil, false
	}

	data, err := tr.ReadAvailable()
	if err != nil {
		c.metrics.incReadErrCount()
		c.logger.Warn("connection: read failed", "error", fmt.Errorf("%w: %w", ErrReadTransient, err))

		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	c.metrics.addBytesRecv(len(data))
	frames := c.extractor.Feed(data)
	c.metrics.addFrameRecv(len(frames))
	c.metrics.setBufferedBytes(c.extractor.Len())

	return frames, len(frames) > 0
}

func (c *Connection) dispatch(h FrameHandler, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.incHandlerPanicCount()
			c.logger.Error("connection: frame handler panicked", "panic", r, "frame", string(frame))
		}
	}()

	c.logger.Debug("connection: frame received", "frame", string(frame))
	if h != nil {
		h.HandleFrame(frame)
	}
}

// --- Accessors ---

// PortName returns the endpoint of the last successful Open.
func (c *Connection) PortName() string {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	return c.portName
}

// BaudRate returns the baud rate of the last successful Open.
func (c *Connection) BaudRate() int {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	return c.baudRate
}

// SessionID returns the identifier generated by the last successful Open.
// It tags the connection's log records.
func (c *Connection) SessionID() string {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	return c.sessionID
}

// IsConnected reports whether the connection is in ConnectedState.
func (c *Connection) IsConnected() bool { return c.stateMgr.IsConnected() }

// State returns the connection state.
func (c *Connection) State() ConnState { return c.stateMgr.State() }

// StateMgr returns the connection state manager, for registering state change
// handlers or waiting for a state.
func (c *Connection) StateMgr() *ConnStateMgr { return c.stateMgr }

// Events returns the lifecycle listener registry.
func (c *Connection) Events() *event.Registry { return c.events }

// Metrics returns the connection metrics.
func (c *Connection) Metrics() *ConnectionMetrics { return &c.metrics }

// Config returns the connection configuration.
func (c *Connection) Config() *ConnectionConfig { return c.cfg }

// GetLogger returns the connection logger.
func (c *Connection) GetLogger() logger.Logger { return c.logger }

// FrameHandler returns the current frame handler, or nil.
func (c *Connection) FrameHandler() FrameHandler {
	if ref := c.frameHandler.Load(); ref != nil {
		return ref.h
	}

	return nil
}

// SetFrameHandler replaces the frame handler. A nil handler discards frames.
// The change applies from the next arrival notification.
func (c *Connection) SetFrameHandler(h FrameHandler) {
	c.frameHandler.Store(&frameHandlerRef{h: h})
}

// --- Controller status ---

// Status returns the last known controller status.
func (c *Connection) Status() machine.Status { return *c.status.Load() }

// MachinePosition returns the last known machine position.
func (c *Connection) MachinePosition() machine.Position { return c.status.Load().MachinePos }

// WorkPosition returns the last known work position.
func (c *Connection) WorkPosition() machine.Position { return c.status.Load().WorkPos }

// ActiveState returns the last reported active state, empty until the first
// status report.
func (c *Connection) ActiveState() machine.ActiveState { return c.status.Load().State }

// UpdateStatus replaces the controller status with fn(current) and returns
// the new status. fn may be called more than once under contention and must
// not have side effects.
func (c *Connection) UpdateStatus(fn func(machine.Status) machine.Status) machine.Status {
	for {
		cur := c.status.Load()
		next := fn(*cur)
		if c.status.CompareAndSwap(cur, &next) {
			return next
		}
	}
}

// SetActiveState replaces the active state.
func (c *Connection) SetActiveState(state machine.ActiveState) {
	c.UpdateStatus(func(s machine.Status) machine.Status { return s.WithState(state) })
}

// SetMachinePosition replaces the machine position.
func (c *Connection) SetMachinePosition(p machine.Position) {
	c.UpdateStatus(func(s machine.Status) machine.Status { return s.WithMachinePos(p) })
}

// SetWorkPosition replaces the work position.
func (c *Connection) SetWorkPosition(p machine.Position) {
	c.UpdateStatus(func(s machine.Status) machine.Status { return s.WithWorkPos(p) })
}
