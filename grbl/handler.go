package grbl

import (
	"sync"

	"github.com/arloliu/go-grbl/logger"
	"github.com/arloliu/go-grbl/machine"
)

// StatusPoll is the real-time command requesting a status report.
const StatusPoll = "?"

// Conn is the part of a connection.Connection the Handler drives.
type Conn interface {
	UpdateStatus(fn func(machine.Status) machine.Status) machine.Status
	SendString(payload string) error
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOnMessage sets a callback receiving every parsed message, after the
// connection status has been updated.
func WithOnMessage(fn func(Message)) HandlerOption {
	return func(h *Handler) { h.onMessage = fn }
}

// WithRequestStatusOnWelcome makes the handler request a status report when
// the controller prints its welcome banner.
func WithRequestStatusOnWelcome(enable bool) HandlerOption {
	return func(h *Handler) { h.requestStatus = enable }
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l logger.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// Handler is a connection.FrameHandler interpreting GRBL responses.
//
// Status reports update the connection's active state and positions. GRBL
// 1.1 reports only one of MPos and WPos plus, from time to time, the work
// coordinate offset (WCO); the handler remembers the last offset and derives
// the missing position from it.
type Handler struct {
	conn          Conn
	logger        logger.Logger
	onMessage     func(Message)
	requestStatus bool

	mu         sync.Mutex
	workOffset machine.Position
	version    string
}

// NewHandler creates a Handler driving conn.
func NewHandler(conn Conn, opts ...HandlerOption) *Handler {
	h := &Handler{
		conn:   conn,
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HandleFrame implements connection.FrameHandler.
func (h *Handler) HandleFrame(frame []byte) {
	msg := ParseMessage(string(frame))

	switch msg.Type {
	case TypeStatus:
		if msg.Err != nil {
			h.logger.Warn("grbl: invalid status report", "line", msg.Raw, "error", msg.Err)
			break
		}
		h.applyStatus(msg.Status)

	case TypeAlarm:
		h.logger.Warn("grbl: alarm", "code", msg.Code, "text", msg.Text)
		h.conn.UpdateStatus(func(s machine.Status) machine.Status { return s.WithState(machine.Alarm) })

	case TypeWelcome:
		h.mu.Lock()
		h.version = msg.Text
		// a reset clears the work offset the controller reports
		h.workOffset = machine.Origin
		h.mu.Unlock()

		h.logger.Info("grbl: controller reset", "version", msg.Text)
		if h.requestStatus {
			if err := h.conn.SendString(StatusPoll); err != nil {
				h.logger.Warn("grbl: status request failed", "error", err)
			}
		}

	case TypeError:
		h.logger.Debug("grbl: error response", "code", msg.Code, "text", msg.Text)
	}

	if h.onMessage != nil {
		h.onMessage(msg)
	}
}

// Version returns the firmware version of the last welcome banner.
func (h *Handler) Version() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.version
}

// WorkOffset returns the last reported work coordinate offset.
func (h *Handler) WorkOffset() machine.Position {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.workOffset
}

func (h *Handler) applyStatus(rep StatusReport) {
	h.mu.Lock()
	if rep.HasWorkOffset {
		h.workOffset = rep.WorkOffset
	}
	wco := h.workOffset
	h.mu.Unlock()

	mpos, wpos := rep.MachinePos, rep.WorkPos
	switch {
	case rep.HasMachinePos && !rep.HasWorkPos:
		wpos = mpos.Sub(wco)
	case rep.HasWorkPos && !rep.HasMachinePos:
		mpos = wpos.Add(wco)
	}
	hasPos := rep.HasMachinePos || rep.HasWorkPos

	h.conn.UpdateStatus(func(s machine.Status) machine.Status {
		s = s.WithState(rep.State)
		if hasPos {
			s = s.WithMachinePos(mpos).WithWorkPos(wpos)
		}

		return s
	})
}
