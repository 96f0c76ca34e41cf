package connection

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-grbl/logger"
)

// ConnState represents the lifecycle stage of a Connection.
type ConnState uint32

// Connection states.
const (
	// DisconnectedState indicates that no transport is open.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that Open is dialing the transport.
	ConnectingState
	// ConnectedState indicates that the transport is open and frames are delivered.
	ConnectedState
)

// IsDisconnected returns if the state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnecting returns if the state is connecting.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns if the state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked when the state of a connection changes.
//
// Note: the handler will be invoked in a blocking mode. Take care with long-running implementations.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// ConnStateMgr manages the state of a Connection.
//
// It provides methods for state transitions and notifies handlers of changes.
// All transitions are goroutine-safe.
type ConnStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

// NewConnStateMgr creates a ConnStateMgr in DisconnectedState.
func NewConnStateMgr(l logger.Logger, handlers ...ConnStateChangeHandler) *ConnStateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	cs := &ConnStateMgr{
		logger:   l,
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	cs.AddHandler(handlers...)
	cs.state.Store(uint32(DisconnectedState))
	cs.cond = sync.NewCond(&cs.mu)

	return cs
}

// State returns the current state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler adds one or more ConnStateChangeHandler functions to be invoked on state changes.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			cs.handlers = append(cs.handlers, h)
		}
	}
}

// WaitState waits for the state to reach the specified state or until the context is done.
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		cs.cond.Broadcast()
		cs.mu.Unlock()
	})
	defer stopFunc()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// ToConnecting transitions DisconnectedState to ConnectingState. It reports
// false, without changing anything, when the current state is not
// DisconnectedState.
func (cs *ConnStateMgr) ToConnecting() bool {
	return cs.transit(ConnectingState, DisconnectedState)
}

// ToConnected transitions ConnectingState to ConnectedState. It reports false,
// without changing anything, when the current state is not ConnectingState.
func (cs *ConnStateMgr) ToConnected() bool {
	return cs.transit(ConnectedState, ConnectingState)
}

// ToDisconnected transitions to DisconnectedState from any state.
// It is a no-op when already disconnected.
func (cs *ConnStateMgr) ToDisconnected() {
	cs.transit(DisconnectedState, ConnectingState, ConnectedState)
}

// IsDisconnected returns if the current state is disconnected.
func (cs *ConnStateMgr) IsDisconnected() bool { return cs.State().IsDisconnected() }

// IsConnecting returns if the current state is connecting.
func (cs *ConnStateMgr) IsConnecting() bool { return cs.State().IsConnecting() }

// IsConnected returns if the current state is connected.
func (cs *ConnStateMgr) IsConnected() bool { return cs.State().IsConnected() }

func (cs *ConnStateMgr) transit(newState ConnState, from ...ConnState) bool {
	cs.mu.Lock()
	curState := cs.State()
	allowed := false
	for _, s := range from {
		if s == curState {
			allowed = true
			break
		}
	}
	if !allowed {
		cs.mu.Unlock()
		return false
	}

	// state changes before the handlers run
	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()
	handlers := append([]ConnStateChangeHandler(nil), cs.handlers...)
	cs.mu.Unlock()

	cs.logger.Debug("connection: state changed", "prevState", curState, "newState", newState)
	for _, h := range handlers {
		h(curState, newState)
	}

	return true
}
