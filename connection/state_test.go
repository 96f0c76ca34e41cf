package connection

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-grbl/logger"
	"github.com/stretchr/testify/require"
)

func TestConnStateTransitions(t *testing.T) {
	require := require.New(t)

	t.Run("Initial State", func(t *testing.T) {
		cs := NewConnStateMgr(nil)
		require.Equal(DisconnectedState, cs.State())
		require.True(cs.IsDisconnected())
	})

	t.Run("Open and Close", func(t *testing.T) {
		var transitions [][2]ConnState
		cs := NewConnStateMgr(logger.NewNop(), func(prev, next ConnState) {
			transitions = append(transitions, [2]ConnState{prev, next})
		})

		// Invalid transition from DisconnectedState to ConnectedState
		require.False(cs.ToConnected())
		require.True(cs.IsDisconnected())

		require.True(cs.ToConnecting())
		require.True(cs.IsConnecting())
		// already connecting
		require.False(cs.ToConnecting())

		require.True(cs.ToConnected())
		require.True(cs.IsConnected())
		require.False(cs.ToConnecting())

		cs.ToDisconnected()
		require.True(cs.IsDisconnected())
		// No-op transition when already disconnected
		cs.ToDisconnected()

		require.Equal([][2]ConnState{
			{DisconnectedState, ConnectingState},
			{ConnectingState, ConnectedState},
			{ConnectedState, DisconnectedState},
		}, transitions)
	})

	t.Run("Abort Connecting", func(t *testing.T) {
		cs := NewConnStateMgr(nil)
		require.True(cs.ToConnecting())
		cs.ToDisconnected()
		require.False(cs.ToConnected())
		require.True(cs.IsDisconnected())
	})

	t.Run("String", func(t *testing.T) {
		require.Equal("disconnected", DisconnectedState.String())
		require.Equal("connecting", ConnectingState.String())
		require.Equal("connected", ConnectedState.String())
		require.Equal("unknown", ConnState(99).String())
	})
}

func TestWaitConnState(t *testing.T) {
	require := require.New(t)

	cs := NewConnStateMgr(nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cs.ToConnecting()
		cs.ToConnected()
	}()

	begin := time.Now()
	ctx, cancel := context.WithTimeout(context.TODO(), 100*time.Millisecond)
	defer cancel()

	err := cs.WaitState(ctx, ConnectedState)
	require.NoError(err)

	// wait ConnectedState again
	err = cs.WaitState(ctx, ConnectedState)
	require.NoError(err)

	err = cs.WaitState(ctx, DisconnectedState)
	require.ErrorIs(err, context.DeadlineExceeded)
	require.WithinDuration(begin.Add(100*time.Millisecond), time.Now(), 30*time.Millisecond)
}
