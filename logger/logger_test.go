package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	for name, want := range map[string]Level{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	} {
		lv, ok := ParseLevel(name)
		require.True(ok, name)
		require.Equal(want, lv, name)
		if name != "warning" {
			require.Equal(name, lv.String())
		}
	}

	lv, ok := ParseLevel("verbose")
	require.False(ok)
	require.Equal(InfoLevel, lv)
}

func TestSlogLogger(t *testing.T) {
	t.Setenv("ENV", "")
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	require.Equal(InfoLevel, l.Level())

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("component", "test").Info("hello", "port", "/dev/ttyUSB0")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("hello", rec["msg"])
	require.Equal("test", rec["component"])
	require.Equal("/dev/ttyUSB0", rec["port"])
	require.Contains(rec, "ts")

	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())
}

func TestZerologLogger(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewZerolog(&buf, WarnLevel, false)
	require.Equal(WarnLevel, l.Level())

	l.Info("hidden")
	require.Zero(buf.Len())

	child := l.With("component", "conn")
	child.Error("write failed", "error", errors.New("boom"), "bytes", 3)

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("write failed", rec["message"])
	require.Equal("error", rec["level"])
	require.Equal("conn", rec["component"])
	require.Equal("boom", rec["error"])
	require.EqualValues(3, rec["bytes"])

	// level is shared with children
	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())
}

func TestDefaultLogger(t *testing.T) {
	require := require.New(t)

	prev := GetLogger()
	defer SetLogger(prev)

	m := NewMockLogger()
	m.On("Info", "opened", []any{"port", "COM3"}).Once()
	SetLogger(m)
	SetLogger(nil) // ignored

	Info("opened", "port", "COM3")
	m.AssertExpectations(t)

	require.Equal(ErrorLevel, NewNop().Level())
}

func TestMockLoggerWith(t *testing.T) {
	require := require.New(t)

	m := NewMockLogger()
	m.On("Warn", "read failed", []any{"component", "connection", "port", "COM3", "error", "eof"}).Once()
	m.On("Debug", "reader stopped", []any{"component", "connection"}).Once()
	m.On("SetLevel", DebugLevel).Once()
	m.On("Level").Return(DebugLevel).Once()

	child := m.With("component", "connection")
	require.NotSame(m, child)
	require.Same(m, m.With())

	child.With("port", "COM3").Warn("read failed", "error", "eof")
	child.Debug("reader stopped")
	child.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())

	m.AssertExpectations(t)
}
