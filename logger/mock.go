package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger.
//
// Loggers returned by With record their calls on the root mock with the
// child's fields placed before the call's own key-value pairs, the way the
// slog and zerolog backends render them. Expectations are therefore set on the
// root only. Level and SetLevel are recorded on the root as well.
type MockLogger struct {
	mock.Mock

	root   *MockLogger
	fields []any
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) target() *MockLogger {
	if m.root != nil {
		return m.root
	}

	return m
}

func (m *MockLogger) log(method, msg string, keysAndValues []any) {
	kv := keysAndValues
	if len(m.fields) > 0 {
		kv = append(append([]any(nil), m.fields...), keysAndValues...)
	}
	m.target().MethodCalled(method, msg, kv)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.log("Debug", msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.log("Info", msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.log("Warn", msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.log("Error", msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.target().MethodCalled("SetLevel", level)
}

func (m *MockLogger) Level() Level {
	args := m.target().MethodCalled("Level")
	return args.Get(0).(Level)
}

// With returns a child logger without recording a call.
func (m *MockLogger) With(keyValues ...any) Logger {
	if len(keyValues) == 0 {
		return m
	}

	return &MockLogger{
		root:   m.target(),
		fields: append(append([]any(nil), m.fields...), keyValues...),
	}
}
