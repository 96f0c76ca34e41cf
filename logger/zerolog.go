package logger

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger is a Logger backed by github.com/rs/zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
	level  *zerologLevel
}

// zerologLevel is shared between a logger and its children so SetLevel on
// the parent also applies to loggers created with With.
type zerologLevel struct {
	v atomic.Int32
}

func (l *zerologLevel) get() zerolog.Level  { return zerolog.Level(l.v.Load()) }
func (l *zerologLevel) set(v zerolog.Level) { l.v.Store(int32(v)) }

var _ Logger = (*ZerologLogger)(nil)

// NewZerolog creates a zerolog based logger. When console is true the output
// is human readable (zerolog.ConsoleWriter), otherwise JSON lines.
func NewZerolog(w io.Writer, level Level, console bool) Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lv := &zerologLevel{}
	lv.set(toZerologLevel(level))

	return &ZerologLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
		level:  lv,
	}
}

func (z *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	z.emit(zerolog.DebugLevel, msg, keysAndValues)
}

func (z *ZerologLogger) Info(msg string, keysAndValues ...any) {
	z.emit(zerolog.InfoLevel, msg, keysAndValues)
}

func (z *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	z.emit(zerolog.WarnLevel, msg, keysAndValues)
}

func (z *ZerologLogger) Error(msg string, keysAndValues ...any) {
	z.emit(zerolog.ErrorLevel, msg, keysAndValues)
}

func (z *ZerologLogger) With(keyValues ...any) Logger {
	ctx := z.logger.With()
	for i := 0; i < len(keyValues); i += 2 {
		key, val := pairAt(keyValues, i)
		ctx = ctx.Interface(key, val)
	}

	return &ZerologLogger{logger: ctx.Logger(), level: z.level}
}

func (z *ZerologLogger) Level() Level {
	switch z.level.get() {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return DebugLevel
	case zerolog.InfoLevel:
		return InfoLevel
	case zerolog.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func (z *ZerologLogger) SetLevel(level Level) {
	z.level.set(toZerologLevel(level))
}

func (z *ZerologLogger) emit(level zerolog.Level, msg string, keysAndValues []any) {
	if level < z.level.get() {
		return
	}

	event := z.logger.WithLevel(level)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, val := pairAt(keysAndValues, i)
		switch v := val.(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case uint64:
			event = event.Uint64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		case time.Duration:
			event = event.Dur(key, v)
		case error:
			event = event.AnErr(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)
}

// pairAt returns the key/value pair starting at index i. A dangling key gets
// the value "!MISSING".
func pairAt(kv []any, i int) (string, any) {
	key, ok := kv[i].(string)
	if !ok {
		key = fmt.Sprint(kv[i])
	}
	if i+1 >= len(kv) {
		return key, "!MISSING"
	}

	return key, kv[i+1]
}

func toZerologLevel(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
