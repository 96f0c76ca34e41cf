package connection

import (
	"github.com/arloliu/go-grbl/framer"
	"github.com/arloliu/go-grbl/internal/util"
	"github.com/arloliu/go-grbl/logger"
	"github.com/arloliu/go-grbl/transport"
)

// ConnectionConfig holds the configuration of a Connection. It is fixed for
// the lifetime of the connection.
type ConnectionConfig struct {
	delimiter    []byte
	dialer       transport.Dialer
	frameHandler FrameHandler
	logger       logger.Logger
}

// NewConnectionConfig creates a connection configuration.
//
// Defaults: newline delimiter, transport.SerialDialer, no frame handler and
// the package default logger. opts are applied in order; see With* functions.
func NewConnectionConfig(opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		delimiter: util.CloneSlice(framer.DefaultDelimiter, 0),
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.dialer == nil {
		cfg.dialer = transport.SerialDialer{Logger: cfg.logger}
	}

	return cfg, nil
}

// Delimiter returns a copy of the frame delimiter.
func (cfg *ConnectionConfig) Delimiter() []byte { return util.CloneSlice(cfg.delimiter, 0) }

// Dialer returns the transport dialer.
func (cfg *ConnectionConfig) Dialer() transport.Dialer { return cfg.dialer }

// FrameHandler returns the initial frame handler, or nil.
func (cfg *ConnectionConfig) FrameHandler() FrameHandler { return cfg.frameHandler }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithDelimiter sets the byte sequence terminating frames in both directions.
// The delimiter must not be empty.
func WithDelimiter(delim []byte) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if len(delim) == 0 {
			return framer.ErrEmptyDelimiter
		}
		cfg.delimiter = util.CloneSlice(delim, 0)

		return nil
	})
}

// WithDialer sets the dialer used by Open.
func WithDialer(d transport.Dialer) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.dialer = d
		return nil
	})
}

// WithFrameHandler sets the initial frame handler.
func WithFrameHandler(h FrameHandler) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.frameHandler = h
		return nil
	})
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l != nil {
			cfg.logger = l
		}

		return nil
	})
}
