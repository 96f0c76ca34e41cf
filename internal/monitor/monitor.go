// Package monitor runs a GRBL connection for the grblmon command: it opens
// the connection with retries, prints what the controller says, polls its
// status and serves metrics and health endpoints.
package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/arloliu/go-grbl/connection"
	"github.com/arloliu/go-grbl/event"
	"github.com/arloliu/go-grbl/grbl"
	"github.com/arloliu/go-grbl/internal/cliconfig"
	"github.com/arloliu/go-grbl/internal/pool"
	"github.com/arloliu/go-grbl/logger"
	"github.com/arloliu/go-grbl/transport"
)

var (
	// ErrConnectionLost is returned by Run and SendLines when the connection
	// was closed underneath them.
	ErrConnectionLost = errors.New("monitor: connection lost")
	// ErrCommandRejected is returned by SendLines when the controller answers
	// a line with an error or alarm.
	ErrCommandRejected = errors.New("monitor: command rejected")
	// ErrReplyTimeout is returned by SendLines when no reply arrives in time.
	ErrReplyTimeout = errors.New("monitor: reply timeout")
)

const replyQueueSize = 16

// Option configures a Monitor.
type Option func(*Monitor)

// WithDialer replaces the dialer chosen from the configuration.
func WithDialer(d transport.Dialer) Option {
	return func(m *Monitor) { m.dialer = d }
}

// Monitor owns one connection and the handler interpreting it.
type Monitor struct {
	cfg     cliconfig.Config
	logger  logger.Logger
	dialer  transport.Dialer
	conn    *connection.Connection
	handler *grbl.Handler

	outMu sync.Mutex
	out   io.Writer

	replies   chan grbl.Message
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a Monitor. Frames are printed to out.
func New(cfg cliconfig.Config, out io.Writer, l logger.Logger, opts ...Option) (*Monitor, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	m := &Monitor{
		cfg:     cfg,
		logger:  l,
		out:     out,
		replies: make(chan grbl.Message, replyQueueSize),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		if cfg.TCPAddr != "" {
			m.dialer = transport.TCPDialer{Logger: l}
		} else {
			m.dialer = transport.SerialDialer{Logger: l}
		}
	}

	delim, err := cfg.DelimiterBytes()
	if err != nil {
		return nil, err
	}

	connCfg, err := connection.NewConnectionConfig(
		connection.WithDelimiter(delim),
		connection.WithDialer(m.dialer),
		connection.WithLogger(l),
	)
	if err != nil {
		return nil, err
	}

	m.conn, err = connection.NewConnection(connCfg)
	if err != nil {
		return nil, err
	}

	m.handler = grbl.NewHandler(m.conn,
		grbl.WithOnMessage(m.onMessage),
		grbl.WithRequestStatusOnWelcome(cfg.RequestStatusOnWelcome),
		grbl.WithHandlerLogger(l),
	)
	m.conn.SetFrameHandler(m.handler)
	m.conn.Events().AddFunc(func(ev event.ConnectionEvent) {
		m.logger.Info("monitor: connection closed", "port", ev.PortName, "at", ev.Time)
		m.closeOnce.Do(func() { close(m.closed) })
	})

	return m, nil
}

// Connection returns the managed connection.
func (m *Monitor) Connection() *connection.Connection { return m.conn }

// Handler returns the GRBL handler installed on the connection.
func (m *Monitor) Handler() *grbl.Handler { return m.handler }

// Open opens the connection, retrying with exponential backoff up to
// OpenRetries times after the first attempt.
func (m *Monitor) Open(ctx context.Context) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.RetryInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(m.cfg.OpenRetries)), ctx)
	op := func() error {
		err := m.conn.Open(m.cfg.Endpoint(), m.cfg.Baud)
		if errors.Is(err, connection.ErrAlreadyOpen) {
			return backoff.Permanent(err)
		}

		return err
	}
	notify := func(err error, next time.Duration) {
		m.logger.Warn("monitor: open failed, retrying", "endpoint", m.cfg.Endpoint(), "retryIn", next, "error", err)
	}

	return backoff.RetryNotify(op, b, notify)
}

// Close closes the connection.
func (m *Monitor) Close() error {
	return m.conn.Close()
}

// Run prints frames, polls the status every PollInterval, forwards the
// lines read from in (may be nil) and serves HTTP on Listen until ctx is
// done or the connection is lost. The connection is closed on return.
func (m *Monitor) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var srv *http.Server
	if m.cfg.Listen != "" {
		srv = &http.Server{
			Addr:              m.cfg.Listen,
			Handler:           m.HTTPHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error("monitor: http server failed", "listen", m.cfg.Listen, "error", err)
			}
		}()
		m.logger.Info("monitor: serving metrics and health", "listen", m.cfg.Listen)
	}

	if m.cfg.PollInterval > 0 {
		go m.pollLoop(ctx)
	}
	if in != nil {
		go m.forward(ctx, in)
	}

	var err error
	select {
	case <-ctx.Done():
	case <-m.closed:
		err = ErrConnectionLost
	}

	if cerr := m.conn.Close(); cerr != nil {
		m.logger.Warn("monitor: close failed", "error", cerr)
	}

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			m.logger.Warn("monitor: http shutdown failed", "error", serr)
		}
	}

	return err
}

// RequestStatus asks the controller for a status report, through the
// expedited path when the transport has one.
func (m *Monitor) RequestStatus() error {
	err := m.conn.SendImmediately([]byte(grbl.StatusPoll))
	if errors.Is(err, connection.ErrExpeditedWriteUnsupported) {
		return m.conn.SendString(grbl.StatusPoll)
	}

	return err
}

// SendLines sends each line and waits for its reply before sending the next.
// Replies received before a line is sent, such as the "ok" answering a
// status request, are discarded.
func (m *Monitor) SendLines(ctx context.Context, lines []string) error {
	for _, line := range lines {
		m.drainReplies()
		if err := m.conn.SendString(line); err != nil {
			return err
		}

		if err := m.awaitReply(ctx, line); err != nil {
			return err
		}
	}

	return nil
}

func (m *Monitor) awaitReply(ctx context.Context, line string) error {
	timer := pool.GetTimer(m.cfg.ReplyTimeout)
	defer pool.PutTimer(timer)

	select {
	case msg := <-m.replies:
		if msg.Type != grbl.TypeAck {
			return fmt.Errorf("%w: %q: %s", ErrCommandRejected, line, msg.Raw)
		}

		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %q", ErrReplyTimeout, line)
	case <-m.closed:
		return ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) drainReplies() {
	for {
		select {
		case <-m.replies:
		default:
			return
		}
	}
}

func (m *Monitor) onMessage(msg grbl.Message) {
	m.outMu.Lock()
	fmt.Fprintln(m.out, msg.Raw)
	m.outMu.Unlock()

	switch msg.Type {
	case grbl.TypeAck, grbl.TypeError, grbl.TypeAlarm:
		select {
		case m.replies <- msg:
		default:
			// nobody is waiting for replies in monitor mode
		}
	}
}

func (m *Monitor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.conn.IsConnected() {
				continue
			}
			if err := m.RequestStatus(); err != nil {
				m.logger.Warn("monitor: status poll failed", "error", err)
			}
		}
	}
}

// forward sends the lines read from in. It stops at EOF, on a send failure
// or once ctx is done; a read blocked on in is not interrupted.
func (m *Monitor) forward(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := m.conn.SendString(line); err != nil {
			m.logger.Error("monitor: forwarding stopped", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		m.logger.Warn("monitor: input read failed", "error", err)
	}
}
