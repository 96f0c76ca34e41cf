package monitor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-grbl/connection"
	"github.com/arloliu/go-grbl/internal/cliconfig"
	"github.com/arloliu/go-grbl/logger"
	"github.com/arloliu/go-grbl/machine"
	"github.com/arloliu/go-grbl/transport"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func testConfig() cliconfig.Config {
	cfg := cliconfig.DefaultConfig()
	cfg.Port = "pipe"
	cfg.PollInterval = 0
	cfg.RetryInterval = time.Millisecond
	cfg.ReplyTimeout = time.Second
	cfg.RequestStatusOnWelcome = false

	return cfg
}

// pipeDialer hands out the local end of a net.Pipe; the test drives remote.
func pipeDialer() (transport.Dialer, net.Conn) {
	local, remote := net.Pipe()
	d := transport.DialerFunc(func(name string, _ int) (transport.Transport, error) {
		return transport.NewStreamTransport(name, local, 0, logger.NewNop()), nil
	})

	return d, remote
}

func newTestMonitor(t *testing.T, cfg cliconfig.Config, d transport.Dialer) (*Monitor, *syncBuffer) {
	t.Helper()

	out := &syncBuffer{}
	m, err := New(cfg, out, logger.NewNop(), WithDialer(d))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m, out
}

func TestMonitorOpenRetries(t *testing.T) {
	require := require.New(t)

	var attempts atomic.Int32
	d, remote := pipeDialer()
	defer remote.Close()
	flaky := transport.DialerFunc(func(name string, baud int) (transport.Transport, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("device busy")
		}
		return d.Dial(name, baud)
	})

	m, _ := newTestMonitor(t, testConfig(), flaky)
	require.NoError(m.Open(context.Background()))
	require.EqualValues(3, attempts.Load())
	require.True(m.Connection().IsConnected())
}

func TestMonitorOpenGivesUp(t *testing.T) {
	require := require.New(t)

	var attempts atomic.Int32
	failing := transport.DialerFunc(func(string, int) (transport.Transport, error) {
		attempts.Add(1)
		return nil, errors.New("no such device")
	})

	cfg := testConfig()
	cfg.OpenRetries = 2
	m, _ := newTestMonitor(t, cfg, failing)

	err := m.Open(context.Background())
	require.ErrorIs(err, connection.ErrTransportUnavailable)
	require.EqualValues(3, attempts.Load())
	require.True(m.Connection().StateMgr().IsDisconnected())
}

func TestMonitorSendLines(t *testing.T) {
	require := require.New(t)

	d, remote := pipeDialer()
	defer remote.Close()
	m, out := newTestMonitor(t, testConfig(), d)
	require.NoError(m.Open(context.Background()))

	// fake controller: accepts G-code, rejects anything else
	go func() {
		r := bufio.NewReader(remote)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			reply := "ok\n"
			if !strings.HasPrefix(line, "G") {
				reply = "error:20\n"
			}
			if _, err := remote.Write([]byte(reply)); err != nil {
				return
			}
		}
	}()

	require.NoError(m.SendLines(context.Background(), []string{"G21", "G90"}))

	err := m.SendLines(context.Background(), []string{"M999"})
	require.ErrorIs(err, ErrCommandRejected)
	require.Contains(err.Error(), "error:20")

	require.Equal("ok\nok\nerror:20\n", out.String())
}

func TestMonitorSendLinesTimeout(t *testing.T) {
	require := require.New(t)

	d, remote := pipeDialer()
	defer remote.Close()
	go func() { _, _ = io.Copy(io.Discard, remote) }()

	cfg := testConfig()
	cfg.ReplyTimeout = 20 * time.Millisecond
	m, _ := newTestMonitor(t, cfg, d)
	require.NoError(m.Open(context.Background()))

	require.ErrorIs(m.SendLines(context.Background(), []string{"G4 P10"}), ErrReplyTimeout)
}

func TestMonitorStatus(t *testing.T) {
	require := require.New(t)

	d, remote := pipeDialer()
	defer remote.Close()

	cfg := testConfig()
	cfg.RequestStatusOnWelcome = true
	m, _ := newTestMonitor(t, cfg, d)
	require.NoError(m.Open(context.Background()))

	polled := make(chan string, 1)
	go func() {
		_, _ = remote.Write([]byte("\r\nGrbl 1.1h ['$' for help]\r\n"))
		buf := make([]byte, 8)
		n, _ := remote.Read(buf)
		polled <- string(buf[:n])
		_, _ = remote.Write([]byte("<Idle|MPos:1.000,2.000,3.000|FS:0,0|WCO:1.000,1.000,1.000>\n"))
	}()

	select {
	case got := <-polled:
		require.Equal("?\n", got)
	case <-time.After(time.Second):
		t.Fatal("no status request after welcome")
	}

	conn := m.Connection()
	require.Eventually(func() bool { return conn.ActiveState() == machine.Idle }, time.Second, 5*time.Millisecond)
	require.Equal(machine.NewPosition(1, 2, 3), conn.MachinePosition())
	require.Equal(machine.NewPosition(0, 1, 2), conn.WorkPosition())
	require.Equal("1.1h", m.Handler().Version())
}

func TestMonitorRunStopsOnConnectionLoss(t *testing.T) {
	require := require.New(t)

	d, remote := pipeDialer()
	cfg := testConfig()
	cfg.PollInterval = 5 * time.Millisecond
	m, _ := newTestMonitor(t, cfg, d)
	require.NoError(m.Open(context.Background()))

	go func() {
		r := bufio.NewReader(remote)
		// answer one poll, then unplug
		_, _ = r.ReadString('\n')
		_ = remote.Close()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(context.Background(), nil) }()

	select {
	case err := <-errCh:
		require.ErrorIs(err, ErrConnectionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the connection was lost")
	}
	require.True(m.Connection().StateMgr().IsDisconnected())
}

func TestMonitorRunForwardsInput(t *testing.T) {
	require := require.New(t)

	d, remote := pipeDialer()
	defer remote.Close()
	m, _ := newTestMonitor(t, testConfig(), d)
	require.NoError(m.Open(context.Background()))

	received := make(chan string, 2)
	go func() {
		r := bufio.NewReader(remote)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			received <- line
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx, strings.NewReader("$I\n\n  G0 X1  \n")) }()

	require.Equal("$I\n", <-received)
	require.Equal("G0 X1\n", <-received)

	cancel()
	require.NoError(<-errCh)
	require.False(m.Connection().IsConnected())
}

func TestMonitorHTTPHandler(t *testing.T) {
	require := require.New(t)

	d, remote := pipeDialer()
	defer remote.Close()
	m, _ := newTestMonitor(t, testConfig(), d)
	h := m.HTTPHandler()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	require.Equal(http.StatusOK, get("/live").Code)
	require.Equal(http.StatusServiceUnavailable, get("/ready").Code)

	require.NoError(m.Open(context.Background()))
	require.Equal(http.StatusOK, get("/ready").Code)

	rec := get("/metrics")
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "grbl_connection_opens_total 1")
	require.Contains(rec.Body.String(), "grbl_connection_connected 1")
}

func TestWatchLogLevel(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(os.WriteFile(path, []byte(`log_level = "info"`), 0o600))

	l := logger.NewZerolog(io.Discard, logger.InfoLevel, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchLogLevel(ctx, path, l) }()

	require.Eventually(func() bool {
		// rewrite until the watcher, started asynchronously, picks it up
		_ = os.WriteFile(path, []byte(`log_level = "debug"`), 0o600)
		return l.Level() == logger.DebugLevel
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(<-done)
}

func TestReloadLogLevelIgnoresBadFiles(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	l := logger.NewZerolog(io.Discard, logger.WarnLevel, false)

	reloadLogLevel(path, l)
	require.Equal(logger.WarnLevel, l.Level())

	require.NoError(os.WriteFile(path, []byte(`log_level = "chatty"`), 0o600))
	reloadLogLevel(path, l)
	require.Equal(logger.WarnLevel, l.Level())

	require.NoError(os.WriteFile(path, []byte(`port = "/dev/ttyUSB0"`), 0o600))
	reloadLogLevel(path, l)
	require.Equal(logger.WarnLevel, l.Level())

	require.NoError(os.WriteFile(path, []byte(`log_level = "error"`), 0o600))
	reloadLogLevel(path, l)
	require.Equal(logger.ErrorLevel, l.Level())
}
