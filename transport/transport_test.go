package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/arloliu/go-grbl/logger"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

const waitTimeout = 2 * time.Second

// newPipeTransport creates a StreamTransport over the local end of net.Pipe
// and returns the remote end for test simulation.
func newPipeTransport(t *testing.T) (*StreamTransport, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	tr := NewStreamTransport("pipe", local, 0, logger.NewNop())
	t.Cleanup(func() {
		_ = tr.Close()
		_ = remote.Close()
	})

	return tr, remote
}

// collect reads from tr until want bytes have been received.
func collect(t *testing.T, tr Transport, arrived <-chan struct{}, want int) []byte {
	t.Helper()

	var got []byte
	deadline := time.After(waitTimeout)
	for len(got) < want {
		select {
		case <-arrived:
			data, err := tr.ReadAvailable()
			require.NoError(t, err)
			got = append(got, data...)
		case <-deadline:
			t.Fatalf("collect: got %q, want %d bytes", got, want)
		}
	}

	return got
}

func TestStreamTransportReceive(t *testing.T) {
	require := require.New(t)

	tr, remote := newPipeTransport(t)
	arrived := make(chan struct{}, 16)
	tr.SetArrivalHandler(func() { arrived <- struct{}{} })

	_, err := remote.Write([]byte("ok\n<Idle|MPos:0.000,0.000,0.000>\n"))
	require.NoError(err)
	_, err = remote.Write([]byte("ok\n"))
	require.NoError(err)

	got := collect(t, tr, arrived, 36)
	require.Equal("ok\n<Idle|MPos:0.000,0.000,0.000>\nok\n", string(got))

	data, err := tr.ReadAvailable()
	require.NoError(err)
	require.Nil(data)
}

func TestStreamTransportWrite(t *testing.T) {
	require := require.New(t)

	tr, remote := newPipeTransport(t)

	recv := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 8)
		_, _ = io.ReadFull(remote, buf)
		recv <- buf
	}()

	n, err := tr.Write([]byte("G0 X10\r\n"))
	require.NoError(err)
	require.Equal(8, n)

	select {
	case b := <-recv:
		require.Equal("G0 X10\r\n", string(b))
	case <-time.After(waitTimeout):
		t.Fatal("remote did not receive data")
	}
}

func TestStreamTransportClose(t *testing.T) {
	require := require.New(t)

	tr, _ := newPipeTransport(t)
	require.True(tr.IsOpen())
	require.Equal("pipe", tr.Name())

	require.NoError(tr.Close())
	require.NoError(tr.Close())
	require.False(tr.IsOpen())

	_, err := tr.Write([]byte("?"))
	require.ErrorIs(err, ErrClosed)

	select {
	case <-tr.Done():
	case <-time.After(waitTimeout):
		t.Fatal("reader goroutine did not exit")
	}

	// a close is not a read failure
	data, err := tr.ReadAvailable()
	require.NoError(err)
	require.Nil(data)
}

func TestStreamTransportReadFailure(t *testing.T) {
	require := require.New(t)

	tr, remote := newPipeTransport(t)
	arrived := make(chan struct{}, 4)
	tr.SetArrivalHandler(func() { arrived <- struct{}{} })

	require.NoError(remote.Close())

	select {
	case <-arrived:
	case <-time.After(waitTimeout):
		t.Fatal("no arrival notification for read failure")
	}

	data, err := tr.ReadAvailable()
	require.ErrorIs(err, io.EOF)
	require.Nil(data)

	// reported once
	data, err = tr.ReadAvailable()
	require.NoError(err)
	require.Nil(data)

	// the transport is still open until closed by its owner
	require.True(tr.IsOpen())
	<-tr.Done()
}

func TestStreamTransportHandlerMayClose(t *testing.T) {
	require := require.New(t)

	tr, remote := newPipeTransport(t)
	closed := make(chan error, 1)
	tr.SetArrivalHandler(func() { closed <- tr.Close() })

	_, err := remote.Write([]byte("x"))
	require.NoError(err)

	select {
	case err := <-closed:
		require.NoError(err)
	case <-time.After(waitTimeout):
		t.Fatal("handler did not run")
	}

	select {
	case <-tr.Done():
	case <-time.After(waitTimeout):
		t.Fatal("reader goroutine did not exit")
	}
	require.False(tr.IsOpen())
}

func TestSerialDialer(t *testing.T) {
	require := require.New(t)

	d := SerialDialer{Logger: logger.NewNop()}

	tr, err := d.Dial("", 115200)
	require.ErrorIs(err, ErrEmptyPortName)
	require.Nil(tr)

	tr, err = d.Dial("/dev/ttyUSB0", 0)
	require.Error(err)
	require.Nil(tr)

	tr, err = d.Dial("/dev/grbl-does-not-exist", 115200)
	require.Error(err)
	require.Nil(tr)

	mode := d.Mode(115200)
	require.Equal(115200, mode.BaudRate)
	require.Equal(8, mode.DataBits)
	require.Equal(serial.NoParity, mode.Parity)
	require.Equal(serial.OneStopBit, mode.StopBits)
}

func TestTCPDialer(t *testing.T) {
	require := require.New(t)

	_, err := TCPDialer{}.Dial("", 0)
	require.ErrorIs(err, ErrEmptyAddress)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr, err := TCPDialer{Timeout: time.Second, Logger: logger.NewNop()}.Dial(ln.Addr().String(), 115200)
	require.NoError(err)
	defer tr.Close()

	var remote net.Conn
	select {
	case remote = <-accepted:
	case <-time.After(waitTimeout):
		t.Fatal("no connection accepted")
	}
	defer remote.Close()

	arrived := make(chan struct{}, 16)
	tr.SetArrivalHandler(func() { arrived <- struct{}{} })

	_, err = remote.Write([]byte("Grbl 1.1h ['$' for help]\r\n"))
	require.NoError(err)
	require.Equal("Grbl 1.1h ['$' for help]\r\n", string(collect(t, tr, arrived, 26)))

	_, err = tr.Write([]byte("$$\n"))
	require.NoError(err)
	buf := make([]byte, 3)
	_, err = io.ReadFull(remote, buf)
	require.NoError(err)
	require.Equal("$$\n", string(buf))
}

func TestTCPDialerRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	tr, err := TCPDialer{Timeout: 200 * time.Millisecond}.Dial(addr, 0)
	require.Error(t, err)
	require.Nil(t, tr)
}

func TestDialerFunc(t *testing.T) {
	var gotName string
	var gotBaud int
	d := DialerFunc(func(name string, baud int) (Transport, error) {
		gotName, gotBaud = name, baud
		return nil, ErrClosed
	})

	_, err := d.Dial("COM4", 9600)
	require.ErrorIs(t, err, ErrClosed)
	require.Equal(t, "COM4", gotName)
	require.Equal(t, 9600, gotBaud)
}
