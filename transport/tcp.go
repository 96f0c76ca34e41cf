package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-grbl/logger"
)

// DefaultDialTimeout is the TCP dial timeout used when TCPDialer.Timeout is zero.
const DefaultDialTimeout = 3 * time.Second

// TCPDialer connects to controllers exposed over TCP, such as a ser2net bridge
// or a network enabled GRBL board. The name passed to Dial is a "host:port"
// address and the baud rate is ignored.
type TCPDialer struct {
	Timeout        time.Duration
	ReadBufferSize int
	Logger         logger.Logger
}

var _ Dialer = TCPDialer{}

// Dial connects to the TCP address name.
func (d TCPDialer) Dial(name string, _ int) (Transport, error) {
	if name == "" {
		return nil, ErrEmptyAddress
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	conn, err := net.DialTimeout("tcp", name, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %q: %w", name, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	return NewStreamTransport(name, conn, d.ReadBufferSize, d.Logger), nil
}
