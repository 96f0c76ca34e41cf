package transport

import (
	"fmt"

	"github.com/arloliu/go-grbl/logger"
	"go.bug.st/serial"
)

// SerialDialer opens serial ports with go.bug.st/serial.
//
// Ports are configured with 8 data bits, 1 stop bit and no parity, and the
// RTS and DTR lines are raised after opening.
type SerialDialer struct {
	// ReadBufferSize is the size of a single read; <= 0 selects
	// DefaultReadBufferSize.
	ReadBufferSize int
	// Logger is used by the opened transports; nil selects the default logger.
	Logger logger.Logger
}

var _ Dialer = SerialDialer{}

// Mode returns the serial mode used for baudRate.
func (d SerialDialer) Mode(baudRate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Dial opens and configures the serial port name.
func (d SerialDialer) Dial(name string, baudRate int) (Transport, error) {
	if name == "" {
		return nil, ErrEmptyPortName
	}
	if baudRate <= 0 {
		return nil, fmt.Errorf("transport: invalid baud rate %d", baudRate)
	}

	port, err := serial.Open(name, d.Mode(baudRate))
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %q: %w", name, err)
	}

	if err := port.SetRTS(true); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set RTS on %q: %w", name, err)
	}
	if err := port.SetDTR(true); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set DTR on %q: %w", name, err)
	}

	return NewStreamTransport(name, port, d.ReadBufferSize, d.Logger), nil
}

// ListPorts returns the names of the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list serial ports: %w", err)
	}

	return ports, nil
}
