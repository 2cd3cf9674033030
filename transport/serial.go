package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the line speed used by the device firmware's USB serial link.
const DefaultBaudRate = 115200

// SerialConfig describes a serial port to open.
type SerialConfig struct {
	// Name is the OS port name, e.g. "/dev/ttyACM0" or "COM9".
	Name string
	// BaudRate defaults to DefaultBaudRate when zero.
	BaudRate int
	// ReadTimeout defaults to DefaultReadTimeout when zero.
	ReadTimeout time.Duration
}

type serialPort struct {
	port serial.Port
}

var _ Port = (*serialPort)(nil)

// OpenSerial opens and configures a serial port.
//
// The returned Port adapts the driver's per-call timeout (which returns as soon
// as any byte arrives) into fill-or-timeout reads.
func OpenSerial(cfg SerialConfig) (Port, error) {
	if cfg.Name == "" {
		return nil, errors.New("transport: serial port name is empty")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	p, err := serial.Open(cfg.Name, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Name, err)
	}

	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", cfg.Name, err)
	}

	return &serialPort{port: p}, nil
}

// ListSerialPorts returns the names of the serial ports present on the host.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list serial ports: %w", err)
	}

	return ports, nil
}

func (s *serialPort) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := s.port.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			break
		}
	}

	return n, nil
}

func (s *serialPort) Write(p []byte) (int, error) {
	for written := 0; written < len(p); {
		n, err := s.port.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}

	return len(p), nil
}

func (s *serialPort) Close() error {
	return s.port.Close()
}
