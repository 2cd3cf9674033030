// Package transport provides the byte-stream ports used to reach a device.
//
// Every [Port] shares one read contract: Read fills p until it is full or the
// port's read timeout elapses, and on timeout returns the bytes obtained so
// far (possibly none) with a nil error. A short read is therefore the only
// signal that the remote side stopped transmitting. The protocol layer relies
// on this to detect the end of a line or payload.
//
// Two implementations are provided:
//
//   - [OpenSerial] opens a serial port through go.bug.st/serial.
//   - [NewPipe] returns a connected in-memory pair, used by tests and by the
//     simulated device.
package transport

import (
	"errors"
	"io"
	"time"
)

// DefaultReadTimeout is the read timeout applied when none is configured.
const DefaultReadTimeout = 500 * time.Millisecond

// ErrPortClosed is returned by Write on a closed port.
var ErrPortClosed = errors.New("transport: port closed")

// Port is a duplex byte stream with a per-call read timeout.
type Port interface {
	io.ReadWriteCloser
}
