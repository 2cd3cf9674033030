package sdxfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arloliu/go-sdxfer/internal/pool"
	"github.com/arloliu/go-sdxfer/logger"
)

// Chunk is the outcome of a raw byte read.
type Chunk struct {
	// Data holds the bytes actually received.
	Data []byte
	// Requested is the number of bytes that were asked for.
	Requested int
}

// Short reports whether fewer bytes than requested were received.
func (c Chunk) Short() bool { return len(c.Data) < c.Requested }

// Missing returns how many requested bytes never arrived.
func (c Chunk) Missing() int { return c.Requested - len(c.Data) }

// Link provides the framing primitives of the protocol on top of a byte stream.
//
// The stream's Read must fill the buffer or return early, with a nil error,
// once its read timeout elapses (see package transport).
//
// Link is NOT goroutine-safe; Engine serializes access to it.
type Link struct {
	rw     io.ReadWriter
	cfg    *Config
	logger logger.Logger

	one [1]byte
}

// NewLink creates a Link over rw. A nil cfg selects the defaults.
func NewLink(rw io.ReadWriter, cfg *Config) (*Link, error) {
	if rw == nil {
		return nil, ErrNilPort
	}
	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	return &Link{rw: rw, cfg: cfg, logger: cfg.logger}, nil
}

// --- Text ---

// ReadLine reads one text line.
//
// It blocks until '\n' arrives or one read times out. The line is returned
// with its terminator; on timeout the partial (possibly empty) text is
// returned without error. Bytes that are not valid UTF-8 fail with ErrDecode.
//
// Bytes are read one at a time so a binary payload following the line is
// never consumed.
func (l *Link) ReadLine() (string, error) {
	line := make([]byte, 0, 64)

	for {
		n, err := l.rw.Read(l.one[:])
		if n == 1 {
			line = append(line, l.one[0])
		}
		if err != nil {
			return "", fmt.Errorf("sdxfer: read line: %w", err)
		}
		if n == 0 || l.one[0] == '\n' {
			break
		}
	}

	if !utf8.Valid(line) {
		return "", fmt.Errorf("%w: % X", ErrDecode, line)
	}

	return string(line), nil
}

// ReadLines collects lines until the device has been silent for the
// configured quiescence window, and returns their concatenation.
//
// The window is measured from the last non-empty read; the first read starts
// the clock even when it is empty. Silence is the normal way for this call to
// end and is never reported as an error.
func (l *Link) ReadLines() (string, error) {
	first, err := l.ReadLine()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(first)
	lastReply := time.Now()

	for time.Since(lastReply) < l.cfg.quiescence {
		line, err := l.ReadLine()
		if err != nil {
			return sb.String(), err
		}
		if line != "" {
			sb.WriteString(line)
			lastReply = time.Now()
		}
	}

	return sb.String(), nil
}

// WriteText sends text followed by '\n', then waits the settle delay so the
// device can prepare its reply.
func (l *Link) WriteText(ctx context.Context, text string) error {
	if err := l.writeAll([]byte(text + "\n")); err != nil {
		return fmt.Errorf("sdxfer: write text: %w", err)
	}

	return pool.Sleep(ctx, l.cfg.settleDelay)
}

// --- Binary ---

// ReadBytes reads up to n raw bytes, requesting at most one block per call.
//
// It stops early when a read returns fewer bytes than requested (or the
// stream reports io.EOF): the sender is assumed to have stopped, and the
// bytes gathered so far are returned without error. Callers must check
// Chunk.Short to detect truncation.
func (l *Link) ReadBytes(n int) (Chunk, error) {
	if n < 0 {
		return Chunk{}, fmt.Errorf("%w: negative byte count %d", ErrParse, n)
	}

	// n comes from the device; grow with the data actually received
	chunk := Chunk{Data: make([]byte, 0, min(n, l.cfg.blockSize)), Requested: n}
	block := make([]byte, min(l.cfg.blockSize, max(n, 1)))

	for remaining := n; remaining > 0; {
		want := min(len(block), remaining)

		got, err := l.rw.Read(block[:want])
		chunk.Data = append(chunk.Data, block[:got]...)

		if err != nil && !errors.Is(err, io.EOF) {
			return chunk, fmt.Errorf("sdxfer: read payload: %w", err)
		}
		if got < want {
			l.logger.Debug("sdxfer: short read, assuming end of payload",
				"got", got,
				"want", want,
				"received", len(chunk.Data),
				"requested", n,
			)

			break
		}

		remaining -= got
	}

	return chunk, nil
}

// Discard reads and drops bytes until a read comes back short, meaning the
// device has gone quiet. It returns the number of bytes dropped.
func (l *Link) Discard() (int, error) {
	block := make([]byte, l.cfg.blockSize)
	total := 0

	for {
		n, err := l.rw.Read(block)
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, fmt.Errorf("sdxfer: discard: %w", err)
		}
		if n < len(block) {
			return total, nil
		}
	}
}

// WriteRaw streams src to the device unframed, one block per write, pausing
// for the pacing delay after every full block. It returns the number of bytes
// written.
//
// Pacing pauses are not interruptible: once streaming starts the only way to
// stop it is a transport failure.
func (l *Link) WriteRaw(src io.Reader) (int64, error) {
	block := make([]byte, l.cfg.blockSize)
	var total int64

	for {
		n, err := io.ReadFull(src, block)
		if n > 0 {
			if werr := l.writeAll(block[:n]); werr != nil {
				return total, fmt.Errorf("sdxfer: write payload: %w", werr)
			}
			total += int64(n)
		}

		switch {
		case err == nil:
			_ = pool.Sleep(context.Background(), l.cfg.pacingDelay)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return total, nil
		default:
			return total, fmt.Errorf("sdxfer: read local file: %w", err)
		}
	}
}

func (l *Link) writeAll(data []byte) error {
	for written := 0; written < len(data); {
		n, err := l.rw.Write(data[written:])
		written += n
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}

	return nil
}
