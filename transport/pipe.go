package transport

import (
	"io"
	"sync"
	"time"

	"github.com/arloliu/go-sdxfer/internal/pool"
)

// channel is one direction of a pipe: an unbounded byte buffer with a wake-up signal.
type channel struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
	notify chan struct{}
}

func newChannel() *channel {
	return &channel{notify: make(chan struct{}, 1)}
}

func (c *channel) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *channel) write(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrPortClosed
	}
	c.buf = append(c.buf, p...)
	c.mu.Unlock()
	c.wake()

	return len(p), nil
}

// take moves buffered bytes into p and reports whether the channel is closed.
func (c *channel) take(p []byte) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	if len(c.buf) == 0 {
		c.buf = nil
	}

	return n, c.closed
}

func (c *channel) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wake()
}

// PipePort is one end of an in-memory pipe created by NewPipe.
type PipePort struct {
	rx      *channel
	tx      *channel
	timeout time.Duration
	once    sync.Once
}

var _ Port = (*PipePort)(nil)

// NewPipe creates a connected pair of in-memory ports. Bytes written to one
// end are read from the other. Both ends use timeout as their read timeout;
// a non-positive timeout selects DefaultReadTimeout.
func NewPipe(timeout time.Duration) (*PipePort, *PipePort) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	a2b, b2a := newChannel(), newChannel()

	return &PipePort{rx: b2a, tx: a2b, timeout: timeout},
		&PipePort{rx: a2b, tx: b2a, timeout: timeout}
}

// ReadTimeout returns the per-call read timeout of this end.
func (p *PipePort) ReadTimeout() time.Duration { return p.timeout }

// Read fills buf until it is full or the read timeout elapses.
// It returns io.EOF only when the peer closed the pipe and nothing was read.
func (p *PipePort) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	timer := pool.GetTimer(p.timeout)
	defer pool.PutTimer(timer)

	n := 0
	for {
		m, closed := p.rx.take(buf[n:])
		n += m

		if n == len(buf) {
			return n, nil
		}
		if closed {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}

		select {
		case <-p.rx.notify:
		case <-timer.C:
			m, _ = p.rx.take(buf[n:])
			return n + m, nil
		}
	}
}

// Write appends buf to the peer's receive buffer. It never blocks.
func (p *PipePort) Write(buf []byte) (int, error) {
	return p.tx.write(buf)
}

// Close shuts down both directions of the pipe.
func (p *PipePort) Close() error {
	p.once.Do(func() {
		p.tx.close()
		p.rx.close()
	})

	return nil
}
