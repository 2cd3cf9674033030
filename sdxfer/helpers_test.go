package sdxfer

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/arloliu/go-sdxfer/logger"
)

// gap in a script marks a pause longer than the read timeout.
const gap = "\x00gap\x00"

// scriptPort is a byte stream fed from a prepared script.
//
// Read copies from the script until p is full or the script runs out, then
// returns a short count with a nil error, the way a port with a read timeout
// behaves once the device stops sending. A gap entry ends the read that
// reaches it, as a timeout would. Writes and read sizes are recorded.
type scriptPort struct {
	mu      sync.Mutex
	rx      [][]byte
	tx      bytes.Buffer
	reads   []int
	readErr error
}

func newScriptPort(script ...string) *scriptPort {
	p := &scriptPort{}
	for _, s := range script {
		if s == gap {
			p.rx = append(p.rx, nil)
		} else if s != "" {
			p.rx = append(p.rx, []byte(s))
		}
	}

	return p
}

func (p *scriptPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads = append(p.reads, len(b))
	if p.readErr != nil && len(p.rx) == 0 {
		return 0, p.readErr
	}

	n := 0
	for n < len(b) && len(p.rx) > 0 {
		seg := p.rx[0]
		if seg == nil {
			p.rx = p.rx[1:]
			break
		}
		m := copy(b[n:], seg)
		n += m
		if m == len(seg) {
			p.rx = p.rx[1:]
		} else {
			p.rx[0] = seg[m:]
		}
	}

	return n, nil
}

// unread returns the number of scripted bytes not yet read.
func (p *scriptPort) unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, seg := range p.rx {
		total += len(seg)
	}

	return total
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tx.Write(b)
}

// written returns everything written to the port so far.
func (p *scriptPort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tx.String()
}

// bulkReads returns the sizes of all reads that asked for more than one byte.
func (p *scriptPort) bulkReads() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sizes []int
	for _, n := range p.reads {
		if n != 1 {
			sizes = append(sizes, n)
		}
	}

	return sizes
}

// newTestConfig creates a Config without protocol pauses and with a quiet logger.
func newTestConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	defaults := []Option{
		WithSettleDelay(0),
		WithPacingDelay(0),
		WithLogger(logger.NewSlogWithFormat(io.Discard, logger.JSONFormat, logger.DebugLevel, false)),
	}

	cfg, err := NewConfig(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestConfig: %v", err)
	}

	return cfg
}

// newTestEngine creates an Engine over port with a MemFileStore as its filesystem.
func newTestEngine(t *testing.T, port io.ReadWriter, opts ...Option) (*Engine, *MemFileStore) {
	t.Helper()

	files := NewMemFileStore()
	cfg := newTestConfig(t, append([]Option{WithFileStore(files)}, opts...)...)

	eng, err := NewEngine(port, cfg)
	if err != nil {
		t.Fatalf("newTestEngine: %v", err)
	}

	return eng, files
}

// pattern returns n bytes of a repeating, non-text pattern.
func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}

	return data
}
