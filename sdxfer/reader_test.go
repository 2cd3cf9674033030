package sdxfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-sdxfer/transport"
)

func newTestLink(t *testing.T, rw io.ReadWriter, opts ...Option) *Link {
	t.Helper()

	link, err := NewLink(rw, newTestConfig(t, opts...))
	require.NoError(t, err)

	return link
}

func TestNewLink_NilPort(t *testing.T) {
	_, err := NewLink(nil, nil)
	require.ErrorIs(t, err, ErrNilPort)
}

// --- ReadLine ---

func TestReadLine(t *testing.T) {
	port := newScriptPort("first\n", "second\n", "partial")
	link := newTestLink(t, port)

	line, err := link.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "first\n", line)

	line, err = link.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "second\n", line)

	// no terminator before the timeout: partial text, no error
	line, err = link.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "partial", line)

	line, err = link.ReadLine()
	require.NoError(t, err)
	assert.Empty(t, line)
}

func TestReadLine_OneByteReads(t *testing.T) {
	port := newScriptPort("ok\n", "\x00\x01\x02")
	link := newTestLink(t, port)

	_, err := link.ReadLine()
	require.NoError(t, err)

	assert.Empty(t, port.bulkReads())
	assert.Equal(t, 3, port.unread(), "payload after the line must stay unread")
}

func TestReadLine_DecodeError(t *testing.T) {
	link := newTestLink(t, newScriptPort("bad \xff\xfe text\n"))

	_, err := link.ReadLine()
	require.ErrorIs(t, err, ErrDecode)
}

func TestReadLine_ErrorMarkerAfterDecode(t *testing.T) {
	link := newTestLink(t, newScriptPort("SdFileTransfer: "+ErrorMarker+": Cannot open file\n"))

	line, err := link.ReadLine()
	require.NoError(t, err)
	assert.True(t, HasErrorMarker(line))
}

func TestReadLine_TransportError(t *testing.T) {
	port := newScriptPort()
	port.readErr = errors.New("device unplugged")
	link := newTestLink(t, port)

	_, err := link.ReadLine()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

// --- ReadLines ---

func TestReadLines_StopsAfterQuiescence(t *testing.T) {
	host, dev := transport.NewPipe(20 * time.Millisecond)
	t.Cleanup(func() { _ = host.Close() })

	link := newTestLink(t, host, WithQuiescence(100*time.Millisecond))

	go func() {
		for _, line := range []string{"menu:\n", "  h: help\n", "  L: list\n"} {
			_, _ = dev.Write([]byte(line))
			time.Sleep(30 * time.Millisecond)
		}
	}()

	start := time.Now()
	text, err := link.ReadLines()
	require.NoError(t, err)

	assert.Equal(t, "menu:\n  h: help\n  L: list\n", text)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestReadLines_SilentDevice(t *testing.T) {
	host, _ := transport.NewPipe(10 * time.Millisecond)
	t.Cleanup(func() { _ = host.Close() })

	link := newTestLink(t, host, WithQuiescence(50*time.Millisecond))

	text, err := link.ReadLines()
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestReadLines_DecodeError(t *testing.T) {
	link := newTestLink(t, newScriptPort("good\n", "\xc3\x28\n"), WithQuiescence(MinQuiescence))

	_, err := link.ReadLines()
	require.ErrorIs(t, err, ErrDecode)
}

// --- ReadBytes ---

func TestReadBytes_BlockRequests(t *testing.T) {
	data := pattern(2500)
	port := newScriptPort(string(data))
	link := newTestLink(t, port)

	chunk, err := link.ReadBytes(2500)
	require.NoError(t, err)

	assert.Equal(t, []int{1024, 1024, 452}, port.bulkReads())
	assert.Equal(t, data, chunk.Data)
	assert.False(t, chunk.Short())
}

func TestReadBytes_ShortReadStops(t *testing.T) {
	data := pattern(1324)
	port := newScriptPort(string(data))
	link := newTestLink(t, port)

	chunk, err := link.ReadBytes(4096)
	require.NoError(t, err)

	assert.Equal(t, []int{1024, 1024}, port.bulkReads())
	assert.Equal(t, data, chunk.Data)
	assert.True(t, chunk.Short())
	assert.Equal(t, 4096, chunk.Requested)
	assert.Equal(t, 4096-1324, chunk.Missing())
}

func TestReadBytes_CustomBlockSize(t *testing.T) {
	port := newScriptPort(string(pattern(100)))
	link := newTestLink(t, port, WithBlockSize(64))

	chunk, err := link.ReadBytes(100)
	require.NoError(t, err)

	assert.Equal(t, []int{64, 36}, port.bulkReads())
	assert.Len(t, chunk.Data, 100)
}

func TestReadBytes_Zero(t *testing.T) {
	port := newScriptPort("untouched")
	link := newTestLink(t, port)

	chunk, err := link.ReadBytes(0)
	require.NoError(t, err)
	assert.Empty(t, chunk.Data)
	assert.False(t, chunk.Short())
	assert.Empty(t, port.reads)
}

func TestReadBytes_HugeRequest(t *testing.T) {
	port := newScriptPort("abc")
	link := newTestLink(t, port)

	// the buffer grows with received data, not with the announced size
	chunk, err := link.ReadBytes(math.MaxInt)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc"), chunk.Data)
	assert.True(t, chunk.Short())
	assert.Equal(t, math.MaxInt, chunk.Requested)
	assert.Equal(t, []int{1024}, port.bulkReads())
}

func TestReadBytes_StopsAtPause(t *testing.T) {
	port := newScriptPort("abc", gap, "status\n")
	link := newTestLink(t, port)

	chunk, err := link.ReadBytes(10)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), chunk.Data)

	line, err := link.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "status\n", line)
}

func TestReadBytes_Negative(t *testing.T) {
	link := newTestLink(t, newScriptPort())

	_, err := link.ReadBytes(-1)
	require.ErrorIs(t, err, ErrParse)
}

func TestReadBytes_OverPipe(t *testing.T) {
	host, dev := transport.NewPipe(30 * time.Millisecond)
	t.Cleanup(func() { _ = host.Close() })

	data := pattern(3000)
	go func() {
		for off := 0; off < len(data); off += 500 {
			_, _ = dev.Write(data[off : off+500])
			time.Sleep(2 * time.Millisecond)
		}
	}()

	link := newTestLink(t, host)
	chunk, err := link.ReadBytes(3000)
	require.NoError(t, err)
	assert.Equal(t, data, chunk.Data)
}

// --- Discard ---

func TestDiscard(t *testing.T) {
	port := newScriptPort("late bytes", "Only sent 60 bytes\n", gap, "next\n")
	link := newTestLink(t, port)

	n, err := link.Discard()
	require.NoError(t, err)
	assert.Equal(t, len("late bytes")+len("Only sent 60 bytes\n"), n)

	line, err := link.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "next\n", line)
}

func TestDiscard_QuietDevice(t *testing.T) {
	link := newTestLink(t, newScriptPort())

	n, err := link.Discard()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiscard_ClosedPipe(t *testing.T) {
	host, dev := transport.NewPipe(20 * time.Millisecond)
	_, err := dev.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	link := newTestLink(t, host)
	n, err := link.Discard()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

// --- Writes ---

func TestWriteText(t *testing.T) {
	port := newScriptPort()
	link := newTestLink(t, port)

	require.NoError(t, link.WriteText(context.Background(), "T"))
	require.NoError(t, link.WriteText(context.Background(), "song.wav"))

	assert.Equal(t, "T\nsong.wav\n", port.written())
}

func TestWriteText_SettleDelay(t *testing.T) {
	link := newTestLink(t, newScriptPort(), WithSettleDelay(30*time.Millisecond))

	start := time.Now()
	require.NoError(t, link.WriteText(context.Background(), "h"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, link.WriteText(ctx, "h"), context.Canceled)
}

func TestWriteRaw(t *testing.T) {
	port := newScriptPort()
	link := newTestLink(t, port, WithBlockSize(16))

	data := pattern(40)
	n, err := link.WriteRaw(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, int64(40), n)
	assert.Equal(t, string(data), port.written())
}

func TestWriteRaw_Pacing(t *testing.T) {
	link := newTestLink(t, newScriptPort(), WithBlockSize(10), WithPacingDelay(10*time.Millisecond))

	// three full blocks pause three times; the tail block does not pause
	start := time.Now()
	n, err := link.WriteRaw(strings.NewReader(strings.Repeat("x", 35)))
	require.NoError(t, err)

	assert.Equal(t, int64(35), n)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

type failingWriter struct{}

func (failingWriter) Read([]byte) (int, error)  { return 0, nil }
func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("port gone") }

func TestWriteRaw_WriteError(t *testing.T) {
	link := newTestLink(t, failingWriter{})

	n, err := link.WriteRaw(strings.NewReader("payload"))
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "port gone")
}
