// Package devsim simulates the device side of the SD file transfer protocol.
//
// A Device serves commands arriving on a byte stream and keeps its SD card in
// a sdxfer.MemFileStore. Prompts and error replies follow the stock firmware,
// so the host engine can be exercised end to end over a transport.NewPipe
// loopback without hardware.
package devsim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/arloliu/go-sdxfer/logger"
	"github.com/arloliu/go-sdxfer/sdxfer"
	"github.com/arloliu/go-sdxfer/transport"
)

// Device commands understood by the simulator.
const (
	CmdHelp        = 'h'
	CmdListFiles   = 'L'
	CmdReceiveFile = 'T' // host sends a file to the card
	CmdSendFile    = 't' // card sends a file to the host
	CmdDemoFile    = 'd'
)

const (
	defaultArgTimeout = 2 * time.Second
	defaultBlockDelay = time.Millisecond
	helpLineGap       = 5 * time.Millisecond
)

type options struct {
	argTimeout   time.Duration
	blockDelay   time.Duration
	listPreamble string
	sendLimit    int // bytes actually sent for 't'; negative means whole file
	logger       logger.Logger
}

// Option configures a Device.
type Option func(*options)

// WithArgTimeout bounds how long the device waits for a filename or size line.
func WithArgTimeout(d time.Duration) Option {
	return func(o *options) { o.argTimeout = d }
}

// WithBlockDelay sets the pause after each payload block the device sends.
func WithBlockDelay(d time.Duration) Option {
	return func(o *options) { o.blockDelay = d }
}

// WithListPreamble sets text printed before the file listing, e.g. "Files on SD: ".
func WithListPreamble(s string) Option {
	return func(o *options) { o.listPreamble = s }
}

// WithSendLimit makes the device stop after n payload bytes while still
// announcing the full size, simulating a transfer that dies midway.
func WithSendLimit(n int) Option {
	return func(o *options) { o.sendLimit = n }
}

// WithLogger sets the device logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Device is a simulated SD transfer peer.
type Device struct {
	link *sdxfer.Link
	card *sdxfer.MemFileStore
	opts options
	demo int
}

// New creates a Device serving rw. A nil card starts with an empty one.
func New(rw io.ReadWriter, card *sdxfer.MemFileStore, opts ...Option) (*Device, error) {
	o := options{
		argTimeout: defaultArgTimeout,
		blockDelay: defaultBlockDelay,
		sendLimit:  -1,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := sdxfer.NewConfig(
		sdxfer.WithSettleDelay(0),
		sdxfer.WithPacingDelay(o.blockDelay),
		sdxfer.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	link, err := sdxfer.NewLink(rw, cfg)
	if err != nil {
		return nil, err
	}

	if card == nil {
		card = sdxfer.NewMemFileStore()
	}

	return &Device{link: link, card: card, opts: o}, nil
}

// Card returns the simulated SD card.
func (d *Device) Card() *sdxfer.MemFileStore { return d.card }

// Serve handles commands until ctx is done or the stream is closed.
// A closed stream, seen while reading or replying, ends Serve with a nil error.
func (d *Device) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := d.link.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}

		if err := d.dispatch(ctx, cmd); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrPortClosed) {
				return nil
			}
			return err
		}
	}
}

func (d *Device) dispatch(ctx context.Context, cmd string) error {
	d.opts.logger.Debug("devsim: command", "cmd", cmd)

	if len(cmd) != 1 {
		return d.println(ctx, "SerialManager: unknown command: "+cmd)
	}

	switch cmd[0] {
	case CmdHelp:
		return d.help(ctx)
	case CmdListFiles:
		return d.listFiles(ctx)
	case CmdReceiveFile:
		return d.receiveFile(ctx)
	case CmdSendFile:
		return d.sendFile(ctx)
	case CmdDemoFile:
		return d.createDemoFile(ctx)
	default:
		return d.println(ctx, "SerialManager: unknown command: "+cmd)
	}
}

func (d *Device) help(ctx context.Context) error {
	lines := []string{
		"SerialManager Help: Available Commands:",
		"   h: Print this help",
		"   L: List files on SD card",
		"   d: Create a demo file on the SD card",
		"   T: Receive a file from the PC and write it to the SD card",
		"   t: Send a file from the SD card to the PC",
	}
	for _, line := range lines {
		if err := d.println(ctx, line); err != nil {
			return err
		}
		time.Sleep(helpLineGap)
	}

	return nil
}

// listFiles prints the card contents on one line. Like the SdFat listing it
// replaces, each name is followed by a comma and hidden files are skipped.
func (d *Device) listFiles(ctx context.Context) error {
	names := lo.Reject(d.card.Names(), func(name string, _ int) bool {
		return strings.HasPrefix(name, ".")
	})

	var sb strings.Builder
	sb.WriteString(d.opts.listPreamble)
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte(',')
	}

	return d.println(ctx, sb.String())
}

func (d *Device) createDemoFile(ctx context.Context) error {
	d.demo++
	name := fmt.Sprintf("demo_%03d.txt", d.demo)
	d.card.Put(name, []byte(strings.Repeat("SD transfer demo file\n", 16)))

	return d.println(ctx, "Created demo file "+name)
}

// receiveFile is the device half of a host-to-device transfer.
func (d *Device) receiveFile(ctx context.Context) error {
	const tag = "SdFileTransfer: receiveFile_interactive: "

	if err := d.println(ctx, tag+"send filename to write to (end with newline)"); err != nil {
		return err
	}
	fname, err := d.readArg()
	if err != nil {
		return err
	}
	if !validName(fname) {
		return d.println(ctx, tag+sdxfer.ErrorMarker+": Cannot open file "+fname+" for writing. Exiting.")
	}

	if err := d.println(ctx, tag+"Opened "+fname+" for writing. Send file size in bytes (end with newline)"); err != nil {
		return err
	}
	sizeText, err := d.readArg()
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(sizeText)
	if err != nil || size <= 0 {
		return d.println(ctx, tag+sdxfer.ErrorMarker+": Received invalid filesize. Exiting.")
	}

	if err := d.println(ctx, tag+"Send the "+strconv.Itoa(size)+" bytes now"); err != nil {
		return err
	}
	chunk, err := d.link.ReadBytes(size)
	if err != nil {
		return err
	}
	d.card.Put(fname, chunk.Data)

	if chunk.Short() {
		return d.println(ctx, tag+"Only received "+strconv.Itoa(len(chunk.Data))+" bytes.  File transfer has stopped.")
	}

	return d.println(ctx, tag+"Successfully received "+strconv.Itoa(size)+" bytes into "+fname+".  File transfer complete.")
}

// sendFile is the device half of a device-to-host transfer.
func (d *Device) sendFile(ctx context.Context) error {
	const tag = "SdFileTransfer: sendFile_interactive: "

	if err := d.println(ctx, tag+"send filename to read from (end with newline)"); err != nil {
		return err
	}
	fname, err := d.readArg()
	if err != nil {
		return err
	}
	data, ok := d.card.Get(fname)
	if !ok {
		return d.println(ctx, tag+sdxfer.ErrorMarker+": Cannot open file "+fname+" for reading. Exiting.")
	}

	if err := d.println(ctx, "SdFileTransfer: sending file size in bytes (followed by newline)"); err != nil {
		return err
	}
	if err := d.println(ctx, strconv.Itoa(len(data))); err != nil {
		return err
	}
	if err := d.println(ctx, tag+"Sending the file bytes (after this newline)"); err != nil {
		return err
	}

	payload := data
	if d.opts.sendLimit >= 0 && d.opts.sendLimit < len(payload) {
		payload = payload[:d.opts.sendLimit]
	}
	sent, err := d.link.WriteRaw(bytes.NewReader(payload))
	if err != nil {
		return err
	}

	// a device that dies mid-transfer sends no status line
	if int(sent) != len(data) {
		d.opts.logger.Debug("devsim: payload cut short", "sent", sent, "size", len(data))
		return nil
	}

	return d.println(ctx, tag+"Successfully sent "+strconv.FormatInt(sent, 10)+" bytes from "+fname+".  File transfer complete.")
}

// readArg reads one argument line, waiting up to the argument timeout.
func (d *Device) readArg() (string, error) {
	var sb strings.Builder
	deadline := time.Now().Add(d.opts.argTimeout)

	for time.Now().Before(deadline) {
		line, err := d.link.ReadLine()
		if err != nil {
			return "", err
		}
		sb.WriteString(line)
		if strings.HasSuffix(line, "\n") {
			break
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

func (d *Device) println(ctx context.Context, text string) error {
	return d.link.WriteText(ctx, text)
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/\\:*?\"<>|")
}
