package sdxfer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-sdxfer/logger"
)

// Engine runs protocol operations against one device.
//
// The Engine owns the byte stream for its whole lifetime: open the stream once,
// run any number of operations, then close it. Operations never overlap; a call
// made while another is in progress returns ErrBusy.
type Engine struct {
	link   *Link
	cfg    *Config
	logger logger.Logger

	mu      sync.Mutex
	metrics Metrics
}

// NewEngine creates an Engine over rw. A nil cfg selects the defaults.
func NewEngine(rw io.ReadWriter, cfg *Config) (*Engine, error) {
	link, err := NewLink(rw, cfg)
	if err != nil {
		return nil, err
	}

	return &Engine{
		link:   link,
		cfg:    link.cfg,
		logger: link.cfg.logger,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config { return e.cfg }

// Metrics returns the engine counters.
func (e *Engine) Metrics() *Metrics { return &e.metrics }

// SendFile copies the local file at localPath to remoteName on the device.
//
// cmd is the device command that starts the transfer (CmdSendFile on stock
// firmware). The sequence is: command, filename, decimal size, raw payload,
// confirmation. A reply carrying ErrorMarker at any text step stops the
// sequence and yields an aborted Result with a nil error; the payload is
// never streamed if an earlier step was rejected.
func (e *Engine) SendFile(ctx context.Context, cmd Command, localPath, remoteName string) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := validateFilename(remoteName); err != nil {
		return nil, err
	}
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()

	s := e.newSession(OpSend, localPath, remoteName)
	err := e.runSend(ctx, s, cmd)

	return e.finish(s, err)
}

func (e *Engine) runSend(ctx context.Context, s *session, cmd Command) error {
	if ok, err := s.exchange(ctx, StepCommand, cmd.String()); !ok || err != nil {
		return err
	}

	if ok, err := s.exchange(ctx, StepFilename, s.remote); !ok || err != nil {
		return err
	}

	size, err := e.cfg.files.Size(s.local)
	if err != nil {
		return fmt.Errorf("sdxfer: size of %s: %w", s.local, err)
	}
	s.expected = size

	if ok, err := s.exchange(ctx, StepSize, strconv.FormatInt(size, 10)); !ok || err != nil {
		return err
	}

	s.step = StepPayload
	src, err := e.cfg.files.Open(s.local)
	if err != nil {
		return fmt.Errorf("sdxfer: open %s: %w", s.local, err)
	}
	defer src.Close()

	s.log.Debug("sdxfer: streaming payload", "bytes", size, "blockSize", e.cfg.blockSize)
	s.transferred, err = e.link.WriteRaw(src)
	if err != nil {
		return err
	}

	_, err = s.await(StepConfirm)

	return err
}

// ReceiveFile copies remoteName from the device to the local file at localPath.
//
// cmd is the device command that starts the transfer (CmdReceiveFile on stock
// firmware). The sequence is: command, filename, announced size, start prompt,
// raw payload, confirmation, local write. A reply carrying ErrorMarker stops
// the sequence with an aborted Result and nothing is written locally. A size
// reply that is not a non-negative integer fails with ErrParse.
//
// A payload shorter than announced is written anyway and reported through
// Result.Truncated, unless the engine was configured WithStrictLength.
func (e *Engine) ReceiveFile(ctx context.Context, cmd Command, remoteName, localPath string) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := validateFilename(remoteName); err != nil {
		return nil, err
	}
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()

	s := e.newSession(OpReceive, localPath, remoteName)
	err := e.runReceive(ctx, s, cmd)

	return e.finish(s, err)
}

func (e *Engine) runReceive(ctx context.Context, s *session, cmd Command) error {
	if ok, err := s.exchange(ctx, StepCommand, cmd.String()); !ok || err != nil {
		return err
	}

	if ok, err := s.exchange(ctx, StepFilename, s.remote); !ok || err != nil {
		return err
	}

	reply, err := s.await(StepSize)
	if err != nil || s.aborted {
		return err
	}
	if s.expected, err = parseByteCount(reply); err != nil {
		return err
	}
	if s.expected > e.cfg.maxPayload {
		return fmt.Errorf("%w: byte count %d exceeds limit %d", ErrParse, s.expected, e.cfg.maxPayload)
	}

	if _, err := s.await(StepPrompt); err != nil || s.aborted {
		return err
	}

	s.step = StepPayload
	chunk, err := e.link.ReadBytes(int(s.expected))
	s.transferred = int64(len(chunk.Data))
	if err != nil {
		return err
	}
	if chunk.Short() {
		s.log.Warn("sdxfer: payload shorter than announced",
			"received", len(chunk.Data),
			"expected", chunk.Requested,
			"missing", chunk.Missing(),
		)
		if e.cfg.strictLength {
			s.abort(StepPayload, "", fmt.Sprintf("received %d of %d bytes", len(chunk.Data), chunk.Requested))

			dropped, err := e.link.Discard()
			s.log.Debug("sdxfer: discarded trailing bytes", "bytes", dropped)

			return err
		}
	}

	if _, err := s.await(StepConfirm); err != nil || s.aborted {
		return err
	}

	s.step = StepPersist
	if err := e.cfg.files.WriteFile(s.local, chunk.Data); err != nil {
		return fmt.Errorf("sdxfer: write %s: %w", s.local, err)
	}

	return nil
}

// ListFiles asks the device for the names of the files on its SD card.
//
// A reply carrying ErrorMarker fails with ErrDeviceReported.
func (e *Engine) ListFiles(ctx context.Context) ([]string, error) {
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()

	if err := e.link.WriteText(ctx, e.cfg.listCommand.String()); err != nil {
		return nil, err
	}

	reply, err := e.link.ReadLine()
	if err != nil {
		return nil, err
	}
	e.logger.Debug("sdxfer: file listing", "reply", strings.TrimSpace(reply))

	if HasErrorMarker(reply) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceReported, strings.TrimSpace(reply))
	}

	return ParseFilenames(reply), nil
}

// Exec sends cmd and returns the device's multi-line reply, collected until
// the device stays quiet for the quiescence window. It suits menu-style
// commands such as CmdHelp.
func (e *Engine) Exec(ctx context.Context, cmd Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	if !e.mu.TryLock() {
		return "", ErrBusy
	}
	defer e.mu.Unlock()

	if err := e.link.WriteText(ctx, cmd.String()); err != nil {
		return "", err
	}

	return e.link.ReadLines()
}

func (e *Engine) finish(s *session, err error) (*Result, error) {
	res := s.result()
	if err != nil {
		res.Status = StatusFailed
	}
	e.metrics.record(res, err)

	switch {
	case err != nil:
		s.log.Error("sdxfer: transfer error", "step", res.Step, "error", err)
	case res.Status == StatusAborted:
		s.log.Error("sdxfer: transfer failed",
			"step", res.Step,
			"reply", res.Reply,
			"reason", res.Reason,
		)
	default:
		s.log.Info("sdxfer: transfer complete",
			"bytes", res.Transferred,
			"expected", res.Expected,
			"elapsed", res.Elapsed,
		)
	}

	return res, err
}

func parseByteCount(reply string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(reply), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: byte count %q: %w", ErrParse, strings.TrimSpace(reply), err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative byte count %d", ErrParse, n)
	}

	return n, nil
}

// session is the state of one transfer; it lives for a single SendFile or
// ReceiveFile call.
type session struct {
	id     string
	op     Operation
	local  string
	remote string
	link   *Link
	log    logger.Logger
	start  time.Time

	step        Step
	expected    int64
	transferred int64

	aborted bool
	reply   string
	reason  string
}

func (e *Engine) newSession(op Operation, local, remote string) *session {
	id := uuid.NewString()

	return &session{
		id:     id,
		op:     op,
		local:  local,
		remote: remote,
		link:   e.link,
		log:    e.logger.With("session", id, "op", string(op), "remote", remote, "local", local),
		start:  time.Now(),
	}
}

// exchange sends text as one line, then reads the device reply for step.
// It returns false when the device rejected the step.
func (s *session) exchange(ctx context.Context, step Step, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		s.step = step
		return false, err
	}

	s.step = step
	s.log.Debug("sdxfer: send", "step", step, "text", text)
	if err := s.link.WriteText(ctx, text); err != nil {
		return false, err
	}

	_, err := s.await(step)

	return err == nil && !s.aborted, err
}

// await reads one reply line for step and checks it for the error marker.
func (s *session) await(step Step) (string, error) {
	s.step = step

	reply, err := s.link.ReadLine()
	if err != nil {
		return "", err
	}
	s.log.Debug("sdxfer: reply", "step", step, "reply", strings.TrimSpace(reply))

	if HasErrorMarker(reply) {
		s.abort(step, reply, "")
	}

	return reply, nil
}

func (s *session) abort(step Step, reply, reason string) {
	s.aborted = true
	s.step = step
	s.reply = strings.TrimSpace(reply)
	s.reason = reason
}

func (s *session) result() *Result {
	res := &Result{
		Op:          s.op,
		Session:     s.id,
		Status:      StatusOK,
		Step:        s.step,
		Reply:       s.reply,
		Reason:      s.reason,
		Expected:    s.expected,
		Transferred: s.transferred,
		Elapsed:     time.Since(s.start),
	}
	if s.aborted {
		res.Status = StatusAborted
	}

	return res
}
