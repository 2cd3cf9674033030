package sdxfer

import (
	"fmt"
	"strings"
	"time"
)

// Operation identifies the transfer direction.
type Operation string

const (
	// OpSend moves a local file to the device.
	OpSend Operation = "send"
	// OpReceive moves a device file to the host.
	OpReceive Operation = "receive"
)

// Status is the outcome of a transfer.
type Status int

const (
	// StatusOK means every step completed.
	StatusOK Status = iota
	// StatusAborted means the device rejected a step, or a strict length check failed.
	StatusAborted
	// StatusFailed means a hard failure ended the transfer; the returned error explains it.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Step names one stage of a transfer sequence.
type Step string

const (
	// StepCommand sends the command character that starts the transfer.
	StepCommand Step = "command"
	// StepFilename sends the name of the file on the device.
	StepFilename Step = "filename"
	// StepSize exchanges the payload size as a decimal line.
	StepSize Step = "size"
	// StepPrompt reads the device's announcement that the payload follows.
	StepPrompt Step = "prompt"
	// StepPayload moves the raw file bytes.
	StepPayload Step = "payload"
	// StepConfirm reads the device's closing status line.
	StepConfirm Step = "confirm"
	// StepPersist writes the received bytes to the local file.
	StepPersist Step = "persist"
)

// Result describes a finished transfer.
type Result struct {
	Op      Operation
	Session string
	Status  Status

	// Step is the last step reached; for an aborted transfer, the step that failed.
	Step Step
	// Reply is the device reply that caused an abort, without its terminator.
	Reply string
	// Reason explains an abort that was not caused by a device reply.
	Reason string

	// Expected is the announced payload size in bytes.
	Expected int64
	// Transferred is the number of payload bytes actually moved.
	Transferred int64

	Elapsed time.Duration
}

// OK reports whether the transfer completed.
func (r *Result) OK() bool { return r != nil && r.Status == StatusOK }

// Truncated reports whether the payload started moving but fewer bytes moved
// than were announced.
func (r *Result) Truncated() bool {
	if r == nil || r.Transferred >= r.Expected {
		return false
	}

	switch r.Step {
	case StepPayload, StepConfirm, StepPersist:
		return true
	default:
		return false
	}
}

func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s at %s: %d/%d bytes in %v", r.Op, r.Status, r.Step, r.Transferred, r.Expected, r.Elapsed.Round(time.Millisecond))
	if r.Reply != "" {
		fmt.Fprintf(&sb, ", reply %q", r.Reply)
	}
	if r.Reason != "" {
		fmt.Fprintf(&sb, ", %s", r.Reason)
	}

	return sb.String()
}
