package sdxfer

import (
	"fmt"
	"strings"
)

// ErrorMarker is the literal a device embeds in a reply to reject the current step.
const ErrorMarker = "*** ERROR ***"

// Command is a single-character device command.
//
// The command set is fixed by the device firmware; the defaults below match
// the stock SD transfer sketch.
type Command byte

const (
	// CmdHelp asks the device for its help menu (multi-line reply).
	CmdHelp Command = 'h'
	// CmdListFiles asks the device for a one-line listing of the SD card root.
	CmdListFiles Command = 'L'
	// CmdSendFile starts a host-to-device transfer.
	CmdSendFile Command = 'T'
	// CmdReceiveFile starts a device-to-host transfer.
	CmdReceiveFile Command = 't'
)

func (c Command) String() string {
	return string(rune(c))
}

// Validate checks that c is a printable, non-space ASCII character.
func (c Command) Validate() error {
	if c < 0x21 || c > 0x7e {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidCommand, byte(c))
	}

	return nil
}

// ParseCommand converts a one-character string into a Command.
func ParseCommand(s string) (Command, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCommand, s)
	}
	c := Command(s[0])

	return c, c.Validate()
}

// HasErrorMarker reports whether reply contains ErrorMarker.
func HasErrorMarker(reply string) bool {
	return strings.Contains(reply, ErrorMarker)
}

func validateFilename(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}

	return nil
}
