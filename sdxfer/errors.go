package sdxfer

import "errors"

var (
	// ErrDecode indicates that bytes received where text was expected are not valid UTF-8.
	ErrDecode = errors.New("sdxfer: reply is not valid UTF-8 text")

	// ErrParse indicates that a numeric reply field could not be parsed.
	ErrParse = errors.New("sdxfer: malformed numeric reply")

	// ErrDeviceReported indicates that a query reply carried the device error marker.
	ErrDeviceReported = errors.New("sdxfer: device reported an error")
)

var (
	// ErrBusy indicates that another operation is running on the same engine.
	ErrBusy = errors.New("sdxfer: engine busy with another operation")

	// ErrNilPort indicates that a nil byte stream was given to NewEngine.
	ErrNilPort = errors.New("sdxfer: byte stream is nil")

	// ErrInvalidFilename indicates an empty filename or one containing a line break.
	ErrInvalidFilename = errors.New("sdxfer: invalid filename")

	// ErrInvalidCommand indicates a command that is not a printable ASCII character.
	ErrInvalidCommand = errors.New("sdxfer: invalid command character")
)
