// Package sdxfer implements the host side of a line-oriented file transfer
// protocol spoken by embedded devices that expose an SD card over a serial link.
//
// # Wire Format
//
// The host drives every exchange:
//
//   - Commands are a single ASCII character followed by "\n".
//   - Arguments and replies are UTF-8 text lines terminated by "\n".
//   - A reply containing the literal "*** ERROR ***" anywhere reports that the
//     device rejected the current step.
//   - File contents travel as raw bytes with no delimiter. Their length is
//     announced beforehand as a decimal text line.
//   - The file listing is one line: an optional preamble ending in ':'
//     followed by comma-separated names.
//
// # Reader Primitives
//
// [Link] wraps the byte stream and provides the three read primitives the
// protocol is built from: [Link.ReadLine] for a single reply,
// [Link.ReadLines] for replies of unknown length that end when the device
// goes quiet, and [Link.ReadBytes] for binary payloads. ReadBytes treats a
// short read as end-of-data and reports the shortfall through [Chunk] rather
// than failing.
//
// # Transfers
//
// [Engine.SendFile] and [Engine.ReceiveFile] run the fixed request/reply
// sequences for moving a file to and from the device. When the device
// reports an error the remaining steps are skipped and a [Result] with
// [StatusAborted] is returned. Such a refusal is not a Go error. Errors are
// reserved for hard failures: undecodable text ([ErrDecode]), a malformed byte
// count ([ErrParse]), transport faults and local filesystem faults.
//
// An Engine owns its stream exclusively. Operations are serialized and an
// overlapping call fails with [ErrBusy].
package sdxfer
