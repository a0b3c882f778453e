// Package itmerr defines the fatal-error taxonomy of the itmsink pipeline.
//
// Protocol-level malformations (bad synchronization, bad headers, truncated
// continuation payloads) are never represented here: the decoder recovers
// from those locally by logging and recycling bytes, per the ITM packet
// decoder's contract. Only the kinds below ever cross a package boundary,
// and all of them are fatal to the running program.
package itmerr

import "github.com/pkg/errors"

// CliParseError wraps a failure to parse command-line arguments or an
// output specification.
type CliParseError struct{ cause error }

func NewCliParseError(msg string, cause error) error {
	return CliParseError{cause: errors.Wrap(cause, msg)}
}

func (e CliParseError) Error() string { return e.cause.Error() }
func (e CliParseError) Unwrap() error { return e.cause }

// SinkOpenError wraps a failure to open an output sink (file or stdout).
type SinkOpenError struct{ cause error }

func NewSinkOpenError(path string, cause error) error {
	return SinkOpenError{cause: errors.Wrapf(cause, "opening sink %q", path)}
}

func (e SinkOpenError) Error() string { return e.cause.Error() }
func (e SinkOpenError) Unwrap() error { return e.cause }

// InputIoError wraps a failure to read from the input byte source.
type InputIoError struct{ cause error }

func NewInputIoError(cause error) error {
	return InputIoError{cause: errors.Wrap(cause, "reading input")}
}

func (e InputIoError) Error() string { return e.cause.Error() }
func (e InputIoError) Unwrap() error { return e.cause }

// SinkIoError wraps a failure to write or flush a sink.
type SinkIoError struct{ cause error }

func NewSinkIoError(cause error) error {
	return SinkIoError{cause: errors.Wrap(cause, "writing to sink")}
}

func (e SinkIoError) Error() string { return e.cause.Error() }
func (e SinkIoError) Unwrap() error { return e.cause }

// DecodeError wraps a SinkIoError surfaced by the decoder while routing a
// source packet's payload; it is the only error the decoder itself returns.
type DecodeError struct{ cause error }

func NewDecodeError(cause error) error {
	return DecodeError{cause: cause}
}

func (e DecodeError) Error() string { return e.cause.Error() }
func (e DecodeError) Unwrap() error { return e.cause }
