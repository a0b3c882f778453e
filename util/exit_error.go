package util

import (
	"fmt"

	"github.com/drone-os/itmsink/itmerr"
)

type ExitError struct {
	ExitCode int
	Err      error
}

func (ee ExitError) Error() string {
	return fmt.Sprintf("exit with code %d: %v", ee.ExitCode, ee.Err)
}

func (ee ExitError) Unwrap() error {
	return ee.Err
}

// Wrap classifies err per the fatal-error taxonomy and assigns it an exit
// code. Returns nil if err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case itmerr.CliParseError:
		return ExitError{ExitCode: 2, Err: err}
	case itmerr.SinkOpenError:
		return ExitError{ExitCode: 3, Err: err}
	case itmerr.InputIoError:
		return ExitError{ExitCode: 4, Err: err}
	case itmerr.SinkIoError, itmerr.DecodeError:
		return ExitError{ExitCode: 5, Err: err}
	default:
		return ExitError{ExitCode: 1, Err: err}
	}
}
