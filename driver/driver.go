// Package driver pumps bytes read from an input stream into a decoder,
// one at a time, until the stream ends or a fatal error occurs.
package driver

import (
	"errors"
	"io"

	"github.com/drone-os/itmsink/itmerr"
	"github.com/drone-os/itmsink/logging"
)

// Pumper is satisfied by itm.Decoder. Kept as an interface so the driver
// can be exercised against a test double without a route table or sinks.
type Pumper interface {
	Pump(b byte) error
}

// Run reads r in chunks of up to 4096 bytes and feeds each byte to dec in
// order, one at a time, until r is
// exhausted or either a read or a decode error occurs. A clean EOF is not
// an error. Read failures are classified as itmerr.InputIoError; errors
// returned by dec.Pump (sink I/O failures surfaced as
// itmerr.DecodeError) are returned unwrapped since they already carry
// the right classification.
func Run(r io.Reader, dec Pumper) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			if pumpErr := dec.Pump(buf[i]); pumpErr != nil {
				return pumpErr
			}
		}
		if errors.Is(err, io.EOF) {
			logging.Debugf("input exhausted after read loop")
			return nil
		}
		if err != nil {
			return itmerr.NewInputIoError(err)
		}
	}
}
