// Package sink implements the writable byte destinations itmsink fans
// stimulus-port payloads out to: standard output, or a file opened for
// writing. See spec.md §4.1.
package sink

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/drone-os/itmsink/itmerr"
	"github.com/drone-os/itmsink/logging"
)

// Sink is a writable byte destination. Write appends data before
// returning; the underlying writer is unbuffered (a raw file descriptor
// or an in-memory buffer), so a reader sees packet-aligned records
// without any separate flush step.
type Sink interface {
	Write(data []byte) error
	// Label identifies the sink in log messages ("stdout" or a file path).
	Label() string
	Close() error
}

// stdoutSink wraps a shared process-wide writer. Multiple OutputSpecs may
// resolve to it; since the decoder is single-threaded, writes never
// interleave with each other.
type stdoutSink struct {
	id uuid.UUID
	w  io.Writer
}

func (s *stdoutSink) Write(data []byte) error {
	if _, err := s.w.Write(data); err != nil {
		return itmerr.NewSinkIoError(err)
	}
	return nil
}

func (s *stdoutSink) Label() string { return "stdout" }
func (s *stdoutSink) Close() error  { return nil }

// fileSink wraps a file opened for writing. Write does not fsync: like
// the original parser's write_stream (a write_all followed by a Rust
// io::Write flush, which is a no-op for an unbuffered file or pipe),
// data only needs to reach the fd, not stable storage.
type fileSink struct {
	id   uuid.UUID
	path string
	f    afero.File
}

func (s *fileSink) Write(data []byte) error {
	if _, err := s.f.Write(data); err != nil {
		return itmerr.NewSinkIoError(err)
	}
	return nil
}

func (s *fileSink) Label() string { return s.path }
func (s *fileSink) Close() error  { return s.f.Close() }

// Opener opens sinks against a filesystem. Production code uses
// OSOpener(), which is backed by the real filesystem and os.Stdout; tests
// use NewOpener with an afero.NewMemMapFs() and an in-memory stdout buffer
// so sinks are exercised without touching a real disk or terminal.
type Opener struct {
	fs     afero.Fs
	stdout io.Writer
}

func NewOpener(fs afero.Fs, stdout io.Writer) *Opener {
	return &Opener{fs: fs, stdout: stdout}
}

// OSOpener is the production Opener, backed by the real filesystem and
// os.Stdout.
func OSOpener() *Opener {
	return NewOpener(afero.NewOsFs(), os.Stdout)
}

// Open opens a sink for the given path, or, if path is empty, a new sink
// over the opener's shared stdout writer.
func (o *Opener) Open(path string) (Sink, error) {
	if path == "" {
		return &stdoutSink{id: uuid.New(), w: o.stdout}, nil
	}
	f, err := o.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, itmerr.NewSinkOpenError(path, err)
	}
	s := &fileSink{id: uuid.New(), path: path, f: f}
	logging.Debugf("sink id=%s opened for path=%q", s.id, path)
	return s, nil
}

// OpenAll opens one sink per path, in order; sinks for repeated paths
// (including repeated empty-string/stdout entries) are opened
// independently, matching spec.md §4.2's "duplicates are preserved" rule.
func OpenAll(opener *Opener, paths []string) ([]Sink, error) {
	sinks := make([]Sink, 0, len(paths))
	for _, p := range paths {
		s, err := opener.Open(p)
		if err != nil {
			CloseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// CloseAll closes every sink, collecting the first error encountered.
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
