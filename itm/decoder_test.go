package itm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drone-os/itmsink/cliopts"
	"github.com/drone-os/itmsink/logging"
	"github.com/drone-os/itmsink/route"
	"github.com/drone-os/itmsink/sink"
)

// memSink is a minimal sink.Sink double that appends every write to an
// in-memory buffer, used to assert on decoded stimulus-port payloads
// without touching the filesystem.
type memSink struct {
	buf bytes.Buffer
}

func (s *memSink) Write(data []byte) error { s.buf.Write(data); return nil }
func (s *memSink) Label() string           { return "mem" }
func (s *memSink) Close() error            { return nil }

// wildcardDecoder builds a Decoder whose single sink receives every port.
func wildcardDecoder(t *testing.T) (*Decoder, *memSink) {
	t.Helper()
	s := &memSink{}
	table := route.Build([]cliopts.OutputSpec{{}}, []sink.Sink{s})
	return New(table, logging.New(&bytes.Buffer{})), s
}

func pump(t *testing.T, d *Decoder, bytesIn ...byte) {
	t.Helper()
	for _, b := range bytesIn {
		require.NoError(t, d.Pump(b))
	}
}

// Scenario 1: single 1-byte software packet, port 1.
func TestSingleSoftwarePacket(t *testing.T) {
	d, s := wildcardDecoder(t)
	pump(t, d, 0x09, 0x41)
	assert.Equal(t, "A", s.buf.String())
}

// Scenario 2: overflow packet followed by a 2-byte packet.
func TestOverflowThenTwoBytePacket(t *testing.T) {
	d, s := wildcardDecoder(t)
	pump(t, d, 0x70, 0x12, 0x42, 0x43)
	assert.Equal(t, "BC", s.buf.String())
}

// Scenario 3: malformed synchronization (16 zero bits, then a second
// malformed attempt with 8), recycled bytes eventually resolving into a
// 1-byte source packet on port 0.
func TestMalformedSyncRecyclesIntoSourcePacket(t *testing.T) {
	d, s := wildcardDecoder(t)
	pump(t, d, 0x00, 0x00, 0x01, 0x01, 0x58)
	assert.Equal(t, "X", s.buf.String())
}

// Scenario 4: a full 47-zero-bit synchronization packet produces no
// source-packet output and no error.
func TestValidSynchronizationPacket(t *testing.T) {
	d, s := wildcardDecoder(t)
	pump(t, d, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80)
	assert.Empty(t, s.buf.String())
	assert.Equal(t, modeIdle, d.mode)
}

// Scenario 5: long local timestamp (tc=0, payload 0x81 0x02) followed by
// a 1-byte source packet on port 1.
func TestLongLocalTimestampThenSourcePacket(t *testing.T) {
	d, s := wildcardDecoder(t)
	pump(t, d, 0xC0, 0x81, 0x02, 0x09, 0x5A)
	assert.Equal(t, "Z", s.buf.String())
}

// Scenario 6: two outputs routed to distinct ports by an explicit route
// table, alternating 1-byte packets on ports 1 and 2.
func TestTwoOutputsRoutedByPort(t *testing.T) {
	a := &memSink{}
	b := &memSink{}
	table := route.Build([]cliopts.OutputSpec{
		{Ports: []int{1}},
		{Ports: []int{2}},
	}, []sink.Sink{a, b})
	d := New(table, logging.New(&bytes.Buffer{}))

	// port 1 'A', port 2 'B', port 1 'C'
	pump(t, d, 0x09, 0x41, 0x11, 0x42, 0x09, 0x43)

	assert.Equal(t, "AC", a.buf.String())
	assert.Equal(t, "B", b.buf.String())
}

// sourceFields' ok=false branch is unreachable through the classification
// cascade (any header with a 00 size field is caught earlier as either an
// extension or a protocol/timestamp header), but it exists as a
// defensive mirror of the original parser and is exercised directly.
func TestSourceFieldsRejectsForgedZeroSizeField(t *testing.T) {
	_, _, _, ok := sourceFields(0xFC)
	assert.False(t, ok)
}

// Four consecutive continuation bytes (MSB set) in an extension packet
// are malformed and get recycled for re-classification rather than
// accepted as a fifth byte.
func TestFourByteAllContinuationExtensionIsMalformedAndRecycled(t *testing.T) {
	d, s := wildcardDecoder(t)
	// 0x88 starts an extension packet (bit7=1 so it has a payload).
	pump(t, d, 0x88, 0x80, 0x80, 0x80, 0x80)
	// The four recycled bytes are all 0x80, which falls under the
	// protocol/timestamp branch but matches none of its sub-cases, so
	// each is logged and discarded as an invalid header.
	assert.Equal(t, modeIdle, d.mode)
	assert.Empty(t, s.buf.String())
}

// A synchronization scan that accumulates exactly 46 zero bits before a
// terminating non-zero byte is reported as bad; one more zero bit (47)
// is reported as a valid synchronization. Asserted via the decoder's log
// output rather than its final mode, since a bad-sync terminator is
// recycled and may immediately enter a new accumulation.
func TestSyncBoundaryFortySixVersusFortySeven(t *testing.T) {
	var buf46 bytes.Buffer
	logging.SetVerbosity(int(logging.Warn))
	d := New(nil, logging.New(&buf46))
	// header 0x00 (zeros=8) + four 0x00 bytes (zeros=8+4*8=40), then a
	// terminator with 6 trailing zero bits (0x40) for 46 total.
	pump(t, d, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40)
	assert.Contains(t, buf46.String(), "46 zeros")

	var buf47 bytes.Buffer
	logging.SetVerbosity(int(logging.Debug))
	d2 := New(nil, logging.New(&buf47))
	// terminator with 7 trailing zero bits (0x80) for 47 total.
	pump(t, d2, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80)
	assert.Contains(t, buf47.String(), "47 zeros")
}

// A short local timestamp (header 0 TTT 0000, TTT neither 000 nor 111)
// is a single-byte packet carrying its 3-bit delta directly in the
// header, with implicit tc=0.
func TestShortLocalTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logging.SetVerbosity(int(logging.Debug))
	d := New(nil, logging.New(&buf))

	pump(t, d, 0x10)
	assert.Contains(t, buf.String(), "Local timestamp tc=0, ts=[1]")
	assert.Equal(t, modeIdle, d.mode)
}

// Global timestamp packets (headers 0x94 and 0xB4) carry their payload
// in trailing continuation bytes, same as a long local timestamp.
func TestGlobalTimestampOneAndTwo(t *testing.T) {
	var buf1 bytes.Buffer
	logging.SetVerbosity(int(logging.Debug))
	d1 := New(nil, logging.New(&buf1))
	pump(t, d1, 0x94, 0x01)
	assert.Contains(t, buf1.String(), "Global timestamp 1 ts=[1]")

	var buf2 bytes.Buffer
	d2 := New(nil, logging.New(&buf2))
	pump(t, d2, 0xB4, 0x01)
	assert.Contains(t, buf2.String(), "Global timestamp 2 ts=[1]")
}

// Pump never returns an error for protocol malformations; it only
// surfaces a DecodeError when a downstream sink fails.
func TestPumpReturnsErrorOnlyOnSinkFailure(t *testing.T) {
	table := route.Build([]cliopts.OutputSpec{{Ports: []int{1}}}, []sink.Sink{failingSink{}})
	d := New(table, logging.New(&bytes.Buffer{}))

	require.NoError(t, d.Pump(0x09))
	err := d.Pump(0x41)
	require.Error(t, err)
}

type failingSink struct{}

func (failingSink) Write([]byte) error { return errSimulatedWriteFailure }
func (failingSink) Label() string      { return "failing" }
func (failingSink) Close() error       { return nil }

var errSimulatedWriteFailure = errors.New("simulated write failure")
