// Package itm implements the incremental, byte-at-a-time ITM packet
// decoder described in spec.md §4.3: a state machine that recovers
// framing via synchronization packets, classifies and validates packets,
// recycles bytes from malformed packets for re-classification, and
// routes source-packet payloads through a route.Table to their sinks.
package itm

import (
	"fmt"

	"github.com/drone-os/itmsink/itmerr"
	"github.com/drone-os/itmsink/logging"
	"github.com/drone-os/itmsink/metrics"
	"github.com/drone-os/itmsink/route"
)

// mode tracks which accumulation, if any, the decoder is mid-way
// through. Every mode but idle means the next Pump'd byte is consumed by
// that accumulation rather than classified as a new header.
type mode int

const (
	modeIdle mode = iota
	modeSyncScan
	modeExtAccum
	modeTSAccum
	modeSrcAccum
)

type timestampKind int

const (
	tsLocal timestampKind = iota
	tsGlobal1
	tsGlobal2
)

// Decoder is the ITM packet decoder. It is not safe for concurrent use;
// spec.md §5 requires strictly single-threaded, synchronous operation.
type Decoder struct {
	route *route.Table
	log   *logging.Logger

	mode mode
	// recycle is the LIFO stack of bytes consumed speculatively that must
	// be re-classified as headers. It is only popped while classifying
	// headers: if a popped header starts an accumulation, the bytes still
	// on the stack wait there until that packet ends, while the packet's
	// own bytes come from Pump.
	recycle []byte

	// payload accumulates bytes for whichever accumulation mode is
	// active: the synchronization scan's trailing bytes, an extension's
	// or timestamp's continuation bytes, or a source packet's fixed-size
	// payload.
	payload []byte

	// synchronization scan state
	zeros int

	// extension state
	extSH, extEX byte

	// timestamp state
	tsKind timestampKind
	tsTC   byte

	// source state
	srcSoftware bool
	srcPort     int
	srcSize     int
}

// New creates a Decoder that routes source-packet payloads through rt and
// logs through log.
func New(rt *route.Table, log *logging.Logger) *Decoder {
	if log == nil {
		log = logging.Stderr
	}
	return &Decoder{route: rt, log: log}
}

// Pump feeds one byte to the decoder. It returns a non-nil error only
// when a downstream sink write fails (itmerr.DecodeError); protocol
// malformations are always recovered locally and never returned.
func (d *Decoder) Pump(b byte) error {
	d.log.Tracef("byte 0b%08b 0x%02X %q", b, b, safeRune(b))

	switch d.mode {
	case modeIdle:
		d.recycle = append(d.recycle, b)
		return d.drain()
	case modeSyncScan:
		return d.feedSync(b)
	case modeExtAccum:
		return d.feedExt(b)
	case modeTSAccum:
		return d.feedTS(b)
	case modeSrcAccum:
		return d.feedSrc(b)
	default:
		panic("itm: unreachable decoder mode")
	}
}

func safeRune(b byte) rune {
	if b >= 0x20 && b < 0x7f {
		return rune(b)
	}
	return '.'
}

// drain pops bytes off the recycle stack, classifying each as a header,
// until the stack empties or a classification enters an accumulation
// mode awaiting further externally-pumped bytes.
func (d *Decoder) drain() error {
	for len(d.recycle) > 0 {
		h := d.recycle[len(d.recycle)-1]
		d.recycle = d.recycle[:len(d.recycle)-1]

		suspended, err := d.classify(h)
		if err != nil {
			return err
		}
		if suspended {
			return nil
		}
	}
	d.mode = modeIdle
	return nil
}

// recyclePayload pushes data back onto the recycle stack so that popping
// it later yields the bytes in their original arrival order.
func (d *Decoder) recyclePayload(data []byte) {
	for i := len(data) - 1; i >= 0; i-- {
		d.recycle = append(d.recycle, data[i])
	}
}

// classify dispatches on a header byte. It returns suspended=true if the
// packet requires more externally-pumped bytes (the decoder's mode has
// been set accordingly); otherwise the packet was fully handled (emitted,
// logged, or discarded) and draining may continue.
func (d *Decoder) classify(h byte) (suspended bool, err error) {
	switch {
	case isSynchronization(h):
		d.zeros = 8
		d.payload = d.payload[:0]
		d.mode = modeSyncScan
		return true, nil

	case isOverflow(h):
		d.log.Warnf("Overflow")
		metrics.PacketsTotal.WithLabelValues(metrics.KindOverflow).Inc()
		return false, nil

	case isExtension(h):
		sh, ex := extensionFields(h)
		d.extSH, d.extEX = sh, ex
		if !hasContinuation(h) {
			d.emitExtension(nil)
			return false, nil
		}
		d.payload = d.payload[:0]
		d.mode = modeExtAccum
		return true, nil

	case isProtocolOrTimestamp(h):
		return d.classifyTimestamp(h)

	default:
		software, port, size, ok := sourceFields(h)
		if !ok {
			d.log.Warnf("Invalid header")
			metrics.PacketsTotal.WithLabelValues(metrics.KindInvalidHeader).Inc()
			return false, nil
		}
		d.srcSoftware, d.srcPort, d.srcSize = software, port, size
		d.payload = d.payload[:0]
		d.mode = modeSrcAccum
		return true, nil
	}
}

func (d *Decoder) classifyTimestamp(h byte) (suspended bool, err error) {
	switch {
	case isShortLocalTimestamp(h):
		p := shortLocalTimestampPayload(h)
		d.emitTimestamp(tsLocal, 0, []byte{p})
		return false, nil

	case isLongLocalTimestamp(h):
		d.tsKind = tsLocal
		d.tsTC = longLocalTimestampTC(h)
		d.payload = d.payload[:0]
		d.mode = modeTSAccum
		return true, nil

	case isGlobalTimestamp1(h):
		d.tsKind = tsGlobal1
		d.payload = d.payload[:0]
		d.mode = modeTSAccum
		return true, nil

	case isGlobalTimestamp2(h):
		d.tsKind = tsGlobal2
		d.payload = d.payload[:0]
		d.mode = modeTSAccum
		return true, nil

	default:
		d.log.Warnf("Invalid header")
		metrics.PacketsTotal.WithLabelValues(metrics.KindInvalidHeader).Inc()
		return false, nil
	}
}

func (d *Decoder) feedSync(b byte) error {
	d.payload = append(d.payload, b)
	d.zeros += trailingZeroBits(b)
	if b == 0 {
		return nil
	}

	if d.zeros >= 47 {
		d.log.Debugf("Synchronized with %d zeros", d.zeros)
		metrics.PacketsTotal.WithLabelValues(metrics.KindSyncOK).Inc()
	} else {
		d.log.Warnf("Bad synchronization packet with %d zeros", d.zeros)
		metrics.PacketsTotal.WithLabelValues(metrics.KindSyncBad).Inc()
		d.recyclePayload(d.payload)
	}
	d.payload = d.payload[:0]
	return d.drain()
}

func (d *Decoder) feedExt(b byte) error {
	d.payload = append(d.payload, b)
	if !hasContinuation(b) {
		d.emitExtension(d.payload)
		d.payload = d.payload[:0]
		return d.drain()
	}
	if len(d.payload) == 4 {
		d.log.Warnf("Bad extension packet")
		metrics.PacketsTotal.WithLabelValues(metrics.KindBadExtension).Inc()
		d.recyclePayload(d.payload)
		d.payload = d.payload[:0]
		return d.drain()
	}
	return nil
}

func (d *Decoder) feedTS(b byte) error {
	d.payload = append(d.payload, b)
	if !hasContinuation(b) {
		d.emitTimestamp(d.tsKind, d.tsTC, d.payload)
		d.payload = d.payload[:0]
		return d.drain()
	}
	if len(d.payload) == 4 {
		d.log.Warnf("Bad local timestamp packet")
		metrics.PacketsTotal.WithLabelValues(metrics.KindBadTimestamp).Inc()
		d.recyclePayload(d.payload)
		d.payload = d.payload[:0]
		return d.drain()
	}
	return nil
}

func (d *Decoder) feedSrc(b byte) error {
	d.payload = append(d.payload, b)
	if len(d.payload) < d.srcSize {
		return nil
	}
	if err := d.emitSource(d.srcSoftware, d.srcPort, d.payload); err != nil {
		d.payload = d.payload[:0]
		d.mode = modeIdle
		return err
	}
	d.payload = d.payload[:0]
	return d.drain()
}

func (d *Decoder) emitExtension(payload []byte) {
	d.log.Debugf("Extension packet sh=%d, ex=%d, payload=%v", d.extSH, d.extEX, payload)
	metrics.PacketsTotal.WithLabelValues(metrics.KindExtension).Inc()
}

func (d *Decoder) emitTimestamp(kind timestampKind, tc byte, payload []byte) {
	switch kind {
	case tsLocal:
		d.log.Debugf("Local timestamp tc=%d, ts=%v", tc, payload)
	case tsGlobal1:
		d.log.Debugf("Global timestamp 1 ts=%v", payload)
	case tsGlobal2:
		d.log.Debugf("Global timestamp 2 ts=%v", payload)
	}
	metrics.PacketsTotal.WithLabelValues(metrics.KindTimestamp).Inc()
}

func (d *Decoder) emitSource(software bool, port int, payload []byte) error {
	kindWord := "Software"
	if !software {
		kindWord = "Hardware"
	}
	d.log.Debugf("%s packet %x %q", kindWord, payload, string(payload))
	metrics.PacketsTotal.WithLabelValues(metrics.KindSource).Inc()

	if d.route == nil {
		return nil
	}
	for _, s := range d.route.SinksFor(port) {
		if err := s.Write(payload); err != nil {
			return itmerr.NewDecodeError(fmt.Errorf("port %d: %w", port, err))
		}
		metrics.SinkBytesWrittenTotal.Add(float64(len(payload)))
	}
	return nil
}
