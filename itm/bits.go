package itm

// Bit-level classification of an ITM header byte, translated directly
// from the original parser's shift-and-mask formulas (see
// original_source/src/itm.rs) rather than re-derived from the spec's
// prose, so the boundary cases (e.g. a forged "00" size field) behave
// identically.

func isSynchronization(h byte) bool { return h == 0x00 }

func isOverflow(h byte) bool { return h == 0b0111_0000 }

func isExtension(h byte) bool { return h&0b0000_1011 == 0b0000_1000 }

// extensionFields extracts sh (bit 2) and ex (bits 6:4) from an extension
// header.
func extensionFields(h byte) (sh, ex byte) {
	sh = (h >> 2) & 1
	ex = (h >> 4) & 0x07
	return
}

func hasContinuation(h byte) bool { return h>>7 != 0 }

func isProtocolOrTimestamp(h byte) bool { return h&0b0000_1011 == 0 }

func isShortLocalTimestamp(h byte) bool {
	return h&0b1000_1111 == 0 && h&0b0111_0000 != 0b0000_0000 && h&0b0111_0000 != 0b0111_0000
}

// shortLocalTimestampPayload extracts the 3 middle bits (6:4) of a short
// local timestamp header.
func shortLocalTimestampPayload(h byte) byte {
	return (h >> 4) & 0x07
}

func isLongLocalTimestamp(h byte) bool { return h&0b1100_1111 == 0b1100_0000 }

// longLocalTimestampTC extracts tc (bits 5:4) from a long local timestamp
// header.
func longLocalTimestampTC(h byte) byte {
	return (h >> 4) & 0x03
}

func isGlobalTimestamp1(h byte) bool { return h == 0b1001_0100 }

func isGlobalTimestamp2(h byte) bool { return h == 0b1011_0100 }

// sourceFields extracts software/hardware, port, and payload size from a
// source packet header. ok is false only in the (unreachable, given the
// classification cascade above) case where the low 2 bits are 00; the
// check is kept as a defensive mirror of the original parser's match arm.
func sourceFields(h byte) (software bool, port int, size int, ok bool) {
	software = h&0b100 == 0
	port = int(h >> 3)
	switch h & 0b11 {
	case 0b01:
		size = 1
	case 0b10:
		size = 2
	case 0b11:
		size = 4
	default:
		return false, 0, 0, false
	}
	return software, port, size, true
}

// trailingZeroBits counts trailing zero bits in b, returning 8 for b==0
// (the full byte width), matching Rust's u8::trailing_zeros().
func trailingZeroBits(b byte) int {
	if b == 0 {
		return 8
	}
	n := 0
	for b&1 == 0 {
		n++
		b >>= 1
	}
	return n
}
