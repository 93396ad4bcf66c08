package mac

/*------------------------------------------------------------------
 *
 * Purpose: Per-neighbor incoming counters and per-sender outgoing counter.
 *
 * Description: Grounded on original_source's os/net/mac/anti-replay.c.
 *		Outgoing counters live on the neighbor entry's ReplayInfo
 *		and are incremented on every authenticated send; incoming
 *		counters are compared against the last value seen from
 *		that neighbor, separately for the unicast and broadcast
 *		slots, and rejected if not strictly greater.
 *
 *------------------------------------------------------------------*/

import "math"

// ReplayInfo is the anti-replay state kept per neighbor (spec section 3).
// Counter value 0 means "none sent/seen yet": the first frame to or from a
// neighbor always carries counter 1, so a stored value of 0 rejects nothing
// but 0 itself.
type ReplayInfo struct {
	LastUnicastCounter   uint32
	LastBroadcastCounter uint32
	MyUnicastCounter     uint32
}

// SetCounter increments the local outgoing unicast counter and writes it
// into the packetbuf as the frame counter to transmit (spec section 4.2).
// It reports StatusErrFatal if the counter has saturated; callers must not
// transmit the frame in that case.
func (r *ReplayInfo) SetCounter(pb *Packetbuf, panicHandler PanicHandler) Status {
	if r.MyUnicastCounter == math.MaxUint32 {
		panicHandler.Reboot("outgoing frame counter saturated")
		return StatusErrFatal
	}
	r.MyUnicastCounter++
	pb.FrameCounter = r.MyUnicastCounter
	return StatusOK
}

// GetCounter reads the frame counter a received packetbuf carries.
func (r *ReplayInfo) GetCounter(pb *Packetbuf) uint32 {
	return pb.FrameCounter
}

// WasReplayed compares a received frame's counter against the stored value
// for its slot (broadcast vs unicast), updating the stored value when the
// received counter is strictly greater. It returns true (replayed) for any
// counter <= the stored value, per spec section 3's invariant.
func (r *ReplayInfo) WasReplayed(counter uint32, broadcast bool) bool {
	last := &r.LastUnicastCounter
	if broadcast {
		last = &r.LastBroadcastCounter
	}
	if counter <= *last {
		return true
	}
	*last = counter
	return false
}

// RestoreCounter reconstructs a suppressed 32-bit unicast counter from its
// low 8 bits, choosing the nearest value strictly greater than the last
// observed counter (spec section 4.2). LSB-suppressed mode sends only the
// bottom byte of every unicast counter on the wire; the receiver must infer
// the missing 24 bits from what it last saw.
func (r *ReplayInfo) RestoreCounter(lsb uint8) uint32 {
	base := r.LastUnicastCounter &^ 0xff
	candidate := base | uint32(lsb)
	if candidate <= r.LastUnicastCounter {
		candidate += 0x100
	}
	return candidate
}
