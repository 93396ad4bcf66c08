package mac

/*------------------------------------------------------------------
 *
 * Purpose: Monotonic global wake-up epoch, interval-aligned to rtimer time.
 *
 * Description: A WakeUpCounter maps rtimer ticks to 32-bit wake-up epochs.
 *		Epoch e occupies [t0 + e*W, t0 + (e+1)*W) where W
 *		(the interval) is a power of two, so the modulus used
 *		throughout is a bit mask rather than a division.
 *
 *		This mirrors original_source's os/net/mac/wake-up-counter.c,
 *		which keeps a persistent_t of 32-bit wake-up counts and a
 *		base rtimer time next to it.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

// RtimerClock is a signed rtimer tick count, matching the platform's
// rtimer_clock_t. Ticks are a thin wrapper so arithmetic stays readable;
// overflow semantics match a fixed-width hardware counter (wraps silently).
type RtimerClock int64

// WakeUpCounter maps rtimer ticks to 32-bit, strictly-monotonic wake-up
// epochs. Interval must be a power of two (spec section 3).
type WakeUpCounter struct {
	Interval RtimerClock // W, e.g. 4096
	t0       RtimerClock // base rtimer time such that epoch 0 starts at t0
	epoch    uint32
}

// NewWakeUpCounter constructs a counter with the given interval (must be a
// power of two) and an initial rtimer base time.
func NewWakeUpCounter(interval RtimerClock, t0 RtimerClock) *WakeUpCounter {
	if interval <= 0 || interval&(interval-1) != 0 {
		panic(fmt.Sprintf("mac: wake-up counter interval %d is not a positive power of two", interval))
	}
	return &WakeUpCounter{Interval: interval, t0: t0}
}

func (w *WakeUpCounter) mask() RtimerClock {
	return w.Interval - 1
}

// Base returns t0, the rtimer instant at which epoch 0 started. Schedulers
// use this to anchor a ShiftToFuture projection to the node's actual
// wake-up epoch rather than to rtimer tick zero.
func (w *WakeUpCounter) Base() RtimerClock {
	return w.t0
}

// Now returns the current wake-up epoch for the given rtimer time.
func (w *WakeUpCounter) Now(t RtimerClock) uint32 {
	q, _ := w.Increments(t - w.t0)
	return w.epoch + uint32(q)
}

// Advance commits Now(t) as the counter's current epoch; call this once per
// actual wake-up rather than on every query, so Now stays cheap and
// idempotent for repeated reads within the same epoch.
func (w *WakeUpCounter) Advance(t RtimerClock) {
	w.epoch = w.Now(t)
	w.t0 = t - (t-w.t0)&w.mask()
}

// Increments returns (quotient, remainder) of delta divided by Interval,
// using a bit mask because Interval is a power of two.
func (w *WakeUpCounter) Increments(delta RtimerClock) (quotient int64, remainder RtimerClock) {
	if delta < 0 {
		// Shift into a representable non-negative range before masking;
		// rtimer time is allowed to be "before" t0 only transiently
		// during construction/testing.
		shift := ((-delta) + w.Interval - 1) / w.Interval
		delta += shift * w.Interval
		quotient = -shift
	}
	quotient += int64(delta) / int64(w.Interval)
	remainder = delta & w.mask()
	return quotient, remainder
}

// RoundIncrements returns the number of whole intervals in delta, rounded to
// the nearest rather than truncated.
func (w *WakeUpCounter) RoundIncrements(delta RtimerClock) int64 {
	q, r := w.Increments(delta)
	if r*2 >= w.Interval {
		q++
	}
	return q
}

// ShiftToFuture returns the smallest t' >= now that is congruent to t modulo
// Interval -- used to project a neighbor's historical wake-up instant
// forward to the next occurrence at or after now.
func (w *WakeUpCounter) ShiftToFuture(t RtimerClock, now RtimerClock) RtimerClock {
	if t >= now {
		diff := (t - now) & w.mask()
		return now + diff
	}
	diff := (now - t) & w.mask()
	if diff == 0 {
		return now
	}
	return now + (w.Interval - diff)
}

// MarshalBinary encodes the current epoch as 4 bytes, big-endian (spec
// section 3: "Serialization is 4 bytes big-endian").
func (w *WakeUpCounter) MarshalBinary() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, w.epoch)
	return buf
}

// UnmarshalWakeUpCounterBinary decodes a 4-byte big-endian wake-up epoch.
func UnmarshalWakeUpCounterBinary(buf []byte) (uint32, error) {
	if len(buf) != 4 {
		return 0, StatusBadLength
	}
	return binary.BigEndian.Uint32(buf), nil
}
