package mac

/*------------------------------------------------------------------
 *
 * Purpose: Outgoing frame queue and per-receiver CSMA-CA retry/backoff.
 *
 * Description: Grounded on original_source's os/net/mac/frame-queue.c for
 *		the queue/pick/burst/postpone shape, and on the teacher's
 *		src/xmit.go / src/tq.go for the "producers append, a
 *		single thread drains when the channel is clear" pattern
 *		(there, driven by slottime/persist; here, by the BE-based
 *		backoff formula spec section 4.4 specifies).
 *
 *------------------------------------------------------------------*/

import (
	"math/rand/v2"
	"sync"
)

// CSMAConfig holds the backoff-exponent and retry-count tunables (spec
// section 6).
type CSMAConfig struct {
	MinBE           int // macMinBe, default 3
	MaxBE           int // macMaxBe, default 5
	MaxCSMABackoffs int // macMaxCsmaBackoffs, default 4
	MaxFrameRetries int // macMaxFrameRetries, default 3
	BackoffPeriod   RtimerClock
}

// DefaultCSMAConfig returns the spec section 6 defaults.
func DefaultCSMAConfig(backoffPeriod RtimerClock) CSMAConfig {
	return CSMAConfig{MinBE: 3, MaxBE: 5, MaxCSMABackoffs: 4, MaxFrameRetries: 3, BackoffPeriod: backoffPeriod}
}

// CSMAStatus is the per-receiver (or, for broadcast, shared) retry state
// (spec section 3).
type CSMAStatus struct {
	NextAttempt  RtimerClock
	IsActive     bool
	Transmissions int
	Collisions    int
}

// SentCallback is invoked once a queued frame's outcome is final (either
// delivered or given up on), with the final status and the number of
// transmission attempts made (spec section 7: "(status, transmissions)").
type SentCallback func(status Status, transmissions int, userPtr any)

// QueueEntry is one outgoing frame (spec section 3).
type QueueEntry struct {
	Packetbuf  *Packetbuf
	Sent       SentCallback
	UserPtr    any
	Forwarders []LinkAddr
}

var broadcastAddr LinkAddr // zero value used as the shared broadcast CSMA status key

// FrameQueue is the bounded outgoing queue with per-receiver CSMA-CA state
// (spec section 4.4).
type FrameQueue struct {
	mu      sync.Mutex
	entries []*QueueEntry
	maxSize int
	status  map[LinkAddr]*CSMAStatus
	csma    CSMAConfig
	rng     *rand.Rand
}

// NewFrameQueue builds an empty queue of the given capacity.
func NewFrameQueue(maxSize int, csma CSMAConfig) *FrameQueue {
	return &FrameQueue{
		maxSize: maxSize,
		status:  map[LinkAddr]*CSMAStatus{},
		csma:    csma,
		rng:     rand.New(rand.NewPCG(1, 2)),
	}
}

func (q *FrameQueue) statusFor(pb *Packetbuf) *CSMAStatus {
	key := pb.Receiver
	if pb.FrameType.IsBroadcast() {
		key = broadcastAddr
	}
	s, ok := q.status[key]
	if !ok {
		s = &CSMAStatus{}
		q.status[key] = s
	}
	return s
}

// Add enqueues pb (which is snapshotted, per spec section 3) with sent and
// userPtr to be delivered to SentCallback once the outcome is final. It
// fails with StatusQueueFull if the queue is at capacity.
func (q *FrameQueue) Add(pb *Packetbuf, sent SentCallback, userPtr any) (*QueueEntry, Status) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		return nil, StatusQueueFull
	}

	entry := &QueueEntry{
		Packetbuf:  pb.Clone(),
		Sent:       sent,
		UserPtr:    userPtr,
		Forwarders: append([]LinkAddr(nil), pb.Forwarders...),
	}
	q.entries = append(q.entries, entry)
	return entry, StatusOK
}

// Pick returns the first entry whose receiver is not mid-transmission and
// whose next-attempt time has arrived, marking that receiver active (spec
// section 4.4). It returns nil if nothing is ready.
func (q *FrameQueue) Pick(now RtimerClock) *QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		st := q.statusFor(e.Packetbuf)
		if st.IsActive {
			continue
		}
		if st.NextAttempt > now {
			continue
		}
		st.IsActive = true
		return e
	}
	return nil
}

// Burst returns the next queued entry addressed to the same receiver as
// prev, skipping handshake frames (HELLO/HELLOACK/ACK never piggyback, spec
// section 4.4), or nil if there is none.
func (q *FrameQueue) Burst(prev *QueueEntry) *QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e == prev {
			continue
		}
		if e.Packetbuf.Receiver != prev.Packetbuf.Receiver {
			continue
		}
		if e.Packetbuf.FrameType.IsHandshake() {
			continue
		}
		return e
	}
	return nil
}

// remove deletes entry from the queue. Caller must hold q.mu.
func (q *FrameQueue) remove(entry *QueueEntry) {
	for i, e := range q.entries {
		if e == entry {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// backoffExponent computes BE per spec section 4.4's clamp formula.
func (c CSMAConfig) backoffExponent(collisions, transmissions int) int {
	be := collisions + transmissions + c.MinBE - 1
	if be < c.MinBE {
		be = c.MinBE
	}
	if be > c.MaxBE {
		be = c.MaxBE
	}
	return be
}

func (q *FrameQueue) randomBackoff(be int) RtimerClock {
	mask := uint64(1)<<uint(be) - 1
	periods := q.rng.Uint64() & mask
	return RtimerClock(periods) * q.csma.BackoffPeriod
}

// OnTransmitted applies the spec section 4.4 result policy for entry's
// outcome, updating CSMA-CA state, rescheduling a retry, or finalizing and
// firing entry's SentCallback. now is used to compute the next retry
// instant on backoff.
func (q *FrameQueue) OnTransmitted(entry *QueueEntry, result Status, now RtimerClock) {
	q.mu.Lock()
	st := q.statusFor(entry.Packetbuf)

	switch result {
	case StatusOK:
		st.Transmissions++
		st.IsActive = false
		transmissions := st.Transmissions
		q.remove(entry)
		q.mu.Unlock()
		entry.Sent(StatusOK, transmissions, entry.UserPtr)
		return

	case StatusCollision:
		st.Collisions++
		if st.Collisions <= q.csma.MaxCSMABackoffs {
			be := q.csma.backoffExponent(st.Collisions, st.Transmissions)
			st.NextAttempt = now + q.randomBackoff(be)
			st.IsActive = false
			q.mu.Unlock()
			return
		}

	case StatusNoAck:
		st.Transmissions++
		if st.Transmissions < q.csma.MaxFrameRetries {
			be := q.csma.backoffExponent(st.Collisions, st.Transmissions)
			st.NextAttempt = now + q.randomBackoff(be)
			st.IsActive = false
			q.mu.Unlock()
			return
		}

	case StatusErr:
		st.NextAttempt = now + q.csma.BackoffPeriod
		st.IsActive = false
		q.mu.Unlock()
		return

	default: // StatusErrFatal or exhausted retries falls through from above
	}

	// Exhausted retries, or a fatal error: finalize and fail.
	st.IsActive = false
	transmissions := st.Transmissions
	q.remove(entry)
	q.mu.Unlock()
	entry.Sent(result, transmissions, entry.UserPtr)
}

// Postpone delays further attempts to pb's receiver until until (spec
// section 4.4).
func (q *FrameQueue) Postpone(pb *Packetbuf, until RtimerClock) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := q.statusFor(pb)
	if until > st.NextAttempt {
		st.NextAttempt = until
	}
}

// Len reports the number of queued (not-yet-finalized) entries.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
