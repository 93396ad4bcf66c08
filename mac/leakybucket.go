package mac

/*------------------------------------------------------------------
 *
 * Purpose: Leaky-bucket admission control for incoming handshake frames.
 *
 * Description: Grounded on original_source's os/services/akes/akes-nbr.c
 *		rate-limiting (two independent buckets, one for HELLO, one
 *		for HELLOACK) and on the teacher's src/dlq.go delay-queue
 *		for the general "drain on a schedule, reject past capacity"
 *		shape.
 *
 *------------------------------------------------------------------*/

import "sync"

// LeakyBucket is a counter that fills by one per admitted event and drains
// at a constant rate (spec section 4.6: "two leaky buckets... configurable
// capacities... and leak rates").
type LeakyBucket struct {
	mu         sync.Mutex
	level      int
	capacity   int
	leakPeriod RtimerClock // ticks between one-unit leaks
	lastLeak   RtimerClock
}

// NewLeakyBucket builds an empty bucket with the given capacity and leak
// period (e.g. capacity 20, leak period equivalent to 15 seconds).
func NewLeakyBucket(capacity int, leakPeriod RtimerClock) *LeakyBucket {
	return &LeakyBucket{capacity: capacity, leakPeriod: leakPeriod}
}

// drain applies any whole leak periods elapsed since lastLeak. Caller must
// hold b.mu.
func (b *LeakyBucket) drain(now RtimerClock) {
	if b.leakPeriod <= 0 {
		return
	}
	elapsed := now - b.lastLeak
	if elapsed <= 0 {
		return
	}
	leaked := int(elapsed / b.leakPeriod)
	if leaked <= 0 {
		return
	}
	b.level -= leaked
	if b.level < 0 {
		b.level = 0
	}
	b.lastLeak += RtimerClock(leaked) * b.leakPeriod
}

// Admit drains the bucket to now, then either admits the event (incrementing
// the level and returning true) or reports the bucket full (spec section
// 4.6: "incoming handshake frames are silently dropped when the relevant
// bucket is full").
func (b *LeakyBucket) Admit(now RtimerClock) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drain(now)
	if b.level >= b.capacity {
		return false
	}
	b.level++
	return true
}

// Level reports the current fill level, draining first.
func (b *LeakyBucket) Level(now RtimerClock) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drain(now)
	return b.level
}
