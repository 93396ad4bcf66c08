package mac

/*------------------------------------------------------------------
 *
 * Purpose: Trickle-style exponential-backoff retransmission schedule for
 *		HELLO broadcasts.
 *
 * Description: Grounded on original_source's os/services/akes/akes-trickle.c.
 *		A trickle timer doubles its interval on every successful
 *		firing, up to IMax doublings, and resets to IMin whenever the
 *		caller observes an "equivalent" event (spec glossary:
 *		"Trickle... backs off exponentially until suppressed by
 *		hearing an equivalent message").
 *
 *------------------------------------------------------------------*/

import "sync"

// Trickle is a single trickle timer instance.
type Trickle struct {
	mu sync.Mutex

	iMin    RtimerClock
	iMax    int // number of doublings allowed beyond iMin
	current RtimerClock
	next    RtimerClock
	running bool
}

// NewTrickle builds a stopped trickle timer with the given minimum interval
// and maximum number of doublings.
func NewTrickle(iMin RtimerClock, iMax int) *Trickle {
	return &Trickle{iMin: iMin, iMax: iMax}
}

// Start (re)starts the schedule at iMin, firing first at now+iMin.
func (tr *Trickle) Start(now RtimerClock) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.current = tr.iMin
	tr.next = now + tr.current
	tr.running = true
}

// Stop suppresses further firings (spec section 4.6: "a HELLO is broadcast
// on a trickle schedule until akes_trickle_stop() or a maximum").
func (tr *Trickle) Stop() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.running = false
}

// Running reports whether the schedule is active.
func (tr *Trickle) Running() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.running
}

// maxInterval returns iMin doubled iMax times.
func (tr *Trickle) maxInterval() RtimerClock {
	max := tr.iMin
	for i := 0; i < tr.iMax; i++ {
		max *= 2
	}
	return max
}

// Due reports whether the timer should fire at now, without advancing state.
func (tr *Trickle) Due(now RtimerClock) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.running && now >= tr.next
}

// Fired records that the timer fired at now, doubling the interval (clamped
// to iMax doublings) and scheduling the next firing. It returns false, and
// stops the schedule, once the maximum number of doublings has been
// exhausted and one more interval has elapsed with no reset (spec: HELLO
// broadcasts stop "until... a maximum").
func (tr *Trickle) Fired(now RtimerClock) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !tr.running {
		return false
	}

	maxInterval := tr.maxInterval()
	if tr.current >= maxInterval {
		tr.running = false
		return false
	}

	tr.current *= 2
	if tr.current > maxInterval {
		tr.current = maxInterval
	}
	tr.next = now + tr.current
	return true
}

// Reset collapses the interval back to iMin, as when an equivalent message
// is heard from another sender.
func (tr *Trickle) Reset(now RtimerClock) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.current = tr.iMin
	tr.next = now + tr.current
	tr.running = true
}

// NextFireTime reports when the timer is next due.
func (tr *Trickle) NextFireTime() RtimerClock {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.next
}
