package mac

/*------------------------------------------------------------------
 *
 * Purpose: Pick among several candidate next hops for a frame that is not
 *		addressed to one specific neighbor.
 *
 * Description: Grounded on original_source's os/services/smor-l2.c, the
 *		"send opportunistically to whichever nearby forwarder reports
 *		the best path, not necessarily the planned next hop" layer
 *		that sits above the duty-cycled core; spec.md's data model
 *		already reserves a fixed-size forwarder list per queue entry
 *		(FRAME_QUEUE_MAX_FORWARDERS) without saying how one gets
 *		chosen. The routing decision that produces the candidate list
 *		itself is out of scope (spec.md's explicit non-goal); this is
 *		only the selection among an already-given list.
 *
 *------------------------------------------------------------------*/

import "sync"

// ForwarderSelector picks one of candidates to address a queue entry to,
// called by MACCore.TransmitToForwarder whenever an entry's Forwarders
// list is non-empty (spec section 4 supplement, "Opportunistic multi-path
// forwarding hook").
type ForwarderSelector interface {
	Select(candidates []LinkAddr) (LinkAddr, bool)
	Record(addr LinkAddr, status Status)
}

// RoundRobinForwarder cycles through candidates in the order given,
// ignoring outcomes; useful as a baseline or when no link-quality signal is
// available.
type RoundRobinForwarder struct {
	mu   sync.Mutex
	next int
}

func (r *RoundRobinForwarder) Select(candidates []LinkAddr) (LinkAddr, bool) {
	if len(candidates) == 0 {
		return LinkAddr{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	addr := candidates[r.next%len(candidates)]
	r.next++
	return addr, true
}

func (r *RoundRobinForwarder) Record(LinkAddr, Status) {}

// ETXForwarder tracks a simple expected-transmission-count estimate per
// candidate (one failure nudges the estimate up, one success nudges it back
// down) and always proposes the lowest-ETX candidate, the smor-l2.c
// "opportunistic forwarding" shape without its full routing metric.
type ETXForwarder struct {
	mu  sync.Mutex
	etx map[LinkAddr]float64
}

// NewETXForwarder builds a selector with every candidate starting at an
// optimistic ETX of 1.0.
func NewETXForwarder() *ETXForwarder {
	return &ETXForwarder{etx: map[LinkAddr]float64{}}
}

func (f *ETXForwarder) estimate(addr LinkAddr) float64 {
	if v, ok := f.etx[addr]; ok {
		return v
	}
	return 1.0
}

func (f *ETXForwarder) Select(candidates []LinkAddr) (LinkAddr, bool) {
	if len(candidates) == 0 {
		return LinkAddr{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	best := candidates[0]
	bestETX := f.estimate(best)
	for _, c := range candidates[1:] {
		if e := f.estimate(c); e < bestETX {
			best, bestETX = c, e
		}
	}
	return best, true
}

// Record folds a transmission outcome into addr's running ETX estimate
// using an exponential moving average (alpha = 0.1, the teacher's
// drift-learning smoothing factor in synchronizer.go applied to a different
// quantity).
func (f *ETXForwarder) Record(addr LinkAddr, status Status) {
	const alpha = 0.1
	sample := 1.0
	if status != StatusOK {
		sample = 4.0 // a failed attempt costs roughly as much as four successful ones would
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.etx[addr] = (1-alpha)*f.estimate(addr) + alpha*sample
}
