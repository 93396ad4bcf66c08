package mac

/*------------------------------------------------------------------
 *
 * Purpose: Per-neighbor phase lock: when a neighbor wakes up, and how fast
 *		its clock drifts relative to ours.
 *
 * Description: Grounded on original_source's contikimac-synchronizer-*.c
 *		and csl-synchronizer-splo.c drift tracking, and on the
 *		teacher's src/pll_dcd.go for the general shape of "keep a
 *		running estimate, only trust it once it has enough
 *		history" (there: a transition-histogram lock-confidence
 *		score; here: a minimum elapsed time before trusting a new
 *		drift estimate).
 *
 *------------------------------------------------------------------*/

// Phase is the synchronization state learned about one neighbor (spec
// section 3).
type Phase struct {
	T                 RtimerClock // last-known synchronized instant
	PeerWakeUpCounter uint32      // peer's wake-up counter at T
	DriftValid        bool
	DriftPPM          int32 // drift in parts per million

	// Historical snapshot used to compute the next drift estimate.
	HistoricalT       RtimerClock
	HistoricalValid   bool
	historicalSeconds float64 // wall-clock seconds at the snapshot, for MinTimeBetweenDriftUpdates
}

// MinTimeBetweenDriftUpdates is the minimum elapsed time (seconds) before a
// new drift estimate replaces the current one (spec section 4.9).
const MinTimeBetweenDriftUpdates = 20.0

// UpdateFromAck folds a newly observed phase (actual) against the
// previously predicted phase (expected) into a drift estimate, following
// spec section 4.9: drift = ((actual-expected)*1e6)/elapsedSeconds, only
// when at least MinTimeBetweenDriftUpdates seconds have passed since the
// last snapshot. nowSeconds is wall-clock time for the elapsed-time check;
// actualT/expectedT are rtimer ticks; ticksPerSecond converts between them.
func (p *Phase) UpdateFromAck(actualT, expectedT RtimerClock, nowSeconds float64, ticksPerSecond float64) {
	if !p.HistoricalValid {
		p.HistoricalT = actualT
		p.historicalSeconds = nowSeconds
		p.HistoricalValid = true
		return
	}

	elapsed := nowSeconds - p.historicalSeconds
	if elapsed < MinTimeBetweenDriftUpdates {
		return
	}

	deltaTicks := float64(actualT - expectedT)
	deltaSeconds := deltaTicks / ticksPerSecond
	p.DriftPPM = int32((deltaSeconds / elapsed) * 1e6)
	p.DriftValid = true

	p.HistoricalT = actualT
	p.historicalSeconds = nowSeconds
}

// Predict projects the phase forward by driftCompensating elapsedTicks.
func (p *Phase) Predict(elapsedTicks RtimerClock, ticksPerSecond float64) RtimerClock {
	if !p.DriftValid {
		return p.T + elapsedTicks
	}
	elapsedSeconds := float64(elapsedTicks) / ticksPerSecond
	correctionSeconds := elapsedSeconds * float64(p.DriftPPM) / 1e6
	return p.T + elapsedTicks + RtimerClock(correctionSeconds*ticksPerSecond)
}
