package mac

/*------------------------------------------------------------------
 *
 * Purpose: Wake-up sequence scheduling for broadcasts and unicasts, and the
 *		per-neighbor drift learning that keeps unicast schedules tight.
 *
 * Description: Grounded on original_source's
 *		os/services/akes/contikimac-synchronizer-broadcast.c and
 *		contikimac-synchronizer-unicast.c. ChannelSelector and its
 *		bandit implementations (bandit.go) are the CSL-only channel-
 *		hopping counterpart, grounded on csl-synchronizer-ducb.c /
 *		csl-synchronizer-splo.c.
 *
 *------------------------------------------------------------------*/

// SyncConfig holds the tunables spec section 4.9 names.
type SyncConfig struct {
	WakeUpCounterInterval RtimerClock // W
	ChannelsCount         int         // 1 for ContikiMAC, >1 for CSL hopping
	ClockTolerancePPM     int32
	GuardTime             RtimerClock // GUARD_NEG / GUARD_POS (symmetric)
	TicksPerSecond        float64
}

// BroadcastScheduler computes when and how long a HELLO's wake-up sequence
// must run to cover the whole wake-up-counter interval (spec section 4.9
// "Broadcast").
type BroadcastScheduler interface {
	BroadcastSchedule(wc *WakeUpCounter, now RtimerClock, wakeUpFrameTxTime RtimerClock) (seqStart, payloadStart RtimerClock, wakeUpFrames int)
}

// UnicastScheduler computes when and how long a unicast's wake-up sequence
// must run given a neighbor's learned Phase (spec section 4.9 "Unicast").
type UnicastScheduler interface {
	UnicastSchedule(wc *WakeUpCounter, peerPhase *Phase, now RtimerClock, wakeUpFrameTxTime RtimerClock) (seqStart RtimerClock, wakeUpFrames int)
}

// BroadcastSync implements BroadcastScheduler.
type BroadcastSync struct {
	Config SyncConfig
}

// BroadcastSchedule places payloadStart half a wake-up window past the next
// real epoch boundary at or after now. wc.ShiftToFuture(wc.Base(), now) finds
// that boundary -- anchored to wc's actual epoch base rather than a
// hardcoded loop from tick zero -- and W/2 (or channels*W/2 when hopping) is
// then added as a plain duration, since ShiftToFuture's own modulus is wc's
// single-channel Interval and folding a multi-channel span back through it
// would collapse whenever channels*W/2 lands on a multiple of Interval (spec
// section 4.9).
func (s *BroadcastSync) BroadcastSchedule(wc *WakeUpCounter, now RtimerClock, wakeUpFrameTxTime RtimerClock) (RtimerClock, RtimerClock, int) {
	w := s.Config.WakeUpCounterInterval * RtimerClock(s.Config.ChannelsCount)
	seqStart := now

	epochBoundary := wc.ShiftToFuture(wc.Base(), now)
	payloadStart := epochBoundary + w/2

	wakeUpFrames := 0
	if wakeUpFrameTxTime > 0 {
		wakeUpFrames = int((payloadStart-seqStart)/wakeUpFrameTxTime) + 1
	}
	return seqStart, payloadStart, wakeUpFrames
}

// UnicastSync implements UnicastScheduler: it reads the neighbor's learned
// Phase and schedules the wake-up sequence to start just before the
// predicted wake-up, with an uncertainty window that grows with elapsed
// time and the neighbor's clock tolerance.
type UnicastSync struct {
	Config SyncConfig
}

// UnicastSchedule computes negative/positive uncertainty from elapsed time
// and clock tolerance, then the earliest sequence-start time and how many
// wake-up frames are needed to span the uncertainty window (spec section
// 4.9: "negative uncertainty = time_since_last_sync * clock_tolerance_ppm +
// GUARD_NEG... number of wake-up frames = ceil((neg+pos) /
// wake_up_frame_tx_time) + 2"). seqStart is wc.ShiftToFuture(peer_phase -
// negative_uncertainty, now), matching original_source's
// wake_up_counter_shift_to_future(phase->t - negative_uncertainty, now)
// rather than a plain clamp to now, so a schedule anchored before wc's epoch
// base still resolves to the correct future occurrence once rtimer time has
// wrapped.
func (s *UnicastSync) UnicastSchedule(wc *WakeUpCounter, peerPhase *Phase, now RtimerClock, wakeUpFrameTxTime RtimerClock) (RtimerClock, int) {
	elapsedSeconds := float64(now-peerPhase.T) / s.Config.TicksPerSecond
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	toleranceTicks := RtimerClock(elapsedSeconds * float64(s.Config.ClockTolerancePPM) / 1e6 * s.Config.TicksPerSecond)

	negUncertainty := toleranceTicks + s.Config.GuardTime
	posUncertainty := toleranceTicks + s.Config.GuardTime

	predicted := peerPhase.Predict(now-peerPhase.T, s.Config.TicksPerSecond)
	seqStart := wc.ShiftToFuture(predicted-negUncertainty, now)

	wakeUpFrames := 2
	if wakeUpFrameTxTime > 0 {
		wakeUpFrames = int((negUncertainty+posUncertainty+wakeUpFrameTxTime-1)/wakeUpFrameTxTime) + 2
	}
	return seqStart, wakeUpFrames
}
