package mac

/*------------------------------------------------------------------
 *
 * Purpose: Reboot policy for saturated outgoing counters.
 *
 * Description: spec section 3 requires the outgoing frame counter to
 *		never wrap: on reaching math.MaxUint32 the node must reboot
 *		rather than reuse a counter value under a live key. The
 *		actual reboot mechanism is platform-specific and out of
 *		scope (spec section 1), so it is exposed as a trait
 *		(spec section 9) to let tests observe the decision without
 *		actually exiting the process.
 *
 *------------------------------------------------------------------*/

import "os"

// PanicHandler is invoked when a protocol invariant requires the node to
// reboot. reason is a human-readable description for logging.
type PanicHandler interface {
	Reboot(reason string)
}

// OSExitPanicHandler terminates the process, approximating a hardware
// reboot for a long-running node process.
type OSExitPanicHandler struct{}

func (OSExitPanicHandler) Reboot(reason string) {
	os.Exit(1)
}

// RecordingPanicHandler never exits; it records whether Reboot was called
// and why, for use in tests.
type RecordingPanicHandler struct {
	Rebooted bool
	Reason   string
}

func (h *RecordingPanicHandler) Reboot(reason string) {
	h.Rebooted = true
	h.Reason = reason
}
