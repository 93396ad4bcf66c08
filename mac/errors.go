package mac

/*------------------------------------------------------------------
 *
 * Purpose: Closed set of status/error kinds shared by every component.
 *
 * Description: Every operation that can fail for protocol reasons (as
 *		opposed to a programming error) returns one of these as its
 *		error value. Verification failures are never reported
 *		upward past the MAC (spec 4.6-4.8) -- only transmission
 *		outcomes reach the upper-layer callback.
 *
 *------------------------------------------------------------------*/

import "fmt"

// Status is a MAC-level error kind, per spec section 7.
type Status int

const (
	StatusOK Status = iota
	StatusQueueFull
	StatusBufferFull
	StatusCollision
	StatusNoAck
	StatusDeferred
	StatusErr
	StatusErrFatal
	StatusInauthentic
	StatusReplayed
	StatusWrongPan
	StatusWrongAddress
	StatusBadLength
	StatusTimeout
	StatusKeyNotFound
	StatusCcmLocked
	StatusBucketFull
)

var statusNames = map[Status]string{
	StatusOK:           "ok",
	StatusQueueFull:    "queue full",
	StatusBufferFull:   "buffer full",
	StatusCollision:    "collision",
	StatusNoAck:        "no ack",
	StatusDeferred:     "deferred",
	StatusErr:          "transient error",
	StatusErrFatal:     "fatal error",
	StatusInauthentic:  "inauthentic",
	StatusReplayed:     "replayed",
	StatusWrongPan:     "wrong pan",
	StatusWrongAddress: "wrong address",
	StatusBadLength:    "bad length",
	StatusTimeout:      "timeout",
	StatusKeyNotFound:  "key not found",
	StatusCcmLocked:    "ccm star locked",
	StatusBucketFull:   "bucket full",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Error implements the error interface so a Status can be returned directly.
func (s Status) Error() string {
	return s.String()
}

// Retryable reports whether C4 should retry locally rather than surface the
// failure, per the propagation policy in spec section 7.
func (s Status) Retryable() bool {
	switch s {
	case StatusCollision, StatusNoAck, StatusErr:
		return true
	default:
		return false
	}
}

// SilentlyDropped reports whether a reception-path failure should be dropped
// without surfacing to any caller (spec section 7: Inauthentic, Replayed,
// BucketFull are logged-and-dropped, never reported upward).
func (s Status) SilentlyDropped() bool {
	switch s {
	case StatusInauthentic, StatusReplayed, StatusBucketFull, StatusKeyNotFound:
		return true
	default:
		return false
	}
}
