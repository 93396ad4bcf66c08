package mac

/*------------------------------------------------------------------
 *
 * Purpose: Radio hardware trait consumed by the duty-cycled MAC core.
 *
 * Description: Grounded on original_source's os/dev/radio.h async API
 *		(on/off/prepare/transmit/read_phy_header/read_payload plus
 *		FIFOP/SHR/TXDONE callbacks). The callback-driven interrupt
 *		API is adapted here into a synchronous contract: this
 *		module's protothread-equivalent (MACCore, in
 *		contikimac.go/csl.go) is a sequence of ordinary function
 *		calls rather than a state machine resumed from interrupt
 *		context, so RadioDriver exposes the same operations as
 *		blocking calls instead of callback registrations. A real
 *		chip driver wraps its interrupt-driven hardware behind this
 *		same contract; internal/simradio is the in-memory stand-in
 *		every test in this module uses.
 *
 *------------------------------------------------------------------*/

// RadioParam identifies a runtime-settable radio parameter (spec section 6:
// "set_value(param, v) / get_value(param)").
type RadioParam int

const (
	RadioParamChannel RadioParam = iota
	RadioParamTxPower
	RadioParamCCAThreshold
)

// Radio timing and framing constants (spec section 6).
const (
	RadioMaxPayload                  = 125
	RadioSHRLen                      = 5
	RadioHeaderLen                   = 2
	RadioSymbolsPerByte               = 2
	RadioReceiveCalibrationTime  RtimerClock = 10
	RadioTransmitCalibrationTime RtimerClock = 10
	RadioCCATime                 RtimerClock = 8
)

// RadioDriver is the hardware (or simulated) radio contract the duty-cycled
// MAC core is built on (spec section 6 "Radio async API").
type RadioDriver interface {
	// On powers the receiver up.
	On()
	// Off powers the radio down, aborting any in-flight reception or
	// transmission (spec section 4.8: "the radio is turned off immediately
	// to abort the in-flight ACK transmission").
	Off()

	// CCA performs one clear-channel assessment, returning true if the
	// channel is clear.
	CCA() bool

	// Prepare loads buf into the radio's TX buffer ahead of Transmit.
	Prepare(buf []byte) error
	// Transmit clocks out the previously Prepared buffer. withAck requests
	// the radio wait for a matching acknowledgment.
	Transmit(withAck bool) Status

	// PrepareSequence/AppendToSequence/TransmitSequence/FinishSequence
	// implement the wake-up-sequence transmission path (spec section 4.8
	// "Transmission path" step 2): a long stream of wake-up frames clocked
	// out incrementally because the TX buffer cannot hold the whole
	// sequence at once.
	PrepareSequence()
	AppendToSequence(frame []byte) error
	TransmitSequence() Status
	FinishSequence()

	// ReadPhyHeader reads the PHY header (frame length) of an incoming
	// frame.
	ReadPhyHeader() (int, error)
	// ReadPayload reads n bytes of an incoming frame's payload.
	ReadPayload(n int) ([]byte, error)

	SetValue(param RadioParam, v int)
	GetValue(param RadioParam) int

	// SetChannel switches the radio's operating channel (used by the CSL
	// bandit channel selector).
	SetChannel(channel int)
}
