package mac

/*------------------------------------------------------------------
 *
 * Purpose: ContikiMAC-style duty-cycled transmission and reception state
 *		machine: the glue between FrameQueue, AKES's neighbor table,
 *		the framer, and RadioDriver.
 *
 * Description: Grounded on original_source's os/net/mac/contikimac/contikimac.c
 *		reception/transmission paths (spec section 4.8). The
 *		original is a protothread resumed from FIFOP/SHR/TXDONE
 *		interrupts; MACCore instead runs each path as one ordinary
 *		synchronous call over the blocking RadioDriver contract
 *		(radio.go), since there is no interrupt context to resume
 *		into here. csl.go reuses this same core with a channel-
 *		hopping Synchronizer/ChannelSelector pair instead of plain
 *		ContikiMAC scheduling.
 *
 *------------------------------------------------------------------*/

import (
	"bytes"
	"encoding/binary"
)

// wakeUpFrameMarker is the first byte of a wake-up frame: 0x00 can never be
// confused with a POTR extended frame-type byte (always has its top 3 bits
// set) or a compliant-mode FCF byte (fcfTypeData/Ack/Cmd are 0x01-0x03).
const wakeUpFrameMarker = 0x00

// encodeWakeUpFrame builds one wake-up-sequence frame carrying the rtimer
// ticks remaining until the payload frame (spec section 4.8 transmission
// path step 2).
func encodeWakeUpFrame(remaining RtimerClock) []byte {
	buf := make([]byte, 5)
	buf[0] = wakeUpFrameMarker
	binary.BigEndian.PutUint32(buf[1:], uint32(remaining))
	return buf
}

// decodeWakeUpFrame reports the remaining-ticks value and true if raw is a
// wake-up frame, or false if it is a payload frame.
func decodeWakeUpFrame(raw []byte) (RtimerClock, bool) {
	if len(raw) != 5 || raw[0] != wakeUpFrameMarker {
		return 0, false
	}
	return RtimerClock(binary.BigEndian.Uint32(raw[1:])), true
}

// DutyCycleConfig holds the duty-cycled core's tunables (spec section 6).
type DutyCycleConfig struct {
	MaxCCAs                  int         // CCA_COUNT_MAX
	WakeUpFrameTxTime        RtimerClock // time to clock out one wake-up frame
	AckMICLen                int         // acknowledgment MIC length; one of CCM*'s standard lengths
	MaxWakeUpFramesOnReceive int         // guards the reception loop against an unbounded wake-up sequence
	ILOS                     bool        // inter-layer optimized synchronization ack-nonce variant
	TicksPerSecond           float64
}

// DefaultDutyCycleConfig returns the spec section 6 defaults.
func DefaultDutyCycleConfig(ticksPerSecond float64) DutyCycleConfig {
	return DutyCycleConfig{
		MaxCCAs:                  2,
		WakeUpFrameTxTime:        10,
		AckMICLen:                4,
		MaxWakeUpFramesOnReceive: 64,
		TicksPerSecond:           ticksPerSecond,
	}
}

// MACCore is the duty-cycled transmission/reception engine shared by
// ContikiMAC and CSL (spec section 4.8).
type MACCore struct {
	Config        DutyCycleConfig
	Radio         RadioDriver
	Framer        Framer
	CCM           *CCMStar
	Queue         *FrameQueue
	NeighborTable *NeighborTable
	Broadcast     BroadcastScheduler
	Unicast       UnicastScheduler
	LocalAddr     LinkAddr
	GroupKey      [16]byte

	// WakeUpCounter is this node's own global wake-up epoch (spec section
	// 4.1/C1). Every ReceiveCycle advances it to the epoch covering now, and
	// both schedulers consult it to anchor their ShiftToFuture projections
	// to the node's actual epoch base rather than rtimer tick zero.
	WakeUpCounter *WakeUpCounter

	// Forwarder picks among entry.Forwarders when a queue entry names more
	// than one candidate next hop (spec section 4 supplement,
	// "Opportunistic multi-path forwarding hook"). Nil disables the
	// feature: TransmitToForwarder then requires entry.Packetbuf.Receiver
	// to already be a concrete, single address.
	Forwarder ForwarderSelector
}

// NewMACCore wires the pieces together; each argument is owned by the
// caller and may be shared with AKES/the upper layer.
func NewMACCore(config DutyCycleConfig, radio RadioDriver, framer Framer, ccm *CCMStar, queue *FrameQueue, nbrTable *NeighborTable, broadcast BroadcastScheduler, unicast UnicastScheduler, wakeUpCounter *WakeUpCounter, localAddr LinkAddr, groupKey [16]byte) *MACCore {
	return &MACCore{
		Config:        config,
		Radio:         radio,
		Framer:        framer,
		CCM:           ccm,
		Queue:         queue,
		NeighborTable: nbrTable,
		Broadcast:     broadcast,
		Unicast:       unicast,
		WakeUpCounter: wakeUpCounter,
		LocalAddr:     localAddr,
		GroupKey:      groupKey,
	}
}

// sampleChannel performs up to MaxCCAs clear-channel assessments (spec
// section 4.8 reception path step 1), returning true the first time one
// reports the channel busy -- the signal to keep listening for a wake-up
// sequence rather than go back to sleep.
func (m *MACCore) sampleChannel() bool {
	m.Radio.On()
	for i := 0; i < m.Config.MaxCCAs; i++ {
		if !m.Radio.CCA() {
			return true
		}
	}
	return false
}

// TransmitUnicast drives one delivery attempt of entry to peer (spec section
// 4.8 transmission path): it builds a wake-up sequence sized to peer's
// learned Phase uncertainty, transmits it followed by the sealed payload
// frame, and waits for a matching acknowledgment. The returned Status is
// meant to be passed straight to FrameQueue.OnTransmitted.
func (m *MACCore) TransmitUnicast(entry *QueueEntry, peer *NeighborEntry, now RtimerClock) Status {
	if peer.Permanent == nil || !peer.Permanent.HasPairwiseKey {
		return StatusErrFatal
	}
	pb := entry.Packetbuf

	_, frames := m.Unicast.UnicastSchedule(m.WakeUpCounter, &peer.Permanent.Phase, now, m.Config.WakeUpFrameTxTime)

	payload, err := m.Framer.Encode(pb, peer.Permanent.PairwiseKey, peer.Permanent.GroupKey)
	if err != nil {
		return StatusErr
	}

	m.Radio.On()
	defer m.Radio.Off()

	if !m.Radio.CCA() {
		return StatusCollision
	}

	m.Radio.PrepareSequence()
	for i := frames - 1; i > 0; i-- {
		if err := m.Radio.AppendToSequence(encodeWakeUpFrame(RtimerClock(i) * m.Config.WakeUpFrameTxTime)); err != nil {
			m.Radio.FinishSequence()
			return StatusErr
		}
	}
	txStatus := m.Radio.TransmitSequence()
	m.Radio.FinishSequence()
	if txStatus != StatusOK {
		return txStatus
	}

	if err := m.Radio.Prepare(payload); err != nil {
		return StatusErr
	}
	if status := m.Radio.Transmit(true); status != StatusOK {
		return status
	}

	if _, err := m.Radio.ReadPhyHeader(); err != nil {
		return StatusNoAck
	}
	ackBytes, err := m.Radio.ReadPayload(m.Config.AckMICLen)
	if err != nil {
		return StatusNoAck
	}

	expectedAck, err := m.CCM.Seal(0, peer.Permanent.PairwiseKey, ackNonce(buildNonce(pb), m.Config.ILOS), nil, nil, m.Config.AckMICLen)
	if err != nil || !bytes.Equal(ackBytes, expectedAck) {
		return StatusNoAck
	}

	predicted := peer.Permanent.Phase.Predict(now-peer.Permanent.Phase.T, m.Config.TicksPerSecond)
	peer.Permanent.Phase.UpdateFromAck(now, predicted, float64(now)/m.Config.TicksPerSecond, m.Config.TicksPerSecond)

	return StatusOK
}

// TransmitToForwarder resolves entry's destination through m.Forwarder when
// entry.Forwarders names at least one candidate, looks up the chosen
// candidate's neighbor entry, transmits via TransmitUnicast, and feeds the
// outcome back to m.Forwarder. If entry.Forwarders is empty or m.Forwarder
// is nil it falls back to entry.Packetbuf.Receiver directly.
func (m *MACCore) TransmitToForwarder(entry *QueueEntry, now RtimerClock) Status {
	addr := entry.Packetbuf.Receiver
	tracking := false
	if m.Forwarder != nil && len(entry.Forwarders) > 0 {
		chosen, ok := m.Forwarder.Select(entry.Forwarders)
		if !ok {
			return StatusErrFatal
		}
		addr = chosen
		tracking = true
	}

	peer := m.NeighborTable.GetEntry(addr)
	if peer == nil {
		return StatusErrFatal
	}

	status := m.TransmitUnicast(entry, peer, now)
	if tracking {
		m.Forwarder.Record(addr, status)
	}
	return status
}

// TransmitBroadcast drives one HELLO-style broadcast wake-up sequence
// covering a full wake-up-counter interval (spec section 4.8, 4.6): no
// acknowledgment is expected.
func (m *MACCore) TransmitBroadcast(pb *Packetbuf, now RtimerClock) Status {
	_, _, frames := m.Broadcast.BroadcastSchedule(m.WakeUpCounter, now, m.Config.WakeUpFrameTxTime)

	payload, err := m.Framer.Encode(pb, m.GroupKey, m.GroupKey)
	if err != nil {
		return StatusErr
	}

	m.Radio.On()
	defer m.Radio.Off()

	if !m.Radio.CCA() {
		return StatusCollision
	}

	m.Radio.PrepareSequence()
	for i := frames - 1; i > 0; i-- {
		if err := m.Radio.AppendToSequence(encodeWakeUpFrame(RtimerClock(i) * m.Config.WakeUpFrameTxTime)); err != nil {
			m.Radio.FinishSequence()
			return StatusErr
		}
	}
	txStatus := m.Radio.TransmitSequence()
	m.Radio.FinishSequence()
	if txStatus != StatusOK {
		return txStatus
	}

	if err := m.Radio.Prepare(payload); err != nil {
		return StatusErr
	}
	return m.Radio.Transmit(false)
}

// ReceiveCycle performs one wake-up-sampling reception attempt (spec
// section 4.8 reception path): it samples the channel, and if it finds
// activity, listens through any wake-up frames until the payload frame (or
// gives up after MaxWakeUpFramesOnReceive), decodes it under the correct
// key, and -- for unicast frames -- transmits the matching acknowledgment.
// It returns (nil, StatusDeferred) when nothing was heard this cycle.
func (m *MACCore) ReceiveCycle(now RtimerClock) (*Packetbuf, Status) {
	if m.WakeUpCounter != nil {
		m.WakeUpCounter.Advance(now)
	}

	if !m.sampleChannel() {
		m.Radio.Off()
		return nil, StatusDeferred
	}
	defer m.Radio.Off()

	var raw []byte
	for i := 0; i < m.Config.MaxWakeUpFramesOnReceive; i++ {
		n, err := m.Radio.ReadPhyHeader()
		if err != nil {
			return nil, StatusTimeout
		}
		buf, err := m.Radio.ReadPayload(n)
		if err != nil {
			return nil, StatusErr
		}
		if _, isWakeUp := decodeWakeUpFrame(buf); isWakeUp {
			continue
		}
		raw = buf
		break
	}
	if raw == nil {
		return nil, StatusTimeout
	}

	key := m.GroupKey
	var peer *NeighborEntry
	if peeker, ok := m.Framer.(SenderPeeker); ok {
		sender, _, frameType, err := peeker.PeekSender(raw)
		if err != nil {
			return nil, StatusBadLength
		}
		if !frameType.IsBroadcast() {
			peer = m.NeighborTable.GetEntry(sender)
			if peer == nil || peer.Permanent == nil || !peer.Permanent.HasPairwiseKey {
				return nil, StatusKeyNotFound
			}
			key = peer.Permanent.PairwiseKey
		}
	}

	pb, err := m.Framer.Decode(raw, key, m.GroupKey)
	if err != nil {
		if status, ok := err.(Status); ok {
			return nil, status
		}
		return nil, StatusInauthentic
	}

	if peer != nil {
		ack, err := m.CCM.Seal(0, key, ackNonce(buildNonce(pb), m.Config.ILOS), nil, nil, m.Config.AckMICLen)
		if err == nil {
			if err := m.Radio.Prepare(ack); err == nil {
				m.Radio.Transmit(false)
			}
		}
	}

	return pb, StatusOK
}
