package mac

/*------------------------------------------------------------------
 *
 * Purpose: Authenticated key establishment: the HELLO/HELLOACK/ACK
 *		handshake, UPDATE frames, and expiry.
 *
 * Description: Grounded on original_source's
 *		os/services/akes/akes.c (handshake state machine) and
 *		akes-nbr.c (rate limiting, re-keying, expiry). The three
 *		handshake messages are modeled as plain data here; C7 is
 *		responsible for their wire encoding, so AKES only ever reads
 *		and writes Go structs.
 *
 *------------------------------------------------------------------*/

import "sync"

// HelloMessage is the content of a broadcast HELLO (spec section 4.6,
// message 1).
type HelloMessage struct {
	SenderWakeUpCounter uint32
	Challenge           [8]byte // q_A
	HasPhase            bool
	Phase               Phase
	// MICs holds one MIC per known permanent neighbor of the sender, keyed by
	// that neighbor's address and computed under that neighbor's pairwise
	// key, so every permanent peer (and only they) can verify this HELLO
	// came from an already-authenticated node (spec: "a per-recipient MIC
	// list").
	MICs map[LinkAddr][4]byte
}

// HelloAckMessage is the content of a unicast HELLOACK (spec section 4.6,
// message 2).
type HelloAckMessage struct {
	SenderWakeUpCounter uint32
	Challenge           [8]byte // q_B
	Phase               Phase
	MIC                 [4]byte
}

// AckMessage is the content of the unicast ACK that closes the handshake
// (spec section 4.6, message 3).
type AckMessage struct {
	PhaseTimestamp RtimerClock
	Challenge      [8]byte // echoes q_B
	MIC            [4]byte
}

// UpdateMessage is a short authenticated broadcast that refreshes liveness
// and anti-replay state (spec section 4.6 "UPDATE frames").
type UpdateMessage struct {
	MIC [4]byte
}

// AKES runs the handshake, rate limiting, and expiry for one node.
type AKES struct {
	mu sync.Mutex

	LocalAddr    LinkAddr
	MasterSecret [16]byte // pre-shared secret used only to derive tentative pairwise keys
	NeighborTable *NeighborTable
	Driver        AESDriver
	Csprng        Csprng
	CCM           *CCMStar
	PanicHandler  PanicHandler

	DeriveKeyArea int // keystore area reserved for the master-secret key schedule

	HelloBucket    *LeakyBucket
	HelloAckBucket *LeakyBucket
	HelloTrickle   *Trickle

	NeighborLifetime RtimerClock // AKES_NBR_LIFETIME, in rtimer ticks

	pendingChallenge [8]byte // this node's own q_A for the HELLO currently in flight
}

// NewAKES builds an AKES engine. helloBucket/helloAckBucket/trickle are
// built by the caller, e.g. from Config's HelloBucketCapacity,
// HelloAckBucketCapacity and TrickleIMin/TrickleIMax.
func NewAKES(localAddr LinkAddr, masterSecret [16]byte, nt *NeighborTable, driver AESDriver, csprng Csprng, panicHandler PanicHandler, helloBucket, helloAckBucket *LeakyBucket, trickle *Trickle, neighborLifetime RtimerClock) *AKES {
	return &AKES{
		LocalAddr:        localAddr,
		MasterSecret:     masterSecret,
		NeighborTable:    nt,
		Driver:           driver,
		Csprng:           csprng,
		CCM:              NewCCMStar(driver),
		PanicHandler:     panicHandler,
		HelloBucket:      helloBucket,
		HelloAckBucket:   helloAckBucket,
		HelloTrickle:     trickle,
		NeighborLifetime: neighborLifetime,
	}
}

// deriveTentativePairwiseKey computes AES(master_secret, q_A || q_B), the
// handshake's tentative pairwise key (spec section 4.6: "exact derivation =
// block-cipher on a concatenation of the challenges").
func deriveTentativePairwiseKey(driver AESDriver, areaIndex int, masterSecret [16]byte, qA, qB [8]byte) ([16]byte, error) {
	if !driver.GetLock() {
		return [16]byte{}, StatusCcmLocked
	}
	defer driver.ReleaseLock()

	if err := driver.SetKey(areaIndex, masterSecret); err != nil {
		return [16]byte{}, err
	}
	var block [16]byte
	copy(block[:8], qA[:])
	copy(block[8:], qB[:])
	driver.Encrypt(&block)
	return block, nil
}

// mic4 computes a 4-byte CCM* MIC under key with context as the associated
// data and an empty message, using a nonce made of context's first 13 bytes,
// zero-padded (handshake messages are single-shot per challenge pair, so
// nonce reuse across distinct keys is not a concern here).
func (a *AKES) mic4(key [16]byte, context []byte) ([4]byte, error) {
	var nonce [CCMStarNonceLength]byte
	copy(nonce[:], context)
	sealed, err := a.CCM.Seal(0, key, nonce, context, nil, 4)
	var out [4]byte
	if err != nil {
		return out, err
	}
	copy(out[:], sealed)
	return out, nil
}

func (a *AKES) verifyMIC4(key [16]byte, context []byte, mic [4]byte) bool {
	expected, err := a.mic4(key, context)
	if err != nil {
		return false
	}
	return expected == mic
}

// StartHelloSchedule begins broadcasting HELLO on the trickle schedule
// (spec section 4.6: "broadcast on a trickle schedule until
// akes_trickle_stop() or a maximum").
func (a *AKES) StartHelloSchedule(now RtimerClock) {
	a.HelloTrickle.Start(now)
}

// BuildHello constructs the next HELLO to broadcast, drawing a fresh
// challenge q_A and computing one MIC per currently-permanent neighbor.
func (a *AKES) BuildHello(wakeUpCounter uint32, phase Phase, hasPhase bool) HelloMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	var qA [8]byte
	a.Csprng.Rand(qA[:])
	a.pendingChallenge = qA

	msg := HelloMessage{
		SenderWakeUpCounter: wakeUpCounter,
		Challenge:           qA,
		HasPhase:            hasPhase,
		Phase:               phase,
		MICs:                map[LinkAddr][4]byte{},
	}

	context := append([]byte{byte(FrameHello)}, qA[:]...)
	for e := a.NeighborTable.Head(); e != nil; e = a.NeighborTable.Next(e) {
		if e.Permanent == nil || !e.Permanent.HasPairwiseKey {
			continue
		}
		mic, err := a.mic4(e.Permanent.PairwiseKey, context)
		if err == nil {
			msg.MICs[e.Addr] = mic
		}
	}
	return msg
}

// ReceiveHello processes a HELLO from sender. If sender is already a known
// permanent peer whose MIC verifies, its sent_authentic_hello flag is
// cleared and it must complete a new handshake to be prolonged (spec
// section 4.6 "Re-keying"). Otherwise, a tentative entry is created for
// sender and a HELLOACK should be sent (BuildHelloAck).
func (a *AKES) ReceiveHello(sender LinkAddr, msg HelloMessage, now RtimerClock) Status {
	if !a.HelloBucket.Admit(now) {
		return StatusBucketFull
	}

	if entry := a.NeighborTable.GetEntry(sender); entry != nil && entry.Permanent != nil && entry.Permanent.HasPairwiseKey {
		context := append([]byte{byte(FrameHello)}, msg.Challenge[:]...)
		if mic, ok := msg.MICs[a.LocalAddr]; ok && a.verifyMIC4(entry.Permanent.PairwiseKey, context, mic) {
			entry.Permanent.SentAuthenticHello = false
			return StatusOK
		}
		return StatusInauthentic
	}

	entry, status := a.NeighborTable.New(sender, true)
	if status != StatusOK {
		return status
	}
	entry.Tentative.Secret = TentativeSecret{Kind: TentativeChallenge, Challenge: msg.Challenge}
	return StatusOK
}

// BuildHelloAck replies to a HELLO from sender (already admitted via
// ReceiveHello, which must have created a tentative entry with the sender's
// q_A). It draws q_B, derives the tentative pairwise key, transitions the
// tentative slot to hold that key, and arms the wait timer.
func (a *AKES) BuildHelloAck(sender LinkAddr, localWakeUpCounter uint32, localPhase Phase, now RtimerClock, waitTimeout RtimerClock) (HelloAckMessage, Status) {
	entry := a.NeighborTable.GetEntry(sender)
	if entry == nil || entry.Tentative == nil || entry.Tentative.Secret.Kind != TentativeChallenge {
		return HelloAckMessage{}, StatusErr
	}
	qA := entry.Tentative.Secret.Challenge

	var qB [8]byte
	a.Csprng.Rand(qB[:])

	key, err := deriveTentativePairwiseKey(a.Driver, a.DeriveKeyArea, a.MasterSecret, qA, qB)
	if err != nil {
		return HelloAckMessage{}, StatusErr
	}

	entry.Tentative.Secret = TentativeSecret{Kind: TentativeKey, Key: key}
	entry.Tentative.WaitTimerDeadline = now + waitTimeout
	entry.Tentative.IsAwaitingHelloAck = true

	context := append([]byte{byte(FrameHelloAck)}, qB[:]...)
	mic, err := a.mic4(key, context)
	if err != nil {
		return HelloAckMessage{}, StatusErr
	}

	return HelloAckMessage{
		SenderWakeUpCounter: localWakeUpCounter,
		Challenge:           qB,
		Phase:               localPhase,
		MIC:                 mic,
	}, StatusOK
}

// ReceiveHelloAck processes a HELLOACK from sender, in reply to the HELLO
// this node most recently broadcast. On success, this node optimistically
// installs sender as a permanent neighbor with the derived pairwise key
// (spec section 4.6: "post-handshake both sides hold pairwise_key... both
// sides hold each other permanent").
func (a *AKES) ReceiveHelloAck(sender LinkAddr, msg HelloAckMessage, now RtimerClock) Status {
	a.mu.Lock()
	qA := a.pendingChallenge
	a.mu.Unlock()

	key, err := deriveTentativePairwiseKey(a.Driver, a.DeriveKeyArea, a.MasterSecret, qA, msg.Challenge)
	if err != nil {
		return StatusErr
	}

	context := append([]byte{byte(FrameHelloAck)}, msg.Challenge[:]...)
	if !a.verifyMIC4(key, context, msg.MIC) {
		return StatusInauthentic
	}

	entry, status := a.NeighborTable.New(sender, false)
	if status != StatusOK {
		return status
	}
	entry.Permanent = &PermanentNeighbor{
		PairwiseKey:        key,
		HasPairwiseKey:     true,
		Phase:              msg.Phase,
		ProlongationTime:   now + a.NeighborLifetime,
		SentAuthenticHello: true,
	}
	return StatusOK
}

// BuildAck constructs the ACK this node sends to close the handshake,
// echoing challenge (q_B) under the now-installed pairwise key.
func (a *AKES) BuildAck(receiver LinkAddr, phaseTimestamp RtimerClock, challenge [8]byte) (AckMessage, Status) {
	entry := a.NeighborTable.GetEntry(receiver)
	if entry == nil || entry.Permanent == nil || !entry.Permanent.HasPairwiseKey {
		return AckMessage{}, StatusErr
	}
	context := append([]byte{byte(FrameAck)}, challenge[:]...)
	mic, err := a.mic4(entry.Permanent.PairwiseKey, context)
	if err != nil {
		return AckMessage{}, StatusErr
	}
	return AckMessage{PhaseTimestamp: phaseTimestamp, Challenge: challenge, MIC: mic}, StatusOK
}

// ReceiveAck processes the closing ACK from sender, verifying it against the
// tentative pairwise key this node derived when it sent the HELLOACK, and on
// success promotes sender from tentative to permanent (spec section 4.6:
// "on successful verification, B promotes A to permanent, installs the
// pairwise key, and clears the tentative slot").
func (a *AKES) ReceiveAck(sender LinkAddr, msg AckMessage, now RtimerClock) Status {
	entry := a.NeighborTable.GetEntry(sender)
	if entry == nil || entry.Tentative == nil || entry.Tentative.Secret.Kind != TentativeKey {
		return StatusErr
	}
	key := entry.Tentative.Secret.Key

	context := append([]byte{byte(FrameAck)}, msg.Challenge[:]...)
	if !a.verifyMIC4(key, context, msg.MIC) {
		return StatusInauthentic
	}

	entry.Permanent = &PermanentNeighbor{
		PairwiseKey:        key,
		HasPairwiseKey:     true,
		ProlongationTime:   now + a.NeighborLifetime,
		SentAuthenticHello: true,
	}
	a.NeighborTable.DeleteTentative(entry)
	return StatusOK
}

// BuildUpdate constructs an UPDATE broadcast authenticated under receiver's
// pairwise key (spec section 4.6: "UPDATE frames").
func (a *AKES) BuildUpdate(receiver LinkAddr) (UpdateMessage, Status) {
	entry := a.NeighborTable.GetEntry(receiver)
	if entry == nil || entry.Permanent == nil || !entry.Permanent.HasPairwiseKey {
		return UpdateMessage{}, StatusErr
	}
	mic, err := a.mic4(entry.Permanent.PairwiseKey, []byte{byte(FrameBroadcastCommand)})
	if err != nil {
		return UpdateMessage{}, StatusErr
	}
	return UpdateMessage{MIC: mic}, StatusOK
}

// ReceiveUpdate verifies an UPDATE from sender and, on success, prolongs the
// permanent neighbor by NeighborLifetime (spec section 4.6: "received
// UPDATEs prolong a permanent neighbor by AKES_NBR_LIFETIME seconds").
func (a *AKES) ReceiveUpdate(sender LinkAddr, msg UpdateMessage, now RtimerClock) Status {
	entry := a.NeighborTable.GetEntry(sender)
	if entry == nil || entry.Permanent == nil || !entry.Permanent.HasPairwiseKey {
		return StatusKeyNotFound
	}
	if !a.verifyMIC4(entry.Permanent.PairwiseKey, []byte{byte(FrameBroadcastCommand)}, msg.MIC) {
		return StatusInauthentic
	}
	entry.Permanent.ProlongationTime = now + a.NeighborLifetime
	entry.Permanent.IsReceivingUpdate = true
	return StatusOK
}

// Expire sweeps the neighbor table for expired tentative and permanent
// entries (spec section 4.6 "Expiry").
func (a *AKES) Expire(now RtimerClock) {
	a.NeighborTable.Expire(now)
}
