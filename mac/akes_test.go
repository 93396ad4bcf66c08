package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCsprng struct {
	values [][]byte
	calls  int
}

func (f *fixedCsprng) Rand(buf []byte) {
	copy(buf, f.values[f.calls])
	f.calls++
}

func newTestAKES(t *testing.T, addr LinkAddr, masterSecret [16]byte, challenges [][]byte) *AKES {
	t.Helper()
	nt := NewNeighborTable(8, 8)
	driver := NewSoftwareAES128()
	panicHandler := &RecordingPanicHandler{}
	csprng := &fixedCsprng{values: challenges}
	helloBucket := NewLeakyBucket(20, 1)
	helloAckBucket := NewLeakyBucket(20, 1)
	trickle := NewTrickle(10, 3)
	return NewAKES(addr, masterSecret, nt, driver, csprng, panicHandler, helloBucket, helloAckBucket, trickle, 1000)
}

// Test_AKES_FullHandshake walks through spec scenario 3: master secret
// 00 01 ... 0F, q_A = 0x1111111111111111, q_B = 0x2222222222222222. Both
// sides must end up holding each other permanent with the same derived
// pairwise key.
func Test_AKES_FullHandshake(t *testing.T) {
	var masterSecret [16]byte
	for i := range masterSecret {
		masterSecret[i] = byte(i)
	}
	qA := [8]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}
	qB := [8]byte{0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22}

	addrA := ShortAddr(0, 1)
	addrB := ShortAddr(0, 2)

	a := newTestAKES(t, addrA, masterSecret, [][]byte{qA[:]})
	b := newTestAKES(t, addrB, masterSecret, [][]byte{qB[:]})

	// A broadcasts HELLO.
	hello := a.BuildHello(1, Phase{}, false)
	require.Equal(t, qA, hello.Challenge)

	// B receives it, admits, and replies with HELLOACK.
	status := b.ReceiveHello(addrA, hello, 0)
	require.Equal(t, StatusOK, status)

	helloAck, status := b.BuildHelloAck(addrA, 2, Phase{}, 0, 500)
	require.Equal(t, StatusOK, status)
	require.Equal(t, qB, helloAck.Challenge)

	// A receives HELLOACK, verifies, and optimistically installs B as permanent.
	status = a.ReceiveHelloAck(addrB, helloAck, 0)
	require.Equal(t, StatusOK, status)

	entryA := a.NeighborTable.GetEntry(addrB)
	require.NotNil(t, entryA.Permanent)
	assert.True(t, entryA.Permanent.HasPairwiseKey)

	// A replies with ACK, echoing q_B.
	ack, status := a.BuildAck(addrB, 123, qB)
	require.Equal(t, StatusOK, status)

	// B receives the ACK and promotes A to permanent.
	status = b.ReceiveAck(addrA, ack, 0)
	require.Equal(t, StatusOK, status)

	entryB := b.NeighborTable.GetEntry(addrA)
	require.NotNil(t, entryB.Permanent)
	assert.True(t, entryB.Permanent.HasPairwiseKey)
	assert.Nil(t, entryB.Tentative, "tentative slot must be cleared once promoted")

	assert.Equal(t, entryA.Permanent.PairwiseKey, entryB.Permanent.PairwiseKey, "both sides must derive the same pairwise key")
}

func Test_AKES_ReceiveHello_BucketFull(t *testing.T) {
	var masterSecret [16]byte
	b := newTestAKES(t, ShortAddr(0, 2), masterSecret, nil)
	b.HelloBucket = NewLeakyBucket(1, 1000)

	hello := HelloMessage{Challenge: [8]byte{1}}
	require.Equal(t, StatusOK, b.ReceiveHello(ShortAddr(0, 1), hello, 0))
	assert.Equal(t, StatusBucketFull, b.ReceiveHello(ShortAddr(0, 3), hello, 0))
}

func Test_AKES_ReceiveAck_WrongMICRejected(t *testing.T) {
	var masterSecret [16]byte
	a := newTestAKES(t, ShortAddr(0, 1), masterSecret, [][]byte{{1, 2, 3, 4, 5, 6, 7, 8}})
	b := newTestAKES(t, ShortAddr(0, 2), masterSecret, [][]byte{{9, 9, 9, 9, 9, 9, 9, 9}})

	hello := a.BuildHello(1, Phase{}, false)
	require.Equal(t, StatusOK, b.ReceiveHello(ShortAddr(0, 1), hello, 0))
	helloAck, status := b.BuildHelloAck(ShortAddr(0, 1), 1, Phase{}, 0, 500)
	require.Equal(t, StatusOK, status)

	tamperedAck := AckMessage{Challenge: helloAck.Challenge, MIC: [4]byte{0xde, 0xad, 0xbe, 0xef}}
	assert.Equal(t, StatusInauthentic, b.ReceiveAck(ShortAddr(0, 1), tamperedAck, 0))
}

func Test_AKES_Update_ProlongsNeighbor(t *testing.T) {
	var masterSecret [16]byte
	nt := NewNeighborTable(4, 4)
	driver := NewSoftwareAES128()
	a := &AKES{
		LocalAddr:        ShortAddr(0, 1),
		MasterSecret:     masterSecret,
		NeighborTable:    nt,
		Driver:           driver,
		Csprng:           NewCsprng(),
		CCM:              NewCCMStar(driver),
		PanicHandler:     &RecordingPanicHandler{},
		NeighborLifetime: 1000,
	}

	peer := ShortAddr(0, 2)
	entry, _ := nt.New(peer, false)
	entry.Permanent = &PermanentNeighbor{PairwiseKey: [16]byte{1, 2, 3}, HasPairwiseKey: true, ProlongationTime: 50}

	update, status := a.BuildUpdate(peer)
	require.Equal(t, StatusOK, status)

	status = a.ReceiveUpdate(peer, update, 900)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, RtimerClock(1900), entry.Permanent.ProlongationTime)
}
