package mac

import (
	"sync"
	"testing"
	"time"

	"github.com/nodewake/dosmac/internal/simradio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMACCore(t *testing.T, radio RadioDriver, localAddr LinkAddr, groupKey [16]byte) *MACCore {
	t.Helper()
	driver := NewSoftwareAES128()
	ccm := NewCCMStar(driver)
	framer := NewPOTRFramer(ccm, DefaultFramerConfig())
	queue := NewFrameQueue(8, DefaultCSMAConfig(1))
	nbrTable := NewNeighborTable(8, 4)
	syncConfig := SyncConfig{WakeUpCounterInterval: 4096, ChannelsCount: 1, ClockTolerancePPM: 100, GuardTime: 10, TicksPerSecond: 32768}
	broadcast := &BroadcastSync{Config: syncConfig}
	unicast := &UnicastSync{Config: syncConfig}
	wakeUpCounter := NewWakeUpCounter(4096, 0)

	return NewMACCore(DefaultDutyCycleConfig(32768), radio, framer, ccm, queue, nbrTable, broadcast, unicast, wakeUpCounter, localAddr, groupKey)
}

func Test_MACCore_UnicastRoundTrip(t *testing.T) {
	medium := simradio.NewMedium()
	nodeA := medium.NewNode("A")
	nodeB := medium.NewNode("B")
	// Generous CCA polling window: the two sides here are driven by
	// independently scheduled goroutines rather than a shared virtual
	// clock, so the receiver's sampling must comfortably outlast whatever
	// delay the Go scheduler introduces before the sender's goroutine runs.
	nodeB.CCAWindow = 200 * time.Millisecond

	addrA := ShortAddr(0, 1)
	addrB := ShortAddr(0, 2)
	var groupKey [16]byte
	var pairwiseKey [16]byte
	for i := range pairwiseKey {
		pairwiseKey[i] = byte(i + 1)
	}

	coreA := newTestMACCore(t, nodeA, addrA, groupKey)
	coreB := newTestMACCore(t, nodeB, addrB, groupKey)

	peerBAtA, status := coreA.NeighborTable.New(addrB, false)
	require.Equal(t, StatusOK, status)
	peerBAtA.Permanent = &PermanentNeighbor{PairwiseKey: pairwiseKey, HasPairwiseKey: true, GroupKey: groupKey, HasGroupKey: true}

	peerAAtB, status := coreB.NeighborTable.New(addrA, false)
	require.Equal(t, StatusOK, status)
	peerAAtB.Permanent = &PermanentNeighbor{PairwiseKey: pairwiseKey, HasPairwiseKey: true, GroupKey: groupKey, HasGroupKey: true}

	pb := &Packetbuf{
		FrameType:    FrameUnicastData,
		Sender:       addrA,
		Receiver:     addrB,
		FrameCounter: 1,
		Payload:      []byte("hello"),
	}
	entry, status := coreA.Queue.Add(pb, func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)

	var wg sync.WaitGroup
	var received *Packetbuf
	var receiveStatus Status
	var txStatus Status

	wg.Add(2)
	go func() {
		defer wg.Done()
		received, receiveStatus = coreB.ReceiveCycle(0)
	}()
	go func() {
		defer wg.Done()
		txStatus = coreA.TransmitUnicast(entry, peerBAtA, 0)
	}()
	wg.Wait()

	assert.Equal(t, StatusOK, txStatus)
	require.Equal(t, StatusOK, receiveStatus)
	require.NotNil(t, received)
	assert.Equal(t, addrA, received.Sender)
	assert.Equal(t, []byte("hello"), received.Payload)
}

func Test_MACCore_ReceiveCycle_NothingHeard(t *testing.T) {
	medium := simradio.NewMedium()
	node := medium.NewNode("solo")
	core := newTestMACCore(t, node, ShortAddr(0, 9), [16]byte{})
	node.CCAWindow = 0

	pb, status := core.ReceiveCycle(0)
	assert.Nil(t, pb)
	assert.Equal(t, StatusDeferred, status)
}

func Test_MACCore_TransmitUnicast_UnknownPeerKey(t *testing.T) {
	medium := simradio.NewMedium()
	node := medium.NewNode("A")
	core := newTestMACCore(t, node, ShortAddr(0, 1), [16]byte{})

	peer, status := core.NeighborTable.New(ShortAddr(0, 2), false)
	require.Equal(t, StatusOK, status)

	pb := &Packetbuf{FrameType: FrameUnicastData, Sender: ShortAddr(0, 1), Receiver: ShortAddr(0, 2)}
	entry, status := core.Queue.Add(pb, func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)

	got := core.TransmitUnicast(entry, peer, 0)
	assert.Equal(t, StatusErrFatal, got)
}

func Test_MACCore_TransmitUnicast_CollisionReported(t *testing.T) {
	medium := simradio.NewMedium()
	nodeA := medium.NewNode("A")
	addrA := ShortAddr(0, 1)
	addrB := ShortAddr(0, 2)
	var key [16]byte

	core := newTestMACCore(t, nodeA, addrA, key)
	peer, status := core.NeighborTable.New(addrB, false)
	require.Equal(t, StatusOK, status)
	peer.Permanent = &PermanentNeighbor{PairwiseKey: key, HasPairwiseKey: true}

	medium.Jam(0)
	defer medium.Unjam(0)

	pb := &Packetbuf{FrameType: FrameUnicastData, Sender: addrA, Receiver: addrB}
	entry, status := core.Queue.Add(pb, func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)

	got := core.TransmitUnicast(entry, peer, 0)
	assert.Equal(t, StatusCollision, got)
}
