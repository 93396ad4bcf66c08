package mac

import (
	"sync"
	"testing"
	"time"

	"github.com/nodewake/dosmac/internal/simradio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSelector is a ChannelSelector whose proposed arm is fixed by the test
// and whose Update calls are recorded for assertion.
type fakeSelector struct {
	mu         sync.Mutex
	proposeArm int
	updates    []struct {
		arm    int
		reward float64
	}
}

func (f *fakeSelector) Propose() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proposeArm
}

func (f *fakeSelector) Update(arm int, reward float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, struct {
		arm    int
		reward float64
	}{arm, reward})
}

func Test_CSLCore_TransmitUnicast_TunesChannelAndRecordsSuccess(t *testing.T) {
	medium := simradio.NewMedium()
	nodeA := medium.NewNode("A")
	nodeB := medium.NewNode("B")
	nodeB.CCAWindow = 200 * time.Millisecond

	addrA := ShortAddr(0, 1)
	addrB := ShortAddr(0, 2)
	var groupKey, pairwiseKey [16]byte
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

	channels := []int{11, 15, 26}
	selector := &fakeSelector{proposeArm: 2}
	csl := NewCSLCore(coreA, selector, channels)

	pb := &Packetbuf{FrameType: FrameUnicastData, Sender: addrA, Receiver: addrB, FrameCounter: 1, Payload: []byte("hop")}
	entry, status := csl.Queue.Add(pb, func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)

	// The medium only delivers between nodes on the same channel, so B
	// listens on the channel the selector proposes for A.
	nodeB.SetChannel(channels[2])

	var wg sync.WaitGroup
	var received *Packetbuf
	var receiveStatus, txStatus Status
	wg.Add(2)
	go func() {
		defer wg.Done()
		received, receiveStatus = coreB.ReceiveCycle(0)
	}()
	go func() {
		defer wg.Done()
		txStatus = csl.TransmitUnicast(entry, peerBAtA, 0)
	}()
	wg.Wait()

	assert.Equal(t, StatusOK, txStatus)
	require.Equal(t, StatusOK, receiveStatus)
	require.NotNil(t, received)
	assert.Equal(t, channels[2], nodeA.GetValue(RadioParamChannel), "CSLCore must tune the radio to the arm Selector proposed before transmitting")

	require.Len(t, selector.updates, 1)
	assert.Equal(t, 2, selector.updates[0].arm)
	assert.Equal(t, 1.0, selector.updates[0].reward, "a successful exchange must be reported as reward 1.0")
}

func Test_CSLCore_TransmitUnicast_RecordsFailureReward(t *testing.T) {
	medium := simradio.NewMedium()
	nodeA := medium.NewNode("A")
	addrA := ShortAddr(0, 1)
	addrB := ShortAddr(0, 2)
	var groupKey, key [16]byte

	coreA := newTestMACCore(t, nodeA, addrA, groupKey)
	peerB, status := coreA.NeighborTable.New(addrB, false)
	require.Equal(t, StatusOK, status)
	peerB.Permanent = &PermanentNeighbor{PairwiseKey: key, HasPairwiseKey: true}

	channels := []int{11, 15}
	selector := &fakeSelector{proposeArm: 0}
	csl := NewCSLCore(coreA, selector, channels)

	medium.Jam(channels[0])
	defer medium.Unjam(channels[0])

	pb := &Packetbuf{FrameType: FrameUnicastData, Sender: addrA, Receiver: addrB}
	entry, status := csl.Queue.Add(pb, func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)

	got := csl.TransmitUnicast(entry, peerB, 0)
	assert.Equal(t, StatusCollision, got)

	require.Len(t, selector.updates, 1)
	assert.Equal(t, 0, selector.updates[0].arm)
	assert.Equal(t, 0.0, selector.updates[0].reward, "a failed exchange must be reported as reward 0.0")
}

func Test_CSLCore_ReceiveCycle_TunesChannelBeforeSampling(t *testing.T) {
	medium := simradio.NewMedium()
	node := medium.NewNode("solo")
	node.CCAWindow = 0
	core := newTestMACCore(t, node, ShortAddr(0, 9), [16]byte{})

	channels := []int{20, 25}
	selector := &fakeSelector{proposeArm: 1}
	csl := NewCSLCore(core, selector, channels)

	pb, status := csl.ReceiveCycle(0)
	assert.Nil(t, pb)
	assert.Equal(t, StatusDeferred, status)
	assert.Equal(t, channels[1], node.GetValue(RadioParamChannel))
	require.Len(t, selector.updates, 1)
	assert.Equal(t, 1, selector.updates[0].arm)
	assert.Equal(t, 0.0, selector.updates[0].reward)
}
