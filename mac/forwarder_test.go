package mac

import (
	"testing"

	"github.com/nodewake/dosmac/internal/simradio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_RoundRobinForwarder_Cycles(t *testing.T) {
	f := &RoundRobinForwarder{}
	a, b, c := ShortAddr(0, 1), ShortAddr(0, 2), ShortAddr(0, 3)
	candidates := []LinkAddr{a, b, c}

	got1, ok := f.Select(candidates)
	require.True(t, ok)
	got2, _ := f.Select(candidates)
	got3, _ := f.Select(candidates)
	got4, _ := f.Select(candidates)

	assert.Equal(t, []LinkAddr{a, b, c, a}, []LinkAddr{got1, got2, got3, got4})
}

func Test_RoundRobinForwarder_EmptyCandidates(t *testing.T) {
	f := &RoundRobinForwarder{}
	_, ok := f.Select(nil)
	assert.False(t, ok)
}

func Test_ETXForwarder_PrefersLowerETX(t *testing.T) {
	f := NewETXForwarder()
	a, b := ShortAddr(0, 1), ShortAddr(0, 2)

	for i := 0; i < 10; i++ {
		f.Record(a, StatusNoAck)
		f.Record(b, StatusOK)
	}

	got, ok := f.Select([]LinkAddr{a, b})
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func Test_MACCore_TransmitToForwarder_PicksAmongCandidates(t *testing.T) {
	medium := simradio.NewMedium()
	nodeA := medium.NewNode("A")

	addrA := ShortAddr(0, 1)
	addrB := ShortAddr(0, 2)
	addrC := ShortAddr(0, 3)
	var key [16]byte

	core := newTestMACCore(t, nodeA, addrA, key)
	fwd := NewETXForwarder()
	core.Forwarder = fwd

	peerB, status := core.NeighborTable.New(addrB, false)
	require.Equal(t, StatusOK, status)
	peerB.Permanent = &PermanentNeighbor{PairwiseKey: key, HasPairwiseKey: true}

	peerC, status := core.NeighborTable.New(addrC, false)
	require.Equal(t, StatusOK, status)
	peerC.Permanent = &PermanentNeighbor{PairwiseKey: key, HasPairwiseKey: true}

	medium.Jam(0)
	defer medium.Unjam(0)

	pb := &Packetbuf{FrameType: FrameUnicastData, Sender: addrA, Receiver: addrB}
	entry, status := core.Queue.Add(pb, func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)
	entry.Forwarders = []LinkAddr{addrB, addrC}

	got := core.TransmitToForwarder(entry, 0)
	assert.Equal(t, StatusCollision, got)
	// Both candidates start at ETX 1.0, so B (listed first) is picked and
	// its failed attempt is recorded against it alone.
	assert.Greater(t, fwd.estimate(addrB), 1.0)
	assert.Equal(t, 1.0, fwd.estimate(addrC))
}

func Test_MACCore_TransmitToForwarder_NoForwardersFallsBackToReceiver(t *testing.T) {
	medium := simradio.NewMedium()
	nodeA := medium.NewNode("A")
	addrA := ShortAddr(0, 1)
	addrB := ShortAddr(0, 2)
	var key [16]byte

	core := newTestMACCore(t, nodeA, addrA, key)
	peerB, status := core.NeighborTable.New(addrB, false)
	require.Equal(t, StatusOK, status)
	peerB.Permanent = &PermanentNeighbor{PairwiseKey: key, HasPairwiseKey: true}

	medium.Jam(0)
	defer medium.Unjam(0)

	pb := &Packetbuf{FrameType: FrameUnicastData, Sender: addrA, Receiver: addrB}
	entry, status := core.Queue.Add(pb, func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)

	got := core.TransmitToForwarder(entry, 0)
	assert.Equal(t, StatusCollision, got)
}
