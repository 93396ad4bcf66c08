package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(receiver LinkAddr, ft FrameType) *Packetbuf {
	return &Packetbuf{Receiver: receiver, FrameType: ft, Payload: []byte("x")}
}

func Test_FrameQueue_AddPickOnce(t *testing.T) {
	q := NewFrameQueue(4, DefaultCSMAConfig(10))
	dst := ShortAddr(0, 1)
	entry, status := q.Add(newTestEntry(dst, FrameUnicastData), func(Status, int, any) {}, nil)
	require.Equal(t, StatusOK, status)

	picked := q.Pick(0)
	assert.Same(t, entry, picked)

	// A second pick before the first transmission resolves must not return
	// the same receiver's entry again (spec: at most one outstanding
	// transmission per receiver).
	assert.Nil(t, q.Pick(0))
}

func Test_FrameQueue_QueueFull(t *testing.T) {
	q := NewFrameQueue(1, DefaultCSMAConfig(10))
	_, s1 := q.Add(newTestEntry(ShortAddr(0, 1), FrameUnicastData), func(Status, int, any) {}, nil)
	_, s2 := q.Add(newTestEntry(ShortAddr(0, 2), FrameUnicastData), func(Status, int, any) {}, nil)
	assert.Equal(t, StatusOK, s1)
	assert.Equal(t, StatusQueueFull, s2)
}

func Test_FrameQueue_SuccessFiresCallbackAndRemoves(t *testing.T) {
	q := NewFrameQueue(4, DefaultCSMAConfig(10))
	var gotStatus Status
	var gotTransmissions int
	entry, _ := q.Add(newTestEntry(ShortAddr(0, 1), FrameUnicastData), func(s Status, n int, _ any) {
		gotStatus, gotTransmissions = s, n
	}, nil)

	q.Pick(0)
	q.OnTransmitted(entry, StatusOK, 0)

	assert.Equal(t, StatusOK, gotStatus)
	assert.Equal(t, 1, gotTransmissions)
	assert.Equal(t, 0, q.Len())
}

func Test_FrameQueue_CollisionBackoffBound(t *testing.T) {
	cfg := DefaultCSMAConfig(1)
	q := NewFrameQueue(4, cfg)
	var finalStatus Status
	entry, _ := q.Add(newTestEntry(ShortAddr(0, 1), FrameUnicastData), func(s Status, _ int, _ any) {
		finalStatus = s
	}, nil)

	collisions := 0
	for {
		// Each attempt happens 100000 ticks after the previous one, far past
		// any backoff OnTransmitted can schedule, so backoff never blocks the test.
		now := RtimerClock(100000 * (collisions + 1))
		picked := q.Pick(now)
		if picked == nil {
			break
		}
		collisions++
		q.OnTransmitted(picked, StatusCollision, now)
		if collisions > cfg.MaxCSMABackoffs+1 {
			t.Fatal("collision retries exceeded MaxCSMABackoffs")
		}
	}

	assert.LessOrEqual(t, collisions, cfg.MaxCSMABackoffs+1)
	assert.NotEqual(t, StatusOK, finalStatus)
}

func Test_FrameQueue_NoAckRetryBound(t *testing.T) {
	cfg := DefaultCSMAConfig(1)
	q := NewFrameQueue(4, cfg)
	var finalStatus Status
	var finalTransmissions int
	entry, _ := q.Add(newTestEntry(ShortAddr(0, 1), FrameUnicastData), func(s Status, n int, _ any) {
		finalStatus, finalTransmissions = s, n
	}, nil)

	for i := 0; i < cfg.MaxFrameRetries+2; i++ {
		picked := q.Pick(100000 * RtimerClock(i+1))
		if picked == nil {
			continue
		}
		q.OnTransmitted(picked, StatusNoAck, 100000*RtimerClock(i+1))
	}

	assert.Equal(t, StatusNoAck, finalStatus)
	assert.LessOrEqual(t, finalTransmissions, cfg.MaxFrameRetries)
	_ = entry
}

func Test_FrameQueue_Burst_SkipsHandshakeFrames(t *testing.T) {
	q := NewFrameQueue(4, DefaultCSMAConfig(10))
	dst := ShortAddr(0, 1)

	first, _ := q.Add(newTestEntry(dst, FrameUnicastData), func(Status, int, any) {}, nil)
	_, _ = q.Add(newTestEntry(dst, FrameHelloAck), func(Status, int, any) {}, nil)
	data2, _ := q.Add(newTestEntry(dst, FrameUnicastData), func(Status, int, any) {}, nil)

	burst := q.Burst(first)
	assert.Same(t, data2, burst, "burst must skip the handshake frame and return the next data frame")
}

func Test_FrameQueue_Postpone(t *testing.T) {
	q := NewFrameQueue(4, DefaultCSMAConfig(10))
	dst := ShortAddr(0, 1)
	q.Add(newTestEntry(dst, FrameUnicastData), func(Status, int, any) {}, nil)

	q.Postpone(newTestEntry(dst, FrameUnicastData), 500)
	assert.Nil(t, q.Pick(100))
	assert.NotNil(t, q.Pick(500))
}
