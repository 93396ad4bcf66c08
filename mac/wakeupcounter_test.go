package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_WakeUpCounter_NowAtBase(t *testing.T) {
	w := NewWakeUpCounter(4096, 1000)
	assert.Equal(t, uint32(0), w.Now(1000))
	assert.Equal(t, uint32(0), w.Now(1000+4095))
	assert.Equal(t, uint32(1), w.Now(1000+4096))
}

func Test_WakeUpCounter_NonPowerOfTwoPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewWakeUpCounter(100, 0)
	})
}

func Test_WakeUpCounter_ShiftToFuture(t *testing.T) {
	w := NewWakeUpCounter(4096, 0)

	// t already >= now and congruent.
	assert.Equal(t, RtimerClock(4096), w.ShiftToFuture(4096, 4096))

	// t in the past: project forward to the next congruent instant.
	got := w.ShiftToFuture(100, 5000)
	assert.GreaterOrEqual(t, int64(got), int64(5000))
	assert.Equal(t, int64(100)%4096, int64(got)%4096)
}

func Test_WakeUpCounter_ShiftToFuture_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		interval := RtimerClock(1 << rapid.IntRange(1, 20).Draw(rt, "log2interval"))
		w := NewWakeUpCounter(interval, 0)

		t := RtimerClock(rapid.Int64Range(-1_000_000, 1_000_000).Draw(rt, "t"))
		now := RtimerClock(rapid.Int64Range(0, 1_000_000).Draw(rt, "now"))

		got := w.ShiftToFuture(t, now)

		require.GreaterOrEqual(rt, int64(got), int64(now))
		require.Equal(rt, ((int64(t)%int64(interval))+int64(interval))%int64(interval),
			((int64(got)%int64(interval))+int64(interval))%int64(interval))
	})
}

func Test_WakeUpCounter_RoundIncrements(t *testing.T) {
	w := NewWakeUpCounter(128, 0)
	assert.Equal(t, int64(0), w.RoundIncrements(63))
	assert.Equal(t, int64(1), w.RoundIncrements(64))
	assert.Equal(t, int64(1), w.RoundIncrements(128))
	assert.Equal(t, int64(2), w.RoundIncrements(192))
}

func Test_WakeUpCounter_MarshalRoundTrip(t *testing.T) {
	w := NewWakeUpCounter(4096, 0)
	w.Advance(4096 * 7)

	got, err := UnmarshalWakeUpCounterBinary(w.MarshalBinary())
	require.NoError(t, err)
	assert.Equal(t, w.Now(4096*7), got)
}

func Test_WakeUpCounter_Advance_Monotonic(t *testing.T) {
	w := NewWakeUpCounter(4096, 0)
	var last uint32
	for i := 0; i < 50; i++ {
		w.Advance(RtimerClock(i) * 4096)
		now := w.Now(RtimerClock(i) * 4096)
		assert.GreaterOrEqual(t, now, last)
		last = now
	}
}
