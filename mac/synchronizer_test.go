package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_BroadcastSync_CoversFullInterval(t *testing.T) {
	s := &BroadcastSync{Config: SyncConfig{WakeUpCounterInterval: 1024, ChannelsCount: 1}}
	wc := NewWakeUpCounter(1024, 0)
	seqStart, payloadStart, frames := s.BroadcastSchedule(wc, 100, 10)

	assert.Equal(t, RtimerClock(100), seqStart)
	assert.Greater(t, payloadStart, seqStart)
	assert.Greater(t, frames, 0)
}

func Test_BroadcastSync_ScalesWithChannelCount(t *testing.T) {
	single := &BroadcastSync{Config: SyncConfig{WakeUpCounterInterval: 1024, ChannelsCount: 1}}
	hopping := &BroadcastSync{Config: SyncConfig{WakeUpCounterInterval: 1024, ChannelsCount: 4}}
	wc := NewWakeUpCounter(1024, 0)

	_, p1, _ := single.BroadcastSchedule(wc, 0, 10)
	_, p2, _ := hopping.BroadcastSchedule(wc, 0, 10)
	assert.Greater(t, p2, p1, "a hopping broadcast must cover W*channels, a longer span than plain W")
}

func Test_UnicastSync_NeverSchedulesInThePast(t *testing.T) {
	s := &UnicastSync{Config: SyncConfig{ClockTolerancePPM: 50, GuardTime: 5, TicksPerSecond: 32768}}
	wc := NewWakeUpCounter(1024, 0)
	phase := &Phase{T: 0}

	seqStart, frames := s.UnicastSchedule(wc, phase, 100, 10)
	assert.GreaterOrEqual(t, seqStart, RtimerClock(100))
	assert.GreaterOrEqual(t, frames, 2)
}

func Test_UnicastSync_UncertaintyGrowsWithElapsedTime(t *testing.T) {
	s := &UnicastSync{Config: SyncConfig{ClockTolerancePPM: 1000, GuardTime: 0, TicksPerSecond: 1000}}
	wc := NewWakeUpCounter(1024, 0)
	phase := &Phase{T: 0}

	_, framesSoon := s.UnicastSchedule(wc, phase, 10, 1)
	_, framesLater := s.UnicastSchedule(wc, phase, 100000, 1)
	assert.GreaterOrEqual(t, framesLater, framesSoon, "more elapsed time without sync should never need fewer wake-up frames")
}
