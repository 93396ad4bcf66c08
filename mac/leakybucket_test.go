package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_LeakyBucket_AdmitsUpToCapacity(t *testing.T) {
	b := NewLeakyBucket(3, 100)
	assert.True(t, b.Admit(0))
	assert.True(t, b.Admit(0))
	assert.True(t, b.Admit(0))
	assert.False(t, b.Admit(0), "fourth admission before any leak must be rejected")
}

func Test_LeakyBucket_LeaksOverTime(t *testing.T) {
	b := NewLeakyBucket(1, 100)
	assert.True(t, b.Admit(0))
	assert.False(t, b.Admit(50), "bucket should still be full before a leak period elapses")
	assert.True(t, b.Admit(100), "bucket should have leaked by one unit after a full period")
}

func Test_LeakyBucket_NeverExceedsCapacity_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(rt, "capacity")
		period := RtimerClock(rapid.IntRange(1, 50).Draw(rt, "period"))
		b := NewLeakyBucket(capacity, period)

		now := RtimerClock(0)
		for i := 0; i < 200; i++ {
			now += RtimerClock(rapid.IntRange(0, 10).Draw(rt, "step"))
			b.Admit(now)
			if b.Level(now) > capacity {
				rt.Fatalf("bucket level %d exceeded capacity %d", b.Level(now), capacity)
			}
		}
	})
}
