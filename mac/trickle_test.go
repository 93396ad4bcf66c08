package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Trickle_StartSchedulesFirstFiring(t *testing.T) {
	tr := NewTrickle(10, 3)
	tr.Start(0)
	assert.False(t, tr.Due(5))
	assert.True(t, tr.Due(10))
}

func Test_Trickle_DoublesOnEachFiring(t *testing.T) {
	tr := NewTrickle(10, 3)
	tr.Start(0)

	assert.True(t, tr.Due(10))
	assert.True(t, tr.Fired(10))
	assert.Equal(t, RtimerClock(30), tr.NextFireTime()) // 10 + 20

	assert.True(t, tr.Fired(30))
	assert.Equal(t, RtimerClock(70), tr.NextFireTime()) // 30 + 40

	assert.True(t, tr.Fired(70))
	assert.Equal(t, RtimerClock(150), tr.NextFireTime()) // 70 + 80 (3rd doubling = max)
}

func Test_Trickle_StopsAtMaxDoublings(t *testing.T) {
	tr := NewTrickle(10, 2) // max interval = 40
	tr.Start(0)

	tr.Fired(10)  // current=20
	tr.Fired(30)  // current=40 (clamped to max)
	assert.False(t, tr.Fired(70), "timer already at max interval must stop rather than fire again")
	assert.False(t, tr.Running())
}

func Test_Trickle_ResetCollapsesToIMin(t *testing.T) {
	tr := NewTrickle(10, 3)
	tr.Start(0)
	tr.Fired(10) // current=20

	tr.Reset(15)
	assert.Equal(t, RtimerClock(25), tr.NextFireTime())
	assert.True(t, tr.Running())
}

func Test_Trickle_ExplicitStop(t *testing.T) {
	tr := NewTrickle(10, 3)
	tr.Start(0)
	tr.Stop()
	assert.False(t, tr.Running())
	assert.False(t, tr.Due(100))
}
