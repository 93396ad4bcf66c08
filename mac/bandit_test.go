package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_DUCB_TriesEveryArmFirst(t *testing.T) {
	d := NewDUCB(4, DefaultDUCBGamma, 0.5)
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		arm := d.Propose()
		seen[arm] = true
		d.Update(arm, 0.0)
	}
	assert.Len(t, seen, 4, "every arm must be tried at least once before exploitation begins")
}

func Test_DUCB_PrefersHighRewardArm(t *testing.T) {
	d := NewDUCB(2, DefaultDUCBGamma, 0.1)
	for i := 0; i < 4; i++ {
		d.Propose()
		d.Update(0, 0)
	}
	for i := 0; i < 50; i++ {
		d.Propose()
		d.Update(1, 1.0)
	}
	d.Update(0, 0.0)

	assert.Equal(t, 1, d.Propose(), "the arm with consistently higher reward should be proposed")
}

func Test_SWUCB_TriesEveryArmFirst(t *testing.T) {
	s := NewSWUCB(3, 20, 0.5)
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		arm := s.Propose()
		seen[arm] = true
		s.Update(arm, 0.0)
	}
	assert.Len(t, seen, 3)
}

func Test_SWUCB_ForgetsOutsideWindow(t *testing.T) {
	s := NewSWUCB(2, 5, 0.1)
	for i := 0; i < 5; i++ {
		s.Update(0, 1.0)
	}
	for i := 0; i < 5; i++ {
		s.Update(1, 0.0)
	}
	// Arm 0's history has now fully scrolled out of the window; only arm 1's
	// (all-zero) observations remain within it.
	assert.Len(t, s.history, 5)
	assert.Equal(t, 1, len(uniqueArms(s.history)))
	assert.Equal(t, 1, s.history[0], "only arm 1's observations should remain inside the sliding window")
}

func uniqueArms(arms []int) map[int]bool {
	m := map[int]bool{}
	for _, a := range arms {
		m[a] = true
	}
	return m
}
