package mac

/*------------------------------------------------------------------
 *
 * Purpose: Multi-armed bandit channel selection for CSL's channel-hopping
 *		variant.
 *
 * Description: Grounded on original_source's
 *		os/services/akes/csl-synchronizer-ducb.c (discounted UCB) and
 *		the sliding-window variant in the same family. Both
 *		algorithms track one reward estimate per channel ("arm") and
 *		propose the arm with the highest upper confidence bound; they
 *		differ only in how old observations are forgotten.
 *
 *------------------------------------------------------------------*/

import (
	"math"
	"sync"
)

// ChannelSelector proposes a channel to try next and learns from the
// observed outcome (spec section 4.9 "Channel selection (hopping only)").
type ChannelSelector interface {
	// Propose returns the arm (channel index, 0..ChannelsCount-1) with the
	// highest estimated value.
	Propose() int
	// Update records an observation of reward (1.0 = successful exchange
	// on that channel, 0.0 = not) for arm.
	Update(arm int, reward float64)
}

// DUCB is a discounted-UCB channel selector: a fixed discount factor gamma
// downweights old observations exponentially, so the estimate tracks a
// slowly drifting channel quality (spec section 4.9: "D-UCB with
// gamma = 1 - 2^-10, xi in exploration term").
type DUCB struct {
	mu sync.Mutex

	arms  int
	gamma float64
	xi    float64

	discountedCount []float64
	discountedSum   []float64
	totalDiscounted float64
}

// DefaultDUCBGamma is the spec section 4.9 default: gamma = 1 - 2^-10.
const DefaultDUCBGamma = 1 - 1.0/1024

// NewDUCB builds a discounted-UCB selector over the given number of arms.
func NewDUCB(arms int, gamma, xi float64) *DUCB {
	return &DUCB{
		arms:            arms,
		gamma:           gamma,
		xi:              xi,
		discountedCount: make([]float64, arms),
		discountedSum:   make([]float64, arms),
	}
}

// Propose returns the arm with the highest discounted-UCB score; arms never
// yet tried are proposed first (infinite bound), in ascending order.
func (d *DUCB) Propose() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < d.arms; i++ {
		if d.discountedCount[i] == 0 {
			return i
		}
	}

	best, bestScore := 0, math.Inf(-1)
	for i := 0; i < d.arms; i++ {
		mean := d.discountedSum[i] / d.discountedCount[i]
		bonus := math.Sqrt(d.xi * math.Log(d.totalDiscounted) / d.discountedCount[i])
		score := mean + bonus
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// Update discounts all arms' accumulators by gamma, then adds reward to arm.
func (d *DUCB) Update(arm int, reward float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.totalDiscounted *= d.gamma
	for i := range d.discountedCount {
		d.discountedCount[i] *= d.gamma
		d.discountedSum[i] *= d.gamma
	}

	d.discountedCount[arm]++
	d.discountedSum[arm] += reward
	d.totalDiscounted++
}

// SWUCB is a sliding-window UCB channel selector: only the last
// windowSize observations (across all arms) count toward each arm's
// estimate, an alternative to D-UCB's exponential discount (spec section
// 4.9: "or SW-UCB with a sliding window").
type SWUCB struct {
	mu sync.Mutex

	arms       int
	windowSize int
	xi         float64

	history []int // arm index of each observation, oldest first
	rewards []float64
}

func NewSWUCB(arms, windowSize int, xi float64) *SWUCB {
	return &SWUCB{arms: arms, windowSize: windowSize, xi: xi}
}

func (s *SWUCB) Propose() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make([]float64, s.arms)
	sums := make([]float64, s.arms)
	for i, arm := range s.history {
		counts[arm]++
		sums[arm] += s.rewards[i]
	}

	for i := 0; i < s.arms; i++ {
		if counts[i] == 0 {
			return i
		}
	}

	total := float64(len(s.history))
	best, bestScore := 0, math.Inf(-1)
	for i := 0; i < s.arms; i++ {
		mean := sums[i] / counts[i]
		bonus := math.Sqrt(s.xi * math.Log(total) / counts[i])
		score := mean + bonus
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (s *SWUCB) Update(arm int, reward float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, arm)
	s.rewards = append(s.rewards, reward)
	if len(s.history) > s.windowSize {
		drop := len(s.history) - s.windowSize
		s.history = s.history[drop:]
		s.rewards = s.rewards[drop:]
	}
}
