package mac

/*------------------------------------------------------------------
 *
 * Purpose: CSL (channel-hopping) variant of the duty-cycled core.
 *
 * Description: Grounded on original_source's os/net/mac/csl/csl.c, which
 *		reuses ContikiMAC's wake-up-sequence shape but additionally
 *		picks a channel per attempt via one of csl-synchronizer-
 *		ducb.c/csl-synchronizer-splo.c's bandits (bandit.go). CSLCore
 *		wraps MACCore rather than duplicating its transmission/
 *		reception logic, consulting Selector only around each call
 *		(spec section 4.9 "Channel selection (hopping only)").
 *
 *------------------------------------------------------------------*/

// CSLCore adds channel-hopping to MACCore: every attempt first asks
// Selector which channel (by index into Channels) to use, tunes the radio,
// and afterward feeds the outcome back as a reward observation.
type CSLCore struct {
	*MACCore
	Selector ChannelSelector
	Channels []int // physical channel numbers indexed by Selector's arm
}

// NewCSLCore builds a channel-hopping core over an already-constructed
// MACCore.
func NewCSLCore(core *MACCore, selector ChannelSelector, channels []int) *CSLCore {
	return &CSLCore{MACCore: core, Selector: selector, Channels: channels}
}

func (c *CSLCore) reward(status Status) float64 {
	if status == StatusOK {
		return 1.0
	}
	return 0.0
}

// TransmitUnicast picks a channel via Selector before delegating to
// MACCore.TransmitUnicast, then records the outcome as that channel's
// reward observation.
func (c *CSLCore) TransmitUnicast(entry *QueueEntry, peer *NeighborEntry, now RtimerClock) Status {
	arm := c.Selector.Propose()
	c.Radio.SetChannel(c.Channels[arm])

	status := c.MACCore.TransmitUnicast(entry, peer, now)
	c.Selector.Update(arm, c.reward(status))
	return status
}

// TransmitBroadcast picks a channel via Selector before delegating to
// MACCore.TransmitBroadcast.
func (c *CSLCore) TransmitBroadcast(pb *Packetbuf, now RtimerClock) Status {
	arm := c.Selector.Propose()
	c.Radio.SetChannel(c.Channels[arm])

	status := c.MACCore.TransmitBroadcast(pb, now)
	c.Selector.Update(arm, c.reward(status))
	return status
}

// ReceiveCycle picks a channel to sample via Selector before delegating to
// MACCore.ReceiveCycle, then records whether that channel yielded a frame.
func (c *CSLCore) ReceiveCycle(now RtimerClock) (*Packetbuf, Status) {
	arm := c.Selector.Propose()
	c.Radio.SetChannel(c.Channels[arm])

	pb, status := c.MACCore.ReceiveCycle(now)
	c.Selector.Update(arm, c.reward(status))
	return pb, status
}
