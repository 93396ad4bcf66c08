package mac

/*------------------------------------------------------------------
 *
 * Purpose: Fixed-size neighbor table: permanent and tentative slots keyed
 *		by link address.
 *
 * Description: Grounded on original_source's os/services/akes/akes-nbr.c.
 *		Per spec section 9's design note on cyclic references, the
 *		table owns an arena of entries indexed by a small integer
 *		(neighborID); AKES and the MAC only ever hold a
 *		*NeighborEntry obtained from the table, never a bare
 *		address, avoiding any reference-counting scheme.
 *
 *------------------------------------------------------------------*/

import "sync"

// TentativeKind distinguishes the two possible contents of a tentative
// slot's secret (spec section 9's tagged sum type).
type TentativeKind int

const (
	TentativeChallenge TentativeKind = iota
	TentativeKey
)

// TentativeSecret is a tagged union: either an 8-byte challenge (the state
// between sending/receiving HELLO and HELLOACK) or a 16-byte tentative
// pairwise key (the state between HELLOACK and ACK).
type TentativeSecret struct {
	Kind      TentativeKind
	Challenge [8]byte
	Key       [16]byte
}

// TentativeNeighbor is the metadata kept for a neighbor mid-handshake (spec
// section 3).
type TentativeNeighbor struct {
	Secret                  TentativeSecret
	WaitTimerDeadline       RtimerClock
	HelloAckRetransmissions int
	IsAwaitingHelloAck      bool
}

// PermanentNeighbor is the metadata kept for a fully-authenticated neighbor
// (spec section 3).
type PermanentNeighbor struct {
	PairwiseKey    [16]byte
	HasPairwiseKey bool
	GroupKey       [16]byte
	HasGroupKey    bool

	Phase  Phase
	Replay ReplayInfo

	ProlongationTime RtimerClock // neighbor is dropped once now > this

	HelloAckChallengePrefix []byte
	SeqNo                   uint8

	SentAuthenticHello bool
	IsReceivingUpdate  bool
}

// NeighborEntry is one arena slot: a link address with an optional
// permanent and/or tentative neighbor hanging off it (spec section 3:
// "Ownership: a neighbor entry exclusively owns its key material and phase
// state").
type NeighborEntry struct {
	id        uint8
	Addr      LinkAddr
	Permanent *PermanentNeighbor
	Tentative *TentativeNeighbor
}

// ID returns this entry's small arena index, suitable as a compact
// cross-reference in place of the entry pointer itself.
func (e *NeighborEntry) ID() uint8 { return e.id }

// NeighborTable is the single process-wide neighbor store (spec section 3).
type NeighborTable struct {
	mu               sync.RWMutex
	entries          []*NeighborEntry // indexed by arena slot; nil = free
	maxEntries       int
	maxTentatives    int
	tentativeInUse   int
}

// NewNeighborTable builds an empty table with the given capacities (spec
// section 6: AKES_NBR_MAX, AKES_NBR_MAX_TENTATIVES).
func NewNeighborTable(maxEntries, maxTentatives int) *NeighborTable {
	return &NeighborTable{
		entries:       make([]*NeighborEntry, maxEntries),
		maxEntries:    maxEntries,
		maxTentatives: maxTentatives,
	}
}

// CanQueryAsynchronously reports whether a read (e.g. from interrupt
// context, per spec section 5) may proceed without risking a data race with
// a concurrent mutator. It never blocks.
func (t *NeighborTable) CanQueryAsynchronously() bool {
	if !t.mu.TryRLock() {
		return false
	}
	t.mu.RUnlock()
	return true
}

// GetEntry returns the entry for addr, or nil if none exists.
func (t *NeighborTable) GetEntry(addr LinkAddr) *NeighborEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e != nil && e.Addr == addr {
			return e
		}
	}
	return nil
}

// GetSenderEntry looks up the entry for a received packetbuf's sender.
func (t *NeighborTable) GetSenderEntry(pb *Packetbuf) *NeighborEntry {
	return t.GetEntry(pb.Sender)
}

// GetReceiverEntry looks up the entry for an outgoing packetbuf's receiver.
func (t *NeighborTable) GetReceiverEntry(pb *Packetbuf) *NeighborEntry {
	return t.GetEntry(pb.Receiver)
}

// New allocates (or reuses) an entry for addr. If asTentative is true, it
// also fails with StatusBucketFull-shaped StatusQueueFull when the
// tentative-slot budget (AKES_NBR_MAX_TENTATIVES) is exhausted, independent
// of the main entry-count budget.
func (t *NeighborTable) New(addr LinkAddr, asTentative bool) (*NeighborEntry, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e != nil && e.Addr == addr {
			if asTentative && e.Tentative == nil {
				if t.tentativeInUse >= t.maxTentatives {
					return nil, StatusQueueFull
				}
				e.Tentative = &TentativeNeighbor{}
				t.tentativeInUse++
			}
			return e, StatusOK
		}
	}

	if asTentative && t.tentativeInUse >= t.maxTentatives {
		return nil, StatusQueueFull
	}

	for i, e := range t.entries {
		if e == nil {
			entry := &NeighborEntry{id: uint8(i), Addr: addr}
			if asTentative {
				entry.Tentative = &TentativeNeighbor{}
				t.tentativeInUse++
			}
			t.entries[i] = entry
			return entry, StatusOK
		}
	}
	return nil, StatusQueueFull
}

// DeleteTentative releases just the tentative slot of entry, freeing its
// budget; the entry itself (and any permanent slot) is untouched.
func (t *NeighborTable) DeleteTentative(entry *NeighborEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry.Tentative != nil {
		entry.Tentative = nil
		t.tentativeInUse--
	}
}

// Delete removes entry from the table entirely, zeroing its key material
// first (spec section 3: "deletion zeroes keys and releases the slot").
func (t *NeighborTable) Delete(entry *NeighborEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e == entry {
			if e.Tentative != nil {
				e.Tentative.Secret = TentativeSecret{}
				t.tentativeInUse--
			}
			if e.Permanent != nil {
				e.Permanent.PairwiseKey = [16]byte{}
				e.Permanent.GroupKey = [16]byte{}
			}
			t.entries[i] = nil
			return
		}
	}
}

// Head returns the first occupied arena slot, for iteration (spec section
// 4.5: head/next).
func (t *NeighborTable) Head() *NeighborEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e != nil {
			return e
		}
	}
	return nil
}

// Next returns the next occupied arena slot after entry, or nil.
func (t *NeighborTable) Next(entry *NeighborEntry) *NeighborEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	found := false
	for _, e := range t.entries {
		if e == nil {
			continue
		}
		if found {
			return e
		}
		if e == entry {
			found = true
		}
	}
	return nil
}

// Count returns the number of occupied entries for which pred returns true.
func (t *NeighborTable) Count(pred func(*NeighborEntry) bool) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e != nil && pred(e) {
			n++
		}
	}
	return n
}

// PermanentCount returns the number of permanent neighbors.
func (t *NeighborTable) PermanentCount() int {
	return t.Count(func(e *NeighborEntry) bool { return e.Permanent != nil })
}

// Expire sweeps the table, dropping tentative slots whose wait timer has
// passed now and permanent neighbors whose prolongation time has passed
// now (spec section 4.6 "Expiry").
func (t *NeighborTable) Expire(now RtimerClock) {
	t.mu.Lock()
	var toDelete []*NeighborEntry
	for _, e := range t.entries {
		if e == nil {
			continue
		}
		if e.Tentative != nil && now >= e.Tentative.WaitTimerDeadline {
			e.Tentative = nil
			t.tentativeInUse--
		}
		if e.Permanent != nil && now > e.Permanent.ProlongationTime {
			e.Permanent = nil
		}
		if e.Permanent == nil && e.Tentative == nil {
			toDelete = append(toDelete, e)
		}
	}
	t.mu.Unlock()

	for _, e := range toDelete {
		t.Delete(e)
	}
}
