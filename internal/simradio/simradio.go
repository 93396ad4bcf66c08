// Package simradio is an in-memory stand-in for mac.RadioDriver, grounded on
// the teacher's src/nettnc.go pattern (each simulated channel is a shared
// medium every attached node listens on). Reception blocks on a channel
// rather than polling, so a pair of goroutines driving mac.MACCore's
// transmit and receive paths concurrently rendezvous the way two real
// radios would; Timeout bounds how long a read waits before reporting
// mac.StatusTimeout.
package simradio

import (
	"sync"
	"time"

	"github.com/nodewake/dosmac/mac"
)

// Medium is a shared broadcast domain: every Node tuned to the same channel
// sees every other Node's transmissions.
type Medium struct {
	mu     sync.Mutex
	nodes  []*Node
	jammed map[int]bool // channels an explicit Jam has forced busy, for collision-path tests
}

// NewMedium builds an empty shared medium.
func NewMedium() *Medium {
	return &Medium{jammed: map[int]bool{}}
}

// Jam marks channel busy until Unjam is called, simulating a third party's
// transmission for collision-path tests.
func (m *Medium) Jam(channel int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jammed[channel] = true
}

// Unjam clears a previous Jam.
func (m *Medium) Unjam(channel int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jammed, channel)
}

// NewNode attaches a new radio to the medium, initially tuned to channel 0,
// with a 2-second read timeout and a 30ms CCA window.
func (m *Medium) NewNode(name string) *Node {
	n := &Node{
		name:      name,
		medium:    m,
		inbox:     make(chan []byte, 64),
		Timeout:   2 * time.Second,
		CCAWindow: 30 * time.Millisecond,
	}
	m.mu.Lock()
	m.nodes = append(m.nodes, n)
	m.mu.Unlock()
	return n
}

func (m *Medium) channelBusy(channel int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jammed[channel]
}

// deliver pushes frame to every other node currently on and tuned to
// channel; a node whose inbox is momentarily full drops the frame rather
// than block the sender, the same way a real receiver drops an overlapping
// transmission.
func (m *Medium) deliver(from *Node, channel int, frame []byte) {
	m.mu.Lock()
	nodes := append([]*Node(nil), m.nodes...)
	m.mu.Unlock()

	for _, n := range nodes {
		if n == from {
			continue
		}
		n.mu.Lock()
		on := n.on && n.channel == channel
		n.mu.Unlock()
		if !on {
			continue
		}
		cp := append([]byte(nil), frame...)
		select {
		case n.inbox <- cp:
		default:
		}
	}
}

// Node is one simulated radio, implementing mac.RadioDriver.
type Node struct {
	name   string
	medium *Medium

	// Timeout bounds ReadPhyHeader's wait for an incoming frame.
	Timeout time.Duration
	// CCAWindow bounds how long CCA polls for activity before reporting the
	// channel clear. Real CCA samples RSSI over a handful of symbol periods
	// (microseconds); this is a test-harness accommodation standing in for
	// that window, since this package has no simulated clock of its own.
	CCAWindow time.Duration

	mu      sync.Mutex
	on      bool
	channel int
	txPower int

	txBuf  []byte
	seqBuf [][]byte

	inbox   chan []byte
	pending []byte
}

// On powers the receiver up so deliver() will queue frames addressed to it.
func (n *Node) On() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.on = true
}

// Off powers the radio down, discarding whatever frame was most recently
// exposed to ReadPayload.
func (n *Node) Off() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.on = false
	n.pending = nil
}

// CCA polls for up to CCAWindow, reporting the channel busy if an explicit
// Medium.Jam is active or a frame has arrived in this node's inbox (meaning
// some other node is mid-transmission); otherwise it reports clear once the
// window elapses.
func (n *Node) CCA() bool {
	n.mu.Lock()
	channel := n.channel
	window := n.CCAWindow
	n.mu.Unlock()

	deadline := time.After(window)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if n.medium.channelBusy(channel) || len(n.inbox) > 0 {
			return false
		}
		select {
		case <-deadline:
			return true
		case <-ticker.C:
		}
	}
}

func (n *Node) Prepare(buf []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txBuf = append([]byte(nil), buf...)
	return nil
}

func (n *Node) Transmit(withAck bool) mac.Status {
	n.mu.Lock()
	channel := n.channel
	buf := n.txBuf
	n.mu.Unlock()
	n.medium.deliver(n, channel, buf)
	return mac.StatusOK
}

func (n *Node) PrepareSequence() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seqBuf = nil
}

func (n *Node) AppendToSequence(frame []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seqBuf = append(n.seqBuf, append([]byte(nil), frame...))
	return nil
}

func (n *Node) TransmitSequence() mac.Status {
	n.mu.Lock()
	channel := n.channel
	frames := n.seqBuf
	n.mu.Unlock()
	for _, f := range frames {
		n.medium.deliver(n, channel, f)
	}
	return mac.StatusOK
}

func (n *Node) FinishSequence() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seqBuf = nil
}

// ReadPhyHeader blocks until a frame arrives (or Timeout elapses), reporting
// its length; the bytes themselves become available to ReadPayload.
func (n *Node) ReadPhyHeader() (int, error) {
	select {
	case buf := <-n.inbox:
		n.mu.Lock()
		n.pending = buf
		n.mu.Unlock()
		return len(buf), nil
	case <-time.After(n.Timeout):
		return 0, mac.StatusTimeout
	}
}

// ReadPayload returns up to count bytes of the frame ReadPhyHeader most
// recently exposed.
func (n *Node) ReadPayload(count int) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		return nil, mac.StatusTimeout
	}
	if count > len(n.pending) {
		count = len(n.pending)
	}
	return append([]byte(nil), n.pending[:count]...), nil
}

func (n *Node) SetValue(param mac.RadioParam, v int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch param {
	case mac.RadioParamChannel:
		n.channel = v
	case mac.RadioParamTxPower:
		n.txPower = v
	}
}

func (n *Node) GetValue(param mac.RadioParam) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch param {
	case mac.RadioParamChannel:
		return n.channel
	case mac.RadioParamTxPower:
		return n.txPower
	default:
		return 0
	}
}

func (n *Node) SetChannel(channel int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channel = channel
}
