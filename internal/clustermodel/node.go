package clustermodel

import (
	"math"
	"sync"
	"time"
)

// Sample is one raw counter reading from a storage node. The wire-level
// counter names live only here, at the ingest boundary; everything
// downstream works with the typed Rates/Space records.
type Sample struct {
	// StorageReads/StorageWrites/ProxyReads/ProxyWrites are monotonically
	// increasing counters as reported by the storage daemon.
	StorageReads  uint64
	StorageWrites uint64
	ProxyReads    uint64
	ProxyWrites   uint64

	// LA1 is the 1-minute load average, scaled x100. DU1, when HasDU1 is
	// true, takes priority over LA1.
	LA1    int64
	DU1    int64
	HasDU1 bool

	// Bavail, Bsize, Blocks describe the node's filesystem free space.
	Bavail uint64
	Bsize  uint64
	Blocks uint64
}

// Rates holds the four derived rates: real and max, put and get.
// MaxPut/MaxGet are +Inf when the load average used to derive them was zero;
// min aggregates over couples pick an infinite reading only when every
// member's reading is infinite, so such a node is effectively excluded until
// a non-zero load average arrives.
type Rates struct {
	RealPut float64
	RealGet float64
	MaxPut  float64
	MaxGet  float64
}

// Space holds the two derived space metrics: absolute free kilobytes and
// the free fraction of the filesystem.
type Space struct {
	FreeKB  float64
	FreeRel float64
}

// NodeState is the per-node load model: it remembers the last
// sample and derives rates from the delta to the next one. The zero value is
// not usable; construct with NewNodeState.
type NodeState struct {
	mu sync.Mutex

	addr string

	haveSample bool
	lastSample Sample
	lastTime   time.Time

	rates Rates
	space Space
}

// NewNodeState creates the per-node load tracker for addr. The node is
// considered unsampled until the first Observe call.
func NewNodeState(addr string) *NodeState {
	return &NodeState{addr: addr}
}

// Addr returns the node's network address, which is its identity.
func (n *NodeState) Addr() string {
	return n.addr
}

// Observe feeds a new counter sample taken at "now". The first sample for a
// node always yields zero rates. A non-positive delta-t is rejected;
// callers should discard the sample and retry with a fresh one rather than
// stall the refresh loop.
func (n *NodeState) Observe(now time.Time, sample Sample) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.haveSample {
		n.haveSample = true
		n.lastSample = sample
		n.lastTime = now
		n.rates = Rates{}
		n.space = computeSpace(sample)
		return nil
	}

	dt := now.Sub(n.lastTime).Seconds()
	if dt <= 0 {
		return errDeltaTimeNotPositive
	}

	prev := n.lastSample
	lastRead := prev.StorageReads + prev.ProxyReads
	lastWrite := prev.StorageWrites + prev.ProxyWrites
	curRead := sample.StorageReads + sample.ProxyReads
	curWrite := sample.StorageWrites + sample.ProxyWrites

	// A counter regression means the daemon restarted and reset its
	// counters; treat this tick's delta as zero rather than underflowing.
	var deltaRead, deltaWrite float64
	if curRead >= lastRead && curWrite >= lastWrite {
		deltaRead = float64(curRead - lastRead)
		deltaWrite = float64(curWrite - lastWrite)
	}

	la := loadAverage(sample)

	var rates Rates
	rates.RealGet = deltaRead / dt
	rates.RealPut = deltaWrite / dt
	if la == 0 {
		rates.MaxGet = math.Inf(1)
		rates.MaxPut = math.Inf(1)
	} else {
		rates.MaxGet = rates.RealGet / la
		rates.MaxPut = rates.RealPut / la
	}

	n.rates = rates
	n.space = computeSpace(sample)
	n.lastSample = sample
	n.lastTime = now
	return nil
}

// Rates returns a copy of the node's most recently derived rates.
func (n *NodeState) Rates() Rates {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rates
}

// Space returns a copy of the node's most recently derived space metrics.
func (n *NodeState) Space() Space {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.space
}

func computeSpace(s Sample) Space {
	if s.Blocks == 0 {
		return Space{}
	}
	return Space{
		FreeKB:  float64(s.Bavail) * float64(s.Bsize) / 1024,
		FreeRel: float64(s.Bavail) / float64(s.Blocks),
	}
}

// loadAverage applies the DU1-else-LA1 fallback, scaled down by the x100
// wire encoding.
func loadAverage(s Sample) float64 {
	if s.HasDU1 {
		return float64(s.DU1) / 100
	}
	return float64(s.LA1) / 100
}

// errDeltaTimeNotPositive is returned by Observe when dt <= 0.
var errDeltaTimeNotPositive = deltaTimeErr{}

type deltaTimeErr struct{}

func (deltaTimeErr) Error() string { return "clustermodel: sample delta-t must be positive" }
