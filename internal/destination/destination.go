package destination

import (
	"sync"
	"sync/atomic"

	"github.com/firewood/mcrouter/internal/proto"
)

// State is the connection-level health classification of a destination as
// seen by one shard.
type State int

const (
	StateNew State = iota
	StateUp
	StateDown
	StateClosed
	NumStates // sentinel, keep last
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Destination is one shard's view of a backend host. Result counts and the
// rolling latency are written from the shard goroutine and read by the
// aggregator, so the non-atomic fields sit behind a mutex; the request
// gauges are plain atomics because connection goroutines touch them too.
type Destination struct {
	key string

	mu           sync.Mutex
	state        State
	results      [proto.NumResults]uint64
	avgLatencyUs float64
	hasLatency   bool
	retransPerKB float64
	hasRetrans   bool

	pending  atomic.Uint64
	inflight atomic.Uint64
}

// New creates a destination entry for the given host key.
func New(key string) *Destination {
	return &Destination{key: key, state: StateNew}
}

// Key returns the destination's host identity ("host:port").
func (d *Destination) Key() string {
	return d.key
}

// RecordResult counts one reply with the given result code.
func (d *Destination) RecordResult(res proto.ResultCode) {
	d.mu.Lock()
	d.results[res]++
	d.mu.Unlock()
}

// SetState records the connection state.
func (d *Destination) SetState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// RecordLatency folds one latency sample (microseconds) into the rolling
// average, weighting the previous average at 9:1.
func (d *Destination) RecordLatency(us float64) {
	d.mu.Lock()
	if d.hasLatency {
		d.avgLatencyUs = d.avgLatencyUs*0.9 + us*0.1
	} else {
		d.avgLatencyUs = us
		d.hasLatency = true
	}
	d.mu.Unlock()
}

// SetRetransPerKB records the most recent retransmits-per-kilobyte reading
// for the destination's connection.
func (d *Destination) SetRetransPerKB(v float64) {
	d.mu.Lock()
	d.retransPerKB = v
	d.hasRetrans = true
	d.mu.Unlock()
}

// IncPending / DecPending track requests queued toward this destination.
func (d *Destination) IncPending() { d.pending.Add(1) }
func (d *Destination) DecPending() { d.pending.Add(^uint64(0)) }

// IncInflight / DecInflight track requests sent and awaiting a reply.
func (d *Destination) IncInflight() { d.inflight.Add(1) }
func (d *Destination) DecInflight() { d.inflight.Add(^uint64(0)) }

// Stats is a copied, consistent view of the destination's counters.
type Stats struct {
	State        State
	Results      [proto.NumResults]uint64
	AvgLatencyUs float64
	HasLatency   bool
	RetransPerKB float64
	HasRetrans   bool
	Pending      uint64
	Inflight     uint64
}

// Snapshot copies the destination's counters for aggregation.
func (d *Destination) Snapshot() Stats {
	d.mu.Lock()
	s := Stats{
		State:        d.state,
		Results:      d.results,
		AvgLatencyUs: d.avgLatencyUs,
		HasLatency:   d.hasLatency,
		RetransPerKB: d.retransPerKB,
		HasRetrans:   d.hasRetrans,
	}
	d.mu.Unlock()
	s.Pending = d.pending.Load()
	s.Inflight = d.inflight.Load()
	return s
}

// Map holds one shard's destinations, keyed by host identity.
type Map struct {
	mu    sync.RWMutex
	hosts map[string]*Destination
}

// NewMap creates an empty destination map.
func NewMap() *Map {
	return &Map{hosts: make(map[string]*Destination)}
}

// Emplace returns the destination for key, creating it on first use.
func (m *Map) Emplace(key string) *Destination {
	m.mu.RLock()
	d := m.hosts[key]
	m.mu.RUnlock()
	if d != nil {
		return d
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d = m.hosts[key]; d == nil {
		d = New(key)
		m.hosts[key] = d
	}
	return d
}

// Lookup returns the destination for key, or nil.
func (m *Map) Lookup(key string) *Destination {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hosts[key]
}

// ForEach calls fn for every destination. Safe for concurrent use; fn runs
// without the map lock held.
func (m *Map) ForEach(fn func(*Destination)) {
	m.mu.RLock()
	list := make([]*Destination, 0, len(m.hosts))
	for _, d := range m.hosts {
		list = append(list, d)
	}
	m.mu.RUnlock()
	for _, d := range list {
		fn(d)
	}
}

// Len returns the number of known destinations.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hosts)
}
