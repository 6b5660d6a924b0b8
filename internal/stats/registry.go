package stats

import (
	"fmt"
	"sync/atomic"
)

// slot holds the mutable value of one stat. Only the field matching the
// slot's kind is ever touched.
type slot struct {
	uval uint64
	ival int64
	fval float64
	sval string
}

// Registry is one shard's table of stat slots. A shard's registry is
// mutated only by that shard's own worker goroutine; the sole exception is
// the IncrSafe/DecrSafe atomic variants, which exist for the small set of
// gauges touched from connection goroutines. Cross-shard readers (the
// aggregator) only read.
type Registry struct {
	slots [NumStats]slot
}

// NewRegistry returns a registry with every slot zeroed. Slot metadata
// lives in the static definition table and is shared by all registries.
func NewRegistry() *Registry {
	return &Registry{}
}

func kindCheck(id StatID, want Kind) {
	if d := statDefs[id]; d.Kind != want {
		panic(fmt.Sprintf("stats: slot %s is %s, not %s", d.Name, d.Kind, want))
	}
}

// Incr adds delta to a uint64 slot. Shard-thread only.
func (r *Registry) Incr(id StatID, delta uint64) {
	kindCheck(id, KindUint64)
	r.slots[id].uval += delta
}

// Decr subtracts delta from a uint64 slot. Shard-thread only.
func (r *Registry) Decr(id StatID, delta uint64) {
	kindCheck(id, KindUint64)
	r.slots[id].uval -= delta
}

// IncrSafe atomically adds one to a uint64 slot. Safe from any goroutine.
func (r *Registry) IncrSafe(id StatID) {
	kindCheck(id, KindUint64)
	atomic.AddUint64(&r.slots[id].uval, 1)
}

// DecrSafe atomically subtracts one from a uint64 slot. Safe from any
// goroutine.
func (r *Registry) DecrSafe(id StatID) {
	kindCheck(id, KindUint64)
	atomic.AddUint64(&r.slots[id].uval, ^uint64(0))
}

// LoadSafe atomically reads a uint64 slot written through IncrSafe/DecrSafe.
func (r *Registry) LoadSafe(id StatID) uint64 {
	kindCheck(id, KindUint64)
	return atomic.LoadUint64(&r.slots[id].uval)
}

func (r *Registry) SetUint64(id StatID, v uint64) {
	kindCheck(id, KindUint64)
	r.slots[id].uval = v
}

func (r *Registry) Uint64(id StatID) uint64 {
	kindCheck(id, KindUint64)
	return r.slots[id].uval
}

func (r *Registry) SetInt64(id StatID, v int64) {
	kindCheck(id, KindInt64)
	r.slots[id].ival = v
}

func (r *Registry) Int64(id StatID) int64 {
	kindCheck(id, KindInt64)
	return r.slots[id].ival
}

func (r *Registry) SetFloat64(id StatID, v float64) {
	kindCheck(id, KindFloat64)
	r.slots[id].fval = v
}

func (r *Registry) AddFloat64(id StatID, v float64) {
	kindCheck(id, KindFloat64)
	r.slots[id].fval += v
}

func (r *Registry) Float64(id StatID) float64 {
	kindCheck(id, KindFloat64)
	return r.slots[id].fval
}

func (r *Registry) SetString(id StatID, v string) {
	kindCheck(id, KindString)
	r.slots[id].sval = v
}

func (r *Registry) String(id StatID) string {
	kindCheck(id, KindString)
	return r.slots[id].sval
}
