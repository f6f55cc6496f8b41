// Package instance implements the instance pool (spec §4.2): the set of
// all live instances created through the runtime, each carrying a
// back-pointer to its definition and a mark bit.
package instance

import "github.com/SeaSharpy/Dim/internal/runtime/definition"

// Instance is the header-plus-payload heap object the collector traces.
// Data is the package-defined payload; the kernel never interprets it
// except through the owning Definition's callbacks.
type Instance struct {
	Def  *definition.Definition
	Mark bool
	Data any
}

// Pool is the unordered, growable sequence of live instances. Sweep
// order is unspecified, matching spec §4.2.
type Pool struct {
	items []*Instance
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Add appends inst to the pool.
func (p *Pool) Add(inst *Instance) {
	p.items = append(p.items, inst)
}

// Len reports the number of live instances.
func (p *Pool) Len() int {
	return len(p.items)
}

// At returns the instance at index i.
func (p *Pool) At(i int) *Instance {
	return p.items[i]
}

// SwapRemove replaces the element at i with the last element and
// shrinks the pool by one, implementing the sweep's swap-and-pop
// removal (spec §4.4 step 4) without preserving order.
func (p *Pool) SwapRemove(i int) {
	last := len(p.items) - 1
	p.items[i] = p.items[last]
	p.items[last] = nil
	p.items = p.items[:last]
}

// Each iterates over a live snapshot of the pool. Mutating the pool
// (e.g. from a destructor) during iteration is undefined behavior per
// spec §4.4 and is not guarded against here.
func (p *Pool) Each(fn func(*Instance)) {
	for _, inst := range p.items {
		fn(inst)
	}
}

// Clear empties the pool without invoking any destructors; callers are
// responsible for having already destroyed every instance.
func (p *Pool) Clear() {
	p.items = nil
}
