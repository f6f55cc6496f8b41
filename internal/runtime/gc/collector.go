// Package gc implements the epoch-flipped mark-and-sweep collector
// rooted at the shadow stack plus per-definition static roots (spec
// §4.4), paced by a byte-budget threshold.
package gc

import (
	"github.com/SeaSharpy/Dim/internal/runtime/definition"
	"github.com/SeaSharpy/Dim/internal/runtime/instance"
	"github.com/SeaSharpy/Dim/internal/runtime/shadowstack"
)

// ThresholdFloor is the minimum gc_threshold the doubling policy ever
// produces (spec §4.4).
const ThresholdFloor = 1 << 20 // 1 MiB

// Budget tracks the monotonic allocation counter and the threshold that
// paces collection. Accuracy is advisory, not correctness-critical
// (spec §3).
type Budget struct {
	AllocatedBytes uintptr
	Threshold      uintptr
}

// NewBudget returns a budget at the initial threshold floor.
func NewBudget() *Budget {
	return &Budget{Threshold: ThresholdFloor}
}

// Add increments the allocation counter.
func (b *Budget) Add(size uintptr) {
	if size == 0 {
		return
	}

	b.AllocatedBytes += size
}

// Sub decrements the allocation counter, saturating at zero rather than
// underflowing (spec §3).
func (b *Budget) Sub(size uintptr) {
	if size == 0 {
		return
	}

	if b.AllocatedBytes < size {
		b.AllocatedBytes = 0
		return
	}

	b.AllocatedBytes -= size
}

// overThreshold reports whether the budget has crossed its threshold.
func (b *Budget) overThreshold() bool {
	return b.AllocatedBytes > b.Threshold
}

// rebase applies the doubling policy: the new threshold is twice the
// allocated bytes counted when the collection began, never below the
// floor.
func (b *Budget) rebase(allocatedAtStart uintptr) {
	next := allocatedAtStart * 2
	if next < ThresholdFloor {
		next = ThresholdFloor
	}

	b.Threshold = next
}

// Registry is the subset of *definition.Registry the collector needs:
// enumerating every loaded definition's static roots.
type Registry interface {
	All() []definition.Definition
}

// Collector runs the mark-and-sweep algorithm over a pool, rooted at a
// shadow stack and a registry's static roots.
type Collector struct {
	registry Registry
	pool     *instance.Pool
	stack    *shadowstack.Stack
	budget   *Budget

	epoch    bool
	worklist []*instance.Instance
}

// New builds a collector over the given registry, pool, shadow stack,
// and allocation budget. All four are shared with the rest of the
// kernel state; the collector does not own them.
func New(registry Registry, pool *instance.Pool, stack *shadowstack.Stack, budget *Budget) *Collector {
	return &Collector{registry: registry, pool: pool, stack: stack, budget: budget}
}

// UnmarkedStamp returns the mark value a newly constructed instance
// must be stamped with so the collector considers it unreached until
// proven otherwise (spec §4.2, §4.4): the current epoch, which Collect
// flips before marking anything reachable, so an instance that is never
// marked during the next collection is left stale and swept.
func (c *Collector) UnmarkedStamp() bool {
	return c.epoch
}

// Mark is the callback definitions' tracing hooks invoke for every
// managed field or static root they see (spec §4.4 step 3). A nil
// instance, or one already at the current epoch, is a no-op.
func (c *Collector) Mark(inst any) {
	i, ok := inst.(*instance.Instance)
	if !ok || i == nil {
		return
	}

	if i.Mark == c.epoch {
		return
	}

	c.worklist = append(c.worklist, i)
}

// Gc collects only if the allocation budget has crossed its threshold;
// otherwise it returns immediately (spec §4.4's conditional safe point).
func (c *Collector) Gc() {
	if !c.budget.overThreshold() {
		return
	}

	c.Collect()
}

// Collect always runs a full collection (the force entry, spec §4.4).
func (c *Collector) Collect() {
	allocatedAtStart := c.budget.AllocatedBytes

	c.epoch = !c.epoch
	c.worklist = c.worklist[:0]

	c.stack.Walk(func(inst *instance.Instance) {
		c.Mark(inst)
	})

	for _, def := range c.registry.All() {
		if def.TraceStatics != nil {
			def.TraceStatics(c.Mark)
		}
	}

	for len(c.worklist) > 0 {
		n := len(c.worklist) - 1
		inst := c.worklist[n]
		c.worklist = c.worklist[:n]

		if inst == nil || inst.Mark == c.epoch {
			continue
		}

		inst.Mark = c.epoch

		if inst.Def != nil && inst.Def.TraceRefs != nil {
			inst.Def.TraceRefs(inst.Data, c.Mark)
		}
	}

	c.sweep()
	c.budget.rebase(allocatedAtStart)
}

// sweep destroys every instance whose mark does not equal the current
// epoch, using swap-and-pop removal (spec §4.4 step 4).
func (c *Collector) sweep() {
	for i := 0; i < c.pool.Len(); {
		inst := c.pool.At(i)

		if inst != nil && inst.Mark == c.epoch {
			i++
			continue
		}

		c.destroy(inst)
		c.pool.SwapRemove(i)
	}
}

// destroy invokes a single instance's destructor and accounts for its
// size. It is also used by teardown, which destroys unconditionally.
func (c *Collector) destroy(inst *instance.Instance) {
	if inst == nil || inst.Def == nil {
		return
	}

	c.budget.Sub(inst.Def.InstanceSize)

	if inst.Def.Free != nil {
		inst.Def.Free(inst.Data)
	}
}

// Teardown destroys every instance still in the pool unconditionally —
// this is not a collection (spec §4.7): reachability is not consulted,
// and packages must not rely on destructor ordering across instances.
func (c *Collector) Teardown() {
	for i := 0; i < c.pool.Len(); i++ {
		c.destroy(c.pool.At(i))
	}

	c.pool.Clear()
}
