package gc

import (
	"testing"

	"github.com/SeaSharpy/Dim/internal/runtime/definition"
	"github.com/SeaSharpy/Dim/internal/runtime/instance"
	"github.com/SeaSharpy/Dim/internal/runtime/shadowstack"
)

// stringData mirrors the example package's STD::String payload closely
// enough to exercise the collector without a built plugin.
type stringData struct {
	value string
}

// anyData mirrors STD::Any: a single managed field.
type anyData struct {
	value *instance.Instance
}

// listData mirrors STD::List: a slice of managed elements.
type listData struct {
	items []*instance.Instance
}

func newHarness() (*definition.Registry, *instance.Pool, *shadowstack.Stack, *Budget, *Collector) {
	reg := definition.NewRegistry()
	pool := instance.NewPool()
	stack := shadowstack.New()
	budget := NewBudget()
	c := New(reg, pool, stack, budget)

	return reg, pool, stack, budget, c
}

func newStringDef(destroyed *int) definition.Definition {
	return definition.Definition{
		Namespace:    "STD",
		Name:         "String",
		InstanceSize: 16,
		New:          func() any { return &stringData{} },
		Free: func(any) {
			if destroyed != nil {
				*destroyed++
			}
		},
	}
}

func newAnyDef() definition.Definition {
	return definition.Definition{
		Namespace:    "STD",
		Name:         "Any",
		InstanceSize: 8,
		New:          func() any { return &anyData{} },
		TraceRefs: func(data any, mark definition.Mark) {
			if ad := data.(*anyData); ad.value != nil {
				mark(ad.value)
			}
		},
	}
}

func newListDef() definition.Definition {
	return definition.Definition{
		Namespace:    "STD",
		Name:         "List",
		InstanceSize: 24,
		New:          func() any { return &listData{} },
		TraceRefs: func(data any, mark definition.Mark) {
			for _, item := range data.(*listData).items {
				if item != nil {
					mark(item)
				}
			}
		},
	}
}

func makeInstance(pool *instance.Pool, c *Collector, def *definition.Definition) *instance.Instance {
	inst := &instance.Instance{Def: def, Mark: c.UnmarkedStamp(), Data: def.New()}
	pool.Add(inst)

	return inst
}

// Scenario 1: empty run. A freshly built collector over an empty pool
// collects cleanly and leaves counters at zero.
func TestEmptyRun(t *testing.T) {
	_, pool, _, budget, c := newHarness()

	c.Collect()

	if pool.Len() != 0 {
		t.Fatalf("pool.Len() = %d, want 0", pool.Len())
	}

	if budget.AllocatedBytes != 0 {
		t.Fatalf("AllocatedBytes = %d, want 0", budget.AllocatedBytes)
	}
}

// Scenario 2: a single String, local slot dropped before gc_force.
// The pool empties, the counter returns to zero, and the destructor
// runs exactly once.
func TestStandardPackageHelloStringCollected(t *testing.T) {
	reg, pool, stack, budget, c := newHarness()

	var destroyed int

	strDef := newStringDef(&destroyed)
	reg.Register([]definition.Definition{strDef})

	def, _ := reg.Find("STD", "String")
	inst := makeInstance(pool, c, def)
	inst.Data.(*stringData).value = "hello"
	budget.Add(def.InstanceSize)

	var local *instance.Instance

	saved := stack.Head
	slot := stack.NewLocal(&local)
	stack.Push(&slot)
	local = inst

	// Drop the local slot before forcing collection.
	stack.Pop(saved)

	c.Collect()

	if pool.Len() != 0 {
		t.Fatalf("pool.Len() = %d, want 0", pool.Len())
	}

	if budget.AllocatedBytes != 0 {
		t.Fatalf("AllocatedBytes = %d, want 0", budget.AllocatedBytes)
	}

	if destroyed != 1 {
		t.Fatalf("destructor invoked %d times, want exactly 1", destroyed)
	}
}

// Scenario 3: a List holding two strings (stored directly, without an
// Any box) survives a collection
// as long as the list itself stays rooted, even once the strings'
// own local references are dropped.
func TestListHoldingStringsSurvives(t *testing.T) {
	reg, pool, stack, _, c := newHarness()

	reg.Register([]definition.Definition{newStringDef(nil), newListDef()})

	strDef, _ := reg.Find("STD", "String")
	listDef, _ := reg.Find("STD", "List")

	a := makeInstance(pool, c, strDef)
	a.Data.(*stringData).value = "a"

	b := makeInstance(pool, c, strDef)
	b.Data.(*stringData).value = "b"

	list := makeInstance(pool, c, listDef)
	list.Data.(*listData).items = []*instance.Instance{a, b}

	var localA, localB, localList *instance.Instance

	saved := stack.Head

	slotList := stack.NewLocal(&localList)
	stack.Push(&slotList)
	localList = list

	slotA := stack.NewLocal(&localA)
	stack.Push(&slotA)
	localA = a

	slotB := stack.NewLocal(&localB)
	stack.Push(&slotB)
	localB = b

	// Drop the strings' own slots but keep the list's.
	stack.Pop(slotA.Prev)

	c.Collect()

	if pool.Len() != 3 {
		t.Fatalf("pool.Len() = %d, want 3 (list + 2 strings survive)", pool.Len())
	}

	ld := list.Data.(*listData)
	if len(ld.items) != 2 {
		t.Fatalf("Count() = %d, want 2", len(ld.items))
	}

	if ld.items[0].Data.(*stringData).value != "a" || ld.items[1].Data.(*stringData).value != "b" {
		t.Fatalf("Get(0)/Get(1) = %q/%q, want a/b", ld.items[0].Data.(*stringData).value, ld.items[1].Data.(*stringData).value)
	}

	stack.Pop(saved)
}

// Scenario 4: a 2-instance cycle of Any-boxed references survives ten
// successive forced collections as long as one side stays rooted.
func TestCycleSurvivesTenForcedCollections(t *testing.T) {
	reg, pool, stack, _, c := newHarness()

	reg.Register([]definition.Definition{newAnyDef()})

	anyDef, _ := reg.Find("STD", "Any")

	a := makeInstance(pool, c, anyDef)
	b := makeInstance(pool, c, anyDef)

	a.Data.(*anyData).value = b
	b.Data.(*anyData).value = a

	var localA *instance.Instance

	saved := stack.Head
	slot := stack.NewLocal(&localA)
	stack.Push(&slot)
	localA = a

	for i := 0; i < 10; i++ {
		c.Collect()

		if pool.Len() != 2 {
			t.Fatalf("iteration %d: pool.Len() = %d, want 2 (cycle survives)", i, pool.Len())
		}
	}

	stack.Pop(saved)
}

// Scenario 5: threshold pacing. Allocations below the 1 MiB floor never
// trigger a conditional gc; crossing it runs exactly one collection and
// doubles the threshold.
func TestThresholdPacingDoublesAfterCrossing(t *testing.T) {
	reg, pool, _, budget, c := newHarness()

	var destroyed int

	const chunk = 4 * 1024

	def := newStringDef(&destroyed)
	def.InstanceSize = chunk // each "string" accounts for 4 KiB, per the scenario
	reg.Register([]definition.Definition{def})

	strDef, _ := reg.Find("STD", "String")

	allocateUnrooted := func() {
		makeInstance(pool, c, strDef)
		budget.Add(strDef.InstanceSize)
		c.Gc()
	}

	for budget.AllocatedBytes+chunk <= ThresholdFloor {
		before := budget.Threshold
		allocateUnrooted()

		if budget.Threshold != before {
			t.Fatal("threshold must not move before it is crossed")
		}
	}

	if pool.Len() == 0 {
		t.Fatal("setup invariant broken: pool must be non-empty before crossing")
	}

	preThreshold := budget.Threshold

	allocateUnrooted() // this allocation crosses the threshold

	if budget.Threshold == preThreshold {
		t.Fatal("expected the threshold to double after crossing it")
	}

	if pool.Len() != 0 {
		t.Fatalf("pool.Len() = %d, want 0 after the triggered collection (nothing was rooted)", pool.Len())
	}

	if budget.AllocatedBytes != 0 {
		t.Fatalf("AllocatedBytes = %d, want 0: every allocated string was destroyed", budget.AllocatedBytes)
	}

	if budget.Threshold < ThresholdFloor {
		t.Fatalf("Threshold = %d, must never fall below the floor", budget.Threshold)
	}
}

func TestTeardownDestroysUnconditionally(t *testing.T) {
	reg, pool, _, budget, c := newHarness()

	var destroyed int

	reg.Register([]definition.Definition{newStringDef(&destroyed)})

	def, _ := reg.Find("STD", "String")
	makeInstance(pool, c, def)
	makeInstance(pool, c, def)
	budget.Add(def.InstanceSize * 2)

	c.Teardown()

	if destroyed != 2 {
		t.Fatalf("destructor invoked %d times, want 2", destroyed)
	}

	if pool.Len() != 0 {
		t.Fatalf("pool.Len() = %d, want 0 after teardown", pool.Len())
	}

	if budget.AllocatedBytes != 0 {
		t.Fatalf("AllocatedBytes = %d, want 0 after teardown", budget.AllocatedBytes)
	}
}

func TestEpochAlternatesAcrossCollections(t *testing.T) {
	reg, pool, stack, _, c := newHarness()
	reg.Register([]definition.Definition{newStringDef(nil)})

	def, _ := reg.Find("STD", "String")
	inst := makeInstance(pool, c, def)

	var local *instance.Instance

	saved := stack.Head
	slot := stack.NewLocal(&local)
	stack.Push(&slot)
	local = inst

	var marks []bool

	for i := 0; i < 3; i++ {
		c.Collect()
		marks = append(marks, inst.Mark)
	}

	if marks[0] == marks[1] || marks[1] == marks[2] {
		t.Fatalf("mark values did not alternate across collections: %v", marks)
	}

	stack.Pop(saved)
}
