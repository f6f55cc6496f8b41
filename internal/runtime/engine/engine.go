// Package engine wires the registry, instance pool, shadow stack,
// collector, and package loader into the single top-level runtime
// state a Dim process runs against, and exposes that state's primitive
// API to loaded packages (spec §4, §6).
package engine

import (
	"fmt"
	"os"

	"github.com/SeaSharpy/Dim/internal/diag"
	"github.com/SeaSharpy/Dim/internal/errors"
	"github.com/SeaSharpy/Dim/internal/runtime/definition"
	"github.com/SeaSharpy/Dim/internal/runtime/gc"
	"github.com/SeaSharpy/Dim/internal/runtime/instance"
	"github.com/SeaSharpy/Dim/internal/runtime/loader"
	"github.com/SeaSharpy/Dim/internal/runtime/shadowstack"
)

// State is the kernel's process-wide value, threaded through every
// primitive. Spec §9 notes the original design caches a pointer to this
// as package-local state; a from-scratch reimplementation should thread
// it as a parameter instead — which is exactly what every State method
// below does: nothing here is package-level/global.
type State struct {
	Registry *definition.Registry
	Pool     *instance.Pool
	Stack    *shadowstack.Stack
	Budget   *gc.Budget
	GC       *gc.Collector
	Loader   *loader.Loader
	Diag     *diag.Writer
}

// New builds a fully wired runtime state (spec §4's runtime_init).
func New(w *diag.Writer) *State {
	if w == nil {
		w = diag.New(os.Stdout)
	}

	s := &State{
		Registry: definition.NewRegistry(),
		Pool:     instance.NewPool(),
		Stack:    shadowstack.New(),
		Budget:   gc.NewBudget(),
		Diag:     w,
	}
	s.GC = gc.New(s.Registry, s.Pool, s.Stack, s.Budget)
	s.Loader = loader.New(s.Registry, s.bind, w)

	return s
}

// bind produces the RuntimePrimitives table published to a package at
// handshake time (spec §6's "runtime_*" fields), closing over this
// State rather than any package-level global.
func (s *State) bind() (any, loader.RuntimePrimitives) {
	return s, loader.RuntimePrimitives{
		LoadPackage:  s.Loader.LoadPackage,
		NewInstance:  s.NewInstance,
		NewLocal:     s.NewLocal,
		Gc:           s.GC.Gc,
		GcForce:      s.GC.Collect,
		AddAlloc:     s.Budget.Add,
		SubAlloc:     s.Budget.Sub,
		Mark:         s.Mark,
		NullCoalesce: NullCoalesce,
		Unwrap:       Unwrap,
	}
}

// NewInstance finds the (namespace, name) definition, invokes its
// constructor, and stamps the header before adding it to the pool and
// the allocation counter (spec §4.2). A missing definition returns nil;
// the caller must treat that as fatal.
func (s *State) NewInstance(namespace, name string) *instance.Instance {
	def, ok := s.Registry.Find(namespace, name)
	if !ok {
		s.Diag.Report("Instance construction failed", errors.MissingDefinition(namespace, name).Error())
		return nil
	}

	var data any
	if def.New != nil {
		data = def.New()
	}

	inst := &instance.Instance{Def: def, Mark: s.GC.UnmarkedStamp(), Data: data}
	s.Pool.Add(inst)
	s.Budget.Add(def.InstanceSize)

	return inst
}

// NewLocal produces a shadow-stack slot referencing addr.
func (s *State) NewLocal(addr **instance.Instance) shadowstack.Slot {
	return s.Stack.NewLocal(addr)
}

// Mark is the collector's mark callback, published to packages as
// RuntimePrimitives.Mark so their TraceRefs/TraceStatics hooks can
// enqueue reachable instances.
func (s *State) Mark(inst any) {
	s.GC.Mark(inst)
}

// NullCoalesce returns a if non-nil, else b (spec §7).
func NullCoalesce(a, b any) any {
	if !isNilAny(a) {
		return a
	}

	return b
}

// Unwrap returns a if non-nil; otherwise it prints a diagnostic naming
// line and aborts the process (spec §7). There is no recovery path:
// compiled code uses this to assert non-nullness.
func Unwrap(a any, line int) any {
	if !isNilAny(a) {
		return a
	}

	fmt.Printf("\n%s\n", errors.NullUnwrap(line).Error())
	os.Exit(1)

	return nil
}

// isNilAny reports whether a holds a nil value, including a typed nil
// pointer boxed in an interface (e.g. a (*instance.Instance)(nil)).
func isNilAny(a any) bool {
	if a == nil {
		return true
	}

	if inst, ok := a.(*instance.Instance); ok {
		return inst == nil
	}

	return false
}

// LoadFromDirectory loads every shared-library package found in path.
func (s *State) LoadFromDirectory(path string) {
	s.Loader.LoadFromDirectory(path)
}

// Teardown destroys every live instance unconditionally, unloads
// libraries in reverse order, and releases registry storage (spec
// §4.7). It is not a garbage collection.
func (s *State) Teardown() {
	s.GC.Teardown()
	s.Loader.Unload()
	s.Registry = definition.NewRegistry()
}
