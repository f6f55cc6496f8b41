// Package loader implements the package loader and API handshake (spec
// §4.5): locating shared libraries, binding the well-known export, and
// performing the bidirectional exchange — packages publish definitions
// into the registry, the kernel publishes its primitive API into the
// package.
package loader

import (
	"github.com/SeaSharpy/Dim/internal/runtime/definition"
	"github.com/SeaSharpy/Dim/internal/runtime/instance"
	"github.com/SeaSharpy/Dim/internal/runtime/shadowstack"
)

// NewInstanceFunc looks up a definition by (namespace, name) and
// constructs an instance of it, or returns nil if no such definition is
// registered (spec §4.2).
type NewInstanceFunc func(namespace, name string) *instance.Instance

// NewLocalFunc produces a shadow-stack slot referencing addr.
type NewLocalFunc func(addr **instance.Instance) shadowstack.Slot

// GCFunc triggers a conditional or forced collection.
type GCFunc func()

// AllocFunc adjusts the allocation counter by size bytes.
type AllocFunc func(size uintptr)

// NullCoalesceFunc returns a if non-nil, else b — a total function.
type NullCoalesceFunc func(a, b any) any

// UnwrapFunc returns a if non-nil; otherwise it reports line and aborts
// the process (spec §7).
type UnwrapFunc func(a any, line int) any

// LoadPackageFunc loads one more package by path, for packages that
// themselves need to pull in a dependency at handshake time.
type LoadPackageFunc func(path string) error

// RuntimePrimitives is the set of kernel function pointers published to
// a package at handshake time (the "runtime_*" fields of spec §6's API
// table). A package is expected to cache these in its own module-local
// globals so its generated code never links the kernel statically.
type RuntimePrimitives struct {
	LoadPackage  LoadPackageFunc
	NewInstance  NewInstanceFunc
	NewLocal     NewLocalFunc
	Gc           GCFunc
	GcForce      GCFunc
	AddAlloc     AllocFunc
	SubAlloc     AllocFunc
	Mark         definition.Mark
	NullCoalesce NullCoalesceFunc
	Unwrap       UnwrapFunc

	// Throw and Exception are referenced by the handshake but have no
	// kernel implementation (spec §7, §9): packages may set their own
	// exception protocol here. The kernel neither calls nor interprets
	// them.
	Throw     any
	Exception any
}

// Table is the bidirectional handshake payload: the package populates
// Defs before returning from GetDefinitions; the kernel has already
// populated State and Runtime before calling it.
type Table struct {
	// Defs is package -> kernel: the definitions this package publishes.
	// Per spec §9's ownership resolution, the backing slice is
	// package-owned; the registry copies the Definition values into its
	// own backing array and does not keep the package's slice.
	Defs []definition.Definition

	// State is kernel -> package: an opaque handle the package caches
	// and passes back on every runtime_* call. Packages must not
	// interpret its contents.
	State any

	Runtime RuntimePrimitives
}

// GetDefinitionsFunc is the signature every conforming package must
// export as the plugin symbol "GetDefinitions".
type GetDefinitionsFunc func(table *Table)
