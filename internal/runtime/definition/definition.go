// Package definition implements the append-only definition registry:
// the kernel's table of (namespace, name) -> the static description of
// an instance kind (spec §4.1).
package definition

// Method is one entry of a definition's method vector. Duplicate Names
// are permitted within a single Definition; dispatch by the entry
// dispatcher and by packages is by position, never by Name — Name is
// diagnostic only (spec §9).
type Method struct {
	Name string
	Fn   any
}

// Mark is the callback a definition's tracing hooks use to enqueue a
// reachable instance onto the collector's worklist. It is supplied by
// the collector at collection time; definitions never construct one
// themselves.
type Mark func(inst any)

// Definition is the immutable, once-registered description of an
// instance kind. Identity is the (Namespace, Name) pair; the registry
// performs no deduplication (spec §4.1 trusts the loader).
type Definition struct {
	Namespace string
	Name      string

	// InstanceSize is the advisory byte size added to the allocation
	// counter when an instance of this kind is constructed.
	InstanceSize uintptr

	// New allocates and zero-initializes a payload value for one
	// instance. It must not invoke a user-level init method (spec §4.2).
	New func() any

	// Free releases unmanaged resources owned by the payload. It must
	// never touch another managed instance, call Mark, or allocate
	// (spec §4.4); the collector and teardown both rely on this.
	Free func(data any)

	// TraceRefs enumerates the managed fields of one instance's payload,
	// calling mark for each non-nil managed pointer.
	TraceRefs func(data any, mark Mark)

	// TraceStatics enumerates this definition's static roots, if any
	// (interned singletons, package-level caches). Optional.
	TraceStatics func(mark Mark)

	Methods []Method
}

// FindMethod returns the function value of the first method with the
// given name, or nil if none matches. Name lookup exists for the entry
// dispatcher's convenience; it never implies dispatch-by-name within
// compiled Dim code.
func (d *Definition) FindMethod(name string) any {
	for _, m := range d.Methods {
		if m.Name == name {
			return m.Fn
		}
	}

	return nil
}

// Registry is the append-only table of loaded definitions.
type Registry struct {
	defs []Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends defs to the registry. The loader is trusted: no
// deduplication is performed, matching spec §4.1.
func (r *Registry) Register(defs []Definition) {
	r.defs = append(r.defs, defs...)
}

// Find performs the registry's linear scan for (namespace, name).
// Expected registry size is small (spec §4.1); no index is maintained.
func (r *Registry) Find(namespace, name string) (*Definition, bool) {
	for i := range r.defs {
		d := &r.defs[i]
		if d.Namespace == namespace && d.Name == name {
			return d, true
		}
	}

	return nil, false
}

// All returns every registered definition, in registration order.
func (r *Registry) All() []Definition {
	return r.defs
}

// Len reports how many definitions are currently registered.
func (r *Registry) Len() int {
	return len(r.defs)
}
