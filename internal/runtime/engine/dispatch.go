package engine

import "fmt"

// ErrNoEntryPoint is returned by RunEntryPoint when no App::Main was
// found. Spec §4.6/§7: this is not an error condition for the process —
// the CLI exits cleanly after teardown — but callers may still want to
// know whether Main ran.
var ErrNoEntryPoint = fmt.Errorf("no App definition with a Main method was found")

// RunEntryPoint scans the registry for a definition named "App", finds
// the method named "Main" in its method table, and invokes it as a
// parameterless function returning nothing (spec §4.6). A missing entry
// point is reported via ErrNoEntryPoint, not treated as fatal.
func (s *State) RunEntryPoint() error {
	def, ok := s.Registry.Find("", "App")
	if !ok {
		// Namespace-agnostic: an App may be published under any
		// namespace, so fall back to scanning every definition for one
		// named "App" if the empty-namespace lookup misses.
		for _, d := range s.Registry.All() {
			if d.Name == "App" {
				def = &d
				ok = true

				break
			}
		}
	}

	if !ok {
		return ErrNoEntryPoint
	}

	main := def.FindMethod("Main")
	if main == nil {
		return ErrNoEntryPoint
	}

	fn, ok := main.(func())
	if !ok {
		return fmt.Errorf("App::Main has the wrong signature")
	}

	fn()

	return nil
}
