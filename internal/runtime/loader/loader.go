package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"strings"

	"github.com/SeaSharpy/Dim/internal/diag"
	"github.com/SeaSharpy/Dim/internal/errors"
	"github.com/SeaSharpy/Dim/internal/packageregistry"
	"github.com/SeaSharpy/Dim/internal/runtime/definition"
)

// sharedLibExtension is the platform's shared-library suffix (spec §6).
// Go's plugin package only supports ELF/Mach-O targets; the Windows
// branch is kept so the extension table matches spec §6 verbatim, but
// LoadPackage on GOOS=="windows" always fails with a clear diagnostic
// rather than pretending to open a .dll.
func sharedLibExtension() string {
	if runtime.GOOS == "windows" {
		return ".dll"
	}

	return ".so"
}

// isSharedLibName reports whether name looks like a platform shared
// library, including the versioned "*.so.N" form spec §6 calls out.
func isSharedLibName(name string) bool {
	if runtime.GOOS == "windows" {
		lower := strings.ToLower(name)
		return strings.HasSuffix(lower, ".dll")
	}

	if strings.HasSuffix(name, ".so") {
		return true
	}

	return strings.Contains(name, ".so.")
}

// stripSharedLibExtension removes the shared-library suffix from name,
// leaving the base path the loader passes around internally.
func stripSharedLibExtension(name string) string {
	if runtime.GOOS == "windows" {
		return strings.TrimSuffix(name, sharedLibExtension())
	}

	if idx := strings.Index(name, ".so"); idx >= 0 {
		return name[:idx]
	}

	return name
}

// Registrar is the subset of *definition.Registry the loader needs.
type Registrar interface {
	Register(defs []definition.Definition)
}

// Binder builds the per-package RuntimePrimitives and opaque State
// handle published at handshake time. The kernel supplies this so the
// loader never needs to import the kernel package.
type Binder func() (state any, primitives RuntimePrimitives)

// Loader locates shared libraries in a directory and performs the
// bidirectional handshake described in spec §4.5.
type Loader struct {
	registry Registrar
	bind     Binder
	diag     *diag.Writer

	handles []*plugin.Plugin
}

// New builds a Loader that registers published definitions into
// registry, binding each package's API table via bind.
func New(registry Registrar, bind Binder, w *diag.Writer) *Loader {
	if w == nil {
		w = diag.New(nil)
	}

	return &Loader{registry: registry, bind: bind, diag: w}
}

// LoadPackage opens the shared library named by a path with its
// extension already stripped (matching the on-disk convention set by
// LoadFromDirectory), performs the handshake, and registers every
// definition it publishes. Failures are reported via the diagnostic
// writer and returned so the directory walk can skip the package and
// continue (spec §4.1, §4.5).
func (l *Loader) LoadPackage(pathNoExt string) error {
	if runtime.GOOS == "windows" {
		err := fmt.Errorf("dynamic package loading is unsupported on windows")
		l.diag.Reportf("Package load failed", "%s: %v", pathNoExt, err)

		return err
	}

	libPath := pathNoExt + sharedLibExtension()

	p, err := plugin.Open(libPath)
	if err != nil {
		loadErr := errors.LibraryLoadFailure(libPath, err)
		l.diag.Report("Package load failed", loadErr.Error())

		return loadErr
	}

	sym, err := p.Lookup("GetDefinitions")
	if err != nil {
		symErr := errors.MissingHandshakeSymbol(libPath, err)
		l.diag.Report("Failed to load getDefinitions", symErr.Error())

		return symErr
	}

	getDefinitions, ok := sym.(func(*Table))
	if !ok {
		symErr := errors.MissingHandshakeSymbol(libPath, fmt.Errorf("GetDefinitions has the wrong signature"))
		l.diag.Report("Failed to load getDefinitions", symErr.Error())

		return symErr
	}

	mf, err := packageregistry.ReadManifest(packageregistry.ManifestPath(pathNoExt))
	if err != nil {
		manifestErr := errors.MalformedManifest(pathNoExt, err)
		l.diag.Report("Malformed manifest", manifestErr.Error())

		return manifestErr
	}

	if mf.Version != "" {
		l.diag.Reportf("Package manifest", "%s version %s", mf.Namespace, mf.Version)
	}

	state, primitives := l.bind()

	table := &Table{State: state, Runtime: primitives}
	getDefinitions(table)

	l.registry.Register(table.Defs)
	l.handles = append(l.handles, p)

	return nil
}

// LoadFromDirectory enumerates path, filters to platform shared-library
// names, strips their extension, and calls LoadPackage on each.
// Non-library files and subdirectories are ignored; a failed package is
// reported and skipped, and the scan continues (spec §4.5).
func (l *Loader) LoadFromDirectory(path string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		l.diag.Reportf("Package directory unreadable", "%s: %v", path, err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if !isSharedLibName(entry.Name()) {
			continue
		}

		full := filepath.Join(path, entry.Name())
		noExt := stripSharedLibExtension(full)

		_ = l.LoadPackage(noExt)
	}
}

// Unload is the reverse-order library release step of teardown (spec
// §4.7). Go's plugin package offers no unmap primitive — once opened, a
// plugin stays mapped for the process's lifetime, which is also why the
// design forbids unloading before teardown (spec §9: unloading before
// teardown would dangle every instance of a package's types). Unload
// therefore only drops the loader's own references, newest first; it
// does not unmap the library.
func (l *Loader) Unload() {
	for i := len(l.handles) - 1; i >= 0; i-- {
		l.handles[i] = nil
	}

	l.handles = nil
}
