// Command dim is the Dim runtime's entry-point CLI: it locates a
// directory of compiled packages, loads them, and dispatches to
// App::Main (spec §4.6, §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/SeaSharpy/Dim/internal/diag"
	"github.com/SeaSharpy/Dim/internal/packageregistry"
	"github.com/SeaSharpy/Dim/internal/runtime/engine"
)

type requireFlag struct {
	namespace  string
	constraint string
}

type requireFlags []requireFlag

func (r *requireFlags) String() string {
	return fmt.Sprintf("%v", []requireFlag(*r))
}

func (r *requireFlags) Set(value string) error {
	ns, constraint, ok := splitAt(value, '@')
	if !ok {
		return fmt.Errorf("--require expects ns@constraint, got %q", value)
	}

	*r = append(*r, requireFlag{namespace: ns, constraint: constraint})

	return nil
}

func splitAt(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}

	return s, "", false
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dim", flag.ContinueOnError)

	watchTimeout := fs.Duration("watch-timeout", 0, "wait this long for the package directory to become ready before loading")
	registryURL := fs.String("registry", "", "remote package registry base URL (supports h3:// for HTTP/3)")

	var requires requireFlags

	fs.Var(&requires, "require", "namespace@constraint to resolve from --registry before loading (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 1 {
		fmt.Println("usage: dim <package-directory>")
		return 1
	}

	dir := fs.Arg(0)
	w := diag.New(os.Stdout)

	if *watchTimeout > 0 {
		if err := packageregistry.UntilReady(dir, *watchTimeout, w); err != nil {
			w.Reportf("Package directory not ready", "%v", err)
			return 1
		}
	}

	if *registryURL != "" {
		resolveRemote(w, *registryURL, dir, requires)
	}

	state := engine.New(w)
	state.LoadFromDirectory(dir)

	err := state.RunEntryPoint()

	state.Teardown()

	if err != nil {
		if err == engine.ErrNoEntryPoint {
			fmt.Println("App::Main not found; exiting cleanly")
			return 0
		}

		w.Reportf("App::Main failed", "%v", err)
		return 1
	}

	return 0
}

func resolveRemote(w *diag.Writer, registryURL, cacheDir string, requires requireFlags) {
	reg := packageregistry.New(registryURL, 30*time.Second)
	defer reg.Close()

	ctx := context.Background()

	for _, req := range requires {
		bundle, err := reg.Resolve(ctx, req.namespace, req.constraint)
		if err != nil {
			w.Reportf("Remote resolve failed", "%s@%s: %v", req.namespace, req.constraint, err)
			continue
		}

		if _, err := reg.Fetch(ctx, bundle, cacheDir); err != nil {
			w.Reportf("Remote fetch failed", "%s: %v", req.namespace, err)
		}
	}
}
