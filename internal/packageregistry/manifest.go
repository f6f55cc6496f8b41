// Package packageregistry supplements the local directory loader with
// a manifest format packages may ship and two ambient startup
// conveniences (SPEC_FULL §4.5a, §4.8, §4.9): a remote registry that
// can fetch package bundles before the directory walk begins, and a
// directory watch used only prior to invoking App::Main.
package packageregistry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// Manifest is the optional sidecar metadata a package may ship next to
// its shared object, named "<name>.dim.json".
type Manifest struct {
	Namespace string `json:"namespace"`
	Version   string `json:"version"`
}

// ManifestPath derives the sidecar manifest path for a package whose
// shared object (extension already stripped) lives at libPathNoExt.
func ManifestPath(libPathNoExt string) string {
	return libPathNoExt + ".dim.json"
}

// ReadManifest loads and validates the manifest at path. A missing file
// yields an empty Manifest and a nil error, distinguishing "no manifest
// shipped" from "manifest present but malformed" — only the latter is a
// reportable error.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}

		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}

	if strings.TrimSpace(m.Version) == "" {
		return m, nil
	}

	if _, err := semver.NewVersion(m.Version); err != nil {
		return Manifest{}, fmt.Errorf("invalid version %q: %w", m.Version, err)
	}

	return m, nil
}

// Satisfies reports whether m's version satisfies the given semver
// constraint string. A manifest with no version satisfies nothing but
// the empty constraint.
func Satisfies(m Manifest, constraint string) (bool, error) {
	if strings.TrimSpace(constraint) == "" {
		return true, nil
	}

	if m.Version == "" {
		return false, nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}

	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", m.Version, err)
	}

	return c.Check(v), nil
}

// isNewer reports whether version a is strictly greater than version b.
func isNewer(a, b string) (bool, error) {
	av, err := semver.NewVersion(a)
	if err != nil {
		return false, err
	}

	bv, err := semver.NewVersion(b)
	if err != nil {
		return false, err
	}

	return av.GreaterThan(bv), nil
}
