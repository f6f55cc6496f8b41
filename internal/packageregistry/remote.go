package packageregistry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	http3 "github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/singleflight"

	"github.com/SeaSharpy/Dim/internal/errors"
)

// Bundle describes one resolved, downloadable package: its manifest
// plus the URL of its shared-object bytes.
type Bundle struct {
	Manifest Manifest
	URL      string
}

// Registry is an HTTP(S) client for a remote feed of package manifests
// (SPEC_FULL §4.8). Concurrent Resolve calls for the same namespace are
// coalesced with singleflight, mirroring the teacher's HTTPRegistry.
type Registry struct {
	base   string
	client *http.Client
	group  singleflight.Group
}

// New builds a Registry against baseURL. A "h3://" scheme selects an
// HTTP/3 transport over QUIC; any other scheme uses the default
// net/http transport.
func New(baseURL string, timeout time.Duration) *Registry {
	client := &http.Client{Timeout: timeout}

	if strings.HasPrefix(baseURL, "h3://") {
		baseURL = "https://" + strings.TrimPrefix(baseURL, "h3://")
		client = &http.Client{
			Timeout: timeout,
			Transport: &http3.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{"h3"}},
			},
		}
	}

	return &Registry{base: strings.TrimSuffix(baseURL, "/"), client: client}
}

// Close releases any HTTP/3 transport resources held by the registry.
func (r *Registry) Close() {
	if tr, ok := r.client.Transport.(*http3.Transport); ok {
		_ = tr.Close()
	}
}

// feed is the JSON shape served at "<base>/<namespace>/manifests.json".
type feed struct {
	Bundles []Bundle `json:"bundles"`
}

// Resolve fetches the manifest feed for namespace and returns the
// highest version satisfying constraint, or an error if the feed is
// unreachable or nothing satisfies it. Identical concurrent calls for
// the same namespace share one HTTP round trip.
func (r *Registry) Resolve(ctx context.Context, namespace, constraint string) (Bundle, error) {
	v, err, _ := r.group.Do(namespace, func() (any, error) {
		return r.fetchFeed(ctx, namespace)
	})
	if err != nil {
		return Bundle{}, errors.RemoteResolveFailure(namespace, constraint, err)
	}

	bundles := v.(feed).Bundles

	var best Bundle

	var bestOK bool

	for _, b := range bundles {
		ok, err := Satisfies(b.Manifest, constraint)
		if err != nil || !ok {
			continue
		}

		if !bestOK {
			best, bestOK = b, true
			continue
		}

		newer, err := isNewer(b.Manifest.Version, best.Manifest.Version)
		if err == nil && newer {
			best = b
		}
	}

	if !bestOK {
		return Bundle{}, errors.RemoteResolveFailure(namespace, constraint, fmt.Errorf("no bundle satisfies constraint"))
	}

	return best, nil
}

func (r *Registry) fetchFeed(ctx context.Context, namespace string) (feed, error) {
	url := fmt.Sprintf("%s/%s/manifests.json", r.base, namespace)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return feed{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return feed{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feed{}, fmt.Errorf("registry returned %s", resp.Status)
	}

	var f feed
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return feed{}, fmt.Errorf("decode manifest feed: %w", err)
	}

	return f, nil
}

// Fetch downloads a resolved bundle's shared object into cacheDir,
// named "<namespace>.so", returning the path with its extension
// stripped so it can be handed directly to the directory loader.
func (r *Registry) Fetch(ctx context.Context, b Bundle, cacheDir string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: %s", b.URL, resp.Status)
	}

	dest := filepath.Join(cacheDir, b.Manifest.Namespace+".so")

	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}

	return strings.TrimSuffix(dest, ".so"), nil
}
