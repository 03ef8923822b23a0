// Package versions pins plan dependencies to the latest published release
// reported by the package registry.
//
// Resolution is best-effort enrichment: any failure leaves that entry's
// version as it was and never surfaces to the caller.
package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/HendryAvila/gemini-planner/internal/logging"
	"github.com/HendryAvila/gemini-planner/internal/metrics"
	"github.com/HendryAvila/gemini-planner/internal/plan"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// Config configures a Resolver.
type Config struct {
	RegistryURL string
	HTTP        *http.Client
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Resolver resolves one batch of dependencies. Its cache lives as long as
// the Resolver, so construct a fresh one per batch.
type Resolver struct {
	cfg Config

	mu    sync.Mutex
	cache map[string]*lookup
}

type lookup struct {
	once    sync.Once
	version string
	ok      bool
}

// NewResolver returns a Resolver with an empty cache.
func NewResolver(cfg Config) *Resolver {
	if cfg.RegistryURL == "" {
		cfg.RegistryURL = DefaultRegistry
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.Logger = logging.OrDefault(cfg.Logger)
	return &Resolver{cfg: cfg, cache: map[string]*lookup{}}
}

// Factory returns a function producing a fresh Resolver per batch.
func Factory(cfg Config) func() *Resolver {
	return func() *Resolver { return NewResolver(cfg) }
}

// ResolveLatestVersions returns deps with each version replaced by a caret
// range on the registry's latest tag. Lookups run concurrently; the result
// keeps input order and length. Entries that fail keep their version, or
// "*" when they had none.
func (r *Resolver) ResolveLatestVersions(ctx context.Context, deps []plan.Dependency) []plan.Dependency {
	mapper := iter.Mapper[plan.Dependency, plan.Dependency]{MaxGoroutines: len(deps)}
	return mapper.Map(deps, func(d *plan.Dependency) plan.Dependency {
		out := *d
		if latest, ok := r.latest(ctx, d.Name); ok {
			out.Version = "^" + latest
			return out
		}
		if out.Version == "" {
			out.Version = "*"
		}
		return out
	})
}

// latest returns the cached or freshly fetched latest tag for name.
// Concurrent callers for the same name share one request.
func (r *Resolver) latest(ctx context.Context, name string) (string, bool) {
	r.mu.Lock()
	l, found := r.cache[name]
	if !found {
		l = &lookup{}
		r.cache[name] = l
	}
	r.mu.Unlock()

	l.once.Do(func() {
		v, err := r.fetch(ctx, name)
		r.cfg.Metrics.ObserveRegistry(err)
		if err != nil {
			r.cfg.Logger.Debug("version lookup failed, keeping original", "package", name, "err", err)
			return
		}
		l.version, l.ok = v, true
	})
	return l.version, l.ok
}

func (r *Resolver) fetch(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty package name")
	}
	endpoint := strings.TrimRight(r.cfg.RegistryURL, "/") + "/-/package/" + url.PathEscape(name) + "/dist-tags"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.cfg.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching dist-tags: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var tags map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", fmt.Errorf("decoding dist-tags: %w", err)
	}
	latest, _ := tags["latest"].(string)
	if latest == "" {
		return "", fmt.Errorf("no latest tag")
	}
	return latest, nil
}
