package feature

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// resolveConcurrency bounds parallel downloads in ResolveAll.
const resolveConcurrency = 4

// Resolver resolves a feature ref to a local folder containing the
// feature's files (devcontainer-feature.json, install.sh, etc.). configDir
// is the directory containing the devcontainer.json that references it.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref, configDir string) (string, error)
}

// LocalResolver resolves features specified as relative paths.
type LocalResolver struct{}

// Resolve joins ref to configDir and verifies the directory exists.
func (r *LocalResolver) Resolve(_ context.Context, ref Ref, configDir string) (string, error) {
	if ref.Kind != KindLocal {
		return "", fmt.Errorf("LocalResolver only handles relative paths (./ or ../), got %q", ref.ID)
	}
	resolved := filepath.Clean(filepath.Join(configDir, ref.ID))
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("resolving feature %q: %w", ref.ID, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("feature path %q is not a directory", resolved)
	}
	return resolved, nil
}

// CompositeResolver dispatches to the appropriate resolver based on the
// ref kind. With Offline set, remote refs resolve only from the cache.
type CompositeResolver struct {
	Local   *LocalResolver
	OCI     *OCIResolver
	HTTP    *HTTPResolver
	Cache   *FeatureCache
	Offline bool
}

// NewCompositeResolver creates a CompositeResolver backed by the given cache.
func NewCompositeResolver(cache *FeatureCache, logger *slog.Logger) *CompositeResolver {
	return &CompositeResolver{
		Local: &LocalResolver{},
		OCI:   &OCIResolver{Cache: cache, Logger: logger},
		HTTP:  &HTTPResolver{Cache: cache, Logger: logger},
		Cache: cache,
	}
}

// Resolve dispatches on ref.Kind.
func (r *CompositeResolver) Resolve(ctx context.Context, ref Ref, configDir string) (string, error) {
	if r.Offline && ref.Remote() {
		if path, ok := r.Cache.Get(cacheKey(ref)); ok {
			return path, nil
		}
		return "", fmt.Errorf("resolving %q: %w", ref.ID, ErrOffline)
	}
	switch ref.Kind {
	case KindLocal:
		return r.Local.Resolve(ctx, ref, configDir)
	case KindOCI:
		return r.OCI.Resolve(ctx, ref, configDir)
	case KindHTTPS:
		return r.HTTP.Resolve(ctx, ref, configDir)
	case KindLegacy:
		return "", fmt.Errorf("feature %q uses a deprecated identifier that cannot be resolved; use an OCI reference", ref.ID)
	default:
		return "", fmt.Errorf("unknown feature ref kind %q for %q", ref.Kind, ref.ID)
	}
}

// Result is the outcome of resolving one entry of a features map.
type Result struct {
	ID  string
	Set *FeatureSet
	Err error
}

// ResolveAll resolves and parses every feature in features (ID to user
// options) concurrently. Per-feature failures are reported in the
// results, sorted by ID; the returned error is only set when ctx is done.
func ResolveAll(ctx context.Context, features map[string]any, configDir string, r Resolver) ([]Result, error) {
	ids := make([]string, 0, len(features))
	for id := range features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			set, err := resolveOne(gctx, id, features[id], configDir, r)
			results[i] = Result{ID: id, Set: set, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func resolveOne(ctx context.Context, id string, options any, configDir string, r Resolver) (*FeatureSet, error) {
	ref, err := ParseRef(id)
	if err != nil {
		return nil, err
	}
	folder, err := r.Resolve(ctx, ref, configDir)
	if err != nil {
		return nil, err
	}
	fc, err := ParseFeatureConfig(folder)
	if err != nil {
		return nil, err
	}
	return &FeatureSet{
		ConfigID: id,
		Ref:      ref,
		Folder:   folder,
		Config:   fc,
		Options:  options,
	}, nil
}
