package feature

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// HTTPResolver resolves features from HTTPS URLs pointing to tarballs.
type HTTPResolver struct {
	Cache  *FeatureCache
	Client *http.Client // nil uses http.DefaultClient
	Logger *slog.Logger
}

// Resolve downloads and caches the feature tarball at ref's URL.
func (r *HTTPResolver) Resolve(ctx context.Context, ref Ref, _ string) (string, error) {
	if ref.Kind != KindHTTPS {
		return "", fmt.Errorf("HTTPResolver requires an https:// URL, got %q", ref.ID)
	}
	key := cacheKey(ref)
	if path, ok := r.Cache.Get(key); ok {
		return path, nil
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.ID, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %q: %w", ref.ID, err)
	}
	logger(r.Logger).Debug("downloading feature", "url", ref.ID)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading feature from %q: %w", ref.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading feature from %q: HTTP %d", ref.ID, resp.StatusCode)
	}

	path, err := r.Cache.Store(ctx, key, func(dir string) error {
		if err := extractArchive(resp.Body, ref.ID, dir); err != nil {
			return err
		}
		return checkFeatureFolder(ref.ID, dir)
	})
	if err != nil {
		return "", fmt.Errorf("caching HTTP feature %q: %w", ref.ID, err)
	}
	return path, nil
}

// extractArchive extracts a plain .tar by URL suffix and treats anything
// else as gzip-compressed.
func extractArchive(r io.Reader, url, dir string) error {
	if strings.HasSuffix(url, ".tar") {
		return extractTar(r, dir)
	}
	return extractTarGz(r, dir)
}
