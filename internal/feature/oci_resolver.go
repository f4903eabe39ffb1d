package feature

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// OCIResolver pulls features published as OCI artifacts and caches the
// extracted layers.
type OCIResolver struct {
	Cache *FeatureCache
	// RemoteOptions replaces the default keychain auth when set.
	RemoteOptions []remote.Option
	Logger        *slog.Logger
}

// Resolve returns the cached folder for ref, pulling it first if needed.
func (r *OCIResolver) Resolve(ctx context.Context, ref Ref, _ string) (string, error) {
	if ref.Kind != KindOCI {
		return "", fmt.Errorf("OCIResolver cannot resolve %s ref %q", ref.Kind, ref.ID)
	}
	key := cacheKey(ref)
	if path, ok := r.Cache.Get(key); ok {
		return path, nil
	}

	parsed, err := name.ParseReference(ref.ID, name.Insecure)
	if err != nil {
		return "", fmt.Errorf("parsing OCI ref %q: %w", ref.ID, err)
	}

	opts := r.RemoteOptions
	if len(opts) == 0 {
		opts = []remote.Option{remote.WithAuthFromKeychain(authn.DefaultKeychain)}
	}
	opts = append([]remote.Option{remote.WithContext(ctx)}, opts...)

	logger(r.Logger).Debug("pulling feature", "ref", ref.ID)
	img, err := remote.Image(parsed, opts...)
	if err != nil {
		return "", fmt.Errorf("pulling OCI feature %q: %w", ref.ID, err)
	}

	path, err := r.Cache.Store(ctx, key, func(dir string) error {
		if err := extractImage(img, dir); err != nil {
			return err
		}
		return checkFeatureFolder(ref.ID, dir)
	})
	if err != nil {
		return "", fmt.Errorf("caching OCI feature %q: %w", ref.ID, err)
	}
	return path, nil
}

// extractImage extracts all layers of img into dir, merging their contents.
func extractImage(img v1.Image, dir string) error {
	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("getting image layers: %w", err)
	}
	for _, layer := range layers {
		rc, err := layer.Uncompressed()
		if err != nil {
			return fmt.Errorf("getting uncompressed layer: %w", err)
		}
		err = extractTar(rc, dir)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
