package feature

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// FeatureCache is a disk cache for downloaded features stored under
// ~/.dcvet/feature-cache/ (or $DCVET_HOME/feature-cache/). Entries are
// written under a per-entry file lock so concurrent dcvet processes do not
// extract into the same folder.
type FeatureCache struct {
	baseDir string
}

// HomeDir returns the dcvet state directory: $DCVET_HOME or ~/.dcvet.
func HomeDir() (string, error) {
	if home := os.Getenv("DCVET_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".dcvet"), nil
}

// NewFeatureCache creates a FeatureCache at the default location.
func NewFeatureCache() (*FeatureCache, error) {
	home, err := HomeDir()
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Join(home, "feature-cache")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating feature cache directory: %w", err)
	}
	return &FeatureCache{baseDir: baseDir}, nil
}

// NewFeatureCacheAt creates a FeatureCache at a custom directory.
func NewFeatureCacheAt(dir string) *FeatureCache {
	return &FeatureCache{baseDir: dir}
}

// Path returns the absolute path for a given cache key (may not exist).
func (c *FeatureCache) Path(key string) string {
	return filepath.Join(c.baseDir, filepath.FromSlash(key))
}

// Get returns the entry path and true if the entry exists.
func (c *FeatureCache) Get(key string) (string, bool) {
	p := c.Path(key)
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return p, true
}

// Store fills the entry for key by calling populate on a scratch folder
// and renaming it into place. The entry's lock is held throughout; if
// another process stored the entry while we waited, populate is skipped.
func (c *FeatureCache) Store(ctx context.Context, key string, populate func(dir string) error) (string, error) {
	p := c.Path(key)
	parent := filepath.Dir(p)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir for %q: %w", key, err)
	}

	lock := flock.New(p + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("locking cache entry %q: %w", key, err)
	}
	if !locked {
		return "", fmt.Errorf("locking cache entry %q: lock not acquired", key)
	}
	defer func() { _ = lock.Unlock() }()

	if existing, ok := c.Get(key); ok {
		return existing, nil
	}

	tmp, err := os.MkdirTemp(parent, ".tmp-")
	if err != nil {
		return "", fmt.Errorf("creating scratch dir for %q: %w", key, err)
	}
	if err := populate(tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return "", err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("moving cache entry %q into place: %w", key, err)
	}
	return p, nil
}

// cacheKey maps a ref to a filesystem-safe key. OCI refs keep their
// registry/repository layout with the tag or digest as the last segment;
// HTTPS URLs use a short hash.
func cacheKey(ref Ref) string {
	switch ref.Kind {
	case KindOCI:
		key := ref.Registry + "/" + ref.Repository
		switch {
		case ref.Digest != "":
			key += "/" + sanitizeSegment(ref.Digest)
		case ref.Tag != "":
			key += "/" + ref.Tag
		}
		return "oci/" + sanitizeSegment(key)
	default:
		sum := sha256.Sum256([]byte(ref.ID))
		return fmt.Sprintf("http/%x", sum[:8])
	}
}

// sanitizeSegment replaces colons, which registries use for ports and
// digests use as an algorithm separator.
func sanitizeSegment(s string) string {
	out := []byte(s)
	for i, b := range out {
		if b == ':' {
			out[i] = '_'
		}
	}
	return string(out)
}
