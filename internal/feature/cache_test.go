package feature

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func storeFeature(id string) func(string) error {
	return func(d string) error {
		return os.WriteFile(filepath.Join(d, FeatureFileName), []byte(`{"id":"`+id+`"}`), 0o644)
	}
}

func TestFeatureCacheGetMiss(t *testing.T) {
	cache := NewFeatureCacheAt(t.TempDir())
	if _, ok := cache.Get("does/not/exist"); ok {
		t.Fatal("expected Get to return false for missing key")
	}
}

func TestFeatureCacheStoreThenGet(t *testing.T) {
	cache := NewFeatureCacheAt(t.TempDir())

	const key = "oci/ghcr.io/devcontainers/features/go/1"
	path, err := cache.Store(context.Background(), key, storeFeature("go"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if path != cache.Path(key) {
		t.Errorf("Store path = %q, want %q", path, cache.Path(key))
	}
	got, ok := cache.Get(key)
	if !ok || got != path {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
	if _, err := os.Stat(filepath.Join(got, FeatureFileName)); err != nil {
		t.Errorf("stored entry missing metadata: %v", err)
	}
}

func TestFeatureCacheStoreRollback(t *testing.T) {
	dir := t.TempDir()
	cache := NewFeatureCacheAt(dir)

	const key = "some/feature"
	populateErr := errors.New("populate failed")

	_, err := cache.Store(context.Background(), key, func(string) error {
		return populateErr
	})
	if !errors.Is(err, populateErr) {
		t.Fatalf("expected populate error, got: %v", err)
	}
	if _, ok := cache.Get(key); ok {
		t.Error("expected no entry after rollback")
	}
	// Only the lock file remains next to where the entry would be.
	entries, err := os.ReadDir(filepath.Join(dir, "some"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("leftover scratch dir %q", e.Name())
		}
	}
}

func TestFeatureCacheStoreConcurrent(t *testing.T) {
	cache := NewFeatureCacheAt(t.TempDir())

	const key = "oci/ghcr.io/acme/features/tool/1"
	var calls atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Store(context.Background(), key, func(d string) error {
				calls.Add(1)
				return storeFeature("tool")(d)
			})
			if err != nil {
				t.Errorf("Store: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("populate called %d times, want 1", n)
	}
}

func TestFeatureCacheStoreCanceled(t *testing.T) {
	cache := NewFeatureCacheAt(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cache.Store(ctx, "k", storeFeature("k")); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestHomeDir(t *testing.T) {
	t.Setenv("DCVET_HOME", "/custom/home")
	got, err := HomeDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/custom/home" {
		t.Errorf("HomeDir() = %q", got)
	}
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"ghcr.io/devcontainers/features/go:1", "oci/ghcr.io/devcontainers/features/go/1"},
		{"ghcr.io/devcontainers/features/node", "oci/ghcr.io/devcontainers/features/node/latest"},
		{"registry.example.com:5000/features/go:1", "oci/registry.example.com_5000/features/go/1"},
	}
	for _, tc := range tests {
		ref, err := ParseRef(tc.id)
		if err != nil {
			t.Fatal(err)
		}
		if got := cacheKey(ref); got != tc.want {
			t.Errorf("cacheKey(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}

	a, _ := ParseRef("https://example.com/a.tgz")
	b, _ := ParseRef("https://example.com/b.tgz")
	if cacheKey(a) == cacheKey(b) {
		t.Error("distinct URLs share a cache key")
	}
}
