package feature

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// buildFeatureTarGz creates an in-memory .tar.gz archive containing a single
// devcontainer-feature.json file with the given content.
func buildFeatureTarGz(t *testing.T, featureJSON string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	data := []byte(featureJSON)
	hdr := &tar.Header{
		Name: FeatureFileName,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	_ = tw.Close()
	_ = gz.Close()
	return buf.Bytes()
}

func httpRef(t *testing.T, url string) Ref {
	t.Helper()
	ref, err := ParseRef(url)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func TestHTTPResolverDownload(t *testing.T) {
	const featureJSON = `{"id":"node","version":"1.0.0"}`
	archive := buildFeatureTarGz(t, featureJSON)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	resolver := &HTTPResolver{
		Cache:  NewFeatureCacheAt(t.TempDir()),
		Client: srv.Client(),
	}
	path, err := resolver.Resolve(context.Background(), httpRef(t, srv.URL+"/features/node.tgz"), "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(path, FeatureFileName))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(got) != featureJSON {
		t.Errorf("content = %q, want %q", string(got), featureJSON)
	}
}

func TestHTTPResolverCacheHit(t *testing.T) {
	archive := buildFeatureTarGz(t, `{"id":"go","version":"1.0.0"}`)

	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	resolver := &HTTPResolver{Cache: NewFeatureCacheAt(t.TempDir()), Client: srv.Client()}
	ref := httpRef(t, srv.URL+"/features/go.tar.gz")
	for i := range 2 {
		if _, err := resolver.Resolve(context.Background(), ref, ""); err != nil {
			t.Fatalf("Resolve #%d: %v", i+1, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 HTTP request, got %d", n)
	}
}

func TestHTTPResolverErrors(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.tgz":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte("not an archive"))
		}
	}))
	t.Cleanup(srv.Close)

	resolver := &HTTPResolver{Cache: NewFeatureCacheAt(t.TempDir()), Client: srv.Client()}
	for _, path := range []string{"/missing.tgz", "/garbage.tgz"} {
		if _, err := resolver.Resolve(context.Background(), httpRef(t, srv.URL+path), ""); err == nil {
			t.Errorf("Resolve(%s) succeeded, want error", path)
		}
	}
	if _, err := resolver.Resolve(context.Background(), Ref{ID: "./x", Kind: KindLocal}, ""); err == nil {
		t.Error("expected error for non-HTTPS ref")
	}
}
