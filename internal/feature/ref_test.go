package feature

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		id   string
		want Ref
	}{
		{
			"ghcr.io/devcontainers/features/go:1",
			Ref{ID: "ghcr.io/devcontainers/features/go:1", Kind: KindOCI, Registry: "ghcr.io", Repository: "devcontainers/features/go", Tag: "1"},
		},
		{
			"ghcr.io/devcontainers/features/go",
			Ref{ID: "ghcr.io/devcontainers/features/go", Kind: KindOCI, Registry: "ghcr.io", Repository: "devcontainers/features/go", Tag: "latest"},
		},
		{
			"localhost:5000/features/go:1.2",
			Ref{ID: "localhost:5000/features/go:1.2", Kind: KindOCI, Registry: "localhost:5000", Repository: "features/go", Tag: "1.2"},
		},
		{"./local", Ref{ID: "./local", Kind: KindLocal}},
		{"../shared/feat", Ref{ID: "../shared/feat", Kind: KindLocal}},
		{"https://example.com/feature.tgz", Ref{ID: "https://example.com/feature.tgz", Kind: KindHTTPS}},
		{"docker-in-docker", Ref{ID: "docker-in-docker", Kind: KindLegacy}},
		{"owner/repo/feature@v1", Ref{ID: "owner/repo/feature@v1", Kind: KindLegacy}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseRef(tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseRef() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRefErrors(t *testing.T) {
	for _, id := range []string{
		"",
		"/abs/path",
		"http://example.com/feature.tgz",
		"ftp://example.com/feature.tgz",
		"ghcr.io/Devcontainers/Features/Go:1",
		"ghcr.io/org/feat:bad tag",
		"Not A Feature",
	} {
		if _, err := ParseRef(id); err == nil {
			t.Errorf("ParseRef(%q) succeeded, want error", id)
		}
	}
}

func TestRefName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"ghcr.io/devcontainers/features/go:1", "go"},
		{"./features/tooling", "tooling"},
		{"https://example.com/dl/node.tgz", "node"},
		{"https://example.com/dl/node.tar.gz", "node"},
		{"owner/repo/feature@v1", "feature"},
		{"git", "git"},
	}
	for _, tt := range tests {
		ref, err := ParseRef(tt.id)
		if err != nil {
			t.Fatalf("ParseRef(%q): %v", tt.id, err)
		}
		if got := ref.Name(); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestIsOCIRef(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"ghcr.io/devcontainers/features/go:1", true},
		{"registry.example.com/org/repo:latest", true},
		{"localhost:5000/features/go:1", true},
		{"localhost/features/go", false},
		{"./features/node", false},
		{"https://example.com/feature.tar.gz", false},
		{"just-a-name", false},
		{"no-dot/path:tag", false},
		{"ghcr.io/", false},
	}
	for _, tc := range tests {
		if got := isOCIRef(tc.ref); got != tc.want {
			t.Errorf("isOCIRef(%q) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}
