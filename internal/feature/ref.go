package feature

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// RefKind classifies how a feature identifier is fetched.
type RefKind string

const (
	KindOCI   RefKind = "oci"
	KindHTTPS RefKind = "https"
	KindLocal RefKind = "local"
	// KindLegacy covers the short IDs ("docker-in-docker") and the
	// GitHub release form ("owner/repo/feature@v1") that runners no
	// longer support.
	KindLegacy RefKind = "legacy"
)

// Ref is a parsed feature identifier.
type Ref struct {
	ID   string  `json:"id" yaml:"id"`
	Kind RefKind `json:"kind" yaml:"kind"`

	// OCI only.
	Registry   string `json:"registry,omitempty" yaml:"registry,omitempty"`
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
	Tag        string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Digest     string `json:"digest,omitempty" yaml:"digest,omitempty"`
}

var (
	shortIDPattern       = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	githubReleasePattern = regexp.MustCompile(`^[\w.-]+/[\w.-]+/[\w.-]+(@[\w.-]+)?$`)
)

// ParseRef classifies and validates a feature identifier.
func ParseRef(id string) (Ref, error) {
	ref := Ref{ID: id}
	switch {
	case id == "":
		return ref, fmt.Errorf("empty feature identifier")
	case strings.HasPrefix(id, "./") || strings.HasPrefix(id, "../"):
		ref.Kind = KindLocal
		return ref, nil
	case strings.HasPrefix(id, "/"):
		return ref, fmt.Errorf("feature %q: local features must be relative to the descriptor (./ or ../)", id)
	case strings.HasPrefix(id, "https://"):
		ref.Kind = KindHTTPS
		return ref, nil
	case strings.HasPrefix(id, "http://"):
		return ref, fmt.Errorf("feature %q: plain HTTP is not supported, use HTTPS", id)
	case strings.Contains(id, "://"):
		return ref, fmt.Errorf("feature %q: unsupported URL scheme", id)
	case isOCIRef(id):
		return parseOCIRef(id)
	case shortIDPattern.MatchString(id), githubReleasePattern.MatchString(id):
		ref.Kind = KindLegacy
		return ref, nil
	}
	return ref, fmt.Errorf("feature %q: unrecognized identifier", id)
}

func parseOCIRef(id string) (Ref, error) {
	ref := Ref{ID: id, Kind: KindOCI}
	parsed, err := name.ParseReference(id, name.Insecure)
	if err != nil {
		return ref, fmt.Errorf("feature %q: %w", id, err)
	}
	repo := parsed.Context()
	ref.Registry = repo.RegistryStr()
	ref.Repository = repo.RepositoryStr()
	switch p := parsed.(type) {
	case name.Tag:
		ref.Tag = p.TagStr()
	case name.Digest:
		ref.Digest = p.DigestStr()
	}
	return ref, nil
}

// Remote reports whether resolving the ref needs a download.
func (r Ref) Remote() bool {
	return r.Kind == KindOCI || r.Kind == KindHTTPS
}

// Base returns the identifier without its tag or digest, used to match
// dependsOn and installsAfter entries. Non-OCI refs are returned unchanged.
func (r Ref) Base() string {
	if r.Kind != KindOCI {
		return r.ID
	}
	return r.Registry + "/" + r.Repository
}

// Name is the last path segment of the ref, the feature's short name.
func (r Ref) Name() string {
	s := r.Base()
	if r.Kind == KindHTTPS {
		s = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(s, ".tgz"), ".tar.gz"), ".tar")
	}
	if r.Kind == KindLegacy {
		s, _, _ = strings.Cut(s, "@")
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// baseID normalizes a raw identifier for dependency matching.
func baseID(id string) string {
	ref, err := ParseRef(id)
	if err != nil {
		return id
	}
	return ref.Base()
}

// isOCIRef returns true for refs like "ghcr.io/org/repo:tag": no URL
// scheme, a host/path shape, and a first segment containing a dot or a
// port colon.
func isOCIRef(ref string) bool {
	host, rest, ok := strings.Cut(ref, "/")
	if !ok || rest == "" {
		return false
	}
	if !strings.ContainsAny(host, ".:") {
		return false
	}
	for _, ch := range host {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '.', ch == ':', ch == '-', ch == '_':
		default:
			return false
		}
	}
	return true
}
