package feature

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// CheckVersion reports whether the version declared by a resolved feature
// satisfies the major or major.minor pin in ref's tag. Tags that are not
// numeric ("latest", "dev") and non-OCI refs are not checked. The returned
// message explains a mismatch and is empty when ok.
func CheckVersion(ref Ref, fc *FeatureConfig) (string, bool) {
	if ref.Kind != KindOCI || ref.Tag == "" || ref.Tag == "latest" {
		return "", true
	}
	pin, err := version.NewVersion(ref.Tag)
	if err != nil {
		return "", true
	}
	if fc.Version == "" {
		return fmt.Sprintf("feature %q declares no version to match tag %q", fc.ID, ref.Tag), false
	}
	got, err := version.NewVersion(fc.Version)
	if err != nil {
		return fmt.Sprintf("feature %q version %q is not a semantic version", fc.ID, fc.Version), false
	}

	n := strings.Count(strings.TrimPrefix(ref.Tag, "v"), ".") + 1
	want, have := pin.Segments(), got.Segments()
	for i := 0; i < n && i < len(want) && i < len(have); i++ {
		if want[i] != have[i] {
			return fmt.Sprintf("tag %q resolved to %q version %s", ref.Tag, fc.ID, fc.Version), false
		}
	}
	return "", true
}
