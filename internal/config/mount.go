package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Mount is one entry of "mounts". It accepts the Docker --mount string
// form ("type=bind,source=/a,target=/b") and the object form.
type Mount struct {
	Type        string `json:"type,omitempty"`
	Source      string `json:"source,omitempty"`
	Target      string `json:"target,omitempty"`
	ReadOnly    bool   `json:"readonly,omitempty"`
	Consistency string `json:"consistency,omitempty"`
	External    bool   `json:"external,omitempty"`

	// Options holds keys the parser does not interpret (e.g. bind-propagation,
	// volume-opt). Malformed holds parts that are not key=value pairs.
	Options   map[string]string `json:"-"`
	Malformed []string          `json:"-"`
	// Raw is the declared string form, empty for objects.
	Raw string `json:"-"`
}

// knownMountOptions are keys Docker accepts but this package does not model.
var knownMountOptions = map[string]bool{
	"bind-propagation":  true,
	"bind-nonrecursive": true,
	"bind-recursive":    true,
	"volume-driver":     true,
	"volume-label":      true,
	"volume-nocopy":     true,
	"volume-opt":        true,
	"volume-subpath":    true,
	"tmpfs-size":        true,
	"tmpfs-mode":        true,
	"image-subpath":     true,
}

// ParseMount parses a mount string in Docker --mount format.
func ParseMount(s string) Mount {
	m := Mount{Raw: s}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			// Bare "readonly"/"ro" is a valid flag.
			if part == "readonly" || part == "ro" {
				m.ReadOnly = true
				continue
			}
			m.Malformed = append(m.Malformed, part)
			continue
		}
		switch strings.ToLower(k) {
		case "type":
			m.Type = v
		case "src", "source":
			m.Source = v
		case "dst", "destination", "target":
			m.Target = v
		case "readonly", "ro":
			m.ReadOnly = v == "" || v == "1" || strings.EqualFold(v, "true")
		case "consistency":
			m.Consistency = v
		default:
			if m.Options == nil {
				m.Options = make(map[string]string)
			}
			m.Options[k] = v
		}
	}
	return m
}

// UnknownOptions returns option keys Docker would reject, sorted.
func (m Mount) UnknownOptions() []string {
	var keys []string
	for k := range m.Options {
		if !knownMountOptions[strings.ToLower(k)] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// String returns the mount in Docker --mount string format.
func (m Mount) String() string {
	parts := make([]string, 0, 4+len(m.Options))
	if m.Type != "" {
		parts = append(parts, "type="+m.Type)
	}
	if m.Source != "" {
		parts = append(parts, "source="+m.Source)
	}
	if m.Target != "" {
		parts = append(parts, "target="+m.Target)
	}
	if m.ReadOnly {
		parts = append(parts, "readonly")
	}
	if m.Consistency != "" {
		parts = append(parts, "consistency="+m.Consistency)
	}
	keys := make([]string, 0, len(m.Options))
	for k := range m.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+m.Options[k])
	}
	return strings.Join(parts, ",")
}

// MarshalJSON writes the normalized string form.
func (m Mount) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON handles both string format and object format for mounts.
func (m *Mount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = ParseMount(s)
		return nil
	}

	type mountAlias Mount
	var alias mountAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("mount must be a string or object: %w", err)
	}
	*m = Mount(alias)
	return nil
}
