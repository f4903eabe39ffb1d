package config

import "sort"

// VSCodeCustomizations is the editor section most descriptors carry.
type VSCodeCustomizations struct {
	Extensions []string
	Settings   map[string]any
}

// VSCode extracts customizations.vscode. Non-string extension entries are
// skipped; lint reports them through the schema.
func (c *DevContainerConfig) VSCode() VSCodeCustomizations {
	var out VSCodeCustomizations
	vscode, ok := c.Customizations["vscode"].(map[string]any)
	if !ok {
		return out
	}

	switch exts := vscode["extensions"].(type) {
	case []any:
		for _, e := range exts {
			if s, ok := e.(string); ok {
				out.Extensions = append(out.Extensions, s)
			}
		}
	case []string:
		out.Extensions = append(out.Extensions, exts...)
	}

	if settings, ok := vscode["settings"].(map[string]any); ok {
		out.Settings = settings
	}
	return out
}

// Tools returns the names of the tools that have customizations, sorted.
func (c *DevContainerConfig) Tools() []string {
	return sortedKeys(c.Customizations)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
