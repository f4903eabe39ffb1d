package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fgrehm/dcvet/internal/schema"
)

func (c *checker) checkSchema() {
	problems, err := schema.Validate(c.doc.Data)
	if err != nil {
		c.errorf("", "schema", "schema check failed: %v", err)
		return
	}
	for _, p := range problems {
		c.errorf(p.Pointer, "schema", "%s", p.Message)
	}
	if c.cfg == nil && len(problems) == 0 && c.doc.DecodeErr != nil {
		c.errorf("", "schema", "%v", c.doc.DecodeErr)
	}
}

var legacyKeys = map[string]string{
	"settings":   "customizations.vscode.settings",
	"extensions": "customizations.vscode.extensions",
}

func (c *checker) checkKeys() {
	known := make(map[string]bool)
	folded := make(map[string]string)
	for _, p := range schema.Properties() {
		known[p] = true
		folded[strings.ToLower(p)] = p
	}

	keys := make([]string, 0, len(c.doc.Raw))
	for k := range c.doc.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if to, ok := legacyKeys[k]; ok {
			msg := fmt.Sprintf("%q is deprecated, move it to %s", k, to)
			if legacyShadowed(c.doc.Raw, k) {
				msg += "; the value there takes precedence and this one is ignored"
			}
			c.warnf(pointer(k), "legacy-key", "%s", msg)
			continue
		}
		if known[k] {
			continue
		}
		if p, ok := folded[strings.ToLower(k)]; ok {
			c.warnf(pointer(k), "unknown-key", "unknown property %q (did you mean %q?)", k, p)
			continue
		}
		c.warnf(pointer(k), "unknown-key", "unknown property %q", k)
	}
}

// legacyShadowed reports whether customizations.vscode already carries key.
func legacyShadowed(raw map[string]any, key string) bool {
	custom, ok := raw["customizations"].(map[string]any)
	if !ok {
		return false
	}
	vscode, ok := custom["vscode"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = vscode[key]
	return ok
}
