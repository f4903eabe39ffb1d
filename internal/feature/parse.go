package feature

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// ParseFeatureConfig reads the devcontainer-feature.json (JSONC) in folder.
func ParseFeatureConfig(folder string) (*FeatureConfig, error) {
	path := filepath.Join(folder, FeatureFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var fc FeatureConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if fc.ID == "" {
		return nil, fmt.Errorf("parsing %s: missing \"id\"", path)
	}
	return &fc, nil
}
