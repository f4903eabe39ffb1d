package feature

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fgrehm/dcvet/internal/config"
)

// FeatureFileName is the expected name for feature metadata files.
const FeatureFileName = "devcontainer-feature.json"

// ErrOffline is returned when a remote feature is needed but downloads are
// disabled and nothing is cached.
var ErrOffline = errors.New("feature not cached and downloads are disabled")

// FeatureSet pairs a feature's configuration with its resolved location and
// the user-provided options from devcontainer.json.
type FeatureSet struct {
	ConfigID string
	Ref      Ref
	Folder   string
	Config   *FeatureConfig
	Options  any
}

// FeatureConfig represents a parsed devcontainer-feature.json file.
type FeatureConfig struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name,omitempty"`
	Version          string                   `json:"version,omitempty"`
	Description      string                   `json:"description,omitempty"`
	DocumentationURL string                   `json:"documentationURL,omitempty"`
	Deprecated       bool                     `json:"deprecated,omitempty"`
	LegacyIDs        []string                 `json:"legacyIds,omitempty"`
	Options          map[string]FeatureOption `json:"options,omitempty"`
	DependsOn        DependsOn                `json:"dependsOn,omitempty"`
	InstallsAfter    []string                 `json:"installsAfter,omitempty"`
	CapAdd           []string                 `json:"capAdd,omitempty"`
	Init             *bool                    `json:"init,omitempty"`
	Privileged       *bool                    `json:"privileged,omitempty"`
	SecurityOpt      []string                 `json:"securityOpt,omitempty"`
	Mounts           []config.Mount           `json:"mounts,omitempty"`
	ContainerEnv     map[string]string        `json:"containerEnv,omitempty"`
}

// FeatureOption describes a single option that a feature accepts.
type FeatureOption struct {
	Default     config.StrBool `json:"default,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type,omitempty"`
	Enum        []string       `json:"enum,omitempty"`
	Proposals   []string       `json:"proposals,omitempty"`
}

// DependsOn holds hard dependencies as a map of feature IDs to their options.
type DependsOn map[string]any

// UnmarshalJSON accepts only JSON objects (or null).
func (d *DependsOn) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		var v any
		if json.Unmarshal(data, &v) == nil {
			return fmt.Errorf("dependsOn must be an object, not %T", v)
		}
		return fmt.Errorf("dependsOn must be an object: %w", err)
	}
	*d = m
	return nil
}
