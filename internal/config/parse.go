package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
)

// FileName is the conventional descriptor name.
const FileName = "devcontainer.json"

// Document is a loaded descriptor. Raw always holds the decoded mapping;
// Config is nil when the mapping does not fit the typed model, in which
// case DecodeErr says why.
type Document struct {
	Path      string
	Data      []byte
	Raw       map[string]any
	Config    *DevContainerConfig
	DecodeErr error
}

// SyntaxError reports malformed JSON with a 1-based position.
type SyntaxError struct {
	Line   int
	Column int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Find searches for a devcontainer.json starting from the given folder.
// Search order:
//  1. .devcontainer/devcontainer.json
//  2. .devcontainer.json
//  3. .devcontainer/{subfolder}/devcontainer.json (one level deep)
//
// Returns the absolute path to the config file, or empty string if not found.
func Find(folder string) (string, error) {
	all, err := FindAll(folder)
	if err != nil || len(all) == 0 {
		return "", err
	}
	return all[0], nil
}

// FindAll returns every descriptor in folder in Find's priority order.
// Subfolder configs are sorted by name.
func FindAll(folder string) ([]string, error) {
	absFolder, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving folder path: %w", err)
	}

	var found []string
	devcontainerDir := filepath.Join(absFolder, ".devcontainer")
	for _, p := range []string{
		filepath.Join(devcontainerDir, FileName),
		filepath.Join(absFolder, "."+FileName),
	} {
		if fileExists(p) {
			found = append(found, p)
		}
	}

	entries, err := os.ReadDir(devcontainerDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", devcontainerDir, err)
	}
	var nested []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p := filepath.Join(devcontainerDir, entry.Name(), FileName)
		if fileExists(p) {
			nested = append(nested, p)
		}
	}
	sort.Strings(nested)

	return append(found, nested...), nil
}

// Load reads and decodes the descriptor at path. JSONC comments and
// trailing commas are accepted.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	doc, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	doc.Path = absPath
	if doc.Config != nil {
		doc.Config.Origin = absPath
	}
	return doc, nil
}

// LoadBytes decodes descriptor content. It fails only when the content is
// not a JSON object; type mismatches land in DecodeErr.
func LoadBytes(data []byte) (*Document, error) {
	cleaned := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(cleaned)) == 0 {
		return nil, errors.New("empty document")
	}

	var raw any
	if err := json.Unmarshal(cleaned, &raw); err != nil {
		return nil, withPosition(cleaned, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value must be an object, got %s", jsonTypeName(raw))
	}

	doc := &Document{Data: cleaned, Raw: obj}
	cfg, err := decode(cleaned)
	if err != nil {
		doc.DecodeErr = err
		return doc, nil
	}
	doc.Config = cfg
	return doc, nil
}

func decode(data []byte) (*DevContainerConfig, error) {
	var cfg DevContainerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	migrateLegacy(&cfg)
	return &cfg, nil
}

// migrateLegacy moves the pre-customizations keys under
// customizations.vscode, without overwriting values already there.
func migrateLegacy(cfg *DevContainerConfig) {
	if len(cfg.Extensions) == 0 && len(cfg.Settings) == 0 {
		return
	}

	if cfg.Customizations == nil {
		cfg.Customizations = make(map[string]any)
	}
	vscode, ok := cfg.Customizations["vscode"].(map[string]any)
	if !ok {
		vscode = make(map[string]any)
	}

	if len(cfg.Extensions) > 0 {
		if _, exists := vscode["extensions"]; !exists {
			exts := make([]any, len(cfg.Extensions))
			for i, e := range cfg.Extensions {
				exts[i] = e
			}
			vscode["extensions"] = exts
		}
		cfg.Extensions = nil
	}
	if len(cfg.Settings) > 0 {
		if _, exists := vscode["settings"]; !exists {
			vscode["settings"] = cfg.Settings
		}
		cfg.Settings = nil
	}

	cfg.Customizations["vscode"] = vscode
}

func withPosition(data []byte, err error) error {
	var se *json.SyntaxError
	if !errors.As(err, &se) {
		return err
	}
	line, col := 1, 1
	for i := 0; i < int(se.Offset) && i < len(data); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{Line: line, Column: col, Err: err}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return "object"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
