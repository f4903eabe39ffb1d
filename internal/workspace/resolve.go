// Package workspace maps command-line paths to the descriptors they name
// and the project folder each descriptor belongs to.
package workspace

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fgrehm/dcvet/internal/config"
)

// ErrNoDevContainer is returned when no devcontainer configuration is found
// walking up from the start directory.
var ErrNoDevContainer = errors.New("no devcontainer configuration found")

// Target is a descriptor together with the project it configures.
type Target struct {
	// ProjectRoot is the absolute path to the project root directory, the
	// value of ${localWorkspaceFolder}.
	ProjectRoot string

	// ConfigPath is the absolute path to the devcontainer.json file.
	ConfigPath string

	// RelativeConfigPath is the config path relative to ProjectRoot.
	RelativeConfigPath string

	// ID is derived from the project folder name and used as
	// ${devcontainerId}.
	ID string
}

// SubstitutionContext returns the variables a runner would provide for t.
// containerWorkspaceFolder follows the runner default of
// /workspaces/<project folder name>.
func (t *Target) SubstitutionContext(env map[string]string) *config.SubstitutionContext {
	return &config.SubstitutionContext{
		DevContainerID:           t.ID,
		LocalWorkspaceFolder:     t.ProjectRoot,
		ContainerWorkspaceFolder: "/workspaces/" + filepath.Base(t.ProjectRoot),
		Env:                      env,
	}
}

// Resolve walks up from startDir looking for a .devcontainer/ directory
// or .devcontainer.json file.
func Resolve(startDir string) (*Target, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving start directory: %w", err)
	}

	dir := absDir
	for {
		configPath, err := config.Find(dir)
		if err != nil {
			return nil, fmt.Errorf("searching for devcontainer config: %w", err)
		}
		if configPath != "" {
			return newTarget(dir, configPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the filesystem root.
			return nil, ErrNoDevContainer
		}
		dir = parent
	}
}

// ResolveConfigDir resolves a config directory given explicitly (bypasses
// the walk-up). The directory must contain a devcontainer.json directly.
// The project root is the parent of configDir.
func ResolveConfigDir(configDir string) (*Target, error) {
	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	configPath := filepath.Join(absDir, config.FileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no %s found in %s", config.FileName, absDir)
	} else if err != nil {
		return nil, fmt.Errorf("checking %s: %w", config.FileName, err)
	}
	return newTarget(filepath.Dir(absDir), configPath)
}

// ResolveFile resolves a descriptor named by path. The project root is the
// folder above the nearest enclosing .devcontainer directory, or the file's
// own folder when there is none (.devcontainer.json, ad-hoc names).
func ResolveFile(path string) (*Target, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("checking config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", absPath)
	}
	return newTarget(projectRootFor(absPath), absPath)
}

// Targets expands a command-line path: a file is one descriptor, a folder
// yields every descriptor config.FindAll sees in it. A folder holding a
// devcontainer.json directly (such as .devcontainer/node) names that
// descriptor.
func Targets(path string) ([]*Target, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	if !info.IsDir() {
		t, err := ResolveFile(path)
		if err != nil {
			return nil, err
		}
		return []*Target{t}, nil
	}

	absDir, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	paths, err := config.FindAll(absDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		if _, err := os.Stat(filepath.Join(absDir, config.FileName)); err == nil {
			t, err := ResolveFile(filepath.Join(absDir, config.FileName))
			if err != nil {
				return nil, err
			}
			return []*Target{t}, nil
		}
		return nil, fmt.Errorf("%s: %w", absDir, ErrNoDevContainer)
	}

	targets := make([]*Target, 0, len(paths))
	for _, p := range paths {
		t, err := newTarget(absDir, p)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func newTarget(root, configPath string) (*Target, error) {
	relPath, err := filepath.Rel(root, configPath)
	if err != nil {
		return nil, fmt.Errorf("computing relative config path: %w", err)
	}
	return &Target{
		ProjectRoot:        root,
		ConfigPath:         configPath,
		RelativeConfigPath: relPath,
		ID:                 Slugify(filepath.Base(root)),
	}, nil
}

func projectRootFor(configPath string) string {
	dir := filepath.Dir(configPath)
	for d := dir; ; {
		if filepath.Base(d) == ".devcontainer" {
			return filepath.Dir(d)
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify converts a project directory name into an identifier.
// Rules: lowercase, replace non-alphanumeric with hyphens, trim hyphens,
// truncate to 48 chars with hash suffix if longer.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = nonAlphanumeric.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		slug = "workspace"
	}

	const maxLen = 48
	if len(slug) > maxLen {
		hash := fmt.Sprintf("%x", sha256.Sum256([]byte(name)))
		slug = slug[:40] + "-" + hash[:7]
	}

	return slug
}
