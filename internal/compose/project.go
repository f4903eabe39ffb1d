// Package compose loads the Docker Compose files a descriptor points at.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
)

// ServiceInfo is the part of a compose service a descriptor depends on.
type ServiceInfo struct {
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	// BuildCtx is the absolute build context; empty without a build section.
	BuildCtx   string   `json:"buildContext,omitempty" yaml:"buildContext,omitempty"`
	Dockerfile string   `json:"dockerfile,omitempty" yaml:"dockerfile,omitempty"`
	Target     string   `json:"target,omitempty" yaml:"target,omitempty"`
	User       string   `json:"user,omitempty" yaml:"user,omitempty"`
	Profiles   []string `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	// Disabled is set for services hidden behind an inactive profile.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// HasBuild reports whether the service is built rather than pulled.
func (s *ServiceInfo) HasBuild() bool {
	return s.BuildCtx != ""
}

// LoadProject loads a Compose project from paths. Variables are taken from
// the process environment, then from envFiles and a .env file next to the
// first compose file; the process environment wins.
func LoadProject(ctx context.Context, paths []string, envFiles []string) (*types.Project, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no compose files specified")
	}

	configFiles := make([]types.ConfigFile, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving path %s: %w", p, err)
		}
		configFiles[i] = types.ConfigFile{Filename: abs}
	}
	workingDir := filepath.Dir(configFiles[0].Filename)

	env, err := environment(workingDir, envFiles)
	if err != nil {
		return nil, err
	}

	details := types.ConfigDetails{
		WorkingDir:  workingDir,
		ConfigFiles: configFiles,
		Environment: env,
	}
	project, err := loader.LoadWithContext(ctx, details, func(opts *loader.Options) {
		opts.SkipConsistencyCheck = true
		opts.SetProjectName(filepath.Base(workingDir), false)
	})
	if err != nil {
		return nil, fmt.Errorf("loading compose project: %w", err)
	}
	return project, nil
}

func environment(workingDir string, envFiles []string) (types.Mapping, error) {
	env := make(types.Mapping)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	files := slices.Clone(envFiles)
	dotEnv := filepath.Join(workingDir, ".env")
	if _, err := os.Stat(dotEnv); err == nil {
		files = append(files, dotEnv)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", dotEnv, err)
	}
	if len(files) == 0 {
		return env, nil
	}

	fromFiles, err := dotenv.GetEnvFromFile(env, files)
	if err != nil {
		return nil, fmt.Errorf("reading env files: %w", err)
	}
	for k, v := range fromFiles {
		if _, exists := env[k]; !exists {
			env[k] = v
		}
	}
	return env, nil
}

// ServiceNames returns every service name in the project, including
// services disabled by profiles, sorted.
func ServiceNames(project *types.Project) []string {
	names := append(project.ServiceNames(), project.DisabledServiceNames()...)
	slices.Sort(names)
	return names
}

// ServiceInfoFor extracts the named service from a loaded project.
func ServiceInfoFor(project *types.Project, serviceName string) (*ServiceInfo, error) {
	svc, ok := project.Services[serviceName]
	disabled := false
	if !ok {
		svc, ok = project.DisabledServices[serviceName]
		disabled = true
	}
	if !ok {
		return nil, fmt.Errorf("service %q not found in compose project (services: %s)",
			serviceName, strings.Join(ServiceNames(project), ", "))
	}

	info := &ServiceInfo{
		Name:     serviceName,
		Image:    svc.Image,
		User:     svc.User,
		Profiles: svc.Profiles,
		Disabled: disabled,
	}
	if svc.Build != nil {
		info.BuildCtx = svc.Build.Context
		info.Dockerfile = svc.Build.Dockerfile
		info.Target = svc.Build.Target
	}
	return info, nil
}
