// Package inspect builds a normalized summary of a descriptor: what a
// runner would start, in the order it would set things up.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/fgrehm/dcvet/internal/compose"
	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/dockerfile"
	"github.com/fgrehm/dcvet/internal/feature"
	"github.com/fgrehm/dcvet/internal/runargs"
)

// Summary is the normalized view of one descriptor.
type Summary struct {
	Path string      `json:"path" yaml:"path"`
	Name string      `json:"name,omitempty" yaml:"name,omitempty"`
	Kind config.Kind `json:"kind" yaml:"kind"`
	// Image is the image the container starts from: the image key, the
	// Dockerfile's base image or the compose service's image.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	Build   *BuildInfo   `json:"build,omitempty" yaml:"build,omitempty"`
	Compose *ComposeInfo `json:"compose,omitempty" yaml:"compose,omitempty"`

	Features []Feature `json:"features,omitempty" yaml:"features,omitempty"`
	// FeatureOrder explains why Features are not in install order.
	FeatureOrder string `json:"featureOrder,omitempty" yaml:"featureOrder,omitempty"`

	Hooks []Hook `json:"hooks,omitempty" yaml:"hooks,omitempty"`

	// Customizations names the tools with a customizations entry.
	Customizations []string       `json:"customizations,omitempty" yaml:"customizations,omitempty"`
	Extensions     []string       `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Settings       map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`

	Mounts          []string         `json:"mounts,omitempty" yaml:"mounts,omitempty"`
	WorkspaceMount  string           `json:"workspaceMount,omitempty" yaml:"workspaceMount,omitempty"`
	WorkspaceFolder string           `json:"workspaceFolder,omitempty" yaml:"workspaceFolder,omitempty"`
	RunArgs         *runargs.RunArgs `json:"runArgs,omitempty" yaml:"runArgs,omitempty"`
	CapAdd          []string         `json:"capAdd,omitempty" yaml:"capAdd,omitempty"`
	SecurityOpt     []string         `json:"securityOpt,omitempty" yaml:"securityOpt,omitempty"`

	ForwardPorts []string `json:"forwardPorts,omitempty" yaml:"forwardPorts,omitempty"`
	AppPort      []string `json:"appPort,omitempty" yaml:"appPort,omitempty"`

	RemoteUser    string `json:"remoteUser,omitempty" yaml:"remoteUser,omitempty"`
	ContainerUser string `json:"containerUser,omitempty" yaml:"containerUser,omitempty"`
	// EffectiveUser is the user the container runs as: containerUser, or
	// the USER left by the Dockerfile or compose service when it is unset.
	EffectiveUser string `json:"effectiveUser,omitempty" yaml:"effectiveUser,omitempty"`

	// Variables lists the ${...} references left in the descriptor.
	Variables []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	// Notes are problems that kept part of the summary from being filled in.
	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// BuildInfo describes a Dockerfile-based descriptor.
type BuildInfo struct {
	Dockerfile string            `json:"dockerfile" yaml:"dockerfile"`
	Context    string            `json:"context" yaml:"context"`
	Target     string            `json:"target,omitempty" yaml:"target,omitempty"`
	Args       map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
	Stages     []string          `json:"stages,omitempty" yaml:"stages,omitempty"`
	// User is the last USER instruction of the target stage chain.
	User string `json:"user,omitempty" yaml:"user,omitempty"`
}

// ComposeInfo describes a compose-based descriptor.
type ComposeInfo struct {
	Files       []string             `json:"files" yaml:"files"`
	Service     *compose.ServiceInfo `json:"service,omitempty" yaml:"service,omitempty"`
	RunServices []string             `json:"runServices,omitempty" yaml:"runServices,omitempty"`
	Services    []string             `json:"services,omitempty" yaml:"services,omitempty"`
}

// Feature is one features entry. Without metadata only ID, Kind and the
// declared options are known.
type Feature struct {
	ID         string            `json:"id" yaml:"id"`
	Kind       feature.RefKind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Version    string            `json:"version,omitempty" yaml:"version,omitempty"`
	Deprecated bool              `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Options    map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
	DependsOn  []string          `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Hook is one lifecycle command. Name is empty for the string and array
// forms.
type Hook struct {
	Stage   string `json:"stage" yaml:"stage"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Command string `json:"command" yaml:"command"`
	Exec    bool   `json:"exec,omitempty" yaml:"exec,omitempty"`
}

// Options configures Build.
type Options struct {
	// Resolver fetches feature metadata. Nil lists features as declared.
	Resolver feature.Resolver
	Logger   *slog.Logger
}

// ErrUndecodable is returned for documents that do not fit the typed
// model.
var ErrUndecodable = errors.New("descriptor cannot be decoded")

// Build summarizes doc. Problems reading Dockerfiles, compose files
// or features end up in Notes; only an undecodable document is an error.
func Build(ctx context.Context, doc *config.Document, opts Options) (*Summary, error) {
	cfg := doc.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, doc.DecodeErr)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Summary{
		Path:            doc.Path,
		Name:            cfg.Name,
		Kind:            cfg.Kind(),
		Mounts:          mountStrings(cfg.Mounts),
		WorkspaceMount:  cfg.WorkspaceMount,
		WorkspaceFolder: cfg.WorkspaceFolder,
		CapAdd:          cfg.CapAdd,
		SecurityOpt:     cfg.SecurityOpt,
		ForwardPorts:    cfg.ForwardPorts,
		AppPort:         cfg.AppPort,
		RemoteUser:      cfg.RemoteUser,
		ContainerUser:   cfg.ContainerUser,
		Variables:       config.Variables(doc),
	}

	s.Customizations = cfg.Tools()
	vscode := cfg.VSCode()
	s.Extensions = vscode.Extensions
	s.Settings = vscode.Settings

	for _, h := range cfg.Hooks() {
		for _, name := range h.Hook.Names() {
			cmd := h.Hook[name]
			s.Hooks = append(s.Hooks, Hook{
				Stage:   h.Key,
				Name:    name,
				Command: cmd.String(),
				Exec:    !cmd.IsShell(),
			})
		}
	}

	if len(cfg.RunArgs) > 0 {
		ra, err := runargs.Parse(cfg.RunArgs)
		if err != nil {
			s.note("runArgs: %v", err)
		} else {
			s.RunArgs = ra
		}
	}

	switch s.Kind {
	case config.KindImage:
		s.Image = cfg.Image
	case config.KindDockerfile:
		s.describeBuild(cfg)
	case config.KindCompose:
		s.describeCompose(ctx, cfg)
	}
	s.EffectiveUser = s.effectiveUser()

	features, err := ResolveFeatures(ctx, cfg, opts.Resolver)
	if err != nil {
		s.FeatureOrder = err.Error()
	}
	s.Features = features

	log.Debug("summary built", "path", doc.Path, "kind", s.Kind, "features", len(s.Features))
	return s, nil
}

func (s *Summary) note(format string, args ...any) {
	s.Notes = append(s.Notes, fmt.Sprintf(format, args...))
}

func (s *Summary) describeBuild(cfg *config.DevContainerConfig) {
	b := &BuildInfo{
		Dockerfile: cfg.DockerfilePath(),
		Context:    cfg.ContextPath(),
		Target:     cfg.BuildTarget(),
		Args:       cfg.BuildArgs(),
	}
	s.Build = b

	data, err := os.ReadFile(b.Dockerfile)
	if err != nil {
		s.note("reading Dockerfile: %v", err)
		return
	}
	df, err := dockerfile.Parse(string(data))
	if err != nil {
		s.note("%v", err)
		return
	}
	b.Stages = df.StageNames()
	if b.Target != "" && !df.HasStage(b.Target) {
		s.note("target stage %q not found", b.Target)
		return
	}
	s.Image = df.FindBaseImage(b.Args, b.Target)
	b.User = df.FindUserStatement(b.Args, nil, b.Target)
}

func (s *Summary) effectiveUser() string {
	switch {
	case s.ContainerUser != "":
		return s.ContainerUser
	case s.Build != nil:
		return s.Build.User
	case s.Compose != nil && s.Compose.Service != nil:
		return s.Compose.Service.User
	}
	return ""
}

func (s *Summary) describeCompose(ctx context.Context, cfg *config.DevContainerConfig) {
	c := &ComposeInfo{
		Files:       cfg.ComposeFiles(),
		RunServices: cfg.RunServices,
	}
	s.Compose = c

	project, err := compose.LoadProject(ctx, c.Files, nil)
	if err != nil {
		s.note("%v", err)
		return
	}
	c.Services = compose.ServiceNames(project)
	if cfg.Service == "" {
		return
	}
	info, err := compose.ServiceInfoFor(project, cfg.Service)
	if err != nil {
		s.note("%v", err)
		return
	}
	c.Service = info
	s.Image = info.Image
}

func mountStrings(mounts []config.Mount) []string {
	if len(mounts) == 0 {
		return nil
	}
	out := make([]string, len(mounts))
	for i, m := range mounts {
		out[i] = m.String()
	}
	return out
}

// ResolveFeatures lists cfg's features. With a resolver, each feature
// carries its metadata and effective options, and the list is in install
// order; the error explains when that order cannot be computed, in which
// case features stay sorted by ID. Without a resolver, features are sorted
// by ID with their declared options.
func ResolveFeatures(ctx context.Context, cfg *config.DevContainerConfig, r feature.Resolver) ([]Feature, error) {
	if len(cfg.Features) == 0 {
		return nil, nil
	}
	if r == nil {
		return declaredFeatures(cfg), nil
	}

	results, err := feature.ResolveAll(ctx, cfg.Features, cfg.Dir(), r)
	if err != nil {
		return nil, fmt.Errorf("resolving features: %w", err)
	}

	var sets []*feature.FeatureSet
	byID := make(map[string]Feature, len(results))
	ids := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.ID)
		f := Feature{ID: res.ID}
		if ref, err := feature.ParseRef(res.ID); err == nil {
			f.Kind = ref.Kind
		}
		if res.Err != nil {
			f.Error = res.Err.Error()
			f.Options = declaredOptions(cfg.Features[res.ID])
			byID[res.ID] = f
			continue
		}
		fc := res.Set.Config
		f.Name = fc.Name
		f.Version = fc.Version
		f.Deprecated = fc.Deprecated
		f.Options = feature.EffectiveOptions(fc, res.Set.Options)
		for dep := range fc.DependsOn {
			f.DependsOn = append(f.DependsOn, dep)
		}
		sort.Strings(f.DependsOn)
		byID[res.ID] = f
		sets = append(sets, res.Set)
	}

	inOrder := func(order []string) []Feature {
		out := make([]Feature, 0, len(order))
		for _, id := range order {
			out = append(out, byID[id])
		}
		return out
	}

	if len(sets) != len(results) {
		return inOrder(ids), errors.New("install order unknown: not every feature resolved")
	}
	ordered, err := feature.OrderFeatures(sets, cfg.OverrideFeatureInstallOrder)
	if err != nil {
		return inOrder(ids), err
	}
	order := make([]string, len(ordered))
	for i, set := range ordered {
		order[i] = set.ConfigID
	}
	return inOrder(order), nil
}

func declaredFeatures(cfg *config.DevContainerConfig) []Feature {
	ids := make([]string, 0, len(cfg.Features))
	for id := range cfg.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Feature, len(ids))
	for i, id := range ids {
		out[i] = Feature{ID: id, Options: declaredOptions(cfg.Features[id])}
		if ref, err := feature.ParseRef(id); err == nil {
			out[i].Kind = ref.Kind
		}
	}
	return out
}

// declaredOptions renders the user options of a features entry the way
// EffectiveOptions does, without defaults.
func declaredOptions(v any) map[string]string {
	switch opts := v.(type) {
	case map[string]any:
		if len(opts) == 0 {
			return nil
		}
		out := make(map[string]string, len(opts))
		for k, v := range opts {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return map[string]string{"version": opts}
	default:
		return nil
	}
}
