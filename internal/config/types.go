package config

import (
	"path/filepath"
)

// Kind identifies how a descriptor produces its container.
type Kind string

const (
	KindImage      Kind = "image"
	KindDockerfile Kind = "dockerfile"
	KindCompose    Kind = "compose"
	KindUnknown    Kind = "unknown"
)

// DevContainerConfig is a decoded devcontainer.json.
type DevContainerConfig struct {
	Name string `json:"name,omitempty"`

	// Container source. Exactly one of Image, Build/Dockerfile or
	// DockerComposeFile is expected.
	Image             string        `json:"image,omitempty"`
	Build             *BuildOptions `json:"build,omitempty"`
	Dockerfile        string        `json:"dockerfile,omitempty"`
	Context           string        `json:"context,omitempty"`
	DockerComposeFile StrArray      `json:"dockerComposeFile,omitempty"`
	Service           string        `json:"service,omitempty"`
	RunServices       []string      `json:"runServices,omitempty"`

	Features                    map[string]any `json:"features,omitempty"`
	OverrideFeatureInstallOrder []string       `json:"overrideFeatureInstallOrder,omitempty"`

	InitializeCommand    LifecycleHook `json:"initializeCommand,omitempty"`
	OnCreateCommand      LifecycleHook `json:"onCreateCommand,omitempty"`
	UpdateContentCommand LifecycleHook `json:"updateContentCommand,omitempty"`
	PostCreateCommand    LifecycleHook `json:"postCreateCommand,omitempty"`
	PostStartCommand     LifecycleHook `json:"postStartCommand,omitempty"`
	PostAttachCommand    LifecycleHook `json:"postAttachCommand,omitempty"`
	WaitFor              string        `json:"waitFor,omitempty"`

	Customizations map[string]any `json:"customizations,omitempty"`

	RemoteUser          string            `json:"remoteUser,omitempty"`
	ContainerUser       string            `json:"containerUser,omitempty"`
	UpdateRemoteUserUID *bool             `json:"updateRemoteUserUID,omitempty"`
	UserEnvProbe        string            `json:"userEnvProbe,omitempty"`
	RemoteEnv           map[string]string `json:"remoteEnv,omitempty"`
	ContainerEnv        map[string]string `json:"containerEnv,omitempty"`

	Mounts         []Mount  `json:"mounts,omitempty"`
	WorkspaceMount string   `json:"workspaceMount,omitempty"`
	RunArgs        []string `json:"runArgs,omitempty"`
	CapAdd         []string `json:"capAdd,omitempty"`
	SecurityOpt    []string `json:"securityOpt,omitempty"`
	Privileged     *bool    `json:"privileged,omitempty"`
	Init           *bool    `json:"init,omitempty"`

	ForwardPorts         StrIntArray              `json:"forwardPorts,omitempty"`
	AppPort              StrIntArray              `json:"appPort,omitempty"`
	PortsAttributes      map[string]PortAttribute `json:"portsAttributes,omitempty"`
	OtherPortsAttributes *PortAttribute           `json:"otherPortsAttributes,omitempty"`

	WorkspaceFolder  string            `json:"workspaceFolder,omitempty"`
	OverrideCommand  *bool             `json:"overrideCommand,omitempty"`
	ShutdownAction   string            `json:"shutdownAction,omitempty"`
	HostRequirements *HostRequirements `json:"hostRequirements,omitempty"`

	// Legacy keys, moved under customizations.vscode on load.
	Settings   map[string]any `json:"settings,omitempty"`
	Extensions []string       `json:"extensions,omitempty"`

	// Origin is the absolute path to the devcontainer.json file (not serialized).
	Origin string `json:"-"`
}

// BuildOptions is the "build" object of a Dockerfile-based descriptor.
type BuildOptions struct {
	Dockerfile string             `json:"dockerfile,omitempty"`
	Context    string             `json:"context,omitempty"`
	Args       map[string]*string `json:"args,omitempty"`
	Target     string             `json:"target,omitempty"`
	CacheFrom  StrArray           `json:"cacheFrom,omitempty"`
	Options    []string           `json:"options,omitempty"`
}

// HostRequirements defines minimum host resource requirements.
type HostRequirements struct {
	CPUs    int    `json:"cpus,omitempty"`
	Memory  string `json:"memory,omitempty"`
	Storage string `json:"storage,omitempty"`
	GPU     any    `json:"gpu,omitempty"`
}

// PortAttribute describes port forwarding metadata.
type PortAttribute struct {
	Label            string `json:"label,omitempty"`
	Protocol         string `json:"protocol,omitempty"`
	OnAutoForward    string `json:"onAutoForward,omitempty"`
	RequireLocalPort bool   `json:"requireLocalPort,omitempty"`
	ElevateIfNeeded  bool   `json:"elevateIfNeeded,omitempty"`
}

// Kind reports which container source the descriptor uses. Compose wins
// over Dockerfile, which wins over image, matching how runners pick.
func (c *DevContainerConfig) Kind() Kind {
	switch {
	case len(c.DockerComposeFile) > 0:
		return KindCompose
	case c.Build != nil && c.Build.Dockerfile != "", c.Dockerfile != "":
		return KindDockerfile
	case c.Image != "":
		return KindImage
	default:
		return KindUnknown
	}
}

// Dir returns the directory holding the descriptor.
func (c *DevContainerConfig) Dir() string {
	return filepath.Dir(c.Origin)
}

// ContextPath returns the resolved build context path relative to
// the devcontainer.json directory.
func (c *DevContainerConfig) ContextPath() string {
	switch {
	case c.Build != nil && c.Build.Context != "":
		return filepath.Join(c.Dir(), c.Build.Context)
	case c.Context != "":
		return filepath.Join(c.Dir(), c.Context)
	default:
		return c.Dir()
	}
}

// DockerfilePath returns the resolved Dockerfile path, or empty string for
// descriptors that do not build.
func (c *DevContainerConfig) DockerfilePath() string {
	switch {
	case c.Build != nil && c.Build.Dockerfile != "":
		return filepath.Join(c.Dir(), c.Build.Dockerfile)
	case c.Dockerfile != "":
		return filepath.Join(c.Dir(), c.Dockerfile)
	default:
		return ""
	}
}

// BuildTarget returns build.target, if any.
func (c *DevContainerConfig) BuildTarget() string {
	if c.Build == nil {
		return ""
	}
	return c.Build.Target
}

// BuildArgs returns build.args with nil values dropped.
func (c *DevContainerConfig) BuildArgs() map[string]string {
	if c.Build == nil || len(c.Build.Args) == 0 {
		return nil
	}
	args := make(map[string]string, len(c.Build.Args))
	for k, v := range c.Build.Args {
		if v != nil {
			args[k] = *v
		}
	}
	return args
}

// ComposeFiles returns the compose file paths resolved against the
// descriptor directory.
func (c *DevContainerConfig) ComposeFiles() []string {
	if len(c.DockerComposeFile) == 0 {
		return nil
	}
	paths := make([]string, len(c.DockerComposeFile))
	for i, f := range c.DockerComposeFile {
		if filepath.IsAbs(f) {
			paths[i] = f
		} else {
			paths[i] = filepath.Join(c.Dir(), f)
		}
	}
	return paths
}

// Hooks returns the lifecycle commands in execution order, skipping unset
// ones.
func (c *DevContainerConfig) Hooks() []NamedHook {
	all := []NamedHook{
		{"initializeCommand", c.InitializeCommand},
		{"onCreateCommand", c.OnCreateCommand},
		{"updateContentCommand", c.UpdateContentCommand},
		{"postCreateCommand", c.PostCreateCommand},
		{"postStartCommand", c.PostStartCommand},
		{"postAttachCommand", c.PostAttachCommand},
	}
	hooks := all[:0]
	for _, h := range all {
		if h.Hook != nil {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

// NamedHook pairs a lifecycle key with its command.
type NamedHook struct {
	Key  string
	Hook LifecycleHook
}
