package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fgrehm/dcvet/internal/runargs"
	"github.com/fgrehm/dcvet/internal/ui"
)

// Formats lists the output formats Write accepts.
var Formats = []string{"text", "json", "yaml"}

// Write renders s to w in format. Text output goes through u.
func Write(w io.Writer, u *ui.UI, s *Summary, format string) error {
	switch format {
	case "", "text":
		Print(u, s)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want %s)", format, strings.Join(Formats, ", "))
	}
}

// Print writes the human-readable summary.
func Print(u *ui.UI, s *Summary) {
	u.Header(s.Path)
	if s.Name != "" {
		u.Keyval("name", s.Name)
	}
	u.Keyval("kind", string(s.Kind))
	if s.Image != "" {
		u.Keyval("image", s.Image)
	}
	if b := s.Build; b != nil {
		u.Keyval("dockerfile", b.Dockerfile)
		u.Keyval("context", b.Context)
		if b.Target != "" {
			u.Keyval("target", b.Target)
		}
		if len(b.Stages) > 0 {
			u.Keyval("stages", strings.Join(b.Stages, ", "))
		}
		for _, k := range sortedKeys(b.Args) {
			u.Keyval("build arg", k+"="+b.Args[k])
		}
	}
	if c := s.Compose; c != nil {
		for _, f := range c.Files {
			u.Keyval("compose", f)
		}
		if c.Service != nil {
			u.Keyval("service", c.Service.Name)
			if c.Service.HasBuild() {
				u.Keyval("built from", c.Service.BuildCtx)
			}
		}
		if len(c.RunServices) > 0 {
			u.Keyval("runServices", strings.Join(c.RunServices, ", "))
		}
	}
	if s.RemoteUser != "" {
		u.Keyval("remoteUser", s.RemoteUser)
	}
	if s.ContainerUser != "" {
		u.Keyval("containerUser", s.ContainerUser)
	} else if s.EffectiveUser != "" {
		u.Keyval("runs as", s.EffectiveUser)
	}
	if s.WorkspaceFolder != "" {
		u.Keyval("workspace", s.WorkspaceFolder)
	}
	if len(s.Customizations) > 0 {
		u.Keyval("customizations", strings.Join(s.Customizations, ", "))
	}

	if len(s.Features) > 0 {
		u.Header("Features")
		PrintFeatures(u, s.Features)
		if s.FeatureOrder != "" {
			u.Dim("  " + s.FeatureOrder)
		}
	}

	if len(s.Hooks) > 0 {
		u.Header("Lifecycle")
		rows := make([][]string, len(s.Hooks))
		for i, h := range s.Hooks {
			rows[i] = []string{h.Stage, h.Name, h.Command}
		}
		u.Table([]string{"STAGE", "NAME", "COMMAND"}, rows)
	}

	if len(s.Mounts) > 0 || s.WorkspaceMount != "" {
		u.Header("Mounts")
		if s.WorkspaceMount != "" {
			u.Keyval("workspace", s.WorkspaceMount)
		}
		for _, m := range s.Mounts {
			u.Keyval("mount", m)
		}
	}

	if ra := s.RunArgs; ra != nil {
		u.Header("Run arguments")
		printRunArgs(u, ra)
	}

	if len(s.ForwardPorts) > 0 || len(s.AppPort) > 0 {
		u.Header("Ports")
		if len(s.ForwardPorts) > 0 {
			u.Keyval("forward", strings.Join(s.ForwardPorts, ", "))
		}
		if len(s.AppPort) > 0 {
			u.Keyval("publish", strings.Join(s.AppPort, ", "))
		}
	}

	if len(s.Extensions) > 0 || len(s.Settings) > 0 {
		u.Header("VS Code")
		for _, e := range s.Extensions {
			u.Keyval("extension", e)
		}
		for _, k := range sortedKeys(s.Settings) {
			u.Keyval("setting", fmt.Sprintf("%s = %v", k, s.Settings[k]))
		}
	}

	if len(s.Variables) > 0 {
		u.Header("Variables")
		for _, v := range s.Variables {
			u.Dim("  " + v)
		}
	}

	for _, n := range s.Notes {
		u.Warn(n)
	}
}

// PrintFeatures writes one table row per feature, in list order.
func PrintFeatures(u *ui.UI, features []Feature) {
	rows := make([][]string, len(features))
	for i, f := range features {
		version := f.Version
		if f.Deprecated {
			version += " (deprecated)"
		}
		opts := make([]string, 0, len(f.Options))
		for _, k := range sortedKeys(f.Options) {
			opts = append(opts, k+"="+f.Options[k])
		}
		detail := strings.Join(opts, " ")
		if f.Error != "" {
			detail = f.Error
		}
		rows[i] = []string{fmt.Sprint(i + 1), f.ID, version, detail}
	}
	u.Table([]string{"#", "FEATURE", "VERSION", "OPTIONS"}, rows)
}

func printRunArgs(u *ui.UI, ra *runargs.RunArgs) {
	list := func(key string, values []string) {
		if len(values) > 0 {
			u.Keyval(key, strings.Join(values, ", "))
		}
	}
	if ra.Privileged {
		u.Keyval("privileged", "yes")
	}
	if ra.Init {
		u.Keyval("init", "yes")
	}
	list("cap-add", ra.CapAdd)
	list("cap-drop", ra.CapDrop)
	list("security", ra.SecurityOpt)
	list("mount", ra.Mounts)
	list("volume", ra.Volumes)
	list("publish", ra.Publish)
	list("env", ra.Env)
	list("device", ra.Devices)
	for _, kv := range []struct{ key, value string }{
		{"network", ra.Network},
		{"user", ra.User},
		{"gpus", ra.GPUs},
		{"shm-size", ra.ShmSize},
		{"memory", ra.Memory},
		{"cpus", ra.CPUs},
	} {
		if kv.value != "" {
			u.Keyval(kv.key, kv.value)
		}
	}
	list("unchecked", ra.Unknown)
	list("positional", ra.Positional)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
