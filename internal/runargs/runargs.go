// Package runargs interprets the "runArgs" list of a descriptor the way
// `docker run` would read it.
package runargs

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/pflag"
)

// RunArgs is the analyzed form of a runArgs list.
type RunArgs struct {
	CapAdd      []string `json:"capAdd,omitempty" yaml:"capAdd,omitempty"`
	CapDrop     []string `json:"capDrop,omitempty" yaml:"capDrop,omitempty"`
	SecurityOpt []string `json:"securityOpt,omitempty" yaml:"securityOpt,omitempty"`
	Privileged  bool     `json:"privileged,omitempty" yaml:"privileged,omitempty"`
	Init        bool     `json:"init,omitempty" yaml:"init,omitempty"`
	Mounts      []string `json:"mounts,omitempty" yaml:"mounts,omitempty"`
	Volumes     []string `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	Env         []string `json:"env,omitempty" yaml:"env,omitempty"`
	Publish     []string `json:"publish,omitempty" yaml:"publish,omitempty"`
	Devices     []string `json:"devices,omitempty" yaml:"devices,omitempty"`
	Labels      []string `json:"labels,omitempty" yaml:"labels,omitempty"`
	AddHosts    []string `json:"addHosts,omitempty" yaml:"addHosts,omitempty"`
	Ulimits     []string `json:"ulimits,omitempty" yaml:"ulimits,omitempty"`
	Network     string   `json:"network,omitempty" yaml:"network,omitempty"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Hostname    string   `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	User        string   `json:"user,omitempty" yaml:"user,omitempty"`
	GPUs        string   `json:"gpus,omitempty" yaml:"gpus,omitempty"`
	ShmSize     string   `json:"shmSize,omitempty" yaml:"shmSize,omitempty"`
	Memory      string   `json:"memory,omitempty" yaml:"memory,omitempty"`
	CPUs        string   `json:"cpus,omitempty" yaml:"cpus,omitempty"`
	UsernsMode  string   `json:"userns,omitempty" yaml:"userns,omitempty"`
	IpcMode     string   `json:"ipc,omitempty" yaml:"ipc,omitempty"`
	PidMode     string   `json:"pid,omitempty" yaml:"pid,omitempty"`

	// Unknown holds flags this package does not model. They are passed to
	// the runtime as-is, so they are not errors.
	Unknown []string `json:"unknown,omitempty" yaml:"unknown,omitempty"`
	// Positional holds arguments that are not flags. A runner appends the
	// image after runArgs, so these would be taken as the image name.
	Positional []string `json:"positional,omitempty" yaml:"positional,omitempty"`
}

// Issue is a problem found while reading a single flag.
type Issue struct {
	Flag    string
	Message string
}

// Parse analyzes args. Unknown flags and positional arguments are recorded,
// not rejected; a flag missing its value is an error.
func Parse(args []string) (*RunArgs, error) {
	ra := &RunArgs{}
	rest := args
	for len(rest) > 0 {
		// Each pass binds a fresh value set: pflag replaces a slice default
		// on first Set, so accumulating into ra directly would drop values.
		pass := &RunArgs{}
		fs := newFlagSet(pass)
		err := fs.Parse(rest)
		ra.merge(pass)
		ra.Positional = append(ra.Positional, fs.Args()...)
		if err == nil {
			break
		}
		flag, remaining, ok := skipUnknown(err, rest)
		if !ok {
			return nil, fmt.Errorf("parsing runArgs: %w", err)
		}
		ra.Unknown = append(ra.Unknown, flag)
		rest = remaining
	}
	return ra, nil
}

func (ra *RunArgs) merge(o *RunArgs) {
	ra.CapAdd = append(ra.CapAdd, o.CapAdd...)
	ra.CapDrop = append(ra.CapDrop, o.CapDrop...)
	ra.SecurityOpt = append(ra.SecurityOpt, o.SecurityOpt...)
	ra.Mounts = append(ra.Mounts, o.Mounts...)
	ra.Volumes = append(ra.Volumes, o.Volumes...)
	ra.Env = append(ra.Env, o.Env...)
	ra.Publish = append(ra.Publish, o.Publish...)
	ra.Devices = append(ra.Devices, o.Devices...)
	ra.Labels = append(ra.Labels, o.Labels...)
	ra.AddHosts = append(ra.AddHosts, o.AddHosts...)
	ra.Ulimits = append(ra.Ulimits, o.Ulimits...)
	ra.Privileged = ra.Privileged || o.Privileged
	ra.Init = ra.Init || o.Init
	for _, s := range []struct {
		dst *string
		src string
	}{
		{&ra.Network, o.Network},
		{&ra.Name, o.Name},
		{&ra.Hostname, o.Hostname},
		{&ra.User, o.User},
		{&ra.GPUs, o.GPUs},
		{&ra.ShmSize, o.ShmSize},
		{&ra.Memory, o.Memory},
		{&ra.CPUs, o.CPUs},
		{&ra.UsernsMode, o.UsernsMode},
		{&ra.IpcMode, o.IpcMode},
		{&ra.PidMode, o.PidMode},
	} {
		if s.src != "" {
			*s.dst = s.src
		}
	}
}

// Issues reports values that docker would reject.
func (ra *RunArgs) Issues() []Issue {
	var issues []Issue
	for _, f := range []struct {
		name, value string
	}{
		{"--shm-size", ra.ShmSize},
		{"--memory", ra.Memory},
	} {
		if f.value == "" {
			continue
		}
		if _, err := units.RAMInBytes(f.value); err != nil {
			issues = append(issues, Issue{Flag: f.name, Message: fmt.Sprintf("invalid size %q", f.value)})
		}
	}
	for _, u := range ra.Ulimits {
		if _, err := units.ParseUlimit(u); err != nil {
			issues = append(issues, Issue{Flag: "--ulimit", Message: err.Error()})
		}
	}
	for _, e := range ra.Env {
		if strings.HasPrefix(e, "=") {
			issues = append(issues, Issue{Flag: "--env", Message: fmt.Sprintf("invalid environment variable %q", e)})
		}
	}
	return issues
}

func newFlagSet(ra *RunArgs) *pflag.FlagSet {
	fs := pflag.NewFlagSet("runArgs", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(true)

	// StringArray keeps commas inside values (--mount, --security-opt).
	fs.StringArrayVar(&ra.CapAdd, "cap-add", nil, "")
	fs.StringArrayVar(&ra.CapDrop, "cap-drop", nil, "")
	fs.StringArrayVar(&ra.SecurityOpt, "security-opt", nil, "")
	fs.BoolVar(&ra.Privileged, "privileged", false, "")
	fs.BoolVar(&ra.Init, "init", false, "")
	fs.StringArrayVar(&ra.Mounts, "mount", nil, "")
	fs.StringArrayVarP(&ra.Volumes, "volume", "v", nil, "")
	fs.StringArrayVarP(&ra.Env, "env", "e", nil, "")
	fs.StringArrayVarP(&ra.Publish, "publish", "p", nil, "")
	fs.StringArrayVar(&ra.Devices, "device", nil, "")
	fs.StringArrayVarP(&ra.Labels, "label", "l", nil, "")
	fs.StringArrayVar(&ra.AddHosts, "add-host", nil, "")
	fs.StringArrayVar(&ra.Ulimits, "ulimit", nil, "")
	fs.StringVar(&ra.Network, "network", "", "")
	fs.StringVar(&ra.Network, "net", "", "")
	fs.StringVar(&ra.Name, "name", "", "")
	fs.StringVarP(&ra.Hostname, "hostname", "h", "", "")
	fs.StringVarP(&ra.User, "user", "u", "", "")
	fs.StringVar(&ra.GPUs, "gpus", "", "")
	fs.StringVar(&ra.ShmSize, "shm-size", "", "")
	fs.StringVarP(&ra.Memory, "memory", "m", "", "")
	fs.StringVar(&ra.CPUs, "cpus", "", "")
	fs.StringVar(&ra.UsernsMode, "userns", "", "")
	fs.StringVar(&ra.IpcMode, "ipc", "", "")
	fs.StringVar(&ra.PidMode, "pid", "", "")
	return fs
}

// valuelessLong and valuelessShort list docker run flags this package
// does not model that never take a value.
var valuelessLong = map[string]bool{
	"rm":                    true,
	"interactive":           true,
	"tty":                   true,
	"detach":                true,
	"read-only":             true,
	"publish-all":           true,
	"no-healthcheck":        true,
	"oom-kill-disable":      true,
	"quiet":                 true,
	"disable-content-trust": true,
	"sig-proxy":             true,
}

const valuelessShort = "itdPq"

func takesNoValue(flag string) bool {
	if name, ok := strings.CutPrefix(flag, "--"); ok {
		return valuelessLong[name]
	}
	for _, r := range flag[1:] {
		if !strings.ContainsRune(valuelessShort, r) {
			return false
		}
	}
	return true
}

// skipUnknown locates the unknown flag pflag stopped at and returns the
// arguments after it. A following non-flag argument is treated as the
// unknown flag's value when the flag has no inline "=value" and is not a
// known boolean.
func skipUnknown(err error, args []string) (string, []string, bool) {
	var nerr *pflag.NotExistError
	if !errors.As(err, &nerr) {
		return "", nil, false
	}

	want := "--" + nerr.GetSpecifiedName()
	if group := nerr.GetSpecifiedShortnames(); group != "" {
		want = "-" + group
	}

	for i, a := range args {
		if a == "--" {
			break
		}
		name, _, _ := strings.Cut(a, "=")
		if name != want {
			continue
		}
		flag := a
		next := i + 1
		if !strings.Contains(a, "=") && !takesNoValue(a) && next < len(args) && !strings.HasPrefix(args[next], "-") {
			flag = a + " " + args[next]
			next++
		}
		return flag, args[next:], true
	}
	return "", nil, false
}
