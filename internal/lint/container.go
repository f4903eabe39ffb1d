package lint

import (
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"

	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/runargs"
)

// capabilities are the Linux capability names docker accepts, without the
// CAP_ prefix.
var capabilities = []string{
	"ALL",
	"AUDIT_CONTROL", "AUDIT_READ", "AUDIT_WRITE",
	"BLOCK_SUSPEND", "BPF", "CHECKPOINT_RESTORE", "CHOWN",
	"DAC_OVERRIDE", "DAC_READ_SEARCH",
	"FOWNER", "FSETID",
	"IPC_LOCK", "IPC_OWNER",
	"KILL", "LEASE", "LINUX_IMMUTABLE",
	"MAC_ADMIN", "MAC_OVERRIDE", "MKNOD",
	"NET_ADMIN", "NET_BIND_SERVICE", "NET_BROADCAST", "NET_RAW",
	"PERFMON", "SETFCAP", "SETGID", "SETPCAP", "SETUID",
	"SYS_ADMIN", "SYS_BOOT", "SYS_CHROOT", "SYS_MODULE", "SYS_NICE",
	"SYS_PACCT", "SYS_PTRACE", "SYS_RAWIO", "SYS_RESOURCE", "SYS_TIME",
	"SYS_TTY_CONFIG", "SYSLOG", "WAKE_ALARM",
}

var securityOptKeys = []string{
	"apparmor", "label", "no-new-privileges", "seccomp", "systempaths", "writable-cgroups",
}

var mountTypes = []string{"bind", "volume", "tmpfs"}

func normalizeCap(s string) string {
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "CAP_")
}

func (c *checker) checkMounts() {
	for i, m := range c.cfg.Mounts {
		c.checkMount(pointer("mounts", i), "mount", m)
	}
}

func (c *checker) checkMount(p, rule string, m config.Mount) {
	for _, part := range m.Malformed {
		c.errorf(p, rule, "malformed mount option %q, want key=value", part)
	}

	switch {
	case m.Type == "":
		c.warnf(p, rule, "mount type not set, docker defaults to volume")
	case hasVariable(m.Type):
	case !slices.Contains(mountTypes, m.Type):
		c.errorf(p, rule, "unknown mount type %q, want one of %s", m.Type, strings.Join(mountTypes, ", "))
	}

	switch {
	case m.Target == "":
		c.errorf(p, rule, "mount target is required")
	case !hasVariable(m.Target) && !path.IsAbs(m.Target):
		c.errorf(p, rule, "mount target %q must be an absolute path", m.Target)
	}

	switch m.Type {
	case "bind":
		if m.Source == "" {
			c.errorf(p, rule, "bind mounts require a source")
		} else if !hasVariable(m.Source) && !path.IsAbs(m.Source) && !isWindowsPath(m.Source) {
			c.warnf(p, rule, "bind source %q is relative, docker expects an absolute path", m.Source)
		}
	case "tmpfs":
		if m.Source != "" {
			c.warnf(p, rule, "tmpfs mounts take no source, %q is ignored", m.Source)
		}
	}

	for _, k := range m.UnknownOptions() {
		c.warnf(p, rule, "unknown mount option %q", k)
	}
}

func isWindowsPath(s string) bool {
	return len(s) >= 3 && s[1] == ':' && (s[2] == '\\' || s[2] == '/')
}

func (c *checker) checkRunArgs() {
	args := c.cfg.RunArgs
	if len(args) == 0 {
		return
	}
	ra, err := runargs.Parse(args)
	if err != nil {
		c.errorf("/runArgs", "run-args", "%v", err)
		return
	}
	at := func(flag, value string) string {
		if i := argIndex(args, flag, value); i >= 0 {
			return pointer("runArgs", i)
		}
		return "/runArgs"
	}

	for _, u := range ra.Unknown {
		c.warnf(at(u, ""), "run-args", "flag %s is not recognized and is passed through unchecked", u)
	}
	for _, p := range ra.Positional {
		c.errorf(at(p, ""), "run-args", "%q is not a flag; the runner appends the image after runArgs, so it would be read as the image name", p)
	}
	if ra.Privileged {
		c.infof(at("--privileged", ""), "run-args", "--privileged gives the container full access to the host")
	}

	declaredCaps := make([]string, len(c.cfg.CapAdd))
	for i, cp := range c.cfg.CapAdd {
		declaredCaps[i] = normalizeCap(cp)
	}
	for _, cp := range ra.CapAdd {
		p := at("--cap-add", cp)
		if !slices.Contains(capabilities, normalizeCap(cp)) {
			c.warnf(p, "cap-add", "unknown capability %q", cp)
		}
		if slices.Contains(declaredCaps, normalizeCap(cp)) {
			c.infof(p, "run-args", "--cap-add=%s duplicates capAdd", cp)
		}
	}
	for _, opt := range ra.SecurityOpt {
		if slices.Contains(c.cfg.SecurityOpt, opt) {
			c.infof(at("--security-opt", opt), "run-args", "--security-opt=%s duplicates securityOpt", opt)
		}
	}
	for _, m := range ra.Mounts {
		c.checkMount(at("--mount", m), "mount", config.ParseMount(m))
	}
	for _, pub := range ra.Publish {
		if _, err := nat.ParsePortSpec(pub); err != nil {
			c.errorf(at("--publish", pub), "run-args", "invalid port mapping %q: %v", pub, err)
		}
	}
	for _, is := range ra.Issues() {
		c.errorf(at(is.Flag, ""), "run-args", "%s: %s", is.Flag, is.Message)
	}
}

// argIndex returns the index of the argument that starts flag, or -1.
// With a value, "flag=value" and "flag value" are preferred over the
// first occurrence of flag. Unknown flags may carry their value after a
// space. Short aliases are not matched.
func argIndex(args []string, flag, value string) int {
	token, _, _ := strings.Cut(flag, " ")
	name, _, _ := strings.Cut(token, "=")
	if value != "" {
		for i, a := range args {
			if a == name+"="+value || (a == name && i+1 < len(args) && args[i+1] == value) {
				return i
			}
		}
	}
	for i, a := range args {
		if a == token || a == name || strings.HasPrefix(a, name+"=") {
			return i
		}
	}
	return -1
}

func (c *checker) checkCapAdd() {
	for i, cp := range c.cfg.CapAdd {
		if !slices.Contains(capabilities, normalizeCap(cp)) {
			c.warnf(pointer("capAdd", i), "cap-add", "unknown capability %q", cp)
		}
	}
}

func (c *checker) checkSecurityOpt() {
	for i, opt := range c.cfg.SecurityOpt {
		p := pointer("securityOpt", i)
		key, _, ok := strings.Cut(opt, "=")
		if !ok {
			key, _, ok = strings.Cut(opt, ":")
		}
		if !ok && opt != "no-new-privileges" {
			c.errorf(p, "security-opt", "%q must have the form key=value", opt)
			continue
		}
		if !slices.Contains(securityOptKeys, key) {
			c.warnf(p, "security-opt", "unknown security option %q", key)
		}
	}
}

func (c *checker) checkPorts() {
	for i, p := range c.cfg.ForwardPorts {
		if msg := checkForwardPort(p); msg != "" {
			c.errorf(pointer("forwardPorts", i), "ports", "%s", msg)
		}
	}
	for i, p := range c.cfg.AppPort {
		if _, err := nat.ParsePortSpec(p); err != nil {
			c.errorf(pointer("appPort", i), "ports", "invalid port mapping %q: %v", p, err)
		}
	}
}

// checkForwardPort validates a forwardPorts entry: a port number or
// host:port. It returns a message describing the problem, or "".
func checkForwardPort(s string) string {
	host, port := "", s
	if i := strings.LastIndex(s, ":"); i >= 0 {
		host, port = s[:i], s[i+1:]
		if host == "" {
			return "forwarded port " + strconv.Quote(s) + " has an empty host"
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return "forwarded port " + strconv.Quote(s) + " must be a port number or host:port"
	}
	if n < 1 || n > 65535 {
		return "forwarded port " + strconv.Quote(s) + " is out of range 1-65535"
	}
	return ""
}

func (c *checker) checkHostRequirements() {
	hr := c.cfg.HostRequirements
	if hr == nil {
		return
	}
	for _, f := range []struct {
		key, value string
	}{
		{"memory", hr.Memory},
		{"storage", hr.Storage},
	} {
		if f.value == "" {
			continue
		}
		if _, err := units.RAMInBytes(f.value); err != nil {
			c.errorf(pointer("hostRequirements", f.key), "host-requirements", "invalid size %q: %v", f.value, err)
		}
	}
}

func (c *checker) checkUsers() {
	for _, key := range []string{"remoteUser", "containerUser"} {
		v, ok := c.doc.Raw[key].(string)
		if !ok {
			continue
		}
		if strings.TrimSpace(v) == "" {
			c.errorf(pointer(key), "user", "%s must not be empty", key)
		}
	}
	if c.cfg.RemoteUser == "root" {
		c.infof("/remoteUser", "user", "tools and lifecycle commands run as root")
	}
	if c.cfg.RemoteUser == "" && c.cfg.ContainerUser == "" && isRootUser(c.dockerfileUser) {
		c.infof(c.dockerfileKey(), "user", "the Dockerfile ends with USER %s and neither remoteUser nor containerUser is set, so tools and lifecycle commands run as root", c.dockerfileUser)
	}
}

func isRootUser(user string) bool {
	name, _, _ := strings.Cut(user, ":")
	return name == "root" || name == "0"
}

func (c *checker) checkWorkspace() {
	cfg := c.cfg
	if cfg.WorkspaceMount != "" {
		if cfg.WorkspaceFolder == "" {
			c.errorf("/workspaceMount", "workspace", "workspaceMount requires workspaceFolder")
		}
		if cfg.Kind() == config.KindCompose {
			c.warnf("/workspaceMount", "workspace", "workspaceMount is ignored for compose descriptors; mount the workspace in the compose file")
		} else {
			c.checkMount("/workspaceMount", "workspace", config.ParseMount(cfg.WorkspaceMount))
		}
	}
	if f := cfg.WorkspaceFolder; f != "" && !hasVariable(f) && !path.IsAbs(f) {
		c.errorf("/workspaceFolder", "workspace", "workspaceFolder %q must be an absolute path", f)
	}
}
