package runargs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want RunArgs
	}{
		{
			"capabilities and security options",
			[]string{"--cap-add=SYS_PTRACE", "--security-opt", "seccomp=unconfined", "--cap-add", "NET_ADMIN"},
			RunArgs{
				CapAdd:      []string{"SYS_PTRACE", "NET_ADMIN"},
				SecurityOpt: []string{"seccomp=unconfined"},
			},
		},
		{
			"mount keeps commas",
			[]string{"--mount", "type=bind,source=/a,target=/b", "-v", "/x:/y:ro"},
			RunArgs{
				Mounts:  []string{"type=bind,source=/a,target=/b"},
				Volumes: []string{"/x:/y:ro"},
			},
		},
		{
			"booleans and scalars",
			[]string{"--privileged", "--init", "--network=host", "--name", "dev", "-u", "1000", "--shm-size=1g"},
			RunArgs{
				Privileged: true,
				Init:       true,
				Network:    "host",
				Name:       "dev",
				User:       "1000",
				ShmSize:    "1g",
			},
		},
		{
			"net alias",
			[]string{"--net", "bridge"},
			RunArgs{Network: "bridge"},
		},
		{
			"unknown flags are kept and parsing continues",
			[]string{"--cap-add=SYS_ADMIN", "--tmpfs=/run", "--cap-add", "NET_RAW", "--oom-kill-disable"},
			RunArgs{
				CapAdd:  []string{"SYS_ADMIN", "NET_RAW"},
				Unknown: []string{"--tmpfs=/run", "--oom-kill-disable"},
			},
		},
		{
			"unknown flag swallows its value",
			[]string{"--runtime", "nvidia", "--init"},
			RunArgs{
				Init:    true,
				Unknown: []string{"--runtime nvidia"},
			},
		},
		{
			"unknown shorthand",
			[]string{"-it", "--init"},
			RunArgs{
				Init:    true,
				Unknown: []string{"-it"},
			},
		},
		{
			"unknown boolean does not swallow the image",
			[]string{"--rm", "ubuntu"},
			RunArgs{
				Unknown:    []string{"--rm"},
				Positional: []string{"ubuntu"},
			},
		},
		{
			"unknown shorthand group does not swallow the image",
			[]string{"-it", "ubuntu"},
			RunArgs{
				Unknown:    []string{"-it"},
				Positional: []string{"ubuntu"},
			},
		},
		{
			"positional arguments",
			[]string{"--init", "ubuntu", "bash"},
			RunArgs{
				Init:       true,
				Positional: []string{"ubuntu", "bash"},
			},
		},
		{
			"env and publish",
			[]string{"-e", "A=1", "--env=B=2", "-p", "8080:80"},
			RunArgs{
				Env:     []string{"A=1", "B=2"},
				Publish: []string{"8080:80"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(&tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_MissingValue(t *testing.T) {
	if _, err := Parse([]string{"--init", "--cap-add"}); err == nil {
		t.Error("expected error for flag without value")
	}
}

func TestParse_Empty(t *testing.T) {
	got, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(&RunArgs{}, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Parse(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestIssues(t *testing.T) {
	ra, err := Parse([]string{
		"--shm-size=lots",
		"--memory", "2g",
		"--ulimit", "nofile=1024:2048",
		"--ulimit", "bogus",
		"-e", "=oops",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issues := ra.Issues()
	var flags []string
	for _, is := range issues {
		flags = append(flags, is.Flag)
	}
	want := []string{"--shm-size", "--ulimit", "--env"}
	if diff := cmp.Diff(want, flags); diff != "" {
		t.Errorf("Issues() flags mismatch (-want +got):\n%s", diff)
	}
}
