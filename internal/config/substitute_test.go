package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubstitute(t *testing.T) {
	ctx := &SubstitutionContext{
		DevContainerID:           "test-id",
		LocalWorkspaceFolder:     "/home/user/myproject",
		ContainerWorkspaceFolder: "/workspaces/myproject",
		Env: map[string]string{
			"HOME": "/home/user",
		},
	}

	doc, err := LoadBytes([]byte(`{
		"image": "ubuntu",
		"workspaceFolder": "/workspaces/${localWorkspaceFolderBasename}",
		"containerEnv": {
			"SRC": "${localWorkspaceFolder}",
			"ID": "${devcontainerId}",
			"MISSING": "${localEnv:NOPE}",
			"DEFAULTED": "${localEnv:NOPE:fallback:with:colons}",
			"LEGACY": "${env:HOME}",
			"LATER": "${containerEnv:PATH}",
			"UNKNOWN": "${somethingElse}"
		},
		"remoteEnv": {"NAME": "${containerWorkspaceFolderBasename}"},
		"mounts": ["source=${localEnv:HOME}/.ssh,target=/root/.ssh,type=bind"],
		"postStartCommand": ["echo", "${containerWorkspaceFolder}"]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc.Path = "/home/user/myproject/.devcontainer/devcontainer.json"

	got, err := Substitute(ctx, doc)
	if err != nil {
		t.Fatalf("Substitute failed: %v", err)
	}
	cfg := got.Config
	if cfg == nil {
		t.Fatalf("substituted config did not decode: %v", got.DecodeErr)
	}

	if cfg.WorkspaceFolder != "/workspaces/myproject" {
		t.Errorf("WorkspaceFolder = %q", cfg.WorkspaceFolder)
	}
	wantEnv := map[string]string{
		"SRC":       "/home/user/myproject",
		"ID":        "test-id",
		"MISSING":   "",
		"DEFAULTED": "fallback:with:colons",
		"LEGACY":    "/home/user",
		"LATER":     "${containerEnv:PATH}",
		"UNKNOWN":   "${somethingElse}",
	}
	if diff := cmp.Diff(wantEnv, cfg.ContainerEnv); diff != "" {
		t.Errorf("ContainerEnv mismatch (-want +got):\n%s", diff)
	}
	if cfg.RemoteEnv["NAME"] != "myproject" {
		t.Errorf("RemoteEnv[NAME] = %q", cfg.RemoteEnv["NAME"])
	}
	if cfg.Mounts[0].Source != "/home/user/.ssh" {
		t.Errorf("mount source = %q", cfg.Mounts[0].Source)
	}
	if diff := cmp.Diff([]string{"echo", "/workspaces/myproject"}, cfg.PostStartCommand[""].Args); diff != "" {
		t.Errorf("postStartCommand mismatch (-want +got):\n%s", diff)
	}
	if cfg.Origin != doc.Path {
		t.Errorf("Origin = %q, want %q", cfg.Origin, doc.Path)
	}

	// The input document is left untouched.
	if env := doc.Config.ContainerEnv["SRC"]; env != "${localWorkspaceFolder}" {
		t.Errorf("original mutated: %q", env)
	}
}

func TestVariables(t *testing.T) {
	doc, err := LoadBytes([]byte(`{
		"image": "ubuntu",
		"containerEnv": {"A": "${localEnv:HOME}", "B": "${localEnv:HOME}/x"},
		"workspaceFolder": "/w/${localWorkspaceFolderBasename}"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"${localEnv:HOME}", "${localWorkspaceFolderBasename}"}
	if diff := cmp.Diff(want, Variables(doc)); diff != "" {
		t.Errorf("Variables() mismatch (-want +got):\n%s", diff)
	}
}
