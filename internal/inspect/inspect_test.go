package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/feature"
	"github.com/fgrehm/dcvet/internal/ui"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func load(t *testing.T, files map[string]string) (*config.Document, string) {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)
	doc, err := config.Load(filepath.Join(dir, "devcontainer.json"))
	if err != nil {
		t.Fatal(err)
	}
	return doc, dir
}

func TestBuild_Image(t *testing.T) {
	doc, _ := load(t, map[string]string{"devcontainer.json": `{
		"name": "Go",
		"image": "mcr.microsoft.com/devcontainers/go:1.22",
		"extensions": ["golang.go"],
		"onCreateCommand": "go mod download",
		"postCreateCommand": {"tools": ["make", "tools"], "hooks": "git config core.hooksPath .githooks"},
		"mounts": [{"type": "volume", "source": "gomod", "target": "/go/pkg/mod"}],
		"runArgs": ["--cap-add=SYS_PTRACE", "--security-opt", "seccomp=unconfined"],
		"forwardPorts": [8080, "db:5432"],
		"remoteUser": "vscode",
		"workspaceFolder": "/workspaces/${localWorkspaceFolderBasename}"
	}`})

	s, err := Build(context.Background(), doc, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if s.Kind != config.KindImage || s.Image != "mcr.microsoft.com/devcontainers/go:1.22" {
		t.Errorf("kind/image = %s/%s", s.Kind, s.Image)
	}
	wantHooks := []Hook{
		{Stage: "onCreateCommand", Command: "go mod download"},
		{Stage: "postCreateCommand", Name: "hooks", Command: "git config core.hooksPath .githooks"},
		{Stage: "postCreateCommand", Name: "tools", Command: "make tools", Exec: true},
	}
	if diff := cmp.Diff(wantHooks, s.Hooks); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"vscode"}, s.Customizations); diff != "" {
		t.Errorf("customizations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"golang.go"}, s.Extensions); diff != "" {
		t.Errorf("legacy extensions should be migrated (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"type=volume,source=gomod,target=/go/pkg/mod"}, s.Mounts); diff != "" {
		t.Errorf("mounts mismatch (-want +got):\n%s", diff)
	}
	if s.RunArgs == nil || len(s.RunArgs.CapAdd) != 1 || len(s.RunArgs.SecurityOpt) != 1 {
		t.Errorf("runArgs = %+v", s.RunArgs)
	}
	if diff := cmp.Diff([]string{"8080", "db:5432"}, s.ForwardPorts); diff != "" {
		t.Errorf("forwardPorts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"${localWorkspaceFolderBasename}"}, s.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	if len(s.Notes) != 0 {
		t.Errorf("unexpected notes: %v", s.Notes)
	}
}

func TestBuild_Dockerfile(t *testing.T) {
	doc, dir := load(t, map[string]string{
		"devcontainer.json": `{"build": {"dockerfile": "Dockerfile", "context": "..", "target": "dev", "args": {"VARIANT": "3.12"}}}`,
		"Dockerfile":        "ARG VARIANT=3.11\nARG USERNAME=vscode\nFROM python:${VARIANT} AS base\nUSER ${USERNAME}\nFROM base AS dev\nRUN true\n",
	})

	s, err := Build(context.Background(), doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Image != "python:3.12" {
		t.Errorf("Image = %q, want python:3.12", s.Image)
	}
	want := &BuildInfo{
		Dockerfile: filepath.Join(dir, "Dockerfile"),
		Context:    filepath.Dir(dir),
		Target:     "dev",
		Args:       map[string]string{"VARIANT": "3.12"},
		Stages:     []string{"base", "dev"},
		User:       "vscode",
	}
	if diff := cmp.Diff(want, s.Build); diff != "" {
		t.Errorf("build mismatch (-want +got):\n%s", diff)
	}
	if s.EffectiveUser != "vscode" {
		t.Errorf("EffectiveUser = %q, want vscode", s.EffectiveUser)
	}
}

func TestBuild_ContainerUserWins(t *testing.T) {
	doc, _ := load(t, map[string]string{
		"devcontainer.json": `{"build": {"dockerfile": "Dockerfile"}, "containerUser": "app"}`,
		"Dockerfile":        "FROM ubuntu:22.04\nUSER root\n",
	})
	s, err := Build(context.Background(), doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Build.User != "root" || s.EffectiveUser != "app" {
		t.Errorf("build user = %q, effective user = %q", s.Build.User, s.EffectiveUser)
	}
}

func TestBuild_DockerfileMissing(t *testing.T) {
	doc, _ := load(t, map[string]string{
		"devcontainer.json": `{"build": {"dockerfile": "Dockerfile"}}`,
	})
	s, err := Build(context.Background(), doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Image != "" || len(s.Notes) != 1 || !strings.Contains(s.Notes[0], "reading Dockerfile") {
		t.Errorf("image = %q, notes = %v", s.Image, s.Notes)
	}
}

func TestBuild_Compose(t *testing.T) {
	doc, _ := load(t, map[string]string{
		"devcontainer.json": `{"dockerComposeFile": "compose.yml", "service": "app", "runServices": ["db"]}`,
		"compose.yml":       "services:\n  app:\n    image: node:20\n    user: node\n  db:\n    image: postgres:16\n",
	})
	s, err := Build(context.Background(), doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Image != "node:20" {
		t.Errorf("Image = %q", s.Image)
	}
	if diff := cmp.Diff([]string{"app", "db"}, s.Compose.Services); diff != "" {
		t.Errorf("services mismatch (-want +got):\n%s", diff)
	}
	if s.Compose.Service == nil || s.Compose.Service.Name != "app" {
		t.Errorf("service = %+v", s.Compose.Service)
	}
	if s.EffectiveUser != "node" {
		t.Errorf("EffectiveUser = %q, want node", s.EffectiveUser)
	}
}

func TestBuild_Undecodable(t *testing.T) {
	doc, _ := load(t, map[string]string{"devcontainer.json": `{"image": ["no"]}`})
	_, err := Build(context.Background(), doc, Options{})
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("err = %v, want ErrUndecodable", err)
	}
}

func TestResolveFeatures_Declared(t *testing.T) {
	cfg := &config.DevContainerConfig{Features: map[string]any{
		"ghcr.io/devcontainers/features/node:1": map[string]any{"version": "20"},
		"./local":                               true,
		"ghcr.io/devcontainers/features/go:1":   "1.22",
	}}
	got, err := ResolveFeatures(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []Feature{
		{ID: "./local", Kind: feature.KindLocal},
		{ID: "ghcr.io/devcontainers/features/go:1", Kind: feature.KindOCI, Options: map[string]string{"version": "1.22"}},
		{ID: "ghcr.io/devcontainers/features/node:1", Kind: feature.KindOCI, Options: map[string]string{"version": "20"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFeatures_Ordered(t *testing.T) {
	doc, _ := load(t, map[string]string{
		"devcontainer.json": `{
			"image": "ubuntu:22.04",
			"features": {"./a": {"flavor": "y"}, "./b": {}}
		}`,
		"a/devcontainer-feature.json": `{
			"id": "a", "name": "A", "version": "1.2.0",
			"options": {"flavor": {"type": "string", "default": "x"}, "debug": {"type": "boolean", "default": false}},
			"dependsOn": {"./b": {}}
		}`,
		"b/devcontainer-feature.json": `{"id": "b", "version": "0.1.0", "deprecated": true}`,
	})
	r := feature.NewCompositeResolver(feature.NewFeatureCacheAt(t.TempDir()), nil)

	got, err := ResolveFeatures(context.Background(), doc.Config, r)
	if err != nil {
		t.Fatal(err)
	}
	want := []Feature{
		{ID: "./b", Kind: feature.KindLocal, Version: "0.1.0", Deprecated: true, Options: map[string]string{}},
		{
			ID: "./a", Kind: feature.KindLocal, Name: "A", Version: "1.2.0",
			Options:   map[string]string{"flavor": "y", "debug": "false"},
			DependsOn: []string{"./b"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFeatures_Unresolved(t *testing.T) {
	doc, _ := load(t, map[string]string{
		"devcontainer.json":           `{"image": "ubuntu:22.04", "features": {"./a": {}, "./missing": {"x": 1}}}`,
		"a/devcontainer-feature.json": `{"id": "a"}`,
	})
	r := feature.NewCompositeResolver(feature.NewFeatureCacheAt(t.TempDir()), nil)

	got, err := ResolveFeatures(context.Background(), doc.Config, r)
	if err == nil {
		t.Fatal("expected an install order error")
	}
	if len(got) != 2 || got[0].ID != "./a" || got[1].Error == "" {
		t.Errorf("features = %+v", got)
	}
	if diff := cmp.Diff(map[string]string{"x": "1"}, got[1].Options); diff != "" {
		t.Errorf("declared options mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite(t *testing.T) {
	s := &Summary{
		Path:     "/p/.devcontainer/devcontainer.json",
		Kind:     config.KindImage,
		Image:    "ubuntu:22.04",
		Features: []Feature{{ID: "./a", Kind: feature.KindLocal, Options: map[string]string{"v": "1"}}},
		Hooks:    []Hook{{Stage: "postCreateCommand", Command: "make"}},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, nil, s, "json"); err != nil {
			t.Fatal(err)
		}
		var got Summary
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(s, &got); diff != "" {
			t.Errorf("json round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, nil, s, "yaml"); err != nil {
			t.Fatal(err)
		}
		var got map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got["image"] != "ubuntu:22.04" || got["kind"] != "image" {
			t.Errorf("yaml = %s", buf.String())
		}
		if _, ok := got["Image"]; ok {
			t.Error("yaml keys should use the json-style names")
		}
	})

	t.Run("text", func(t *testing.T) {
		var out, errOut bytes.Buffer
		u := ui.New(&out, &errOut)
		if err := Write(&out, u, s, "text"); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"==> /p/.devcontainer/devcontainer.json", "ubuntu:22.04", "./a", "v=1", "postCreateCommand"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("text output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := Write(&bytes.Buffer{}, nil, s, "xml"); err == nil {
			t.Error("expected an error")
		}
	})
}
