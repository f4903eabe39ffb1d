package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolve_DevContainerDir(t *testing.T) {
	dir := t.TempDir()
	mkdirAll(t, filepath.Join(dir, ".devcontainer"))
	writeFile(t, filepath.Join(dir, ".devcontainer", "devcontainer.json"), `{"image":"ubuntu"}`)

	result, err := Resolve(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ProjectRoot != dir {
		t.Errorf("ProjectRoot = %q, want %q", result.ProjectRoot, dir)
	}
	if result.RelativeConfigPath != filepath.Join(".devcontainer", "devcontainer.json") {
		t.Errorf("RelativeConfigPath = %q, want %q", result.RelativeConfigPath, ".devcontainer/devcontainer.json")
	}
	if result.ID == "" {
		t.Error("ID should not be empty")
	}
}

func TestResolve_DotDevContainerJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".devcontainer.json"), `{"image":"ubuntu"}`)

	result, err := Resolve(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.RelativeConfigPath != ".devcontainer.json" {
		t.Errorf("RelativeConfigPath = %q, want %q", result.RelativeConfigPath, ".devcontainer.json")
	}
}

func TestResolve_WalksUp(t *testing.T) {
	dir := t.TempDir()
	mkdirAll(t, filepath.Join(dir, ".devcontainer"))
	writeFile(t, filepath.Join(dir, ".devcontainer", "devcontainer.json"), `{"image":"ubuntu"}`)

	subdir := filepath.Join(dir, "src", "app")
	mkdirAll(t, subdir)

	result, err := Resolve(subdir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ProjectRoot != dir {
		t.Errorf("ProjectRoot = %q, want %q", result.ProjectRoot, dir)
	}
}

func TestResolve_NotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := Resolve(dir)
	if !errors.Is(err, ErrNoDevContainer) {
		t.Errorf("expected ErrNoDevContainer, got %v", err)
	}
}

func TestResolveConfigDir(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, "configs", "go")
	mkdirAll(t, configDir)
	writeFile(t, filepath.Join(configDir, "devcontainer.json"), `{"image":"golang"}`)

	result, err := ResolveConfigDir(configDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "configs"); result.ProjectRoot != want {
		t.Errorf("ProjectRoot = %q, want %q", result.ProjectRoot, want)
	}
	if result.RelativeConfigPath != filepath.Join("go", "devcontainer.json") {
		t.Errorf("RelativeConfigPath = %q", result.RelativeConfigPath)
	}

	if _, err := ResolveConfigDir(dir); err == nil {
		t.Error("expected error for a directory without devcontainer.json")
	}
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, ".devcontainer", "python", "devcontainer.json")
	mkdirAll(t, filepath.Dir(nested))
	writeFile(t, nested, `{"image":"python"}`)
	adhoc := filepath.Join(dir, "ci", "dev.json")
	mkdirAll(t, filepath.Dir(adhoc))
	writeFile(t, adhoc, `{"image":"alpine"}`)

	tests := []struct {
		name     string
		path     string
		wantRoot string
	}{
		{"nested under .devcontainer", nested, dir},
		{"ad-hoc file", adhoc, filepath.Join(dir, "ci")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolveFile(tt.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.ProjectRoot != tt.wantRoot {
				t.Errorf("ProjectRoot = %q, want %q", result.ProjectRoot, tt.wantRoot)
			}
			if result.ConfigPath != tt.path {
				t.Errorf("ConfigPath = %q, want %q", result.ConfigPath, tt.path)
			}
		})
	}

	if _, err := ResolveFile(dir); err == nil {
		t.Error("expected error when given a directory")
	}
}

func TestTargets(t *testing.T) {
	dir := t.TempDir()
	mkdirAll(t, filepath.Join(dir, ".devcontainer", "node"))
	mkdirAll(t, filepath.Join(dir, ".devcontainer", "go"))
	writeFile(t, filepath.Join(dir, ".devcontainer", "devcontainer.json"), `{"image":"ubuntu"}`)
	writeFile(t, filepath.Join(dir, ".devcontainer", "node", "devcontainer.json"), `{"image":"node"}`)
	writeFile(t, filepath.Join(dir, ".devcontainer", "go", "devcontainer.json"), `{"image":"golang"}`)

	t.Run("project folder", func(t *testing.T) {
		targets, err := Targets(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []string
		for _, tg := range targets {
			got = append(got, tg.RelativeConfigPath)
			if tg.ProjectRoot != dir {
				t.Errorf("ProjectRoot = %q, want %q", tg.ProjectRoot, dir)
			}
		}
		want := []string{
			filepath.Join(".devcontainer", "devcontainer.json"),
			filepath.Join(".devcontainer", "go", "devcontainer.json"),
			filepath.Join(".devcontainer", "node", "devcontainer.json"),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Targets() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("config folder", func(t *testing.T) {
		targets, err := Targets(filepath.Join(dir, ".devcontainer", "node"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 1 {
			t.Fatalf("got %d targets, want 1", len(targets))
		}
		if targets[0].ProjectRoot != dir {
			t.Errorf("ProjectRoot = %q", targets[0].ProjectRoot)
		}
	})

	t.Run("single file", func(t *testing.T) {
		targets, err := Targets(filepath.Join(dir, ".devcontainer", "go", "devcontainer.json"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 1 || targets[0].ProjectRoot != dir {
			t.Errorf("Targets() = %+v", targets)
		}
	})

	t.Run("empty folder", func(t *testing.T) {
		_, err := Targets(t.TempDir())
		if !errors.Is(err, ErrNoDevContainer) {
			t.Errorf("expected ErrNoDevContainer, got %v", err)
		}
	})
}

func TestSubstitutionContext(t *testing.T) {
	tg := &Target{ProjectRoot: "/home/me/My App", ID: "my-app"}
	got := tg.SubstitutionContext(map[string]string{"HOME": "/home/me"})
	if got.ContainerWorkspaceFolder != "/workspaces/My App" {
		t.Errorf("ContainerWorkspaceFolder = %q", got.ContainerWorkspaceFolder)
	}
	if got.DevContainerID != "my-app" || got.LocalWorkspaceFolder != "/home/me/My App" {
		t.Errorf("unexpected context: %+v", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "myproject", "myproject"},
		{"uppercase", "MyProject", "myproject"},
		{"spaces", "My Project", "my-project"},
		{"special chars", "my@project!v2", "my-project-v2"},
		{"dots", "my.project", "my-project"},
		{"leading trailing special", "---project---", "project"},
		{"empty", "", "workspace"},
		{"only special", "@#$", "workspace"},
		{
			"long name truncated",
			"this-is-a-very-very-very-long-project-name-that-exceeds-the-maximum",
			// 40 chars + "-" + 7-char hash
			"this-is-a-very-very-very-long-project-na-" + slugHash("this-is-a-very-very-very-long-project-name-that-exceeds-the-maximum"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.input)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len(got) > 48 {
				t.Errorf("slug too long: %d chars (max 48)", len(got))
			}
		})
	}
}

// slugHash returns the hash suffix Slugify appends to long names.
func slugHash(name string) string {
	slug := Slugify(name)
	return slug[len(slug)-7:]
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
