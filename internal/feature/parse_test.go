package feature

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFeature(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FeatureFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestParseFeatureConfig(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   bool
		wantID    string
		checkFunc func(t *testing.T, fc *FeatureConfig)
	}{
		{
			name:    "minimal",
			content: `{"id": "minimal"}`,
			wantID:  "minimal",
		},
		{
			name: "with options",
			content: `{
				"id": "with-options",
				"options": {
					"version": {"type": "string", "default": "latest", "proposals": ["latest", "20"]},
					"install_tools": {"type": "boolean", "default": true}
				}
			}`,
			wantID: "with-options",
			checkFunc: func(t *testing.T, fc *FeatureConfig) {
				opt := fc.Options["version"]
				if opt.Type != "string" || string(opt.Default) != "latest" || len(opt.Proposals) != 2 {
					t.Errorf("version option = %+v", opt)
				}
				if !fc.Options["install_tools"].Default.IsTrue() {
					t.Error("install_tools default should be true")
				}
			},
		},
		{
			name: "full JSONC",
			content: `{
				// Comments are allowed.
				"id": "full-feature",
				"name": "Full Feature",
				"version": "2.1.0",
				"deprecated": true,
				"options": {"version": {"type": "string", "enum": ["1", "2", "3"], "default": "2"}},
				"dependsOn": {"ghcr.io/devcontainers/features/common-utils:2": {}},
				"installsAfter": ["ghcr.io/devcontainers/features/git"],
				"capAdd": ["SYS_PTRACE"],
				"init": true,
				"privileged": false,
				"securityOpt": ["seccomp=unconfined"],
				"mounts": ["source=cache,target=/cache,type=volume"],
				"containerEnv": {"MY_VAR": "my_value"},
			}`,
			wantID: "full-feature",
			checkFunc: func(t *testing.T, fc *FeatureConfig) {
				if fc.Name != "Full Feature" || fc.Version != "2.1.0" || !fc.Deprecated {
					t.Errorf("metadata = %q %q %v", fc.Name, fc.Version, fc.Deprecated)
				}
				if len(fc.Options["version"].Enum) != 3 {
					t.Errorf("enum = %v", fc.Options["version"].Enum)
				}
				if len(fc.DependsOn) != 1 || len(fc.InstallsAfter) != 1 {
					t.Errorf("dependsOn = %v, installsAfter = %v", fc.DependsOn, fc.InstallsAfter)
				}
				if fc.Init == nil || !*fc.Init || fc.Privileged == nil || *fc.Privileged {
					t.Error("init/privileged not decoded")
				}
				if len(fc.Mounts) != 1 || fc.Mounts[0].Target != "/cache" {
					t.Errorf("mounts = %+v", fc.Mounts)
				}
				if fc.ContainerEnv["MY_VAR"] != "my_value" {
					t.Errorf("containerEnv[MY_VAR] = %q", fc.ContainerEnv["MY_VAR"])
				}
			},
		},
		{
			name:    "missing id",
			content: `{"name": "nameless"}`,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			content: `{"id": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFeature(t, t.TempDir(), tt.content)
			fc, err := ParseFeatureConfig(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fc.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", fc.ID, tt.wantID)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, fc)
			}
		})
	}
}

func TestParseFeatureConfigMissingFile(t *testing.T) {
	if _, err := ParseFeatureConfig(t.TempDir()); err == nil {
		t.Fatal("expected error for folder without metadata")
	}
}
