package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadRCFile(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		got, err := loadRCFile(filepath.Join(t.TempDir(), rcFileName))
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("got %+v, want nil", got)
		}
	})

	t.Run("all keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), rcFileName)
		content := `config = ".devcontainer-custom"
offline = true
strict = true
disable = ["vscode", "hostRequirements"]
format = "json"
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := loadRCFile(path)
		if err != nil {
			t.Fatal(err)
		}
		want := &dcvetRC{
			Config:  ".devcontainer-custom",
			Offline: true,
			Strict:  true,
			Disable: []string{"vscode", "hostRequirements"},
			Format:  "json",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("rc mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), rcFileName)
		if err := os.WriteFile(path, []byte("strict = true\ncolour = \"auto\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := loadRCFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || !got.Strict {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), rcFileName)
		if err := os.WriteFile(path, []byte("strict = \n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := loadRCFile(path); err == nil {
			t.Error("expected a parse error")
		}
	})
}
