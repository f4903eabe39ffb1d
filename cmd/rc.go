package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// rcFileName is the per-project defaults file read from the working
// directory.
const rcFileName = ".dcvetrc"

// dcvetRC holds values loaded from a .dcvetrc file. Flags given on the
// command line win over these.
type dcvetRC struct {
	Config  string   `toml:"config"` // same as --config / -C
	Offline bool     `toml:"offline"`
	Strict  bool     `toml:"strict"`
	Disable []string `toml:"disable"`
	Format  string   `toml:"format"`
}

// loadRC reads .dcvetrc from cwd. Returns nil, nil if not found.
func loadRC() (*dcvetRC, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return loadRCFile(filepath.Join(cwd, rcFileName))
}

func loadRCFile(path string) (*dcvetRC, error) {
	rc := &dcvetRC{}
	md, err := toml.DecodeFile(path, rc)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warn("unknown key in "+rcFileName, "key", key.String())
	}
	return rc, nil
}
