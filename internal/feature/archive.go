package feature

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxEntrySize bounds a single extracted file. Features are shell scripts
// and JSON metadata; anything larger is not a feature.
const maxEntrySize = 64 << 20

// extractTar extracts a tar archive from r into dir. Entries that would
// land outside dir are skipped, either by name or by way of a symlink.
func extractTar(r io.Reader, dir string) error {
	root := filepath.Clean(dir) + string(os.PathSeparator)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		rel := strings.TrimPrefix(filepath.Clean("/"+hdr.Name), "/")
		if rel == "" || rel == "." {
			continue
		}
		target := filepath.Join(dir, rel)
		if !strings.HasPrefix(target, root) {
			continue
		}
		if throughSymlink(root, target) {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, hdr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if !linkInside(root, target, hdr.Linkname) {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent dir for symlink %s: %w", target, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s -> %s: %w", target, hdr.Linkname, err)
			}
		}
	}
}

// linkInside reports whether a symlink at target pointing to linkname
// resolves below root.
func linkInside(root, target, linkname string) bool {
	if filepath.IsAbs(linkname) {
		return false
	}
	return strings.HasPrefix(filepath.Join(filepath.Dir(target), linkname), root)
}

// throughSymlink reports whether any existing parent of target below root
// is a symlink.
func throughSymlink(root, target string) bool {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil || rel == "." {
		return false
	}
	p := filepath.Clean(root)
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		p = filepath.Join(p, part)
		info, err := os.Lstat(p)
		if err != nil {
			return false
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

func writeEntry(r io.Reader, target string, hdr *tar.Header) error {
	if hdr.Size > maxEntrySize {
		return fmt.Errorf("archive entry %s is too large (%d bytes)", hdr.Name, hdr.Size)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent dir for %s: %w", target, err)
	}
	//nolint:gosec // file mode comes from the tar header
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}
	if _, err := io.Copy(f, io.LimitReader(r, maxEntrySize)); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing file %s: %w", target, err)
	}
	return f.Close()
}

// extractTarGz extracts a gzip-compressed tar archive from r into dir.
func extractTarGz(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()
	return extractTar(gz, dir)
}

// checkFeatureFolder verifies that a resolved folder holds feature metadata.
func checkFeatureFolder(id, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, FeatureFileName)); err != nil {
		return fmt.Errorf("feature %q has no %s", id, FeatureFileName)
	}
	return nil
}
