// Package archive extracts downloaded document archives with path
// traversal protection. An archive containing a single hostile entry is
// rejected whole before any file is written.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when an archive entry would escape the
// destination directory.
var ErrUnsafePath = errors.New("archive: entry path escapes destination")

// maxEntrySize caps a single decompressed entry to blunt zip bombs.
const maxEntrySize = 200 * 1024 * 1024

// Extract unpacks the zip at srcPath into destDir and returns the extracted
// file paths. All entry names are validated before anything is written, so
// a hostile archive leaves no partial output.
func Extract(srcPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if _, err := safeJoin(destDir, f.Name); err != nil {
			return nil, fmt.Errorf("archive: entry %q: %w", f.Name, err)
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: mkdir %s: %w", destDir, err)
	}

	var extracted []string
	for _, f := range r.File {
		dst, _ := safeJoin(destDir, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return extracted, fmt.Errorf("archive: mkdir %s: %w", dst, err)
			}
			continue
		}

		if err := extractFile(f, dst); err != nil {
			return extracted, err
		}
		extracted = append(extracted, dst)
	}
	return extracted, nil
}

func extractFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir for %s: %w", dst, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("archive: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", dst, err)
	}

	_, err = io.Copy(out, io.LimitReader(rc, maxEntrySize))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("archive: write %s: %w", dst, err)
	}
	return nil
}

// safeJoin joins base and name, rejecting absolute names and any ".."
// segment before the join so crafted entries cannot escape base.
func safeJoin(base, name string) (string, error) {
	if name == "" {
		return "", ErrUnsafePath
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", ErrUnsafePath
	}
	for _, seg := range strings.Split(filepath.ToSlash(name), "/") {
		if seg == ".." {
			return "", ErrUnsafePath
		}
	}
	joined := filepath.Join(base, filepath.FromSlash(name))
	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return joined, nil
}
