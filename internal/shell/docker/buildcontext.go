package docker

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Directories never sent to the daemon as part of a build context.
var contextExcludes = map[string]bool{
	".git":         true,
	".slipway":     true,
	"node_modules": true,
}

// tarBuildContext packs dir into an in-memory tar archive suitable for
// ImageBuild. Paths inside the archive are relative to dir.
func tarBuildContext(dir string) (io.ReadCloser, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		top := strings.Split(filepath.ToSlash(rel), "/")[0]
		if contextExcludes[top] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks and other irregular files are skipped; the build
		// context only needs regular source files.
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to archive %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		tw.Close()
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}
