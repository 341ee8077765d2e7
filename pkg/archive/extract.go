// Package archive handles the output bundles retrieved from the remote
// platform: extracting compressed archives and locating the canonical
// result file among the extracted artifacts.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxExtractedFileSize caps a single extracted file. Output videos are
// large but bounded; this guards against decompression bombs.
const maxExtractedFileSize = 8 << 30 // 8 GiB

// ExtractAll unpacks every .zip archive found directly inside dir into
// dir, then removes the archives. Non-archive files are left untouched.
//
// Returns the number of archives extracted.
func ExtractAll(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir: %w", err)
	}

	extracted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
			continue
		}
		archivePath := filepath.Join(dir, entry.Name())
		if err := extractZip(archivePath, dir); err != nil {
			return extracted, fmt.Errorf("extract %s: %w", entry.Name(), err)
		}
		if err := os.Remove(archivePath); err != nil {
			return extracted, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		extracted++
	}
	return extracted, nil
}

// extractZip unpacks one archive into destDir, flattening any directory
// structure: remote outputs are a flat set of files and nested paths are
// reduced to their base name.
func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if name == "" || name == "." {
			continue
		}
		if err := extractFile(f, filepath.Join(destDir, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	written, err := io.Copy(out, io.LimitReader(rc, maxExtractedFileSize+1))
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	if written > maxExtractedFileSize {
		_ = out.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("%s exceeds extraction size limit", f.Name)
	}
	return out.Close()
}
