package rotee

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// compressBackup gzips path into path.gz and removes the original. The
// compressed file is written to a temp file first and renamed into place, so
// a crash mid-compression never leaves a truncated .gz next to a deleted
// backup. Best-effort: on any error the uncompressed backup stays put.
func compressBackup(path string, mode os.FileMode) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("rotee: open backup %s: %w", path, err)
	}
	defer src.Close()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rotee-gz-*")
	if err != nil {
		return fmt.Errorf("rotee: create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	gw := gzip.NewWriter(tmp)
	if _, err := io.Copy(gw, src); err != nil {
		cleanup()
		return fmt.Errorf("rotee: compress %s: %w", path, err)
	}
	if err := gw.Close(); err != nil {
		cleanup()
		return fmt.Errorf("rotee: finish compressing %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return fmt.Errorf("rotee: chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rotee: close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path+".gz"); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rotee: rename %s to %s.gz: %w", tmpPath, path, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("rotee: remove uncompressed backup %s: %w", path, err)
	}
	return nil
}
