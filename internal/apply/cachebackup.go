package apply

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/open-edge-platform/otapatch/internal/apperr"
	"github.com/open-edge-platform/otapatch/internal/config"
)

// writeCacheBackup xz-compresses data and writes it to path, overwriting
// any existing backup. Writing twice is safe: a crash mid-write leaves
// either the old or a truncated new backup, and the next invocation's
// readCacheBackup attempt will simply fail over to ErrCorruptSource,
// which is the documented crash-recovery fallback.
func writeCacheBackup(path string, data []byte) error {
	if _, err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("apply: create cache backup directory: %w: %w", apperr.ErrIO, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("apply: open cache backup %s: %w: %w", path, apperr.ErrIO, err)
	}
	defer f.Close()

	w, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("apply: create xz writer for cache backup: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("apply: write cache backup %s: %w: %w", path, apperr.ErrIO, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("apply: finalize cache backup %s: %w", path, err)
	}
	return nil
}

// readCacheBackup reads and transparently decompresses the cache backup
// at path.
func readCacheBackup(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("apply: open cache backup %s: %w: %w", path, apperr.ErrIO, err)
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("apply: create xz reader for cache backup %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("apply: decompress cache backup %s: %w", path, err)
	}
	return buf.Bytes(), nil
}
