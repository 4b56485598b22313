// Package config centralizes the small set of environment-overridable
// paths the orchestrator needs, following the call-site convention seen
// throughout the teacher repo (config.EnsureTempDir, config.XxxPath)
// even though the teacher's own config package implementation covers an
// unrelated (OS-image template) domain and carries no counterpart for
// these paths.
package config

import (
	"fmt"
	"os"
)

// defaultCacheBackupPath is where the source backup is staged across a
// crash so a re-run can recover it, absent an override.
const defaultCacheBackupPath = "/cache/saved.file"

// cacheBackupPathEnv overrides defaultCacheBackupPath, primarily so tests
// can isolate the backup location per test case.
const cacheBackupPathEnv = "OTAPATCH_CACHE_BACKUP"

// CacheBackupPath returns the configured cache backup location.
func CacheBackupPath() string {
	if v := os.Getenv(cacheBackupPathEnv); v != "" {
		return v
	}
	return defaultCacheBackupPath
}

// defaultBackingDevicePath is the backing disk image or block device that
// MTD: partition locators are resolved against, absent an override.
const defaultBackingDevicePath = "/dev/block/bootdevice"

// backingDevicePathEnv overrides defaultBackingDevicePath, primarily for
// test isolation against a plain file standing in for a block device.
const backingDevicePathEnv = "OTAPATCH_BACKING_DEVICE"

// BackingDevicePath returns the configured backing disk image or block
// device path.
func BackingDevicePath() string {
	if v := os.Getenv(backingDevicePathEnv); v != "" {
		return v
	}
	return defaultBackingDevicePath
}

// EnsureDir creates dir (and any missing parents) if it doesn't already
// exist and returns it unchanged, mirroring the teacher's
// config.EnsureTempDir helper used ahead of any scratch-file work; here
// the caller supplies the directory outright instead of a prefix under
// os.TempDir, since the cache backup directory is itself
// environment-overridable via CacheBackupPath.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("config: create directory %s: %w", dir, err)
	}
	return dir, nil
}
