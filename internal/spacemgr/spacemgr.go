// Package spacemgr queries free space and reclaims it by shelling out to
// an external cache-eviction policy, the counterpart of the teacher's
// file.CheckDiskSpace pre-flight check generalized into a query/reclaim
// pair the orchestrator can call before any destructive step.
package spacemgr

import (
	"fmt"
	"os"

	"github.com/open-edge-platform/otapatch/internal/shellexec"
)

// cacheEvictCmdEnv names the external command invoked to reclaim cache
// space. It receives the number of bytes requested as its sole argument.
const cacheEvictCmdEnv = "OTAPATCH_CACHE_EVICT_CMD"

// FreeSpaceFor returns the free space, in bytes, on the filesystem
// containing path.
func FreeSpaceFor(path string) (int64, error) {
	return freeSpaceFor(path)
}

// CacheSizeCheck requests at least bytes of free space in the cache
// directory by invoking the configured external eviction command. If no
// eviction command is configured, it succeeds only when enough space
// already exists.
func CacheSizeCheck(dir string, bytes int64) error {
	free, err := FreeSpaceFor(dir)
	if err != nil {
		return fmt.Errorf("spacemgr: query free space on %s: %w", dir, err)
	}
	if free >= bytes {
		return nil
	}

	evictCmd := os.Getenv(cacheEvictCmdEnv)
	if evictCmd == "" {
		return fmt.Errorf("spacemgr: %d bytes free on %s, need %d, and no eviction command configured", free, dir, bytes)
	}

	cmd := fmt.Sprintf("%s %d", evictCmd, bytes)
	if _, err := shellexec.ExecCmd(cmd); err != nil {
		return fmt.Errorf("spacemgr: cache eviction command failed: %w", err)
	}

	free, err = FreeSpaceFor(dir)
	if err != nil {
		return fmt.Errorf("spacemgr: query free space on %s after eviction: %w", dir, err)
	}
	if free < bytes {
		return fmt.Errorf("spacemgr: still only %d bytes free on %s after eviction, need %d", free, dir, bytes)
	}
	return nil
}
