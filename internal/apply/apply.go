// Package apply implements the patch-application state machine: the
// orchestrator that triages source material, manages the cache backup,
// chooses a staging strategy, invokes a decoder, and commits the result
// atomically (or as atomically as the target kind allows).
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/open-edge-platform/otapatch/internal/apperr"
	"github.com/open-edge-platform/otapatch/internal/config"
	"github.com/open-edge-platform/otapatch/internal/decoder"
	"github.com/open-edge-platform/otapatch/internal/digest"
	"github.com/open-edge-platform/otapatch/internal/loader"
	"github.com/open-edge-platform/otapatch/internal/locator"
	"github.com/open-edge-platform/otapatch/internal/logger"
	"github.com/open-edge-platform/otapatch/internal/partition"
	"github.com/open-edge-platform/otapatch/internal/patchset"
	"github.com/open-edge-platform/otapatch/internal/sink"
	"github.com/open-edge-platform/otapatch/internal/spacemgr"
)

// cacheCopyMinMatchIndex preserves an asymmetry carried over unchanged
// from the original matching rule: a source-file match is accepted at
// any index >= 0, but a cache-backup match is only accepted at index > 0.
// Index 0 is reserved for "this is the source itself, not a recovered
// cache copy" in patch sets that rely on that convention; this is a
// preserved quirk, not a bug.
const cacheCopyMinMatchIndex = 1

// minFreeSpaceBytes and the 1.5x multiplier below are the filesystem
// target's "enough space" precondition.
const minFreeSpaceBytes = 256 * 1024

// cacheRecoveredStat is applied to a target committed from a cache-backup
// source, which (like a partition source) carries no real stat to
// preserve.
var cacheRecoveredStat = loader.Stat{Mode: 0o644}

// Apply transforms sourceLocator into targetLocator ("-" aliases
// targetLocator to sourceLocator) using patchSet, verifying the result
// against targetDigestHex. targetSize sizes the in-memory buffer for a
// partition target and the free-space check for a filesystem target; the
// decoded length itself is not compared against it. It is idempotent: a target already
// matching targetDigestHex returns success without performing any write.
func Apply(ctx context.Context, sourceLocator, targetLocator, targetDigestHex string, targetSize int64, patchSet *patchset.PatchSet) error {
	opID := uuid.New()
	log := logger.With("op_id", opID.String())

	// Step 1 — target aliasing.
	target := locator.ResolveAlias(targetLocator, sourceLocator)

	// Step 2 — target digest parse.
	targetDigest, err := digest.ParseDigest(targetDigestHex)
	if err != nil {
		return fmt.Errorf("apply: parse target digest %q: %w", targetDigestHex, err)
	}

	driver, err := openDriverIfNeeded(sourceLocator, target)
	if err != nil {
		return fmt.Errorf("apply: open partition driver: %w", err)
	}
	if driver != nil {
		defer driver.Close()
	}

	// Step 3 — early exit.
	targetFC, targetLoadErr := loader.Load(target, driver)
	if targetLoadErr == nil && targetFC.Digest == targetDigest {
		log.Infof("target %s already matches the expected digest, nothing to do", target)
		return nil
	}

	// Step 4 — source acquisition. If the early load was of the same
	// locator as the source and it succeeded, it already is the source;
	// no need to load it twice.
	var sourceFC *loader.FileContents
	var sourceLoadErr error
	if targetLoadErr != nil || target != sourceLocator {
		sourceFC, sourceLoadErr = loader.Load(sourceLocator, driver)
	} else {
		sourceFC, sourceLoadErr = targetFC, nil
	}

	// Step 5 — source triage.
	patchIdx := -1
	var sourceBytes []byte
	var sourceStat loader.Stat
	usingCache := false

	if sourceLoadErr == nil {
		if idx := digest.FindMatching(sourceFC.Digest, patchSet.SourceDigests); idx != digest.NotFound {
			patchIdx = idx
			sourceBytes = sourceFC.Data
			sourceStat = sourceFC.Stat
		}
	}

	if patchIdx == -1 {
		cacheData, cacheErr := readCacheBackup(config.CacheBackupPath())
		if cacheErr != nil {
			return fmt.Errorf("apply: source unavailable and cache backup unusable: %w", apperr.ErrCorruptSource)
		}
		cacheDigest := digest.Sum(cacheData)
		idx := digest.FindMatching(cacheDigest, patchSet.SourceDigests)
		if idx >= cacheCopyMinMatchIndex {
			patchIdx = idx
			sourceBytes = cacheData
			sourceStat = cacheRecoveredStat
			usingCache = true
			log.Infof("recovered source from cache backup, matched patch set entry %d", idx)
		}
	}

	if patchIdx == -1 {
		return fmt.Errorf("apply: no source material matched any known source digest: %w", apperr.ErrCorruptSource)
	}
	patch := patchSet.Patches[patchIdx]

	isPartitionTarget := locator.IsPartition(target)
	cacheBackupCreated := false
	var stagingPath string

	// Step 6/7/8 — commit strategy, decode, single-retry loop.
	var memSink *sink.MemorySink
	var hasher *digest.Hasher

	for attempt := 0; attempt < 2; attempt++ {
		freedThisPass := false
		hasher = digest.New()

		var outSink sink.Sink
		if isPartitionTarget {
			if !usingCache {
				if err := backupSource(sourceBytes, &cacheBackupCreated); err != nil {
					return err
				}
			}
			memSink = sink.NewMemorySink(int(targetSize))
			outSink = memSink
		} else {
			targetFS := topLevelDir(target)
			free, freeErr := spacemgr.FreeSpaceFor(targetFS)
			enough := freeErr == nil && free > minFreeSpaceBytes && float64(free) > 1.5*float64(targetSize)

			if !enough {
				switch {
				case locator.IsPartition(sourceLocator):
					return fmt.Errorf("apply: insufficient space on %s and source is a partition: %w", targetFS, apperr.ErrInsufficientSpace)
				case !usingCache:
					if err := backupSource(sourceBytes, &cacheBackupCreated); err != nil {
						return err
					}
					if err := os.Remove(sourceLocator); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("apply: unlink source %s to free space: %w: %w", sourceLocator, apperr.ErrIO, err)
					}
					freedThisPass = true
				}
				// Falls through to attempt staging regardless, per the
				// filesystem-target branch's "attempt staging regardless"
				// rule; a still-short filesystem surfaces as a decode/write
				// failure the retry loop can react to.
			}

			stagingPath = target + ".patch"
			fileSink, err := sink.NewFileSink(stagingPath)
			if err != nil {
				return fmt.Errorf("apply: open staging file %s: %w", stagingPath, err)
			}
			defer fileSink.Close()
			outSink = fileSink
		}

		decodeErr := decoder.Apply(patch, sourceBytes, outSink, hasher)
		if decodeErr == nil {
			break
		}

		if !isPartitionTarget && stagingPath != "" {
			_ = os.Remove(stagingPath)
		}
		if freedThisPass && attempt == 0 {
			log.Warnf("decode failed on first attempt after freeing space, retrying once: %v", decodeErr)
			continue
		}
		return fmt.Errorf("apply: decode failed: %w", decodeErr)
	}

	// Step 9 — verify.
	gotDigest := hasher.Sum()
	if gotDigest != targetDigest {
		if !isPartitionTarget && stagingPath != "" {
			_ = os.Remove(stagingPath)
		}
		return fmt.Errorf("apply: decoded result digest %s != expected %s: %w", gotDigest, targetDigest, apperr.ErrDigestMismatch)
	}

	// Step 10 — commit.
	if isPartitionTarget {
		if err := commitPartition(driver, target, memSink.Bytes()); err != nil {
			return fmt.Errorf("apply: commit partition target: %w", err)
		}
	} else {
		if err := commitFile(stagingPath, target, sourceStat); err != nil {
			return fmt.Errorf("apply: commit filesystem target: %w", err)
		}
	}

	// Step 11 — cleanup. The backup is this invocation's responsibility to
	// remove both when it wrote a fresh one (cacheBackupCreated) and when
	// it consumed a pre-existing one during cache recovery (usingCache):
	// either way, once the target has been verified and committed there's
	// nothing left for the backup to protect against.
	if cacheBackupCreated || usingCache {
		if err := os.Remove(config.CacheBackupPath()); err != nil && !os.IsNotExist(err) {
			log.Warnf("failed to remove cache backup %s: %v", config.CacheBackupPath(), err)
		}
	}

	log.Infof("applied patch to %s", target)
	return nil
}

func backupSource(sourceBytes []byte, created *bool) error {
	dir := filepath.Dir(config.CacheBackupPath())
	if err := spacemgr.CacheSizeCheck(dir, int64(len(sourceBytes))); err != nil {
		return fmt.Errorf("apply: ensure cache space for source backup: %w", err)
	}
	if err := writeCacheBackup(config.CacheBackupPath(), sourceBytes); err != nil {
		return fmt.Errorf("apply: back up source: %w", err)
	}
	*created = true
	return nil
}

func commitPartition(driver *partition.Driver, target string, data []byte) error {
	name, err := locator.PartitionName(target)
	if err != nil {
		return err
	}
	w, err := driver.Writer(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.Erase(-1); err != nil {
		return err
	}
	return w.Close()
}

func commitFile(stagingPath, target string, stat loader.Stat) error {
	if err := os.Chmod(stagingPath, stat.Mode); err != nil {
		return fmt.Errorf("chmod %s: %w: %w", stagingPath, apperr.ErrIO, err)
	}
	// Ownership restore is best-effort: the orchestrator normally runs
	// privileged (raw partition writes require it anyway), but an
	// unprivileged caller patching a plain file it doesn't own shouldn't
	// lose an otherwise-correct, digest-verified result over EPERM here.
	if err := chown(stagingPath, stat.UID, stat.GID); err != nil {
		logger.Warnf("chown %s to %d:%d failed, keeping the staging file's existing ownership: %v", stagingPath, stat.UID, stat.GID, err)
	}
	if err := os.Rename(stagingPath, target); err != nil {
		return fmt.Errorf("rename %s to %s: %w: %w", stagingPath, target, apperr.ErrIO, err)
	}
	return nil
}

// openDriverIfNeeded opens the backing partition driver only when at
// least one of the given locators is a partition locator, so plain
// filesystem-to-filesystem patches never touch the backing device.
func openDriverIfNeeded(locs ...string) (*partition.Driver, error) {
	for _, l := range locs {
		if locator.IsPartition(l) {
			return partition.Open(config.BackingDevicePath())
		}
	}
	return nil, nil
}

// topLevelDir returns the portion of path up to (but not including) its
// second '/', the target filesystem's mount-point-ish prefix used to
// query free space, per the filesystem-target commit strategy.
func topLevelDir(path string) string {
	if !strings.HasPrefix(path, "/") {
		return filepath.Dir(path)
	}
	idx := strings.Index(path[1:], "/")
	if idx == -1 {
		return path
	}
	return path[:idx+1]
}
