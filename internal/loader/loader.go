// Package loader implements Load, which turns a locator (a filesystem
// path or an "MTD:" partition reference) into FileContents: owned bytes
// plus the stat metadata and digest the orchestrator needs to make its
// crash-recovery decisions.
package loader

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/open-edge-platform/otapatch/internal/apperr"
	"github.com/open-edge-platform/otapatch/internal/digest"
	"github.com/open-edge-platform/otapatch/internal/locator"
	"github.com/open-edge-platform/otapatch/internal/logger"
	"github.com/open-edge-platform/otapatch/internal/partition"
)

var log = logger.Logger()

// regionDriver is the slice of *partition.Driver that loadPartition needs,
// split out so it can be exercised against a fake in tests without a real
// disk image or partition table.
type regionDriver interface {
	Resolve(name string) (partition.Region, error)
	ReadAt(region partition.Region, buf []byte, relOffset int64) error
}

// Stat is the subset of file metadata the orchestrator preserves across a
// patch (mode/uid/gid), synthesized for partition sources since raw
// flash carries none of it.
type Stat struct {
	Mode os.FileMode
	UID  uint32
	GID  uint32
}

// synthesizedStat is applied to any FileContents loaded from a partition,
// per the spec's synthesized-stat rule.
var synthesizedStat = Stat{Mode: 0o644, UID: 0, GID: 0}

// FileContents is a loaded resource: data, its digest, and its size/stat
// metadata. The orchestrator owns the returned value for the lifetime of
// one invocation.
type FileContents struct {
	Data   []byte
	Size   int64
	Digest digest.Digest
	Stat   Stat
}

// Load dispatches on the locator's MTD: prefix. driver may be nil when
// loc is not a partition locator.
func Load(loc string, driver regionDriver) (*FileContents, error) {
	if locator.IsPartition(loc) {
		if driver == nil {
			return nil, fmt.Errorf("loader: %q is a partition locator but no partition driver was supplied", loc)
		}
		return loadPartition(loc, driver)
	}
	return loadFile(loc)
}

// loadFile performs the plain-file load: stat, allocate, read exactly
// size bytes (a short read is an error since the file changed size out
// from under us), and digest the result.
func loadFile(path string) (*FileContents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w: %w", path, apperr.ErrIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("loader: stat %s: %w: %w", path, apperr.ErrIO, err)
	}

	size := info.Size()
	data := make([]byte, size)
	n, err := io.ReadFull(f, data)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: got %d of %d bytes: %w: %w", path, n, size, apperr.ErrShortTransfer, err)
	}

	return &FileContents{
		Data:   data,
		Size:   size,
		Digest: digest.Sum(data),
		Stat: Stat{
			Mode: info.Mode().Perm(),
			UID:  statUID(info),
			GID:  statGID(info),
		},
	}, nil
}

// loadPartition implements the speculative-prefix loader (§4.2): probe
// ascending-size (size, digest) candidates against a single shared
// running hash, since the partition itself carries no length metadata.
func loadPartition(loc string, driver regionDriver) (*FileContents, error) {
	spec, err := locator.ParsePartitionSpec(loc)
	if err != nil {
		return nil, err
	}

	region, err := driver.Resolve(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve partition %q: %w", spec.Name, err)
	}

	order := make([]int, len(spec.Candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return spec.Candidates[order[a]].Size < spec.Candidates[order[b]].Size
	})

	maxSize := int64(0)
	for _, c := range spec.Candidates {
		if c.Size > maxSize {
			maxSize = c.Size
		}
	}
	if maxSize > region.Size {
		return nil, fmt.Errorf("loader: partition %q: largest candidate %d exceeds region size %d", spec.Name, maxSize, region.Size)
	}

	buf := make([]byte, maxSize)
	hasher := digest.New()
	var pos int64

	for _, idx := range order {
		c := spec.Candidates[idx]
		if c.Size > pos {
			want := c.Size - pos
			if err := driver.ReadAt(region, buf[pos:c.Size], pos); err != nil {
				return nil, fmt.Errorf("loader: partition %q: %w", spec.Name, err)
			}
			if _, err := hasher.Write(buf[pos:c.Size]); err != nil {
				return nil, fmt.Errorf("loader: hash partition %q: %w", spec.Name, err)
			}
			log.Debugf("partition %s: read %d additional bytes to reach candidate size %d", spec.Name, want, c.Size)
			pos = c.Size
		}

		snapshot, err := hasher.Clone()
		if err != nil {
			return nil, fmt.Errorf("loader: clone hasher for partition %q: %w", spec.Name, err)
		}
		got := snapshot.Sum()

		wantDigest, err := digest.ParseDigest(c.Digest)
		if err != nil {
			return nil, fmt.Errorf("loader: partition %q candidate digest: %w", spec.Name, err)
		}
		if got == wantDigest {
			log.Debugf("partition %s: candidate size %d matched digest %s", spec.Name, c.Size, got)
			return &FileContents{
				Data:   append([]byte(nil), buf[:c.Size]...),
				Size:   c.Size,
				Digest: got,
				Stat:   synthesizedStat,
			}, nil
		}
	}

	return nil, fmt.Errorf("loader: partition %q: no candidate matched the partition's actual contents: %w", spec.Name, apperr.ErrDigestMismatch)
}
