// Package partition adapts raw MTD-style flash partitions to the
// open/read/write/erase/close shape the spec requires, backed by
// github.com/diskfs/go-diskfs for partition-table discovery: the same
// library the teacher uses (diskfs.Open + GetPartitionTable) to inspect
// generated disk images, reused here the other direction, to resolve a
// named region before framing raw reads/writes against it.
package partition

import (
	"fmt"
	"os"
	"sync"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/open-edge-platform/otapatch/internal/apperr"
)

// diskAccessor is the narrow slice of *disk.Disk that scan needs, split
// out so the partition-table-to-region translation (scanCore) can be
// exercised against a fake in tests without building a real disk image.
type diskAccessor interface {
	GetPartitionTable() (partition.Table, error)
}

// Region is a named raw byte window inside the backing disk image or
// block device.
type Region struct {
	Name   string
	Offset int64 // byte offset of the region's first byte in the backing file
	Size   int64 // byte length of the region's allocated extent
}

// Driver is the partition-driver adapter: it owns the backing disk image
// or block device handle and resolves named regions to byte windows,
// memoizing the partition-table scan for the life of the Driver (one
// Driver per process, constructed once, rather than a package-level
// scanned-once flag — see the design notes on process-wide memoization).
type Driver struct {
	path string

	mu        sync.Mutex
	scanned   bool
	regions   map[string]Region
	blockSize int64

	file *os.File // raw io.ReaderAt / io.WriterAt handle
}

// Open opens the backing disk image or block device for raw I/O. The
// partition table is scanned lazily, on first Resolve, and memoized.
func Open(path string) (*Driver, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("partition: open backing file %s: %w", path, err)
	}
	return &Driver{path: path, file: f, regions: make(map[string]Region)}, nil
}

// Close releases the backing file handle.
func (d *Driver) Close() error {
	return d.file.Close()
}

// scan reads the partition table exactly once per Driver and populates
// the name -> Region map. Safe to call repeatedly; subsequent calls are
// no-ops once scanned is set.
func (d *Driver) scan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scanned {
		return nil
	}

	dsk, err := diskfs.Open(d.path)
	if err != nil {
		return fmt.Errorf("partition: open partition table on %s: %w", d.path, err)
	}
	defer dsk.Close()

	blockSize := dsk.LogicalBlocksize
	if blockSize <= 0 {
		blockSize = 512
	}

	return d.scanCore(dsk, blockSize)
}

// scanCore translates a partition table read from a diskAccessor into the
// name -> Region map, independent of how the accessor was obtained.
func (d *Driver) scanCore(dsk diskAccessor, blockSize int64) error {
	d.blockSize = blockSize

	table, err := dsk.GetPartitionTable()
	if err != nil {
		return fmt.Errorf("partition: read partition table on %s: %w", d.path, err)
	}

	switch t := table.(type) {
	case *gpt.Table:
		for _, p := range t.Partitions {
			name := p.Name
			if name == "" {
				continue
			}
			if p.Start == 0 && p.End == 0 {
				continue
			}
			d.regions[name] = Region{
				Name:   name,
				Offset: int64(p.Start) * d.blockSize,
				Size:   int64(p.End-p.Start+1) * d.blockSize,
			}
		}
	case *mbr.Table:
		// MBR carries no native partition-name field, unlike GPT; entries
		// are addressed by their 1-based slot instead ("p1", "p2", ...).
		for i, p := range t.Partitions {
			if p.Size == 0 {
				continue
			}
			name := fmt.Sprintf("p%d", i+1)
			d.regions[name] = Region{
				Name:   name,
				Offset: int64(p.Start) * d.blockSize,
				Size:   int64(p.Size) * d.blockSize,
			}
		}
	default:
		return fmt.Errorf("partition: unsupported partition table type %T", table)
	}

	d.scanned = true
	return nil
}

// Resolve returns the named region, triggering the (memoized) partition
// scan on first use.
func (d *Driver) Resolve(name string) (Region, error) {
	if err := d.scan(); err != nil {
		return Region{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.regions[name]
	if !ok {
		return Region{}, fmt.Errorf("partition: no partition named %q", name)
	}
	return r, nil
}

// ReadAt reads len(buf) bytes from region starting at the given
// region-relative offset. A short read is an error: there is no
// end-of-file signal on raw flash, so any read that doesn't fully
// satisfy the request is a failure, not a partial result.
func (d *Driver) ReadAt(region Region, buf []byte, relOffset int64) error {
	if relOffset+int64(len(buf)) > region.Size {
		return fmt.Errorf("partition: read past end of region %s (%d+%d > %d)", region.Name, relOffset, len(buf), region.Size)
	}
	n, err := d.file.ReadAt(buf, region.Offset+relOffset)
	if err != nil {
		return fmt.Errorf("partition: read %s at %d: %w: %w", region.Name, relOffset, apperr.ErrIO, err)
	}
	if n != len(buf) {
		return fmt.Errorf("partition: short read from %s: got %d want %d: %w", region.Name, n, len(buf), apperr.ErrShortTransfer)
	}
	return nil
}

// Writer is a write context over a region: push bytes sequentially, then
// erase (pad/finalize) and close, mirroring the open/write/erase/close
// framing of a real flash driver.
type Writer struct {
	driver *Driver
	region Region
	cursor int64
}

// Writer opens a write context over the named region.
func (d *Driver) Writer(name string) (*Writer, error) {
	region, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	return &Writer{driver: d, region: region}, nil
}

// Write pushes p to the partition at the current cursor. A short write is
// an error; the cursor advances only by what was actually written.
func (w *Writer) Write(p []byte) (int, error) {
	if w.cursor+int64(len(p)) > w.region.Size {
		return 0, fmt.Errorf("partition: write past end of region %s", w.region.Name)
	}
	n, err := w.driver.file.WriteAt(p, w.region.Offset+w.cursor)
	w.cursor += int64(n)
	if err != nil {
		return n, fmt.Errorf("partition: write to %s: %w: %w", w.region.Name, apperr.ErrIO, err)
	}
	if n != len(p) {
		return n, fmt.Errorf("partition: short write to %s: got %d want %d: %w", w.region.Name, n, len(p), apperr.ErrShortTransfer)
	}
	return n, nil
}

// Erase pads/finalizes the remaining blocks in the region. n is the
// number of bytes to erase from the cursor onward; the sentinel -1 means
// "erase everything remaining in the region", the framing used once a
// write pass has pushed its final byte.
func (w *Writer) Erase(n int64) error {
	remaining := w.region.Size - w.cursor
	if n == -1 {
		n = remaining
	}
	if n > remaining {
		return fmt.Errorf("partition: erase of %d bytes exceeds %d remaining in region %s", n, remaining, w.region.Name)
	}
	if n == 0 {
		return nil
	}
	zeros := make([]byte, n)
	if _, err := w.driver.file.WriteAt(zeros, w.region.Offset+w.cursor); err != nil {
		return fmt.Errorf("partition: erase %s: %w", w.region.Name, err)
	}
	w.cursor += n
	return nil
}

// Close finalizes the write context. Raw writes above are unbuffered, so
// there is nothing to flush; Close exists to give callers a single
// symmetric point matching the spec's open/write/erase/close framing.
func (w *Writer) Close() error {
	return nil
}
