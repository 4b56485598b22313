package partition

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	dfpartition "github.com/diskfs/go-diskfs/partition"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

type fakeDiskAccessor struct {
	table dfpartition.Table
	err   error
}

func (f *fakeDiskAccessor) GetPartitionTable() (dfpartition.Table, error) {
	return f.table, f.err
}

func TestScanCoreGPT(t *testing.T) {
	d := &Driver{path: "unused", regions: make(map[string]Region)}
	fake := &fakeDiskAccessor{table: &gpt.Table{
		Partitions: []*gpt.Partition{
			{Name: "boot", Start: 2048, End: 2048 + 7}, // 8 LBAs
			{Name: "", Start: 10000, End: 10999},       // unnamed entries are skipped
		},
	}}
	if err := d.scanCore(fake, 512); err != nil {
		t.Fatalf("scanCore failed: %v", err)
	}
	r, ok := d.regions["boot"]
	if !ok {
		t.Fatal("expected region \"boot\"")
	}
	if r.Offset != 2048*512 || r.Size != 8*512 {
		t.Fatalf("region = %+v, want offset %d size %d", r, 2048*512, 8*512)
	}
	if len(d.regions) != 1 {
		t.Fatalf("expected unnamed GPT entries to be skipped, got %d regions", len(d.regions))
	}
	if !d.scanned {
		t.Fatal("expected scanned to be set")
	}
}

func TestScanCoreMBR(t *testing.T) {
	d := &Driver{path: "unused", regions: make(map[string]Region)}
	fake := &fakeDiskAccessor{table: &mbr.Table{
		Partitions: []*mbr.Partition{
			{Start: 2048, Size: 8},
			{Start: 0, Size: 0}, // zero-size entries are skipped
		},
	}}
	if err := d.scanCore(fake, 512); err != nil {
		t.Fatalf("scanCore failed: %v", err)
	}
	r, ok := d.regions["p1"]
	if !ok {
		t.Fatal("expected synthesized region name \"p1\"")
	}
	if r.Offset != 2048*512 || r.Size != 8*512 {
		t.Fatalf("region = %+v, want offset %d size %d", r, 2048*512, 8*512)
	}
	if _, ok := d.regions["p2"]; ok {
		t.Fatal("expected the zero-size MBR entry to be skipped")
	}
}

// newTestDriver builds a Driver against a zero-filled backing file of the
// given size, with the partition scan short-circuited to a single
// preconfigured region. This exercises the read/write/erase framing
// without depending on constructing a real GPT/MBR image.
func newTestDriver(t *testing.T, backingSize int64, region Region) *Driver {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create backing file: %v", err)
	}
	if err := f.Truncate(backingSize); err != nil {
		t.Fatalf("truncate backing file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close backing file: %v", err)
	}

	rw, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("reopen backing file: %v", err)
	}
	t.Cleanup(func() { rw.Close() })

	return &Driver{
		path:      path,
		file:      rw,
		regions:   map[string]Region{region.Name: region},
		scanned:   true,
		blockSize: 512,
	}
}

func TestResolveUnknownRegion(t *testing.T) {
	d := newTestDriver(t, 4096, Region{Name: "boot", Offset: 0, Size: 2048})
	if _, err := d.Resolve("system"); err == nil {
		t.Fatal("expected error resolving unknown region")
	}
	r, err := d.Resolve("boot")
	if err != nil {
		t.Fatalf("Resolve(boot) failed: %v", err)
	}
	if r.Size != 2048 {
		t.Fatalf("region size = %d, want 2048", r.Size)
	}
}

func TestWriteThenReadAt(t *testing.T) {
	region := Region{Name: "boot", Offset: 1024, Size: 100}
	d := newTestDriver(t, 4096, region)

	w, err := d.Writer("boot")
	if err != nil {
		t.Fatalf("Writer failed: %v", err)
	}
	payload := []byte("hello partition")
	if n, err := w.Write(payload); err != nil || n != len(payload) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if err := w.Erase(-1); err != nil {
		t.Fatalf("Erase(-1) failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	buf := make([]byte, len(payload))
	if err := d.ReadAt(region, buf, 0); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("ReadAt = %q, want %q", buf, payload)
	}

	// The padding written by Erase(-1) should be zero bytes, and the
	// region should be filled to its declared size.
	pad := make([]byte, region.Size-int64(len(payload)))
	if err := d.ReadAt(region, pad, int64(len(payload))); err != nil {
		t.Fatalf("ReadAt padding failed: %v", err)
	}
	for i, b := range pad {
		if b != 0 {
			t.Fatalf("pad byte %d = %d, want 0", i, b)
		}
	}
}

func TestWritePastEndOfRegionFails(t *testing.T) {
	region := Region{Name: "boot", Offset: 0, Size: 10}
	d := newTestDriver(t, 4096, region)
	w, err := d.Writer("boot")
	if err != nil {
		t.Fatalf("Writer failed: %v", err)
	}
	if _, err := w.Write(make([]byte, 20)); err == nil {
		t.Fatal("expected error writing past end of region")
	}
}

func TestReadAtPastEndOfRegionFails(t *testing.T) {
	region := Region{Name: "boot", Offset: 0, Size: 10}
	d := newTestDriver(t, 4096, region)
	if err := d.ReadAt(region, make([]byte, 20), 0); err == nil {
		t.Fatal("expected error reading past end of region")
	}
}
