package imgdiff

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/open-edge-platform/otapatch/internal/digest"
)

func u64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func buildPatch(chunks ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	count := make([]byte, 4)
	binary.LittleEndian.PutUint32(count, uint32(len(chunks)))
	buf.Write(count)
	for _, c := range chunks {
		buf.Write(c)
	}
	return buf.Bytes()
}

func rawChunk(data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(chunkRaw)
	buf.Write(u64(uint64(len(data))))
	buf.Write(data)
	return buf.Bytes()
}

func sourceCopyChunk(offset, length uint64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(chunkSourceCopy)
	buf.Write(u64(offset))
	buf.Write(u64(length))
	return buf.Bytes()
}

type memSink struct{ buf []byte }

func (m *memSink) Write(p []byte) (int, error) {
	m.buf = append(m.buf, p...)
	return len(p), nil
}

func TestApplyRawAndSourceCopyChunks(t *testing.T) {
	source := []byte("0123456789")
	patch := buildPatch(
		rawChunk([]byte("hello ")),
		sourceCopyChunk(2, 4), // "2345"
	)

	var d Decoder
	out := &memSink{}
	h := digest.New()
	if err := d.Apply(source, patch, out, h); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []byte("hello 2345")
	if !bytes.Equal(out.buf, want) {
		t.Fatalf("output = %q, want %q", out.buf, want)
	}
	if h.Sum() != digest.Sum(want) {
		t.Fatal("hasher did not accumulate the emitted bytes")
	}
}

func TestApplyRejectsSourceCopyPastEnd(t *testing.T) {
	source := []byte("abc")
	patch := buildPatch(sourceCopyChunk(1, 10))

	var d Decoder
	out := &memSink{}
	if err := d.Apply(source, patch, out, digest.New()); err == nil {
		t.Fatal("expected error for a source copy past the end of source")
	}
}

func TestApplyRejectsMissingMagic(t *testing.T) {
	var d Decoder
	if err := d.Apply(nil, []byte("not a patch at all!!"), &memSink{}, digest.New()); err == nil {
		t.Fatal("expected error for a patch blob missing the IMGDIFF2 magic")
	}
}
