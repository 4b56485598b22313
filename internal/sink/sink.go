// Package sink provides the abstract byte-sink the patch decoders write
// through: a file-backed sink for filesystem targets and a bounded
// in-memory sink for partition targets (whose contents are staged in RAM
// before being pushed to the partition driver in one write).
package sink

import (
	"fmt"
	"io"
	"os"
)

// Sink is a narrow write-only collector. Decoders push decoded output
// through it without caring whether the backing store is a file or a
// memory buffer.
type Sink interface {
	io.Writer
}

// FileSink writes to an *os.File, retrying on short writes the way a
// direct os.File.Write against a partially-full filesystem or a signal-
// interrupted write can legitimately return n < len(p) without error.
type FileSink struct {
	f *os.File
}

// NewFileSink opens path for writing with an explicit restrictive mode
// (0600): the creation mode is never left unspecified, relying instead on
// a later chmod to set the real final mode once the source's stat is
// known.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

// Write implements io.Writer, retrying until all of p is written or an
// error occurs.
func (s *FileSink) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := s.f.Write(p[written:])
		written += n
		if err != nil {
			return written, fmt.Errorf("sink: short write to %s: %w", s.f.Name(), err)
		}
		if n == 0 {
			return written, fmt.Errorf("sink: write to %s made no progress", s.f.Name())
		}
	}
	return written, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}

// Name returns the path the sink was opened against.
func (s *FileSink) Name() string {
	return s.f.Name()
}

// MemorySink accumulates output into a pre-sized buffer, failing rather
// than growing past its bound. Partition targets decode into one of
// these, sized exactly to the target's declared size, before the whole
// buffer is pushed to the partition driver.
type MemorySink struct {
	buf []byte
	n   int
}

// NewMemorySink allocates a MemorySink bounded to exactly size bytes.
func NewMemorySink(size int) *MemorySink {
	return &MemorySink{buf: make([]byte, size)}
}

// Write implements io.Writer, returning an error if p would overflow the
// sink's fixed capacity.
func (s *MemorySink) Write(p []byte) (int, error) {
	if s.n+len(p) > len(s.buf) {
		return 0, fmt.Errorf("sink: write of %d bytes at offset %d overflows %d-byte buffer", len(p), s.n, len(s.buf))
	}
	copy(s.buf[s.n:], p)
	s.n += len(p)
	return len(p), nil
}

// Bytes returns the bytes written so far.
func (s *MemorySink) Bytes() []byte {
	return s.buf[:s.n]
}

// Full reports whether the sink has been filled to capacity.
func (s *MemorySink) Full() bool {
	return s.n == len(s.buf)
}
