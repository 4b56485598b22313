// Package bsdiff implements a minimal decoder for the classic BSDIFF40
// on-disk patch format: a 32-byte header followed by three
// bzip2-compressed streams (control, diff, extra). Decompression uses
// compress/bzip2 from the standard library — bzip2 has no third-party
// decompressor in the example pack and the standard library's is
// read-only, which is exactly what a decoder needs.
package bsdiff

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/open-edge-platform/otapatch/internal/digest"
	"github.com/open-edge-platform/otapatch/internal/sink"
)

// Magic is the 8-byte prefix identifying a BSDIFF40 patch.
const Magic = "BSDIFF40"

const headerSize = 32

// Decoder applies a BSDIFF40 patch.
type Decoder struct{}

// Apply decodes patch against source, writing the reconstructed target
// bytes to s and folding every emitted byte into hasher.
func (Decoder) Apply(source []byte, patch []byte, s sink.Sink, hasher *digest.Hasher) error {
	if len(patch) < headerSize || string(patch[:8]) != Magic {
		return fmt.Errorf("bsdiff: missing %s magic", Magic)
	}

	ctrlLen := decodeOfftin(patch[8:16])
	diffLen := decodeOfftin(patch[16:24])
	newSize := decodeOfftin(patch[24:32])
	if ctrlLen < 0 || diffLen < 0 || newSize < 0 {
		return fmt.Errorf("bsdiff: negative length in header")
	}

	ctrlStart := int64(headerSize)
	diffStart := ctrlStart + ctrlLen
	extraStart := diffStart + diffLen
	if extraStart > int64(len(patch)) {
		return fmt.Errorf("bsdiff: header lengths exceed patch size")
	}

	ctrlReader := bzip2.NewReader(bytes.NewReader(patch[ctrlStart:diffStart]))
	diffReader := bzip2.NewReader(bytes.NewReader(patch[diffStart:extraStart]))
	extraReader := bzip2.NewReader(bytes.NewReader(patch[extraStart:]))

	var oldPos, newPos int64
	for newPos < newSize {
		x, y, z, err := readControlTriple(ctrlReader)
		if err != nil {
			return fmt.Errorf("bsdiff: read control triple: %w", err)
		}
		if x < 0 || y < 0 {
			return fmt.Errorf("bsdiff: negative diff/extra length in control triple")
		}
		if newPos+x > newSize {
			return fmt.Errorf("bsdiff: diff block overruns target size")
		}

		diffChunk := make([]byte, x)
		if _, err := io.ReadFull(diffReader, diffChunk); err != nil {
			return fmt.Errorf("bsdiff: read diff block: %w", err)
		}
		for i := range diffChunk {
			if oldPos+int64(i) >= 0 && oldPos+int64(i) < int64(len(source)) {
				diffChunk[i] += source[oldPos+int64(i)]
			}
		}
		if err := write(s, hasher, diffChunk); err != nil {
			return err
		}
		oldPos += x
		newPos += x

		if newPos+y > newSize {
			return fmt.Errorf("bsdiff: extra block overruns target size")
		}
		extraChunk := make([]byte, y)
		if _, err := io.ReadFull(extraReader, extraChunk); err != nil {
			return fmt.Errorf("bsdiff: read extra block: %w", err)
		}
		if err := write(s, hasher, extraChunk); err != nil {
			return err
		}
		newPos += y

		oldPos += z
	}

	return nil
}

func write(s sink.Sink, hasher *digest.Hasher, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := s.Write(p); err != nil {
		return fmt.Errorf("bsdiff: write output: %w", err)
	}
	_, _ = hasher.Write(p)
	return nil
}

// readControlTriple reads the three offtin-encoded int64 values (x, y, z)
// that make up one control-stream entry.
func readControlTriple(r io.Reader) (x, y, z int64, err error) {
	var buf [8]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, 0, err
	}
	x = decodeOfftin(buf[:])
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, 0, err
	}
	y = decodeOfftin(buf[:])
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, 0, err
	}
	z = decodeOfftin(buf[:])
	return x, y, z, nil
}

// decodeOfftin decodes bsdiff's signed-magnitude 8-byte integer: the low
// 7 bits of the high byte hold the top of the magnitude and its high bit
// is the sign, the remaining 7 bytes are little-endian magnitude bits.
func decodeOfftin(buf []byte) int64 {
	magnitude := int64(buf[7] & 0x7f)
	for i := 6; i >= 0; i-- {
		magnitude = magnitude*256 + int64(buf[i])
	}
	if buf[7]&0x80 != 0 {
		return -magnitude
	}
	return magnitude
}
