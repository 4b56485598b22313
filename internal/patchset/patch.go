// Package patchset holds the patch-set data model: a tagged patch blob,
// the set of (source digest -> patch) pairs the orchestrator matches
// against, and the manifest loader that turns a YAML/JSON document into
// one.
package patchset

import "bytes"

// Kind identifies the binary-diff format a Patch's bytes are encoded in.
type Kind int

const (
	KindUnknown Kind = iota
	KindBSDIFF
	KindIMGDIFF
)

func (k Kind) String() string {
	switch k {
	case KindBSDIFF:
		return "bsdiff"
	case KindIMGDIFF:
		return "imgdiff"
	default:
		return "unknown"
	}
}

var (
	magicBSDIFF  = []byte("BSDIFF40")
	magicIMGDIFF = []byte("IMGDIFF2")
)

// Patch is an opaque tagged blob: its Kind is determined by sniffing the
// first 8 bytes, any other prefix leaving it KindUnknown.
type Patch struct {
	Kind  Kind
	Bytes []byte
}

// NewPatch tags raw bytes with their sniffed Kind.
func NewPatch(raw []byte) Patch {
	return Patch{Kind: SniffKind(raw), Bytes: raw}
}

// SniffKind inspects the first 8 bytes of raw to determine its Kind.
func SniffKind(raw []byte) Kind {
	switch {
	case len(raw) >= 8 && bytes.Equal(raw[:8], magicBSDIFF):
		return KindBSDIFF
	case len(raw) >= 8 && bytes.Equal(raw[:8], magicIMGDIFF):
		return KindIMGDIFF
	default:
		return KindUnknown
	}
}

// PatchSet is the full set of candidate patches the orchestrator
// triages against, keyed positionally: Patches[i] applies to a source
// whose digest is SourceDigests[i].
type PatchSet struct {
	SourceDigests []string
	Patches       []Patch
}
