// Package decoder dispatches a tagged patch blob to the bsdiff or
// imgdiff decoder behind a single narrow interface, the orchestrator's
// only dependency on either format.
package decoder

import (
	"fmt"

	"github.com/open-edge-platform/otapatch/internal/apperr"
	"github.com/open-edge-platform/otapatch/internal/decoder/bsdiff"
	"github.com/open-edge-platform/otapatch/internal/decoder/imgdiff"
	"github.com/open-edge-platform/otapatch/internal/digest"
	"github.com/open-edge-platform/otapatch/internal/patchset"
	"github.com/open-edge-platform/otapatch/internal/sink"
)

// Decoder applies a patch blob against source bytes, pushing decoded
// output to sink and folding it into hasher as it goes.
type Decoder interface {
	Apply(source []byte, patch []byte, s sink.Sink, hasher *digest.Hasher) error
}

// Apply dispatches patch.Kind to the matching decoder. KindUnknown (any
// patch blob whose first 8 bytes weren't recognized) is ErrUnknownPatchFormat.
func Apply(patch patchset.Patch, source []byte, s sink.Sink, hasher *digest.Hasher) error {
	var d Decoder
	switch patch.Kind {
	case patchset.KindBSDIFF:
		d = bsdiff.Decoder{}
	case patchset.KindIMGDIFF:
		d = imgdiff.Decoder{}
	default:
		return fmt.Errorf("decoder: unrecognized patch format: %w", apperr.ErrUnknownPatchFormat)
	}
	if err := d.Apply(source, patch.Bytes, s, hasher); err != nil {
		return fmt.Errorf("decoder: %s: %w: %w", patch.Kind, apperr.ErrDecoderFailure, err)
	}
	return nil
}
