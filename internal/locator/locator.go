// Package locator parses the textual locator grammar used for both
// source and target resources: a plain filesystem path, or an
// "MTD:<name>[:<size>:<digest>]..." partition locator.
package locator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/open-edge-platform/otapatch/internal/apperr"
	"github.com/open-edge-platform/otapatch/internal/digest"
	"github.com/open-edge-platform/otapatch/internal/security"
)

// Prefix marks a locator as a raw MTD-style partition reference rather
// than a filesystem path.
const Prefix = "MTD:"

// TargetAlias is the locator string meaning "same as the source locator".
const TargetAlias = "-"

// Candidate is one (size, digest) pair the partition loader probes.
type Candidate struct {
	Size   int64
	Digest string // hex, possibly with a non-hex, non-':' suffix, kept unparsed until matched
}

// PartitionSpec is a parsed "MTD:<name>:<size>:<digest>..." locator.
type PartitionSpec struct {
	Name       string
	Candidates []Candidate
}

// IsPartition reports whether raw starts with the MTD: prefix.
func IsPartition(raw string) bool {
	return strings.HasPrefix(raw, Prefix)
}

// ResolveAlias replaces the "-" target alias with sourceLocator,
// otherwise returns target unchanged.
func ResolveAlias(target, sourceLocator string) string {
	if target == TargetAlias {
		return sourceLocator
	}
	return target
}

// PartitionName extracts just the partition name from a locator of the
// form "MTD:<name>[:...]", for write-side locators where only the name
// matters.
func PartitionName(raw string) (string, error) {
	if err := security.ValidateString("locator", raw, security.DefaultLimits()); err != nil {
		return "", fmt.Errorf("locator: %w: %w", apperr.ErrMalformedLocator, err)
	}
	if !IsPartition(raw) {
		return "", fmt.Errorf("locator: %q is not an MTD: partition locator: %w", raw, apperr.ErrMalformedLocator)
	}
	rest := strings.TrimPrefix(raw, Prefix)
	name, _, _ := strings.Cut(rest, ":")
	if name == "" {
		return "", fmt.Errorf("locator: %q has an empty partition name: %w", raw, apperr.ErrMalformedLocator)
	}
	return name, nil
}

// ParsePartitionSpec parses the full load-side locator grammar,
// "MTD:<name>:<size>:<digest>[:<size>:<digest>]...", requiring at least
// one (size, digest) candidate pair and an even number of fields after
// the name (the invariant from the data model). Malformed locators are a
// hard error: earlier tooling printed a diagnostic and kept parsing past
// the bad tokens; this implementation never does that (see the design
// note on locator validation). Every ':' separates fields, so a
// "<hex>:<tag>" digest is split into two fields and the resulting odd
// field count is rejected. A digest field may still carry a suffix after
// some other non-hex character, per ParseDigest's own tolerance, which is
// why validation here defers to ParseDigest rather than checking field
// length directly.
func ParsePartitionSpec(raw string) (*PartitionSpec, error) {
	if err := security.ValidateString("locator", raw, security.DefaultLimits()); err != nil {
		return nil, fmt.Errorf("locator: %w: %w", apperr.ErrMalformedLocator, err)
	}
	if !IsPartition(raw) {
		return nil, fmt.Errorf("locator: %q is not an MTD: partition locator: %w", raw, apperr.ErrMalformedLocator)
	}

	fields := strings.Split(strings.TrimPrefix(raw, Prefix), ":")
	if len(fields) < 3 {
		return nil, fmt.Errorf("locator: %q has no (size, digest) candidates: %w", raw, apperr.ErrMalformedLocator)
	}
	name := fields[0]
	if name == "" {
		return nil, fmt.Errorf("locator: %q has an empty partition name: %w", raw, apperr.ErrMalformedLocator)
	}
	rest := fields[1:]
	if len(rest)%2 != 0 {
		return nil, fmt.Errorf("locator: %q has an odd number of candidate fields: %w", raw, apperr.ErrMalformedLocator)
	}

	spec := &PartitionSpec{Name: name}
	for i := 0; i < len(rest); i += 2 {
		sizeStr, digestStr := rest[i], rest[i+1]
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("locator: %q has an invalid size field %q: %w", raw, sizeStr, apperr.ErrMalformedLocator)
		}
		if _, err := digest.ParseDigest(digestStr); err != nil {
			return nil, fmt.Errorf("locator: %q has an invalid digest field %q: %w: %w", raw, digestStr, apperr.ErrMalformedLocator, err)
		}
		spec.Candidates = append(spec.Candidates, Candidate{Size: size, Digest: digestStr})
	}

	if len(spec.Candidates) == 0 {
		return nil, fmt.Errorf("locator: %q has no (size, digest) candidates: %w", raw, apperr.ErrMalformedLocator)
	}
	return spec, nil
}
