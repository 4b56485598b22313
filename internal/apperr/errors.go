// Package apperr defines the sentinel error kinds shared across
// otapatch's packages, so callers (and tests) can branch on cause with
// errors.Is instead of string-matching messages.
package apperr

import "errors"

var (
	// ErrMalformedLocator means a locator or manifest field's syntax was
	// invalid.
	ErrMalformedLocator = errors.New("malformed locator")

	// ErrIO covers open/read/write/stat/rename/chmod/chown failures.
	ErrIO = errors.New("i/o error")

	// ErrShortTransfer means a read or write returned fewer bytes than
	// requested.
	ErrShortTransfer = errors.New("short transfer")

	// ErrDigestMismatch means a computed digest did not match any
	// expected candidate.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrCorruptSource means neither the source nor the cache backup
	// yielded usable bytes.
	ErrCorruptSource = errors.New("corrupt source")

	// ErrUnknownPatchFormat means the patch blob's magic prefix was not
	// recognized.
	ErrUnknownPatchFormat = errors.New("unknown patch format")

	// ErrInsufficientSpace means free-space preconditions were not met
	// even after reclamation.
	ErrInsufficientSpace = errors.New("insufficient space")

	// ErrDecoderFailure means the bsdiff/imgdiff decoder reported
	// failure.
	ErrDecoderFailure = errors.New("decoder failure")
)
