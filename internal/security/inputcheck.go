// Package security validates untrusted string input (locators, manifest
// fields, digest-list entries) before it reaches parsing or filesystem
// calls: reject embedded NULs, non-printable control characters, invalid
// UTF-8, and overlong values.
package security

import (
	"fmt"
	"unicode/utf8"
)

// Limits bounds the shape of a string ValidateString will accept.
type Limits struct {
	MaxLen int
}

// DefaultLimits returns the limits applied to locators and digest entries
// throughout otapatch.
func DefaultLimits() Limits {
	return Limits{MaxLen: 4096}
}

// ValidateString rejects s if it contains a NUL byte, any other ASCII
// control character below 0x20 except tab, the DEL character (0x7f),
// invalid UTF-8, or exceeds lim.MaxLen. name is
// used only to annotate the returned error.
func ValidateString(name, s string, lim Limits) error {
	if len(s) > lim.MaxLen {
		return fmt.Errorf("%s: exceeds maximum length %d", name, lim.MaxLen)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: invalid UTF-8", name)
	}
	for i, r := range s {
		if r == 0 {
			return fmt.Errorf("%s: contains NUL byte at offset %d", name, i)
		}
		if r < 0x20 && r != '\t' {
			return fmt.Errorf("%s: contains control character at offset %d", name, i)
		}
		if r == 0x7f {
			return fmt.Errorf("%s: contains DEL character at offset %d", name, i)
		}
	}
	return nil
}
