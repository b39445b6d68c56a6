package clipboard

import (
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/clipdot/clipd/internal/types"
)

// Fingerprint combines, for each requested format present in the
// bundle, a hash of the payload and a hash of the format name into an
// XOR accumulator. The result is order-independent, so two bundles
// carrying the same formats in different order fingerprint identically.
//
// Formats absent from the bundle contribute nothing rather than a zero
// term; a bundle missing a requested format is therefore
// indistinguishable from one carrying empty bytes for it. The value is
// an approximate identity for dedup and lookup, not a cryptographic one.
func Fingerprint(b *types.Bundle, formats []string) uint64 {
	var fp uint64
	for _, format := range formats {
		if !b.Has(format) {
			continue
		}
		fp ^= xxhash.Sum64(b.Data(format)) ^ xxhash.Sum64String(format)
	}
	return fp
}

// CloneBundle copies a bundle for transport or storage. With an
// allowList only the listed formats with non-empty payloads are kept.
// With a nil allowList every format whose name is non-empty and starts
// with a lowercase letter is kept; uppercase names (TIMESTAMP, TARGETS
// and similar selection-internal formats) are transient and dropped.
func CloneBundle(b *types.Bundle, allowList []string) *types.Bundle {
	clone := types.NewBundle()
	if allowList != nil {
		for _, format := range allowList {
			if data := b.Data(format); len(data) > 0 {
				clone.Set(format, append([]byte(nil), data...))
			}
		}
		return clone
	}
	for _, format := range b.Formats() {
		if format == "" || !unicode.IsLower(rune(format[0])) {
			continue
		}
		clone.Set(format, append([]byte(nil), b.Data(format)...))
	}
	return clone
}
