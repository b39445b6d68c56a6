package clipboard

import (
	"time"

	"github.com/clipdot/clipd/internal/types"
)

// Item is one history entry: a bundle plus its cached fingerprint.
// Items are owned exclusively by the History that holds them; views
// refer to them by row index, never by independent lifetime.
type Item struct {
	bundle    *types.Bundle
	formats   []string // formats the fingerprint covers
	fp        uint64
	fpValid   bool
	createdAt time.Time
}

// NewItem wraps bundle; formats is the set the fingerprint is computed
// over (typically just text/plain).
func NewItem(bundle *types.Bundle, formats []string) *Item {
	return &Item{
		bundle:    bundle,
		formats:   formats,
		createdAt: time.Now(),
	}
}

// Bundle returns the item's bundle.
func (it *Item) Bundle() *types.Bundle {
	return it.bundle
}

// SetBundle replaces the item's bundle and invalidates the cached
// fingerprint.
func (it *Item) SetBundle(bundle *types.Bundle) {
	it.bundle = bundle
	it.fpValid = false
}

// Fingerprint returns the content fingerprint, computing and caching
// it on first use.
func (it *Item) Fingerprint() uint64 {
	if !it.fpValid {
		it.fp = Fingerprint(it.bundle, it.formats)
		it.fpValid = true
	}
	return it.fp
}

// CreatedAt returns when the item entered the history.
func (it *Item) CreatedAt() time.Time {
	return it.createdAt
}

// Equal reports whether both items carry equal bundles.
func (it *Item) Equal(other *Item) bool {
	if it == nil || other == nil {
		return it == other
	}
	return it.bundle.Equal(other.bundle)
}
