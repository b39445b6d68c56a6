package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipdot/clipd/internal/types"
)

var hashedFormats = []string{"text/plain", "text/html"}

func TestFingerprintOrderIndependence(t *testing.T) {
	a := types.NewBundle()
	a.Set("text/plain", []byte("hello"))
	a.Set("text/html", []byte("<b>hello</b>"))

	b := types.NewBundle()
	b.Set("text/html", []byte("<b>hello</b>"))
	b.Set("text/plain", []byte("hello"))

	assert.Equal(t, Fingerprint(a, hashedFormats), Fingerprint(b, hashedFormats))

	// requested format order must not matter either
	reversed := []string{"text/html", "text/plain"}
	assert.Equal(t, Fingerprint(a, hashedFormats), Fingerprint(a, reversed))
}

func TestFingerprintContentSensitivity(t *testing.T) {
	a := types.NewTextBundle("hello")
	b := types.NewTextBundle("world")
	assert.NotEqual(t, Fingerprint(a, hashedFormats), Fingerprint(b, hashedFormats))
}

func TestFingerprintSkipsAbsentFormats(t *testing.T) {
	a := types.NewTextBundle("hello")

	b := types.NewTextBundle("hello")
	b.Set("application/x-extra", []byte("ignored"))

	// x-extra is not in the hashed set, so both fingerprints agree
	assert.Equal(t, Fingerprint(a, hashedFormats), Fingerprint(b, hashedFormats))

	// a missing requested format contributes nothing
	textOnly := types.NewTextBundle("hello")
	assert.Equal(t, Fingerprint(textOnly, hashedFormats), Fingerprint(textOnly, []string{"text/plain"}))
}

func TestFingerprintEmptyBundle(t *testing.T) {
	assert.Zero(t, Fingerprint(types.NewBundle(), hashedFormats))
}

func TestCloneBundleAllowList(t *testing.T) {
	b := types.NewBundle()
	b.Set("text/plain", []byte("hello"))
	b.Set("text/html", []byte("<b>hello</b>"))
	b.Set("image/png", nil) // empty payload must be dropped

	clone := CloneBundle(b, []string{"text/plain", "image/png", "text/rtf"})

	assert.Equal(t, []string{"text/plain"}, clone.Formats())
	assert.Equal(t, []byte("hello"), clone.Data("text/plain"))
}

func TestCloneBundleDropsTransientFormats(t *testing.T) {
	b := types.NewBundle()
	b.Set("text/plain", []byte("hello"))
	b.Set("TIMESTAMP", []byte{1, 2, 3, 4})
	b.Set("TARGETS", []byte("..."))
	b.Set("", []byte("nameless"))

	clone := CloneBundle(b, nil)

	assert.Equal(t, []string{"text/plain"}, clone.Formats())
}

func TestCloneBundleCopiesPayloads(t *testing.T) {
	b := types.NewTextBundle("hello")
	clone := CloneBundle(b, nil)

	// mutating the original must not leak into the clone
	b.Data("text/plain")[0] = 'H'
	assert.Equal(t, "hello", clone.Text())
}
