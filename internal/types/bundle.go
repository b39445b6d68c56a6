package types

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// FormatText is the canonical plain-text clipboard format.
const FormatText = "text/plain"

// maxFieldLen bounds a single length-prefixed field in the stream so a
// corrupt prefix cannot trigger an enormous allocation.
const maxFieldLen = 64 * 1024 * 1024

// Bundle is a multi-format snapshot of one logical clipboard content:
// an ordered mapping from format identifier to raw payload bytes.
// Format order is preserved from insertion so the serialized form is
// deterministic, but equality and fingerprinting never depend on it.
type Bundle struct {
	formats  []string
	payloads map[string][]byte
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{payloads: make(map[string][]byte)}
}

// NewTextBundle returns a bundle holding s under the text/plain format.
func NewTextBundle(s string) *Bundle {
	b := NewBundle()
	b.Set(FormatText, []byte(s))
	return b
}

// Set stores data under format, replacing any previous payload for it.
func (b *Bundle) Set(format string, data []byte) {
	if _, ok := b.payloads[format]; !ok {
		b.formats = append(b.formats, format)
	}
	b.payloads[format] = data
}

// Data returns the payload stored under format, or nil when absent.
func (b *Bundle) Data(format string) []byte {
	return b.payloads[format]
}

// Has reports whether format is present in the bundle.
func (b *Bundle) Has(format string) bool {
	_, ok := b.payloads[format]
	return ok
}

// Formats returns the format identifiers in insertion order.
func (b *Bundle) Formats() []string {
	out := make([]string, len(b.formats))
	copy(out, b.formats)
	return out
}

// Len returns the number of formats in the bundle.
func (b *Bundle) Len() int {
	return len(b.formats)
}

// Text returns the text/plain payload as a string, empty when absent.
func (b *Bundle) Text() string {
	return string(b.payloads[FormatText])
}

// Equal reports whether both bundles carry the same formats with
// byte-equal payloads. Format order is irrelevant. This is the exact
// comparison the history uses for front-insert deduplication.
func (b *Bundle) Equal(other *Bundle) bool {
	if b == nil || other == nil {
		return b == other
	}
	if len(b.formats) != len(other.formats) {
		return false
	}
	for format, data := range b.payloads {
		od, ok := other.payloads[format]
		if !ok || !bytes.Equal(data, od) {
			return false
		}
	}
	return true
}

// WriteTo serializes the bundle as a format-count-prefixed list of
// (name, payload) pairs, every length a big-endian uint32. The same
// layout is used for wire payloads and history persistence.
func (b *Bundle) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(b.formats)))
	for _, format := range b.formats {
		writeUint32(&buf, uint32(len(format)))
		buf.WriteString(format)
		data := b.payloads[format]
		writeUint32(&buf, uint32(len(data)))
		buf.Write(data)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Serialize returns the bundle's stream form as a byte slice.
func (b *Bundle) Serialize() []byte {
	var buf bytes.Buffer
	b.WriteTo(&buf) //nolint:errcheck // bytes.Buffer writes cannot fail
	return buf.Bytes()
}

// ReadBundleFrom decodes one bundle from r in the WriteTo layout.
func ReadBundleFrom(r io.Reader) (*Bundle, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read format count: %w", err)
	}
	if count > maxFieldLen {
		return nil, fmt.Errorf("format count %d exceeds limit", count)
	}
	b := NewBundle()
	for i := uint32(0); i < count; i++ {
		name, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read format name: %w", err)
		}
		data, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload for %q: %w", name, err)
		}
		b.Set(string(name), data)
	}
	return b, nil
}

// DeserializeBundle decodes one bundle from its Serialize form.
func DeserializeBundle(data []byte) (*Bundle, error) {
	return ReadBundleFrom(bytes.NewReader(data))
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint32(r io.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func readField(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, fmt.Errorf("field length %d exceeds limit", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// bundleJSON is the JSON shape used when a bundle rides inside a
// command request or response. Payloads are base64 via []byte.
type bundleJSON struct {
	Formats []string          `json:"formats"`
	Data    map[string][]byte `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(bundleJSON{Formats: b.formats, Data: b.payloads})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var raw bundleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.formats = nil
	b.payloads = make(map[string][]byte, len(raw.Formats))
	for _, format := range raw.Formats {
		b.Set(format, raw.Data[format])
	}
	return nil
}
