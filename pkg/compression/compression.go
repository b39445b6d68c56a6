package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Threshold is the minimum size worth compressing; smaller blobs are
// returned unchanged.
const Threshold = 1024

// Compress gzip-encodes data when it meets the threshold. The second
// result reports whether compression was applied.
func Compress(data []byte) ([]byte, bool, error) {
	if len(data) < Threshold {
		return data, false, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to finalize compression: %w", err)
	}
	return buf.Bytes(), true, nil
}

// Decompress reverses Compress for a blob it marked as compressed.
func Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed data: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
