// Content compression (§4.8): a document's stored bytes are optionally
// DEFLATE-compressed according to its resolved compression mode. Uses
// klauspost/compress's flate, the same package family the teacher reaches
// for over the standard library's compress/* implementations.
package xantippe

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// compressBytes returns data unchanged for CompressionNone, or DEFLATEd for
// CompressionDeflate. CompressionInherit must already be resolved by the
// caller (mode.go); passing it here is a programmer error.
func compressBytes(mode CompressionMode, data []byte) ([]byte, error) {
	switch mode {
	case CompressionNone:
		return data, nil
	case CompressionDeflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("%w: deflate writer: %v", ErrInvalidDocument, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("%w: deflate write: %v", ErrInvalidDocument, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("%w: deflate close: %v", ErrInvalidDocument, err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: unresolved compression mode %v", ErrInvalidArgument, mode)
	}
}

// decompressReader wraps r so reads return the original content, inflating
// on the fly for CompressionDeflate.
func decompressReader(mode CompressionMode, r io.Reader) (io.ReadCloser, error) {
	switch mode {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionDeflate:
		return flate.NewReader(r), nil
	default:
		return nil, fmt.Errorf("%w: unresolved compression mode %v", ErrInvalidArgument, mode)
	}
}
