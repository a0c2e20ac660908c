// Retrieval stream semantics (§4.2): available()/read advance a local
// cursor seeked into the shared file handle on each call; mark/reset are
// not supported; closing the stream never closes the shared file handle.
package xantippe

import (
	"errors"
	"io"
)

// RetrieveStream is a seekable, length-bounded view of one document's
// stored bytes. It is safe to use concurrently with other streams on
// different ids, but a single stream is not safe for concurrent use.
type RetrieveStream struct {
	section *io.SectionReader
	length  int64
	closed  bool
}

// Read implements io.Reader.
func (s *RetrieveStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, errors.New("xantippe: read on closed stream")
	}
	return s.section.Read(p)
}

// ReadAt implements io.ReaderAt, reading without disturbing the stream's
// own cursor.
func (s *RetrieveStream) ReadAt(p []byte, off int64) (int, error) {
	if s.closed {
		return 0, errors.New("xantippe: read on closed stream")
	}
	return s.section.ReadAt(p, off)
}

// Seek implements io.Seeker, bounded to the stream's extent.
func (s *RetrieveStream) Seek(offset int64, whence int) (int64, error) {
	return s.section.Seek(offset, whence)
}

// Available returns the number of bytes remaining to be read.
func (s *RetrieveStream) Available() int64 {
	pos, _ := s.section.Seek(0, io.SeekCurrent)
	return s.length - pos
}

// Length returns the stream's total length.
func (s *RetrieveStream) Length() int64 { return s.length }

// Close marks the stream unusable. The underlying shared file handle is
// untouched.
func (s *RetrieveStream) Close() error {
	s.closed = true
	return nil
}
