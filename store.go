// On-disk content store (C2): one flat file (contents.dbx) holding every
// document's bytes, and a free-list allocator (documents.dbx, the "FAT")
// mapping an id to its (offset, length) extent.
//
// Concurrent retrieve streams on distinct ids are safe; concurrent
// retrieve/store on the SAME id is the caller's responsibility via the lock
// manager (§4.2) — the store itself only guards its own bookkeeping.
package xantippe

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

const (
	contentFileName = "contents.dbx"
	fatFileName     = "documents.dbx"
)

// extent is one id's placement in the content file, plus a checksum of the
// stored (possibly compressed) bytes used to detect torn/corrupt reads.
type extent struct {
	id       uint32
	offset   int64
	length   int64
	checksum uint64
}

// ContentStore maps document ids to byte extents in a single flat file.
type ContentStore struct {
	mu       sync.Mutex
	dir      string
	data     *os.File
	entries  map[uint32]*extent
	checksum ChecksumAlgorithm
}

// OpenContentStore opens (creating if absent) the content file and FAT in
// dir.
func OpenContentStore(dir string, checksum ChecksumAlgorithm) (*ContentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", ErrContentStore, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, contentFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open contents: %v", ErrContentStore, err)
	}
	cs := &ContentStore{
		dir:      dir,
		data:     f,
		entries:  make(map[uint32]*extent),
		checksum: checksum,
	}
	if err := cs.load(); err != nil {
		f.Close()
		return nil, err
	}
	return cs, nil
}

// load reads documents.dbx into memory, tolerating a missing file (fresh
// database).
func (cs *ContentStore) load() error {
	path := filepath.Join(cs.dir, fatFileName)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read fat: %v", ErrContentStore, err)
	}
	if len(b) < 4 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[0:4])
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+28 > len(b) {
			return fmt.Errorf("%w: truncated fat", ErrContentStore)
		}
		e := &extent{
			id:       binary.BigEndian.Uint32(b[off : off+4]),
			offset:   int64(binary.BigEndian.Uint64(b[off+4 : off+12])),
			length:   int64(binary.BigEndian.Uint64(b[off+12 : off+20])),
			checksum: binary.BigEndian.Uint64(b[off+20 : off+28]),
		}
		cs.entries[e.id] = e
		off += 28
	}
	return nil
}

// Sync rewrites the FAT file from memory without closing the content file,
// the first of the two durability-contract trigger points in §4.2
// ("Entries ... are written to the index file on sync() and on shutdown()").
func (cs *ContentStore) Sync() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.syncLocked()
}

func (cs *ContentStore) syncLocked() error {
	ordered := cs.sortedLocked()
	buf := make([]byte, 4+28*len(ordered))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(ordered)))
	off := 4
	for _, e := range ordered {
		binary.BigEndian.PutUint32(buf[off:off+4], e.id)
		binary.BigEndian.PutUint64(buf[off+4:off+12], uint64(e.offset))
		binary.BigEndian.PutUint64(buf[off+12:off+20], uint64(e.length))
		binary.BigEndian.PutUint64(buf[off+20:off+28], e.checksum)
		off += 28
	}
	path := filepath.Join(cs.dir, fatFileName)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("%w: write fat: %v", ErrContentStore, err)
	}
	return nil
}

// Shutdown flushes the FAT and closes the content file.
func (cs *ContentStore) Shutdown() error {
	if err := cs.Sync(); err != nil {
		return err
	}
	return cs.data.Close()
}

// sortedLocked returns entries ordered by ascending offset. Must be called
// with cs.mu held.
func (cs *ContentStore) sortedLocked() []*extent {
	out := make([]*extent, 0, len(cs.entries))
	for _, e := range cs.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

// Create reserves a zero-length entry at offset 0; fails if id already exists.
func (cs *ContentStore) Create(id uint32) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.entries[id]; ok {
		return fmt.Errorf("%w: id %d already present", ErrContentStore, id)
	}
	cs.entries[id] = &extent{id: id, offset: 0, length: 0}
	return nil
}

// place runs the first-fit placement algorithm (§4.2) over entries ordered
// by ascending offset: the first gap big enough to hold `needed` bytes
// wins; otherwise the extent is appended after the last one.
func place(ordered []*extent, needed int64) int64 {
	var cursor int64
	for _, e := range ordered {
		if e.length == 0 {
			continue // zero-length placeholder entries don't occupy space
		}
		if e.offset-cursor >= needed {
			return cursor
		}
		if end := e.offset + e.length; end > cursor {
			cursor = end
		}
	}
	return cursor
}

// Store writes content under id, dropping any existing extent and choosing
// a fresh placement (§4.2: "If id already exists, the old extent is
// dropped and a fresh placement is chosen").
func (cs *ContentStore) Store(id uint32, content []byte) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	ordered := cs.sortedLocked()
	// Exclude id's own current entry from the placement search so that
	// overwriting in place isn't artificially blocked by its own extent.
	filtered := ordered[:0:0]
	for _, e := range ordered {
		if e.id != id {
			filtered = append(filtered, e)
		}
	}

	needed := int64(len(content))
	offset := place(filtered, needed)

	if _, err := cs.data.WriteAt(content, offset); err != nil {
		return fmt.Errorf("%w: write: %v", ErrContentStore, err)
	}

	cs.entries[id] = &extent{
		id:       id,
		offset:   offset,
		length:   needed,
		checksum: checksumOf(content, cs.checksum),
	}
	return nil
}

func checksumOf(data []byte, alg ChecksumAlgorithm) uint64 {
	switch alg {
	case ChecksumXXH3:
		return xxh3.Hash(data)
	case ChecksumBlake2b:
		h, _ := blake2b.New(8, nil)
		h.Write(data)
		sum := h.Sum(nil)
		var v uint64
		for _, b := range sum {
			v = v<<8 | uint64(b)
		}
		return v
	default:
		return 0
	}
}

// Length returns the stored (possibly compressed) length of id, if present.
func (cs *ContentStore) Length(id uint32) (int64, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	e, ok := cs.entries[id]
	if !ok {
		return 0, false
	}
	return e.length, true
}

// Delete removes id's entry; the extent becomes free space (list-only, no
// compaction — §3 Destroyed / Non-goals).
func (cs *ContentStore) Delete(id uint32) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.entries[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	delete(cs.entries, id)
	return nil
}

// Size returns the number of entries.
func (cs *ContentStore) Size() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.entries)
}

// DeleteAll truncates the content file to zero and clears the entry map.
func (cs *ContentStore) DeleteAll() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.data.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncate: %v", ErrContentStore, err)
	}
	cs.entries = make(map[uint32]*extent)
	return nil
}

// Retrieve returns a seekable, length-bounded stream over id's extent.
// Multiple concurrent retrieve streams on distinct ids are permitted.
func (cs *ContentStore) Retrieve(id uint32) (*RetrieveStream, error) {
	cs.mu.Lock()
	e, ok := cs.entries[id]
	cs.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	section := io.NewSectionReader(cs.data, e.offset, e.length)
	if cs.checksum != ChecksumNone && e.length > 0 {
		got, err := verifyChecksum(section, e.length, cs.checksum)
		if err != nil {
			return nil, fmt.Errorf("%w: checksum read: %v", ErrContentStore, err)
		}
		if got != e.checksum {
			log.Warn().Uint32("id", id).Msg("content checksum mismatch")
		}
		section = io.NewSectionReader(cs.data, e.offset, e.length)
	}
	return &RetrieveStream{section: section, length: e.length}, nil
}

func verifyChecksum(r io.Reader, length int64, alg ChecksumAlgorithm) (uint64, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return checksumOf(buf, alg), nil
}
