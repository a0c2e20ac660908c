// Document API (C8, §4.8): SetContent is the content write path —
// validate, resolve and apply
// compression, store bytes, and (for XML/SCHEMA media types) index or
// register against the schema catalog. Every exit path cleans up its
// staging temp file, and locks are always acquired parent-then-document
// and released in reverse, per §4.3's ordering discipline.
package xantippe

import (
	"encoding/xml"
	"fmt"
	"io"
)

// CreateDocument creates an empty document named name with media type mt
// under the collection at parentURI. CreateDocumentAuto infers the media
// type from name's extension instead.
func (db *Database) CreateDocument(parentURI, name string, mt MediaType) (*Document, error) {
	if !db.running.Load() {
		return nil, ErrNotRunning
	}
	parent, err := db.tree.ResolveCollection(parentURI)
	if err != nil {
		return nil, err
	}
	h := NewHolder()
	doc, err := db.tree.CreateDocument(parent, name, mt, h)
	if err != nil {
		return nil, err
	}
	if err := db.store.Create(doc.id); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateDocumentAuto is CreateDocument with the media type inferred from
// name's extension (§4.8 "Create(name [, mediaType])").
func (db *Database) CreateDocumentAuto(parentURI, name string) (*Document, error) {
	return db.CreateDocument(parentURI, name, InferMediaType(name))
}

// SetContent stores r as doc's content: validate (if the resolved
// validation mode requires it), compress (per the resolved compression
// mode), persist to the content store, then index or register the result
// depending on doc's media type.
func (db *Database) SetContent(doc *Document, r io.Reader) error {
	if !db.running.Load() {
		return ErrNotRunning
	}
	parent := doc.parent
	h := NewHolder()

	tmp, cleanup, err := readSeekerFromStream(r)
	if err != nil {
		return err
	}
	defer cleanup()

	valMode := parent.GetValidationMode(true)
	if valMode != ValidationOff {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %v", ErrContentStore, err)
		}
		required := valMode == ValidationOn
		if err := db.validatorOrNop().Validate(tmp, DocumentURI(doc), required); err != nil {
			return fmt.Errorf("%w: validation failed for %s: %v", ErrInvalidDocument, DocumentURI(doc), err)
		}
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrContentStore, err)
	}
	raw, err := io.ReadAll(tmp)
	if err != nil {
		return fmt.Errorf("%w: reading staged content: %v", ErrContentStore, err)
	}

	compMode := parent.GetCompressionMode(true)
	stored, err := compressBytes(compMode, raw)
	if err != nil {
		return err
	}

	// Locks are acquired only now, per §4.8 step 4 — after validation and
	// compression have already run against the staged bytes — so slow
	// schema validation or deflate work never blocks concurrent readers of
	// this document or the rest of the parent collection.
	db.locks.Lock(parent.id, h)
	defer db.locks.Unlock(parent.id, h)
	db.locks.Lock(doc.id, h)
	defer db.locks.Unlock(doc.id, h)

	if err := db.store.Store(doc.id, stored); err != nil {
		return wrapURI("SetContent", DocumentURI(doc), err)
	}

	doc.originalLength = int64(len(raw))
	doc.compression = compMode
	doc.modified = nowMillis()

	switch doc.mediaType {
	case MediaXML:
		defs := parent.Indices(true)
		if len(defs) > 0 {
			if err := IndexDocument(bytesReader(raw), defs, doc.id, parent.indexValues, nil); err != nil {
				component("document").Warn().Str("uri", DocumentURI(doc)).Err(err).
					Msg("indexing failed; document stored without updated index entries")
			}
		}
	case MediaSchema:
		if ns, ok := targetNamespace(raw); ok {
			db.schemas.Register(ns, doc.id)
		}
	}

	return nil
}

// bytesReader avoids importing bytes just for NewReader at call sites that
// already hold a []byte from io.ReadAll.
func bytesReader(b []byte) io.Reader { return &byteSliceReader{b: b} }

type byteSliceReader struct {
	b   []byte
	off int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}

// targetNamespace extracts the root element's targetNamespace attribute
// from an XML Schema document (§4.8 schema registration).
func targetNamespace(data []byte) (string, bool) {
	dec := xml.NewDecoder(bytesReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "targetNamespace" {
				return attr.Value, true
			}
		}
		return "", false
	}
}

// GetContent opens a decompressing read stream over doc's stored content.
// The returned ReadCloser's Close releases doc's read lock.
func (db *Database) GetContent(doc *Document) (io.ReadCloser, error) {
	if !db.running.Load() {
		return nil, ErrNotRunning
	}
	h := NewHolder()
	db.locks.RLock(doc.id, h)

	stream, err := db.store.Retrieve(doc.id)
	if err != nil {
		db.locks.RUnlock(doc.id, h)
		return nil, wrapURI("GetContent", DocumentURI(doc), err)
	}
	rc, err := decompressReader(doc.compression, stream)
	if err != nil {
		stream.Close()
		db.locks.RUnlock(doc.id, h)
		return nil, err
	}
	return &unlockingReadCloser{
		ReadCloser: rc,
		unlock: func() {
			stream.Close()
			db.locks.RUnlock(doc.id, h)
		},
	}, nil
}

type unlockingReadCloser struct {
	io.ReadCloser
	unlock func()
}

func (u *unlockingReadCloser) Close() error {
	err := u.ReadCloser.Close()
	u.unlock()
	return err
}

// SetKey manually records an index-value entry for doc under its parent
// collection (§4.8: SetKey(name, value)), independent of the streaming
// indexer. Rejects a null/empty name or a nil value.
func (db *Database) SetKey(doc *Document, keyName string, typ IndexType, value any) error {
	if !db.running.Load() {
		return ErrNotRunning
	}
	if keyName == "" || value == nil {
		return ErrInvalidArgument
	}
	h := NewHolder()
	db.locks.Lock(doc.parent.id, h)
	defer db.locks.Unlock(doc.parent.id, h)
	doc.parent.indexValues.Add(keyName, typ, value, doc.id)
	return nil
}

// DeleteDocument removes the document at uri, releasing its content
// extent and scrubbing its index-value entries.
func (db *Database) DeleteDocument(uri string) error {
	if !db.running.Load() {
		return ErrNotRunning
	}
	doc, err := db.tree.ResolveDocument(uri)
	if err != nil {
		return err
	}
	h := NewHolder()
	return db.tree.DeleteDocument(doc.parent, doc.name, db.store, h)
}
