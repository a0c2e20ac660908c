// Validation seam (§1, §4.8): Xantippe itself does not parse or validate
// XML against schemas — that's delegated to an external Validator the
// embedding application supplies. The engine's responsibility stops at
// invoking it at the right point in SetContent and maintaining the
// namespace -> schema-document mapping a Validator consults.
package xantippe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Validator is the external seam for schema/DTD validation. Implementations
// read file, optionally consult uri for context (e.g. collection-specific
// catalogs), and return a non-nil error if required is true and validation
// fails or finds no applicable schema.
type Validator interface {
	Validate(file *os.File, uri string, required bool) error
}

// NopValidator accepts everything; useful when a collection's validation
// mode resolves to OFF or the caller wires no validator at all.
type NopValidator struct{}

func (NopValidator) Validate(*os.File, string, bool) error { return nil }

const schemasFileName = "schemas.dbx"

// SchemaCatalog is the namespace -> schema-document-id registry a Validator
// may use to locate a namespace's schema among the database's own
// documents (§4.8: SCHEMA media-type documents register their target
// namespace).
type SchemaCatalog struct {
	byNamespace map[string]uint32
}

// NewSchemaCatalog returns an empty registry.
func NewSchemaCatalog() *SchemaCatalog {
	return &SchemaCatalog{byNamespace: make(map[string]uint32)}
}

// Register associates namespace with the schema document docID, replacing
// any prior registration for the same namespace.
func (s *SchemaCatalog) Register(namespace string, docID uint32) {
	s.byNamespace[namespace] = docID
}

// Unregister removes namespace's association, if any existed for docID.
func (s *SchemaCatalog) Unregister(namespace string, docID uint32) {
	if cur, ok := s.byNamespace[namespace]; ok && cur == docID {
		delete(s.byNamespace, namespace)
	}
}

// Lookup returns the schema document id registered for namespace.
func (s *SchemaCatalog) Lookup(namespace string) (uint32, bool) {
	id, ok := s.byNamespace[namespace]
	return id, ok
}

// Save writes the registry as count(4), repeated {namespace, doc_id(4)}.
func (s *SchemaCatalog) Save(dir string) error {
	names := make([]string, 0, len(s.byNamespace))
	for ns := range s.byNamespace {
		names = append(names, ns)
	}
	sort.Strings(names)

	e := &encoder{}
	e.u32(uint32(len(names)))
	for _, ns := range names {
		e.str(ns)
		e.u32(s.byNamespace[ns])
	}
	return writeFile(dir, schemasFileName, e.bytes())
}

// LoadSchemaCatalog reads the namespace -> doc_id registry, returning an
// empty one if the file doesn't exist yet.
func LoadSchemaCatalog(dir string) (*SchemaCatalog, error) {
	b, err := os.ReadFile(filepath.Join(dir, schemasFileName))
	if os.IsNotExist(err) {
		return NewSchemaCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read schemas: %v", ErrCatalog, err)
	}

	d := newDecoder(b)
	count, err := d.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	s := NewSchemaCatalog()
	for i := uint32(0); i < count; i++ {
		ns, err := d.str()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
		}
		id, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
		}
		s.byNamespace[ns] = id
	}
	return s, nil
}

// readSeekerFromStream materializes a stream into a temp file so Validator
// implementations (which want *os.File for mmap/DOM-tree libraries) can
// seek, without requiring the whole document to already be a file on disk.
func readSeekerFromStream(r io.Reader) (*os.File, func(), error) {
	tmp, err := os.CreateTemp("", "xantippe-validate-*")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: temp file: %v", ErrContentStore, err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: temp file write: %v", ErrContentStore, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: temp file seek: %v", ErrContentStore, err)
	}
	return tmp, cleanup, nil
}
