// Catalog persistence (C5): the tree, its metadata and its index values are
// serialized to metadata.dbx, collections.dbx and indices.dbx on shutdown,
// and reloaded on start (§4.5). Encoding is depth-first from the root,
// matching the legacy on-disk layout exactly so the format remains the
// external compatibility surface §6 describes.
package xantippe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	metadataFileName    = "metadata.dbx"
	collectionsFileName = "collections.dbx"
	indicesFileName     = "indices.dbx"
)

// SaveMetadata writes next_id as 4 bytes big-endian (§4.5).
func SaveMetadata(dir string, nextID uint32) error {
	e := &encoder{}
	e.u32(nextID)
	return writeFile(dir, metadataFileName, e.bytes())
}

// LoadMetadata reads next_id, defaulting to 0 if the file doesn't exist
// (fresh database).
func LoadMetadata(dir string) (uint32, error) {
	b, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read metadata: %v", ErrCatalog, err)
	}
	d := newDecoder(b)
	n, err := d.u32()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	return n, nil
}

func writeFile(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrCatalog, name, err)
	}
	return nil
}

// SaveCollections serializes the tree depth-first from the root.
func SaveCollections(dir string, root *Collection) error {
	e := &encoder{}
	writeCollection(e, root)
	return writeFile(dir, collectionsFileName, e.bytes())
}

func writeCollection(e *encoder, c *Collection) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e.u32(c.id)
	e.str(c.name)
	e.i64(c.created)
	e.i64(c.modified)
	e.u8(uint8(c.validation))
	e.u8(uint8(c.compression))

	e.u32(uint32(len(c.indices)))
	for _, idx := range c.indices {
		e.u32(idx.ID)
		e.str(idx.Name)
		e.str(idx.Path)
		e.u8(uint8(idx.Type))
	}

	docNames := make([]string, 0, len(c.documents))
	for name := range c.documents {
		docNames = append(docNames, name)
	}
	sort.Strings(docNames)
	e.u32(uint32(len(docNames)))
	for _, name := range docNames {
		d := c.documents[name]
		e.u32(d.id)
		e.str(d.name)
		e.u8(uint8(d.mediaType))
		e.i64(d.created)
		e.i64(d.modified)
		e.u8(uint8(d.compression))
	}

	childNames := make([]string, 0, len(c.children))
	for name := range c.children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	e.u32(uint32(len(childNames)))
	for _, name := range childNames {
		writeCollection(e, c.children[name])
	}
}

// LoadCollections deserializes the tree depth-first, registering every
// collection, document and index id with alloc so next_id ends up
// strictly exceeding every live id (§3 invariant).
func LoadCollections(dir string, alloc *idAllocator, locks *LockManager) (*Tree, error) {
	path := filepath.Join(dir, collectionsFileName)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewTree(alloc, locks), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read collections: %v", ErrCatalog, err)
	}

	d := newDecoder(b)
	tree := &Tree{colls: make(map[uint32]*Collection), docs: make(map[uint32]*Document), alloc: alloc, locks: locks}
	root, err := readCollection(d, nil, tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	tree.root = root
	return tree, nil
}

func readCollection(d *decoder, parent *Collection, tree *Tree) (*Collection, error) {
	id, err := d.u32()
	if err != nil {
		return nil, err
	}
	name, err := d.str()
	if err != nil {
		return nil, err
	}
	created, err := d.i64()
	if err != nil {
		return nil, err
	}
	modified, err := d.i64()
	if err != nil {
		return nil, err
	}
	valOrd, err := d.u8()
	if err != nil {
		return nil, err
	}
	compOrd, err := d.u8()
	if err != nil {
		return nil, err
	}

	parentID := uint32(NoParent)
	if parent != nil {
		parentID = parent.id
	}

	c := &Collection{
		id:          id,
		name:        name,
		parentID:    parentID,
		parent:      parent,
		created:     created,
		modified:    modified,
		validation:  ValidationMode(valOrd),
		compression: CompressionMode(compOrd),
		children:    make(map[string]*Collection),
		documents:   make(map[string]*Document),
		indexValues: NewIndexValues(),
	}
	tree.colls[id] = c
	tree.alloc.observe(id)

	idxCount, err := d.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < idxCount; i++ {
		idxID, err := d.u32()
		if err != nil {
			return nil, err
		}
		idxName, err := d.str()
		if err != nil {
			return nil, err
		}
		idxPath, err := d.str()
		if err != nil {
			return nil, err
		}
		idxType, err := d.u8()
		if err != nil {
			return nil, err
		}
		c.indices = append(c.indices, &IndexDef{ID: idxID, Name: idxName, Path: idxPath, Type: IndexType(idxType)})
		tree.alloc.observe(idxID)
	}

	docCount, err := d.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < docCount; i++ {
		docID, err := d.u32()
		if err != nil {
			return nil, err
		}
		docName, err := d.str()
		if err != nil {
			return nil, err
		}
		mtOrd, err := d.u8()
		if err != nil {
			return nil, err
		}
		docCreated, err := d.i64()
		if err != nil {
			return nil, err
		}
		docModified, err := d.i64()
		if err != nil {
			return nil, err
		}
		docCompOrd, err := d.u8()
		if err != nil {
			return nil, err
		}
		doc := &Document{
			id:          docID,
			name:        docName,
			parentID:    id,
			parent:      c,
			mediaType:   MediaType(mtOrd),
			created:     docCreated,
			modified:    docModified,
			compression: CompressionMode(docCompOrd),
		}
		c.documents[docName] = doc
		tree.docs[docID] = doc
		tree.alloc.observe(docID)
	}

	childCount, err := d.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < childCount; i++ {
		child, err := readCollection(d, c, tree)
		if err != nil {
			return nil, err
		}
		c.children[child.name] = child
	}

	return c, nil
}

// SaveIndices dumps every collection's index values (§4.5 "indices" format).
func SaveIndices(dir string, root *Collection) error {
	e := &encoder{}
	var all []*Collection
	collectAll(root, &all)
	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })

	e.u32(uint32(len(all)))
	for _, c := range all {
		e.u32(c.id)
		keys := c.indexValues.KeyNames()
		e.u32(uint32(len(keys)))
		for _, key := range keys {
			e.str(key)
			values := c.indexValues.Values(key)
			e.u32(uint32(len(values)))
			for _, ck := range values {
				typ, raw, ids, ok := c.indexValues.Entry(key, ck)
				if !ok {
					continue
				}
				e.u8(uint8(typ))
				encodeTypedValue(e, typ, raw)
				e.u32(uint32(len(ids)))
				for _, id := range ids {
					e.u32(id)
				}
			}
		}
	}
	return writeFile(dir, indicesFileName, e.bytes())
}

func collectAll(c *Collection, out *[]*Collection) {
	*out = append(*out, c)
	for _, name := range c.ListCollections() {
		child, ok := c.GetCollectionByName(name)
		if ok {
			collectAll(child, out)
		}
	}
}

func encodeTypedValue(e *encoder, typ IndexType, raw any) {
	switch typ {
	case IndexInteger, IndexLong:
		e.i64(toInt64(raw))
	case IndexFloat, IndexDouble:
		e.f64(toFloat64(raw))
	case IndexDate:
		t, _ := raw.(time.Time)
		e.i64(t.UnixMilli())
	default:
		e.str(fmt.Sprint(raw))
	}
}

func decodeTypedValue(d *decoder, typ IndexType) (any, error) {
	switch typ {
	case IndexInteger, IndexLong:
		v, err := d.i64()
		return v, err
	case IndexFloat, IndexDouble:
		return d.f64()
	case IndexDate:
		v, err := d.i64()
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(v).UTC(), nil
	default:
		return d.str()
	}
}

// LoadIndices restores index values into the tree, dropping entries whose
// document id no longer exists (§4.5 read flow) so stale references never
// resurrect after a restart.
func LoadIndices(dir string, tree *Tree) error {
	path := filepath.Join(dir, indicesFileName)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read indices: %v", ErrCatalog, err)
	}

	d := newDecoder(b)
	collCount, err := d.u32()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	for i := uint32(0); i < collCount; i++ {
		collID, err := d.u32()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCatalog, err)
		}
		c, ok := tree.colls[collID]
		keyCount, err := d.u32()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCatalog, err)
		}
		for k := uint32(0); k < keyCount; k++ {
			keyName, err := d.str()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCatalog, err)
			}
			valCount, err := d.u32()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCatalog, err)
			}
			for v := uint32(0); v < valCount; v++ {
				typOrd, err := d.u8()
				if err != nil {
					return fmt.Errorf("%w: %v", ErrCatalog, err)
				}
				typ := IndexType(typOrd)
				raw, err := decodeTypedValue(d, typ)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrCatalog, err)
				}
				idCount, err := d.u32()
				if err != nil {
					return fmt.Errorf("%w: %v", ErrCatalog, err)
				}
				ids := make([]uint32, 0, idCount)
				for n := uint32(0); n < idCount; n++ {
					docID, err := d.u32()
					if err != nil {
						return fmt.Errorf("%w: %v", ErrCatalog, err)
					}
					if ok && documentStillListed(c, docID) {
						ids = append(ids, docID)
					} else {
						component("catalog").Debug().Uint32("doc", docID).Msg("dropping stale index value on load")
					}
				}
				if ok && len(ids) > 0 {
					c.indexValues.restore(keyName, typ, raw, ids)
				}
			}
		}
	}
	return nil
}

func documentStillListed(c *Collection, docID uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.documents {
		if d.id == docID {
			return true
		}
	}
	return false
}
