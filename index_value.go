// Index value storage (§3 "Index value"): a per-collection secondary
// structure mapping key_name -> key_value -> ordered set of document ids.
// Both levels iterate deterministically (key names sorted, document ids
// ascending) so query results and catalog dumps are stable across runs.
package xantippe

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// IndexType is the typed coercion applied to extracted XML text (§3, §4.6).
type IndexType int

const (
	IndexString IndexType = iota
	IndexInteger
	IndexLong
	IndexFloat
	IndexDouble
	IndexDate
)

func (t IndexType) String() string {
	switch t {
	case IndexInteger:
		return "INTEGER"
	case IndexLong:
		return "LONG"
	case IndexFloat:
		return "FLOAT"
	case IndexDouble:
		return "DOUBLE"
	case IndexDate:
		return "DATE"
	default:
		return "STRING"
	}
}

// IndexDef is a named (path, type) rule attached to a collection (§3).
type IndexDef struct {
	ID   uint32
	Name string
	Path string
	Type IndexType
}

// canonicalKey turns a typed index value into a stable map key and a
// display string, used both for lookups and for deterministic iteration.
func canonicalKey(typ IndexType, value any) string {
	switch typ {
	case IndexInteger, IndexLong:
		return fmt.Sprintf("i:%020d", toInt64(value))
	case IndexFloat, IndexDouble:
		return fmt.Sprintf("f:%024.8f", toFloat64(value))
	case IndexDate:
		if t, ok := value.(time.Time); ok {
			return "d:" + t.UTC().Format(time.RFC3339Nano)
		}
		return "d:" + fmt.Sprint(value)
	default:
		return "s:" + fmt.Sprint(value)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}

// valueEntry is one key_value's posting list.
type valueEntry struct {
	typ   IndexType
	raw   any
	docs  map[uint32]struct{}
}

// keyIndex is one key_name's value -> posting-list map.
type keyIndex struct {
	values map[string]*valueEntry
}

// IndexValues is the index-value secondary structure for a single
// collection: key_name -> key_value -> ordered set of document ids.
type IndexValues struct {
	mu   sync.RWMutex
	keys map[string]*keyIndex
}

// NewIndexValues returns an empty index-value store.
func NewIndexValues() *IndexValues {
	return &IndexValues{keys: make(map[string]*keyIndex)}
}

// Add records that document docID carries value under key_name keyName.
func (iv *IndexValues) Add(keyName string, typ IndexType, value any, docID uint32) {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	ki, ok := iv.keys[keyName]
	if !ok {
		ki = &keyIndex{values: make(map[string]*valueEntry)}
		iv.keys[keyName] = ki
	}
	ck := canonicalKey(typ, value)
	ve, ok := ki.values[ck]
	if !ok {
		ve = &valueEntry{typ: typ, raw: value, docs: make(map[uint32]struct{})}
		ki.values[ck] = ve
	}
	ve.docs[docID] = struct{}{}
}

// Lookup returns the ordered (ascending) set of document ids recorded
// under keyName=value. Returns nil if the key or value is absent.
func (iv *IndexValues) Lookup(keyName string, typ IndexType, value any) []uint32 {
	iv.mu.RLock()
	defer iv.mu.RUnlock()

	ki, ok := iv.keys[keyName]
	if !ok {
		return nil
	}
	ve, ok := ki.values[canonicalKey(typ, value)]
	if !ok {
		return nil
	}
	return sortedIDs(ve.docs)
}

func sortedIDs(set map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RemoveDoc scrubs docID from every key/value posting list, used on
// document delete so stale entries never propagate to query results.
func (iv *IndexValues) RemoveDoc(docID uint32) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	for _, ki := range iv.keys {
		for _, ve := range ki.values {
			delete(ve.docs, docID)
		}
	}
}

// KeyNames returns key names in sorted order, for deterministic catalog
// dumps and iteration.
func (iv *IndexValues) KeyNames() []string {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	out := make([]string, 0, len(iv.keys))
	for k := range iv.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Values returns, for a key name, the canonical keys of its values in
// sorted order, for deterministic catalog dumps.
func (iv *IndexValues) Values(keyName string) []string {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	ki, ok := iv.keys[keyName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ki.values))
	for k := range ki.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Entry returns the raw value and doc-id set for a canonical value key.
func (iv *IndexValues) Entry(keyName, canonical string) (IndexType, any, []uint32, bool) {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	ki, ok := iv.keys[keyName]
	if !ok {
		return 0, nil, nil, false
	}
	ve, ok := ki.values[canonical]
	if !ok {
		return 0, nil, nil, false
	}
	return ve.typ, ve.raw, sortedIDs(ve.docs), true
}

// restore rebuilds a single value entry during catalog load.
func (iv *IndexValues) restore(keyName string, typ IndexType, raw any, ids []uint32) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	ki, ok := iv.keys[keyName]
	if !ok {
		ki = &keyIndex{values: make(map[string]*valueEntry)}
		iv.keys[keyName] = ki
	}
	ck := canonicalKey(typ, raw)
	ve := &valueEntry{typ: typ, raw: raw, docs: make(map[uint32]struct{})}
	for _, id := range ids {
		ve.docs[id] = struct{}{}
	}
	ki.values[ck] = ve
}
