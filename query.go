// Index query engine (C7, §4.7): conjunctive lookups over a collection's
// index values, with optional recursive union into descendant collections.
// ExecuteQuery exposes the same algorithm behind a JSON envelope for
// external callers (the XQuery/REST facades named out of scope in §1 are
// expected to sit in front of this, not reimplement it).
package xantippe

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// Criterion is one key=value conjunct of a query (§4.7).
type Criterion struct {
	Key   string
	Type  IndexType
	Value any
}

// FindDocuments resolves the conjunction of criteria against coll's index
// values, intersecting per-key posting lists, filtering against documents
// still actually present in the collection, and resolving to Document
// objects sorted by absolute URI. With recursive set, results from every
// descendant collection are unioned in.
func FindDocuments(tree *Tree, coll *Collection, criteria []Criterion, recursive bool) ([]*Document, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("%w: at least one criterion required", ErrInvalidArgument)
	}

	var docs []*Document
	docs = append(docs, findInCollection(tree, coll, criteria)...)

	if recursive {
		for _, name := range coll.ListCollections() {
			child, ok := coll.GetCollectionByName(name)
			if !ok {
				continue
			}
			sub, err := FindDocuments(tree, child, criteria, true)
			if err != nil {
				return nil, err
			}
			docs = append(docs, sub...)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return DocumentURI(docs[i]) < DocumentURI(docs[j]) })
	return docs, nil
}

func findInCollection(tree *Tree, coll *Collection, criteria []Criterion) []*Document {
	var ids []uint32
	for i, crit := range criteria {
		set := coll.indexValues.Lookup(crit.Key, crit.Type, crit.Value)
		if i == 0 {
			ids = set
			continue
		}
		ids = intersect(ids, set)
		if len(ids) == 0 {
			return nil
		}
	}

	var out []*Document
	for _, id := range ids {
		d, ok := tree.Document(id)
		if !ok {
			continue
		}
		nameDoc, ok := coll.GetDocumentByName(d.Name())
		if !ok || nameDoc.ID() != id {
			continue
		}
		out = append(out, d)
	}
	return out
}

func intersect(a, b []uint32) []uint32 {
	set := make(map[uint32]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []uint32
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func parseIndexType(s string) (IndexType, error) {
	switch strings.ToUpper(s) {
	case "STRING":
		return IndexString, nil
	case "INTEGER":
		return IndexInteger, nil
	case "LONG":
		return IndexLong, nil
	case "FLOAT":
		return IndexFloat, nil
	case "DOUBLE":
		return IndexDouble, nil
	case "DATE":
		return IndexDate, nil
	default:
		return 0, fmt.Errorf("%w: unknown index type %q", ErrInvalidArgument, s)
	}
}

// queryCriterionJSON is one conjunct in the wire envelope.
type queryCriterionJSON struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// queryRequest is the JSON envelope accepted by ExecuteQuery.
type queryRequest struct {
	Collection string                `json:"collection"`
	Recursive  bool                  `json:"recursive"`
	Criteria   []queryCriterionJSON  `json:"criteria"`
}

// queryResponse is the JSON envelope returned by ExecuteQuery.
type queryResponse struct {
	Documents []string `json:"documents"`
}

// ExecuteQuery decodes a JSON query request, runs FindDocuments, and
// encodes the resulting document URIs as a JSON response. Uses
// goccy/go-json for both directions, matching the teacher's drop-in
// replacement of encoding/json throughout its record codec.
func ExecuteQuery(tree *Tree, requestJSON []byte) ([]byte, error) {
	var req queryRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return nil, fmt.Errorf("%w: decode query: %v", ErrInvalidArgument, err)
	}

	coll, err := tree.ResolveCollection(req.Collection)
	if err != nil {
		return nil, err
	}

	criteria := make([]Criterion, 0, len(req.Criteria))
	for _, c := range req.Criteria {
		typ, err := parseIndexType(c.Type)
		if err != nil {
			return nil, err
		}
		value, err := coerceJSONValue(typ, c.Value)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, Criterion{Key: c.Key, Type: typ, Value: value})
	}

	docs, err := FindDocuments(tree, coll, criteria, req.Recursive)
	if err != nil {
		return nil, err
	}

	resp := queryResponse{Documents: make([]string, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, DocumentURI(d))
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", ErrInvalidArgument, err)
	}
	return out, nil
}

// coerceJSONValue normalizes a decoded JSON value (float64/string from
// goccy/go-json's generic decode) to the type canonicalKey expects.
func coerceJSONValue(typ IndexType, v any) (any, error) {
	switch typ {
	case IndexInteger, IndexLong:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric value", ErrInvalidArgument)
		}
		return int64(f), nil
	case IndexFloat, IndexDouble:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric value", ErrInvalidArgument)
		}
		return f, nil
	case IndexDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected date string value", ErrInvalidArgument)
		}
		value, ok := coerce(IndexDate, s)
		if !ok {
			return nil, fmt.Errorf("%w: unparseable date %q", ErrInvalidArgument, s)
		}
		return value, nil
	default:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string value", ErrInvalidArgument)
		}
		return s, nil
	}
}
