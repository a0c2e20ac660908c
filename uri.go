// URI resolution (§4.4): "/a/b/c" walks child-name segments from the root;
// an empty segment between slashes is skipped; document URIs split at the
// last '/'.
package xantippe

import "strings"

// segments splits a URI into non-empty path segments.
func segments(uri string) []string {
	parts := strings.Split(uri, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ResolveCollection walks from the root through child-name segments.
func (t *Tree) ResolveCollection(uri string) (*Collection, error) {
	cur := t.root
	for _, seg := range segments(uri) {
		next, ok := cur.GetCollectionByName(seg)
		if !ok {
			return nil, ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

// ResolveDocument splits uri at the last '/' and resolves the collection
// prefix, then looks up the trailing segment as a document name.
func (t *Tree) ResolveDocument(uri string) (*Document, error) {
	segs := segments(uri)
	if len(segs) == 0 {
		return nil, ErrInvalidArgument
	}
	name := segs[len(segs)-1]
	cur := t.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.GetCollectionByName(seg)
		if !ok {
			return nil, ErrNotFound
		}
		cur = next
	}
	d, ok := cur.GetDocumentByName(name)
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// CollectionURI computes c's absolute URI by walking parents to the root.
func CollectionURI(c *Collection) string {
	if c.parent == nil {
		return "/"
	}
	var parts []string
	for cur := c; cur.parent != nil; cur = cur.parent {
		parts = append([]string{cur.name}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

// DocumentURI computes d's absolute URI.
func DocumentURI(d *Document) string {
	base := CollectionURI(d.parent)
	if base == "/" {
		return "/" + d.name
	}
	return base + "/" + d.name
}
