// Streaming indexer (C6, §4.6): walks an XML document with a SAX-style
// pull parser, tracking the current element path and matching it against
// a collection's index definitions. encoding/xml's Decoder.Token is the
// idiomatic stdlib choice for this shape of streaming consumer; nothing in
// the retrieval pack offers a better-suited pull parser (see SPEC_FULL.md).
package xantippe

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// pathMatches reports whether currentPath satisfies an index definition's
// path: an exact match, or a "//name" suffix wildcard matching any element
// named name regardless of ancestry (§4.6).
func pathMatches(defPath, currentPath string) bool {
	if strings.HasPrefix(defPath, "//") {
		return strings.HasSuffix(currentPath, "/"+defPath[2:])
	}
	return defPath == currentPath
}

// coerce converts raw element text to typ, per §4.6's typed coercion rules.
// Numeric and date coercion failures return ok=false so the caller can
// silently drop the value rather than fail the whole indexing pass.
func coerce(typ IndexType, text string) (any, bool) {
	text = strings.TrimSpace(text)
	switch typ {
	case IndexInteger, IndexLong:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case IndexFloat, IndexDouble:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case IndexDate:
		if t, err := time.Parse(time.RFC3339, text); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", text); err == nil {
			return t, true
		}
		return nil, false
	default:
		return text, true
	}
}

// IndexDocument streams r as XML, extracting and recording index values
// into target for every index definition in defs whose path matches an
// element encountered. abort, if non-nil, is polled before every token is
// read and stops the parse early when it returns true — the SAX
// "stop parsing" trick (§9 design note) expressed without exception-based
// control flow.
func IndexDocument(r io.Reader, defs []*IndexDef, docID uint32, target *IndexValues, abort func() bool) error {
	dec := xml.NewDecoder(r)
	var stack []string
	var text strings.Builder

	for {
		if abort != nil && abort() {
			return nil
		}
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: xml parse: %v", ErrInvalidDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			currentPath := "/" + strings.Join(stack, "/")
			raw := text.String()
			text.Reset()
			for _, def := range defs {
				if !pathMatches(def.Path, currentPath) {
					continue
				}
				value, ok := coerce(def.Type, raw)
				if !ok {
					component("indexer").Debug().Str("key", def.Name).Str("text", raw).Msg("dropping value that failed type coercion")
					continue
				}
				target.Add(def.Name, def.Type, value, docID)
			}
			stack = stack[:len(stack)-1]
		}
	}
}
