// Media type inference from file extension (§6).
package xantippe

import (
	"path/filepath"
	"strings"
)

// MediaType classifies a document's content for validation and indexing
// purposes.
type MediaType int

const (
	MediaXML MediaType = iota
	MediaSchema
	MediaXQuery
	MediaPlainText
	MediaBinary
)

func (m MediaType) String() string {
	switch m {
	case MediaXML:
		return "XML"
	case MediaSchema:
		return "SCHEMA"
	case MediaXQuery:
		return "XQUERY"
	case MediaPlainText:
		return "PLAIN_TEXT"
	default:
		return "BINARY"
	}
}

// InferMediaType derives a document's media type from its name's extension.
func InferMediaType(name string) MediaType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml":
		return MediaXML
	case ".xsd":
		return MediaSchema
	case ".xqy":
		return MediaXQuery
	case ".txt":
		return MediaPlainText
	default:
		return MediaBinary
	}
}
