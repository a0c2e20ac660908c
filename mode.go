// Validation and compression modes (§3, §4.1 "Design notes: Inheritance of
// modes"). Both are modeled as a sum type: Explicit(value) | Inherit.
// Resolution walks up the parent chain; the root is invariantly Explicit —
// a root caught holding INHERIT is a runtime invariant violation, logged
// and resolved to a safe default rather than panicking.
package xantippe

// ValidationMode controls whether document content is checked against a
// schema before being stored.
type ValidationMode int

const (
	ValidationInherit ValidationMode = iota
	ValidationOn
	ValidationAuto
	ValidationOff
)

func (m ValidationMode) String() string {
	switch m {
	case ValidationOn:
		return "ON"
	case ValidationAuto:
		return "AUTO"
	case ValidationOff:
		return "OFF"
	default:
		return "INHERIT"
	}
}

// CompressionMode controls whether document content is deflate-compressed
// before being written to the content store.
type CompressionMode int

const (
	CompressionInherit CompressionMode = iota
	CompressionNone
	CompressionDeflate
)

func (m CompressionMode) String() string {
	switch m {
	case CompressionNone:
		return "NONE"
	case CompressionDeflate:
		return "DEFLATE"
	default:
		return "INHERIT"
	}
}

// resolveValidation walks from c up to the root, returning the first
// explicit mode. A root caught as INHERIT is an invariant violation: it is
// logged and resolved to OFF, the safe default (§4.4 Inheritance resolution).
func resolveValidation(c *Collection) ValidationMode {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.validation != ValidationInherit {
			return cur.validation
		}
		if cur.parent == nil {
			component("tree").Warn().Str("collection", cur.name).
				Msg("root collection has INHERIT validation mode; defaulting to OFF")
			return ValidationOff
		}
	}
	return ValidationOff
}

// resolveCompression walks from c up to the root, returning the first
// explicit mode, with the same root-INHERIT safeguard as resolveValidation.
func resolveCompression(c *Collection) CompressionMode {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.compression != CompressionInherit {
			return cur.compression
		}
		if cur.parent == nil {
			component("tree").Warn().Str("collection", cur.name).
				Msg("root collection has INHERIT compression mode; defaulting to NONE")
			return CompressionNone
		}
	}
	return CompressionNone
}
