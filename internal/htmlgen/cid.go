package htmlgen

import (
	"encoding/base64"
	"regexp"
)

// MediaResolver resolves a content-id reference to its media. ok=false means
// the reference must be left untouched in the output.
type MediaResolver func(id string) (mimeType string, data []byte, ok bool)

// cidRefPattern matches a quoted src attribute's cid reference up to the
// closing quote. Dot matches newlines: producers fold long ids across lines.
var cidRefPattern = regexp.MustCompile(`(?s)cid:(.*?)"`)

// plainCidRefPattern matches the [cid:...] placeholders some mailers leave
// in text/plain renderings.
var plainCidRefPattern = regexp.MustCompile(`(?s)\[cid:(.*?)\]`)

// RewriteCIDReferences replaces cid: references inside quoted attributes
// with data: URIs carrying the resolved media. Unresolved references stay
// byte-for-byte as they were, so the output is never worse than the input.
func RewriteCIDReferences(doc string, resolve MediaResolver) string {
	if resolve == nil {
		return doc
	}
	return cidRefPattern.ReplaceAllStringFunc(doc, func(m string) string {
		id := m[len("cid:") : len(m)-1]
		mimeType, data, ok := resolve(id)
		if !ok {
			return m
		}
		return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data) + `"`
	})
}

// RewritePlainCIDReferences replaces [cid:...] placeholders with whole <img>
// elements. Used on wrapped plain text bodies, where there is no surrounding
// markup to reuse.
func RewritePlainCIDReferences(doc string, resolve MediaResolver) string {
	if resolve == nil {
		return doc
	}
	return plainCidRefPattern.ReplaceAllStringFunc(doc, func(m string) string {
		id := m[len("[cid:") : len(m)-1]
		mimeType, data, ok := resolve(id)
		if !ok {
			return m
		}
		return `<img src="data:` + mimeType + `;base64,` + base64.StdEncoding.EncodeToString(data) + `" />`
	})
}
