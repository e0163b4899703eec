package mimetree

import (
	"fmt"

	"github.com/emersion/go-message/textproto"
)

// Encoding is a part's Content-Transfer-Encoding.
type Encoding int

const (
	Encoding7Bit Encoding = iota
	Encoding8Bit
	EncodingBinary
	EncodingQuotedPrintable
	EncodingBase64
	EncodingUUEncode
	EncodingUnknown
)

func (e Encoding) String() string {
	switch e {
	case Encoding7Bit:
		return "7bit"
	case Encoding8Bit:
		return "8bit"
	case EncodingBinary:
		return "binary"
	case EncodingQuotedPrintable:
		return "quoted-printable"
	case EncodingBase64:
		return "base64"
	case EncodingUUEncode:
		return "x-uuencode"
	default:
		return "unknown"
	}
}

func parseEncoding(v string) Encoding {
	switch normalizeToken(v) {
	case "", "7bit":
		return Encoding7Bit
	case "8bit":
		return Encoding8Bit
	case "binary":
		return EncodingBinary
	case "quoted-printable":
		return EncodingQuotedPrintable
	case "base64":
		return EncodingBase64
	case "x-uuencode", "uuencode", "x-uue":
		return EncodingUUEncode
	default:
		return EncodingUnknown
	}
}

// Node is one part of the MIME tree. A node is either a leaf (Raw holds the
// still-encoded payload, Children is empty) or a container (Children
// non-empty, Raw nil); the parser enforces that by construction, degrading
// broken containers to leaves rather than ever producing both.
type Node struct {
	// Header is the part's full header in original order.
	Header textproto.Header

	// Type and Subtype come from the normalized Content-Type, Params its
	// parameters with lowercase keys. Defaults to text/plain when the
	// header is absent or beyond repair.
	Type    string
	Subtype string
	Params  map[string]string

	// Disposition is "", "inline", "attachment", or whatever unrecognized
	// token the part declared. Filename is decoded from
	// Content-Disposition, falling back to the Content-Type name
	// parameter.
	Disposition string
	Filename    string

	// ContentID is normalized to include angle brackets; empty if absent.
	ContentID string

	// Encoding drives byte-level decoding of Raw.
	Encoding Encoding

	Children []*Node
	Raw      []byte

	// Truncated marks a subtree that hit the nesting limit and was kept
	// as one opaque leaf instead of being split.
	Truncated bool

	path string
}

// IsLeaf reports whether the node carries a payload instead of children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// IsMultipart reports whether the node's type is multipart, which is not the
// same as being a container: a multipart whose body could not be split (no
// boundary, past the depth limit, no parts) is a multipart leaf.
func (n *Node) IsMultipart() bool {
	return n.Type == "multipart"
}

// MediaType returns "type/subtype".
func (n *Node) MediaType() string {
	return n.Type + "/" + n.Subtype
}

// Charset returns the declared charset parameter, "" if none.
func (n *Node) Charset() string {
	return n.Params["charset"]
}

// Path locates the node in the tree: "1" is the root, "1.2.3" the third
// child of the second child of the root.
func (n *Node) Path() string {
	return n.path
}

// DecodedBody decodes Raw per the node's transfer encoding. It is a pure
// read: calling it twice yields the same bytes. Unknown encodings decode as
// identity; on a real decode failure the raw bytes stay available to the
// caller.
func (n *Node) DecodedBody() ([]byte, error) {
	if !n.IsLeaf() {
		return nil, fmt.Errorf("part %s: container has no body", n.path)
	}
	return decodeTransfer(n.Raw, n.Encoding)
}
