package mimetree

import (
	"fmt"
	"strings"
)

// Dump renders the part tree for diagnostics: one line per node, indented
// by depth, with type, disposition, content-id, and payload size. It is
// read-only, makes no classification decisions, and never panics no matter
// how malformed the tree is.
func Dump(root *Node) string {
	var sb strings.Builder
	dumpNode(&sb, root, 0)
	return sb.String()
}

func dumpNode(sb *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n == nil {
		sb.WriteString(indent + "(missing part)\n")
		return
	}

	line := n.Type + "/" + n.Subtype
	if n.Type == "" || n.Subtype == "" {
		line = "(unknown type)"
	}
	if cs := n.Params["charset"]; cs != "" {
		line += "; charset=" + cs
	}
	if n.Disposition != "" {
		line += " " + n.Disposition
	}
	if n.Filename != "" {
		line += fmt.Sprintf(" filename=%q", n.Filename)
	}
	if n.ContentID != "" {
		line += " cid=" + n.ContentID
	}
	if n.IsLeaf() {
		line += fmt.Sprintf(" (%d bytes)", len(n.Raw))
	}
	if n.Truncated {
		line += " (truncated: too deep)"
	}

	sb.WriteString(indent + line + "\n")
	for _, child := range n.Children {
		dumpNode(sb, child, depth+1)
	}
}
