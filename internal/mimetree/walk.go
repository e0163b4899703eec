package mimetree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BodyCandidate is a decoded text part eligible for body selection.
type BodyCandidate struct {
	// MIMEType is the normalized "type/subtype", e.g. "text/html".
	MIMEType string
	// Text is the payload decoded to UTF-8.
	Text string
	// Charset is the charset actually used to decode Text.
	Charset string
	// Synthetic marks the empty fallback body SelectBody produces when no
	// candidate is selectable.
	Synthetic bool
}

// MediaEntry is a decoded inline part addressable through a cid: reference.
type MediaEntry struct {
	MIMEType string
	Data     []byte
}

// InlineMediaIndex maps normalized content-ids (angle brackets included) to
// their decoded media. Repeated ids are malformed input, not an error: the
// last writer wins.
type InlineMediaIndex struct {
	entries map[string]*MediaEntry
}

func newInlineMediaIndex() *InlineMediaIndex {
	return &InlineMediaIndex{entries: make(map[string]*MediaEntry)}
}

// Lookup resolves a content-id. A miss is not an error; callers must leave
// the original cid: reference untouched when the media is absent. The id is
// normalized first, so "img1", "<img1>", and "cid:img1" all resolve alike.
func (ix *InlineMediaIndex) Lookup(id string) (*MediaEntry, bool) {
	entry, ok := ix.entries[normalizeContentID(id)]
	return entry, ok
}

// Len returns the number of indexed entries.
func (ix *InlineMediaIndex) Len() int {
	return len(ix.entries)
}

// IDs returns the indexed content-ids in sorted order.
func (ix *InlineMediaIndex) IDs() []string {
	ids := make([]string, 0, len(ix.entries))
	for id := range ix.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ix *InlineMediaIndex) put(id string, entry *MediaEntry) {
	ix.entries[normalizeContentID(id)] = entry
}

func normalizeContentID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "cid:")
	id = strings.Trim(id, "<>")
	return "<" + id + ">"
}

// Classification is the flat view of a walked tree: every leaf lands in
// exactly one of the three buckets.
type Classification struct {
	BodyCandidates []*BodyCandidate
	InlineMedia    *InlineMediaIndex
	Attachments    []*Node
	Problems       []Problem
}

// Classify walks the tree depth-first and classifies every leaf as a body
// candidate, inline media, or attachment. Decode failures never abort the
// walk; the offending leaf is downgraded and the failure recorded.
func Classify(root *Node, opts Options) *Classification {
	c := &Classification{InlineMedia: newInlineMediaIndex()}
	w := &walker{opts: opts, c: c}
	if root != nil {
		w.walk(root, false)
	}
	return c
}

type walker struct {
	opts Options
	c    *Classification
}

// walk dispatches on the container subtype. donor marks subtrees whose
// leaves may only contribute inline media or attachments, never body
// candidates (the tail children of a multipart/related).
func (w *walker) walk(n *Node, donor bool) {
	if n.IsLeaf() {
		w.classifyLeaf(n, donor)
		return
	}
	switch n.Subtype {
	case "alternative":
		w.walkAlternative(n, donor)
	case "related":
		w.walkRelated(n, donor)
	default:
		// mixed, signed, report, digest, parallel, and anything
		// unrecognized: children classify independently.
		for _, child := range n.Children {
			w.walk(child, donor)
		}
	}
}

// walkAlternative recurses into every child, then keeps, per content type,
// only the last body candidate the group contributed: the children of an
// alternative group are renderings of the same content ordered from least
// to most preferred, so an earlier text/plain is superseded by a later one,
// while a text/plain and a text/html coexist and SelectBody decides between
// them. Only direct children are alternatives; a nested multipart
// classifies by its own subtype, its contribution counting as that child's.
// Inline media and attachments from all children are kept.
func (w *walker) walkAlternative(n *Node, donor bool) {
	base := len(w.c.BodyCandidates)
	for _, child := range n.Children {
		w.walk(child, donor)
	}

	added := w.c.BodyCandidates[base:]
	if len(added) < 2 {
		return
	}
	lastByType := make(map[string]int, len(added))
	for i, cand := range added {
		lastByType[cand.MIMEType] = i
	}
	kept := make([]*BodyCandidate, 0, len(lastByType))
	for i, cand := range added {
		if lastByType[cand.MIMEType] == i {
			kept = append(kept, cand)
		}
	}
	w.c.BodyCandidates = append(w.c.BodyCandidates[:base], kept...)
}

// walkRelated classifies the first child normally (it is the body root) and
// every later child in donor mode, regardless of declared dispositions:
// that is the common convention for HTML mail with embedded images.
func (w *walker) walkRelated(n *Node, donor bool) {
	for i, child := range n.Children {
		w.walk(child, donor || i > 0)
	}
}

func (w *walker) classifyLeaf(n *Node, donor bool) {
	if n.Truncated {
		w.c.Attachments = append(w.c.Attachments, n)
		w.problem(ProblemStructureTooDeep, n, errors.New("nesting limit hit, subtree kept as one opaque attachment"))
		return
	}

	if donor {
		if n.ContentID != "" {
			w.addInlineMedia(n)
		} else {
			w.c.Attachments = append(w.c.Attachments, n)
		}
		return
	}

	// A cid-addressable non-text payload that is not explicitly an
	// attachment is inline media; the content-id is what qualifies it.
	if n.ContentID != "" && n.Type != "text" && n.Disposition != "attachment" {
		w.addInlineMedia(n)
		return
	}

	if n.Type == "text" && (n.Disposition == "" || n.Disposition == "inline") {
		w.addBodyCandidate(n)
		return
	}

	w.c.Attachments = append(w.c.Attachments, n)
}

func (w *walker) addInlineMedia(n *Node) {
	data, err := n.DecodedBody()
	if err != nil {
		w.c.Attachments = append(w.c.Attachments, n)
		w.problem(ProblemDecodeFailed, n, fmt.Errorf("inline media kept as attachment with raw bytes: %w", err))
		return
	}
	w.c.InlineMedia.put(n.ContentID, &MediaEntry{MIMEType: n.MediaType(), Data: data})
}

func (w *walker) addBodyCandidate(n *Node) {
	data, err := n.DecodedBody()
	if err != nil {
		w.c.Attachments = append(w.c.Attachments, n)
		w.problem(ProblemDecodeFailed, n, fmt.Errorf("body candidate kept as attachment with raw bytes: %w", err))
		return
	}

	text, used, csErr := decodeText(data, n.Charset(), w.opts)
	if csErr != nil {
		w.problem(ProblemDecodeFailed, n, csErr)
	}
	w.c.BodyCandidates = append(w.c.BodyCandidates, &BodyCandidate{
		MIMEType: n.MediaType(),
		Text:     text,
		Charset:  used,
	})
}

func (w *walker) problem(kind ProblemKind, n *Node, err error) {
	w.c.Problems = append(w.c.Problems, Problem{Kind: kind, Path: n.Path(), Err: err})
}
