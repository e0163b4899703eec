package mimetree

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	nettextproto "net/textproto"
	"os"
	"sort"
	"strings"

	"github.com/emersion/go-message/textproto"
)

// Message is one parsed mail message: the part tree plus whatever had to be
// repaired to build it.
type Message struct {
	Root     *Node
	Problems []Problem
}

// ParseFile parses an .eml file into a Message.
func ParseFile(path string, opts Options) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Parse(f, opts)
}

// Parse reads a raw message and builds its part tree. Malformed input is
// repaired, degraded, or kept opaque rather than rejected; the only errors
// returned are unreadable input and violations of a strictness option.
func Parse(r io.Reader, opts Options) (*Message, error) {
	br := bufio.NewReader(r)
	hdr, err := textproto.ReadHeader(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read message header: %w", err)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}

	p := &parser{opts: opts}
	root, err := p.buildNode(hdr, body, "1", 0)
	if err != nil {
		return nil, err
	}
	return &Message{Root: root, Problems: p.problems}, nil
}

type parser struct {
	opts     Options
	problems []Problem
}

func (p *parser) problem(kind ProblemKind, path string, err error) {
	p.problems = append(p.problems, Problem{Kind: kind, Path: path, Err: err})
}

// buildNode derives the node's content metadata and, for multipart parts
// that still can be split, recurses into the children. Every way a
// multipart can fail to split (no boundary, nesting limit, broken framing,
// no parts) degrades it to a leaf so that the leaf XOR container invariant
// holds by construction.
func (p *parser) buildNode(hdr textproto.Header, body []byte, path string, depth int) (*Node, error) {
	n := &Node{Header: hdr, path: path}
	p.applyContentMeta(n)

	if !n.IsMultipart() {
		n.Raw = body
		return n, nil
	}

	boundary := n.Params["boundary"]
	if boundary == "" {
		if !p.opts.IgnoreMissingBoundary {
			return nil, fmt.Errorf("part %s: multipart without boundary parameter", path)
		}
		p.problem(ProblemHeaderMalformed, path, errors.New("multipart without boundary parameter, kept opaque"))
		n.Raw = body
		return n, nil
	}

	if depth >= p.opts.maxDepth() {
		n.Truncated = true
		n.Raw = body
		return n, nil
	}

	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for i := 1; ; i++ {
		// NextRawPart, not NextPart: transfer decoding stays under this
		// package's control so leaves keep their still-encoded payload.
		part, err := mr.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !p.opts.IgnoreMissingEndBoundary {
				return nil, fmt.Errorf("part %s: read multipart: %w", path, err)
			}
			p.problem(ProblemHeaderMalformed, path, fmt.Errorf("multipart framing broken after %d part(s): %w", len(n.Children), err))
			break
		}

		childBody, readErr := io.ReadAll(part)
		if readErr != nil && !p.opts.IgnoreMissingEndBoundary {
			return nil, fmt.Errorf("part %s.%d: read part body: %w", path, i, readErr)
		}

		child, err := p.buildNode(headerFromMIMEHeader(part.Header), childBody, fmt.Sprintf("%s.%d", path, i), depth+1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)

		if readErr != nil {
			p.problem(ProblemHeaderMalformed, path, fmt.Errorf("multipart framing broken after %d part(s): %w", len(n.Children), readErr))
			break
		}
	}

	if len(n.Children) == 0 {
		if !p.opts.AllowEmptyMultipart {
			return nil, fmt.Errorf("part %s: multipart contains no parts", path)
		}
		p.problem(ProblemHeaderMalformed, path, errors.New("multipart contains no parts, kept as leaf"))
		n.Raw = body
	}
	return n, nil
}

// applyContentMeta normalizes the structured headers into the node's typed
// fields, recording a problem for every header that had to be repaired.
func (p *parser) applyContentMeta(n *Node) {
	rawCT := n.Header.Get("Content-Type")
	if rawCT != "" {
		if mt, _, err := mime.ParseMediaType(rawCT); err != nil {
			p.problem(ProblemHeaderMalformed, n.path, fmt.Errorf("content-type %q: %w", rawCT, err))
		} else if !validMediaType(mt) {
			p.problem(ProblemHeaderMalformed, n.path, fmt.Errorf("content-type %q has no type/subtype, using %s", rawCT, fallbackMediaType))
		}
	}
	mt, params, err := mime.ParseMediaType(NormalizeContentType(rawCT))
	if err != nil {
		mt, params = fallbackMediaType, nil
	}
	if params == nil {
		params = make(map[string]string)
	}
	typ, sub, ok := strings.Cut(mt, "/")
	if !ok {
		typ, sub = "text", "plain"
	}
	n.Type, n.Subtype, n.Params = typ, sub, params

	if rawCD := n.Header.Get("Content-Disposition"); rawCD != "" {
		kind, cdParams, repaired := normalizeDisposition(rawCD)
		if repaired {
			p.problem(ProblemHeaderMalformed, n.path, fmt.Errorf("content-disposition %q repaired", rawCD))
		}
		n.Disposition = kind
		if fn := cdParams["filename"]; fn != "" {
			n.Filename = decodeWord(fn)
		}
	}
	if n.Filename == "" {
		if name := n.Params["name"]; name != "" {
			n.Filename = decodeWord(name)
		}
	}

	if cid := strings.Trim(strings.TrimSpace(n.Header.Get("Content-Id")), "<>"); cid != "" {
		n.ContentID = "<" + cid + ">"
	}

	if rawEnc := n.Header.Get("Content-Transfer-Encoding"); rawEnc != "" {
		n.Encoding = parseEncoding(rawEnc)
		if n.Encoding == EncodingUnknown {
			p.problem(ProblemHeaderMalformed, n.path, fmt.Errorf("unknown transfer encoding %q, decoding as identity", rawEnc))
		}
	}
}

// headerFromMIMEHeader converts a stdlib multipart header map into an
// ordered header. The map has no order to preserve, so keys are inserted
// sorted to keep the result deterministic; Add prepends, hence the reverse
// iteration.
func headerFromMIMEHeader(m nettextproto.MIMEHeader) textproto.Header {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var h textproto.Header
	for i := len(keys) - 1; i >= 0; i-- {
		vs := m[keys[i]]
		for j := len(vs) - 1; j >= 0; j-- {
			h.Add(keys[i], vs[j])
		}
	}
	return h
}
